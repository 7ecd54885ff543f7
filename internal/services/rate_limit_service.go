package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/config"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// CounterStore defines the interface for fixed-window counter storage.
// Increment must be atomic: the returned count is the value after this
// caller's increment, so two concurrent attempts can never both see the
// pre-increment count. Implemented by the Postgres upsert repository and
// the Redis INCR store.
type CounterStore interface {
	Increment(ctx context.Context, identifier string, dim models.Dimension, windowStart time.Time) (int, error)
	Get(ctx context.Context, identifier string, dim models.Dimension, windowStart time.Time) (int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Decision is the outcome of a rate-limit evaluation.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Attempts   int           `json:"attempts"`
	Limit      int           `json:"limit"`
	Gated      bool          `json:"gated"` // false for dimensions that are monitored but never deny
	WindowEnds time.Time     `json:"window_ends"`
	RetryAfter time.Duration `json:"-"`
}

// RateLimitService implements fixed-window rate limiting per identifier
// dimension.
//
// Windows are wall-clock aligned: an attempt exactly on the boundary
// belongs to the new window with no carry-over. Attackers can burst
// around a boundary for up to 2x the limit; that is an accepted
// limitation of fixed windows, traded against the simplicity of a single
// atomic counter per window.
type RateLimitService struct {
	store  CounterStore
	config config.RateLimitConfig
	logger *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(store CounterStore, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// windowStart computes the wall-clock-aligned start of the fixed window
// containing now. Pure function of (now, window); all counter state lives
// in the store, keyed by this value.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

// limitFor returns (limit, window, gated) for a dimension. The client
// dimension is counted for pattern detection but never denies on its own.
func (s *RateLimitService) limitFor(dim models.Dimension) (int, time.Duration, bool) {
	switch dim {
	case models.DimensionEmail:
		return s.config.EmailLimit, s.config.EmailWindow, true
	case models.DimensionIP:
		return s.config.IPLimit, s.config.IPWindow, true
	default:
		return 0, s.config.IPWindow, false
	}
}

// Peek reports the decision that Record would currently make, without
// counting an attempt. Side-effect free; repeated calls do not consume
// budget.
func (s *RateLimitService) Peek(ctx context.Context, id models.Identifier, now time.Time) (Decision, error) {
	limit, window, gated := s.limitFor(id.Dimension)
	start := windowStart(now, window)

	attempts, err := s.store.Get(ctx, id.Value, id.Dimension, start)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit peek: %w", err)
	}

	return s.decide(attempts, limit, gated, start, window, now, false), nil
}

// Record counts one attempt and returns the decision for it. The
// allowed/denied verdict reflects the count before this attempt
// (allowed = prior < limit), so the Nth attempt under limit N is allowed
// and the (N+1)th is denied with Attempts = N+1.
func (s *RateLimitService) Record(ctx context.Context, id models.Identifier, now time.Time) (Decision, error) {
	limit, window, gated := s.limitFor(id.Dimension)
	start := windowStart(now, window)

	attempts, err := s.store.Increment(ctx, id.Value, id.Dimension, start)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit record: %w", err)
	}

	d := s.decide(attempts, limit, gated, start, window, now, true)
	if !d.Allowed {
		s.logger.Warn("rate limit exceeded",
			slog.String("dimension", string(id.Dimension)),
			slog.Int("attempts", attempts),
			slog.Int("limit", limit))
	}
	return d, nil
}

func (s *RateLimitService) decide(attempts, limit int, gated bool, start time.Time, window time.Duration, now time.Time, counted bool) Decision {
	d := Decision{
		Attempts:   attempts,
		Limit:      limit,
		Gated:      gated,
		WindowEnds: start.Add(window),
	}

	if !gated {
		d.Allowed = true
		return d
	}

	if counted {
		// attempts already includes this attempt
		d.Allowed = attempts <= limit
	} else {
		d.Allowed = attempts < limit
	}
	if !d.Allowed {
		d.RetryAfter = d.WindowEnds.Sub(now)
	}
	return d
}

// Sweep drops counters whose windows ended before the largest configured
// window ago. Invoked from background maintenance.
func (s *RateLimitService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	window := s.config.EmailWindow
	if s.config.IPWindow > window {
		window = s.config.IPWindow
	}
	return s.store.DeleteBefore(ctx, now.Add(-2*window))
}
