package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/config"
	"github.com/vin-sipoi/jengahacks-api/internal/identity"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
	"github.com/vin-sipoi/jengahacks-api/internal/repositories"
	pkglogger "github.com/vin-sipoi/jengahacks-api/pkg/logger"
	"github.com/vin-sipoi/jengahacks-api/pkg/token"
)

// RegistrationStore defines the interface for registration persistence
type RegistrationStore interface {
	Create(ctx context.Context, reg *models.Registration) (*models.Registration, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Registration, error)
	Cancel(ctx context.Context, tokenHash string) error
	CountActive(ctx context.Context) (int64, error)
	Counts(ctx context.Context) (total, waitlisted, cancelled int64, err error)
}

// RegistrationRequest is one incoming registration attempt with the
// request context needed for abuse checks.
type RegistrationRequest struct {
	FullName       string
	Email          string
	WhatsappNumber string
	LinkedinURL    string
	ResumePath     string

	IPAddress   string // raw, pre-normalization; may be absent
	ClientID    string // opaque client fingerprint; may be absent
	UserAgent   string
	RequestPath string
}

// RegistrationResult is returned on admission. AccessToken is the
// plaintext token, shown exactly once.
type RegistrationResult struct {
	Registration *models.Registration
	AccessToken  string
}

// RateLimitError carries the window remainder so the transport layer can
// emit Retry-After. Unwraps to models.ErrRateLimitExceeded.
type RateLimitError struct {
	Dimension  models.Dimension
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded on %s dimension", e.Dimension)
}

func (e *RateLimitError) Unwrap() error { return models.ErrRateLimitExceeded }

// RegistrationService is the admission controller: the single entry
// point for a registration attempt, owning the decision sequence
// normalize -> block check -> rate check -> waitlist decision -> token ->
// insert, and its failure policy.
type RegistrationService struct {
	repo       RegistrationStore
	blocks     *BlockService
	limiter    *RateLimitService
	violations *ViolationService
	capacity   int
	rateFail   config.FailMode
	logger     *slog.Logger
}

// NewRegistrationService creates a new RegistrationService
func NewRegistrationService(
	repo RegistrationStore,
	blocks *BlockService,
	limiter *RateLimitService,
	violations *ViolationService,
	capacity int,
	rateFail config.FailMode,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		repo:       repo,
		blocks:     blocks,
		limiter:    limiter,
		violations: violations,
		capacity:   capacity,
		rateFail:   rateFail,
		logger:     logger,
	}
}

// Register runs one attempt through the full admission sequence.
func (s *RegistrationService) Register(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error) {
	// 1. Normalize. A malformed email is terminal; a malformed or absent
	// IP or client fingerprint only disables that dimension's checks.
	emailID, err := identity.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	ipID := identity.NormalizeIP(req.IPAddress)
	clientID, hasClient := identity.NormalizeClient(req.ClientID)

	present := []models.Identifier{emailID}
	if ipID.Resolvable() {
		present = append(present, ipID)
	}
	if hasClient {
		present = append(present, clientID)
	}

	meta := models.ViolationMetadata{
		UserAgent:   req.UserAgent,
		RequestPath: req.RequestPath,
		Email:       emailID.Value,
		IPAddress:   ipID.Value,
		ClientID:    clientID.Value,
	}

	// 2. Block check: any present dimension blocked rejects outright.
	// No violation is logged here; the block itself is the record.
	for _, id := range present {
		blocked, err := s.blocks.Gate(ctx, id)
		if err != nil {
			return nil, models.ErrInternalServer
		}
		if blocked {
			s.logger.Info("registration rejected: blocked identifier",
				slog.String("dimension", string(id.Dimension)),
				slog.String("identifier", pkglogger.SanitizedIdentifier(id.Value)))
			return nil, models.ErrBlocked
		}
	}

	// 3. Rate check. Email is mandatory, IP best-effort; both are
	// evaluated so each denying dimension gets its violation logged.
	// The client dimension is counted for pattern detection but never
	// denies.
	now := time.Now()
	var denied *RateLimitError

	for _, id := range present {
		decision, err := s.limiter.Record(ctx, id, now)
		if err != nil {
			if s.rateFail == config.FailOpen {
				s.logger.Error("rate check failed, failing open",
					slog.String("dimension", string(id.Dimension)),
					slog.Any("error", err))
				continue
			}
			return nil, models.ErrInternalServer
		}

		if !decision.Allowed {
			s.violations.Log(ctx, id, decision.Attempts, meta)
			if denied == nil {
				denied = &RateLimitError{Dimension: id.Dimension, RetryAfter: decision.RetryAfter}
			}
		}
	}
	if denied != nil {
		return nil, denied
	}

	// 4. Waitlist decision: made exactly once and persisted with the
	// record; never recomputed later.
	active, err := s.repo.CountActive(ctx)
	if err != nil {
		s.logger.Error("failed to count registrations for waitlist decision", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	isWaitlist := active >= int64(s.capacity)

	// 5–6. Token generation and insert. A token hash collision is a
	// retryable internal condition, not a client-facing error; the email
	// unique constraint is the authoritative duplicate guard.
	const maxTokenRetries = 3
	for attempt := 0; attempt < maxTokenRetries; attempt++ {
		plain, hash, err := token.Generate()
		if err != nil {
			s.logger.Error("failed to generate access token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		reg := &models.Registration{
			FullName:        req.FullName,
			Email:           emailID.Value,
			WhatsappNumber:  optional(req.WhatsappNumber),
			LinkedinURL:     optional(req.LinkedinURL),
			ResumePath:      optional(req.ResumePath),
			IsWaitlist:      isWaitlist,
			AccessTokenHash: hash,
		}

		created, err := s.repo.Create(ctx, reg)
		if errors.Is(err, repositories.ErrTokenCollision) {
			continue
		}
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrDuplicateEmail
		}
		if err != nil {
			s.logger.Error("failed to persist registration", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		s.logger.Info("registration admitted",
			slog.String("id", created.ID),
			slog.String("email", pkglogger.SanitizedEmail(created.Email)),
			slog.Bool("waitlist", created.IsWaitlist))

		return &RegistrationResult{Registration: created, AccessToken: plain}, nil
	}

	s.logger.Error("access token collision retries exhausted")
	return nil, models.ErrInternalServer
}

// Lookup returns the registration owned by the given plaintext token.
func (s *RegistrationService) Lookup(ctx context.Context, plainToken string) (*models.Registration, error) {
	if err := token.ValidateFormat(plainToken); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, err)
	}
	return s.repo.GetByTokenHash(ctx, token.Hash(plainToken))
}

// Cancel self-cancels the registration owned by the given token. A
// cancelled seat frees capacity for future admissions; existing waitlist
// flags are never recomputed.
func (s *RegistrationService) Cancel(ctx context.Context, plainToken string) error {
	if err := token.ValidateFormat(plainToken); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}
	return s.repo.Cancel(ctx, token.Hash(plainToken))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
