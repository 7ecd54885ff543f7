package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vin-sipoi/jengahacks-api/internal/database"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// RateLimitRepository is the Postgres-backed fixed-window counter store.
// Counters are keyed (identifier, dimension, window_start); Increment is
// a single atomic upsert so concurrent requests from the same identifier
// cannot both observe the pre-increment count.
type RateLimitRepository struct {
	db *database.DB
}

// NewRateLimitRepository creates a new RateLimitRepository
func NewRateLimitRepository(db *database.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Increment bumps the counter for the window containing windowStart and
// returns the attempt count after the increment.
func (r *RateLimitRepository) Increment(ctx context.Context, identifier string, dim models.Dimension, windowStart time.Time) (int, error) {
	query := `
		INSERT INTO rate_limit_counters (identifier, dimension, window_start, attempt_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (identifier, dimension, window_start)
		DO UPDATE SET attempt_count = rate_limit_counters.attempt_count + 1
		RETURNING attempt_count
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, identifier, dim, windowStart).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return count, nil
}

// Get returns the current attempt count for the window, zero when the
// window has no counter yet. Read-only; repeated calls are side-effect
// free.
func (r *RateLimitRepository) Get(ctx context.Context, identifier string, dim models.Dimension, windowStart time.Time) (int, error) {
	query := `
		SELECT attempt_count FROM rate_limit_counters
		WHERE identifier = $1 AND dimension = $2 AND window_start = $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, identifier, dim, windowStart).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return count, nil
}

// DeleteBefore drops counters for windows that started before the cutoff
func (r *RateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM rate_limit_counters WHERE window_start < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale counters: %w", err)
	}
	return tag.RowsAffected(), nil
}
