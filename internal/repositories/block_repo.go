package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vin-sipoi/jengahacks-api/internal/database"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// BlockRepository handles database operations for the block registry
type BlockRepository struct {
	db *database.DB
}

// NewBlockRepository creates a new BlockRepository
func NewBlockRepository(db *database.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

const blockColumns = `id, identifier, dimension, reason, blocked_by, blocked_at, expires_at, is_active`

func scanBlockRow(row rowScanner) (*models.BlockEntry, error) {
	var b models.BlockEntry

	err := row.Scan(
		&b.ID, &b.Identifier, &b.Dimension, &b.Reason,
		&b.BlockedBy, &b.BlockedAt, &b.ExpiresAt, &b.IsActive,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &b, nil
}

// Upsert creates or refreshes a block. Backed by a partial unique index
// on (identifier, dimension) WHERE is_active, so a second block of the
// same identifier updates reason/expiry/blocked_by instead of adding a
// row. Returns the entry and whether a new block was created.
func (r *BlockRepository) Upsert(ctx context.Context, identifier string, dim models.Dimension, reason, blockedBy string, expiresAt *time.Time) (*models.BlockEntry, bool, error) {
	query := `
		INSERT INTO block_entries (identifier, dimension, reason, blocked_by, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		ON CONFLICT (identifier, dimension) WHERE is_active
		DO UPDATE SET reason = EXCLUDED.reason,
		              blocked_by = EXCLUDED.blocked_by,
		              expires_at = EXCLUDED.expires_at
		RETURNING ` + blockColumns + `, (xmax = 0) AS inserted`

	var b models.BlockEntry
	var inserted bool
	err := r.db.Pool.QueryRow(ctx, query, identifier, dim, reason, blockedBy, expiresAt).Scan(
		&b.ID, &b.Identifier, &b.Dimension, &b.Reason,
		&b.BlockedBy, &b.BlockedAt, &b.ExpiresAt, &b.IsActive,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert block: %w", database.MapPostgresError(err))
	}

	return &b, inserted, nil
}

// Deactivate marks any active block for (identifier, dimension) inactive.
// Returns the number of rows affected; zero means there was nothing to
// unblock, which callers treat as a no-op.
func (r *BlockRepository) Deactivate(ctx context.Context, identifier string, dim models.Dimension, unblockedBy string) (int64, error) {
	query := `
		UPDATE block_entries
		SET is_active = false, unblocked_by = $3, unblocked_at = CURRENT_TIMESTAMP
		WHERE identifier = $1 AND dimension = $2 AND is_active
	`

	tag, err := r.db.Pool.Exec(ctx, query, identifier, dim, unblockedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate block: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetActive returns the active block for (identifier, dimension), or
// ErrNotFound. Expired TTL blocks are not returned.
func (r *BlockRepository) GetActive(ctx context.Context, identifier string, dim models.Dimension) (*models.BlockEntry, error) {
	query := `
		SELECT ` + blockColumns + ` FROM block_entries
		WHERE identifier = $1 AND dimension = $2 AND is_active
		  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
	`

	return scanBlockRow(r.db.Pool.QueryRow(ctx, query, identifier, dim))
}

// ListActive returns all active, unexpired blocks, newest first
func (r *BlockRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.BlockEntry, error) {
	query := `
		SELECT ` + blockColumns + ` FROM block_entries
		WHERE is_active AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
		ORDER BY blocked_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}

	return scanBlockRows(rows)
}

func scanBlockRows(rows pgx.Rows) ([]*models.BlockEntry, error) {
	defer rows.Close()

	entries := make([]*models.BlockEntry, 0)

	for rows.Next() {
		entry, err := scanBlockRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating block rows: %w", err)
	}

	return entries, nil
}

// CountActive returns the number of active, unexpired blocks
func (r *BlockRepository) CountActive(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*) FROM block_entries
		WHERE is_active AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
	`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return count, nil
}

// DeactivateExpired flips expired TTL blocks to inactive so the registry
// stays small; correctness does not depend on this, since reads already
// filter on expires_at.
func (r *BlockRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE block_entries
		SET is_active = false, unblocked_by = 'expiry'
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= CURRENT_TIMESTAMP
	`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired blocks: %w", err)
	}
	return tag.RowsAffected(), nil
}
