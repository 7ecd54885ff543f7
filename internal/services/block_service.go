package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/config"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
	pkglogger "github.com/vin-sipoi/jengahacks-api/pkg/logger"
)

// BlockStore defines the interface for block registry persistence
type BlockStore interface {
	Upsert(ctx context.Context, identifier string, dim models.Dimension, reason, blockedBy string, expiresAt *time.Time) (*models.BlockEntry, bool, error)
	Deactivate(ctx context.Context, identifier string, dim models.Dimension, unblockedBy string) (int64, error)
	GetActive(ctx context.Context, identifier string, dim models.Dimension) (*models.BlockEntry, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.BlockEntry, error)
	CountActive(ctx context.Context) (int64, error)
}

// BlockService is the block registry: idempotent block/unblock plus the
// fast is-blocked gate every registration attempt pays for.
type BlockService struct {
	store  BlockStore
	config config.AbuseConfig
	logger *slog.Logger
}

// NewBlockService creates a new BlockService
func NewBlockService(store BlockStore, cfg config.AbuseConfig, logger *slog.Logger) *BlockService {
	return &BlockService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Block creates or refreshes a block. Idempotent: blocking an
// already-blocked identifier updates reason/expiry without adding a row.
// Returns whether this call created a new block.
func (s *BlockService) Block(ctx context.Context, id models.Identifier, reason, blockedBy string, ttl time.Duration) (bool, error) {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	entry, created, err := s.store.Upsert(ctx, id.Value, id.Dimension, reason, blockedBy, expiresAt)
	if err != nil {
		return false, fmt.Errorf("block %s: %w", id.Dimension, err)
	}

	if created {
		s.logger.Info("identifier blocked",
			slog.String("identifier", pkglogger.SanitizedIdentifier(entry.Identifier)),
			slog.String("dimension", string(entry.Dimension)),
			slog.String("reason", entry.Reason),
			slog.String("blocked_by", entry.BlockedBy))
	}
	return created, nil
}

// Unblock deactivates any active block. Idempotent: unblocking an
// identifier that is not blocked is a no-op, not an error.
func (s *BlockService) Unblock(ctx context.Context, id models.Identifier, unblockedBy string) error {
	affected, err := s.store.Deactivate(ctx, id.Value, id.Dimension, unblockedBy)
	if err != nil {
		return fmt.Errorf("unblock %s: %w", id.Dimension, err)
	}

	if affected > 0 {
		s.logger.Info("identifier unblocked",
			slog.String("identifier", pkglogger.SanitizedIdentifier(id.Value)),
			slog.String("dimension", string(id.Dimension)),
			slog.String("unblocked_by", unblockedBy))
	}
	return nil
}

// IsBlocked reports whether an active, unexpired block exists. Store
// errors propagate; callers that need a fail policy use Gate.
func (s *BlockService) IsBlocked(ctx context.Context, id models.Identifier) (bool, error) {
	_, err := s.store.GetActive(ctx, id.Value, id.Dimension)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("block check %s: %w", id.Dimension, err)
	}
	return true, nil
}

// Gate is the admission-path block check. On a store failure it applies
// the configured per-dimension fail mode: fail-closed (email default)
// surfaces the error and the request is denied with an internal error;
// fail-open (IP default) logs the failure and lets the request proceed.
func (s *BlockService) Gate(ctx context.Context, id models.Identifier) (bool, error) {
	blocked, err := s.IsBlocked(ctx, id)
	if err == nil {
		return blocked, nil
	}

	if s.failMode(id.Dimension) == config.FailOpen {
		s.logger.Error("block check failed, failing open",
			slog.String("dimension", string(id.Dimension)),
			slog.Any("error", err))
		return false, nil
	}

	s.logger.Error("block check failed, failing closed",
		slog.String("dimension", string(id.Dimension)),
		slog.Any("error", err))
	return false, err
}

func (s *BlockService) failMode(dim models.Dimension) config.FailMode {
	switch dim {
	case models.DimensionEmail:
		return s.config.BlockFailModeEmail
	case models.DimensionIP:
		return s.config.BlockFailModeIP
	default:
		// Client fingerprint is a soft signal; never fail closed on it.
		return config.FailOpen
	}
}

// ListActive returns active blocks for the admin view
func (s *BlockService) ListActive(ctx context.Context, limit, offset int) ([]*models.BlockEntry, error) {
	return s.store.ListActive(ctx, limit, offset)
}

// CountActive returns the number of active blocks
func (s *BlockService) CountActive(ctx context.Context) (int64, error) {
	return s.store.CountActive(ctx)
}
