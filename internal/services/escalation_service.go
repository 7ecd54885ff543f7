package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/models"
	pkglogger "github.com/vin-sipoi/jengahacks-api/pkg/logger"
)

// EscalationReason is the block reason written for automatic escalations.
const EscalationReason = "auto: persistent violator"

// EscalationService promotes persistent violators from rate-limited to
// blocked. It is the only component permitted to create blocks
// automatically, and it only runs when explicitly invoked (admin
// endpoint or the configured schedule), never per-request, so its effect
// stays auditable and reversible.
type EscalationService struct {
	violations ViolationStore
	blocks     *BlockService
	blockTTL   time.Duration // 0 = permanent until explicit unblock
	logger     *slog.Logger
}

// NewEscalationService creates a new EscalationService
func NewEscalationService(violations ViolationStore, blocks *BlockService, blockTTL time.Duration, logger *slog.Logger) *EscalationService {
	return &EscalationService{
		violations: violations,
		blocks:     blocks,
		blockTTL:   blockTTL,
		logger:     logger,
	}
}

// AutoBlockPersistentViolators blocks every (identifier, dimension) with
// at least threshold violations inside the lookback window. Idempotent:
// already-blocked identifiers are skipped without re-logging, so a second
// run with no new violations returns an empty set. Returns the newly
// blocked identifiers for operator visibility.
func (s *EscalationService) AutoBlockPersistentViolators(ctx context.Context, threshold int, lookback time.Duration) ([]models.Identifier, error) {
	groups, err := s.violations.GroupedSince(ctx, time.Now().Add(-lookback), threshold)
	if err != nil {
		return nil, fmt.Errorf("escalation scan: %w", err)
	}

	newlyBlocked := make([]models.Identifier, 0)

	for _, g := range groups {
		id := models.Identifier{Value: g.Identifier, Dimension: g.Dimension}

		created, err := s.blocks.Block(ctx, id, EscalationReason, models.BlockedByEscalation, s.blockTTL)
		if err != nil {
			// One bad identifier should not abort the sweep
			s.logger.Error("escalation block failed",
				slog.String("identifier", pkglogger.SanitizedIdentifier(g.Identifier)),
				slog.String("dimension", string(g.Dimension)),
				slog.Any("error", err))
			continue
		}
		if !created {
			continue
		}

		s.logger.Warn("persistent violator auto-blocked",
			slog.String("identifier", pkglogger.SanitizedIdentifier(g.Identifier)),
			slog.String("dimension", string(g.Dimension)),
			slog.Int("violations", g.Count))
		newlyBlocked = append(newlyBlocked, id)
	}

	return newlyBlocked, nil
}
