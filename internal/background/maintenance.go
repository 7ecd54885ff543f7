package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/config"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
)

// blockExpirer deactivates TTL blocks whose expiry has passed.
// Implemented by repositories.BlockRepository.
type blockExpirer interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// MaintenanceManager runs the periodic upkeep the abuse-control tables
// need: dropping dead rate-limit windows, enforcing violation retention,
// deactivating expired TTL blocks, and (when enabled) the scheduled
// escalation sweep.
type MaintenanceManager struct {
	limiter    *services.RateLimitService
	violations *services.ViolationService
	blocks     blockExpirer
	escalation *services.EscalationService
	config     config.AbuseConfig
	logger     *slog.Logger
	stopCh     chan struct{}
}

// NewMaintenanceManager creates a new maintenance manager
func NewMaintenanceManager(
	limiter *services.RateLimitService,
	violations *services.ViolationService,
	blocks blockExpirer,
	escalation *services.EscalationService,
	cfg config.AbuseConfig,
	logger *slog.Logger,
) *MaintenanceManager {
	return &MaintenanceManager{
		limiter:    limiter,
		violations: violations,
		blocks:     blocks,
		escalation: escalation,
		config:     cfg,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic maintenance loop. The escalation sweep runs
// on its own interval; it is disabled when EscalationInterval is zero.
func (m *MaintenanceManager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.config.MaintenanceInterval)
	defer ticker.Stop()

	var escalationCh <-chan time.Time
	if m.config.EscalationInterval > 0 {
		escalationTicker := time.NewTicker(m.config.EscalationInterval)
		defer escalationTicker.Stop()
		escalationCh = escalationTicker.C
	}

	// Run immediately on startup
	m.runMaintenance(ctx)

	for {
		select {
		case <-ticker.C:
			m.runMaintenance(ctx)
		case <-escalationCh:
			m.runEscalation(ctx)
		case <-m.stopCh:
			m.logger.Info("maintenance manager stopped")
			return
		case <-ctx.Done():
			m.logger.Info("maintenance manager context cancelled")
			return
		}
	}
}

func (m *MaintenanceManager) runMaintenance(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	counters, err := m.limiter.Sweep(runCtx, time.Now())
	if err != nil {
		m.logger.Error("failed to sweep rate-limit counters", slog.Any("error", err))
	}

	violations, err := m.violations.Sweep(runCtx, m.config.ViolationRetention)
	if err != nil {
		m.logger.Error("failed to enforce violation retention", slog.Any("error", err))
	}

	expired, err := m.blocks.DeactivateExpired(runCtx)
	if err != nil {
		m.logger.Error("failed to deactivate expired blocks", slog.Any("error", err))
	}

	if counters > 0 || violations > 0 || expired > 0 {
		m.logger.Info("maintenance sweep completed",
			slog.Int64("counters_deleted", counters),
			slog.Int64("violations_deleted", violations),
			slog.Int64("blocks_expired", expired))
	}
}

func (m *MaintenanceManager) runEscalation(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	blocked, err := m.escalation.AutoBlockPersistentViolators(runCtx,
		m.config.EscalationThreshold, m.config.EscalationLookback)
	if err != nil {
		m.logger.Error("scheduled escalation sweep failed", slog.Any("error", err))
		return
	}

	if len(blocked) > 0 {
		m.logger.Info("scheduled escalation sweep completed",
			slog.Int("newly_blocked", len(blocked)))
	}
}

// Stop signals the maintenance manager to stop
func (m *MaintenanceManager) Stop() {
	close(m.stopCh)
}
