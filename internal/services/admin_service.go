package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/identity"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// AdminService aggregates the abuse-monitoring queries behind the admin
// dashboard. It composes the other services rather than reaching into
// repositories directly so every read shares their semantics.
type AdminService struct {
	registrations RegistrationStore
	limiter       *RateLimitService
	blocks        *BlockService
	violations    *ViolationService
	logger        *slog.Logger
}

// NewAdminService creates a new AdminService
func NewAdminService(
	registrations RegistrationStore,
	limiter *RateLimitService,
	blocks *BlockService,
	violations *ViolationService,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		registrations: registrations,
		limiter:       limiter,
		blocks:        blocks,
		violations:    violations,
		logger:        logger,
	}
}

// RateLimitInfo is the current window state for one identifier.
type RateLimitInfo struct {
	Identifier string           `json:"identifier"`
	Dimension  models.Dimension `json:"dimension"`
	Attempts   int              `json:"attempts"`
	Limit      int              `json:"limit"`
	Remaining  int              `json:"remaining"`
	WindowEnds time.Time        `json:"window_ends"`
}

// EmailRateLimitInfo returns the current email-dimension window state.
func (s *AdminService) EmailRateLimitInfo(ctx context.Context, rawEmail string) (*RateLimitInfo, error) {
	id, err := identity.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	return s.rateLimitInfo(ctx, id)
}

// IPRateLimitInfo returns the current IP-dimension window state.
func (s *AdminService) IPRateLimitInfo(ctx context.Context, rawIP string) (*RateLimitInfo, error) {
	id := identity.NormalizeIP(rawIP)
	if !id.Resolvable() {
		return nil, models.ErrValidation
	}
	return s.rateLimitInfo(ctx, id)
}

func (s *AdminService) rateLimitInfo(ctx context.Context, id models.Identifier) (*RateLimitInfo, error) {
	decision, err := s.limiter.Peek(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}

	remaining := decision.Limit - decision.Attempts
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitInfo{
		Identifier: id.Value,
		Dimension:  id.Dimension,
		Attempts:   decision.Attempts,
		Limit:      decision.Limit,
		Remaining:  remaining,
		WindowEnds: decision.WindowEnds,
	}, nil
}

// Stats returns the dashboard headline numbers.
func (s *AdminService) Stats(ctx context.Context) (*models.RegistrationStats, error) {
	total, waitlisted, cancelled, err := s.registrations.Counts(ctx)
	if err != nil {
		return nil, err
	}

	violations24, err := s.violations.CountSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	activeBlocks, err := s.blocks.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	return &models.RegistrationStats{
		Total:        total,
		Waitlisted:   waitlisted,
		Cancelled:    cancelled,
		Violations24: violations24,
		ActiveBlocks: activeBlocks,
	}, nil
}
