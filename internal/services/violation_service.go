package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/models"
	pkglogger "github.com/vin-sipoi/jengahacks-api/pkg/logger"
)

// ViolationStore defines the interface for the append-only violation log
type ViolationStore interface {
	Insert(ctx context.Context, v *models.ViolationRecord) error
	ListRecent(ctx context.Context, limit, offset int) ([]*models.ViolationRecord, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountForIdentifier(ctx context.Context, identifier string, dim models.Dimension, since time.Time) (int, error)
	GroupedSince(ctx context.Context, since time.Time, minCount int) ([]models.ViolatorGroup, error)
	CorrelatedEmails(ctx context.Context, sourceDim models.Dimension, since time.Time, minDistinct int) ([]models.CorrelatedGroup, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertStore defines the interface for derived violation alerts
type AlertStore interface {
	Upsert(ctx context.Context, a *models.ViolationAlert) (*models.ViolationAlert, error)
	List(ctx context.Context, openOnly bool, limit, offset int) ([]*models.ViolationAlert, error)
	Resolve(ctx context.Context, id string) error
}

// ViolationService records denial events and maintains repeat-offender
// alerts. Logging is fire-and-forget: a failed write is reported on the
// operational log and swallowed, never failing the caller's request.
// Audit completeness is best-effort; availability of the registration
// path is not.
type ViolationService struct {
	store          ViolationStore
	alerts         AlertStore
	alertThreshold int
	alertLookback  time.Duration
	logger         *slog.Logger
}

// NewViolationService creates a new ViolationService
func NewViolationService(store ViolationStore, alerts AlertStore, alertThreshold int, logger *slog.Logger) *ViolationService {
	return &ViolationService{
		store:          store,
		alerts:         alerts,
		alertThreshold: alertThreshold,
		alertLookback:  24 * time.Hour,
		logger:         logger,
	}
}

// Log appends a violation for the denying identifier. Never returns an
// error; failures are swallowed after being logged operationally.
func (s *ViolationService) Log(ctx context.Context, id models.Identifier, attemptCount int, meta models.ViolationMetadata) {
	rec := &models.ViolationRecord{
		Identifier:   id.Value,
		Dimension:    id.Dimension,
		AttemptCount: attemptCount,
		UserAgent:    meta.UserAgent,
		RequestPath:  meta.RequestPath,
	}
	if meta.Email != "" {
		rec.Email = &meta.Email
	}
	if meta.IPAddress != "" && meta.IPAddress != models.UnknownIP {
		rec.IPAddress = &meta.IPAddress
	}
	if meta.ClientID != "" {
		rec.ClientID = &meta.ClientID
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		s.logger.Error("failed to record violation",
			slog.String("identifier", pkglogger.SanitizedIdentifier(id.Value)),
			slog.String("dimension", string(id.Dimension)),
			slog.Any("error", err))
		return
	}

	s.maybeAlert(ctx, id)
}

// maybeAlert raises or refreshes a repeat-offender alert once the
// identifier crosses the threshold within the lookback window.
func (s *ViolationService) maybeAlert(ctx context.Context, id models.Identifier) {
	count, err := s.store.CountForIdentifier(ctx, id.Value, id.Dimension, time.Now().Add(-s.alertLookback))
	if err != nil {
		s.logger.Error("failed to count violations for alerting", slog.Any("error", err))
		return
	}
	if count < s.alertThreshold {
		return
	}

	alert := &models.ViolationAlert{
		Identifier:     id.Value,
		Dimension:      id.Dimension,
		ViolationCount: count,
		Severity:       severityFor(count, s.alertThreshold),
		AlertType:      "repeat_offender",
		Message:        fmt.Sprintf("%d rate limit violations in the last %s", count, s.alertLookback),
	}

	if _, err := s.alerts.Upsert(ctx, alert); err != nil {
		s.logger.Error("failed to upsert violation alert", slog.Any("error", err))
	}
}

// severityFor grades an alert by how far past the threshold the count is
func severityFor(count, threshold int) models.AlertSeverity {
	switch {
	case count >= threshold*4:
		return models.SeverityCritical
	case count >= threshold*2:
		return models.SeverityHigh
	case count > threshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Recent returns violations for the admin view
func (s *ViolationService) Recent(ctx context.Context, limit, offset int) ([]*models.ViolationRecord, error) {
	return s.store.ListRecent(ctx, limit, offset)
}

// Alerts returns alerts for the admin view
func (s *ViolationService) Alerts(ctx context.Context, openOnly bool, limit, offset int) ([]*models.ViolationAlert, error) {
	return s.alerts.List(ctx, openOnly, limit, offset)
}

// ResolveAlert marks one alert resolved
func (s *ViolationService) ResolveAlert(ctx context.Context, id string) error {
	return s.alerts.Resolve(ctx, id)
}

// CountSince exposes windowed totals for dashboard stats
func (s *ViolationService) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return s.store.CountSince(ctx, since)
}

// Sweep deletes violations past the retention cutoff
func (s *ViolationService) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteOlderThan(ctx, time.Now().Add(-retention))
}
