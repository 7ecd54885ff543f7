package repositories

import (
	"context"
	"fmt"

	"github.com/vin-sipoi/jengahacks-api/internal/database"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// AlertRepository handles derived violation alerts for the admin view
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new AlertRepository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, identifier, dimension, violation_count, severity, alert_type, message, is_resolved, created_at`

func scanAlertRow(row rowScanner) (*models.ViolationAlert, error) {
	var a models.ViolationAlert

	err := row.Scan(
		&a.ID, &a.Identifier, &a.Dimension, &a.ViolationCount,
		&a.Severity, &a.AlertType, &a.Message, &a.IsResolved, &a.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &a, nil
}

// Upsert creates or refreshes the open alert for (identifier, dimension,
// alert_type). A resolved alert stays resolved; repeat offenders get a
// fresh open alert only through a new row once the old one is resolved.
func (r *AlertRepository) Upsert(ctx context.Context, a *models.ViolationAlert) (*models.ViolationAlert, error) {
	query := `
		INSERT INTO violation_alerts (identifier, dimension, violation_count, severity, alert_type, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identifier, dimension, alert_type) WHERE NOT is_resolved
		DO UPDATE SET violation_count = EXCLUDED.violation_count,
		              severity = EXCLUDED.severity,
		              message = EXCLUDED.message
		RETURNING ` + alertColumns

	result, err := scanAlertRow(r.db.Pool.QueryRow(
		ctx, query,
		a.Identifier, a.Dimension, a.ViolationCount, a.Severity, a.AlertType, a.Message,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert alert: %w", err)
	}

	return result, nil
}

// List returns alerts newest first; unresolved only when openOnly is set
func (r *AlertRepository) List(ctx context.Context, openOnly bool, limit, offset int) ([]*models.ViolationAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM violation_alerts`
	if openOnly {
		query += ` WHERE NOT is_resolved`
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.ViolationAlert, 0)
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}

	return alerts, nil
}

// Resolve sets is_resolved on one alert. The flag is manual-set only and
// is never cleared automatically.
func (r *AlertRepository) Resolve(ctx context.Context, id string) error {
	query := `UPDATE violation_alerts SET is_resolved = true WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
