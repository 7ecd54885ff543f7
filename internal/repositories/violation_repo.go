package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vin-sipoi/jengahacks-api/internal/database"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// ViolationRepository handles the append-only violation log plus the
// alert and pattern tables derived from it
type ViolationRepository struct {
	db *database.DB
}

// NewViolationRepository creates a new ViolationRepository
func NewViolationRepository(db *database.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

const violationColumns = `id, identifier, dimension, attempt_count, user_agent, request_path,
	       email, ip_address, client_id, created_at`

func scanViolationRow(row rowScanner) (*models.ViolationRecord, error) {
	var v models.ViolationRecord

	err := row.Scan(
		&v.ID, &v.Identifier, &v.Dimension, &v.AttemptCount, &v.UserAgent,
		&v.RequestPath, &v.Email, &v.IPAddress, &v.ClientID, &v.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &v, nil
}

func scanViolationRows(rows pgx.Rows) ([]*models.ViolationRecord, error) {
	defer rows.Close()

	records := make([]*models.ViolationRecord, 0)

	for rows.Next() {
		rec, err := scanViolationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violation rows: %w", err)
	}

	return records, nil
}

// Insert appends a violation record. Rows are never updated.
func (r *ViolationRepository) Insert(ctx context.Context, v *models.ViolationRecord) error {
	v.ID = uuid.New().String()

	query := `
		INSERT INTO violations (id, identifier, dimension, attempt_count, user_agent, request_path, email, ip_address, client_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		v.ID, v.Identifier, v.Dimension, v.AttemptCount, v.UserAgent,
		v.RequestPath, v.Email, v.IPAddress, v.ClientID,
	)
	return err
}

// ListRecent returns violations newest first
func (r *ViolationRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.ViolationRecord, error) {
	query := `
		SELECT ` + violationColumns + ` FROM violations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}

	return scanViolationRows(rows)
}

// CountSince returns the total number of violations after the cutoff
func (r *ViolationRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM violations WHERE created_at >= $1`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	return count, nil
}

// CountForIdentifier returns the violation count for one identifier and
// dimension within a window
func (r *ViolationRepository) CountForIdentifier(ctx context.Context, identifier string, dim models.Dimension, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM violations
		WHERE identifier = $1 AND dimension = $2 AND created_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, identifier, dim, since).Scan(&count)
	return count, err
}

// GroupedSince returns per-(identifier, dimension) violation counts within
// the lookback window, largest first. Input to alerts and escalation.
func (r *ViolationRepository) GroupedSince(ctx context.Context, since time.Time, minCount int) ([]models.ViolatorGroup, error) {
	query := `
		SELECT identifier, dimension, COUNT(*), MAX(created_at)
		FROM violations
		WHERE created_at >= $1
		GROUP BY identifier, dimension
		HAVING COUNT(*) >= $2
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, since, minCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query grouped violations: %w", err)
	}
	defer rows.Close()

	groups := make([]models.ViolatorGroup, 0)
	for rows.Next() {
		var g models.ViolatorGroup
		if err := rows.Scan(&g.Identifier, &g.Dimension, &g.Count, &g.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan violator group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violator groups: %w", err)
	}

	return groups, nil
}

// CorrelatedEmails groups violations by a shared source column (ip_address
// or client_id) and returns sources seen with at least minDistinct
// distinct emails in the window.
func (r *ViolationRepository) CorrelatedEmails(ctx context.Context, sourceDim models.Dimension, since time.Time, minDistinct int) ([]models.CorrelatedGroup, error) {
	var sourceCol string
	switch sourceDim {
	case models.DimensionIP:
		sourceCol = "ip_address"
	case models.DimensionClient:
		sourceCol = "client_id"
	default:
		return nil, fmt.Errorf("unsupported correlation dimension %q", sourceDim)
	}

	query := fmt.Sprintf(`
		SELECT %[1]s, array_agg(DISTINCT email), COUNT(*), MIN(created_at), MAX(created_at)
		FROM violations
		WHERE created_at >= $1 AND %[1]s IS NOT NULL AND email IS NOT NULL
		GROUP BY %[1]s
		HAVING COUNT(DISTINCT email) >= $2
		ORDER BY COUNT(DISTINCT email) DESC
	`, sourceCol)

	rows, err := r.db.Pool.Query(ctx, query, since, minDistinct)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlated violations: %w", err)
	}
	defer rows.Close()

	groups := make([]models.CorrelatedGroup, 0)
	for rows.Next() {
		g := models.CorrelatedGroup{Dimension: sourceDim}
		if err := rows.Scan(&g.Source, &g.Emails, &g.Count, &g.FirstSeen, &g.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan correlated group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating correlated groups: %w", err)
	}

	return groups, nil
}

// DeleteOlderThan removes violations past the retention cutoff. This is
// the only code path that deletes from the violation log.
func (r *ViolationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM violations WHERE created_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old violations: %w", err)
	}
	return tag.RowsAffected(), nil
}
