package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vin-sipoi/jengahacks-api/internal/database"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// ErrTokenCollision signals that the generated access token hash already
// exists. Vanishingly unlikely; callers regenerate and retry.
var ErrTokenCollision = errors.New("access token collision")

// rowScanner abstracts pgx.Row and pgx.Rows for shared scan helpers
type rowScanner interface {
	Scan(dest ...any) error
}

// RegistrationRepository handles database operations for registrations
type RegistrationRepository struct {
	db *database.DB
}

// NewRegistrationRepository creates a new RegistrationRepository
func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, full_name, email, whatsapp_number, linkedin_url, resume_path,
	       is_waitlist, access_token_hash, created_at, cancelled_at`

func scanRegistrationRow(row rowScanner) (*models.Registration, error) {
	var reg models.Registration

	err := row.Scan(
		&reg.ID, &reg.FullName, &reg.Email, &reg.WhatsappNumber, &reg.LinkedinURL,
		&reg.ResumePath, &reg.IsWaitlist, &reg.AccessTokenHash, &reg.CreatedAt, &reg.CancelledAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &reg, nil
}

// Create inserts a registration. The unique index on email is the
// authoritative duplicate guard; a conflict surfaces as ErrConflict.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) (*models.Registration, error) {
	reg.ID = uuid.New().String()

	query := `
		INSERT INTO registrations (id, full_name, email, whatsapp_number, linkedin_url, resume_path, is_waitlist, access_token_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + registrationColumns

	row := r.db.Pool.QueryRow(
		ctx, query,
		reg.ID, reg.FullName, reg.Email, reg.WhatsappNumber, reg.LinkedinURL,
		reg.ResumePath, reg.IsWaitlist, reg.AccessTokenHash,
	)

	var created models.Registration
	err := row.Scan(
		&created.ID, &created.FullName, &created.Email, &created.WhatsappNumber, &created.LinkedinURL,
		&created.ResumePath, &created.IsWaitlist, &created.AccessTokenHash, &created.CreatedAt, &created.CancelledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "token") {
			return nil, ErrTokenCollision
		}
		return nil, database.MapPostgresError(err)
	}

	return &created, nil
}

// GetByTokenHash retrieves a registration by its access token hash
func (r *RegistrationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE access_token_hash = $1`
	return scanRegistrationRow(r.db.Pool.QueryRow(ctx, query, tokenHash))
}

// Cancel marks a registration cancelled. Idempotent: cancelling an
// already-cancelled registration leaves cancelled_at unchanged. The
// update and the unknown-token check run in one transaction so they see
// the same snapshot.
func (r *RegistrationRepository) Cancel(ctx context.Context, tokenHash string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE registrations SET cancelled_at = CURRENT_TIMESTAMP
			WHERE access_token_hash = $1 AND cancelled_at IS NULL
		`

		tag, err := tx.Exec(ctx, query, tokenHash)
		if err != nil {
			return fmt.Errorf("failed to cancel registration: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Either unknown token or already cancelled
			var exists bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM registrations WHERE access_token_hash = $1)`,
				tokenHash,
			).Scan(&exists)
			if err != nil {
				return database.MapPostgresError(err)
			}
			if !exists {
				return models.ErrNotFound
			}
		}
		return nil
	})
}

// CountActive returns the number of non-cancelled, non-waitlisted
// registrations. The waitlist decision compares this against capacity.
func (r *RegistrationRepository) CountActive(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE cancelled_at IS NULL AND is_waitlist = false`

	var count int64
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active registrations: %w", err)
	}
	return count, nil
}

// Counts returns headline registration numbers for the admin dashboard
func (r *RegistrationRepository) Counts(ctx context.Context) (total, waitlisted, cancelled int64, err error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_waitlist = true AND cancelled_at IS NULL),
		       COUNT(*) FILTER (WHERE cancelled_at IS NOT NULL)
		FROM registrations
	`

	err = r.db.Pool.QueryRow(ctx, query).Scan(&total, &waitlisted, &cancelled)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return total, waitlisted, cancelled, nil
}
