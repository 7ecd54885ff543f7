package repositories

import (
	"context"
	"fmt"

	"github.com/vin-sipoi/jengahacks-api/internal/database"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// PatternRepository persists detected violation patterns for the admin view
type PatternRepository struct {
	db *database.DB
}

// NewPatternRepository creates a new PatternRepository
func NewPatternRepository(db *database.DB) *PatternRepository {
	return &PatternRepository{db: db}
}

// Insert stores a detected pattern
func (r *PatternRepository) Insert(ctx context.Context, p *models.ViolationPattern) (*models.ViolationPattern, error) {
	query := `
		INSERT INTO violation_patterns (pattern_type, description, identifiers, violation_count, confidence_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, detected_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		p.PatternType, p.Description, p.Identifiers, p.ViolationCount, p.Confidence,
	).Scan(&p.ID, &p.DetectedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert pattern: %w", err)
	}

	return p, nil
}

// ListRecent returns stored patterns newest first
func (r *PatternRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.ViolationPattern, error) {
	query := `
		SELECT id, pattern_type, description, identifiers, violation_count, confidence_score, detected_at
		FROM violation_patterns
		ORDER BY detected_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	patterns := make([]*models.ViolationPattern, 0)
	for rows.Next() {
		var p models.ViolationPattern
		if err := rows.Scan(&p.ID, &p.PatternType, &p.Description, &p.Identifiers, &p.ViolationCount, &p.Confidence, &p.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern rows: %w", err)
	}

	return patterns, nil
}
