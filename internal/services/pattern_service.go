package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// PatternStore persists detected patterns for later admin review
type PatternStore interface {
	Insert(ctx context.Context, p *models.ViolationPattern) (*models.ViolationPattern, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*models.ViolationPattern, error)
}

// PatternService runs heuristic analysis over the violation log. Its
// output is advisory, for human review: it never creates blocks, only
// Auto-Escalation and manual admin action do that.
type PatternService struct {
	violations ViolationStore
	patterns   PatternStore
	logger     *slog.Logger
}

// NewPatternService creates a new PatternService
func NewPatternService(violations ViolationStore, patterns PatternStore, logger *slog.Logger) *PatternService {
	return &PatternService{
		violations: violations,
		patterns:   patterns,
		logger:     logger,
	}
}

// minCorrelatedEmails is the number of distinct emails behind one shared
// source before the group is considered a pattern.
const minCorrelatedEmails = 3

// rapidFireCount flags a single identifier violating this many times in
// the lookback window regardless of correlation.
const rapidFireCount = 20

// Detect scans violations within the lookback window and returns patterns
// with confidence >= minConfidence. Detected patterns are also persisted
// for the admin view; persistence failures degrade to log noise since the
// return value already carries the result.
func (s *PatternService) Detect(ctx context.Context, lookback time.Duration, minConfidence float64) ([]*models.ViolationPattern, error) {
	now := time.Now()
	since := now.Add(-lookback)

	found := make([]*models.ViolationPattern, 0)

	for _, dim := range []models.Dimension{models.DimensionIP, models.DimensionClient} {
		groups, err := s.violations.CorrelatedEmails(ctx, dim, since, minCorrelatedEmails)
		if err != nil {
			return nil, fmt.Errorf("pattern detection (%s): %w", dim, err)
		}

		patternType := models.PatternSharedIP
		noun := "IP"
		if dim == models.DimensionClient {
			patternType = models.PatternSharedClient
			noun = "client fingerprint"
		}

		for _, g := range groups {
			confidence := correlationConfidence(len(g.Emails), g.LastSeen, now, lookback)
			if confidence < minConfidence {
				continue
			}

			identifiers := append([]string{g.Source}, g.Emails...)
			found = append(found, &models.ViolationPattern{
				PatternType:    patternType,
				Description:    fmt.Sprintf("%d distinct emails behind one %s within %s", len(g.Emails), noun, lookback),
				Identifiers:    identifiers,
				ViolationCount: g.Count,
				Confidence:     confidence,
				DetectedAt:     now,
			})
		}
	}

	rapid, err := s.violations.GroupedSince(ctx, since, rapidFireCount)
	if err != nil {
		return nil, fmt.Errorf("pattern detection (rapid fire): %w", err)
	}
	for _, g := range rapid {
		confidence := correlationConfidence(g.Count/rapidFireCount+1, g.LastSeen, now, lookback)
		if confidence < minConfidence {
			continue
		}
		found = append(found, &models.ViolationPattern{
			PatternType:    models.PatternRapidFire,
			Description:    fmt.Sprintf("%d violations from one %s identifier within %s", g.Count, g.Dimension, lookback),
			Identifiers:    []string{g.Identifier},
			ViolationCount: g.Count,
			Confidence:     confidence,
			DetectedAt:     now,
		})
	}

	for _, p := range found {
		if _, err := s.patterns.Insert(ctx, p); err != nil {
			s.logger.Error("failed to persist detected pattern",
				slog.String("type", p.PatternType),
				slog.Any("error", err))
		}
	}

	return found, nil
}

// correlationConfidence normalizes (distinct-identifier-count x recency)
// to [0,1]. Five distinct identifiers seen within the last tenth of the
// window score near 1; stale or small groups decay toward the floor.
func correlationConfidence(distinct int, lastSeen, now time.Time, lookback time.Duration) float64 {
	size := float64(distinct) / 5.0
	if size > 1 {
		size = 1
	}

	age := now.Sub(lastSeen)
	if age < 0 {
		age = 0
	}
	recency := 1 - float64(age)/float64(lookback)
	if recency < 0.1 {
		recency = 0.1
	}

	conf := size * recency
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// Stored returns previously persisted patterns for the admin view
func (s *PatternService) Stored(ctx context.Context, limit, offset int) ([]*models.ViolationPattern, error) {
	return s.patterns.ListRecent(ctx, limit, offset)
}
