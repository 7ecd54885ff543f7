package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
)

func seedViolations(t *testing.T, store *memViolationStore, identifier string, dim models.Dimension, count int, age time.Duration) {
	t.Helper()
	for i := 0; i < count; i++ {
		rec := &models.ViolationRecord{
			Identifier:   identifier,
			Dimension:    dim,
			AttemptCount: 4,
			CreatedAt:    time.Now().Add(-age),
		}
		require.NoError(t, store.Insert(context.Background(), rec))
	}
}

func TestEscalationService_BlocksPersistentViolator(t *testing.T) {
	violations := newMemViolationStore()
	blocks := newMemBlockStore()
	blockSvc := services.NewBlockService(blocks, testAbuseConfig(), testLogger())
	service := services.NewEscalationService(violations, blockSvc, 0, testLogger())
	ctx := context.Background()

	seedViolations(t, violations, "persistent@example.com", models.DimensionEmail, 10, time.Hour)
	seedViolations(t, violations, "casual@example.com", models.DimensionEmail, 3, time.Hour)

	blocked, err := service.AutoBlockPersistentViolators(ctx, 10, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "persistent@example.com", blocked[0].Value)
	assert.Equal(t, models.DimensionEmail, blocked[0].Dimension)

	entry, err := blocks.GetActive(ctx, "persistent@example.com", models.DimensionEmail)
	require.NoError(t, err)
	assert.Equal(t, services.EscalationReason, entry.Reason)
	assert.Equal(t, models.BlockedByEscalation, entry.BlockedBy)

	isBlocked, err := blockSvc.IsBlocked(ctx, models.Identifier{Value: "casual@example.com", Dimension: models.DimensionEmail})
	require.NoError(t, err)
	assert.False(t, isBlocked, "below threshold stays unblocked")
}

func TestEscalationService_SecondRunIsIdempotent(t *testing.T) {
	violations := newMemViolationStore()
	blocks := newMemBlockStore()
	blockSvc := services.NewBlockService(blocks, testAbuseConfig(), testLogger())
	service := services.NewEscalationService(violations, blockSvc, 0, testLogger())
	ctx := context.Background()

	seedViolations(t, violations, "persistent@example.com", models.DimensionEmail, 12, time.Hour)

	first, err := service.AutoBlockPersistentViolators(ctx, 10, 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := service.AutoBlockPersistentViolators(ctx, 10, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, second, "already-blocked identifiers are not re-reported")

	count, err := blocks.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEscalationService_LookbackExcludesOldViolations(t *testing.T) {
	violations := newMemViolationStore()
	blockSvc := services.NewBlockService(newMemBlockStore(), testAbuseConfig(), testLogger())
	service := services.NewEscalationService(violations, blockSvc, 0, testLogger())

	seedViolations(t, violations, "historic@example.com", models.DimensionEmail, 50, 48*time.Hour)

	blocked, err := service.AutoBlockPersistentViolators(context.Background(), 10, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, blocked)
}

func TestEscalationService_BlocksAcrossDimensions(t *testing.T) {
	violations := newMemViolationStore()
	blocks := newMemBlockStore()
	blockSvc := services.NewBlockService(blocks, testAbuseConfig(), testLogger())
	service := services.NewEscalationService(violations, blockSvc, 0, testLogger())
	ctx := context.Background()

	seedViolations(t, violations, "persistent@example.com", models.DimensionEmail, 10, time.Hour)
	seedViolations(t, violations, "203.0.113.7", models.DimensionIP, 15, time.Hour)

	blocked, err := service.AutoBlockPersistentViolators(ctx, 10, 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, blocked, 2)

	count, err := blocks.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestEscalationService_TTLBlocksCarryExpiry(t *testing.T) {
	violations := newMemViolationStore()
	blocks := newMemBlockStore()
	blockSvc := services.NewBlockService(blocks, testAbuseConfig(), testLogger())
	service := services.NewEscalationService(violations, blockSvc, 48*time.Hour, testLogger())
	ctx := context.Background()

	seedViolations(t, violations, "persistent@example.com", models.DimensionEmail, 10, time.Hour)

	_, err := service.AutoBlockPersistentViolators(ctx, 10, 24*time.Hour)
	require.NoError(t, err)

	entry, err := blocks.GetActive(ctx, "persistent@example.com", models.DimensionEmail)
	require.NoError(t, err)
	require.NotNil(t, entry.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), *entry.ExpiresAt, time.Minute)
}
