package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vin-sipoi/jengahacks-api/internal/config"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
)

func testAbuseConfig() config.AbuseConfig {
	return config.AbuseConfig{
		BlockFailModeEmail: config.FailClosed,
		BlockFailModeIP:    config.FailOpen,
		RateFailMode:       config.FailOpen,
	}
}

func TestBlockServiceBlock_CreatesNewBlock(t *testing.T) {
	store := newMemBlockStore()
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())
	ctx := context.Background()

	id := models.Identifier{Value: "abuser@example.com", Dimension: models.DimensionEmail}
	created, err := service.Block(ctx, id, "manual review", "admin", 0)
	require.NoError(t, err)
	assert.True(t, created)

	blocked, err := service.IsBlocked(ctx, id)
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestBlockServiceBlock_IdempotentOnActiveBlock(t *testing.T) {
	store := newMemBlockStore()
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())
	ctx := context.Background()

	id := models.Identifier{Value: "abuser@example.com", Dimension: models.DimensionEmail}

	created, err := service.Block(ctx, id, "first reason", "admin", 0)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = service.Block(ctx, id, "updated reason", "admin", 0)
	require.NoError(t, err)
	assert.False(t, created, "re-blocking must not create a second entry")

	entries, err := service.ListActive(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "updated reason", entries[0].Reason)
}

func TestBlockServiceUnblock_NoopWhenNotBlocked(t *testing.T) {
	store := newMemBlockStore()
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())

	id := models.Identifier{Value: "nobody@example.com", Dimension: models.DimensionEmail}
	err := service.Unblock(context.Background(), id, "admin")
	assert.NoError(t, err)
}

func TestBlockServiceUnblock_DeactivatesBlock(t *testing.T) {
	store := newMemBlockStore()
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())
	ctx := context.Background()

	id := models.Identifier{Value: "203.0.113.7", Dimension: models.DimensionIP}
	_, err := service.Block(ctx, id, "testing", "admin", 0)
	require.NoError(t, err)

	require.NoError(t, service.Unblock(ctx, id, "admin"))

	blocked, err := service.IsBlocked(ctx, id)
	require.NoError(t, err)
	assert.False(t, blocked)

	// Blocking again after an unblock creates a fresh entry
	created, err := service.Block(ctx, id, "again", "admin", 0)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestBlockServiceIsBlocked_ExpiredTTLBlockIsNotActive(t *testing.T) {
	store := newMemBlockStore()
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())
	ctx := context.Background()

	id := models.Identifier{Value: "203.0.113.7", Dimension: models.DimensionIP}
	expired := time.Now().Add(-1 * time.Minute)
	_, _, err := store.Upsert(ctx, id.Value, id.Dimension, "short ttl", "admin", &expired)
	require.NoError(t, err)

	blocked, err := service.IsBlocked(ctx, id)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlockServiceGate_EmailFailsClosed(t *testing.T) {
	store := newMemBlockStore()
	store.failErr = errors.New("connection refused")
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())

	id := models.Identifier{Value: "user@example.com", Dimension: models.DimensionEmail}
	_, err := service.Gate(context.Background(), id)
	assert.Error(t, err)
}

func TestBlockServiceGate_IPFailsOpen(t *testing.T) {
	store := newMemBlockStore()
	store.failErr = errors.New("connection refused")
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())

	id := models.Identifier{Value: "203.0.113.7", Dimension: models.DimensionIP}
	blocked, err := service.Gate(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlockServiceGate_ClientAlwaysFailsOpen(t *testing.T) {
	cfg := testAbuseConfig()
	cfg.BlockFailModeEmail = config.FailClosed
	cfg.BlockFailModeIP = config.FailClosed

	store := newMemBlockStore()
	store.failErr = errors.New("connection refused")
	service := services.NewBlockService(store, cfg, testLogger())

	id := models.Identifier{Value: "fp-abc123", Dimension: models.DimensionClient}
	blocked, err := service.Gate(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlockServiceGate_BlockedIdentifierIsReported(t *testing.T) {
	store := newMemBlockStore()
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())
	ctx := context.Background()

	id := models.Identifier{Value: "abuser@example.com", Dimension: models.DimensionEmail}
	_, err := service.Block(ctx, id, "manual review", "admin", 0)
	require.NoError(t, err)

	blocked, err := service.Gate(ctx, id)
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestBlockService_BlockSameValueDifferentDimensions(t *testing.T) {
	store := newMemBlockStore()
	service := services.NewBlockService(store, testAbuseConfig(), testLogger())
	ctx := context.Background()

	emailID := models.Identifier{Value: "dual", Dimension: models.DimensionEmail}
	ipID := models.Identifier{Value: "dual", Dimension: models.DimensionIP}

	created, err := service.Block(ctx, emailID, "email abuse", "admin", 0)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = service.Block(ctx, ipID, "ip abuse", "admin", 0)
	require.NoError(t, err)
	assert.True(t, created, "dimensions are independent namespaces")

	count, err := service.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
