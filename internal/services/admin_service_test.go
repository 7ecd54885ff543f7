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

func newAdminFixture(t *testing.T) (*services.AdminService, *registrationFixture, *services.ViolationService) {
	t.Helper()
	f := newRegistrationFixture(t, 200)

	limiter := services.NewRateLimitService(f.counters, testRateLimitConfig(), testLogger())
	violationSvc := services.NewViolationService(f.violations, newMemAlertStore(), 5, testLogger())

	admin := services.NewAdminService(f.regs, limiter, f.blockSvc, violationSvc, testLogger())
	return admin, f, violationSvc
}

func TestAdminServiceEmailRateLimitInfo(t *testing.T) {
	admin, f, _ := newAdminFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.counters.Increment(ctx, "user@example.com", models.DimensionEmail, time.Now().Truncate(time.Hour))
		require.NoError(t, err)
	}

	info, err := admin.EmailRateLimitInfo(ctx, "User@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", info.Identifier, "lookup normalizes the same way admission does")
	assert.Equal(t, 2, info.Attempts)
	assert.Equal(t, 3, info.Limit)
	assert.Equal(t, 1, info.Remaining)
}

func TestAdminServiceEmailRateLimitInfo_InvalidEmail(t *testing.T) {
	admin, _, _ := newAdminFixture(t)

	_, err := admin.EmailRateLimitInfo(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAdminServiceIPRateLimitInfo_UnparsableIP(t *testing.T) {
	admin, _, _ := newAdminFixture(t)

	_, err := admin.IPRateLimitInfo(context.Background(), "not-an-ip")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAdminServiceRateLimitInfo_RemainingNeverNegative(t *testing.T) {
	admin, f, _ := newAdminFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.counters.Increment(ctx, "user@example.com", models.DimensionEmail, time.Now().Truncate(time.Hour))
		require.NoError(t, err)
	}

	info, err := admin.EmailRateLimitInfo(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 7, info.Attempts)
	assert.Equal(t, 0, info.Remaining)
}

func TestAdminServiceStats(t *testing.T) {
	admin, f, violationSvc := newAdminFixture(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := f.service.Register(ctx, validRequest(email, ""))
		require.NoError(t, err)
	}

	violationSvc.Log(ctx, models.Identifier{Value: "x@example.com", Dimension: models.DimensionEmail}, 4, models.ViolationMetadata{})

	_, err := f.blockSvc.Block(ctx, models.Identifier{Value: "203.0.113.7", Dimension: models.DimensionIP}, "testing", "admin", 0)
	require.NoError(t, err)

	stats, err := admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(0), stats.Waitlisted)
	assert.Equal(t, int64(0), stats.Cancelled)
	assert.Equal(t, int64(1), stats.Violations24)
	assert.Equal(t, int64(1), stats.ActiveBlocks)
}
