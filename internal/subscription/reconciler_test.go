package subscription

import (
	"context"
	"testing"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/database"
	"commodity-price-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, id string, tier models.Tier, subs ...models.Subscription) {
	t.Helper()
	require.NoError(t, db.Create(&models.Account{ID: id, Tier: tier}).Error)
	for i := range subs {
		subs[i].AccountID = id
		require.NoError(t, db.Create(&subs[i]).Error)
	}
}

func sub(status models.SubscriptionStatus, end time.Time) models.Subscription {
	return models.Subscription{Plan: "monthly", Status: status, StartDate: end.AddDate(0, -1, 0), EndDate: end}
}

func tierOf(t *testing.T, db *gorm.DB, id string) models.Tier {
	t.Helper()
	var acc models.Account
	require.NoError(t, db.First(&acc, "id = ?", id).Error)
	return acc.Tier
}

func TestExpireDueDowngradesLapsedAccounts(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "lapsed", models.TierPremium, sub(models.SubscriptionStatusActive, now.Add(-time.Hour)))
	seedAccount(t, db, "renewed", models.TierPremium,
		sub(models.SubscriptionStatusActive, now.Add(-time.Hour)),
		sub(models.SubscriptionStatusActive, now.AddDate(0, 1, 0)),
	)
	seedAccount(t, db, "current", models.TierPremium, sub(models.SubscriptionStatusActive, now.Add(time.Hour)))

	r := NewReconciler(db, clock.NewFakeClock(now), zap.NewNop())
	res, err := r.ExpireDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 1, res.Downgraded)
	assert.Equal(t, models.TierFree, tierOf(t, db, "lapsed"))
	assert.Equal(t, models.TierPremium, tierOf(t, db, "renewed"))
	assert.Equal(t, models.TierPremium, tierOf(t, db, "current"))
}

func TestExpireDueIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "lapsed", models.TierPremium, sub(models.SubscriptionStatusActive, now.Add(-time.Hour)))
	r := NewReconciler(db, clock.NewFakeClock(now), zap.NewNop())
	ctx := context.Background()

	_, err := r.ExpireDue(ctx)
	require.NoError(t, err)
	again, err := r.ExpireDue(ctx)
	require.NoError(t, err)

	assert.Zero(t, again.Expired)
	assert.Zero(t, again.Downgraded)
	assert.Equal(t, models.TierFree, tierOf(t, db, "lapsed"))
}

func TestGetEntitlement(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "premium", models.TierPremium, sub(models.SubscriptionStatusActive, now.AddDate(0, 0, 10)))
	seedAccount(t, db, "expired", models.TierFree, sub(models.SubscriptionStatusExpired, now.AddDate(0, 0, -3)))
	seedAccount(t, db, "free", models.TierFree)
	src := NewGormEntitlementSource(db)
	ctx := context.Background()

	ent, err := src.GetEntitlement(ctx, "premium")
	require.NoError(t, err)
	assert.Equal(t, models.EntitlementPremium, ent.Status)
	require.NotNil(t, ent.ExpiresAt)
	assert.True(t, ent.IsPremiumAt(now))

	ent, err = src.GetEntitlement(ctx, "expired")
	require.NoError(t, err)
	assert.Equal(t, models.EntitlementExpired, ent.Status)
	assert.False(t, ent.IsPremiumAt(now))

	ent, err = src.GetEntitlement(ctx, "free")
	require.NoError(t, err)
	assert.Equal(t, models.EntitlementFree, ent.Status)
	assert.Nil(t, ent.ExpiresAt)

	ent, err = src.GetEntitlement(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, models.EntitlementFree, ent.Status)
}
