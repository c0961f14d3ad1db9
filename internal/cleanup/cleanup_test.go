package cleanup

import (
	"context"
	"testing"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/database"
	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)

func seeded(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clk := clock.NewFakeClock(now)
	w := persistence.NewWriter(persistence.NewStore(db), time.UTC, 1, clk, zap.NewNop())
	var batch []models.NormalizedObservation
	for _, age := range []int{1, 10, 100, 200} {
		batch = append(batch, models.NormalizedObservation{
			Commodity:  models.CommodityRice,
			Region:     models.RegionAceh,
			Price:      12000,
			Unit:       "kg",
			ObservedAt: now.AddDate(0, 0, -age),
		})
	}
	require.Equal(t, 4, w.Upsert(context.Background(), batch).Succeeded)

	return NewService(db, time.UTC, clk, zap.NewNop()), db
}

func counts(t *testing.T, db *gorm.DB) (active, history int64) {
	t.Helper()
	require.NoError(t, db.Model(&models.CommodityRecord{}).Where("active = ?", true).Count(&active).Error)
	require.NoError(t, db.Model(&models.PriceHistoryEntry{}).Count(&history).Error)
	return active, history
}

func TestRunDeactivatesRecordsAndPrunesHistory(t *testing.T) {
	svc, db := seeded(t)

	res, err := svc.Run(context.Background(), CleanupConfig{RecordDays: 30, HistoryDays: 150, MaxDeletionCount: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.DeactivatedRecords)
	assert.Equal(t, int64(1), res.PrunedHistory)

	active, history := counts(t, db)
	assert.Equal(t, int64(2), active)
	assert.Equal(t, int64(3), history)

	var total int64
	require.NoError(t, db.Model(&models.CommodityRecord{}).Count(&total).Error)
	assert.Equal(t, int64(4), total)
}

func TestDryRunChangesNothing(t *testing.T) {
	svc, db := seeded(t)

	res, err := svc.Run(context.Background(), CleanupConfig{RecordDays: 30, HistoryDays: 150, MaxDeletionCount: 10, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, int64(2), res.DeactivatedRecords)
	assert.Equal(t, int64(1), res.PrunedHistory)

	active, history := counts(t, db)
	assert.Equal(t, int64(4), active)
	assert.Equal(t, int64(4), history)
}

func TestSafetyLimitAbortsRun(t *testing.T) {
	svc, db := seeded(t)

	_, err := svc.Run(context.Background(), CleanupConfig{RecordDays: 5, HistoryDays: 5, MaxDeletionCount: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safety check failed")

	active, history := counts(t, db)
	assert.Equal(t, int64(4), active)
	assert.Equal(t, int64(4), history)
}

func TestGetStats(t *testing.T) {
	svc, _ := seeded(t)

	stats, err := svc.GetStats(context.Background(), CleanupConfig{RecordDays: 30, HistoryDays: 150})
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats["active_records"])
	assert.Equal(t, int64(2), stats["records_ready_for_deactivation"])
	assert.Equal(t, int64(1), stats["history_ready_for_pruning"])
}
