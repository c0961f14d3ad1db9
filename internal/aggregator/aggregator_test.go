package aggregator

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
)

var (
	wib = time.FixedZone("WIB", 7*3600)
	now = time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC)
	day = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
)

func setup(t *testing.T) (*Aggregator, *persistence.Store, *persistence.Writer) {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := persistence.NewStore(db)
	writer := persistence.NewWriter(store, wib, 2, clock.NewFakeClock(now), zap.NewNop())
	return New(store, writer, zap.NewNop()), store, writer
}

func regional(c models.Commodity, r models.Region, price int64) models.NormalizedObservation {
	return models.NormalizedObservation{Commodity: c, Region: r, Price: price, Unit: "kg", ObservedAt: now}
}

func TestNationalAverageIsRoundedMean(t *testing.T) {
	agg, store, writer := setup(t)
	ctx := context.Background()

	writer.Upsert(ctx, []models.NormalizedObservation{
		regional(models.CommodityRice, models.RegionAceh, 10000),
		regional(models.CommodityRice, models.RegionBali, 12000),
		regional(models.CommodityRice, models.RegionRiau, 14000),
	})

	written, err := agg.ComputeNationalAverages(ctx, day)
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, int64(12000), written[0].Price)

	rec, err := store.GetRecord(ctx, models.CommodityRice, models.RegionNational, day)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), rec.Price)
	assert.Equal(t, "kg", rec.Unit)
}

func TestNoNationalRecordWithoutInputs(t *testing.T) {
	agg, store, writer := setup(t)
	ctx := context.Background()

	writer.Upsert(ctx, []models.NormalizedObservation{
		regional(models.CommodityRice, models.RegionAceh, 10000),
	})

	_, err := agg.ComputeNationalAverages(ctx, day)
	require.NoError(t, err)

	_, err = store.GetRecord(ctx, models.CommoditySugar, models.RegionNational, day)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	// another day has no inputs at all
	written, err := agg.ComputeNationalAverages(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestAggregationIsIdempotentAndIgnoresPreviousNational(t *testing.T) {
	agg, store, writer := setup(t)
	ctx := context.Background()

	writer.Upsert(ctx, []models.NormalizedObservation{
		regional(models.CommodityEgg, models.RegionAceh, 27000),
		regional(models.CommodityEgg, models.RegionBali, 28001),
	})

	_, err := agg.ComputeNationalAverages(ctx, day)
	require.NoError(t, err)
	_, err = agg.ComputeNationalAverages(ctx, day)
	require.NoError(t, err)

	rec, err := store.GetRecord(ctx, models.CommodityEgg, models.RegionNational, day)
	require.NoError(t, err)
	// 27500.5 rounds up, and the first national value is not averaged back in
	assert.Equal(t, int64(27501), rec.Price)

	var count int64
	require.NoError(t, store.DB().Model(&models.CommodityRecord{}).
		Where("region = ?", models.RegionNational).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMean(t *testing.T) {
	recs := func(prices ...int64) []models.CommodityRecord {
		out := make([]models.CommodityRecord, len(prices))
		for i, p := range prices {
			out[i].Price = p
		}
		return out
	}
	assert.Equal(t, int64(12000), Mean(recs(10000, 12000, 14000)))
	assert.Equal(t, int64(2), Mean(recs(1, 2)))
	assert.Equal(t, int64(1), Mean(recs(1, 1, 2)))
	assert.Equal(t, int64(0), Mean(nil))
}
