package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/database"
	"commodity-price-portal/internal/metrics"
	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/persistence"
	"commodity-price-portal/internal/retry"
	"commodity-price-portal/internal/scraper"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)

type fakeSource struct {
	name     string
	strategy models.FetchStrategy
	rows     []models.PriceObservation
	err      error
	calls    int
}

func (f *fakeSource) Name() string                   { return f.name }
func (f *fakeSource) Strategy() models.FetchStrategy { return f.strategy }

func (f *fakeSource) Fetch(ctx context.Context) ([]models.PriceObservation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func newCoordinator(t *testing.T, sources ...scraper.Source) (*Coordinator, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clk := clock.NewFakeClock(now)
	store := persistence.NewStore(db)
	writer := persistence.NewWriter(store, time.FixedZone("WIB", 7*3600), 2, clk, zap.NewNop())
	return NewCoordinator(Params{
		Sources: sources,
		Policy:  fastPolicy(),
		Writer:  writer,
		Store:   store,
		Clock:   clk,
		Log:     zap.NewNop(),
	}), db
}

func row(commodity, region string, price int64) models.PriceObservation {
	return models.PriceObservation{
		CommodityLabel: commodity,
		RegionLabel:    region,
		Price:          price,
		Unit:           "kg",
		ObservedAt:     now,
		SourceRef:      "https://prices.example/api",
	}
}

func TestRunFallsBackToRenderedAfterStructuredExhausts(t *testing.T) {
	structured := &fakeSource{
		name:     "structured",
		strategy: models.StrategyStructured,
		err:      &scraper.FetchFailure{Adapter: "structured", Cause: scraper.CauseHTTPStatus, StatusCode: 503, Err: errors.New("unavailable")},
	}
	rendered := &fakeSource{
		name:     "rendered",
		strategy: models.StrategyRendered,
		rows:     []models.PriceObservation{row("Beras Medium", "Aceh", 12000)},
	}
	c, db := newCoordinator(t, structured, rendered)

	run := c.Run(context.Background())

	assert.Equal(t, 3, structured.calls)
	assert.Equal(t, 1, rendered.calls)
	assert.Equal(t, models.RunOutcomeSuccess, run.Outcome)
	assert.Equal(t, models.StrategyRendered, run.Strategy)
	assert.Equal(t, 1, run.ItemCount)
	require.NotEmpty(t, run.Errors)
	assert.Contains(t, run.Errors[0], "structured")

	var saved models.IngestionRun
	require.NoError(t, db.First(&saved, "id = ?", run.ID).Error)
	assert.Equal(t, models.StrategyRendered, saved.Strategy)
}

func TestRunTwiceKeepsOneRecordAndTwoHistoryRows(t *testing.T) {
	src := &fakeSource{
		name:     "structured",
		strategy: models.StrategyStructured,
		rows:     []models.PriceObservation{row("beras", "aceh", 12000)},
	}
	c, db := newCoordinator(t, src)
	ctx := context.Background()

	first := c.Run(ctx)
	second := c.Run(ctx)
	assert.NotEqual(t, first.ID, second.ID)

	var records, history, runs int64
	require.NoError(t, db.Model(&models.CommodityRecord{}).Count(&records).Error)
	require.NoError(t, db.Model(&models.PriceHistoryEntry{}).Count(&history).Error)
	require.NoError(t, db.Model(&models.IngestionRun{}).Count(&runs).Error)
	assert.Equal(t, int64(1), records)
	assert.Equal(t, int64(2), history)
	assert.Equal(t, int64(2), runs)

	require.Len(t, second.PriceDates, 1)
	assert.True(t, second.PriceDates[0].Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
}

func TestRunWithEveryAdapterExhaustedLeavesRecordsUntouched(t *testing.T) {
	structured := &fakeSource{name: "structured", strategy: models.StrategyStructured, err: errors.New("connection refused")}
	rendered := &fakeSource{
		name:     "rendered",
		strategy: models.StrategyRendered,
		err:      &scraper.FetchFailure{Adapter: "rendered", Cause: scraper.CauseNavigationTimeout, Err: context.DeadlineExceeded},
	}
	c, db := newCoordinator(t, structured, rendered)

	run := c.Run(context.Background())

	assert.Equal(t, models.RunOutcomeFailure, run.Outcome)
	assert.Equal(t, models.StrategyNone, run.Strategy)
	assert.Zero(t, run.ItemCount)
	require.Len(t, run.Errors, 2)
	assert.Contains(t, run.Errors[0], "connection refused")
	assert.Contains(t, run.Errors[1], "rendered")

	var records int64
	require.NoError(t, db.Model(&models.CommodityRecord{}).Count(&records).Error)
	assert.Zero(t, records)

	var saved models.IngestionRun
	require.NoError(t, db.First(&saved, "id = ?", run.ID).Error)
	assert.Equal(t, models.RunOutcomeFailure, saved.Outcome)
	assert.Len(t, saved.Errors, 2)
}

func TestFetchAttemptsAreLabelledByCause(t *testing.T) {
	structured := &fakeSource{
		name:     "structured",
		strategy: models.StrategyStructured,
		err:      &scraper.FetchFailure{Adapter: "structured", Cause: scraper.CauseParse, Err: errors.New("unexpected token")},
	}
	rendered := &fakeSource{
		name:     "rendered",
		strategy: models.StrategyRendered,
		rows:     []models.PriceObservation{row("Beras", "Jawa Barat", 12000)},
	}
	c, _ := newCoordinator(t, structured, rendered)
	reg := prometheus.NewRegistry()
	c.metrics = metrics.New(reg)

	run := c.Run(context.Background())
	require.Equal(t, models.RunOutcomeSuccess, run.Outcome)

	attempts := fetchAttempts(t, reg)
	assert.Equal(t, 3.0, attempts["structured/parse"])
	assert.Equal(t, 1.0, attempts["rendered/ok"])
}

func TestAttemptResult(t *testing.T) {
	assert.Equal(t, "ok", attemptResult(nil))
	assert.Equal(t, "unclassified", attemptResult(errors.New("boom")))
	wrapped := fmt.Errorf("attempt 2: %w", &scraper.FetchFailure{Cause: scraper.CauseHTTPStatus, StatusCode: 503})
	assert.Equal(t, "http-status", attemptResult(wrapped))
}

// fetchAttempts flattens the fetch attempt counter into "adapter/result" keys
func fetchAttempts(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "price_source_fetch_attempts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out[labels["adapter"]+"/"+labels["result"]] = m.GetCounter().GetValue()
		}
	}
	return out
}

func TestRunSkipsUnmappedAndNationalRows(t *testing.T) {
	src := &fakeSource{
		name:     "structured",
		strategy: models.StrategyStructured,
		rows: []models.PriceObservation{
			row("beras", "aceh", 12000),
			row("durian", "aceh", 50000),
			row("beras", "atlantis", 12000),
			row("beras", "nasional", 13000),
		},
	}
	c, db := newCoordinator(t, src)

	run := c.Run(context.Background())

	assert.Equal(t, models.RunOutcomeSuccess, run.Outcome)
	assert.Equal(t, 1, run.ItemCount)
	assert.Equal(t, 3, run.SkippedCount)
	assert.Len(t, run.Errors, 3)

	var national int64
	require.NoError(t, db.Model(&models.CommodityRecord{}).
		Where("region = ?", models.RegionNational).Count(&national).Error)
	assert.Zero(t, national)
}
