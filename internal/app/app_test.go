package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/config"
	"commodity-price-portal/internal/database"
	"commodity-price-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSourcesFollowConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Structured.Enabled = true
	cfg.Source.Structured.Endpoints = []string{"https://prices.example/api"}
	cfg.Source.Rendered.Enabled = true
	cfg.Source.Rendered.URL = "https://prices.example/table"

	sources := Sources(cfg, clock.New(), zap.NewNop())
	require.Len(t, sources, 2)
	assert.Equal(t, models.StrategyStructured, sources[0].Strategy())
	assert.Equal(t, models.StrategyRendered, sources[1].Strategy())

	cfg.Source.Rendered.URL = ""
	assert.Len(t, Sources(cfg, clock.New(), zap.NewNop()), 1)
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy(config.RetryConfig{})
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)

	p = RetryPolicy(config.RetryConfig{MaxAttempts: 5, BaseDelayMs: 200, MaxDelaySeconds: 4})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 4*time.Second, p.MaxDelay)
}

// structured endpoint -> ingestion -> aggregation -> national read
func TestDailyPathEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"komoditas":"Beras Medium","provinsi":"Aceh","harga":"Rp 10.000","satuan":"kg","tanggal":"2024-03-05"},
			{"komoditas":"Beras Medium","provinsi":"Bali","harga":"Rp 12.000","satuan":"kg","tanggal":"2024-03-05"},
			{"komoditas":"Beras Medium","provinsi":"Riau","harga":"Rp 14.000","satuan":"kg","tanggal":"2024-03-05"}
		]}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Timezone = "Asia/Jakarta"
	cfg.Source.Structured.Enabled = true
	cfg.Source.Structured.Endpoints = []string{srv.URL}
	cfg.Source.Structured.RequestDelaySeconds = 0
	cfg.Source.Rendered.Enabled = false
	cfg.Search.Meilisearch.Enabled = false

	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	a, err := Assemble(cfg, db, clock.NewFakeClock(time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC)), zap.NewNop())
	require.NoError(t, err)

	res, err := a.Scheduler.TriggerIngestionNow(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RunOutcomeSuccess, res.Run.Outcome, res.Run.Errors)
	assert.Equal(t, 3, res.Run.ItemCount)
	require.Len(t, res.National, 1)
	assert.Equal(t, int64(12000), res.National[0].Price)

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	rec, err := a.Store.GetRecord(context.Background(), models.CommodityRice, models.RegionNational, day)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), rec.Price)

}
