package app

import (
	"fmt"

	"commodity-price-portal/internal/aggregator"
	"commodity-price-portal/internal/cleanup"
	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/config"
	"commodity-price-portal/internal/database"
	"commodity-price-portal/internal/ingestion"
	"commodity-price-portal/internal/metrics"
	"commodity-price-portal/internal/normalizer"
	"commodity-price-portal/internal/persistence"
	"commodity-price-portal/internal/ratelimit"
	"commodity-price-portal/internal/retry"
	"commodity-price-portal/internal/scheduler"
	"commodity-price-portal/internal/scraper"
	"commodity-price-portal/internal/search"
	"commodity-price-portal/internal/subscription"
	"commodity-price-portal/internal/tier"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds every long-lived component of the process
type App struct {
	Config       *config.Config
	Log          *zap.Logger
	DB           *database.GormDB
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Normalizer   *normalizer.Normalizer
	Store        *persistence.Store
	Writer       *persistence.Writer
	Coordinator  *ingestion.Coordinator
	Aggregator   *aggregator.Aggregator
	Reconciler   *subscription.Reconciler
	Entitlements *subscription.GormEntitlementSource
	Cleanup      *cleanup.Service
	Gateway      *tier.Gateway
	Scheduler    *scheduler.Scheduler
	// Search is nil when Meilisearch is disabled
	Search *search.SearchClient
}

// New opens the database and builds the component graph
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	gdb, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := gdb.InitSchema(); err != nil {
		gdb.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	a, err := Assemble(cfg, gdb.DB(), clock.New(), log)
	if err != nil {
		gdb.Close()
		return nil, err
	}
	a.DB = gdb
	return a, nil
}

// Assemble builds the components over an existing gorm handle
func Assemble(cfg *config.Config, db *gorm.DB, clk clock.Clock, log *zap.Logger) (*App, error) {
	norm, err := normalizer.FromFile(cfg.Normalizer.MappingFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load normalizer mapping: %w", err)
	}

	loc := cfg.Location()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	store := persistence.NewStore(db)
	writer := persistence.NewWriter(store, loc, cfg.Persistence.Concurrency, clk, log)

	a := &App{
		Config:       cfg,
		Log:          log,
		Registry:     registry,
		Metrics:      m,
		Normalizer:   norm,
		Store:        store,
		Writer:       writer,
		Aggregator:   aggregator.New(store, writer, log),
		Reconciler:   subscription.NewReconciler(db, clk, log),
		Entitlements: subscription.NewGormEntitlementSource(db),
		Cleanup:      cleanup.NewService(db, loc, clk, log),
		Gateway: tier.NewGateway(store, tier.Config{
			LookbackDays:   cfg.Tier.LookbackDays,
			MaxHistoryDays: cfg.Tier.MaxHistoryDays,
			Location:       loc,
		}, clk, log),
	}

	a.Coordinator = ingestion.NewCoordinator(ingestion.Params{
		Sources:    Sources(cfg, clk, log),
		Policy:     RetryPolicy(cfg.Retry),
		Normalizer: norm,
		Writer:     writer,
		Store:      store,
		Metrics:    m,
		Clock:      clk,
		Log:        log,
	})

	deps := scheduler.Deps{
		Ingester:   a.Coordinator,
		Aggregator: a.Aggregator,
		Expirer:    a.Reconciler,
		Retention:  a.Cleanup,
		Metrics:    m,
		Clock:      clk,
	}
	if ms := cfg.Search.Meilisearch; ms.Enabled {
		a.Search = search.NewSearchClient(ms.Host, ms.APIKey, ms.Index, log)
		deps.Publisher = a.Search
	}
	a.Scheduler = scheduler.NewScheduler(cfg, deps, log)

	return a, nil
}

// Sources builds the enabled adapters in priority order: structured first, rendered page as fallback
func Sources(cfg *config.Config, clk clock.Clock, log *zap.Logger) []scraper.Source {
	loc := cfg.Location()
	var sources []scraper.Source

	st := cfg.Source.Structured
	if st.Enabled && len(st.Endpoints) > 0 {
		delay := st.GetRequestDelay()
		sources = append(sources, scraper.NewStructuredAdapter(scraper.StructuredConfig{
			Endpoints: st.Endpoints,
			Timeout:   st.GetTimeout(),
			UserAgent: st.UserAgent,
			Location:  loc,
		}, ratelimit.NewPacer(delay, delay/2), clk, log))
	}

	rd := cfg.Source.Rendered
	if rd.Enabled && rd.URL != "" {
		sources = append(sources, scraper.NewRenderedAdapter(scraper.RenderedConfig{
			URL:          rd.URL,
			WaitSelector: rd.WaitSelector,
			RowSelector:  rd.RowSelector,
			Columns: scraper.Columns{
				Commodity: rd.Columns.Commodity,
				Region:    rd.Columns.Region,
				Price:     rd.Columns.Price,
				Unit:      rd.Columns.Unit,
				Date:      rd.Columns.Date,
			},
			Timeout:  rd.GetTimeout(),
			Location: loc,
		}, scraper.ChromeLauncher(scraper.ChromeOptions{
			ExecPath:  rd.ExecPath,
			UserAgent: rd.UserAgent,
		}), clk, log))
	}

	if len(sources) == 0 {
		log.Warn("No price source is enabled; ingestion runs will fail")
	}
	return sources
}

// RetryPolicy maps the retry section onto a policy
func RetryPolicy(cfg config.RetryConfig) retry.Policy {
	p := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if d := cfg.GetBaseDelay(); d > 0 {
		p.BaseDelay = d
	}
	if d := cfg.GetMaxDelay(); d > 0 {
		p.MaxDelay = d
	}
	p.Jitter = cfg.RandomizationRatio
	return p
}

// Close releases the database handle
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
