package ingestion

import (
	"context"
	"fmt"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/metrics"
	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/normalizer"
	"commodity-price-portal/internal/persistence"
	"commodity-price-portal/internal/retry"
	"commodity-price-portal/internal/scraper"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRunNotes bounds the error list stored on a run
const maxRunNotes = 100

// Coordinator performs one ingestion run: fetch, normalize, persist, record
type Coordinator struct {
	sources    []scraper.Source
	policy     retry.Policy
	normalizer *normalizer.Normalizer
	writer     *persistence.Writer
	store      *persistence.Store
	metrics    *metrics.Metrics
	clock      clock.Clock
	log        *zap.Logger
}

// Params are the coordinator's collaborators. Sources are tried in order.
type Params struct {
	Sources    []scraper.Source
	Policy     retry.Policy
	Normalizer *normalizer.Normalizer
	Writer     *persistence.Writer
	Store      *persistence.Store
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	Log        *zap.Logger
}

func NewCoordinator(p Params) *Coordinator {
	if p.Clock == nil {
		p.Clock = clock.New()
	}
	if p.Normalizer == nil {
		p.Normalizer = normalizer.Default()
	}
	return &Coordinator{
		sources:    p.Sources,
		policy:     p.Policy,
		normalizer: p.Normalizer,
		writer:     p.Writer,
		store:      p.Store,
		metrics:    p.Metrics,
		clock:      p.Clock,
		log:        p.Log.Named("ingestion"),
	}
}

// Run never returns an error: every outcome, including total failure, is recorded on the run
func (c *Coordinator) Run(ctx context.Context) *models.IngestionRun {
	started := c.clock.Now().UTC()
	run := &models.IngestionRun{
		ID:        uuid.NewString(),
		Strategy:  models.StrategyNone,
		StartedAt: started,
	}
	log := c.log.With(zap.String("run_id", run.ID))
	log.Info("Ingestion run started", zap.Int("sources", len(c.sources)))

	notes := &noteList{}
	observations, strategy, ok := c.fetch(ctx, log, notes)
	if !ok {
		run.Outcome = models.RunOutcomeFailure
		c.finish(ctx, log, run, notes)
		return run
	}
	run.Strategy = strategy

	normalized, skipped := c.normalize(observations, notes)
	run.SkippedCount = skipped

	res := c.writer.UpsertForRun(ctx, run.ID, normalized)
	run.ItemCount = res.Succeeded
	run.FailedCount = res.Failed
	run.PriceDates = res.Dates
	for _, e := range res.Errors {
		notes.add(e)
	}

	run.Outcome = models.RunOutcomeSuccess
	c.metrics.RecordObservations("persisted", res.Succeeded)
	c.metrics.RecordObservations("skipped", skipped)
	c.metrics.RecordObservations("failed", res.Failed)
	c.finish(ctx, log, run, notes)
	return run
}

// fetch tries each source in priority order through the retry policy, one at a time
func (c *Coordinator) fetch(ctx context.Context, log *zap.Logger, notes *noteList) ([]models.PriceObservation, models.FetchStrategy, bool) {
	for _, src := range c.sources {
		policy := c.policy
		policy.OnRetry = func(attempt int, err error, next time.Duration) {
			log.Warn("Fetch attempt failed, retrying",
				zap.String("adapter", src.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("next_retry_in", next),
				zap.Error(err),
			)
		}

		obs, err := retry.WithRetry(ctx, func(ctx context.Context) ([]models.PriceObservation, error) {
			obs, err := src.Fetch(ctx)
			c.metrics.RecordFetchAttempt(src.Name(), attemptResult(err))
			return obs, err
		}, policy)
		if err == nil {
			log.Info("Source fetch succeeded", zap.String("adapter", src.Name()), zap.Int("observations", len(obs)))
			return obs, src.Strategy(), true
		}

		notes.add(fmt.Sprintf("%s: %v", src.Name(), err))
		log.Warn("Source exhausted, falling back",
			zap.String("adapter", src.Name()),
			zap.String("cause", attemptResult(err)),
			zap.Error(err),
		)
	}
	return nil, models.StrategyNone, false
}

// attemptResult labels a fetch attempt by its failure cause
func attemptResult(err error) string {
	if err == nil {
		return "ok"
	}
	if cause, ok := scraper.CauseOf(err); ok {
		return string(cause)
	}
	return "unclassified"
}

// normalize drops observations with unknown labels, and NATIONAL rows which are only ever derived
func (c *Coordinator) normalize(observations []models.PriceObservation, notes *noteList) ([]models.NormalizedObservation, int) {
	out := make([]models.NormalizedObservation, 0, len(observations))
	skipped := 0
	for _, o := range observations {
		commodity, ok := c.normalizer.Commodity(o.CommodityLabel)
		if !ok {
			skipped++
			notes.addOnce(fmt.Sprintf("unmapped commodity label %q", o.CommodityLabel))
			continue
		}
		region, ok := c.normalizer.Region(o.RegionLabel)
		if !ok {
			skipped++
			notes.addOnce(fmt.Sprintf("unmapped region label %q", o.RegionLabel))
			continue
		}
		if region.IsNational() {
			skipped++
			notes.addOnce(fmt.Sprintf("source national row ignored %q", o.RegionLabel))
			continue
		}

		out = append(out, models.NormalizedObservation{
			Commodity:  commodity,
			Region:     region,
			Price:      o.Price,
			Unit:       o.Unit,
			ObservedAt: o.ObservedAt,
			SourceRef:  o.SourceRef,
		})
	}
	return out, skipped
}

func (c *Coordinator) finish(ctx context.Context, log *zap.Logger, run *models.IngestionRun, notes *noteList) {
	run.FinishedAt = c.clock.Now().UTC()
	run.DurationMs = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	run.Errors = notes.items

	// the run record is written even if the caller's context was cancelled mid-run
	if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("Failed to save ingestion run", zap.Error(err))
	}
	c.metrics.RecordRun(string(run.Outcome), string(run.Strategy))

	fields := []zap.Field{
		zap.String("outcome", string(run.Outcome)),
		zap.String("strategy", string(run.Strategy)),
		zap.Int("items", run.ItemCount),
		zap.Int("skipped", run.SkippedCount),
		zap.Int("failed", run.FailedCount),
		zap.Int64("duration_ms", run.DurationMs),
	}
	if run.Outcome == models.RunOutcomeFailure {
		log.Error("Ingestion run failed", append(fields, zap.Strings("errors", run.Errors))...)
		return
	}
	log.Info("Ingestion run finished", fields...)
}

type noteList struct {
	items   []string
	seen    map[string]bool
	dropped int
}

func (n *noteList) add(s string) {
	if len(n.items) >= maxRunNotes {
		n.dropped++
		if n.dropped == 1 {
			n.items[len(n.items)-1] = "further notes omitted"
		}
		return
	}
	n.items = append(n.items, s)
}

func (n *noteList) addOnce(s string) {
	if n.seen == nil {
		n.seen = make(map[string]bool)
	}
	if n.seen[s] {
		return
	}
	n.seen[s] = true
	n.add(s)
}
