package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/models"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// PersistenceFailure describes one observation whose write did not land
type PersistenceFailure struct {
	Op        string
	Commodity models.Commodity
	Region    models.Region
	PriceDate time.Time
	Err       error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("%s %s/%s %s: %v", e.Op, e.Commodity, e.Region, e.PriceDate.Format("2006-01-02"), e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

// Result summarises one batch. Succeeded counts records written; a record whose
// history append failed still counts as succeeded and is also counted in HistoryFailed.
type Result struct {
	Succeeded     int
	Failed        int
	HistoryFailed int
	Errors        []string
	// Dates holds each calendar day at least one record was written for, ascending
	Dates []time.Time
}

// Writer upserts canonical records and appends their history on a bounded worker pool
type Writer struct {
	store       *Store
	loc         *time.Location
	concurrency int
	clock       clock.Clock
	log         *zap.Logger
}

func NewWriter(store *Store, loc *time.Location, concurrency int, clk clock.Clock, log *zap.Logger) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Writer{
		store:       store,
		loc:         loc,
		concurrency: concurrency,
		clock:       clk,
		log:         log.Named("writer"),
	}
}

// Location is the time zone observations are truncated to calendar days in
func (w *Writer) Location() *time.Location {
	return w.loc
}

// Upsert writes a batch without a run id
func (w *Writer) Upsert(ctx context.Context, batch []models.NormalizedObservation) Result {
	return w.UpsertForRun(ctx, "", batch)
}

// UpsertForRun writes every observation independently. A failure never aborts the batch.
func (w *Writer) UpsertForRun(ctx context.Context, runID string, batch []models.NormalizedObservation) Result {
	if len(batch) == 0 {
		return Result{}
	}

	var succeeded, failed, historyFailed atomic.Int32
	var mu sync.Mutex
	var errs []string
	dates := make(map[time.Time]struct{})

	record := func(err error) {
		mu.Lock()
		errs = append(errs, err.Error())
		mu.Unlock()
	}

	pool := pond.NewPool(w.concurrency, pond.WithContext(ctx))
	for _, obs := range batch {
		pool.Submit(func() {
			day, err := w.write(ctx, runID, obs)
			switch {
			case err == nil:
				succeeded.Add(1)
			case err.Op == "history":
				succeeded.Add(1)
				historyFailed.Add(1)
				record(err)
			default:
				failed.Add(1)
				record(err)
				return
			}
			mu.Lock()
			dates[day] = struct{}{}
			mu.Unlock()
		})
	}
	pool.StopAndWait()

	res := Result{
		Succeeded:     int(succeeded.Load()),
		Failed:        int(failed.Load()),
		HistoryFailed: int(historyFailed.Load()),
		Errors:        errs,
	}
	// tasks the pool dropped after ctx was cancelled never ran
	if missing := len(batch) - res.Succeeded - res.Failed; missing > 0 {
		res.Failed += missing
		res.Errors = append(res.Errors, fmt.Sprintf("%d observations not written: %v", missing, ctx.Err()))
	}
	for d := range dates {
		res.Dates = append(res.Dates, d)
	}
	sort.Slice(res.Dates, func(i, j int) bool { return res.Dates[i].Before(res.Dates[j]) })

	w.log.Info("Batch persisted",
		zap.String("run_id", runID),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("history_failed", res.HistoryFailed),
	)
	return res
}

// UpsertOne writes a single observation; used for derived values such as national averages
func (w *Writer) UpsertOne(ctx context.Context, runID string, obs models.NormalizedObservation) error {
	if _, err := w.write(ctx, runID, obs); err != nil {
		return err
	}
	return nil
}

func (w *Writer) write(ctx context.Context, runID string, obs models.NormalizedObservation) (time.Time, *PersistenceFailure) {
	day := models.DayOf(obs.ObservedAt, w.loc)

	rec := &models.CommodityRecord{
		Commodity: obs.Commodity,
		Region:    obs.Region,
		PriceDate: day,
		Price:     obs.Price,
		Unit:      obs.Unit,
		SourceRef: obs.SourceRef,
		ScrapedAt: w.clock.Now().UTC(),
		Active:    true,
	}
	if err := w.store.UpsertRecord(ctx, rec); err != nil {
		return day, &PersistenceFailure{Op: "upsert", Commodity: obs.Commodity, Region: obs.Region, PriceDate: day, Err: err}
	}

	// history is not in the upsert's transaction; a lost entry does not undo the record
	entry := &models.PriceHistoryEntry{
		Commodity: obs.Commodity,
		Region:    obs.Region,
		PriceDate: day,
		Price:     obs.Price,
		RunID:     runID,
	}
	if err := w.store.AppendHistory(ctx, entry); err != nil {
		return day, &PersistenceFailure{Op: "history", Commodity: obs.Commodity, Region: obs.Region, PriceDate: day, Err: err}
	}
	return day, nil
}
