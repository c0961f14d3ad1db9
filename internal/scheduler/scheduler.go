package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"commodity-price-portal/internal/cleanup"
	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/config"
	"commodity-price-portal/internal/metrics"
	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/subscription"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned when a manual trigger finds the same job in progress
var ErrAlreadyRunning = errors.New("job already running")

const (
	JobDailyIngestion = "daily_ingestion"
	JobExpiryCheck    = "expiry_check"
	JobRetention      = "retention"
)

type Ingester interface {
	Run(ctx context.Context) *models.IngestionRun
}

type Aggregator interface {
	ComputeNationalAverages(ctx context.Context, date time.Time) ([]models.CommodityRecord, error)
}

type Publisher interface {
	PublishNational(ctx context.Context, records []models.CommodityRecord) error
}

type Expirer interface {
	ExpireDue(ctx context.Context) (*subscription.ReconcileResult, error)
}

type Retention interface {
	Run(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error)
	GetStats(ctx context.Context, cfg cleanup.CleanupConfig) (map[string]interface{}, error)
}

// Deps are the jobs' collaborators. Publisher, Expirer and Retention may be nil.
type Deps struct {
	Ingester   Ingester
	Aggregator Aggregator
	Publisher  Publisher
	Expirer    Expirer
	Retention  Retention
	Metrics    *metrics.Metrics
	Clock      clock.Clock
}

// DailyResult is what one pass of the daily ingestion job produced
type DailyResult struct {
	Run      *models.IngestionRun     `json:"run"`
	National []models.CommodityRecord `json:"national"`
	Errors   []string                 `json:"errors,omitempty"`
}

// Scheduler handles scheduled ingestion, entitlement expiry and retention
type Scheduler struct {
	cron    *cron.Cron
	deps    Deps
	config  *config.Config
	loc     *time.Location
	log     *zap.Logger
	started bool

	// one flag per job; an overlapping invocation is skipped, never queued
	ingesting atomic.Bool
	expiring  atomic.Bool
	retaining atomic.Bool
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.Config, deps Deps, log *zap.Logger) *Scheduler {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	log = log.Named("scheduler")
	loc := cfg.Location()
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{log.Sugar()})),
		),
		deps:   deps,
		config: cfg,
		loc:    loc,
		log:    log,
	}
}

// Start registers the enabled jobs and starts the cron loop
func (s *Scheduler) Start() error {
	sc := s.config.Scheduler

	if sc.DailyRunEnabled {
		spec := parseDailyRunTime(sc.DailyRunTime, "06:00", s.log)
		if _, err := s.cron.AddFunc(spec, func() { s.runGuarded(JobDailyIngestion) }); err != nil {
			return fmt.Errorf("failed to schedule daily ingestion: %w", err)
		}
		s.log.Info("Daily ingestion scheduled", zap.String("at", sc.DailyRunTime), zap.String("cron", spec))
	} else {
		s.log.Info("Daily ingestion is disabled in configuration")
	}

	if sc.ExpiryCheckEnabled && s.deps.Expirer != nil {
		if _, err := s.cron.AddFunc("@hourly", func() { s.runGuarded(JobExpiryCheck) }); err != nil {
			return fmt.Errorf("failed to schedule expiry check: %w", err)
		}
		s.log.Info("Hourly entitlement expiry check scheduled")
	}

	if sc.RetentionRunTime != "" && s.deps.Retention != nil {
		spec := parseDailyRunTime(sc.RetentionRunTime, "03:00", s.log)
		if _, err := s.cron.AddFunc(spec, func() { s.runGuarded(JobRetention) }); err != nil {
			return fmt.Errorf("failed to schedule retention: %w", err)
		}
		s.log.Info("Retention scheduled", zap.String("at", sc.RetentionRunTime), zap.String("cron", spec))
	}

	s.cron.Start()
	s.started = true
	s.log.Info("Scheduler started", zap.String("timezone", s.loc.String()))
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.log.Info("Scheduler stopped")
}

// runGuarded is the cron entry point; outcomes are logged, never returned
func (s *Scheduler) runGuarded(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout())
	defer cancel()

	var err error
	switch job {
	case JobDailyIngestion:
		_, err = s.TriggerIngestionNow(ctx)
	case JobExpiryCheck:
		_, err = s.RunExpiryCheck(ctx)
	case JobRetention:
		_, err = s.RunRetention(ctx)
	}
	if errors.Is(err, ErrAlreadyRunning) {
		return
	}
	if err != nil {
		s.log.Error("Scheduled job failed", zap.String("job", job), zap.Error(err))
	}
}

// TriggerIngestionNow runs the daily job path: ingestion, then aggregation over the
// run's dates, then optional search publication. It shares the scheduled job's guard.
func (s *Scheduler) TriggerIngestionNow(ctx context.Context) (*DailyResult, error) {
	if !s.ingesting.CompareAndSwap(false, true) {
		s.skipped(JobDailyIngestion)
		return nil, ErrAlreadyRunning
	}
	defer s.ingesting.Store(false)

	started := s.deps.Clock.Now()
	defer func() { s.deps.Metrics.ObserveJob(JobDailyIngestion, s.deps.Clock.Now().Sub(started)) }()

	result := &DailyResult{Run: s.deps.Ingester.Run(ctx)}
	if !result.Run.Succeeded() {
		// not retried before the next occurrence
		s.log.Warn("Ingestion run failed, skipping aggregation", zap.String("run_id", result.Run.ID))
		return result, nil
	}

	dates := result.Run.PriceDates
	if len(dates) == 0 {
		dates = []time.Time{models.DayOf(s.deps.Clock.Now(), s.loc)}
	}
	for _, d := range dates {
		national, err := s.deps.Aggregator.ComputeNationalAverages(ctx, d)
		result.National = append(result.National, national...)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("aggregate %s: %v", d.Format("2006-01-02"), err))
			s.log.Error("Aggregation failed", zap.Time("date", d), zap.Error(err))
		}
	}

	if s.config.Scheduler.PublishSearch && s.deps.Publisher != nil && len(result.National) > 0 {
		if err := s.deps.Publisher.PublishNational(ctx, result.National); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("publish: %v", err))
			s.log.Error("Search publication failed", zap.Error(err))
		}
	}

	s.log.Info("Daily ingestion job completed",
		zap.String("run_id", result.Run.ID),
		zap.Int("dates", len(dates)),
		zap.Int("national_records", len(result.National)),
	)
	return result, nil
}

// RunExpiryCheck expires lapsed subscriptions
func (s *Scheduler) RunExpiryCheck(ctx context.Context) (*subscription.ReconcileResult, error) {
	if s.deps.Expirer == nil {
		return &subscription.ReconcileResult{}, nil
	}
	if !s.expiring.CompareAndSwap(false, true) {
		s.skipped(JobExpiryCheck)
		return nil, ErrAlreadyRunning
	}
	defer s.expiring.Store(false)

	started := s.deps.Clock.Now()
	defer func() { s.deps.Metrics.ObserveJob(JobExpiryCheck, s.deps.Clock.Now().Sub(started)) }()

	return s.deps.Expirer.ExpireDue(ctx)
}

// RunRetention applies the configured retention windows
func (s *Scheduler) RunRetention(ctx context.Context) (*cleanup.CleanupResult, error) {
	if s.deps.Retention == nil {
		return nil, errors.New("retention is not configured")
	}
	if !s.retaining.CompareAndSwap(false, true) {
		s.skipped(JobRetention)
		return nil, ErrAlreadyRunning
	}
	defer s.retaining.Store(false)

	started := s.deps.Clock.Now()
	defer func() { s.deps.Metrics.ObserveJob(JobRetention, s.deps.Clock.Now().Sub(started)) }()

	return s.deps.Retention.Run(ctx, cleanup.FromConfig(s.config.Retention))
}

// RetentionPreview counts what the configured retention windows would touch, without changing anything
func (s *Scheduler) RetentionPreview(ctx context.Context) (map[string]interface{}, error) {
	if s.deps.Retention == nil {
		return nil, errors.New("retention is not configured")
	}
	return s.deps.Retention.GetStats(ctx, cleanup.FromConfig(s.config.Retention))
}

// IsIngesting reports whether the daily ingestion path is currently running
func (s *Scheduler) IsIngesting() bool {
	return s.ingesting.Load()
}

func (s *Scheduler) skipped(job string) {
	s.deps.Metrics.RecordJobSkipped(job)
	s.log.Warn("Job still running, skipping this invocation", zap.String("job", job))
}

func (s *Scheduler) jobTimeout() time.Duration {
	if d := s.config.Scheduler.GetJobTimeout(); d > 0 {
		return d
	}
	return 30 * time.Minute
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:00" -> "0 2 * * *" (run at 2:00 AM every day)
func parseDailyRunTime(timeStr, fallback string, log *zap.Logger) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	log.Warn("Failed to parse run time, using fallback", zap.String("time", timeStr), zap.String("fallback", fallback))
	fmt.Sscanf(fallback, "%d:%d", &hour, &minute)
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// cronLogger adapts zap to cron's logger interface
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
