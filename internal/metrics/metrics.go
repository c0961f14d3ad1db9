package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ingestion pipeline's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	observations  *prometheus.CounterVec
	fetchAttempts *prometheus.CounterVec
	jobSkipped    *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on registerer (the default registerer when nil)
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_ingestion_runs_total",
			Help: "Ingestion runs by outcome and the fetch strategy that produced data.",
		}, []string{"outcome", "strategy"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_ingestion_observations_total",
			Help: "Observations handled by ingestion, by result (persisted, skipped, failed).",
		}, []string{"result"}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_source_fetch_attempts_total",
			Help: "Fetch attempts against the price source by adapter and result (ok or failure cause).",
		}, []string{"adapter", "result"}),
		jobSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_scheduler_job_skipped_total",
			Help: "Scheduled invocations skipped because the previous one was still running.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "price_scheduler_job_duration_seconds",
			Help:    "Scheduled job latency.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"job"}),
	}

	registerer.MustRegister(m.runs, m.observations, m.fetchAttempts, m.jobSkipped, m.jobDuration)
	return m
}

func (m *Metrics) RecordRun(outcome, strategy string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome, strategy).Inc()
}

func (m *Metrics) RecordObservations(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.observations.WithLabelValues(result).Add(float64(n))
}

// RecordFetchAttempt counts one adapter call. result is "ok" or the failure cause.
func (m *Metrics) RecordFetchAttempt(adapter, result string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(adapter, result).Inc()
}

func (m *Metrics) RecordJobSkipped(job string) {
	if m == nil {
		return
	}
	m.jobSkipped.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveJob(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
