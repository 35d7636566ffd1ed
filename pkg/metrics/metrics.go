package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHitsTotal counts NCT ids that already had an index entry
	// (Ready, or Pending in another caller's fetch) at the time
	// EnsureTrialsAvailable was asked for them.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctgov_cache_hits_total",
			Help: "Total number of NCT ids found already cached",
		},
	)

	// CacheMissesTotal counts NCT ids that required a remote fetch.
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctgov_cache_misses_total",
			Help: "Total number of NCT ids that required a remote fetch",
		},
	)

	// EntriesTotal tracks the current number of indexed entries by
	// state ("pending", "ready", "failed").
	EntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ctgov_cache_entries_total",
			Help: "Current number of indexed cache entries by state",
		},
		[]string{"state"},
	)

	// FetchBatchDuration times a single remote fetchStudies call.
	FetchBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctgov_fetch_batch_duration_seconds",
			Help:    "Time taken by the remote fetch of one batch of NCT ids",
			Buckets: prometheus.DefBuckets,
		},
	)

	// FetchBatchSize records how many ids were requested per batch.
	FetchBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctgov_fetch_batch_size",
			Help:    "Number of NCT ids requested per remote batch",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	// FetchFailuresTotal counts fetch failures by reason: "transport"
	// for a batch whose remote call failed (parse failures included),
	// and "oversized" for each returned record dropped for exceeding the
	// entry size limit.
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctgov_fetch_failures_total",
			Help: "Total number of failed remote fetch batches by reason",
		},
		[]string{"reason"},
	)

	// StoreOpsTotal counts durable store operations by kind and result.
	StoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctgov_store_ops_total",
			Help: "Total number of durable store operations by operation and result",
		},
		[]string{"op", "result"},
	)

	// SweepCyclesTotal counts completed expiry sweep cycles.
	SweepCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctgov_sweep_cycles_total",
			Help: "Total number of expiry sweep cycles completed",
		},
	)

	// SweepErrorsTotal counts entry removals that failed during a sweep.
	SweepErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctgov_sweep_errors_total",
			Help: "Total number of entry removals that failed during an expiry sweep",
		},
	)

	// EntriesExpiredTotal counts entries removed by the expiry sweeper.
	EntriesExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctgov_entries_expired_total",
			Help: "Total number of cache entries removed for being idle past their TTL",
		},
	)

	// MergeOpsTotal counts merge() invocations whose source record has a
	// protocol section to apply; no-op calls are not counted.
	MergeOpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctgov_merge_ops_total",
			Help: "Total number of study objects merged against a remote record",
		},
	)
)

var registerOnce sync.Once

// Register registers every metric in this package with Prometheus's
// default registerer. It is safe to call more than once (across
// multiple Service instances in one process); only the first call has
// any effect.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheHitsTotal,
			CacheMissesTotal,
			EntriesTotal,
			FetchBatchDuration,
			FetchBatchSize,
			FetchFailuresTotal,
			StoreOpsTotal,
			SweepCyclesTotal,
			SweepErrorsTotal,
			EntriesExpiredTotal,
			MergeOpsTotal,
		)
	})
}

// Handler returns the Prometheus HTTP handler, for hosts that want to
// expose this package's metrics on their own mux.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
