package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics exposes Prometheus collectors for background jobs.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	drift    *prometheus.CounterVec
}

var (
	defaultJobOnce    sync.Once
	defaultJobMetrics *JobMetrics
)

// NewJobMetrics registers the job metrics against the provided registerer.
// When the registerer is nil the default Prometheus registerer is used.
func NewJobMetrics(registerer prometheus.Registerer) *JobMetrics {
	if registerer == nil {
		defaultJobOnce.Do(func() {
			defaultJobMetrics = buildJobMetrics(prometheus.DefaultRegisterer)
		})
		return defaultJobMetrics
	}
	return buildJobMetrics(registerer)
}

// JobTracker provides lifecycle instrumentation for a single job run.
type JobTracker struct {
	metrics *JobMetrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *JobMetrics) Track(job string) *JobTracker {
	if m == nil {
		return &JobTracker{job: job, start: time.Now()}
	}
	return &JobTracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration and success/failure counts,
// and returns the provided error untouched.
func (t *JobTracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddLedgerDrift increments the drift counter for one ledger check.
func (m *JobMetrics) AddLedgerDrift(ledger string, entityID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.drift.WithLabelValues(ledger, strconv.FormatInt(entityID, 10)).Add(float64(count))
}

func buildJobMetrics(registerer prometheus.Registerer) *JobMetrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakehouse_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakehouse_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bakehouse_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakehouse_ledger_drift_total",
		Help: "Cached balances found out of line with their movement ledger.",
	}, []string{"ledger", "entity_id"})
	registerer.MustRegister(runs, failures, duration, drift)
	return &JobMetrics{runs: runs, failures: failures, duration: duration, drift: drift}
}
