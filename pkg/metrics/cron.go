package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics tracks per-job run counts and durations for the workers.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_cron_runs_total",
			Help: "Completed cron job runs.",
		}, []string{"job"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_cron_failures_total",
			Help: "Cron job runs that returned an error.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_cron_duration_seconds",
			Help:    "Cron job run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.failures, m.duration)
	}
	return m
}

func (m *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	m.runs.WithLabelValues(job).Inc()
	if err != nil {
		m.failures.WithLabelValues(job).Inc()
	}
	m.duration.WithLabelValues(job).Observe(took.Seconds())
}
