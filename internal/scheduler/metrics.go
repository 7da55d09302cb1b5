package scheduler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type mailPollMetrics struct {
	runs           prometheus.Counter
	duration       prometheus.Histogram
	activeAccounts prometheus.Gauge
	accountResults *prometheus.CounterVec
}

var (
	pollMetricsOnce sync.Once
	pollMetrics     *mailPollMetrics
)

func globalMailPollMetrics() *mailPollMetrics {
	pollMetricsOnce.Do(func() {
		pollMetrics = &mailPollMetrics{
			runs: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gocrm_mail_poll_runs_total",
				Help: "Total number of mail poll cycles",
			}),
			duration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "gocrm_mail_poll_duration_seconds",
				Help:    "Duration of mail poll cycles",
				Buckets: prometheus.DefBuckets,
			}),
			activeAccounts: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gocrm_mail_poll_active_accounts",
				Help: "Active mail accounts seen by the last poll cycle",
			}),
			accountResults: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gocrm_mail_poll_account_results_total",
				Help: "Per-account fetch outcomes",
			}, []string{"result"}),
		}
	})
	return pollMetrics
}

// recordRun marks the start of a poll cycle and returns a stop function that
// observes its duration.
func (m *mailPollMetrics) recordRun(activeAccounts int) func() {
	m.runs.Inc()
	m.activeAccounts.Set(float64(activeAccounts))
	start := time.Now()
	return func() {
		m.duration.Observe(time.Since(start).Seconds())
	}
}

func (m *mailPollMetrics) recordAccount(success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	m.accountResults.WithLabelValues(result).Inc()
}
