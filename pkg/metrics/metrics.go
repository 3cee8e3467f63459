package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DeploymentsTotal counts completed deployments by terminal outcome
	// ("success", or "failure" for both failed and cancelled chains).
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easydep_deployments_total",
			Help: "Total number of deployments by outcome",
		},
		[]string{"outcome"},
	)

	// DeploymentDuration measures the wall-clock time of one chain run,
	// from ReleaseSupervisor.enqueue to completion-handle resolution.
	DeploymentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "easydep_deployment_duration_seconds",
			Help:    "Deployment pipeline duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// StageDuration measures individual stage execution time.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easydep_stage_duration_seconds",
			Help:    "Stage execution duration in seconds by stage and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)

	// RetentionDeletionsTotal counts release directories removed by S7.
	RetentionDeletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easydep_retention_deletions_total",
			Help: "Total number of release directories removed by retention cleanup",
		},
	)

	// PollErrorsTotal counts ReleaseFeed poll failures, swallowed per spec.
	PollErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easydep_feed_poll_errors_total",
			Help: "Total number of release-feed poll errors",
		},
	)

	// CurrentReleaseID reports the release id current_link points at, or -1.
	CurrentReleaseID = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "easydep_current_release_id",
			Help: "Release id the current symlink points at, -1 if absent",
		},
	)
)

func init() {
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(DeploymentDuration)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RetentionDeletionsTotal)
	prometheus.MustRegister(PollErrorsTotal)
	prometheus.MustRegister(CurrentReleaseID)
}

// Handler returns the Prometheus HTTP handler for the metrics endpoint.
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

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
