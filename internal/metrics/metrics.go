// Package metrics holds the Prometheus instruments of the tutoring pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the pipeline's instruments.
type Metrics struct {
	stageRuns       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	oracleAttempts  *prometheus.CounterVec
	oracleDuration  prometheus.Histogram
	publishFailures *prometheus.CounterVec
	fallbacks       prometheus.Counter
	lockConflicts   *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// stageRuns counts stage invocations by stage and outcome
		stageRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorpipe_stage_runs_total",
			Help: "Stage invocations by stage and outcome",
		}, []string{"stage", "outcome"}),

		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutorpipe_stage_duration_seconds",
			Help:    "Stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"stage"}),

		// oracleAttempts counts individual oracle attempts by result
		oracleAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorpipe_oracle_attempts_total",
			Help: "Oracle attempts by result",
		}, []string{"result"}),

		oracleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tutorpipe_oracle_duration_seconds",
			Help:    "Oracle attempt latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		publishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorpipe_bus_publish_failures_total",
			Help: "Agent messages that could not be recorded, by message type",
		}, []string{"message_type"}),

		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "tutorpipe_feedback_fallback_total",
			Help: "Evaluations that used the deterministic fallback feedback",
		}),

		lockConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorpipe_lock_conflicts_total",
			Help: "Stage requests rejected because the stage lock was held",
		}, []string{"stage"}),
	}
}

// ObserveStage records one stage run.
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.WithLabelValues(stage, outcome).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveOracle records one oracle attempt.
func (m *Metrics) ObserveOracle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.oracleAttempts.WithLabelValues(result).Inc()
	m.oracleDuration.Observe(d.Seconds())
}

// PublishFailed counts a dropped agent message.
func (m *Metrics) PublishFailed(messageType string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(messageType).Inc()
}

// FallbackUsed counts a fallback evaluation.
func (m *Metrics) FallbackUsed() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// LockConflict counts a request turned away by a held stage lock.
func (m *Metrics) LockConflict(stage string) {
	if m == nil {
		return
	}
	m.lockConflicts.WithLabelValues(stage).Inc()
}
