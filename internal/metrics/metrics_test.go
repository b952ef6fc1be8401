package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("content_generator", "ok", time.Second)
		m.ObserveOracle("ok", time.Second)
		m.PublishFailed("content_ready")
		m.FallbackUsed()
		m.LockConflict("question_setter")
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PublishFailed("content_ready")
	m.PublishFailed("content_ready")
	m.FallbackUsed()
	m.ObserveStage("feedback_evaluator", "ok", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.publishFailures.WithLabelValues("content_ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("feedback_evaluator", "ok")))
}
