package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectMetrics_PopulatesExpectedKeys(t *testing.T) {
	metrics := collectMetrics()
	for _, key := range []string{"cpu_percent", "memory_mb", "threads", "system_cpu", "system_memory"} {
		assert.Contains(t, metrics, key)
	}
}

func TestMonitoring_AppendHistoryIsBounded(t *testing.T) {
	d := testDescriptor("monitoring")
	ma := NewMonitoring(d, Deps{})

	for i := 0; i < maxMetricsHistory+10; i++ {
		ma.appendHistory(MetricsSample{Timestamp: time.Now(), Metrics: map[string]any{"i": i}})
	}

	history := ma.MetricsHistory(0)
	require.Len(t, history, maxMetricsHistory)
	assert.Equal(t, maxMetricsHistory+9, history[len(history)-1].Metrics["i"])
}
