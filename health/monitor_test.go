package health_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcoreio/agentcore/health"
)

type fakeSource struct{ names []string }

func (f fakeSource) ListAgents() []string { return f.names }

type fakeStats struct{ stats map[string]health.MediatorStats }

func (f fakeStats) MediatorStats(name string) health.MediatorStats {
	return f.stats[name]
}

func TestMonitorReportDegradedWithNoAgents(t *testing.T) {
	m := health.NewMonitor(fakeSource{}, fakeStats{}, time.Second)
	report := m.Report()
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, 0, report.AgentsUp)
}

func TestMonitorReportHealthyAfterSample(t *testing.T) {
	source := fakeSource{names: []string{"code-writer", "research"}}
	stats := fakeStats{stats: map[string]health.MediatorStats{
		"code-writer": {MessagesSent: 3, AvgResponseTime: 200 * time.Millisecond},
	}}
	m := health.NewMonitor(source, stats, 20*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return len(m.Report().Samples) > 0
	}, 150*time.Millisecond, 10*time.Millisecond)

	report := m.Report()
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, 2, report.AgentsUp)
	last := report.Samples[len(report.Samples)-1]
	require.Len(t, last.Agents, 2)
}

func TestMonitorRecordCallIncrementsCounters(t *testing.T) {
	m := health.NewMonitor(fakeSource{names: []string{"code-writer"}}, fakeStats{}, time.Second)
	m.RecordCall(context.Background(), "code-writer", nil)
	m.RecordCall(context.Background(), "code-writer", assert.AnError)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/monitoring/health", nil)
	m.Handler().ServeHTTP(rec, req)
	body := rec.Body.String()
	assert.Contains(t, body, `agentcore_agent_calls_total{agent_name="code-writer"} 1`)
	assert.Contains(t, body, `agentcore_agent_errors_total{agent_name="code-writer"} 1`)
}

func TestMonitorWritesStateFile(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "LOGS_DEBUG", "monitor_state.json")

	source := fakeSource{names: []string{"code-writer"}}
	m := health.NewMonitor(source, fakeStats{}, 20*time.Millisecond).WithStatePath(statePath)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool {
		_, err := os.Stat(statePath)
		return err == nil
	}, 140*time.Millisecond, 10*time.Millisecond)

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	var sample health.Sample
	require.NoError(t, json.Unmarshal(data, &sample))
	require.Len(t, sample.Agents, 1)
	assert.Equal(t, "code-writer", sample.Agents[0].Name)
}
