// Package health implements HealthMonitor: a background liveness/anomaly
// sampler that snapshots agent call volume, error rate, and mediator
// delegation stats on a fixed interval, keeping a bounded ring of recent
// samples for the /monitoring/health report. Prometheus metrics mirror the
// teacher's pkg/observability/metrics.go shape (counters/histograms behind
// a dedicated registry); the OTel counters alongside them match its
// recorder.go, which records the same events through the global Meter
// rather than the Prometheus client directly.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AgentSource is the narrow registry slice the monitor samples: agent names
// and, per agent, whatever delegation stats the Mediator has accumulated.
type AgentSource interface {
	ListAgents() []string
}

// StatsSource exposes per-agent Mediator statistics for a named agent.
type StatsSource interface {
	MediatorStats(name string) MediatorStats
}

// MediatorStats is the subset of mediator.Stats the health report surfaces;
// declared locally to avoid importing the mediator package from health.
type MediatorStats struct {
	MessagesSent        int64
	MessagesReceived    int64
	DelegationsMade     int64
	DelegationsReceived int64
	AvgResponseTime     time.Duration
}

// AgentSnapshot is one agent's state as of a sample.
type AgentSnapshot struct {
	Name  string        `json:"name"`
	Stats MediatorStats `json:"stats"`
}

// Sample is one periodic liveness snapshot.
type Sample struct {
	Timestamp time.Time       `json:"timestamp"`
	Agents    []AgentSnapshot `json:"agents"`
}

// Report is the full answer to a health query: overall status, uptime, and
// the most recent bounded window of samples.
type Report struct {
	Status    string    `json:"status"` // "healthy" | "degraded"
	Uptime    string    `json:"uptime"`
	AgentsUp  int       `json:"agents_up"`
	Samples   []Sample  `json:"samples"`
	Generated time.Time `json:"generated_at"`
}

const defaultHistorySize = 120 // 120 samples at the default 30s interval = 1h

// Monitor samples a registry+mediator pair on a fixed interval and reports
// bounded history plus live metrics. Its own goroutine owns the ring buffer;
// Report() takes a snapshot under lock.
type Monitor struct {
	source   AgentSource
	stats    StatsSource
	interval time.Duration

	mu        sync.Mutex
	history   []Sample
	maxHist   int
	startedAt time.Time
	statePath string

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once

	promRegistry *prometheus.Registry
	agentCalls   *prometheus.CounterVec
	agentErrors  *prometheus.CounterVec

	otelCalls  metric.Int64Counter
	otelErrors metric.Int64Counter
}

// WithStatePath sets the file each sample is dumped to as JSON
// (LOGS_DEBUG/monitor_state.json in the persisted state layout); an empty
// path, the default, disables the on-disk snapshot entirely.
func (m *Monitor) WithStatePath(path string) *Monitor {
	m.statePath = path
	return m
}

// NewMonitor builds a Monitor. Call Start to begin periodic sampling.
func NewMonitor(source AgentSource, stats StatsSource, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	reg := prometheus.NewRegistry()
	agentCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcore",
		Subsystem: "agent",
		Name:      "calls_total",
		Help:      "Total number of agent invocations observed by the health monitor.",
	}, []string{"agent_name"})
	agentErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcore",
		Subsystem: "agent",
		Name:      "errors_total",
		Help:      "Total number of failed agent invocations observed by the health monitor.",
	}, []string{"agent_name"})
	reg.MustRegister(agentCalls, agentErrors)

	meter := otel.Meter("agentcore/health")
	otelCalls, _ := meter.Int64Counter("agentcore.agent.calls",
		metric.WithDescription("Agent invocations recorded by the health monitor."))
	otelErrors, _ := meter.Int64Counter("agentcore.agent.errors",
		metric.WithDescription("Failed agent invocations recorded by the health monitor."))

	return &Monitor{
		source:       source,
		stats:        stats,
		interval:     interval,
		maxHist:      defaultHistorySize,
		startedAt:    time.Now(),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		promRegistry: reg,
		agentCalls:   agentCalls,
		agentErrors:  agentErrors,
		otelCalls:    otelCalls,
		otelErrors:   otelErrors,
	}
}

// RecordCall is called by the orchestrator after every agent execution to
// feed the call/error counters the next sample and the /monitoring/health
// Prometheus exposition both read from.
func (m *Monitor) RecordCall(ctx context.Context, agentName string, err error) {
	m.agentCalls.WithLabelValues(agentName).Inc()
	m.otelCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("agent_name", agentName)))
	if err != nil {
		m.agentErrors.WithLabelValues(agentName).Inc()
		m.otelErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("agent_name", agentName)))
	}
}

// Start begins the periodic sampling goroutine. Calling Start more than
// once is a no-op beyond the first call.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() { go m.run(ctx) })
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	names := m.source.ListAgents()
	snapshots := make([]AgentSnapshot, 0, len(names))
	for _, name := range names {
		var stats MediatorStats
		if m.stats != nil {
			stats = m.stats.MediatorStats(name)
		}
		snapshots = append(snapshots, AgentSnapshot{Name: name, Stats: stats})
	}
	s := Sample{Timestamp: time.Now(), Agents: snapshots}

	m.mu.Lock()
	m.history = append(m.history, s)
	if len(m.history) > m.maxHist {
		m.history = m.history[len(m.history)-m.maxHist:]
	}
	m.mu.Unlock()

	m.writeState(s)
}

// writeState dumps the latest sample to statePath, matching the persisted
// state layout's LOGS_DEBUG/monitor_state.json. Best-effort: a write
// failure (e.g. the directory was removed) is not fatal to sampling, since
// the in-memory history and Prometheus counters remain authoritative.
func (m *Monitor) writeState(s Sample) {
	if m.statePath == "" {
		return
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(m.statePath, data, 0o644)
}

// Stop halts the sampling goroutine and waits for it to exit, matching the
// Mediator/AgentRegistry shutdown contract of leaving in-flight work to
// observe cancellation and exit cleanly rather than being killed outright.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// Report builds a Report from the monitor's current state. Status is
// "degraded" when no agents are registered or the most recent sample
// predates twice the sampling interval (the background loop has stalled).
func (m *Monitor) Report() Report {
	m.mu.Lock()
	history := append([]Sample(nil), m.history...)
	m.mu.Unlock()

	status := "healthy"
	agentsUp := len(m.source.ListAgents())
	if agentsUp == 0 {
		status = "degraded"
	}
	if len(history) > 0 && time.Since(history[len(history)-1].Timestamp) > 2*m.interval {
		status = "degraded"
	}

	return Report{
		Status:    status,
		Uptime:    time.Since(m.startedAt).String(),
		AgentsUp:  agentsUp,
		Samples:   history,
		Generated: time.Now(),
	}
}

// Handler returns an http.Handler exposing the Prometheus exposition format
// for RecordCall's counters, suitable for mounting at /monitoring/health.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.promRegistry, promhttp.HandlerOpts{})
}
