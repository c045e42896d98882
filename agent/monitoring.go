package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

const monitoringSystemPrompt = `You are a monitoring and observability expert. Your task is to monitor systems, analyze metrics, and provide insights.

Capabilities:
- Performance monitoring
- Metric collection and analysis
- Alerting and notifications
- Trend analysis
- Anomaly detection
- Resource usage monitoring
- Model performance tracking
- A/B testing analysis

Provide monitoring dashboards, alerts, and recommendations.`

const maxMetricsHistory = 1000

// MetricsSample is one point of the bounded metrics_history kept by
// Monitoring across calls.
type MetricsSample struct {
	Timestamp time.Time
	Metrics   map[string]any
}

// Monitoring analyzes metrics with an LLM and, alongside that, samples this
// process's own resource usage, retaining a bounded rolling history.
type Monitoring struct {
	*Base
	gen Generator

	mu      sync.Mutex
	history []MetricsSample
}

// NewMonitoring builds the monitoring agent.
func NewMonitoring(descriptor *capability.Descriptor, deps Deps) *Monitoring {
	ma := &Monitoring{gen: deps.Generator}
	ma.Base = NewBase(descriptor, deps, ma.executeImpl)
	return ma
}

func (ma *Monitoring) executeImpl(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
	if ma.gen == nil {
		return nil, fmt.Errorf("monitoring: no LLM generator configured")
	}

	userPrompt := buildMonitoringPrompt(task, taskContext)
	analysis, err := ma.gen.Generate(ctx, monitoringSystemPrompt, userPrompt, 0.2, 2000)
	if err != nil {
		return nil, fmt.Errorf("monitoring: generation failed: %w", err)
	}

	metrics := collectMetrics()
	now := time.Now()
	ma.appendHistory(MetricsSample{Timestamp: now, Metrics: metrics})

	return Result{
		"agent":           ma.Name(),
		"task":            task,
		"analysis":        analysis,
		"current_metrics": metrics,
		"timestamp":       now.Format(time.RFC3339),
		"success":         true,
	}, nil
}

func (ma *Monitoring) appendHistory(sample MetricsSample) {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.history = append(ma.history, sample)
	if len(ma.history) > maxMetricsHistory {
		ma.history = ma.history[len(ma.history)-maxMetricsHistory:]
	}
}

// MetricsHistory returns up to the last limit recorded samples.
func (ma *Monitoring) MetricsHistory(limit int) []MetricsSample {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	if limit <= 0 || limit > len(ma.history) {
		limit = len(ma.history)
	}
	out := make([]MetricsSample, limit)
	copy(out, ma.history[len(ma.history)-limit:])
	return out
}

// collectMetrics samples this process's and the host's current resource
// usage, mirroring the source's psutil-backed _collect_metrics.
func collectMetrics() map[string]any {
	metrics := map[string]any{
		"cpu_percent":   0.0,
		"memory_mb":     0.0,
		"threads":       0,
		"system_cpu":    0.0,
		"system_memory": 0.0,
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpuPct, err := proc.CPUPercent(); err == nil {
			metrics["cpu_percent"] = cpuPct
		}
		if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
			metrics["memory_mb"] = float64(memInfo.RSS) / 1024 / 1024
		}
		if threads, err := proc.NumThreads(); err == nil {
			metrics["threads"] = threads
		}
	}
	if sysCPU, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(sysCPU) > 0 {
		metrics["system_cpu"] = sysCPU[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		metrics["system_memory"] = vm.UsedPercent
	}

	return metrics
}

func buildMonitoringPrompt(task string, taskContext map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Monitoring Task: %s\n\n", task)
	if taskContext != nil {
		if metrics, ok := taskContext["metrics"]; ok {
			fmt.Fprintf(&b, "Metrics to monitor: %v\n", metrics)
		}
		if thresholds, ok := taskContext["thresholds"]; ok {
			fmt.Fprintf(&b, "Thresholds: %v\n", thresholds)
		}
		if timeRange, ok := taskContext["time_range"]; ok {
			fmt.Fprintf(&b, "Time range: %v\n", timeRange)
		}
	}
	b.WriteString("\nPlease provide monitoring analysis and recommendations.")
	return b.String()
}
