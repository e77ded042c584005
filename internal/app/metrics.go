package app

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/francisoliverlee/rocketmq-mcp/internal/audit"
	"github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"
)

var dispatchOutcomeOrder = []dispatch.Outcome{
	dispatch.OutcomeSuccess,
	dispatch.OutcomeValidation,
	dispatch.OutcomeStart,
	dispatch.OutcomeError,
}

type runtimeMetrics struct {
	readOnly                 atomic.Int64
	tracingEnabled           atomic.Int64
	tracingInitFailuresTotal atomic.Int64
	tracingExportErrorsTotal atomic.Int64

	toolSuccessTotal  atomic.Int64
	toolErrorTotal    atomic.Int64
	toolRejectedTotal atomic.Int64
	toolSecondsTotal  atomic.Int64 // microseconds

	mu        sync.Mutex
	byTool    map[string]int64
	byOutcome map[dispatch.Outcome]int64
}

func newRuntimeMetrics() *runtimeMetrics {
	return &runtimeMetrics{
		byTool:    make(map[string]int64),
		byOutcome: make(map[dispatch.Outcome]int64),
	}
}

func boolGauge(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (m *runtimeMetrics) setReadOnly(enabled bool) {
	if m == nil {
		return
	}
	m.readOnly.Store(boolGauge(enabled))
}

func (m *runtimeMetrics) setTracingEnabled(enabled bool) {
	if m == nil {
		return
	}
	m.tracingEnabled.Store(boolGauge(enabled))
}

func (m *runtimeMetrics) incTracingInitFailures() {
	if m == nil {
		return
	}
	m.tracingInitFailuresTotal.Add(1)
}

func (m *runtimeMetrics) incTracingExportErrors() {
	if m == nil {
		return
	}
	m.tracingExportErrorsTotal.Add(1)
}

// ObserveToolCall implements tools.Observer.
func (m *runtimeMetrics) ObserveToolCall(tool string, result audit.Result, d time.Duration) {
	if m == nil {
		return
	}
	switch result {
	case audit.ResultSuccess:
		m.toolSuccessTotal.Add(1)
	case audit.ResultRejected:
		m.toolRejectedTotal.Add(1)
	default:
		m.toolErrorTotal.Add(1)
	}
	m.toolSecondsTotal.Add(d.Microseconds())

	m.mu.Lock()
	m.byTool[tool]++
	m.mu.Unlock()
}

func (m *runtimeMetrics) observeDispatch(_ string, outcome dispatch.Outcome, _ time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.byOutcome[outcome]++
	m.mu.Unlock()
}

type metricsSnapshot struct {
	byTool    map[string]int64
	byOutcome map[dispatch.Outcome]int64
}

func (m *runtimeMetrics) snapshot() metricsSnapshot {
	s := metricsSnapshot{
		byTool:    make(map[string]int64),
		byOutcome: make(map[dispatch.Outcome]int64, len(dispatchOutcomeOrder)),
	}
	for _, o := range dispatchOutcomeOrder {
		s.byOutcome[o] = 0
	}
	if m == nil {
		return s
	}
	m.mu.Lock()
	for k, v := range m.byTool {
		s.byTool[k] = v
	}
	for k, v := range m.byOutcome {
		s.byOutcome[k] = v
	}
	m.mu.Unlock()
	return s
}

func (m *runtimeMetrics) healthDiagnostics() map[string]any {
	if m == nil {
		return map[string]any{}
	}
	s := m.snapshot()
	outcomes := make(map[string]any, len(s.byOutcome))
	for o, n := range s.byOutcome {
		outcomes[string(o)] = n
	}
	return map[string]any{
		"read_only": m.readOnly.Load() == 1,
		"tracing": map[string]any{
			"enabled":             m.tracingEnabled.Load() == 1,
			"init_failures_total": m.tracingInitFailuresTotal.Load(),
			"export_errors_total": m.tracingExportErrorsTotal.Load(),
		},
		"tool_calls": map[string]any{
			"success_total":  m.toolSuccessTotal.Load(),
			"error_total":    m.toolErrorTotal.Load(),
			"rejected_total": m.toolRejectedTotal.Load(),
		},
		"dispatch": outcomes,
	}
}

func newMetricsHandler(version string, start time.Time, rm *runtimeMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var readOnly, tracingEnabled, tracingInit, tracingExport int64
		var success, failed, rejected, micros int64
		if rm != nil {
			readOnly = rm.readOnly.Load()
			tracingEnabled = rm.tracingEnabled.Load()
			tracingInit = rm.tracingInitFailuresTotal.Load()
			tracingExport = rm.tracingExportErrorsTotal.Load()
			success = rm.toolSuccessTotal.Load()
			failed = rm.toolErrorTotal.Load()
			rejected = rm.toolRejectedTotal.Load()
			micros = rm.toolSecondsTotal.Load()
		}
		s := rm.snapshot()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		gauge := func(name, help string, v int64) {
			_, _ = fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
		}
		counter := func(name, help string, v int64) {
			_, _ = fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
		}

		gauge("rocketmq_mcp_up", "Whether the rocketmq-mcp process is up.", 1)
		_, _ = fmt.Fprintf(w, "# HELP rocketmq_mcp_build_info Build information.\n")
		_, _ = fmt.Fprintf(w, "# TYPE rocketmq_mcp_build_info gauge\n")
		_, _ = fmt.Fprintf(w, "rocketmq_mcp_build_info{version=%q} 1\n", version)
		gauge("rocketmq_mcp_start_time_seconds", "Start time since unix epoch.", start.Unix())
		gauge("rocketmq_mcp_read_only", "Whether the read-only gate is enabled.", readOnly)
		gauge("rocketmq_mcp_tracing_enabled", "Whether tracing is enabled.", tracingEnabled)
		counter("rocketmq_mcp_tracing_init_failures_total", "Total number of tracing initialization failures.", tracingInit)
		counter("rocketmq_mcp_tracing_export_errors_total", "Total number of tracing exporter errors reported by OpenTelemetry.", tracingExport)

		_, _ = fmt.Fprintf(w, "# HELP rocketmq_mcp_tool_calls_total Finished tool calls by result.\n")
		_, _ = fmt.Fprintf(w, "# TYPE rocketmq_mcp_tool_calls_total counter\n")
		_, _ = fmt.Fprintf(w, "rocketmq_mcp_tool_calls_total{result=%q} %d\n", audit.ResultSuccess, success)
		_, _ = fmt.Fprintf(w, "rocketmq_mcp_tool_calls_total{result=%q} %d\n", audit.ResultError, failed)
		_, _ = fmt.Fprintf(w, "rocketmq_mcp_tool_calls_total{result=%q} %d\n", audit.ResultRejected, rejected)
		_, _ = fmt.Fprintf(w, "# HELP rocketmq_mcp_tool_call_seconds_total Time spent in tool calls.\n")
		_, _ = fmt.Fprintf(w, "# TYPE rocketmq_mcp_tool_call_seconds_total counter\n")
		_, _ = fmt.Fprintf(w, "rocketmq_mcp_tool_call_seconds_total %.6f\n", float64(micros)/1e6)

		_, _ = fmt.Fprintf(w, "# HELP rocketmq_mcp_tool_calls_by_tool_total Finished tool calls by tool name.\n")
		_, _ = fmt.Fprintf(w, "# TYPE rocketmq_mcp_tool_calls_by_tool_total counter\n")
		names := make([]string, 0, len(s.byTool))
		for name := range s.byTool {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "rocketmq_mcp_tool_calls_by_tool_total{tool=%q} %d\n", name, s.byTool[name])
		}

		_, _ = fmt.Fprintf(w, "# HELP rocketmq_mcp_dispatch_total Admin dispatches by outcome.\n")
		_, _ = fmt.Fprintf(w, "# TYPE rocketmq_mcp_dispatch_total counter\n")
		for _, o := range dispatchOutcomeOrder {
			_, _ = fmt.Fprintf(w, "rocketmq_mcp_dispatch_total{outcome=%q} %d\n", o, s.byOutcome[o])
		}
	})
}
