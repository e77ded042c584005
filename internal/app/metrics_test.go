package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/francisoliverlee/rocketmq-mcp/internal/audit"
	"github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandler_Defaults(t *testing.T) {
	body := scrape(t, newMetricsHandler("dev", time.Unix(100, 0).UTC(), nil))
	for _, want := range []string{
		"rocketmq_mcp_up 1",
		`rocketmq_mcp_build_info{version="dev"} 1`,
		"rocketmq_mcp_start_time_seconds 100",
		"rocketmq_mcp_read_only 0",
		"rocketmq_mcp_tracing_enabled 0",
		"rocketmq_mcp_tracing_init_failures_total 0",
		`rocketmq_mcp_tool_calls_total{result="success"} 0`,
		`rocketmq_mcp_tool_calls_total{result="rejected"} 0`,
		`rocketmq_mcp_dispatch_total{outcome="start_error"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in metrics output:\n%s", want, body)
		}
	}
}

func TestMetricsHandler_Observed(t *testing.T) {
	m := newRuntimeMetrics()
	m.setReadOnly(true)
	m.setTracingEnabled(true)
	m.incTracingExportErrors()
	m.ObserveToolCall("getUser", audit.ResultSuccess, 1500*time.Millisecond)
	m.ObserveToolCall("getUser", audit.ResultError, 500*time.Millisecond)
	m.ObserveToolCall("deleteTopic", audit.ResultRejected, 0)
	m.observeDispatch("getUser", dispatch.OutcomeSuccess, time.Second)
	m.observeDispatch("getUser", dispatch.OutcomeValidation, 0)

	body := scrape(t, newMetricsHandler("v1", time.Now(), m))
	for _, want := range []string{
		"rocketmq_mcp_read_only 1",
		"rocketmq_mcp_tracing_enabled 1",
		"rocketmq_mcp_tracing_export_errors_total 1",
		`rocketmq_mcp_tool_calls_total{result="success"} 1`,
		`rocketmq_mcp_tool_calls_total{result="error"} 1`,
		`rocketmq_mcp_tool_calls_total{result="rejected"} 1`,
		"rocketmq_mcp_tool_call_seconds_total 2.000000",
		`rocketmq_mcp_tool_calls_by_tool_total{tool="deleteTopic"} 1`,
		`rocketmq_mcp_tool_calls_by_tool_total{tool="getUser"} 2`,
		`rocketmq_mcp_dispatch_total{outcome="success"} 1`,
		`rocketmq_mcp_dispatch_total{outcome="validation_error"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in metrics output:\n%s", want, body)
		}
	}
	if strings.Index(body, `tool="deleteTopic"`) > strings.Index(body, `tool="getUser"`) {
		t.Fatalf("per-tool series must be sorted:\n%s", body)
	}

	diag := m.healthDiagnostics()
	calls, ok := diag["tool_calls"].(map[string]any)
	if !ok || calls["rejected_total"] != int64(1) || diag["read_only"] != true {
		t.Fatalf("unexpected diagnostics: %#v", diag)
	}
}
