package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/francisoliverlee/rocketmq-mcp/internal/config"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

func newTestRuntime(t *testing.T, mutate func(*config.Config)) (*toolRuntime, config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Audit.Sink = "none"
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := newRuntime(cfg, newDiscardLogger(), nil, io.Discard)
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt, cfg
}

func TestHTTPHandlerRoutes(t *testing.T) {
	rt, cfg := newTestRuntime(t, func(c *config.Config) { c.MCP.ReadOnly = true })
	srv := httptest.NewServer(newHTTPHandler(cfg, rt, time.Now(), false))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/topic/deleteTopic", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || string(body) != policy.ReadOnlyMessage {
		t.Fatalf("deleteTopic: %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/api/tools/topic")
	if err != nil {
		t.Fatalf("get tools: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tools status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	var health struct {
		OK          bool           `json:"ok"`
		Diagnostics map[string]any `json:"diagnostics"`
	}
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil || !health.OK || health.Diagnostics["read_only"] != true {
		t.Fatalf("healthz: %v %#v", err, health)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		"rocketmq_mcp_read_only 1",
		`rocketmq_mcp_tool_calls_total{result="rejected"} 1`,
		`rocketmq_mcp_tool_calls_by_tool_total{tool="deleteTopic"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in metrics:\n%s", want, body)
		}
	}
}

func TestHTTPHandlerSSEEndpoint(t *testing.T) {
	rt, cfg := newTestRuntime(t, nil)
	srv := httptest.NewServer(newHTTPHandler(cfg, rt, time.Now(), false))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/mcp/sse", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sse: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("sse: %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	if err != nil && n == 0 {
		t.Fatalf("read sse: %v", err)
	}
	if !strings.Contains(string(buf[:n]), "sessionId=") {
		t.Fatalf("missing endpoint event: %q", buf[:n])
	}
}

func TestHealthHandlerRejectsPost(t *testing.T) {
	rr := httptest.NewRecorder()
	newHealthHandler(newRuntimeMetrics()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestRunServersStopsOnCancel(t *testing.T) {
	rt, cfg := newTestRuntime(t, func(c *config.Config) {
		c.HTTP.Listen = "127.0.0.1:0"
		c.GRPC.Listen = "127.0.0.1:0"
	})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- runServers(ctx, cfg, rt, false) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("runServers: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("servers did not stop")
	}
}

func TestRunServersListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()
	rt, cfg := newTestRuntime(t, func(c *config.Config) {
		c.HTTP.Listen = "127.0.0.1:0"
		c.GRPC.Listen = busy.Addr().String()
	})
	if err := runServers(context.Background(), cfg, rt, false); err == nil || !strings.Contains(err.Error(), "grpc listen") {
		t.Fatalf("expected grpc listen error, got %v", err)
	}
}
