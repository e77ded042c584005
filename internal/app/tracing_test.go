package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/francisoliverlee/rocketmq-mcp/internal/config"
)

func TestInitTracing(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	shutdown, err := initTracing(context.Background(), config.TracingConfig{
		Enabled:   true,
		Collector: collector.URL,
		URLPath:   "/v1/traces",
		Insecure:  true,
		Timeout:   time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("initTracing: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsBadCollector(t *testing.T) {
	if _, err := initTracing(context.Background(), config.TracingConfig{Collector: "://nope"}, nil); err == nil {
		t.Fatalf("expected error for an invalid collector URL")
	}
}

func TestWrapTracingHandler(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	if got := wrapTracingHandler(false, "x", h); got == nil {
		t.Fatalf("nil handler")
	}
	rr := httptest.NewRecorder()
	wrapTracingHandler(true, "x", h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status %d", rr.Code)
	}
}
