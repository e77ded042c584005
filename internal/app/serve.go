package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/francisoliverlee/rocketmq-mcp/internal/config"
	"github.com/francisoliverlee/rocketmq-mcp/internal/httpapi"
	"github.com/francisoliverlee/rocketmq-mcp/internal/mcp"
	"github.com/francisoliverlee/rocketmq-mcp/internal/toolrpc"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the network transports: REST, MCP over SSE, metrics and
// health on the HTTP listener, and the tool service on the gRPC listener.
func serveCmd(args []string, std stdio) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := registerCommonFlags(fs)
	httpListen := fs.String("http-listen", "", "REST, SSE, metrics and health listen address (blank disables)")
	grpcListen := fs.String("grpc-listen", "", "gRPC tool service listen address (blank disables)")
	grpcTokens := fs.String("grpc-tokens", "", "comma separated bearer tokens accepted by the gRPC service")
	pidFile := fs.String("pid-file", "", "write the process id to this file")
	watch := fs.Bool("watch", false, "log when the config file changes on disk")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(std.err, "serve: unexpected positional arguments")
		return 2
	}

	cfg, err := common.resolve(fs)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	set := visitedFlags(fs)
	if set["http-listen"] {
		cfg.HTTP.Listen = *httpListen
	}
	if set["grpc-listen"] {
		cfg.GRPC.Listen = *grpcListen
	}
	if set["grpc-tokens"] {
		cfg.GRPC.Tokens = *grpcTokens
	}

	logger, logCloser, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	if err := checkConfig(cfg, logger); err != nil {
		logger.Error("config_invalid", slog.Any("err", err))
		return 2
	}
	if strings.TrimSpace(cfg.HTTP.Listen) == "" && strings.TrimSpace(cfg.GRPC.Listen) == "" {
		logger.Error("nothing_to_serve", slog.String("hint", "set http.listen or grpc.listen"))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := newRuntimeMetrics()
	tracingEnabled := false
	if cfg.Tracing.Enabled {
		shutdown, err := initTracing(ctx, cfg.Tracing, func(err error) {
			metrics.incTracingExportErrors()
			logger.Warn("tracing_export_error", slog.Any("err", err))
		})
		if err != nil {
			metrics.incTracingInitFailures()
			logger.Error("tracing_init_failed", slog.Any("err", err))
		} else {
			tracingEnabled = true
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}
	metrics.setTracingEnabled(tracingEnabled)

	release, err := claimPIDFile(*pidFile)
	if err != nil {
		logger.Error("pid_file_failed", slog.Any("err", err))
		return 1
	}
	defer release()

	rt, err := newRuntime(cfg, logger, metrics, std.err)
	if err != nil {
		logger.Error("runtime_init_failed", slog.Any("err", err))
		return 1
	}
	defer rt.Close()

	if *watch {
		path := strings.TrimSpace(*common.configPath)
		if running, err := config.Load(path, false); err != nil {
			logger.Warn("watch_disabled", slog.Any("err", err))
		} else {
			checker := configChecker{path: path, running: running, logger: logger}
			go watchConfig(ctx, path, logger, func() { checker.check() })
		}
	}

	logger.Info("config_ok",
		slog.String("version", version),
		slog.Bool("read_only", cfg.MCP.ReadOnly),
		slog.String("audit_sink", cfg.Audit.Sink),
		slog.Int("tools", len(rt.invoker.Catalog().All())),
	)
	if err := runServers(ctx, cfg, rt, tracingEnabled); err != nil {
		logger.Error("server_error", slog.Any("err", err))
		return 1
	}
	logger.Info("shutdown_complete")
	return 0
}

// runServers serves until ctx is done or a listener fails, then shuts
// every server down.
func runServers(ctx context.Context, cfg config.Config, rt *toolRuntime, tracingEnabled bool) error {
	var httpLn, grpcLn net.Listener
	if addr := strings.TrimSpace(cfg.HTTP.Listen); addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("http listen %s: %w", addr, err)
		}
		httpLn = ln
	}
	if addr := strings.TrimSpace(cfg.GRPC.Listen); addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			if httpLn != nil {
				_ = httpLn.Close()
			}
			return fmt.Errorf("grpc listen %s: %w", addr, err)
		}
		grpcLn = ln
	}

	g, gctx := errgroup.WithContext(ctx)
	if httpLn != nil {
		srv := &http.Server{
			Handler:           newHTTPHandler(cfg, rt, time.Now(), tracingEnabled),
			ReadHeaderTimeout: 10 * time.Second,
		}
		rt.logger.Info("http_listening", slog.String("addr", httpLn.Addr().String()))
		g.Go(func() error {
			if err := srv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	if grpcLn != nil {
		srv := newGRPCServer(cfg, rt)
		rt.logger.Info("grpc_listening", slog.String("addr", grpcLn.Addr().String()))
		g.Go(func() error {
			if err := srv.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			srv.GracefulStop()
			return nil
		})
	}
	return g.Wait()
}

func newHTTPHandler(cfg config.Config, rt *toolRuntime, start time.Time, tracingEnabled bool) http.Handler {
	api := httpapi.NewServer(rt.invoker,
		httpapi.WithLogger(rt.logger),
		httpapi.WithLegacyText(cfg.MCP.LegacyText),
		httpapi.WithDebugBodies(cfg.HTTP.DebugBodies),
		httpapi.WithPrincipal(cfg.MCP.Principal),
	)
	sse := mcp.NewSSEHandler(rt.invoker, strings.TrimSpace(cfg.MCP.SSEBaseURL),
		mcp.WithVersion(version),
		mcp.WithPrincipal(cfg.MCP.Principal),
		mcp.WithLegacyText(cfg.MCP.LegacyText),
		mcp.WithLogger(rt.logger),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.Handler())
	mux.Handle(mcp.SSEBasePath+"/", httpapi.CORS(sse))
	mux.Handle("/metrics", newMetricsHandler(version, start, rt.metrics))
	mux.Handle("/healthz", newHealthHandler(rt.metrics))
	return wrapTracingHandler(tracingEnabled, serviceName, withAccessLog(rt.logger, mux))
}

func newHealthHandler(m *runtimeMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          true,
			"version":     version,
			"diagnostics": m.healthDiagnostics(),
		})
	})
}

func newGRPCServer(cfg config.Config, rt *toolRuntime) *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(toolrpc.UnaryLogger(rt.logger)))
	svc := toolrpc.NewServer(rt.invoker)
	svc.Authorize = toolrpc.BearerTokenAuthorizer(cfg.GRPCTokens())
	svc.Principal = cfg.MCP.Principal
	toolrpc.Register(srv, svc)
	return srv
}
