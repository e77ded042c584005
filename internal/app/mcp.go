package app

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/francisoliverlee/rocketmq-mcp/internal/mcp"
)

func mcpCmd(args []string, std stdio) int {
	if len(args) < 1 {
		fmt.Fprintln(std.err, "missing subcommand: serve")
		return 2
	}
	switch args[0] {
	case "serve":
		return mcpServe(args[1:], std)
	default:
		fmt.Fprintf(std.err, "unknown mcp subcommand: %s\n", args[0])
		return 2
	}
}

// mcpServe speaks MCP over stdin/stdout. Logs and the stderr audit sink
// share stderr so stdout carries only protocol frames.
func mcpServe(args []string, std stdio) int {
	fs := flag.NewFlagSet("mcp serve", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := registerCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := common.resolve(fs)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	logger, err := newStderrLogger(std.err, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	if err := checkConfig(cfg, logger); err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}

	rt, err := newRuntime(cfg, logger, nil, std.err)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcp.NewServer(std.in, std.out, rt.invoker,
		mcp.WithVersion(version),
		mcp.WithPrincipal(cfg.MCP.Principal),
		mcp.WithLegacyText(cfg.MCP.LegacyText),
		mcp.WithLogger(logger),
	)
	logger.Info("mcp_stdio_started",
		slog.Bool("read_only", cfg.MCP.ReadOnly),
		slog.Int("tools", len(rt.invoker.Catalog().All())),
	)
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	return 0
}
