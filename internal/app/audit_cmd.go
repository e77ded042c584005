package app

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/francisoliverlee/rocketmq-mcp/internal/audit"
)

func auditCmd(args []string, std stdio) int {
	if len(args) < 1 {
		fmt.Fprintln(std.err, "missing subcommand: list")
		return 2
	}
	switch args[0] {
	case "list":
		return auditList(args[1:], std)
	default:
		fmt.Fprintf(std.err, "unknown audit subcommand: %s\n", args[0])
		return 2
	}
}

// auditList prints stored audit events as JSON lines, newest first.
func auditList(args []string, std stdio) int {
	fs := flag.NewFlagSet("audit list", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := registerCommonFlags(fs)
	tool := fs.String("tool", "", "only events of this tool")
	principal := fs.String("principal-filter", "", "only events of this principal")
	result := fs.String("result", "", "only events with this result (success|error|rejected)")
	since := fs.Duration("since", 0, "only events newer than this age")
	limit := fs.Int("limit", 100, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	filter := audit.Filter{
		Tool:      strings.TrimSpace(*tool),
		Principal: strings.TrimSpace(*principal),
		Limit:     *limit,
	}
	switch r := audit.Result(strings.ToLower(strings.TrimSpace(*result))); r {
	case "", audit.ResultSuccess, audit.ResultError, audit.ResultRejected:
		filter.Result = r
	default:
		fmt.Fprintf(std.err, "audit list: invalid --result %q\n", *result)
		return 2
	}
	if *since > 0 {
		filter.Since = time.Now().Add(-*since)
	}

	cfg, err := common.resolve(fs)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	store, err := openAuditLister(cfg.Audit.Sink, cfg.Audit.Path, cfg.Audit.DSN)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	defer store.Close()

	events, err := store.List(context.Background(), filter)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	enc := json.NewEncoder(std.out)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			fmt.Fprintln(std.err, err.Error())
			return 1
		}
	}
	return 0
}

type auditStore interface {
	audit.Lister
	Close() error
}

func openAuditLister(sink, path, dsn string) (auditStore, error) {
	switch strings.ToLower(strings.TrimSpace(sink)) {
	case "sqlite":
		return audit.NewSQLiteStore(path)
	case "postgres":
		return audit.NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("audit sink %q cannot be listed (use sqlite or postgres)", sink)
	}
}
