package app

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/apache/rocketmq-client-go/v2/rlog"

	"github.com/francisoliverlee/rocketmq-mcp/internal/audit"
	"github.com/francisoliverlee/rocketmq-mcp/internal/config"
	"github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"
	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
	"github.com/francisoliverlee/rocketmq-mcp/internal/tools"
)

// toolRuntime is the tool invoker and everything it owns, shared by all
// transports of one process.
type toolRuntime struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *runtimeMetrics
	audit   audit.Sink
	invoker *tools.Invoker
}

// newRuntime wires dispatcher, gate, audit sink and metrics. auditOut
// receives the stderr audit sink.
func newRuntime(cfg config.Config, logger *slog.Logger, metrics *runtimeMetrics, auditOut io.Writer) (*toolRuntime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = newRuntimeMetrics()
	}
	if lvl := strings.TrimSpace(cfg.RocketMQ.LogLevel); lvl != "" {
		rlog.SetLogLevel(lvl)
	}

	sink, err := audit.Open(audit.Config{
		Sink:      cfg.Audit.Sink,
		Path:      cfg.Audit.Path,
		DSN:       cfg.Audit.DSN,
		Retention: cfg.Audit.Retention,
	}, auditOut)
	if err != nil {
		return nil, err
	}

	d := dispatch.New(
		mqadmin.Opener(mqadmin.WithTimeout(cfg.RocketMQ.Timeout), mqadmin.WithLogger(logger)),
		dispatch.WithDefaults[*mqadmin.Admin](dispatch.Defaults{
			NameServer: cfg.RocketMQ.NamesrvAddr,
			AccessKey:  cfg.RocketMQ.AccessKey,
			SecretKey:  cfg.RocketMQ.SecretKey,
		}),
		dispatch.WithRequireCredentials[*mqadmin.Admin](cfg.MCP.RequireCredentials),
		dispatch.WithLogger[*mqadmin.Admin](logger),
		dispatch.WithObserver[*mqadmin.Admin](metrics.observeDispatch),
	)
	gate := policy.Gate{Enabled: cfg.MCP.ReadOnly}
	metrics.setReadOnly(gate.Enabled)

	inv := tools.NewInvoker(d,
		tools.WithGate(gate),
		tools.WithAuditSink(sink),
		tools.WithPrincipal(cfg.MCP.Principal),
		tools.WithLogger(logger),
		tools.WithObserver(metrics),
	)
	return &toolRuntime{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		audit:   sink,
		invoker: inv,
	}, nil
}

func (r *toolRuntime) Close() error {
	if r == nil || r.audit == nil {
		return nil
	}
	err := r.audit.Close()
	if errors.Is(err, audit.ErrClosed) {
		return nil
	}
	return err
}
