package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/francisoliverlee/rocketmq-mcp/internal/audit"
	"github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"
	"github.com/francisoliverlee/rocketmq-mcp/internal/envelope"
	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
)

// Call is one inbound tool invocation.
type Call struct {
	Tool      string
	Args      Args
	Transport string
	RequestID string
	// Principal overrides the invoker's default principal.
	Principal string
	// GateIdentifier is matched by the read-only gate instead of the tool
	// name; REST passes the request path.
	GateIdentifier string
}

// Observer receives one notification per finished call.
type Observer interface {
	ObserveToolCall(tool string, result audit.Result, d time.Duration)
}

// Invoker runs tool calls for every transport: gate, argument validation,
// dispatch and audit.
type Invoker struct {
	catalog    *Catalog
	dispatcher *dispatch.Dispatcher[*mqadmin.Admin]
	gate       policy.Gate
	audit      audit.Sink
	principal  string
	logger     *slog.Logger
	observer   Observer
	nowFn      func() time.Time
}

type InvokerOption func(*Invoker)

func WithCatalog(c *Catalog) InvokerOption {
	return func(i *Invoker) {
		if c != nil {
			i.catalog = c
		}
	}
}

func WithGate(g policy.Gate) InvokerOption {
	return func(i *Invoker) {
		i.gate = g
	}
}

func WithAuditSink(s audit.Sink) InvokerOption {
	return func(i *Invoker) {
		if s != nil {
			i.audit = s
		}
	}
}

func WithPrincipal(p string) InvokerOption {
	return func(i *Invoker) {
		i.principal = p
	}
}

func WithLogger(l *slog.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

func WithObserver(o Observer) InvokerOption {
	return func(i *Invoker) {
		i.observer = o
	}
}

func NewInvoker(d *dispatch.Dispatcher[*mqadmin.Admin], opts ...InvokerOption) *Invoker {
	i := &Invoker{
		catalog:    Default(),
		dispatcher: d,
		audit:      audit.Nop{},
		principal:  "unknown",
		logger:     slog.Default(),
		nowFn:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Invoker) Catalog() *Catalog {
	return i.catalog
}

func (i *Invoker) Gate() policy.Gate {
	return i.gate
}

// Invoke runs c. The returned error is non-nil only for calls that never
// reached dispatch: ErrUnknownTool or a *policy.RejectError. Everything else,
// including argument errors, is reported in the envelope.
//
// A call carrying a GateIdentifier is gated before the tool is resolved, so a
// write path is rejected even when it names no catalog tool. Connection
// parameters are checked before tool arguments.
func (i *Invoker) Invoke(ctx context.Context, c Call) (envelope.Response[any], error) {
	started := i.nowFn()
	tool, ok := i.catalog.Lookup(c.Tool)
	if !ok && c.GateIdentifier == "" {
		return envelope.Response[any]{}, fmt.Errorf("%w: %s", ErrUnknownTool, c.Tool)
	}
	if !ok {
		tool = Tool{Name: c.Tool}
	}

	identifier := c.GateIdentifier
	if identifier == "" {
		identifier = tool.Name
	}
	if err := i.gate.Check(identifier); err != nil {
		var rej *policy.RejectError
		if errors.As(err, &rej) {
			i.logger.Warn("tool_rejected",
				slog.String("tool", tool.Name),
				slog.String("identifier", identifier),
				slog.String("matched", rej.Operation),
				slog.String("transport", c.Transport),
			)
		}
		i.finish(ctx, c, tool, started, audit.ResultRejected, err.Error())
		return envelope.Response[any]{}, err
	}
	if !ok {
		return envelope.Response[any]{}, fmt.Errorf("%w: %s", ErrUnknownTool, c.Tool)
	}

	addrs, ak, sk := c.Args.Connection()
	req := dispatch.Request{
		NameServerAddressList: addrs,
		AccessKey:             ak,
		SecretKey:             sk,
	}
	if err := i.dispatcher.Check(tool.Name, req); err != nil {
		resp := envelope.Error[any](err.Error())
		i.finish(ctx, c, tool, started, audit.ResultError, resp.ErrorMessage)
		return resp, nil
	}
	if err := tool.Validate(c.Args); err != nil {
		resp := envelope.Error[any](err.Error())
		i.finish(ctx, c, tool, started, audit.ResultError, resp.ErrorMessage)
		return resp, nil
	}

	resp := dispatch.Call(ctx, i.dispatcher, tool.Name, req, func(ctx context.Context, a *mqadmin.Admin) (any, error) {
		return tool.Run(ctx, a, c.Args)
	})

	result := audit.ResultSuccess
	if !resp.OK() {
		result = audit.ResultError
	}
	i.finish(ctx, c, tool, started, result, resp.ErrorMessage)
	return resp, nil
}

func (i *Invoker) finish(ctx context.Context, c Call, tool Tool, started time.Time, result audit.Result, errMsg string) {
	d := i.nowFn().Sub(started)
	i.logger.Info("tool_call",
		slog.String("tool", tool.Name),
		slog.String("group", string(tool.Group)),
		slog.String("transport", c.Transport),
		slog.String("result", string(result)),
		slog.Int64("duration_ms", d.Milliseconds()),
		slog.String("request_id", c.RequestID),
	)
	if i.observer != nil {
		i.observer.ObserveToolCall(tool.Name, result, d)
	}
	if !tool.Write && result != audit.ResultRejected {
		return
	}
	principal := c.Principal
	if principal == "" {
		principal = i.principal
	}
	err := i.audit.Record(ctx, audit.Event{
		Timestamp:  started,
		Principal:  principal,
		Transport:  c.Transport,
		Tool:       tool.Name,
		Group:      string(tool.Group),
		InputHash:  audit.InputHash(c.Args),
		Result:     result,
		DurationMS: d.Milliseconds(),
		Error:      firstLine(errMsg),
		RequestID:  c.RequestID,
	})
	if err != nil {
		i.logger.Error("audit_record_failed", slog.String("tool", tool.Name), slog.Any("err", err))
	}
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
