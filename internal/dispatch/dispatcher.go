package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/francisoliverlee/rocketmq-mcp/internal/envelope"
)

// Conn is an admin connection owned by exactly one call.
type Conn interface {
	Start(ctx context.Context) error
	Close() error
}

// Opener builds an unstarted connection bound to p.
type Opener[C Conn] func(p Params) (C, error)

// ValidationError reports missing connection parameters. No connection is
// opened when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Outcome labels a finished dispatch for metrics.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeValidation Outcome = "validation_error"
	OutcomeStart      Outcome = "start_error"
	OutcomeError      Outcome = "error"
)

// Dispatcher runs operations against fresh connections.
type Dispatcher[C Conn] struct {
	open               Opener[C]
	defaults           Defaults
	requireCredentials bool
	logger             *slog.Logger
	tracer             trace.Tracer
	observe            func(op string, outcome Outcome, d time.Duration)
}

type Option[C Conn] func(*Dispatcher[C])

func WithDefaults[C Conn](d Defaults) Option[C] {
	return func(x *Dispatcher[C]) {
		x.defaults = d
	}
}

// WithRequireCredentials makes blank access or secret keys a validation
// error.
func WithRequireCredentials[C Conn](required bool) Option[C] {
	return func(x *Dispatcher[C]) {
		x.requireCredentials = required
	}
}

func WithLogger[C Conn](l *slog.Logger) Option[C] {
	return func(x *Dispatcher[C]) {
		if l != nil {
			x.logger = l
		}
	}
}

func WithObserver[C Conn](fn func(op string, outcome Outcome, d time.Duration)) Option[C] {
	return func(x *Dispatcher[C]) {
		x.observe = fn
	}
}

func New[C Conn](open Opener[C], opts ...Option[C]) *Dispatcher[C] {
	d := &Dispatcher[C]{
		open:   open,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher[C]) Defaults() Defaults {
	return d.defaults
}

// Validate checks the resolved parameters without connecting.
func (d *Dispatcher[C]) Validate(p Params) error {
	if p.NameServer == "" || len(p.Addresses()) == 0 {
		return &ValidationError{Message: errEmptyNameServer}
	}
	if d.requireCredentials {
		if p.AccessKey == "" {
			return &ValidationError{Message: errEmptyAccessKey}
		}
		if p.SecretKey == "" {
			return &ValidationError{Message: errEmptySecretKey}
		}
	}
	return nil
}

// Check resolves req and validates it without connecting. A failure is
// reported to the observer as OutcomeValidation under op.
func (d *Dispatcher[C]) Check(op string, req Request) error {
	err := d.Validate(Resolve(req, d.defaults))
	if err != nil && d.observe != nil {
		d.observe(op, OutcomeValidation, 0)
	}
	return err
}

// Call resolves req, opens and starts a connection, runs fn and wraps its
// result. The connection is closed exactly once on every path after it was
// opened; failures never escape as panics.
func Call[C Conn, T any](ctx context.Context, d *Dispatcher[C], op string, req Request, fn func(context.Context, C) (T, error)) envelope.Response[T] {
	started := time.Now()
	ctx, span := d.tracer.Start(ctx, "dispatch.call", trace.WithAttributes(attribute.String("rocketmq.operation", op)))
	defer span.End()

	resp, outcome := call(ctx, d, op, req, fn)
	if !resp.OK() {
		span.SetStatus(codes.Error, resp.ErrorMessage)
		d.logger.Warn("dispatch_failed",
			slog.String("operation", op),
			slog.String("outcome", string(outcome)),
			slog.String("err", firstLine(resp.ErrorMessage)),
		)
	}
	span.SetAttributes(attribute.String("rocketmq.outcome", string(outcome)))
	if d.observe != nil {
		d.observe(op, outcome, time.Since(started))
	}
	return resp
}

func call[C Conn, T any](ctx context.Context, d *Dispatcher[C], op string, req Request, fn func(context.Context, C) (T, error)) (resp envelope.Response[T], outcome Outcome) {
	p := Resolve(req, d.defaults)
	if err := d.Validate(p); err != nil {
		return envelope.Error[T](err.Error()), OutcomeValidation
	}
	if d.open == nil {
		return envelope.Error[T]("dispatcher has no connection opener"), OutcomeStart
	}

	conn, err := d.open(p)
	if err != nil {
		return envelope.Error[T](fmt.Sprintf("open admin connection: %v", err)), OutcomeStart
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			d.logger.Debug("dispatch_close_failed", slog.String("operation", op), slog.Any("err", cerr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			resp = envelope.Error[T](fmt.Sprintf("%v\n%s", r, debug.Stack()))
			outcome = OutcomeError
		}
	}()

	if err := conn.Start(ctx); err != nil {
		return envelope.Error[T](fmt.Sprintf("start admin connection: %v", err)), OutcomeStart
	}

	out, err := fn(ctx, conn)
	if err != nil {
		return envelope.Error[T](errorMessage(err)), OutcomeError
	}
	return envelope.Success(out), OutcomeSuccess
}

func errorMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
