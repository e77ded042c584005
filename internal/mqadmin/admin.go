// Package mqadmin is the administrative client used by every tool: a
// short-lived connection to one RocketMQ deployment, opened per call.
//
// Topic lifecycle, queue discovery and subscription group listing go through
// the Apache RocketMQ Go admin client. Everything that client does not
// expose is issued as a remoting request against the name servers, brokers
// or controllers.
package mqadmin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apache/rocketmq-client-go/v2/admin"
	"github.com/apache/rocketmq-client-go/v2/primitive"

	"github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"
	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

const DefaultTimeout = 5 * time.Second

var (
	ErrNotStarted = errors.New("mqadmin: admin not started")
	ErrClosed     = errors.New("mqadmin: admin closed")
	ErrNoBroker   = errors.New("mqadmin: no broker available")
)

// TopicAdmin is the subset of the Apache admin client this package uses.
type TopicAdmin interface {
	CreateTopic(ctx context.Context, opts ...admin.OptionCreate) error
	DeleteTopic(ctx context.Context, opts ...admin.OptionDelete) error
	GetAllSubscriptionGroup(ctx context.Context, brokerAddr string, timeoutMillis time.Duration) (*admin.SubscriptionGroupWrapper, error)
	FetchAllTopicList(ctx context.Context) (*admin.TopicList, error)
	FetchPublishMessageQueues(ctx context.Context, topic string) ([]*primitive.MessageQueue, error)
	Close() error
}

type state int

const (
	stateCreated state = iota
	stateRunning
	stateClosed
)

// Admin implements dispatch.Conn.
type Admin struct {
	params  dispatch.Params
	timeout time.Duration
	logger  *slog.Logger

	newTransport  func(p dispatch.Params) remoting.Transport
	newTopicAdmin func(p dispatch.Params) (TopicAdmin, error)

	mu        sync.Mutex
	state     state
	transport remoting.Transport
	topics    TopicAdmin
}

type Option func(*Admin)

func WithTimeout(d time.Duration) Option {
	return func(a *Admin) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Admin) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTransport replaces the remoting client built by Start.
func WithTransport(fn func(p dispatch.Params) remoting.Transport) Option {
	return func(a *Admin) {
		if fn != nil {
			a.newTransport = fn
		}
	}
}

// WithTopicAdmin replaces the Apache admin client factory.
func WithTopicAdmin(fn func(p dispatch.Params) (TopicAdmin, error)) Option {
	return func(a *Admin) {
		if fn != nil {
			a.newTopicAdmin = fn
		}
	}
}

func New(p dispatch.Params, opts ...Option) *Admin {
	a := &Admin{
		params:  p,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.newTransport == nil {
		a.newTransport = a.defaultTransport
	}
	if a.newTopicAdmin == nil {
		a.newTopicAdmin = defaultTopicAdmin
	}
	return a
}

// Opener returns a dispatch.Opener building Admins with opts.
func Opener(opts ...Option) dispatch.Opener[*Admin] {
	return func(p dispatch.Params) (*Admin, error) {
		if len(p.Addresses()) == 0 {
			return nil, errors.New("no name server address")
		}
		return New(p, opts...), nil
	}
}

func (a *Admin) defaultTransport(p dispatch.Params) remoting.Transport {
	opts := []remoting.ClientOption{
		remoting.WithTimeout(a.timeout),
		remoting.WithLogger(a.logger),
	}
	if p.Authenticated() {
		opts = append(opts, remoting.WithHook(remoting.ACLHook(p.AccessKey, p.SecretKey)))
	}
	return remoting.NewClient(opts...)
}

func defaultTopicAdmin(p dispatch.Params) (TopicAdmin, error) {
	opts := []admin.AdminOption{
		admin.WithResolver(primitive.NewPassthroughResolver(p.Addresses())),
	}
	if p.Authenticated() {
		opts = append(opts, admin.WithCredentials(primitive.Credentials{
			AccessKey: p.AccessKey,
			SecretKey: p.SecretKey,
		}))
	}
	return admin.NewAdmin(opts...)
}

func (a *Admin) Params() dispatch.Params { return a.params }

// Start builds the remoting transport. The Apache admin client is built
// lazily on first use.
func (a *Admin) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateRunning:
		return nil
	case stateClosed:
		return ErrClosed
	}
	if len(a.params.Addresses()) == 0 {
		return errors.New("no name server address")
	}
	a.transport = a.newTransport(a.params)
	a.state = stateRunning
	return nil
}

// Close releases the transport and the Apache client. It is safe to call on
// an Admin that never started and to call more than once.
func (a *Admin) Close() error {
	a.mu.Lock()
	transport, topics := a.transport, a.topics
	a.transport, a.topics = nil, nil
	a.state = stateClosed
	a.mu.Unlock()

	var errs []error
	if topics != nil {
		if err := topics.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close topic admin: %w", err))
		}
	}
	if transport != nil {
		if err := transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *Admin) remote() (remoting.Transport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateCreated:
		return nil, ErrNotStarted
	case stateClosed:
		return nil, ErrClosed
	}
	return a.transport, nil
}

func (a *Admin) topicAdmin() (TopicAdmin, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateCreated:
		return nil, ErrNotStarted
	case stateClosed:
		return nil, ErrClosed
	}
	if a.topics == nil {
		t, err := a.newTopicAdmin(a.params)
		if err != nil {
			return nil, fmt.Errorf("create topic admin: %w", err)
		}
		a.topics = t
	}
	return a.topics, nil
}

// invoke sends one request to addr and checks the response code.
func (a *Admin) invoke(ctx context.Context, addr string, code remoting.Code, ext map[string]string, body []byte, accepted ...remoting.Code) (*remoting.Command, error) {
	t, err := a.remote()
	if err != nil {
		return nil, err
	}
	if addr == "" {
		return nil, ErrNoBroker
	}
	resp, err := t.Invoke(ctx, addr, remoting.NewCommand(code, ext, body))
	if err != nil {
		return nil, err
	}
	if err := remoting.CheckResponse(addr, resp, accepted...); err != nil {
		return nil, err
	}
	return resp, nil
}

// invokeNamesrv tries the name servers in configured order until one
// answers. A server-side error response is returned without failover.
func (a *Admin) invokeNamesrv(ctx context.Context, code remoting.Code, ext map[string]string, body []byte, accepted ...remoting.Code) (*remoting.Command, error) {
	var errs []error
	for _, addr := range a.params.Addresses() {
		resp, err := a.invoke(ctx, addr, code, ext, body, accepted...)
		if err == nil {
			return resp, nil
		}
		var re *remoting.ResponseError
		if errors.As(err, &re) || errors.Is(err, ErrNotStarted) || errors.Is(err, ErrClosed) || ctx.Err() != nil {
			return nil, err
		}
		a.logger.Debug("namesrv_failover", slog.String("addr", addr), slog.Any("err", err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no name server address")
	}
	return nil, errors.Join(errs...)
}

// invokeEachNamesrv sends the same request to every address, or to every
// configured name server when addrs is empty.
func (a *Admin) invokeEachNamesrv(ctx context.Context, addrs []string, code remoting.Code, ext map[string]string, body []byte) error {
	if len(addrs) == 0 {
		addrs = a.params.Addresses()
	}
	for _, addr := range addrs {
		if _, err := a.invoke(ctx, addr, code, ext, body); err != nil {
			return err
		}
	}
	return nil
}

func decodeBody(resp *remoting.Command, v any) error {
	if err := remoting.DecodeJSON(resp.Body, v); err != nil {
		return fmt.Errorf("decode response body (code %d): %w", resp.Code, err)
	}
	return nil
}

func (a *Admin) timeoutCtx(ctx context.Context, timeoutMillis int64) (context.Context, context.CancelFunc) {
	if timeoutMillis <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMillis)*time.Millisecond)
}
