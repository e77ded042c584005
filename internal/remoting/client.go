package remoting

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

const defaultTimeout = 5 * time.Second

// Transport sends a request and waits for the matching response.
type Transport interface {
	Invoke(ctx context.Context, addr string, cmd *Command) (*Command, error)
	InvokeOneway(ctx context.Context, addr string, cmd *Command) error
	Close() error
}

// Client is a Transport over plain TCP. One connection is kept per address
// for the lifetime of the client.
type Client struct {
	timeout time.Duration
	hooks   []Hook
	logger  *slog.Logger
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)

	mu     sync.Mutex
	conns  map[string]*channel
	closed bool
}

type ClientOption func(*Client)

// WithTimeout bounds every request that has no earlier context deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHook(h Hook) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDialer replaces net.Dialer.DialContext.
func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) ClientOption {
	return func(c *Client) {
		if dial != nil {
			c.dial = dial
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	var d net.Dialer
	c := &Client{
		timeout: defaultTimeout,
		logger:  slog.Default(),
		dial:    d.DialContext,
		conns:   make(map[string]*channel),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Invoke(ctx context.Context, addr string, cmd *Command) (*Command, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ch, err := c.channel(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.applyHooks(addr, cmd)

	wait := ch.register(cmd.Opaque)
	defer ch.unregister(cmd.Opaque)

	if err := ch.write(cmd); err != nil {
		c.drop(addr, ch)
		return nil, fmt.Errorf("send request to %s: %w", addr, err)
	}

	select {
	case resp := <-wait:
		return resp, nil
	case <-ch.done:
		c.drop(addr, ch)
		return nil, fmt.Errorf("%s: %w", addr, ch.failure())
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("invoke %s code=%d: %w", addr, cmd.Code, ErrTimeout)
		}
		return nil, ctx.Err()
	}
}

func (c *Client) InvokeOneway(ctx context.Context, addr string, cmd *Command) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ch, err := c.channel(ctx, addr)
	if err != nil {
		return err
	}
	cmd.MarkOneway()
	c.applyHooks(addr, cmd)
	if err := ch.write(cmd); err != nil {
		c.drop(addr, ch)
		return fmt.Errorf("send oneway request to %s: %w", addr, err)
	}
	return nil
}

// Close closes every connection. Pending requests fail with ErrConnClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conns := c.conns
	c.conns = nil
	c.mu.Unlock()

	var errs []error
	for _, ch := range conns {
		if err := ch.close(ErrConnClosed); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) applyHooks(addr string, cmd *Command) {
	for _, h := range c.hooks {
		h(addr, cmd)
	}
}

func (c *Client) channel(ctx context.Context, addr string) (*channel, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	if ch, ok := c.conns[addr]; ok {
		c.mu.Unlock()
		return ch, nil
	}
	c.mu.Unlock()

	nc, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	ch := newChannel(nc, c.logger.With(slog.String("addr", addr)))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = ch.close(ErrClientClosed)
		return nil, ErrClientClosed
	}
	if existing, ok := c.conns[addr]; ok {
		_ = ch.close(ErrConnClosed)
		return existing, nil
	}
	c.conns[addr] = ch
	go ch.readLoop()
	return ch, nil
}

func (c *Client) drop(addr string, ch *channel) {
	c.mu.Lock()
	if cur, ok := c.conns[addr]; ok && cur == ch {
		delete(c.conns, addr)
	}
	c.mu.Unlock()
	_ = ch.close(ErrConnClosed)
}

type channel struct {
	nc     net.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int32]chan *Command
	err     error

	done     chan struct{}
	doneOnce sync.Once
}

func newChannel(nc net.Conn, logger *slog.Logger) *channel {
	return &channel{
		nc:      nc,
		logger:  logger,
		pending: make(map[int32]chan *Command),
		done:    make(chan struct{}),
	}
}

func (ch *channel) register(opaque int32) <-chan *Command {
	w := make(chan *Command, 1)
	ch.mu.Lock()
	ch.pending[opaque] = w
	ch.mu.Unlock()
	return w
}

func (ch *channel) unregister(opaque int32) {
	ch.mu.Lock()
	delete(ch.pending, opaque)
	ch.mu.Unlock()
}

func (ch *channel) write(cmd *Command) error {
	frame, err := Encode(cmd)
	if err != nil {
		return err
	}
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	_, err = ch.nc.Write(frame)
	return err
}

func (ch *channel) readLoop() {
	r := bufio.NewReader(ch.nc)
	for {
		frame, err := ReadFrame(r)
		if err != nil {
			_ = ch.close(err)
			return
		}
		cmd, err := Decode(frame)
		if err != nil {
			ch.logger.Warn("remoting_decode_failed", slog.Any("err", err))
			continue
		}
		if !cmd.IsResponse() {
			ch.logger.Debug("remoting_request_ignored", slog.Int("code", int(cmd.Code)))
			continue
		}
		ch.mu.Lock()
		w, ok := ch.pending[cmd.Opaque]
		ch.mu.Unlock()
		if !ok {
			ch.logger.Debug("remoting_response_orphaned", slog.Int("opaque", int(cmd.Opaque)))
			continue
		}
		select {
		case w <- cmd:
		default:
		}
	}
}

func (ch *channel) failure() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.err == nil {
		return ErrConnClosed
	}
	return ch.err
}

func (ch *channel) close(cause error) error {
	var err error
	ch.doneOnce.Do(func() {
		ch.mu.Lock()
		ch.err = cause
		ch.mu.Unlock()
		err = ch.nc.Close()
		close(ch.done)
	})
	return err
}
