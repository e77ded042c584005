package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingConn struct {
	params   Params
	startErr error
	started  atomic.Int64
	closed   atomic.Int64
}

func (c *countingConn) Start(context.Context) error {
	c.started.Add(1)
	return c.startErr
}

func (c *countingConn) Close() error {
	c.closed.Add(1)
	return nil
}

type recorder struct {
	opened atomic.Int64
	conns  []*countingConn
	start  error
}

func (r *recorder) open(p Params) (*countingConn, error) {
	r.opened.Add(1)
	c := &countingConn{params: p, startErr: r.start}
	r.conns = append(r.conns, c)
	return c, nil
}

func TestResolveExplicitWins(t *testing.T) {
	defaults := Defaults{NameServer: "10.0.0.1:9876", AccessKey: "defAK", SecretKey: "defSK"}
	p := Resolve(Request{
		NameServerAddressList: []string{"127.0.0.1:9876", " 127.0.0.2:9876 "},
		AccessKey:             "ak",
		SecretKey:             "sk",
	}, defaults)
	if p.NameServer != "127.0.0.1:9876;127.0.0.2:9876" {
		t.Fatalf("NameServer=%q", p.NameServer)
	}
	if p.AccessKey != "ak" || p.SecretKey != "sk" {
		t.Fatalf("keys=%q/%q", p.AccessKey, p.SecretKey)
	}
	if !p.Authenticated() {
		t.Fatalf("expected authenticated params")
	}
	if got := p.Addresses(); len(got) != 2 || got[1] != "127.0.0.2:9876" {
		t.Fatalf("Addresses()=%v", got)
	}
}

func TestResolveFallsBackPerField(t *testing.T) {
	defaults := Defaults{NameServer: "10.0.0.1:9876", AccessKey: "defAK", SecretKey: "defSK"}
	cases := []struct {
		name string
		req  Request
		want Params
	}{
		{
			name: "all omitted",
			req:  Request{},
			want: Params{NameServer: "10.0.0.1:9876", AccessKey: "defAK", SecretKey: "defSK"},
		},
		{
			name: "blank keys",
			req:  Request{NameServerAddressList: []string{"a:9876"}, AccessKey: "  ", SecretKey: "\t"},
			want: Params{NameServer: "a:9876", AccessKey: "defAK", SecretKey: "defSK"},
		},
		{
			name: "blank list entries",
			req:  Request{NameServerAddressList: []string{"", " "}, AccessKey: "ak"},
			want: Params{NameServer: "10.0.0.1:9876", AccessKey: "ak", SecretKey: "defSK"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.req, defaults); got != tc.want {
				t.Fatalf("Resolve()=%+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestResolveUnauthenticatedWithoutBothKeys(t *testing.T) {
	p := Resolve(Request{NameServerAddressList: []string{"a:9876"}, AccessKey: "ak"}, Defaults{})
	if p.Authenticated() {
		t.Fatalf("single key must not enable authenticated mode")
	}
}

func TestDefaultsFromEnv(t *testing.T) {
	env := map[string]string{EnvNameServer: " ns:9876 ", EnvAccessKey: "ak"}
	d := DefaultsFromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if d.NameServer != "ns:9876" || d.AccessKey != "ak" || d.SecretKey != "" {
		t.Fatalf("DefaultsFromEnv()=%+v", d)
	}
	merged := Defaults{NameServer: "cfg:9876"}.Merge(d)
	if merged.NameServer != "cfg:9876" || merged.AccessKey != "ak" {
		t.Fatalf("Merge()=%+v", merged)
	}
}

func TestCallEmptyNameServerDoesNotConnect(t *testing.T) {
	rec := &recorder{}
	d := New(rec.open)

	resp := Call(context.Background(), d, "getClusterInfo", Request{}, func(context.Context, *countingConn) (string, error) {
		t.Fatalf("delegate must not run")
		return "", nil
	})
	if resp.OK() {
		t.Fatalf("expected failure")
	}
	if resp.ErrorMessage != "nameserverAddressList不能为空" {
		t.Fatalf("ErrorMessage=%q", resp.ErrorMessage)
	}
	if resp.Data != "" {
		t.Fatalf("expected no data, got %q", resp.Data)
	}
	if rec.opened.Load() != 0 {
		t.Fatalf("connection opened %d times", rec.opened.Load())
	}
}

func TestCallRequireCredentials(t *testing.T) {
	rec := &recorder{}
	d := New(rec.open, WithRequireCredentials[*countingConn](true))
	req := Request{NameServerAddressList: []string{"a:9876"}, AccessKey: "ak"}

	resp := Call(context.Background(), d, "getUser", req, func(context.Context, *countingConn) (int, error) {
		return 1, nil
	})
	if resp.ErrorMessage != "sk不能为空" {
		t.Fatalf("ErrorMessage=%q", resp.ErrorMessage)
	}
	req.AccessKey = ""
	resp = Call(context.Background(), d, "getUser", req, func(context.Context, *countingConn) (int, error) {
		return 1, nil
	})
	if resp.ErrorMessage != "ak不能为空" {
		t.Fatalf("ErrorMessage=%q", resp.ErrorMessage)
	}
	if rec.opened.Load() != 0 {
		t.Fatalf("connection opened %d times", rec.opened.Load())
	}
}

func TestCallClosesExactlyOnce(t *testing.T) {
	req := Request{NameServerAddressList: []string{"127.0.0.1:9876"}}
	cases := []struct {
		name     string
		startErr error
		fn       func(context.Context, *countingConn) (string, error)
		wantOK   bool
		wantMsg  string
	}{
		{
			name:   "success",
			fn:     func(context.Context, *countingConn) (string, error) { return "success", nil },
			wantOK: true,
		},
		{
			name:    "delegate error",
			fn:      func(context.Context, *countingConn) (string, error) { return "", errors.New("topic not exist") },
			wantMsg: "topic not exist",
		},
		{
			name:    "delegate panic",
			fn:      func(context.Context, *countingConn) (string, error) { panic("broker exploded") },
			wantMsg: "broker exploded",
		},
		{
			name:     "start error",
			startErr: errors.New("dial tcp: refused"),
			fn: func(context.Context, *countingConn) (string, error) {
				return "", errors.New("must not run")
			},
			wantMsg: "dial tcp: refused",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{start: tc.startErr}
			d := New(rec.open)
			resp := Call(context.Background(), d, "op", req, tc.fn)
			if resp.OK() != tc.wantOK {
				t.Fatalf("OK()=%v, resp=%+v", resp.OK(), resp)
			}
			if !tc.wantOK && !strings.Contains(resp.ErrorMessage, tc.wantMsg) {
				t.Fatalf("ErrorMessage=%q, want to contain %q", resp.ErrorMessage, tc.wantMsg)
			}
			if len(rec.conns) != 1 {
				t.Fatalf("opened %d connections, want 1", len(rec.conns))
			}
			if n := rec.conns[0].closed.Load(); n != 1 {
				t.Fatalf("Close called %d times, want 1", n)
			}
		})
	}
}

func TestCallPanicIncludesStack(t *testing.T) {
	rec := &recorder{}
	d := New(rec.open)
	resp := Call(context.Background(), d, "op", Request{NameServerAddressList: []string{"a:1"}}, func(context.Context, *countingConn) (int, error) {
		var m map[string]int
		m["x"] = 1
		return 0, nil
	})
	if resp.OK() {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(resp.ErrorMessage, "goroutine") {
		t.Fatalf("expected stack trace in message, got %q", resp.ErrorMessage)
	}
}

func TestCallPassesResolvedParams(t *testing.T) {
	rec := &recorder{}
	d := New(rec.open, WithDefaults[*countingConn](Defaults{NameServer: "def:9876", AccessKey: "ak", SecretKey: "sk"}))
	resp := Call(context.Background(), d, "op", Request{}, func(_ context.Context, c *countingConn) (Params, error) {
		return c.params, nil
	})
	if !resp.OK() {
		t.Fatalf("unexpected error %q", resp.ErrorMessage)
	}
	if resp.Data.NameServer != "def:9876" || !resp.Data.Authenticated() {
		t.Fatalf("params=%+v", resp.Data)
	}
	if rec.conns[0].started.Load() != 1 {
		t.Fatalf("Start called %d times", rec.conns[0].started.Load())
	}
}

func TestCallObserver(t *testing.T) {
	rec := &recorder{}
	var got []Outcome
	d := New(rec.open, WithObserver[*countingConn](func(_ string, o Outcome, _ time.Duration) {
		got = append(got, o)
	}))
	Call(context.Background(), d, "op", Request{}, func(context.Context, *countingConn) (int, error) { return 0, nil })
	Call(context.Background(), d, "op", Request{NameServerAddressList: []string{"a:1"}}, func(context.Context, *countingConn) (int, error) { return 0, nil })
	if len(got) != 2 || got[0] != OutcomeValidation || got[1] != OutcomeSuccess {
		t.Fatalf("outcomes=%v", got)
	}
}

func TestCheckValidatesWithoutConnecting(t *testing.T) {
	rec := &recorder{}
	var got []Outcome
	d := New(rec.open, WithObserver[*countingConn](func(_ string, o Outcome, _ time.Duration) {
		got = append(got, o)
	}))
	err := d.Check("op", Request{})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != errEmptyNameServer {
		t.Fatalf("err=%v", err)
	}
	if err := d.Check("op", Request{NameServerAddressList: []string{"a:1"}}); err != nil {
		t.Fatalf("valid request: %v", err)
	}
	if len(got) != 1 || got[0] != OutcomeValidation {
		t.Fatalf("outcomes=%v", got)
	}
	if rec.opened.Load() != 0 {
		t.Fatalf("Check must not open connections")
	}
}
