package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"
	"github.com/francisoliverlee/rocketmq-mcp/internal/envelope"
	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting/remotingtest"
	"github.com/francisoliverlee/rocketmq-mcp/internal/tools"
)

func newTestServer(readOnly bool, opts ...Option) *Server {
	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := dispatch.New(mqadmin.Opener(), dispatch.WithLogger[*mqadmin.Admin](logger))
	inv := tools.NewInvoker(d, tools.WithGate(policy.Gate{Enabled: readOnly}), tools.WithLogger(logger))
	opts = append([]Option{WithLogger(logger)}, opts...)
	return NewServer(inv, opts...)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope.Response[json.RawMessage] {
	t.Helper()
	var env envelope.Response[json.RawMessage]
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestReadOnlyRejectsWritePath(t *testing.T) {
	h := newTestServer(true).Handler()

	rr := do(t, h, http.MethodPost, "/api/acl/createUser", `{"brokerAddr":"b","username":"u"}`)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr.Body.String() != policy.ReadOnlyMessage {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}

	// the path is gated even when the group does not own the tool
	rr = do(t, h, http.MethodPost, "/api/topic/createUser", `{}`)
	if rr.Code != http.StatusMethodNotAllowed || rr.Body.String() != policy.ReadOnlyMessage {
		t.Fatalf("mismatched write path: %d %q", rr.Code, rr.Body.String())
	}

	// reads pass the gate and fail later on the missing name server
	rr = do(t, h, http.MethodPost, "/api/acl/getUser", `{"brokerAddr":"b","username":"u"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.ErrorCode != envelope.CodeError || env.ErrorMessage != "nameserverAddressList不能为空" {
		t.Fatalf("unexpected envelope: %#v", env)
	}
}

func TestWriteAllowedWhenGateDisabled(t *testing.T) {
	h := newTestServer(false).Handler()
	rr := do(t, h, http.MethodPost, "/api/acl/createUser", `{"brokerAddr":"b","username":"u"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.ErrorMessage != "nameserverAddressList不能为空" {
		t.Fatalf("unexpected envelope: %#v", env)
	}
}

func TestCallErrors(t *testing.T) {
	h := newTestServer(false).Handler()

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		msg    string
	}{
		{name: "unknown tool", path: "/api/topic/noSuchTool", body: `{}`, status: http.StatusNotFound, msg: "unknown tool"},
		{name: "group mismatch", path: "/api/topic/createUser", body: `{}`, status: http.StatusNotFound, msg: "unknown tool"},
		{name: "bad json", path: "/api/cluster/getClusterInfo", body: `{"a":`, status: http.StatusBadRequest, msg: "invalid request body"},
		{name: "not an object", path: "/api/cluster/getClusterInfo", body: `[1,2]`, status: http.StatusBadRequest, msg: "invalid request body"},
		{name: "missing param", path: "/api/acl/getUser", body: `{"brokerAddr":"b","nameserverAddressList":["127.0.0.1:9876"]}`, status: http.StatusOK, msg: "username is required"},
		{name: "empty body", path: "/api/cluster/getClusterInfo", body: "", status: http.StatusOK, msg: "nameserverAddressList不能为空"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, tc.path, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rr.Code, rr.Body.String())
			}
			env := decodeEnvelope(t, rr)
			if env.OK() || !strings.Contains(env.ErrorMessage, tc.msg) {
				t.Fatalf("unexpected envelope: %#v", env)
			}
			if rr.Header().Get(RequestIDHeader) == "" {
				t.Fatalf("missing request id header")
			}
		})
	}
}

func TestRequestIDIsKept(t *testing.T) {
	h := newTestServer(false).Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/cluster/getClusterInfo", strings.NewReader(`{}`))
	req.Header.Set(RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got != "req-42" {
		t.Fatalf("request id = %q", got)
	}
}

func TestListTools(t *testing.T) {
	s := newTestServer(false)
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/api/tools", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var all []toolDescriptor
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &all); err != nil {
		t.Fatalf("decode tools: %v", err)
	}
	if len(all) != len(s.invoker.Catalog().All()) {
		t.Fatalf("listed %d tools", len(all))
	}

	rr = do(t, h, http.MethodGet, "/api/tools/ACL", "")
	var acl []toolDescriptor
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &acl); err != nil {
		t.Fatalf("decode tools: %v", err)
	}
	if len(acl) == 0 {
		t.Fatalf("no acl tools")
	}
	for _, d := range acl {
		if d.Group != policy.GroupAcl || !strings.HasPrefix(d.Path, "/api/acl/") {
			t.Fatalf("unexpected descriptor: %#v", d)
		}
		if d.Name == "createUser" && !d.Write {
			t.Fatalf("createUser must be a write tool")
		}
	}

	rr = do(t, h, http.MethodGet, "/api/tools/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(false).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/acl/createUser", nil)
	req.Header.Set("Origin", "https://console.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type, authorization")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rr.Code)
	}
	want := map[string]string{
		"Access-Control-Allow-Origin":      "https://console.example",
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Allow-Headers":     "content-type, authorization",
		"Access-Control-Max-Age":           "3600",
	}
	for k, v := range want {
		if got := rr.Header().Get(k); got != v {
			t.Fatalf("%s = %q, want %q", k, got, v)
		}
	}

	rr = do(t, h, http.MethodGet, "/api/tools", "")
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("no CORS headers expected without Origin")
	}
}

func TestLegacyText(t *testing.T) {
	h := newTestServer(false, WithLegacyText(true)).Handler()
	rr := do(t, h, http.MethodPost, "/api/cluster/getClusterInfo", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "nameserverAddressList不能为空" {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}

func TestCallAgainstNameServer(t *testing.T) {
	ns := remotingtest.NewServer(remotingtest.Router{
		remoting.GetKVConfig: func(req *remoting.Command) *remoting.Command {
			if req.ExtFields["namespace"] != "ORDER_TOPIC_CONFIG" || req.ExtFields["key"] != "orders" {
				return remotingtest.Reply(remoting.QueryNotFound, "no config", nil)
			}
			return remotingtest.OKWithExt(map[string]string{"value": "broker-a:4"})
		},
	}.Handle)
	defer ns.Close()

	h := newTestServer(true, WithDebugBodies(true)).Handler()
	body := fmt.Sprintf(`{"nameserverAddressList":[%q],"namespace":"ORDER_TOPIC_CONFIG","key":"orders"}`, ns.Addr)
	rr := do(t, h, http.MethodPost, "/api/nameserver/getKVConfig", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if !env.OK() || string(env.Data) != `"broker-a:4"` {
		t.Fatalf("unexpected envelope: %s", rr.Body.String())
	}
}
