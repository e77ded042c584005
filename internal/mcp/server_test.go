package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/francisoliverlee/rocketmq-mcp/internal/dispatch"
	"github.com/francisoliverlee/rocketmq-mcp/internal/envelope"
	"github.com/francisoliverlee/rocketmq-mcp/internal/mqadmin"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
	"github.com/francisoliverlee/rocketmq-mcp/internal/tools"
)

func newInvoker(readOnly bool) *tools.Invoker {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	d := dispatch.New(mqadmin.Opener(), dispatch.WithLogger[*mqadmin.Admin](logger))
	return tools.NewInvoker(d, tools.WithGate(policy.Gate{Enabled: readOnly}), tools.WithLogger(logger))
}

type rpcReply struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type callResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// serveLines runs the stdio server over the given lines and returns one reply
// per output line.
func serveLines(t *testing.T, s *Server, lines ...string) []rpcReply {
	t.Helper()
	var out bytes.Buffer
	s.In = strings.NewReader(strings.Join(lines, "\n") + "\n")
	s.Out = &out
	s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Serve(ctx); err != nil {
		t.Fatalf("serve: %v", err)
	}

	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 0, 1<<20), 8<<20)
	var replies []rpcReply
	for sc.Scan() {
		var r rpcReply
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("reply is not JSON: %v: %s", err, sc.Text())
		}
		replies = append(replies, r)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return replies
}

func decodeCall(t *testing.T, r rpcReply) callResult {
	t.Helper()
	if r.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", r.Error)
	}
	var res callResult
	if err := json.Unmarshal(r.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(res.Content) != 1 || res.Content[0].Type != "text" {
		t.Fatalf("unexpected content: %+v", res.Content)
	}
	return res
}

const initializeLine = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`

func TestServeInitializeAndList(t *testing.T) {
	replies := serveLines(t, NewServer(nil, nil, newInvoker(false), WithVersion("1.2.3")),
		initializeLine,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
	)
	if len(replies) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(replies))
	}

	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(replies[0].Result, &init); err != nil {
		t.Fatalf("decode initialize: %v", err)
	}
	if init.ServerInfo.Name != serverName || init.ServerInfo.Version != "1.2.3" || init.ProtocolVersion == "" {
		t.Fatalf("unexpected initialize result: %+v", init)
	}
	if replies[1].ID != float64(2) || replies[1].Error != nil {
		t.Fatalf("ping: %+v", replies[1])
	}

	var list struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(replies[2].Result, &list); err != nil {
		t.Fatalf("decode tools/list: %v", err)
	}
	if len(list.Tools) != len(newInvoker(false).Catalog().All()) {
		t.Fatalf("tools/list returned %d tools", len(list.Tools))
	}
	for _, tool := range list.Tools {
		if tool.InputSchema["type"] != "object" {
			t.Fatalf("tool %s: schema type %v", tool.Name, tool.InputSchema["type"])
		}
		if tool.Name == "createUser" && !strings.HasPrefix(tool.Description, "[acl, write]") {
			t.Fatalf("createUser description %q", tool.Description)
		}
	}
}

func TestServeToolCallReadOnlyRejected(t *testing.T) {
	replies := serveLines(t, NewServer(nil, nil, newInvoker(true)),
		initializeLine,
		`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"createUser","arguments":{"brokerAddr":"b"}}}`,
	)
	if len(replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(replies))
	}
	res := decodeCall(t, replies[1])
	if !res.IsError || res.Content[0].Text != policy.ReadOnlyMessage {
		t.Fatalf("expected read-only rejection, got %+v", res)
	}
}

func TestServeToolCallEnvelope(t *testing.T) {
	// no name server configured: the dispatcher fails validation
	call := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"getClusterInfo"}}`

	replies := serveLines(t, NewServer(nil, nil, newInvoker(false)), initializeLine, call)
	res := decodeCall(t, replies[1])
	if !res.IsError {
		t.Fatalf("expected error result")
	}
	var env envelope.Response[any]
	if err := json.Unmarshal([]byte(res.Content[0].Text), &env); err != nil {
		t.Fatalf("text is not an envelope: %v", err)
	}
	if env.ErrorCode != envelope.CodeError || env.ErrorMessage != "nameserverAddressList不能为空" {
		t.Fatalf("unexpected envelope: %#v", env)
	}

	replies = serveLines(t, NewServer(nil, nil, newInvoker(false), WithLegacyText(true)), initializeLine, call)
	if res := decodeCall(t, replies[1]); res.Content[0].Text != "nameserverAddressList不能为空" {
		t.Fatalf("legacy text: %q", res.Content[0].Text)
	}
}

func TestServeRejectsUnknownToolAndBadLines(t *testing.T) {
	replies := serveLines(t, NewServer(nil, nil, newInvoker(false)),
		initializeLine,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"noSuchTool","arguments":{}}}`,
		`nope`,
		`Content-Length: 9000000000000000000`,
		`{"jsonrpc":"1.0","id":3,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	)
	if len(replies) != 6 {
		t.Fatalf("expected 6 replies, got %d", len(replies))
	}
	if replies[1].Error == nil || !strings.Contains(replies[1].Error.Message, "not found") {
		t.Fatalf("unknown tool: %+v", replies[1])
	}
	for _, r := range replies[2:4] {
		if r.Error == nil || r.Error.Code != -32700 {
			t.Fatalf("expected parse error, got %+v", r)
		}
	}
	if replies[4].Error == nil || replies[4].Error.Code != -32600 {
		t.Fatalf("expected invalid request, got %+v", replies[4])
	}
	if replies[5].Error != nil || replies[5].ID != float64(4) {
		t.Fatalf("server stopped answering after bad input: %+v", replies[5])
	}
}

func TestServeRequiresStreams(t *testing.T) {
	if err := NewServer(nil, &bytes.Buffer{}, newInvoker(false)).Serve(context.Background()); err == nil {
		t.Fatalf("expected error for nil input")
	}
	if err := NewServer(strings.NewReader(""), nil, newInvoker(false)).Serve(context.Background()); err == nil {
		t.Fatalf("expected error for nil output")
	}
	if err := NewServer(strings.NewReader(""), &bytes.Buffer{}, nil).Serve(context.Background()); err == nil {
		t.Fatalf("expected error for nil invoker")
	}
}

func TestMCPServerOverSSEHandlesToolCalls(t *testing.T) {
	srv := NewMCPServer(newInvoker(true), WithVersion("test"))
	ctx := context.Background()

	srv.HandleMessage(ctx, json.RawMessage(initializeLine))

	list, err := json.Marshal(srv.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(list), `"createUser"`) || !strings.Contains(string(list), `"getClusterInfo"`) {
		t.Fatalf("tools/list missing tools: %s", list)
	}

	call, err := json.Marshal(srv.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"deleteTopic","arguments":{}}}`)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(call), policy.ReadOnlyMessage) || !strings.Contains(string(call), `"isError":true`) {
		t.Fatalf("expected read-only rejection: %s", call)
	}
}
