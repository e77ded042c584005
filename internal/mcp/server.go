// Package mcp serves the tool catalog over the Model Context Protocol:
// newline-delimited JSON-RPC 2.0 on stdio, and HTTP+SSE.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/francisoliverlee/rocketmq-mcp/internal/envelope"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
	"github.com/francisoliverlee/rocketmq-mcp/internal/tools"
)

const (
	serverName = "rocketmq-mcp"

	TransportStdio = "mcp-stdio"
	TransportSSE   = "mcp-sse"
)

type Server struct {
	In  io.Reader
	Out io.Writer

	Version    string
	Principal  string
	LegacyText bool

	invoker *tools.Invoker
	logger  *slog.Logger
	seq     atomic.Int64
}

type Option func(*Server)

func WithVersion(v string) Option {
	return func(s *Server) {
		if v = strings.TrimSpace(v); v != "" {
			s.Version = v
		}
	}
}

func WithPrincipal(principal string) Option {
	return func(s *Server) {
		s.Principal = strings.TrimSpace(principal)
	}
}

// WithLegacyText renders tool results as the deprecated plain string instead
// of the JSON envelope.
func WithLegacyText(enabled bool) Option {
	return func(s *Server) {
		s.LegacyText = enabled
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewServer(in io.Reader, out io.Writer, inv *tools.Invoker, opts ...Option) *Server {
	s := &Server{
		In:      in,
		Out:     out,
		Version: "0.0.0-dev",
		invoker: inv,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve reads one JSON-RPC message per line from In and writes replies to
// Out until In is exhausted or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("nil mcp server")
	}
	if s.In == nil {
		return errors.New("nil input reader")
	}
	if s.Out == nil {
		return errors.New("nil output writer")
	}
	if s.invoker == nil {
		return errors.New("nil tool invoker")
	}

	stdio := server.NewStdioServer(s.mcpServer(TransportStdio))
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, s.In, s.Out)
}

// mcpServer registers every catalog tool on an mcp-go server whose calls
// are audited under transport.
func (s *Server) mcpServer(transport string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, s.Version, server.WithToolCapabilities(false))
	for _, t := range s.invoker.Catalog().All() {
		schema, err := json.Marshal(t.InputSchema())
		if err != nil {
			s.logger.Error("mcp_tool_schema_failed", slog.String("tool", t.Name), slog.Any("err", err))
			continue
		}
		srv.AddTool(mcpgo.NewToolWithRawSchema(t.Name, describe(t), schema), s.toolHandler(t.Name, transport))
	}
	return srv
}

func (s *Server) toolHandler(name, transport string) server.ToolHandlerFunc {
	prefix := "stdio-"
	if transport == TransportSSE {
		prefix = "sse-"
	}
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		args := req.Params.Arguments
		if args == nil {
			args = map[string]any{}
		}
		resp, err := s.invoker.Invoke(ctx, tools.Call{
			Tool:      name,
			Args:      tools.Args(args),
			Transport: transport,
			RequestID: prefix + strconv.FormatInt(s.seq.Add(1), 10),
			Principal: s.Principal,
		})
		if err != nil {
			return mcpgo.NewToolResultError(callErrorText(err)), nil
		}
		return renderEnvelope(resp, s.LegacyText), nil
	}
}

func describe(t tools.Tool) string {
	if t.Write {
		return fmt.Sprintf("[%s, write] %s", t.Group, t.Description)
	}
	return fmt.Sprintf("[%s] %s", t.Group, t.Description)
}

// callErrorText renders failures that happened before dispatch.
func callErrorText(err error) string {
	var rej *policy.RejectError
	if errors.As(err, &rej) {
		return rej.Message
	}
	return err.Error()
}

func renderEnvelope(resp envelope.Response[any], legacy bool) *mcpgo.CallToolResult {
	text := formatToolText(resp)
	if legacy {
		text = resp.LegacyText()
	}
	result := mcpgo.NewToolResultText(text)
	result.IsError = !resp.OK()
	return result
}

func formatToolText(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
