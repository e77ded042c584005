package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/francisoliverlee/rocketmq-mcp/internal/tools"
)

// SSEBasePath prefixes the SSE endpoints: /mcp/sse and /mcp/message.
const SSEBasePath = "/mcp"

// NewMCPServer registers every catalog tool on an mcp-go server for the SSE
// transport.
func NewMCPServer(inv *tools.Invoker, opts ...Option) *server.MCPServer {
	return NewServer(nil, nil, inv, opts...).mcpServer(TransportSSE)
}

// NewSSEHandler serves MCP over HTTP+SSE under SSEBasePath. baseURL is the
// externally reachable origin advertised to clients for the message
// endpoint; blank keeps the request-relative default.
func NewSSEHandler(inv *tools.Invoker, baseURL string, opts ...Option) http.Handler {
	sseOpts := []server.SSEOption{server.WithBasePath(SSEBasePath)}
	if baseURL != "" {
		sseOpts = append(sseOpts, server.WithBaseURL(baseURL))
	}
	return server.NewSSEServer(NewMCPServer(inv, opts...), sseOpts...)
}
