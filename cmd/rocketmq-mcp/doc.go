// Command rocketmq-mcp exposes RocketMQ cluster administration as tools
// for MCP clients, REST callers and gRPC services.
//
// Install:
//
//	go install github.com/francisoliverlee/rocketmq-mcp/cmd/rocketmq-mcp@latest
//
// Usage:
//
//	rocketmq-mcp mcp serve --namesrv 127.0.0.1:9876
//	rocketmq-mcp serve --config ./rocketmq-mcp.ini --read-only
package main
