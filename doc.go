/*
Package rocketmqmcp documents the rocketmq-mcp module.

The module ships the rocketmq-mcp command, which serves RocketMQ admin
operations as tools over MCP (stdio and SSE), REST and gRPC:

	go install github.com/francisoliverlee/rocketmq-mcp/cmd/rocketmq-mcp@latest

Implementation packages live under internal and are not a stable public Go
API.
*/
package rocketmqmcp
