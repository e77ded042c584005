// Package toolrpc serves the tool catalog over gRPC.
//
// The service is rocketmq.mcp.v1.ToolService. Both methods exchange
// google.protobuf.Struct messages, so no generated code is needed:
//
//	ListTools({"group": "acl"})                      -> {"tools": [...]}
//	CallTool({"tool": "getUser", "arguments": {...}}) -> envelope
package toolrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "rocketmq.mcp.v1.ToolService"

	listToolsMethod = "/" + ServiceName + "/ListTools"
	callToolMethod  = "/" + ServiceName + "/CallTool"
)

// ToolServiceServer is the server API of the tool service.
type ToolServiceServer interface {
	ListTools(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CallTool(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ToolServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListTools", Handler: listToolsHandler},
		{MethodName: "CallTool", Handler: callToolHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rocketmq/mcp/v1/tools.proto",
}

// Register adds srv to the gRPC server r.
func Register(r grpc.ServiceRegistrar, srv ToolServiceServer) {
	r.RegisterService(&serviceDesc, srv)
}

func listToolsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolServiceServer).ListTools(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listToolsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolServiceServer).ListTools(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func callToolHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolServiceServer).CallTool(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callToolMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolServiceServer).CallTool(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls a remote tool service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListTools(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listToolsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CallTool(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, callToolMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
