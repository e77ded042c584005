package toolrpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
	"github.com/francisoliverlee/rocketmq-mcp/internal/tools"
)

const Transport = "grpc"

// Server implements ToolServiceServer on top of a tools.Invoker.
type Server struct {
	Invoker   *tools.Invoker
	Authorize Authorizer
	Principal string

	seq atomic.Int64
}

func NewServer(inv *tools.Invoker) *Server {
	return &Server{Invoker: inv}
}

func (s *Server) ListTools(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.authorize(ctx, listToolsMethod); err != nil {
		return nil, err
	}
	catalog := s.Invoker.Catalog()
	list := catalog.All()
	if raw := stringField(req, "group"); raw != "" {
		g, err := policy.ParseGroup(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		list = catalog.Group(g)
	}

	items := make([]any, 0, len(list))
	for _, t := range list {
		items = append(items, map[string]any{
			"name":        t.Name,
			"group":       string(t.Group),
			"description": t.Description,
			"write":       t.Write,
			"inputSchema": t.InputSchema(),
		})
	}
	out, err := jsonStruct(map[string]any{"tools": items})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) CallTool(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.authorize(ctx, callToolMethod); err != nil {
		return nil, err
	}
	name := stringField(req, "tool")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "tool is required")
	}
	args := tools.Args{}
	if v, ok := req.GetFields()["arguments"]; ok {
		sv := v.GetStructValue()
		if sv == nil {
			return nil, status.Error(codes.InvalidArgument, "arguments must be an object")
		}
		args = tools.Args(sv.AsMap())
	}

	resp, err := s.Invoker.Invoke(ctx, tools.Call{
		Tool:      name,
		Args:      args,
		Transport: Transport,
		RequestID: "grpc-" + strconv.FormatInt(s.seq.Add(1), 10),
		Principal: s.Principal,
	})
	if err != nil {
		return nil, mapInvokeError(err)
	}
	out, err := jsonStruct(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) authorize(ctx context.Context, method string) error {
	if s.Authorize != nil && !s.Authorize(ctx, method) {
		return status.Error(codes.Unauthenticated, "request is not authorized")
	}
	if s.Invoker == nil {
		return status.Error(codes.Internal, "tool invoker is not configured")
	}
	return nil
}

func mapInvokeError(err error) error {
	var rej *policy.RejectError
	switch {
	case errors.As(err, &rej):
		return status.Error(codes.PermissionDenied, rej.Message)
	case errors.Is(err, tools.ErrUnknownTool):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

// jsonStruct converts v through its JSON form so that json tags decide the
// field names.
func jsonStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// UnaryLogger logs one line per RPC.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc_request",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}
