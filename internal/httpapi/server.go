// Package httpapi exposes the tool catalog as a JSON REST API.
//
// Routes:
//
//	GET  /api/tools           list every tool descriptor
//	GET  /api/tools/:group    list the tools of one resource group
//	POST /api/:group/:tool    invoke a tool; the body is a JSON object of arguments
//
// Successful dispatches and dispatch failures both answer 200 with the
// envelope. Read-only rejections answer 405 with a plain text message.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/julienschmidt/httprouter"

	"github.com/francisoliverlee/rocketmq-mcp/internal/envelope"
	"github.com/francisoliverlee/rocketmq-mcp/internal/policy"
	"github.com/francisoliverlee/rocketmq-mcp/internal/tools"
)

const (
	Transport = "rest"

	// RequestIDHeader is echoed on every response; a client supplied value
	// is kept.
	RequestIDHeader = "X-Request-Id"

	maxBodyBytes = 4 << 20
)

type Server struct {
	invoker     *tools.Invoker
	logger      *slog.Logger
	legacyText  bool
	debugBodies bool
	principal   string
	newID       func() string
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLegacyText answers tool calls with the deprecated plain string form.
func WithLegacyText(on bool) Option {
	return func(s *Server) { s.legacyText = on }
}

// WithDebugBodies logs request and response bodies at debug level.
func WithDebugBodies(on bool) Option {
	return func(s *Server) { s.debugBodies = on }
}

func WithPrincipal(p string) Option {
	return func(s *Server) { s.principal = p }
}

func NewServer(inv *tools.Invoker, opts ...Option) *Server {
	s := &Server{
		invoker: inv,
		logger:  slog.Default(),
		newID:   newRequestID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newRequestID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}
	return id.String()
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	return CORS(s.Router())
}

func (s *Server) Router() *httprouter.Router {
	r := httprouter.New()
	r.GET("/api/tools", s.handleList)
	r.GET("/api/tools/:group", s.handleList)
	r.POST("/api/:group/:tool", s.handleCall)
	r.PanicHandler = func(w http.ResponseWriter, req *http.Request, v any) {
		s.logger.Error("http_panic", slog.String("path", req.URL.Path), slog.Any("panic", v))
		writeEnvelope(w, http.StatusInternalServerError, envelope.Error[any]("internal error"))
	}
	return r
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Group       policy.Group   `json:"group"`
	Path        string         `json:"path"`
	Description string         `json:"description"`
	Write       bool           `json:"write"`
	InputSchema map[string]any `json:"inputSchema"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	catalog := s.invoker.Catalog()
	list := catalog.All()
	if raw := ps.ByName("group"); raw != "" {
		g, err := policy.ParseGroup(raw)
		if err != nil {
			writeEnvelope(w, http.StatusNotFound, envelope.Error[any](err.Error()))
			return
		}
		list = catalog.Group(g)
	}
	out := make([]toolDescriptor, 0, len(list))
	for _, t := range list {
		out = append(out, toolDescriptor{
			Name:        t.Name,
			Group:       t.Group,
			Path:        "/" + t.Identifier(),
			Description: t.Description,
			Write:       t.Write,
			InputSchema: t.InputSchema(),
		})
	}
	writeEnvelope(w, http.StatusOK, envelope.Success[any](out))
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if requestID == "" {
		requestID = s.newID()
	}
	w.Header().Set(RequestIDHeader, requestID)

	args, raw, err := readArgs(r)
	if s.debugBodies {
		s.logger.Debug("http_request_body",
			slog.String("request_id", requestID),
			slog.String("path", r.URL.Path),
			slog.String("body", string(raw)),
		)
	}
	if err != nil {
		s.respond(w, requestID, http.StatusBadRequest, envelope.Error[any]("invalid request body: "+err.Error()))
		return
	}

	resp, err := s.invoker.Invoke(r.Context(), tools.Call{
		Tool:           ps.ByName("group") + "/" + ps.ByName("tool"),
		Args:           args,
		Transport:      Transport,
		RequestID:      requestID,
		Principal:      s.principal,
		GateIdentifier: r.URL.Path,
	})
	if err != nil {
		var rej *policy.RejectError
		switch {
		case errors.As(err, &rej):
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(rej.Status)
			_, _ = io.WriteString(w, rej.Message)
		case errors.Is(err, tools.ErrUnknownTool):
			s.respond(w, requestID, http.StatusNotFound, envelope.Error[any](err.Error()))
		default:
			s.respond(w, requestID, http.StatusInternalServerError, envelope.Error[any](err.Error()))
		}
		return
	}
	s.respond(w, requestID, http.StatusOK, resp)
}

func (s *Server) respond(w http.ResponseWriter, requestID string, status int, resp envelope.Response[any]) {
	var body []byte
	if s.legacyText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		body = []byte(resp.LegacyText())
	} else {
		w.Header().Set("Content-Type", "application/json")
		var err error
		body, err = json.Marshal(resp)
		if err != nil {
			status = http.StatusInternalServerError
			body, _ = json.Marshal(envelope.Error[any]("encode response: " + err.Error()))
		}
	}
	if s.debugBodies {
		s.logger.Debug("http_response_body",
			slog.String("request_id", requestID),
			slog.Int("status", status),
			slog.String("body", string(body)),
		)
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeEnvelope(w http.ResponseWriter, status int, resp envelope.Response[any]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// readArgs decodes the request body as a JSON object. An empty body is an
// empty argument set. Numbers are kept as json.Number so that int64 values
// such as timestamps survive.
func readArgs(r *http.Request) (tools.Args, []byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, nil, err
	}
	if len(raw) > maxBodyBytes {
		return nil, raw[:maxBodyBytes], errors.New("body too large")
	}
	args := tools.Args{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return args, raw, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, raw, err
	}
	if dec.More() {
		return nil, raw, errors.New("trailing data after JSON object")
	}
	if args == nil {
		args = tools.Args{}
	}
	return args, raw, nil
}
