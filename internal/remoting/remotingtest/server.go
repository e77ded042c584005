// Package remotingtest provides an in-process remoting server for tests.
package remotingtest

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"github.com/francisoliverlee/rocketmq-mcp/internal/remoting"
)

// Handler answers one request. Returning nil sends no response.
type Handler func(req *remoting.Command) *remoting.Command

// Server listens on a loopback port and answers every request with Handler.
type Server struct {
	Addr string

	ln      net.Listener
	handler Handler

	mu       sync.Mutex
	requests []*remoting.Command
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

func NewServer(h Handler) *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("remotingtest: listen: " + err.Error())
	}
	s := &Server{
		Addr:    ln.Addr().String(),
		ln:      ln,
		handler: h,
		conns:   make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.accept()
	return s
}

// Requests returns the requests received so far.
func (s *Server) Requests() []*remoting.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*remoting.Command, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *Server) serve(c net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = c.Close()
	}()

	r := bufio.NewReader(c)
	for {
		frame, err := remoting.ReadFrame(r)
		if err != nil {
			return
		}
		req, err := remoting.Decode(frame)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		if req.IsOneway() || s.handler == nil {
			continue
		}
		resp := s.handler(req)
		if resp == nil {
			continue
		}
		resp.Opaque = req.Opaque
		resp.MarkResponse()
		out, err := remoting.Encode(resp)
		if err != nil {
			return
		}
		if _, err := c.Write(out); err != nil && !errors.Is(err, net.ErrClosed) {
			return
		}
	}
}

// Reply builds a response with the given code, remark and body.
func Reply(code remoting.Code, remark string, body []byte) *remoting.Command {
	return &remoting.Command{
		Code:      code,
		Language:  remoting.LanguageJava,
		Remark:    remark,
		Body:      body,
		Serialize: remoting.SerializeJSON,
	}
}

// OK is Reply(Success, "", body).
func OK(body []byte) *remoting.Command {
	return Reply(remoting.Success, "", body)
}

// OKWithExt is a success response carrying ext fields instead of a body.
func OKWithExt(ext map[string]string) *remoting.Command {
	resp := OK(nil)
	resp.ExtFields = ext
	return resp
}

// Router dispatches by request code and falls back to a
// RequestCodeNotSupported response.
type Router map[remoting.Code]Handler

func (rt Router) Handle(req *remoting.Command) *remoting.Command {
	if h, ok := rt[req.Code]; ok {
		return h(req)
	}
	return Reply(remoting.RequestCodeNotSupported, "request code not supported", nil)
}
