// Package httpd is a small HTTP/1.1 server written directly against net.
//
// It speaks a strict subset of the protocol: one request per connection, no
// keep-alive, no chunked bodies. Every accepted connection is served on its
// own goroutine; a failure while reading, handling, or writing only affects
// that connection.
package httpd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrServerRunning is returned by Listen when the server is already bound.
var ErrServerRunning = errors.New("server already running")

// DefaultReadTimeout bounds how long a client may take to send its request.
const DefaultReadTimeout = 30 * time.Second

// Handler answers one request. The context is cancelled when the server
// closes.
type Handler interface {
	ServeRequest(ctx context.Context, req *Request) *Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) *Response

func (f HandlerFunc) ServeRequest(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for connection-level events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadTimeout sets the deadline for reading a request. Zero disables it.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// Server owns the listening socket and the accept loop.
type Server struct {
	handler     Handler
	logger      *zap.Logger
	readTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	conns    sync.WaitGroup
}

// New creates a server that dispatches every request to handler.
func New(handler Handler, opts ...Option) *Server {
	s := &Server{
		handler:     handler,
		logger:      zap.NewNop(),
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds port on all interfaces and starts accepting connections.
// Port 0 picks a free port; the returned address reports which.
func (s *Server) Listen(port int) (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil, ErrServerRunning
	}

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = ln
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.acceptLoop(ctx, ln, s.done)

	s.logger.Info("server listening", zap.Stringer("addr", ln.Addr()))
	return ln.Addr(), nil
}

// Close stops accepting connections and cancels the context handed to
// in-flight handlers. It does not wait for those handlers to finish.
// Calling Close on a server that is not running is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	ln, cancel, done := s.listener, s.cancel, s.done
	s.listener, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	cancel()
	err := ln.Close()
	<-done
	s.logger.Info("server stopped")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Wait blocks until every connection accepted so far has been answered.
func (s *Server) Wait() {
	s.conns.Wait()
}

// Running reports whether the server is bound.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Addr returns the bound address, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or -1.
func (s *Server) Port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return -1
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, done chan struct{}) {
	defer close(done)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else {
					backoff *= 2
				}
				if backoff > time.Second {
					backoff = time.Second
				}
				s.logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				continue
			}
			s.logger.Error("accept failed", zap.Error(err))
			return
		}
		backoff = 0

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := s.logger.With(zap.Stringer("remote", conn.RemoteAddr()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("connection panic", zap.Any("panic", r))
		}
	}()

	if s.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}

	req, err := ReadRequest(bufio.NewReader(conn))
	if err != nil {
		if errors.Is(err, ErrMalformedRequestLine) {
			log.Debug("bad request", zap.Error(err))
			s.write(log, conn, Text(StatusBadRequest, StatusText(StatusBadRequest)))
			return
		}
		log.Debug("read request failed", zap.Error(err))
		return
	}
	conn.SetReadDeadline(time.Time{})
	req.LocalAddr = conn.LocalAddr()
	req.RemoteAddr = conn.RemoteAddr()

	resp := s.dispatch(ctx, log, req)
	s.write(log, conn, resp)
	log.Debug("request served",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.Status),
	)
}

func (s *Server) dispatch(ctx context.Context, log *zap.Logger, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Any("panic", r),
			)
			resp = Text(StatusInternalServerError, StatusText(StatusInternalServerError))
		}
	}()
	resp = s.handler.ServeRequest(ctx, req)
	if resp == nil {
		resp = Text(StatusInternalServerError, StatusText(StatusInternalServerError))
	}
	return resp
}

func (s *Server) write(log *zap.Logger, conn net.Conn, resp *Response) {
	if err := WriteResponse(conn, resp); err != nil {
		log.Debug("write response failed", zap.Error(err))
	}
}
