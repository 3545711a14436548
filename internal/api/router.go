// Package api maps HTTP requests onto the execution coordinator.
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caffeineduck/codeserver/coordinator"
	"github.com/caffeineduck/codeserver/httpd"
	"github.com/caffeineduck/codeserver/language"
)

//go:embed static/index.html
var indexHTML []byte

// Executions is the part of the coordinator the router needs.
type Executions interface {
	Submit(ctx context.Context, source string, kind language.Kind, id string) coordinator.Result
	Cancel(id string) bool
	List() []string
	Stats() coordinator.Stats
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// Router dispatches requests by method and path.
type Router struct {
	exec   Executions
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewRouter returns a Router serving exec.
func NewRouter(exec Executions, opts ...Option) *Router {
	r := &Router{
		exec:   exec,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  coordinator.NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const processesPrefix = "/processes/"

// ServeRequest implements httpd.Handler.
func (rt *Router) ServeRequest(ctx context.Context, req *httpd.Request) *httpd.Response {
	path, _, _ := strings.Cut(req.Path, "?")

	switch {
	case req.Method == "OPTIONS":
		return preflight()
	case req.Method == "GET" && path == "/":
		return &httpd.Response{Status: httpd.StatusOK, ContentType: "text/html", Body: indexHTML}
	case req.Method == "GET" && path == "/status":
		return rt.status(req)
	case req.Method == "POST" && path == "/execute":
		return rt.execute(ctx, req)
	case req.Method == "GET" && path == "/processes":
		return rt.processes()
	case req.Method == "DELETE" && strings.HasPrefix(path, processesPrefix):
		return rt.stop(path)
	case req.Method == "GET" && path == "/metrics":
		return writeJSON(httpd.StatusOK, rt.exec.Stats())
	default:
		return httpd.Text(httpd.StatusNotFound, httpd.StatusText(httpd.StatusNotFound))
	}
}

func preflight() *httpd.Response {
	return &httpd.Response{
		Status:      httpd.StatusOK,
		ContentType: httpd.DefaultContentType,
		Header: []httpd.HeaderField{
			{Name: "Access-Control-Allow-Origin", Value: "*"},
			{Name: "Access-Control-Allow-Methods", Value: "GET, POST, DELETE, OPTIONS"},
			{Name: "Access-Control-Allow-Headers", Value: "Content-Type"},
		},
	}
}

// writeJSON encodes v as the body of a CORS-enabled JSON response.
func writeJSON(status int, v any) *httpd.Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = httpd.StatusInternalServerError
		body = []byte(`{"error":"Internal server error"}`)
	}
	return &httpd.Response{
		Status:      status,
		ContentType: "application/json",
		Header:      []httpd.HeaderField{{Name: "Access-Control-Allow-Origin", Value: "*"}},
		Body:        body,
	}
}

func errorJSON(status int, msg string) *httpd.Response {
	return writeJSON(status, errorResponse{Error: msg})
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return -1
}
