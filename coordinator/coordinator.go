// Package coordinator tracks in-flight code executions.
//
// A Coordinator owns the registry of running executions keyed by id. Submit
// registers an execution, runs it on its own goroutine and blocks until it
// finishes, is cancelled, or hits the deadline. Cancel and List may be called
// concurrently from any goroutine.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caffeineduck/codeserver/language"
)

// ErrDuplicateID is reported when Submit is given an id that is still live.
var ErrDuplicateID = errors.New("execution id already in use")

// CodeRequired is the failure message for blank submissions.
const CodeRequired = "Code is required"

// Runtime runs source in one interpreter. Cancelling ctx asks the runtime
// to stop; it may take a while to notice.
type Runtime interface {
	Run(ctx context.Context, source string) (string, error)
}

// RuntimeFunc adapts a plain function to Runtime.
type RuntimeFunc func(ctx context.Context, source string) (string, error)

func (f RuntimeFunc) Run(ctx context.Context, source string) (string, error) {
	return f(ctx, source)
}

// Process is a snapshot of one live execution.
type Process struct {
	ID        string
	Language  language.Kind
	StartedAt time.Time
}

type handle struct {
	id        string
	kind      language.Kind
	startedAt time.Time
	cancel    context.CancelFunc
}

type outcome struct {
	output string
	err    error
}

// Coordinator runs executions and keeps the process table.
type Coordinator struct {
	runtimes map[language.Kind]Runtime
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	handles map[string]*handle

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	canceled  atomic.Uint64
	timedOut  atomic.Uint64
}

// New creates a Coordinator dispatching each language to its runtime.
// Languages missing from runtimes are reported as unsupported.
func New(runtimes map[language.Kind]Runtime, opts ...Option) *Coordinator {
	c := &Coordinator{
		runtimes: make(map[language.Kind]Runtime, len(runtimes)),
		logger:   zap.NewNop(),
		handles:  make(map[string]*handle),
	}
	for k, rt := range runtimes {
		if rt != nil {
			c.runtimes[k] = rt
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewID returns a fresh execution id.
func NewID() string {
	return uuid.NewString()
}

// Submit runs source under id and blocks until it completes, is cancelled,
// times out, or ctx is done. An empty id gets a generated one. The id is in
// List from before the worker starts until Submit returns or Cancel removes
// it, whichever comes first.
func (c *Coordinator) Submit(ctx context.Context, source string, kind language.Kind, id string) Result {
	if strings.TrimSpace(source) == "" {
		return Failure(CodeRequired)
	}
	rt, ok := c.runtimes[kind]
	if !ok {
		return Failure(fmt.Sprintf("Unsupported language: %s", kind))
	}
	if id == "" {
		id = NewID()
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	h := &handle{id: id, kind: kind, startedAt: time.Now(), cancel: cancel}
	if !c.insert(h) {
		return Failure(fmt.Sprintf("%v: %s", ErrDuplicateID, id))
	}
	c.submitted.Add(1)

	log := c.logger.With(zap.String("process_id", id), zap.Stringer("language", kind))
	log.Debug("execution started")

	done := make(chan outcome, 1)
	go work(runCtx, rt, source, done)

	var out outcome
	finished := false
	select {
	case out = <-done:
		finished = out.err == nil || runCtx.Err() == nil
	case <-runCtx.Done():
	}

	owned := c.release(h)
	elapsed := time.Since(h.startedAt)

	var result Result
	switch {
	case !owned:
		// Cancel got there first; whatever the worker produced is dropped.
		c.canceled.Add(1)
		result = c.failure(kind, "execution canceled")
	case finished && out.err == nil:
		c.succeeded.Add(1)
		result = Success(out.output)
	case finished:
		c.failed.Add(1)
		result = c.failure(kind, out.err.Error())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		c.timedOut.Add(1)
		result = c.failure(kind, fmt.Sprintf("execution timed out after %v", c.timeout))
	default:
		c.canceled.Add(1)
		result = c.failure(kind, "execution canceled")
	}

	log.Info("execution finished",
		zap.Bool("succeeded", result.Succeeded),
		zap.Duration("elapsed", elapsed),
	)
	return result
}

func work(ctx context.Context, rt Runtime, source string, done chan<- outcome) {
	defer func() {
		if r := recover(); r != nil {
			done <- outcome{err: fmt.Errorf("runtime panic: %v", r)}
		}
	}()
	output, err := rt.Run(ctx, source)
	done <- outcome{output: output, err: err}
}

func (c *Coordinator) failure(kind language.Kind, msg string) Result {
	if strings.TrimSpace(msg) == "" {
		msg = "unknown error"
	}
	return Failure(fmt.Sprintf("%s execution error: %s", kind.DisplayName(), msg))
}

func (c *Coordinator) insert(h *handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handles[h.id]; exists {
		return false
	}
	c.handles[h.id] = h
	return true
}

// release removes h if it is still the registered handle for its id.
func (c *Coordinator) release(h *handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handles[h.id] != h {
		return false
	}
	delete(c.handles, h.id)
	return true
}

// Cancel stops the execution registered under id. It returns false, and
// changes nothing, when id is not live. The entry is removed immediately;
// the worker is only signalled and may keep unwinding for a while.
func (c *Coordinator) Cancel(id string) bool {
	c.mu.Lock()
	h, ok := c.handles[id]
	if ok {
		delete(c.handles, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel()
	c.logger.Info("execution cancel requested",
		zap.String("process_id", id),
		zap.Stringer("language", h.kind),
	)
	return true
}

// List returns the ids of live executions, oldest first. The slice is a
// copy and may be stale by the time the caller looks at it.
func (c *Coordinator) List() []string {
	procs := c.Processes()
	ids := make([]string, len(procs))
	for i, p := range procs {
		ids[i] = p.ID
	}
	return ids
}

// Processes returns a snapshot of live executions, oldest first.
func (c *Coordinator) Processes() []Process {
	c.mu.RLock()
	procs := make([]Process, 0, len(c.handles))
	for _, h := range c.handles {
		procs = append(procs, Process{ID: h.id, Language: h.kind, StartedAt: h.startedAt})
	}
	c.mu.RUnlock()

	sort.Slice(procs, func(i, j int) bool {
		if procs[i].StartedAt.Equal(procs[j].StartedAt) {
			return procs[i].ID < procs[j].ID
		}
		return procs[i].StartedAt.Before(procs[j].StartedAt)
	})
	return procs
}

// Shutdown cancels every live execution and returns how many there were.
func (c *Coordinator) Shutdown() int {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[string]*handle)
	c.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	if len(handles) > 0 {
		c.logger.Info("cancelled running executions", zap.Int("count", len(handles)))
	}
	return len(handles)
}

// Stats returns the current counters.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	running := len(c.handles)
	c.mu.RUnlock()

	return Stats{
		Running:   running,
		Submitted: c.submitted.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Canceled:  c.canceled.Load(),
		TimedOut:  c.timedOut.Load(),
	}
}
