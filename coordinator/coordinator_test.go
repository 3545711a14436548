package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caffeineduck/codeserver/coordinator"
	"github.com/caffeineduck/codeserver/language"
)

// blockingRuntime parks every Run until release is closed. When honorCancel
// is set it also returns as soon as ctx is done.
type blockingRuntime struct {
	started     chan string
	release     chan struct{}
	honorCancel bool
}

func newBlocking(honorCancel bool) *blockingRuntime {
	return &blockingRuntime{
		started:     make(chan string, 64),
		release:     make(chan struct{}),
		honorCancel: honorCancel,
	}
}

func (b *blockingRuntime) Run(ctx context.Context, source string) (string, error) {
	b.started <- source
	if b.honorCancel {
		select {
		case <-b.release:
			return source, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	<-b.release
	return source, nil
}

func (b *blockingRuntime) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case s := <-b.started:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("runtime never started")
		return ""
	}
}

func python(rt coordinator.Runtime) map[language.Kind]coordinator.Runtime {
	return map[language.Kind]coordinator.Runtime{language.Python: rt}
}

func echo() coordinator.Runtime {
	return coordinator.RuntimeFunc(func(_ context.Context, source string) (string, error) {
		return source, nil
	})
}

// submitAsync runs Submit in the background and returns its result channel.
func submitAsync(c *coordinator.Coordinator, source, id string) <-chan coordinator.Result {
	ch := make(chan coordinator.Result, 1)
	go func() {
		ch <- c.Submit(context.Background(), source, language.Python, id)
	}()
	return ch
}

func await(t *testing.T, ch <-chan coordinator.Result) coordinator.Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return")
		return coordinator.Result{}
	}
}

func TestSubmitSuccess(t *testing.T) {
	c := coordinator.New(python(coordinator.RuntimeFunc(func(context.Context, string) (string, error) {
		return "2\n", nil
	})))

	r := c.Submit(context.Background(), "1+1", language.Python, "")
	if !r.Succeeded || r.Output != "2\n" || r.Error != "" {
		t.Fatalf("unexpected result %+v", r)
	}
	if ids := c.List(); len(ids) != 0 {
		t.Errorf("registry should be empty after completion, got %v", ids)
	}
}

func TestSubmitEmptyOutput(t *testing.T) {
	c := coordinator.New(python(coordinator.RuntimeFunc(func(context.Context, string) (string, error) {
		return "", nil
	})))

	r := c.Submit(context.Background(), "x = 1", language.Python, "p1")
	if !r.Succeeded || r.Output != "" {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestSubmitRuntimeError(t *testing.T) {
	c := coordinator.New(python(coordinator.RuntimeFunc(func(context.Context, string) (string, error) {
		return "partial", errors.New("NameError: name 'y' is not defined")
	})))

	r := c.Submit(context.Background(), "y", language.Python, "")
	if r.Succeeded {
		t.Fatal("expected failure")
	}
	if r.Error != "Python execution error: NameError: name 'y' is not defined" {
		t.Errorf("unexpected error %q", r.Error)
	}
	if r.Output != "" {
		t.Errorf("failed result should carry no output, got %q", r.Output)
	}
}

func TestSubmitRuntimePanic(t *testing.T) {
	c := coordinator.New(python(coordinator.RuntimeFunc(func(context.Context, string) (string, error) {
		panic("interpreter exploded")
	})))

	r := c.Submit(context.Background(), "1", language.Python, "")
	if r.Succeeded || !strings.Contains(r.Error, "interpreter exploded") {
		t.Fatalf("panic should surface as failure, got %+v", r)
	}
	if len(c.List()) != 0 {
		t.Error("registry should be empty after a panic")
	}
}

func TestSubmitBlankSource(t *testing.T) {
	var calls atomic.Int32
	c := coordinator.New(python(coordinator.RuntimeFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", nil
	})))

	for _, src := range []string{"", "   ", "\n\t\n"} {
		r := c.Submit(context.Background(), src, language.Python, "")
		if r.Succeeded || r.Error != coordinator.CodeRequired {
			t.Errorf("Submit(%q) = %+v", src, r)
		}
	}
	if calls.Load() != 0 {
		t.Error("runtime should not be invoked for blank source")
	}
	if c.Stats().Submitted != 0 {
		t.Error("blank source should not count as a submission")
	}
}

func TestSubmitUnsupportedLanguage(t *testing.T) {
	c := coordinator.New(python(echo()))

	r := c.Submit(context.Background(), "console.log(1)", language.JavaScript, "")
	if r.Succeeded || r.Error != "Unsupported language: javascript" {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestListShowsRunning(t *testing.T) {
	rt := newBlocking(false)
	c := coordinator.New(python(rt))

	done := submitAsync(c, "work", "abc")
	rt.waitStarted(t)

	if ids := c.List(); !slices.Equal(ids, []string{"abc"}) {
		t.Fatalf("List() = %v, want [abc]", ids)
	}
	procs := c.Processes()
	if len(procs) != 1 || procs[0].Language != language.Python || procs[0].StartedAt.IsZero() {
		t.Errorf("unexpected processes %+v", procs)
	}
	if c.Stats().Running != 1 {
		t.Errorf("Running = %d, want 1", c.Stats().Running)
	}

	close(rt.release)
	if r := await(t, done); !r.Succeeded || r.Output != "work" {
		t.Fatalf("unexpected result %+v", r)
	}
	if len(c.List()) != 0 {
		t.Error("id should leave the registry once Submit returns")
	}
}

func TestListOrderedByStart(t *testing.T) {
	rt := newBlocking(true)
	c := coordinator.New(python(rt))

	var results []<-chan coordinator.Result
	for _, id := range []string{"first", "second", "third"} {
		results = append(results, submitAsync(c, id, id))
		rt.waitStarted(t)
		time.Sleep(2 * time.Millisecond)
	}

	if ids := c.List(); !slices.Equal(ids, []string{"first", "second", "third"}) {
		t.Errorf("List() = %v", ids)
	}
	close(rt.release)
	for _, ch := range results {
		await(t, ch)
	}
}

func TestCancelUnknown(t *testing.T) {
	rt := newBlocking(true)
	c := coordinator.New(python(rt))

	done := submitAsync(c, "work", "live")
	rt.waitStarted(t)

	if c.Cancel("nope") {
		t.Error("Cancel of unknown id should return false")
	}
	if ids := c.List(); !slices.Equal(ids, []string{"live"}) {
		t.Errorf("Cancel of unknown id changed the registry: %v", ids)
	}

	close(rt.release)
	await(t, done)
}

func TestCancelRunning(t *testing.T) {
	rt := newBlocking(true)
	c := coordinator.New(python(rt))

	done := submitAsync(c, "while True: pass", "loop")
	rt.waitStarted(t)

	if !c.Cancel("loop") {
		t.Fatal("Cancel should report true for a live id")
	}
	if len(c.List()) != 0 {
		t.Error("cancelled id should be removed immediately")
	}
	if c.Cancel("loop") {
		t.Error("second Cancel should return false")
	}

	r := await(t, done)
	if r.Succeeded || r.Error != "Python execution error: execution canceled" {
		t.Errorf("unexpected result %+v", r)
	}
	if c.Stats().Canceled != 1 {
		t.Errorf("Canceled = %d, want 1", c.Stats().Canceled)
	}
}

func TestCancelDiscardsLateResult(t *testing.T) {
	// The runtime ignores ctx and only returns when released.
	rt := newBlocking(false)
	c := coordinator.New(python(rt))

	done := submitAsync(c, "stubborn", "late")
	rt.waitStarted(t)

	if !c.Cancel("late") {
		t.Fatal("Cancel should succeed")
	}

	// Submit returns without waiting for the worker.
	r := await(t, done)
	if r.Succeeded || !strings.Contains(r.Error, "canceled") {
		t.Fatalf("expected cancellation, got %+v", r)
	}

	close(rt.release)
	time.Sleep(10 * time.Millisecond)
	if len(c.List()) != 0 {
		t.Error("late worker must not re-register")
	}
	if s := c.Stats(); s.Succeeded != 0 {
		t.Errorf("late result should be discarded, stats %+v", s)
	}
}

func TestSubmitTimeout(t *testing.T) {
	rt := newBlocking(true)
	c := coordinator.New(python(rt), coordinator.WithTimeout(50*time.Millisecond))

	start := time.Now()
	r := c.Submit(context.Background(), "while True: pass", language.Python, "slow")
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not fire promptly")
	}
	if r.Succeeded || r.Error != "Python execution error: execution timed out after 50ms" {
		t.Errorf("unexpected result %+v", r)
	}
	if len(c.List()) != 0 {
		t.Error("timed out id should be removed")
	}
	if c.Stats().TimedOut != 1 {
		t.Errorf("TimedOut = %d, want 1", c.Stats().TimedOut)
	}
}

func TestSubmitParentContextCanceled(t *testing.T) {
	rt := newBlocking(true)
	c := coordinator.New(python(rt))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan coordinator.Result, 1)
	go func() { done <- c.Submit(ctx, "x", language.Python, "parent") }()
	rt.waitStarted(t)

	cancel()
	r := await(t, done)
	if r.Succeeded || !strings.HasSuffix(r.Error, "execution canceled") {
		t.Errorf("unexpected result %+v", r)
	}
	if len(c.List()) != 0 {
		t.Error("registry should be empty")
	}
}

func TestSubmitDuplicateID(t *testing.T) {
	rt := newBlocking(true)
	c := coordinator.New(python(rt))

	first := submitAsync(c, "one", "dup")
	rt.waitStarted(t)

	r := c.Submit(context.Background(), "two", language.Python, "dup")
	if r.Succeeded || !strings.Contains(r.Error, coordinator.ErrDuplicateID.Error()) {
		t.Fatalf("duplicate id should be rejected, got %+v", r)
	}
	if ids := c.List(); !slices.Equal(ids, []string{"dup"}) {
		t.Errorf("original entry should survive, List() = %v", ids)
	}

	close(rt.release)
	if r := await(t, first); !r.Succeeded || r.Output != "one" {
		t.Errorf("original execution should finish normally, got %+v", r)
	}
}

func TestSubmitGeneratesID(t *testing.T) {
	rt := newBlocking(true)
	c := coordinator.New(python(rt))

	done := submitAsync(c, "x", "")
	rt.waitStarted(t)

	ids := c.List()
	if len(ids) != 1 || len(ids[0]) != 36 {
		t.Errorf("expected one generated uuid, got %v", ids)
	}
	close(rt.release)
	await(t, done)
}

func TestConcurrentSubmitAndCancel(t *testing.T) {
	const n = 20
	rt := newBlocking(true)
	c := coordinator.New(python(rt))

	results := make([]coordinator.Result, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			id := fmt.Sprintf("p%d", i)
			results[i] = c.Submit(context.Background(), id, language.Python, id)
			return nil
		})
	}
	for i := 0; i < n; i++ {
		rt.waitStarted(t)
	}
	if got := len(c.List()); got != n {
		t.Fatalf("expected %d live executions, got %d", n, got)
	}

	for i := 0; i < n; i += 2 {
		if !c.Cancel(fmt.Sprintf("p%d", i)) {
			t.Errorf("Cancel(p%d) returned false", i)
		}
	}
	close(rt.release)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for i, r := range results {
		if i%2 == 0 {
			if r.Succeeded || !strings.Contains(r.Error, "canceled") {
				t.Errorf("p%d: expected cancellation, got %+v", i, r)
			}
			continue
		}
		if !r.Succeeded || r.Output != fmt.Sprintf("p%d", i) {
			t.Errorf("p%d: expected success, got %+v", i, r)
		}
	}
	if len(c.List()) != 0 {
		t.Errorf("registry not drained: %v", c.List())
	}

	s := c.Stats()
	if s.Submitted != n || s.Canceled != n/2 || s.Succeeded != n/2 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestShutdown(t *testing.T) {
	rt := newBlocking(true)
	c := coordinator.New(python(rt))

	a := submitAsync(c, "a", "a")
	b := submitAsync(c, "b", "b")
	rt.waitStarted(t)
	rt.waitStarted(t)

	if n := c.Shutdown(); n != 2 {
		t.Errorf("Shutdown() = %d, want 2", n)
	}
	for _, ch := range []<-chan coordinator.Result{a, b} {
		if r := await(t, ch); r.Succeeded {
			t.Errorf("expected cancellation, got %+v", r)
		}
	}
	if c.Shutdown() != 0 {
		t.Error("second Shutdown should find nothing")
	}
}

func TestConcurrentListDuringSubmissions(t *testing.T) {
	c := coordinator.New(python(echo()))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.List()
				c.Stats()
			}
		}
	}()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			r := c.Submit(context.Background(), "x", language.Python, "")
			if !r.Succeeded {
				return fmt.Errorf("submission %d failed: %s", i, r.Error)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Error(err)
	}
	close(stop)
	wg.Wait()
}
