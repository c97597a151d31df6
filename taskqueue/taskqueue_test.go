package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/middleware"
)

// fakeSource hands out queued tasks and records reported outcomes.
type fakeSource struct {
	mu        sync.Mutex
	pending   []*airlift.Task
	completed []*airlift.Task
	failed    []*airlift.Task
	failErrs  []error
}

func (s *fakeSource) push(ts ...*airlift.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, ts...)
}

func (s *fakeSource) Poll(_ context.Context, queue string) (*airlift.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.pending {
		if t.Queue == queue {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return t, nil
		}
	}
	return nil, nil
}

func (s *fakeSource) Complete(_ context.Context, t *airlift.Task, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, t)
	return nil
}

func (s *fakeSource) Fail(_ context.Context, t *airlift.Task, taskErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, t)
	s.failErrs = append(s.failErrs, taskErr)
	return nil
}

func (s *fakeSource) outcomes() (completed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed), len(s.failed)
}

// funcHandler adapts a function to Handler.
type funcHandler struct {
	name string
	fn   func(ctx context.Context, t *airlift.Task) ([]byte, error)
}

func (h funcHandler) Name() string { return h.name }
func (h funcHandler) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	return h.fn(ctx, t)
}

func syncTask(n int) *airlift.Task {
	return &airlift.Task{
		ID:        fmt.Sprintf("task-%d", n),
		Queue:     airlift.CategorySync.QueueName(),
		Operation: "Replicate",
		JobID:     fmt.Sprintf("%d", n),
		AttemptID: "1",
	}
}

func newSyncQueue(t *testing.T, source Source, limit int, opts ...FactoryOption) *TaskQueue {
	t.Helper()
	opts = append([]FactoryOption{WithPollInterval(5 * time.Millisecond)}, opts...)
	q, err := NewFactory(source, opts...).New(airlift.CategorySync, limit)
	if err != nil {
		t.Fatalf("build queue: %v", err)
	}
	return q
}

func stopQueue(t *testing.T, q *TaskQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestFactoryRejectsBadLimits(t *testing.T) {
	f := NewFactory(&fakeSource{})

	for _, limit := range []int{0, -1} {
		if _, err := f.New(airlift.CategorySync, limit); !errors.Is(err, airlift.ErrBadConcurrency) {
			t.Errorf("limit %d: err = %v, want ErrBadConcurrency", limit, err)
		}
	}
	if _, err := f.New(airlift.JobCategory("compaction"), 5); !errors.Is(err, airlift.ErrBadConcurrency) {
		t.Errorf("unknown category: err = %v, want ErrBadConcurrency", err)
	}
}

func TestQueueStartRequiresHandlers(t *testing.T) {
	q := newSyncQueue(t, &fakeSource{}, 1)
	if err := q.Start(context.Background()); !errors.Is(err, airlift.ErrNoHandlers) {
		t.Fatalf("err = %v, want ErrNoHandlers", err)
	}
}

func TestQueueStartsAtMostOnce(t *testing.T) {
	q := newSyncQueue(t, &fakeSource{}, 1)
	noop := funcHandler{name: "Replicate", fn: func(context.Context, *airlift.Task) ([]byte, error) {
		return nil, nil
	}}
	if err := q.RegisterHandlers(noop); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer stopQueue(t, q)

	if err := q.Start(context.Background()); !errors.Is(err, airlift.ErrQueueStarted) {
		t.Fatalf("second start: err = %v, want ErrQueueStarted", err)
	}
	if err := q.RegisterHandlers(noop); !errors.Is(err, airlift.ErrQueueStarted) {
		t.Fatalf("register after start: err = %v, want ErrQueueStarted", err)
	}
}

func TestQueueStopBeforeStart(t *testing.T) {
	q := newSyncQueue(t, &fakeSource{}, 1)
	if err := q.Stop(context.Background()); !errors.Is(err, airlift.ErrQueueNotStarted) {
		t.Fatalf("err = %v, want ErrQueueNotStarted", err)
	}
}

func TestQueueStopsAtMostOnce(t *testing.T) {
	q := newSyncQueue(t, &fakeSource{}, 1)
	noop := funcHandler{name: "Replicate", fn: func(context.Context, *airlift.Task) ([]byte, error) {
		return nil, nil
	}}
	if err := q.RegisterHandlers(noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := q.Stop(context.Background()); !errors.Is(err, airlift.ErrQueueStopped) {
		t.Fatalf("second stop: err = %v, want ErrQueueStopped", err)
	}
}

func TestQueueRejectsDuplicateOperation(t *testing.T) {
	q := newSyncQueue(t, &fakeSource{}, 1)
	h := funcHandler{name: "Replicate", fn: func(context.Context, *airlift.Task) ([]byte, error) {
		return nil, nil
	}}
	if err := q.RegisterHandlers(h); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := q.RegisterHandlers(h); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestQueueWorkflowValidation(t *testing.T) {
	q := newSyncQueue(t, &fakeSource{}, 1)
	h := funcHandler{name: "Replicate", fn: func(context.Context, *airlift.Task) ([]byte, error) {
		return nil, nil
	}}
	if err := q.RegisterHandlers(h); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := q.RegisterWorkflow(WorkflowShape{Name: "Sync", Operations: []string{"Replicate", "Normalize"}})
	if !errors.Is(err, airlift.ErrUnknownOperation) {
		t.Fatalf("err = %v, want ErrUnknownOperation", err)
	}

	if err := q.RegisterWorkflow(WorkflowShape{Name: "Sync", Operations: []string{"Replicate"}}); err != nil {
		t.Fatalf("valid workflow: %v", err)
	}
	if got := len(q.Workflows()); got != 1 {
		t.Errorf("workflows = %d, want 1", got)
	}
}

// The ceiling is structural: with limit polling goroutines and a saturated
// source, observed concurrency reaches the limit and never exceeds it.
func TestQueueConcurrencyCeiling(t *testing.T) {
	const limit = 3
	const tasks = 20

	source := &fakeSource{}
	for i := range tasks {
		source.push(syncTask(i))
	}

	var active, peak atomic.Int64
	var executed atomic.Int64
	handler := funcHandler{name: "Replicate", fn: func(context.Context, *airlift.Task) ([]byte, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		executed.Add(1)
		return nil, nil
	}}

	q := newSyncQueue(t, source, limit)
	if err := q.RegisterHandlers(handler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for executed.Load() < tasks {
		if time.Now().After(deadline) {
			t.Fatalf("executed %d of %d tasks before deadline", executed.Load(), tasks)
		}
		time.Sleep(5 * time.Millisecond)
	}
	stopQueue(t, q)

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, exceeds limit %d", got, limit)
	}
	if got := peak.Load(); got != limit {
		t.Logf("peak concurrency = %d (limit %d); ceiling held", got, limit)
	}
	completed, failed := source.outcomes()
	if completed != tasks || failed != 0 {
		t.Errorf("outcomes = %d completed, %d failed; want %d, 0", completed, failed, tasks)
	}
}

func TestQueueReportsFailures(t *testing.T) {
	source := &fakeSource{}
	source.push(syncTask(1))

	boom := errors.New("connector exited 1")
	handler := funcHandler{name: "Replicate", fn: func(context.Context, *airlift.Task) ([]byte, error) {
		return nil, boom
	}}

	q := newSyncQueue(t, source, 1)
	if err := q.RegisterHandlers(handler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool {
		_, failed := source.outcomes()
		return failed == 1
	})
	stopQueue(t, q)

	if !errors.Is(source.failErrs[0], boom) {
		t.Errorf("reported error = %v, want %v", source.failErrs[0], boom)
	}
}

func TestQueueFailsUnknownOperation(t *testing.T) {
	source := &fakeSource{}
	stray := syncTask(1)
	stray.Operation = "Compact"
	source.push(stray)

	q := newSyncQueue(t, source, 1)
	noop := funcHandler{name: "Replicate", fn: func(context.Context, *airlift.Task) ([]byte, error) {
		return nil, nil
	}}
	if err := q.RegisterHandlers(noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool {
		_, failed := source.outcomes()
		return failed == 1
	})
	stopQueue(t, q)

	if !errors.Is(source.failErrs[0], airlift.ErrUnknownOperation) {
		t.Errorf("reported error = %v, want ErrUnknownOperation", source.failErrs[0])
	}
}

func TestQueueAppliesMiddleware(t *testing.T) {
	source := &fakeSource{}
	source.push(syncTask(1))

	var order []string
	var mu sync.Mutex
	note := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	mw := func(name string) middleware.Middleware {
		return func(ctx context.Context, t *airlift.Task, next middleware.Handler) error {
			note(name + " before")
			err := next(ctx)
			note(name + " after")
			return err
		}
	}

	handler := funcHandler{name: "Replicate", fn: func(context.Context, *airlift.Task) ([]byte, error) {
		note("execute")
		return nil, nil
	}}

	q := newSyncQueue(t, source, 1, WithMiddleware(mw("outer"), mw("inner")))
	if err := q.RegisterHandlers(handler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool {
		completed, _ := source.outcomes()
		return completed == 1
	})
	stopQueue(t, q)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"outer before", "inner before", "execute", "inner after", "outer after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
