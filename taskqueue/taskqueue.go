package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/backoff"
	"github.com/xraph/airlift/middleware"
)

// Source supplies tasks from the durable-execution engine and receives
// their outcomes. Poll returns (nil, nil) when the queue is empty.
type Source interface {
	Poll(ctx context.Context, queue string) (*airlift.Task, error)
	Complete(ctx context.Context, t *airlift.Task, result []byte) error
	Fail(ctx context.Context, t *airlift.Task, taskErr error) error
}

// Handler executes one operation. Name is the operation identifier tasks
// carry; it must be unique within a queue.
type Handler interface {
	Name() string
	Execute(ctx context.Context, t *airlift.Task) ([]byte, error)
}

// WorkflowShape declares a workflow hosted on a queue: its name and the
// operations it invokes. The engine drives workflows; the queue only
// advertises them and validates the operations are registered.
type WorkflowShape struct {
	Name       string
	Operations []string
}

// Factory builds task queues bound to one source and one middleware chain.
type Factory struct {
	source       Source
	chain        middleware.Middleware
	logger       *slog.Logger
	pollInterval time.Duration
	idleDelay    backoff.Strategy
	rateLimit    rate.Limit
	rateBurst    int
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger inherited by every queue.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// WithMiddleware sets the middleware applied around every task execution.
func WithMiddleware(mws ...middleware.Middleware) FactoryOption {
	return func(f *Factory) { f.chain = middleware.Chain(mws...) }
}

// WithPollInterval sets how long an idle polling goroutine sleeps.
func WithPollInterval(d time.Duration) FactoryOption {
	return func(f *Factory) { f.pollInterval = d }
}

// WithIdleBackoff sets the delay strategy for consecutive empty polls,
// replacing the flat poll interval.
func WithIdleBackoff(s backoff.Strategy) FactoryOption {
	return func(f *Factory) { f.idleDelay = s }
}

// WithRateLimit throttles polling across each queue's goroutines. Zero
// limit means no throttle.
func WithRateLimit(r rate.Limit, burst int) FactoryOption {
	return func(f *Factory) {
		f.rateLimit = r
		f.rateBurst = burst
	}
}

// NewFactory creates a Factory over the given task source.
func NewFactory(source Source, opts ...FactoryOption) *Factory {
	f := &Factory{
		source:       source,
		chain:        middleware.Chain(),
		logger:       slog.Default(),
		pollInterval: time.Second,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// New builds the queue for a category with the given concurrency ceiling.
// The ceiling is validated here so a bad limit fails before anything
// starts.
func (f *Factory) New(category airlift.JobCategory, limit int) (*TaskQueue, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("category %q: %w", category, airlift.ErrBadConcurrency)
	}
	if limit < 1 {
		return nil, fmt.Errorf("category %q limit %d: %w", category, limit, airlift.ErrBadConcurrency)
	}

	idleDelay := f.idleDelay
	if idleDelay == nil {
		idleDelay = backoff.NewConstant(f.pollInterval)
	}

	q := &TaskQueue{
		category:  category,
		queue:     category.QueueName(),
		limit:     limit,
		source:    f.source,
		chain:     f.chain,
		idleDelay: idleDelay,
		logger: f.logger.With(
			slog.String("queue", category.QueueName()),
		),
		handlers: make(map[string]Handler),
		stopCh:   make(chan struct{}),
	}
	if f.rateLimit > 0 {
		q.limiter = rate.NewLimiter(f.rateLimit, f.rateBurst)
	}
	return q, nil
}

// TaskQueue polls one engine queue and dispatches tasks to handlers. The
// number of polling goroutines equals the concurrency ceiling, so at most
// that many tasks of the category execute at once.
type TaskQueue struct {
	category  airlift.JobCategory
	queue     string
	limit     int
	source    Source
	chain     middleware.Middleware
	idleDelay backoff.Strategy
	limiter   *rate.Limiter
	logger    *slog.Logger

	handlers  map[string]Handler
	workflows []WorkflowShape

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Category returns the job category this queue serves.
func (q *TaskQueue) Category() airlift.JobCategory { return q.category }

// QueueName returns the engine queue name this queue polls.
func (q *TaskQueue) QueueName() string { return q.queue }

// Limit returns the concurrency ceiling.
func (q *TaskQueue) Limit() int { return q.limit }

// RegisterHandlers adds operation handlers. Registering after Start or
// registering two handlers under one name is an error.
func (q *TaskQueue) RegisterHandlers(hs ...Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return airlift.ErrQueueStarted
	}
	for _, h := range hs {
		if _, dup := q.handlers[h.Name()]; dup {
			return fmt.Errorf("operation %q registered twice on queue %s", h.Name(), q.queue)
		}
		q.handlers[h.Name()] = h
	}
	return nil
}

// RegisterWorkflow advertises a workflow shape on this queue. Every
// operation the shape names must already be registered.
func (q *TaskQueue) RegisterWorkflow(shape WorkflowShape) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return airlift.ErrQueueStarted
	}
	for _, op := range shape.Operations {
		if _, ok := q.handlers[op]; !ok {
			return fmt.Errorf("workflow %q: %w: %s", shape.Name, airlift.ErrUnknownOperation, op)
		}
	}
	q.workflows = append(q.workflows, shape)
	return nil
}

// Workflows returns the workflow shapes advertised on this queue.
func (q *TaskQueue) Workflows() []WorkflowShape {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]WorkflowShape(nil), q.workflows...)
}

// Start launches the polling goroutines and returns immediately. A queue
// starts at most once.
func (q *TaskQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("queue %s: %w", q.queue, airlift.ErrQueueStarted)
	}
	if len(q.handlers) == 0 {
		return fmt.Errorf("queue %s: %w", q.queue, airlift.ErrNoHandlers)
	}
	q.started = true

	q.logger.Info("task queue starting",
		slog.Int("concurrency", q.limit),
		slog.Int("operations", len(q.handlers)),
	)

	for range q.limit {
		q.wg.Add(1)
		go q.pollLoop(ctx)
	}
	return nil
}

// Stop signals the polling goroutines and waits for in-flight tasks, up to
// the context deadline. A queue stops at most once.
func (q *TaskQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s: %w", q.queue, airlift.ErrQueueNotStarted)
	}
	if q.stopped {
		q.mu.Unlock()
		return fmt.Errorf("queue %s: %w", q.queue, airlift.ErrQueueStopped)
	}
	q.stopped = true
	q.mu.Unlock()

	close(q.stopCh)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("task queue stopped")
		return nil
	case <-ctx.Done():
		q.logger.Warn("task queue shutdown timed out")
		return ctx.Err()
	}
}

// pollLoop is run by each polling goroutine. Consecutive empty or failed
// polls back off per the idle delay strategy; any dequeued task resets it.
func (q *TaskQueue) pollLoop(ctx context.Context) {
	defer q.wg.Done()

	idle := 0
	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
		}

		t, err := q.source.Poll(ctx, q.queue)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			q.logger.Error("poll failed", slog.String("error", err.Error()))
			idle++
			q.sleep(idle)
			continue
		}
		if t == nil {
			idle++
			q.sleep(idle)
			continue
		}

		idle = 0
		q.execute(ctx, t)
	}
}

// execute dispatches one task through the middleware chain and reports the
// outcome to the source.
func (q *TaskQueue) execute(ctx context.Context, t *airlift.Task) {
	h, ok := q.handlers[t.Operation]
	if !ok {
		err := fmt.Errorf("%w: %s", airlift.ErrUnknownOperation, t.Operation)
		q.logger.Error("dropping task",
			slog.String("task_id", t.ID),
			slog.String("operation", t.Operation),
		)
		if failErr := q.source.Fail(ctx, t, err); failErr != nil {
			q.logger.Error("report failure", slog.String("error", failErr.Error()))
		}
		return
	}

	var result []byte
	execErr := q.chain(ctx, t, func(ctx context.Context) error {
		var err error
		result, err = h.Execute(ctx, t)
		return err
	})

	if execErr != nil {
		if failErr := q.source.Fail(ctx, t, execErr); failErr != nil {
			q.logger.Error("report failure",
				slog.String("task_id", t.ID),
				slog.String("error", failErr.Error()),
			)
		}
		return
	}
	if err := q.source.Complete(ctx, t, result); err != nil {
		q.logger.Error("report completion",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (q *TaskQueue) sleep(idle int) {
	select {
	case <-time.After(q.idleDelay.Delay(idle)):
	case <-q.stopCh:
	}
}
