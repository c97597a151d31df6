// Package workerapp bootstraps and runs the worker process: it assembles
// every dependency up front, fails fast before anything starts, and then
// runs the liveness endpoint and all task queues until shutdown.
package workerapp

import (
	"context"
	"fmt"
	"log/slog"

	"k8s.io/client-go/kubernetes"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/engineclient"
	"github.com/xraph/airlift/handlers"
	"github.com/xraph/airlift/heartbeat"
	"github.com/xraph/airlift/launcher"
	"github.com/xraph/airlift/middleware"
	"github.com/xraph/airlift/orchestrator"
	"github.com/xraph/airlift/persistence"
	"github.com/xraph/airlift/statestore"
	"github.com/xraph/airlift/taskqueue"
)

// queueRunner is the slice of TaskQueue the app drives. Tests substitute
// spies to observe start ordering.
type queueRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	QueueName() string
}

// App is the assembled worker process.
type App struct {
	cfg       airlift.Config
	logger    *slog.Logger
	heartbeat *heartbeat.Server
	queues    []queueRunner
	jobs      persistence.JobStore
	states    statestore.Store
}

// Option configures New.
type Option func(*builder)

// builder carries injectable collaborators during assembly.
type builder struct {
	logger  *slog.Logger
	secrets airlift.Secrets
	kube    kubernetes.Interface
	source  taskqueue.Source
	jobs    persistence.JobStore
	states  statestore.Store
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *builder) { b.logger = l }
}

// WithSecrets overrides the secrets accessor.
func WithSecrets(s airlift.Secrets) Option {
	return func(b *builder) { b.secrets = s }
}

// WithKubeClient injects a cluster client, bypassing in-cluster config.
func WithKubeClient(c kubernetes.Interface) Option {
	return func(b *builder) { b.kube = c }
}

// WithSource overrides the engine task source.
func WithSource(s taskqueue.Source) Option {
	return func(b *builder) { b.source = s }
}

// WithJobStore overrides the jobs-database client.
func WithJobStore(s persistence.JobStore) Option {
	return func(b *builder) { b.jobs = s }
}

// WithStateStore overrides the state document store.
func WithStateStore(s statestore.Store) Option {
	return func(b *builder) { b.states = s }
}

// New assembles the worker. Every collaborator is built here; any failure
// returns an error with nothing started and nothing to clean up, so a
// misconfigured worker never serves a partial queue set.
func New(ctx context.Context, cfg airlift.Config, opts ...Option) (*App, error) {
	b := &builder{logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("workerapp: %w", err)
	}

	rt := airlift.NewRuntimeContext(cfg, b.secrets)

	// One cluster client serves both the launch strategy and the
	// orchestrator hand-off.
	kube := b.kube
	if kube == nil && cfg.Environment == airlift.EnvKubernetes {
		var err error
		kube, err = launcher.NewClusterClient()
		if err != nil {
			return nil, fmt.Errorf("workerapp: %w", err)
		}
	}

	strategy, err := launcher.Select(cfg,
		launcher.WithLogger(b.logger),
		launcher.WithKubeClient(kube),
	)
	if err != nil {
		return nil, fmt.Errorf("workerapp: %w", err)
	}

	orch, err := orchestrator.Decide(cfg, kube, orchestrator.WithLogger(b.logger))
	if err != nil {
		return nil, fmt.Errorf("workerapp: %w", err)
	}

	states := b.states
	switch {
	case states != nil:
	case orch != nil:
		// Share the orchestrator's store so both paths see one keyspace.
		states = orch.States
	default:
		states, err = statestore.New(cfg.StateStorage, orchestrator.StatePrefix)
		if err != nil {
			return nil, fmt.Errorf("workerapp: %w", err)
		}
	}

	jobs := b.jobs
	if jobs == nil {
		jobs, err = persistence.NewPostgres(ctx, cfg.Database.URL,
			persistence.WithLogger(b.logger))
		if err != nil {
			return nil, fmt.Errorf("workerapp: %w", err)
		}
	}

	set, err := handlers.NewSet(rt, strategy, states, jobs, orch)
	if err != nil {
		return nil, fmt.Errorf("workerapp: %w", err)
	}

	source := b.source
	if source == nil {
		source = engineclient.New(cfg.EngineAddr,
			engineclient.WithToken(cfg.EngineAuthToken),
			engineclient.WithLogger(b.logger),
		)
	}

	factory := taskqueue.NewFactory(source,
		taskqueue.WithLogger(b.logger),
		taskqueue.WithPollInterval(cfg.PollInterval),
		taskqueue.WithMiddleware(
			middleware.Recover(b.logger),
			middleware.Tracing(),
			middleware.Metrics(),
			middleware.Logging(b.logger),
		),
	)

	queues, err := buildQueues(factory, set, cfg.MaxWorkers)
	if err != nil {
		return nil, fmt.Errorf("workerapp: %w", err)
	}

	return &App{
		cfg:       cfg,
		logger:    b.logger,
		heartbeat: heartbeat.New(heartbeat.WithLogger(b.logger)),
		queues:    queues,
		jobs:      jobs,
		states:    states,
	}, nil
}

// buildQueues constructs and fully registers one queue per category. The
// first failure aborts; nothing is started here.
func buildQueues(factory *taskqueue.Factory, set *handlers.Set, limits airlift.ConcurrencyLimits) ([]queueRunner, error) {
	queues := make([]queueRunner, 0, len(airlift.Categories()))
	for _, c := range airlift.Categories() {
		q, err := factory.New(c, limits[c])
		if err != nil {
			return nil, err
		}
		if err := q.RegisterHandlers(set.ForCategory(c)...); err != nil {
			return nil, err
		}
		if err := q.RegisterWorkflow(handlers.Shape(c)); err != nil {
			return nil, err
		}
		queues = append(queues, q)
	}
	return queues, nil
}

// Start runs the liveness endpoint and every queue, then blocks until ctx
// is cancelled or the heartbeat server dies. If any queue fails to start,
// the ones already running are stopped and the error is returned: the
// worker serves all categories or none.
func (a *App) Start(ctx context.Context) error {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()

	hbErr := make(chan error, 1)
	go func() {
		hbErr <- a.heartbeat.Serve(hbCtx)
	}()

	started := make([]queueRunner, 0, len(a.queues))
	for _, q := range a.queues {
		if err := q.Start(ctx); err != nil {
			a.stopQueues(started)
			return fmt.Errorf("start queue %s: %w", q.QueueName(), err)
		}
		started = append(started, q)
	}

	a.logger.Info("worker up",
		slog.Int("queues", len(a.queues)),
		slog.String("environment", string(a.cfg.Environment)),
		slog.String("version", a.cfg.Version),
	)

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		a.stopQueues(started)
		return nil
	case err := <-hbErr:
		// The heartbeat is load-bearing: launched processes kill
		// themselves without it, so the worker must not outlive it.
		a.stopQueues(started)
		if err != nil {
			return fmt.Errorf("heartbeat server died: %w", err)
		}
		return fmt.Errorf("heartbeat server exited unexpectedly")
	}
}

// stopQueues drains queues within the shutdown timeout.
func (a *App) stopQueues(queues []queueRunner) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	for _, q := range queues {
		if err := q.Stop(ctx); err != nil {
			a.logger.Warn("queue did not drain",
				slog.String("queue", q.QueueName()),
				slog.String("error", err.Error()),
			)
		}
	}
}
