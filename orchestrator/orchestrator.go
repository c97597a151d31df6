// Package orchestrator decides whether jobs run through a dedicated
// container orchestrator and, when they do, assembles the dependencies the
// orchestrated path needs.
package orchestrator

import (
	"fmt"
	"log/slog"

	"k8s.io/client-go/kubernetes"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/launcher"
	"github.com/xraph/airlift/statestore"
)

// StatePrefix roots every orchestrator state document. Changing it orphans
// previously persisted state, so it is fixed for the life of a deployment.
const StatePrefix = "/state"

// Handle carries the dependencies of the orchestrated execution path. A nil
// Handle means jobs run in-process in the worker instead.
type Handle struct {
	// Namespace is where orchestrator pods are scheduled.
	Namespace string

	// States persists job state documents under [StatePrefix].
	States statestore.Store

	// Kube is the cluster client orchestrator pods are scheduled through.
	// Always set on a non-nil Handle.
	Kube kubernetes.Interface

	// Pods launches orchestrator pods through Kube into Namespace. Handed-off
	// work runs here, never through the worker's own launch strategy.
	Pods launcher.Strategy
}

// Option configures Decide.
type Option func(*decider)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *decider) { d.logger = l }
}

// WithStateStore injects a pre-built state store instead of opening one
// from configuration. Used by tests.
func WithStateStore(s statestore.Store) Option {
	return func(d *decider) { d.states = s }
}

type decider struct {
	logger *slog.Logger
	states statestore.Store
}

// Decide evaluates the orchestrator flag once at bootstrap. It returns nil
// when the flag is off; callers treat a nil Handle as "run jobs in the
// worker". When the flag is on a cluster client is required: kube is used
// as-is when non-nil, otherwise one is built from the ambient cluster
// configuration.
func Decide(cfg airlift.Config, kube kubernetes.Interface, opts ...Option) (*Handle, error) {
	if !cfg.OrchestratorEnabled {
		return nil, nil
	}

	d := &decider{logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}

	if cfg.KubeNamespace == "" {
		return nil, fmt.Errorf("orchestrator: %w", airlift.ErrMissingNamespace)
	}

	states := d.states
	if states == nil {
		var err error
		states, err = statestore.New(cfg.StateStorage, StatePrefix)
		if err != nil {
			return nil, fmt.Errorf("orchestrator state store: %w", err)
		}
	}

	if kube == nil {
		var err error
		kube, err = launcher.NewClusterClient()
		if err != nil {
			return nil, fmt.Errorf("orchestrator cluster client: %w", err)
		}
	}

	d.logger.Info("container orchestrator enabled",
		slog.String("namespace", cfg.KubeNamespace),
		slog.String("state_backend", cfg.StateStorage.Backend),
	)

	return &Handle{
		Namespace: cfg.KubeNamespace,
		States:    states,
		Kube:      kube,
		Pods: launcher.NewKubeLauncher(kube, cfg.KubeNamespace, "",
			launcher.WithKubeLogger(d.logger)),
	}, nil
}
