package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"

	"k8s.io/client-go/kubernetes"

	"github.com/xraph/airlift"
)

// ProcessSpec describes one connector process to launch.
type ProcessSpec struct {
	// JobID and AttemptID identify the unit of work; they name the
	// container or pod so operators can find it.
	JobID     string
	AttemptID string

	// Image is the connector image to run.
	Image string

	// Args are passed to the connector entrypoint.
	Args []string

	// Env is the environment handed to the connector.
	Env map[string]string
}

// Process is a handle to a launched connector process. Wait blocks until the
// process exits; Kill terminates it. Killing a process is the only
// cancellation this layer owns; everything else belongs to the
// durable-execution engine.
type Process interface {
	Wait(ctx context.Context) (exitCode int, err error)
	Kill(ctx context.Context) error
}

// Strategy launches connector processes. Implementations are immutable after
// construction and safe for concurrent use by all task queues.
type Strategy interface {
	// Launch starts the process described by spec. It returns once the
	// process has been started (container created, pod scheduled), not
	// once it has finished.
	Launch(ctx context.Context, spec ProcessSpec) (Process, error)
}

// selector carries the optional dependencies of Select.
type selector struct {
	logger     *slog.Logger
	kubeClient kubernetes.Interface
	resolveIP  func() (string, error)
}

// SelectOption configures Select.
type SelectOption func(*selector)

// WithLogger sets the logger used by the constructed strategy.
func WithLogger(l *slog.Logger) SelectOption {
	return func(s *selector) { s.logger = l }
}

// WithKubeClient injects a Kubernetes client, bypassing in-cluster
// configuration. Used by the bootstrapper (which shares a client with the
// orchestrator decider) and by tests.
func WithKubeClient(c kubernetes.Interface) SelectOption {
	return func(s *selector) { s.kubeClient = c }
}

// WithHostResolver overrides how the local host address is resolved for the
// heartbeat callback URL.
func WithHostResolver(f func() (string, error)) SelectOption {
	return func(s *selector) { s.resolveIP = f }
}

// Select returns the launch strategy for the configured deployment
// environment. The selection happens once at startup and is not
// re-evaluated. Select constructs only; it launches nothing.
func Select(cfg airlift.Config, opts ...SelectOption) (Strategy, error) {
	s := &selector{
		logger:    slog.Default(),
		resolveIP: localHostAddress,
	}
	for _, o := range opts {
		o(s)
	}

	if cfg.Environment != airlift.EnvKubernetes {
		return NewDockerLauncher(
			cfg.WorkspaceRoot,
			cfg.WorkspaceDockerMount,
			cfg.LocalDockerMount,
			cfg.DockerNetwork,
			WithDockerLogger(s.logger),
		), nil
	}

	if cfg.KubeNamespace == "" {
		return nil, airlift.ErrMissingNamespace
	}

	ip, err := s.resolveIP()
	if err != nil {
		return nil, fmt.Errorf("resolve heartbeat callback address: %v: %w", err, airlift.ErrHostUnresolved)
	}
	heartbeatURL := fmt.Sprintf("%s:%d", ip, airlift.KubeHeartbeatPort)

	client := s.kubeClient
	if client == nil {
		client, err = NewClusterClient()
		if err != nil {
			return nil, fmt.Errorf("build cluster client: %w", err)
		}
	}

	s.logger.Info("using cluster launch strategy",
		slog.String("namespace", cfg.KubeNamespace),
		slog.String("heartbeat_url", heartbeatURL),
	)

	return NewKubeLauncher(client, cfg.KubeNamespace, heartbeatURL, WithKubeLogger(s.logger)), nil
}

// localHostAddress resolves the local host's address the way launched pods
// will reach it.
func localHostAddress() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return "", fmt.Errorf("lookup %q: %w", hostname, err)
	}
	return addrs[0], nil
}
