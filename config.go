package airlift

import (
	"fmt"
	"time"
)

// Environment discriminates how this worker is deployed, and therefore how
// connector processes are launched.
type Environment string

const (
	// EnvDocker launches connector processes as local containers.
	EnvDocker Environment = "docker"
	// EnvKubernetes launches connector processes as cluster-scheduled pods.
	EnvKubernetes Environment = "kubernetes"
)

// KubeHeartbeatPort is the fixed port the liveness endpoint binds. Pods
// launched by the cluster strategy call back to this port to check that the
// launching worker is still alive.
const KubeHeartbeatPort = 9000

// DatabaseConfig carries the connection parameters for the jobs database.
// The database itself is an external collaborator; this layer only constructs
// a client and threads credentials into handlers.
type DatabaseConfig struct {
	URL      string
	User     string
	Password string
}

// LogConfig carries the logging destination settings shared with launched
// connector processes.
type LogConfig struct {
	// Level is the minimum slog level name (debug, info, warn, error).
	Level string
	// Root is the directory job logs are written under.
	Root string
}

// StateStorageConfig selects and configures the backend of the keyed document
// store used for orchestrator state hand-off.
type StateStorageConfig struct {
	// Backend is one of: memory, filesystem, redis, sqlite, mongo.
	Backend string

	// Root is the base directory for the filesystem backend.
	Root string

	// RedisAddr and RedisDB configure the redis backend.
	RedisAddr string
	RedisDB   int

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string

	// MongoURI and MongoDatabase configure the mongo backend.
	MongoURI      string
	MongoDatabase string
}

// Config holds all externally supplied configuration for the worker process.
type Config struct {
	// Environment decides the launch strategy. Evaluated once at startup.
	Environment Environment

	// WorkspaceRoot is the directory job workspaces live under.
	WorkspaceRoot string

	// WorkspaceDockerMount and LocalDockerMount are the volume names (or
	// host paths) mounted into locally launched containers. DockerNetwork
	// is the network those containers join.
	WorkspaceDockerMount string
	LocalDockerMount     string
	DockerNetwork        string

	// KubeNamespace is the namespace connector pods are scheduled into.
	// Required when Environment is kubernetes or the orchestrator is enabled.
	KubeNamespace string

	// EngineAddr is the durable-execution service endpoint. EngineAuthToken
	// is sent as a bearer token when non-empty.
	EngineAddr      string
	EngineAuthToken string

	// Database carries jobs-database credentials.
	Database DatabaseConfig

	// Logs carries the logging destination settings.
	Logs LogConfig

	// Version is the deployed worker version string, passed to connectors.
	Version string

	// MaxWorkers maps each job category to its concurrency ceiling.
	MaxWorkers ConcurrencyLimits

	// OrchestratorEnabled delegates sync execution to an external container
	// orchestrator process when true. Decided once per process.
	OrchestratorEnabled bool

	// StateStorage configures the keyed document store backing the
	// orchestrator hand-off. Only consulted when OrchestratorEnabled.
	StateStorage StateStorageConfig

	// PollInterval is how often idle queue workers poll the engine.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for queues to drain.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults for local use.
func DefaultConfig() Config {
	return Config{
		Environment:     EnvDocker,
		WorkspaceRoot:   "/tmp/airlift/workspace",
		DockerNetwork:   "host",
		EngineAddr:      "http://localhost:7233",
		Version:         "dev",
		MaxWorkers:      DefaultConcurrencyLimits(),
		StateStorage:    StateStorageConfig{Backend: "memory"},
		PollInterval:    time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration invariants that must hold before any
// queue is constructed. Violations are fatal at startup.
func (c Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return ErrMissingWorkspace
	}
	if c.Environment == EnvKubernetes && c.KubeNamespace == "" {
		return fmt.Errorf("environment %q: %w", c.Environment, ErrMissingNamespace)
	}
	if c.OrchestratorEnabled && c.KubeNamespace == "" {
		return fmt.Errorf("orchestrator enabled: %w", ErrMissingNamespace)
	}
	return c.MaxWorkers.Validate()
}
