package airlift

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Secrets hydrates secret references in connector configuration. The secrets
// backend is an external collaborator; implementations must be safe for
// concurrent use.
type Secrets interface {
	// Hydrate resolves a secret reference to its plaintext value.
	Hydrate(ctx context.Context, ref string) (string, error)
}

// EnvSecrets resolves secret references against process environment
// variables. A reference "secret_db_password" resolves to the variable
// SECRET_DB_PASSWORD.
type EnvSecrets struct{}

// Hydrate implements Secrets.
func (EnvSecrets) Hydrate(_ context.Context, ref string) (string, error) {
	key := strings.ToUpper(strings.ReplaceAll(ref, "-", "_"))
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret %q not found in environment", ref)
	}
	return v, nil
}

// RuntimeContext is the immutable bundle of shared configuration injected
// into every handler at construction. It is built once by the bootstrapper
// and shared read-only for the process lifetime; no handler may mutate it.
type RuntimeContext struct {
	// WorkspaceRoot is the directory job workspaces live under.
	WorkspaceRoot string

	// Secrets hydrates secret references in connector configs.
	Secrets Secrets

	// Logs is the logging destination shared with launched processes.
	Logs LogConfig

	// Environment is the deployment environment discriminator.
	Environment Environment

	// Database carries jobs-database credentials for connectors that
	// need direct read access.
	Database DatabaseConfig

	// Version is the deployed worker version string.
	Version string
}

// NewRuntimeContext builds the runtime context from configuration. The
// secrets accessor defaults to EnvSecrets when nil.
func NewRuntimeContext(cfg Config, secrets Secrets) RuntimeContext {
	if secrets == nil {
		secrets = EnvSecrets{}
	}
	return RuntimeContext{
		WorkspaceRoot: cfg.WorkspaceRoot,
		Secrets:       secrets,
		Logs:          cfg.Logs,
		Environment:   cfg.Environment,
		Database:      cfg.Database,
		Version:       cfg.Version,
	}
}
