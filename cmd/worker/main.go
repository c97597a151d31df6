// Command worker runs the data-pipeline worker: it polls the
// durable-execution engine for tasks and launches connector processes to
// execute them.
//
// All configuration comes from AIRLIFT_-prefixed environment variables,
// e.g. AIRLIFT_ENVIRONMENT=kubernetes, AIRLIFT_KUBE_NAMESPACE=jobs.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/workerapp"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Logs.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := workerapp.New(ctx, cfg, workerapp.WithLogger(logger))
	if err != nil {
		logger.Error("bootstrap failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		logger.Error("worker exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads configuration from the environment via viper.
func loadConfig() (airlift.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AIRLIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := airlift.DefaultConfig()
	v.SetDefault("environment", string(def.Environment))
	v.SetDefault("workspace_root", def.WorkspaceRoot)
	v.SetDefault("docker_network", def.DockerNetwork)
	v.SetDefault("engine_addr", def.EngineAddr)
	v.SetDefault("version", def.Version)
	v.SetDefault("log_level", "info")
	v.SetDefault("state_backend", def.StateStorage.Backend)
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("shutdown_timeout", def.ShutdownTimeout)
	for c, n := range airlift.DefaultConcurrencyLimits() {
		v.SetDefault("max_workers."+string(c), n)
	}

	limits := airlift.ConcurrencyLimits{}
	for c := range airlift.DefaultConcurrencyLimits() {
		limits[c] = v.GetInt("max_workers." + string(c))
	}

	cfg := airlift.Config{
		Environment:          airlift.Environment(v.GetString("environment")),
		WorkspaceRoot:        v.GetString("workspace_root"),
		WorkspaceDockerMount: v.GetString("workspace_docker_mount"),
		LocalDockerMount:     v.GetString("local_docker_mount"),
		DockerNetwork:        v.GetString("docker_network"),
		KubeNamespace:        v.GetString("kube_namespace"),
		EngineAddr:           v.GetString("engine_addr"),
		EngineAuthToken:      v.GetString("engine_auth_token"),
		Database: airlift.DatabaseConfig{
			URL:      v.GetString("database_url"),
			User:     v.GetString("database_user"),
			Password: v.GetString("database_password"),
		},
		Logs: airlift.LogConfig{
			Level: v.GetString("log_level"),
			Root:  v.GetString("log_root"),
		},
		Version:             v.GetString("version"),
		MaxWorkers:          limits,
		OrchestratorEnabled: v.GetBool("orchestrator_enabled"),
		StateStorage: airlift.StateStorageConfig{
			Backend:       v.GetString("state_backend"),
			Root:          v.GetString("state_root"),
			RedisAddr:     v.GetString("state_redis_addr"),
			RedisDB:       v.GetInt("state_redis_db"),
			SQLitePath:    v.GetString("state_sqlite_path"),
			MongoURI:      v.GetString("state_mongo_uri"),
			MongoDatabase: v.GetString("state_mongo_database"),
		},
		PollInterval:    v.GetDuration("poll_interval"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process-wide JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
