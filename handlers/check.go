package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/taskqueue"
)

var (
	_ taskqueue.Handler = (*CheckConnection)(nil)
	_ taskqueue.Handler = (*DiscoverSchema)(nil)
)

// configuredInput is the payload shared by the check and discover
// operations: a connector image plus a secret reference to its config.
type configuredInput struct {
	Image     string `json:"image"`
	ConfigRef string `json:"config_ref"`
}

// hydrate resolves the config reference into the CONFIG env var connectors
// read. Secrets never touch the task payload or logs.
func hydrate(ctx context.Context, secrets airlift.Secrets, in configuredInput) (map[string]string, error) {
	if in.ConfigRef == "" {
		return nil, nil
	}
	config, err := secrets.Hydrate(ctx, in.ConfigRef)
	if err != nil {
		return nil, fmt.Errorf("hydrate config %q: %w", in.ConfigRef, err)
	}
	return map[string]string{"CONFIG": config}, nil
}

// CheckConnection runs a connector's check command against hydrated
// configuration.
type CheckConnection struct {
	runner  connectorRunner
	secrets airlift.Secrets
}

func (h *CheckConnection) Name() string { return "CheckConnection" }

func (h *CheckConnection) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	var in configuredInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode check input: %w", err)
	}
	if in.Image == "" {
		return nil, fmt.Errorf("check task %s: missing image", t.ID)
	}

	env, err := hydrate(ctx, h.secrets, in)
	if err != nil {
		return nil, err
	}

	out := h.runner.outputPath(t, "check.json")
	code, err := h.runner.run(ctx, t, in.Image, []string{"check", "--output", out}, env)
	if err != nil {
		return nil, err
	}
	return runResult{ExitCode: code, OutputPath: out}.marshal()
}

// DiscoverSchema runs a connector's discover command against hydrated
// configuration.
type DiscoverSchema struct {
	runner  connectorRunner
	secrets airlift.Secrets
}

func (h *DiscoverSchema) Name() string { return "DiscoverSchema" }

func (h *DiscoverSchema) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	var in configuredInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode discover input: %w", err)
	}
	if in.Image == "" {
		return nil, fmt.Errorf("discover task %s: missing image", t.ID)
	}

	env, err := hydrate(ctx, h.secrets, in)
	if err != nil {
		return nil, err
	}

	out := h.runner.outputPath(t, "catalog.json")
	code, err := h.runner.run(ctx, t, in.Image, []string{"discover", "--output", out}, env)
	if err != nil {
		return nil, err
	}
	return runResult{ExitCode: code, OutputPath: out}.marshal()
}
