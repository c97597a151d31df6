package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/orchestrator"
	"github.com/xraph/airlift/statestore"
	"github.com/xraph/airlift/taskqueue"
)

var (
	_ taskqueue.Handler = (*Replicate)(nil)
	_ taskqueue.Handler = (*Normalize)(nil)
	_ taskqueue.Handler = (*Transform)(nil)
	_ taskqueue.Handler = (*PersistState)(nil)
)

// stateKeyEnvVar tells a delegated orchestrator pod which state document
// holds its input.
const stateKeyEnvVar = "AIRLIFT_STATE_KEY"

// delegate hands a task off to the container orchestrator: the input
// payload is persisted under the task's state key, then the orchestrator
// image runs with that key and owns the rest of the step. The pod is
// scheduled through the handle's cluster client into its namespace, not
// through the worker's own launch strategy.
func delegate(ctx context.Context, orch *orchestrator.Handle, podRunner connectorRunner, t *airlift.Task, image string) ([]byte, error) {
	key := t.StateKey()
	if err := orch.States.Put(ctx, key, t.Payload); err != nil {
		return nil, fmt.Errorf("persist hand-off state: %w", err)
	}

	code, err := podRunner.run(ctx, t, image, nil, map[string]string{
		stateKeyEnvVar: key,
	})
	if err != nil {
		return nil, err
	}
	return runResult{ExitCode: code}.marshal()
}

// Replicate moves records from a source connector to a destination
// connector. The two containers share the job workspace: the source runs
// to completion writing records there, then the destination consumes them.
// When the orchestrator handle is set the whole step runs in a dedicated
// orchestrator pod instead.
type Replicate struct {
	runner    connectorRunner
	podRunner connectorRunner
	secrets   airlift.Secrets
	orch      *orchestrator.Handle
}

type replicateInput struct {
	SourceImage       string `json:"source_image"`
	DestinationImage  string `json:"destination_image"`
	OrchestratorImage string `json:"orchestrator_image"`
	ConfigRef         string `json:"config_ref"`
}

func (h *Replicate) Name() string { return "Replicate" }

func (h *Replicate) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	var in replicateInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode replicate input: %w", err)
	}

	if h.orch != nil {
		if in.OrchestratorImage == "" {
			return nil, fmt.Errorf("replicate task %s: orchestrator enabled but no orchestrator image", t.ID)
		}
		return delegate(ctx, h.orch, h.podRunner, t, in.OrchestratorImage)
	}

	if in.SourceImage == "" || in.DestinationImage == "" {
		return nil, fmt.Errorf("replicate task %s: missing source or destination image", t.ID)
	}

	env, err := hydrate(ctx, h.secrets, configuredInput{ConfigRef: in.ConfigRef})
	if err != nil {
		return nil, err
	}

	records := h.runner.outputPath(t, "records")
	if _, err := h.runner.run(ctx, t, in.SourceImage,
		[]string{"read", "--output", records}, env); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if _, err := h.runner.run(ctx, t, in.DestinationImage,
		[]string{"write", "--input", records}, env); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	return runResult{ExitCode: 0, OutputPath: records}.marshal()
}

// stepInput is the payload of the normalization and transformation steps.
type stepInput struct {
	Image             string `json:"image"`
	OrchestratorImage string `json:"orchestrator_image"`
	ConfigRef         string `json:"config_ref"`
}

// runStep executes one post-replication step, delegated or local.
func runStep(ctx context.Context, t *airlift.Task, runner, podRunner connectorRunner, secrets airlift.Secrets, orch *orchestrator.Handle, step string) ([]byte, error) {
	var in stepInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode %s input: %w", step, err)
	}

	if orch != nil {
		if in.OrchestratorImage == "" {
			return nil, fmt.Errorf("%s task %s: orchestrator enabled but no orchestrator image", step, t.ID)
		}
		return delegate(ctx, orch, podRunner, t, in.OrchestratorImage)
	}

	if in.Image == "" {
		return nil, fmt.Errorf("%s task %s: missing image", step, t.ID)
	}
	env, err := hydrate(ctx, secrets, configuredInput{ConfigRef: in.ConfigRef})
	if err != nil {
		return nil, err
	}
	code, err := runner.run(ctx, t, in.Image, []string{step}, env)
	if err != nil {
		return nil, err
	}
	return runResult{ExitCode: code}.marshal()
}

// Normalize runs the normalization step after a replication.
type Normalize struct {
	runner    connectorRunner
	podRunner connectorRunner
	secrets   airlift.Secrets
	orch      *orchestrator.Handle
}

func (h *Normalize) Name() string { return "Normalize" }

func (h *Normalize) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	return runStep(ctx, t, h.runner, h.podRunner, h.secrets, h.orch, "normalize")
}

// Transform runs user-supplied transformation after normalization.
type Transform struct {
	runner    connectorRunner
	podRunner connectorRunner
	secrets   airlift.Secrets
	orch      *orchestrator.Handle
}

func (h *Transform) Name() string { return "Transform" }

func (h *Transform) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	return runStep(ctx, t, h.runner, h.podRunner, h.secrets, h.orch, "transform")
}

// PersistState records the replication cursor so the next attempt resumes
// instead of restarting. It writes to the orchestrator's store when
// delegation is on, the worker's own store otherwise; either way the
// document lands under the task's state key.
type PersistState struct {
	states statestore.Store
	orch   *orchestrator.Handle
}

type persistStateInput struct {
	State json.RawMessage `json:"state"`
}

func (h *PersistState) Name() string { return "PersistState" }

func (h *PersistState) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	var in persistStateInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode persist-state input: %w", err)
	}

	states := h.states
	if h.orch != nil {
		states = h.orch.States
	}
	if err := states.Put(ctx, t.StateKey(), in.State); err != nil {
		return nil, fmt.Errorf("persist state for job %s: %w", t.JobID, err)
	}
	return runResult{ExitCode: 0}.marshal()
}
