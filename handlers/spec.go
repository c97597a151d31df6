package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/taskqueue"
)

var _ taskqueue.Handler = (*GetSpec)(nil)

// GetSpec runs a connector's spec command and reports where the spec
// document was written.
type GetSpec struct {
	runner connectorRunner
}

type specInput struct {
	Image string `json:"image"`
}

func (h *GetSpec) Name() string { return "GetSpec" }

func (h *GetSpec) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	var in specInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode spec input: %w", err)
	}
	if in.Image == "" {
		return nil, fmt.Errorf("spec task %s: missing image", t.ID)
	}

	out := h.runner.outputPath(t, "spec.json")
	code, err := h.runner.run(ctx, t, in.Image, []string{"spec", "--output", out}, nil)
	if err != nil {
		return nil, err
	}
	return runResult{ExitCode: code, OutputPath: out}.marshal()
}
