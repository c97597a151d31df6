package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/launcher"
)

// runResult is the JSON document a connector-running handler reports back
// to the engine.
type runResult struct {
	ExitCode   int    `json:"exit_code"`
	OutputPath string `json:"output_path,omitempty"`
}

func (r runResult) marshal() ([]byte, error) {
	out, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal run result: %w", err)
	}
	return out, nil
}

// connectorRunner launches connector processes and waits for them. It owns
// the environment every connector receives.
type connectorRunner struct {
	runtime  airlift.RuntimeContext
	launcher launcher.Strategy
}

// baseEnv is the environment common to every launched connector.
func (r connectorRunner) baseEnv(t *airlift.Task) map[string]string {
	return map[string]string{
		"AIRLIFT_VERSION":    r.runtime.Version,
		"AIRLIFT_ROLE":       "connector",
		"WORKER_ENVIRONMENT": string(r.runtime.Environment),
		"WORKER_JOB_ID":      t.JobID,
		"WORKER_ATTEMPT_ID":  t.AttemptID,
		"LOG_LEVEL":          r.runtime.Logs.Level,
	}
}

// outputPath is where a connector writes its output document, inside the
// job's workspace so the worker and later steps can read it.
func (r connectorRunner) outputPath(t *airlift.Task, doc string) string {
	return path.Join(r.runtime.WorkspaceRoot, t.JobID, t.AttemptID, doc)
}

// run launches image with args and waits for it to exit. A non-zero exit
// is an error; retry policy belongs to the engine.
func (r connectorRunner) run(ctx context.Context, t *airlift.Task, image string, args []string, extraEnv map[string]string) (int, error) {
	env := r.baseEnv(t)
	for k, v := range extraEnv {
		env[k] = v
	}

	proc, err := r.launcher.Launch(ctx, launcher.ProcessSpec{
		JobID:     t.JobID,
		AttemptID: t.AttemptID,
		Image:     image,
		Args:      args,
		Env:       env,
	})
	if err != nil {
		return -1, fmt.Errorf("launch %s: %w", image, err)
	}

	code, err := proc.Wait(ctx)
	if err != nil {
		// The worker is going away; the process must not outlive it.
		_ = proc.Kill(context.WithoutCancel(ctx))
		return -1, fmt.Errorf("wait for %s: %w", image, err)
	}
	if code != 0 {
		return code, fmt.Errorf("%s exited %d", image, code)
	}
	return 0, nil
}
