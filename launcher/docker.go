package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
)

// ExecCommandFunc is the function signature for creating exec.Cmd.
// This allows injection of mock implementations for testing.
type ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

// DockerLauncher launches connector processes as local containers through
// the docker CLI.
type DockerLauncher struct {
	workspaceRoot  string
	workspaceMount string
	localMount     string
	network        string
	binary         string
	execCommand    ExecCommandFunc
	logger         *slog.Logger
}

// DockerOption configures a DockerLauncher.
type DockerOption func(*DockerLauncher)

// WithDockerLogger sets the logger.
func WithDockerLogger(l *slog.Logger) DockerOption {
	return func(d *DockerLauncher) { d.logger = l }
}

// WithDockerBinary overrides the docker binary path.
func WithDockerBinary(path string) DockerOption {
	return func(d *DockerLauncher) { d.binary = path }
}

// WithExecCommand overrides how commands are created, for testing.
func WithExecCommand(f ExecCommandFunc) DockerOption {
	return func(d *DockerLauncher) { d.execCommand = f }
}

// NewDockerLauncher creates the local-container launch strategy bound to the
// workspace mount, a secondary local mount, and a docker network.
func NewDockerLauncher(workspaceRoot, workspaceMount, localMount, network string, opts ...DockerOption) *DockerLauncher {
	d := &DockerLauncher{
		workspaceRoot:  workspaceRoot,
		workspaceMount: workspaceMount,
		localMount:     localMount,
		network:        network,
		binary:         "docker",
		execCommand:    exec.CommandContext,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	if path, err := exec.LookPath(d.binary); err == nil {
		d.binary = path
	}
	return d
}

// containerName names the launched container after the job attempt so
// operators can find it.
func containerName(spec ProcessSpec) string {
	return fmt.Sprintf("airlift-job-%s-attempt-%s", spec.JobID, spec.AttemptID)
}

// runArgs builds the docker run argument list for a spec.
func (d *DockerLauncher) runArgs(spec ProcessSpec) []string {
	args := []string{
		"run",
		"--rm",
		"--init",
		"--name", containerName(spec),
		"--log-driver", "none",
	}
	if d.network != "" {
		args = append(args, "--network", d.network)
	}
	if d.workspaceMount != "" {
		args = append(args, "-v", d.workspaceMount+":"+d.workspaceRoot)
	}
	if d.localMount != "" {
		args = append(args, "-v", d.localMount+":/local")
	}

	// Sorted for deterministic argument order.
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+spec.Env[k])
	}

	args = append(args, spec.Image)
	args = append(args, spec.Args...)
	return args
}

// Launch implements Strategy. It starts the container and returns without
// waiting for it to exit.
func (d *DockerLauncher) Launch(ctx context.Context, spec ProcessSpec) (Process, error) {
	args := d.runArgs(spec)

	d.logger.Debug("launching local container",
		slog.String("image", spec.Image),
		slog.String("container", containerName(spec)),
		slog.String("args", strings.Join(spec.Args, " ")),
	)

	cmd := d.execCommand(ctx, d.binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start container %s: %w", containerName(spec), err)
	}

	return &dockerProcess{
		cmd:         cmd,
		name:        containerName(spec),
		binary:      d.binary,
		execCommand: d.execCommand,
	}, nil
}

// dockerProcess wraps a running docker CLI invocation.
type dockerProcess struct {
	cmd         *exec.Cmd
	name        string
	binary      string
	execCommand ExecCommandFunc
}

// Wait blocks until the container exits and returns its exit code.
func (p *dockerProcess) Wait(ctx context.Context) (int, error) {
	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), nil
			}
			return -1, err
		}
		return 0, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Kill terminates the container. docker run --rm removes it afterwards.
func (p *dockerProcess) Kill(ctx context.Context) error {
	cmd := p.execCommand(ctx, p.binary, "kill", p.name)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("kill container %s: %w", p.name, err)
	}
	return nil
}
