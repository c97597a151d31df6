package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/persistence"
	"github.com/xraph/airlift/taskqueue"
)

var (
	_ taskqueue.Handler = (*ConfigFetch)(nil)
	_ taskqueue.Handler = (*ConnectionDeletion)(nil)
	_ taskqueue.Handler = (*JobStatus)(nil)
)

// connectionInput identifies a connection in the jobs database.
type connectionInput struct {
	ConnectionID string `json:"connection_id"`
}

// ConfigFetch loads a connection's configuration for the scheduling loop.
type ConfigFetch struct {
	jobs persistence.JobStore
}

// configFetchResult is what the scheduling workflow sees.
type configFetchResult struct {
	ConnectionID     string          `json:"connection_id"`
	SourceImage      string          `json:"source_image"`
	DestinationImage string          `json:"destination_image"`
	Config           json.RawMessage `json:"config"`
	Deleted          bool            `json:"deleted"`
}

func (h *ConfigFetch) Name() string { return "ConfigFetch" }

func (h *ConfigFetch) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	var in connectionInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode config-fetch input: %w", err)
	}
	if in.ConnectionID == "" {
		return nil, fmt.Errorf("config-fetch task %s: missing connection id", t.ID)
	}

	c, err := h.jobs.GetConnection(ctx, in.ConnectionID)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(configFetchResult{
		ConnectionID:     c.ID,
		SourceImage:      c.SourceImage,
		DestinationImage: c.DestinationImage,
		Config:           c.Config,
		Deleted:          c.Deleted,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal config-fetch result: %w", err)
	}
	return out, nil
}

// ConnectionDeletion tombstones a connection so the scheduling loop winds
// it down.
type ConnectionDeletion struct {
	jobs persistence.JobStore
}

func (h *ConnectionDeletion) Name() string { return "ConnectionDeletion" }

func (h *ConnectionDeletion) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	var in connectionInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode connection-deletion input: %w", err)
	}
	if in.ConnectionID == "" {
		return nil, fmt.Errorf("connection-deletion task %s: missing connection id", t.ID)
	}
	if err := h.jobs.MarkConnectionDeleted(ctx, in.ConnectionID); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"connection_id": in.ConnectionID, "status": "deleted"})
}

// JobStatus records a job's status transition in the jobs database.
type JobStatus struct {
	jobs persistence.JobStore
}

type jobStatusInput struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (h *JobStatus) Name() string { return "JobStatus" }

func (h *JobStatus) Execute(ctx context.Context, t *airlift.Task) ([]byte, error) {
	var in jobStatusInput
	if err := json.Unmarshal(t.Payload, &in); err != nil {
		return nil, fmt.Errorf("decode job-status input: %w", err)
	}
	jobID := in.JobID
	if jobID == "" {
		jobID = t.JobID
	}
	if err := h.jobs.SetJobStatus(ctx, jobID, persistence.JobStatus(in.Status)); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"job_id": jobID, "status": in.Status})
}
