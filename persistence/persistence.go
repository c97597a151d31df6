// Package persistence is the worker's read/write boundary to the jobs
// database. Handlers that touch configuration or job status go through
// [JobStore]; everything else in the worker stays database-free.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrConnectionNotFound is returned when a connection id is unknown.
var ErrConnectionNotFound = errors.New("persistence: connection not found")

// JobStatus is a terminal or running state reported for a job.
type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Connection is the stored configuration of one source/destination pair.
type Connection struct {
	ID               string
	SourceImage      string
	DestinationImage string
	Config           json.RawMessage
	Deleted          bool
	UpdatedAt        time.Time
}

// JobStore reads and writes the slice of the jobs database the worker
// needs. Implementations are safe for concurrent use.
type JobStore interface {
	// GetConnection loads a connection's configuration. Returns
	// ErrConnectionNotFound for unknown or hard-deleted ids.
	GetConnection(ctx context.Context, connectionID string) (*Connection, error)

	// MarkConnectionDeleted tombstones a connection so no new jobs are
	// scheduled for it.
	MarkConnectionDeleted(ctx context.Context, connectionID string) error

	// SetJobStatus records a job's status transition.
	SetJobStatus(ctx context.Context, jobID string, status JobStatus) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close()
}

// validateStatus guards writes shared by all backends.
func validateStatus(status JobStatus) error {
	if !status.Valid() {
		return fmt.Errorf("persistence: unknown job status %q", status)
	}
	return nil
}
