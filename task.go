package airlift

import (
	"encoding/json"
	"time"
)

// Task is one unit of work handed out by the durable-execution engine.
// The engine owns the task's lifecycle (retries, compensation, cancellation);
// this layer only executes it and reports the outcome back.
type Task struct {
	// ID is the engine-assigned task identifier, opaque to this layer.
	ID string `json:"id"`

	// Queue is the engine-side queue name the task was dequeued from.
	Queue string `json:"queue"`

	// Operation names the handler the workflow step invokes.
	Operation string `json:"operation"`

	// Payload is the serialized step input, passed through verbatim.
	Payload json.RawMessage `json:"payload"`

	// JobID and AttemptID identify the pipeline job this task belongs to.
	// Together they key any orchestrator state persisted for the attempt.
	JobID     string `json:"job_id"`
	AttemptID string `json:"attempt_id"`

	// Attempt is the engine's retry counter for this task, starting at 1.
	Attempt int `json:"attempt"`

	// ReceivedAt is when this worker dequeued the task.
	ReceivedAt time.Time `json:"received_at"`
}

// StateKey returns the document-store key for state belonging to this task's
// job attempt.
func (t *Task) StateKey() string {
	return t.JobID + "/" + t.AttemptID
}
