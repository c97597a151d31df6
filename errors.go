package airlift

import "errors"

var (
	// Configuration errors. All are fatal at startup, before any queue starts.
	ErrHostUnresolved   = errors.New("airlift: local host address could not be resolved")
	ErrMissingNamespace = errors.New("airlift: cluster namespace is required")
	ErrMissingWorkspace = errors.New("airlift: workspace root is required")
	ErrUnknownBackend   = errors.New("airlift: unknown state storage backend")
	ErrBadConcurrency   = errors.New("airlift: concurrency ceiling must be >= 1")

	// Programming errors. Surfaced immediately, never silently ignored.
	ErrQueueStarted    = errors.New("airlift: task queue already started")
	ErrQueueNotStarted = errors.New("airlift: task queue not started")
	ErrQueueStopped    = errors.New("airlift: task queue already stopped")
	ErrNoHandlers      = errors.New("airlift: task queue has no registered handlers")
	ErrNoSource        = errors.New("airlift: no task source configured")

	// Engine boundary errors.
	ErrUnknownOperation = errors.New("airlift: no handler registered for operation")
)
