// Package handlers implements the worker's operation handlers, one per
// workflow step the durable-execution engine drives.
//
// All handlers are built once at bootstrap into a [Set] and shared across
// queues; the replication-family handlers are deliberately the same
// instances on the sync and connection-management queues. Handlers close
// over the immutable runtime context and the launch strategy, so executing
// a task never consults configuration again.
package handlers
