// Package taskqueue runs the per-category polling loops that pull tasks
// from the durable-execution engine and dispatch them to registered
// operation handlers.
//
// A [Factory] binds a task [Source] and shared middleware once; it then
// builds one [TaskQueue] per job category. Each queue spawns exactly its
// concurrency ceiling of polling goroutines, so the ceiling is structural:
// excess work waits at the source rather than in process.
package taskqueue
