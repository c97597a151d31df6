// Package airlift provides the bootstrap and dispatch layer of a data-pipeline
// worker process. It decides, per job category, how many units of work may run
// concurrently, how connector processes are physically launched, and whether
// long-running sync jobs execute in-process or are handed off to an isolated
// container orchestrator.
//
// The package itself holds the shared vocabulary: job categories and their
// concurrency ceilings, the task envelope handed out by the durable-execution
// engine, the immutable runtime context injected into every handler, and the
// sentinel errors shared by all subsystems. The moving parts live in
// subpackages:
//
//   - launcher: execution-strategy selection (local container vs. cluster pod)
//   - taskqueue: capacity-bounded task queues, one per job category
//   - engineclient: the HTTP task source over the durable-execution engine
//   - orchestrator: the delegation decision and its state hand-off handle
//   - statestore: the keyed document store behind the orchestrator
//   - handlers: the operations workflow steps invoke
//   - persistence: the jobs-database boundary
//   - heartbeat: the liveness endpoint launched processes poll
//   - workerapp: the bootstrapper that composes everything into a process
//
// # Quick Start
//
//	cfg := airlift.DefaultConfig()
//	app, err := workerapp.New(ctx, cfg)
//	if err != nil {
//	    // fail-fast: nothing has been started
//	}
//	err = app.Start(ctx) // blocks until shutdown
package airlift
