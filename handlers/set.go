package handlers

import (
	"fmt"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/launcher"
	"github.com/xraph/airlift/orchestrator"
	"github.com/xraph/airlift/persistence"
	"github.com/xraph/airlift/statestore"
	"github.com/xraph/airlift/taskqueue"
)

// Set holds one instance of every operation handler. Built once at
// bootstrap; the sync-family handlers are shared between the sync and
// connection-management queues on purpose, so both paths execute
// replication steps identically.
type Set struct {
	Spec     *GetSpec
	Check    *CheckConnection
	Discover *DiscoverSchema

	Replicate    *Replicate
	Normalize    *Normalize
	Transform    *Transform
	PersistState *PersistState

	ConfigFetch        *ConfigFetch
	ConnectionDeletion *ConnectionDeletion
	JobStatus          *JobStatus
}

// NewSet constructs all handlers. Any missing dependency is a construction
// error and aborts bootstrap before anything starts.
func NewSet(
	rt airlift.RuntimeContext,
	strategy launcher.Strategy,
	states statestore.Store,
	jobs persistence.JobStore,
	orch *orchestrator.Handle,
) (*Set, error) {
	if strategy == nil {
		return nil, fmt.Errorf("handlers: nil launch strategy")
	}
	if states == nil {
		return nil, fmt.Errorf("handlers: nil state store")
	}
	if jobs == nil {
		return nil, fmt.Errorf("handlers: nil job store")
	}
	if rt.Secrets == nil {
		return nil, fmt.Errorf("handlers: runtime context has no secrets accessor")
	}

	runner := connectorRunner{runtime: rt, launcher: strategy}

	// Delegated work is scheduled through the handle's cluster client, not
	// the worker's own launch strategy.
	var podRunner connectorRunner
	if orch != nil {
		if orch.Pods == nil {
			return nil, fmt.Errorf("handlers: orchestrator handle has no pod launcher")
		}
		podRunner = connectorRunner{runtime: rt, launcher: orch.Pods}
	}

	return &Set{
		Spec:     &GetSpec{runner: runner},
		Check:    &CheckConnection{runner: runner, secrets: rt.Secrets},
		Discover: &DiscoverSchema{runner: runner, secrets: rt.Secrets},

		Replicate:    &Replicate{runner: runner, podRunner: podRunner, secrets: rt.Secrets, orch: orch},
		Normalize:    &Normalize{runner: runner, podRunner: podRunner, secrets: rt.Secrets, orch: orch},
		Transform:    &Transform{runner: runner, podRunner: podRunner, secrets: rt.Secrets, orch: orch},
		PersistState: &PersistState{states: states, orch: orch},

		ConfigFetch:        &ConfigFetch{jobs: jobs},
		ConnectionDeletion: &ConnectionDeletion{jobs: jobs},
		JobStatus:          &JobStatus{jobs: jobs},
	}, nil
}

// syncFamily is the handler group shared by the sync and
// connection-management queues.
func (s *Set) syncFamily() []taskqueue.Handler {
	return []taskqueue.Handler{s.Replicate, s.Normalize, s.Transform, s.PersistState}
}

// ForCategory returns the handlers registered on a category's queue.
func (s *Set) ForCategory(c airlift.JobCategory) []taskqueue.Handler {
	switch c {
	case airlift.CategorySpec:
		return []taskqueue.Handler{s.Spec}
	case airlift.CategoryCheckConnection:
		return []taskqueue.Handler{s.Check}
	case airlift.CategoryDiscoverSchema:
		return []taskqueue.Handler{s.Discover}
	case airlift.CategorySync:
		return s.syncFamily()
	case airlift.CategoryConnectionManagement:
		return append(s.syncFamily(),
			s.ConfigFetch, s.ConnectionDeletion, s.JobStatus)
	default:
		return nil
	}
}

// Shape returns the workflow shape the engine drives on a category's
// queue.
func Shape(c airlift.JobCategory) taskqueue.WorkflowShape {
	switch c {
	case airlift.CategorySpec:
		return taskqueue.WorkflowShape{Name: "GetSpec", Operations: []string{"GetSpec"}}
	case airlift.CategoryCheckConnection:
		return taskqueue.WorkflowShape{Name: "CheckConnection", Operations: []string{"CheckConnection"}}
	case airlift.CategoryDiscoverSchema:
		return taskqueue.WorkflowShape{Name: "DiscoverSchema", Operations: []string{"DiscoverSchema"}}
	case airlift.CategorySync:
		return taskqueue.WorkflowShape{
			Name:       "Sync",
			Operations: []string{"Replicate", "Normalize", "Transform", "PersistState"},
		}
	case airlift.CategoryConnectionManagement:
		return taskqueue.WorkflowShape{
			Name: "ConnectionManager",
			Operations: []string{
				"ConfigFetch", "JobStatus",
				"Replicate", "Normalize", "Transform", "PersistState",
				"ConnectionDeletion",
			},
		}
	default:
		return taskqueue.WorkflowShape{}
	}
}
