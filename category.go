package airlift

import "fmt"

// JobCategory identifies a class of unit of work. Each category gets its own
// task queue with its own concurrency ceiling and handler set.
type JobCategory string

const (
	// CategorySpec fetches a connector's specification.
	CategorySpec JobCategory = "spec"
	// CategoryCheckConnection validates connector credentials.
	CategoryCheckConnection JobCategory = "check_connection"
	// CategoryDiscoverSchema discovers the schema a connector exposes.
	CategoryDiscoverSchema JobCategory = "discover_schema"
	// CategorySync replicates data from source to destination.
	CategorySync JobCategory = "sync"
	// CategoryConnectionManagement drives the long-lived per-connection
	// scheduling loop. It registers the sync handler set in addition to its
	// own, so scheduled syncs run without a queue hop.
	CategoryConnectionManagement JobCategory = "connection_management"
)

// Categories returns all job categories in bootstrap order.
func Categories() []JobCategory {
	return []JobCategory{
		CategorySpec,
		CategoryCheckConnection,
		CategoryDiscoverSchema,
		CategorySync,
		CategoryConnectionManagement,
	}
}

// queueNames maps each category to the queue name registered with the
// durable-execution engine. These names are part of the wire contract with
// the engine and with any already-enqueued work; do not rename them.
var queueNames = map[JobCategory]string{
	CategorySpec:                 "GET_SPEC",
	CategoryCheckConnection:      "CHECK_CONNECTION",
	CategoryDiscoverSchema:       "DISCOVER_SCHEMA",
	CategorySync:                 "SYNC",
	CategoryConnectionManagement: "CONNECTION_UPDATER",
}

// QueueName returns the engine-side queue name for the category.
func (c JobCategory) QueueName() string { return queueNames[c] }

// Valid reports whether the category is one of the known categories.
func (c JobCategory) Valid() bool {
	_, ok := queueNames[c]
	return ok
}

// ConcurrencyLimits maps each job category to its concurrency ceiling.
// Supplied externally as configuration.
type ConcurrencyLimits map[JobCategory]int

// Validate checks that every category has exactly one ceiling and that all
// ceilings are >= 1.
func (l ConcurrencyLimits) Validate() error {
	for _, c := range Categories() {
		n, ok := l[c]
		if !ok {
			return fmt.Errorf("category %q has no concurrency ceiling: %w", c, ErrBadConcurrency)
		}
		if n < 1 {
			return fmt.Errorf("category %q ceiling %d: %w", c, n, ErrBadConcurrency)
		}
	}
	for c := range l {
		if !c.Valid() {
			return fmt.Errorf("unknown category %q in concurrency limits: %w", c, ErrBadConcurrency)
		}
	}
	return nil
}

// DefaultConcurrencyLimits returns the ceilings used when none are configured.
func DefaultConcurrencyLimits() ConcurrencyLimits {
	return ConcurrencyLimits{
		CategorySpec:                 5,
		CategoryCheckConnection:      5,
		CategoryDiscoverSchema:       5,
		CategorySync:                 10,
		CategoryConnectionManagement: 10,
	}
}
