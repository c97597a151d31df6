// Package statestore persists orchestrator state documents under a fixed
// key prefix.
//
// A [Store] is a small document store: opaque byte values addressed by
// string keys. Four durable backends exist (filesystem, Redis, SQLite,
// MongoDB) plus an in-memory one for tests; [New] selects one from
// configuration at bootstrap.
//
// Keys are namespaced by the prefix given to New. Two stores opened over
// the same backend with different prefixes never see each other's
// documents.
package statestore
