// Package treestore defines the shared types, error codes, configuration and helpers of the
// nested-set tree storage engine. Trees are kept in two tables per repository, an Edit tree
// and a Live tree, and activation publishes Edit nodes into Live.
//
// The engine itself lives in sub-packages: boundary (numeric boundary types), database
// (dialects, schema, row locking), lock (advisory lock manager), tree (node info, boundary
// allocation and mutations), plus backends for id sequencing (sequencer, redis, cassandra),
// script hooks (hooks, cel), metrics, snapshot export and the REST surface (restapi).
package treestore

// Timeout model
//
// Every mutation runs in a transaction owned by the caller and is bounded by the caller's
// context. The only internal wait is row lock acquisition which retries with a fixed backoff
// until Options.RowLockDeadline (or the context deadline, whichever is earlier) and then
// returns an Error with code Timeout wrapping ErrTimeout.
