// Package lstore provides the in-memory implementation of store.IStore used by the
// parameter server.
//
// Partitions live in a concurrent map (xsync.MapOf) keyed by matrix and partition id and
// are created on first write. Every partition has its own read/write lock, so updates of
// different partitions never block each other. Rows are stored sparse, updates add to the
// stored values.
package lstore
