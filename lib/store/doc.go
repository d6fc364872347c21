// Package store holds the matrix partitions a parameter server is responsible for.
//
// Key Components:
//
//   - IStore Interface: Row updates (added to the stored values), row reads, node
//     features, snapshots and restore. Column indices are always local to the partition.
//
//   - Checkpointer: Stores snapshots taken for checkpoint requests. The package ships an
//     in-memory implementation, persistent implementations plug in behind the interface.
//
//   - Error System: Errors carry a RetCode, so the server can tell a missing partition
//     (RetCNotFound) from an invalid request (RetCInvalidOperation).
//
// Implementations:
//
//	- Local Store (lstore): Partitions in a concurrent map, each guarded by its own lock.
//	  Available in the "github.com/ValentinKolb/dPS/lib/store/lstore" package.
package store
