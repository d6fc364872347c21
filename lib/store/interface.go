package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore holds the matrix partitions of a parameter server.
// Partitions are created on first write. All methods are safe for concurrent use,
// writes to the same partition are serialized.
type IStore interface {
	// AddRow adds the values of v to row of the partition. The indices of v are local
	// columns (global column - StartCol).
	AddRow(key partition.Key, row int32, v vector.Any) error
	// GetRow returns the stored entries of a row as local columns in ascending order.
	// A row that was never written is empty, an unknown partition is RetCNotFound.
	GetRow(key partition.Key, row int32) (cols []int32, values []float64, err error)
	// SetFeats replaces the feature vectors of nodes. Nil vectors are ignored.
	SetFeats(key partition.Key, nodes []int32, feats []*vector.Vector[float32]) error
	// GetFeats returns the feature vector of a node. The boolean reports whether it was found.
	GetFeats(key partition.Key, node int32) (*vector.Vector[float32], bool, error)
	// Snapshot returns a deep copy of all partitions of a matrix
	Snapshot(matrixID int32) (*Snapshot, error)
	// Restore replaces the partitions of the snapshot's matrix with its content
	Restore(s *Snapshot) error
	// GetInfo returns metadata about the stored partitions
	GetInfo() Info
}

// Checkpointer stores snapshots. How and where a snapshot is persisted is up to the implementation.
type Checkpointer interface {
	// Save stores the snapshot, replacing an older one of the same matrix
	Save(ctx context.Context, s *Snapshot) error
	// Load returns the latest snapshot of a matrix
	Load(ctx context.Context, matrixID int32) (*Snapshot, bool, error)
}

// --------------------------------------------------------------------------
// Data Types
// --------------------------------------------------------------------------

// PartitionSnapshot is the content of one partition
type PartitionSnapshot struct {
	Key   partition.Key
	Rows  map[int32]map[int32]float64
	Feats map[int32]*vector.Vector[float32]
}

// Snapshot is the content of all partitions of a matrix held by one store
type Snapshot struct {
	MatrixID   int32
	TakenAt    time.Time
	Partitions []PartitionSnapshot
}

// Info is metadata about a store
type Info struct {
	Partitions int    `json:"partitions"`
	Rows       int    `json:"rows"`
	Entries    int    `json:"entries"`
	Feats      int    `json:"feats"`
	Updates    uint64 `json:"updates"`
	// RowSizes are statistics over the number of entries per row
	RowSizes Stats `json:"row_sizes"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store error (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string, args ...any) *Error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCNotFound                        // 2: Partition or checkpoint does not exist.
	RetCInvalidOperation                // 3: Invalid operation, e.g. a row outside the partition.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCNotFound:
		return "NotFound"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
