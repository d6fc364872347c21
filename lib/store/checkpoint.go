package store

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// memoryCheckpointer keeps the latest snapshot of every matrix in memory
type memoryCheckpointer struct {
	snapshots *xsync.MapOf[int32, *Snapshot]
}

// NewMemoryCheckpointer creates a checkpointer that keeps snapshots in memory.
// Snapshots are lost when the process exits.
func NewMemoryCheckpointer() Checkpointer {
	return &memoryCheckpointer{snapshots: xsync.NewMapOf[int32, *Snapshot]()}
}

func (c *memoryCheckpointer) Save(ctx context.Context, s *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.snapshots.Store(s.MatrixID, s)
	return nil
}

func (c *memoryCheckpointer) Load(ctx context.Context, matrixID int32) (*Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s, ok := c.snapshots.Load(matrixID)
	return s, ok, nil
}
