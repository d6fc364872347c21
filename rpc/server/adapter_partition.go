package server

import (
	"context"
	"math"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/ValentinKolb/dPS/rpc/split"
	"github.com/pkg/errors"
)

// NewPartitionServerAdapter creates the adapter for row updates, row reads and update functions.
// With a layout, request keys are checked against the partitions assigned to the shard.
func NewPartitionServerAdapter(layout *partition.Layout) IRPCServerAdapter {
	return &partitionServerAdapterImpl{layout: layout}
}

type partitionServerAdapterImpl struct {
	layout *partition.Layout
}

func (adapter *partitionServerAdapterImpl) Handle(ctx context.Context, req request.Request, shard *serverShard) (request.Payload, error) {
	if shard == nil || shard.Store == nil {
		return nil, errors.New("handler: store is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case *request.UpdateRequest:
		if err := adapter.checkKey(shard, r.Key); err != nil {
			return nil, err
		}
		for _, s := range r.Splits {
			if err := shard.Store.AddRow(r.Key, s.RowIndex, s.Vector()); err != nil {
				return nil, errors.Wrapf(err, "row %d", s.RowIndex)
			}
		}
		return nil, nil

	case *request.UpdatePSFRequest:
		p := r.Param
		if err := adapter.checkKey(shard, p.Key); err != nil {
			return nil, err
		}
		if p.MatrixID != p.Key.MatrixID {
			return nil, errors.Errorf("param for matrix %d with key of matrix %d", p.MatrixID, p.Key.MatrixID)
		}
		return nil, shard.Store.SetFeats(p.Key, p.Keys[p.StartIndex:p.EndIndex], p.Vectors[p.StartIndex:p.EndIndex])

	case *request.GetRowSplitRequest:
		if err := adapter.checkKey(shard, r.Key); err != nil {
			return nil, err
		}
		return adapter.getRow(shard, r)

	default:
		return nil, errors.Wrapf(request.ErrUnsupportedMethod, "partition adapter: %s", req.Method())
	}
}

// getRow reads the row and returns it as a sparse double split with global offsets
func (adapter *partitionServerAdapterImpl) getRow(shard *serverShard, r *request.GetRowSplitRequest) (request.Payload, error) {
	cols, values, err := shard.Store.GetRow(r.Key, r.RowIndex)
	if err != nil {
		return nil, err
	}

	if r.Key.StartCol+r.Key.ColSpan() > math.MaxInt32 {
		return nil, errors.Errorf("columns of %s exceed the offset range", r.Key)
	}
	offsets := make([]int32, len(cols))
	for i, col := range cols {
		offsets[i] = int32(r.Key.StartCol) + col
	}

	s, err := split.NewSparseDouble(r.RowIndex, 0, len(offsets), offsets, values)
	if err != nil {
		return nil, err
	}
	return request.NewRowResult(r.Key, s), nil
}

// checkKey verifies that the shard owns the partition of key
func (adapter *partitionServerAdapterImpl) checkKey(shard *serverShard, key partition.Key) error {
	if adapter.layout == nil {
		return nil
	}
	m, ok := adapter.layout.Matrix(key.MatrixID)
	if !ok {
		return errors.Errorf("unknown matrix %d", key.MatrixID)
	}
	for _, a := range m.Partitions {
		if a.ID != key.PartitionID {
			continue
		}
		if a.Server != shard.ID.Index {
			return errors.Errorf("partition %d of matrix %d belongs to ps-%d, not %s", key.PartitionID, key.MatrixID, a.Server, shard.ID)
		}
		if m.Key(a) != key {
			return errors.Errorf("partition key %s does not match layout %s", key, m.Key(a))
		}
		return nil
	}
	return errors.Errorf("unknown partition %d of matrix %d", key.PartitionID, key.MatrixID)
}
