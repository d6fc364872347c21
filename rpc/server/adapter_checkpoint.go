package server

import (
	"context"
	"time"

	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/pkg/errors"
)

// NewCheckpointServerAdapter creates the adapter for checkpoint requests.
// A checkpoint takes a snapshot of the matrix and hands it to the checkpointer of the shard.
func NewCheckpointServerAdapter() IRPCServerAdapter {
	return &checkpointServerAdapterImpl{}
}

type checkpointServerAdapterImpl struct{}

func (adapter *checkpointServerAdapterImpl) Handle(ctx context.Context, req request.Request, shard *serverShard) (request.Payload, error) {
	r, ok := req.(*request.CheckpointRequest)
	if !ok {
		return nil, errors.Wrapf(request.ErrUnsupportedMethod, "checkpoint adapter: %s", req.Method())
	}
	if shard.Checkpointer == nil {
		return nil, errors.Errorf("%s has no checkpointer", shard.ID)
	}
	if r.MatrixID < 0 {
		return nil, errors.Errorf("invalid matrix id %d", r.MatrixID)
	}

	start := time.Now()
	snap, err := shard.Store.Snapshot(r.MatrixID)
	if err != nil {
		return nil, err
	}
	if err := shard.Checkpointer.Save(ctx, snap); err != nil {
		return nil, errors.Wrapf(err, "save checkpoint of matrix %d", r.MatrixID)
	}

	Logger.Infof("Checkpoint of matrix %d on %s with %d partitions took %s",
		r.MatrixID, shard.ID, len(snap.Partitions), time.Since(start))
	return nil, nil
}
