package request

import (
	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/ValentinKolb/dPS/rpc/common"
)

// CheckpointRequest asks a shard to checkpoint all partitions of a matrix it holds.
// Checkpoints may take arbitrarily long, so the request runs without timeout.
type CheckpointRequest struct {
	Envelope
	// MatrixID is -1 if unset
	MatrixID int32
}

// NewCheckpointRequest creates a checkpoint request for matrixID
func NewCheckpointRequest(userRequestID int32, target partition.ServerID, matrixID int32) *CheckpointRequest {
	return &CheckpointRequest{
		Envelope: Envelope{UserRequestID: userRequestID, Target: target},
		MatrixID: matrixID,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see request.Request)
// --------------------------------------------------------------------------

func (r *CheckpointRequest) Method() common.TransportMethod {
	return common.MethodCheckpoint
}

func (r *CheckpointRequest) TimeoutEnabled() bool {
	return false
}

func (r *CheckpointRequest) EstimatedPayloadSize() int {
	return 0
}

func (r *CheckpointRequest) BufferLength() int {
	return EnvelopeLength + wire.SizeInt32
}

func (r *CheckpointRequest) Serialize(buf *wire.Buffer) error {
	r.serializeEnvelope(buf)
	buf.PutInt32(r.MatrixID)
	return buf.Err()
}

func (r *CheckpointRequest) Deserialize(buf *wire.Buffer) (err error) {
	if err = r.deserializeEnvelope(buf); err != nil {
		return err
	}
	r.MatrixID, err = buf.ReadInt32()
	return err
}
