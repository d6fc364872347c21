package request

import (
	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/param"
	"github.com/ValentinKolb/dPS/rpc/split"
	"github.com/pkg/errors"
)

// splitHeaderLength is the [int32 row][int32 kind] prefix of every split in an update
const splitHeaderLength = 2 * wire.SizeInt32

// --------------------------------------------------------------------------
// Update Request
// --------------------------------------------------------------------------

// UpdateRequest adds row update splits to one partition.
//
// Payload: [key][int32 n]{[int32 row][int32 kind][split]}*n
//
// The filter settings of the context are used on the sending side only, the receiver
// decodes with an unfiltered context for the key.
type UpdateRequest struct {
	Envelope
	Key    partition.Key
	Splits []*split.RowUpdateSplit
}

// NewUpdateRequest creates an update request for ctx.Key and attaches ctx to all splits
func NewUpdateRequest(userRequestID int32, target partition.ServerID, ctx *partition.SplitContext, splits []*split.RowUpdateSplit) *UpdateRequest {
	for _, s := range splits {
		s.SetContext(ctx)
	}
	return &UpdateRequest{
		Envelope: Envelope{UserRequestID: userRequestID, Target: target},
		Key:      ctx.Key,
		Splits:   splits,
	}
}

func (r *UpdateRequest) Method() common.TransportMethod {
	return common.MethodUpdate
}

func (r *UpdateRequest) TimeoutEnabled() bool {
	return true
}

// EstimatedPayloadSize assumes no entry is filtered
func (r *UpdateRequest) EstimatedPayloadSize() int {
	n := partition.KeyLength + wire.SizeInt32
	for _, s := range r.Splits {
		n += splitHeaderLength + wire.SizeInt32 + s.Len()*s.Kind.EntryLength()
	}
	return n
}

func (r *UpdateRequest) BufferLength() int {
	n := EnvelopeLength + partition.KeyLength + wire.SizeInt32
	for _, s := range r.Splits {
		n += splitHeaderLength + s.BufferLength()
	}
	return n
}

func (r *UpdateRequest) Serialize(buf *wire.Buffer) error {
	r.serializeEnvelope(buf)
	r.Key.Serialize(buf)
	buf.PutInt32(int32(len(r.Splits)))
	for _, s := range r.Splits {
		buf.PutInt32(s.RowIndex)
		buf.PutInt32(int32(s.Kind))
		if err := s.Serialize(buf); err != nil {
			return errors.Wrapf(err, "row %d", s.RowIndex)
		}
	}
	return buf.Err()
}

func (r *UpdateRequest) Deserialize(buf *wire.Buffer) error {
	if err := r.deserializeEnvelope(buf); err != nil {
		return err
	}
	if err := r.Key.Deserialize(buf); err != nil {
		return err
	}
	// smallest split: header and an empty count
	n, err := buf.ReadCount(splitHeaderLength + wire.SizeInt32)
	if err != nil {
		return err
	}

	ctx := partition.NewSplitContext(r.Key)
	r.Splits = make([]*split.RowUpdateSplit, n)
	for i := range r.Splits {
		row, err := buf.ReadInt32()
		if err != nil {
			return err
		}
		kind, err := buf.ReadInt32()
		if err != nil {
			return err
		}
		s, err := split.NewEmpty(row, split.Kind(kind))
		if err != nil {
			return err
		}
		s.SetContext(ctx)
		if err := s.Deserialize(buf); err != nil {
			return errors.Wrapf(err, "row %d", row)
		}
		r.Splits[i] = s
	}
	return nil
}

// --------------------------------------------------------------------------
// Update PSF Request
// --------------------------------------------------------------------------

// UpdatePSFRequest runs a partition update function with a batch parameter,
// e.g. initializing node features.
type UpdatePSFRequest struct {
	Envelope
	Param *param.PartitionedBatchParam
}

// NewUpdatePSFRequest creates an update function request for p
func NewUpdatePSFRequest(userRequestID int32, target partition.ServerID, p *param.PartitionedBatchParam) *UpdatePSFRequest {
	return &UpdatePSFRequest{
		Envelope: Envelope{UserRequestID: userRequestID, Target: target},
		Param:    p,
	}
}

func (r *UpdatePSFRequest) Method() common.TransportMethod {
	return common.MethodUpdatePSF
}

func (r *UpdatePSFRequest) TimeoutEnabled() bool {
	return true
}

func (r *UpdatePSFRequest) EstimatedPayloadSize() int {
	return r.Param.BufferLength()
}

func (r *UpdatePSFRequest) BufferLength() int {
	return EnvelopeLength + r.Param.BufferLength()
}

func (r *UpdatePSFRequest) Serialize(buf *wire.Buffer) error {
	r.serializeEnvelope(buf)
	return r.Param.Serialize(buf)
}

func (r *UpdatePSFRequest) Deserialize(buf *wire.Buffer) error {
	if err := r.deserializeEnvelope(buf); err != nil {
		return err
	}
	r.Param = param.NewEmpty()
	return r.Param.Deserialize(buf)
}

// --------------------------------------------------------------------------
// Get Row Split Request
// --------------------------------------------------------------------------

// GetRowSplitRequest reads the part of a row a partition holds.
// Payload: [key][int32 row]
type GetRowSplitRequest struct {
	Envelope
	Key      partition.Key
	RowIndex int32
}

// NewGetRowSplitRequest creates a read request for row of the partition key
func NewGetRowSplitRequest(userRequestID int32, target partition.ServerID, key partition.Key, row int32) *GetRowSplitRequest {
	return &GetRowSplitRequest{
		Envelope: Envelope{UserRequestID: userRequestID, Target: target},
		Key:      key,
		RowIndex: row,
	}
}

func (r *GetRowSplitRequest) Method() common.TransportMethod {
	return common.MethodGetRowSplit
}

func (r *GetRowSplitRequest) TimeoutEnabled() bool {
	return true
}

func (r *GetRowSplitRequest) EstimatedPayloadSize() int {
	return 0
}

func (r *GetRowSplitRequest) BufferLength() int {
	return EnvelopeLength + partition.KeyLength + wire.SizeInt32
}

func (r *GetRowSplitRequest) Serialize(buf *wire.Buffer) error {
	r.serializeEnvelope(buf)
	r.Key.Serialize(buf)
	buf.PutInt32(r.RowIndex)
	return buf.Err()
}

func (r *GetRowSplitRequest) Deserialize(buf *wire.Buffer) (err error) {
	if err = r.deserializeEnvelope(buf); err != nil {
		return err
	}
	if err = r.Key.Deserialize(buf); err != nil {
		return err
	}
	r.RowIndex, err = buf.ReadInt32()
	return err
}
