package request

import (
	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/pkg/errors"
)

// ErrUnsupportedMethod is returned by New for known methods this node does not serve
var ErrUnsupportedMethod = errors.New("codec: unsupported transport method")

// Request is a message sent from an agent to a parameter server shard.
//
// The TransportMethod tag is not part of the request encoding, the serializer writes it in
// front of the envelope so the receiver can create the matching empty request with New.
type Request interface {
	// Method returns the transport method of the request type
	Method() common.TransportMethod
	// TimeoutEnabled reports whether the transport may time out and retry the request.
	// This is fixed per request type.
	TimeoutEnabled() bool
	// Header returns the envelope of the request
	Header() *Envelope
	// EstimatedPayloadSize is a cheap estimate of the payload size (without envelope),
	// 0 for fixed size payloads
	EstimatedPayloadSize() int
	// BufferLength returns the exact encoded size of envelope and payload
	BufferLength() int
	// Serialize writes envelope and payload, exactly BufferLength bytes
	Serialize(buf *wire.Buffer) error
	// Deserialize reads envelope and payload
	Deserialize(buf *wire.Buffer) error
}

// New returns an empty request for method, ready to deserialize
func New(method common.TransportMethod) (Request, error) {
	switch method {
	case common.MethodGetRowSplit:
		return &GetRowSplitRequest{RowIndex: -1}, nil
	case common.MethodUpdate:
		return &UpdateRequest{}, nil
	case common.MethodUpdatePSF:
		return &UpdatePSFRequest{}, nil
	case common.MethodCheckpoint:
		return &CheckpointRequest{MatrixID: -1}, nil
	}
	if method.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedMethod, "%s", method)
	}
	return nil, errors.Wrapf(common.ErrUnknownTransportMethod, "tag %d", int32(method))
}

// --------------------------------------------------------------------------
// Envelope
// --------------------------------------------------------------------------

// EnvelopeLength is the encoded size of an Envelope
const EnvelopeLength = wire.SizeInt32 + wire.SizeInt32

// Envelope holds the fields every request starts with: [int32 userRequestId][target server]
type Envelope struct {
	UserRequestID int32
	Target        partition.ServerID
}

// Header returns the envelope itself, request types get it by embedding
func (e *Envelope) Header() *Envelope {
	return e
}

func (e *Envelope) serializeEnvelope(buf *wire.Buffer) {
	buf.PutInt32(e.UserRequestID)
	e.Target.Serialize(buf)
}

func (e *Envelope) deserializeEnvelope(buf *wire.Buffer) (err error) {
	if err = buf.Require(EnvelopeLength); err != nil {
		return err
	}
	if e.UserRequestID, err = buf.ReadInt32(); err != nil {
		return err
	}
	return e.Target.Deserialize(buf)
}
