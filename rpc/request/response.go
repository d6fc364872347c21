package request

import (
	"fmt"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/split"
	"github.com/pkg/errors"
)

// Status is the result code of a response
type Status uint8

const (
	StatusOK Status = iota
	StatusError
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusNotFound:
		return "notFound"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Payload is the method specific part of a successful response
type Payload interface {
	BufferLength() int
	Serialize(buf *wire.Buffer) error
	Deserialize(buf *wire.Buffer) error
}

// newPayload returns an empty payload for responses of method, nil if the method has none
func newPayload(method common.TransportMethod) Payload {
	switch method {
	case common.MethodGetRowSplit:
		return &RowResult{}
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// Response answers a request. Like requests, the method tag is written by the serializer.
//
// Encoding: [int32 userRequestId][uint8 status][int32 errLen][err][payload]
// The payload is only present for StatusOK and methods that have one.
type Response struct {
	Method        common.TransportMethod
	UserRequestID int32
	Status        Status
	Err           string
	Payload       Payload
}

// NewResponse creates the response for req. A non nil err turns it into an error response.
func NewResponse(req Request, payload Payload, err error) *Response {
	resp := &Response{
		Method:        req.Method(),
		UserRequestID: req.Header().UserRequestID,
		Status:        StatusOK,
		Payload:       payload,
	}
	if err != nil {
		resp.Status = StatusError
		resp.Err = err.Error()
		resp.Payload = nil
	}
	return resp
}

// NewEmptyResponse creates a response for method, ready to deserialize
func NewEmptyResponse(method common.TransportMethod) *Response {
	return &Response{Method: method}
}

// Error returns the remote error, nil for StatusOK
func (r *Response) Error() error {
	if r.Status == StatusOK {
		return nil
	}
	return errors.Errorf("remote %s: %s", r.Status, r.Err)
}

func (r *Response) hasPayload() bool {
	return r.Status == StatusOK && r.Payload != nil
}

func (r *Response) BufferLength() int {
	n := wire.SizeInt32 + wire.SizeUint8 + wire.SizeInt32 + len(r.Err)
	if r.hasPayload() {
		n += r.Payload.BufferLength()
	}
	return n
}

func (r *Response) Serialize(buf *wire.Buffer) error {
	buf.PutInt32(r.UserRequestID)
	buf.PutUint8(uint8(r.Status))
	buf.PutInt32(int32(len(r.Err)))
	buf.PutBytes([]byte(r.Err))
	if r.hasPayload() {
		return r.Payload.Serialize(buf)
	}
	return buf.Err()
}

func (r *Response) Deserialize(buf *wire.Buffer) (err error) {
	if r.UserRequestID, err = buf.ReadInt32(); err != nil {
		return err
	}
	status, err := buf.ReadUint8()
	if err != nil {
		return err
	}
	r.Status = Status(status)

	n, err := buf.ReadCount(1)
	if err != nil {
		return err
	}
	msg, err := buf.ReadBytes(n)
	if err != nil {
		return err
	}
	r.Err = string(msg)

	r.Payload = nil
	if r.Status == StatusOK {
		if p := newPayload(r.Method); p != nil {
			if err := p.Deserialize(buf); err != nil {
				return err
			}
			r.Payload = p
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Row Result
// --------------------------------------------------------------------------

// RowResult is the payload of a GetRowSplit response: the part of a row one partition holds.
// Offsets are local to the partition on the wire.
//
// Encoding: [key][int32 row][int32 kind][split]
type RowResult struct {
	Key partition.Key
	Row *split.RowUpdateSplit
}

// NewRowResult wraps a split of a row held by key. The split's offsets must be global columns.
func NewRowResult(key partition.Key, row *split.RowUpdateSplit) *RowResult {
	row.SetContext(partition.NewSplitContext(key))
	return &RowResult{Key: key, Row: row}
}

func (p *RowResult) BufferLength() int {
	return partition.KeyLength + splitHeaderLength + p.Row.BufferLength()
}

func (p *RowResult) Serialize(buf *wire.Buffer) error {
	p.Key.Serialize(buf)
	buf.PutInt32(p.Row.RowIndex)
	buf.PutInt32(int32(p.Row.Kind))
	return p.Row.Serialize(buf)
}

func (p *RowResult) Deserialize(buf *wire.Buffer) error {
	if err := p.Key.Deserialize(buf); err != nil {
		return err
	}
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
	s.SetContext(partition.NewSplitContext(p.Key))
	if err := s.Deserialize(buf); err != nil {
		return err
	}
	p.Row = s
	return nil
}
