package serializer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/param"
	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/ValentinKolb/dPS/rpc/split"
)

var (
	testTarget = partition.ServerID{Index: 1}
	testKey    = partition.Key{MatrixID: 4, PartitionID: 0, EndRow: 2, StartCol: 0, EndCol: 64}
)

// testRequests creates one request of every supported type
func testRequests() map[string]request.Request {
	u, _ := split.NewSparseUpdate(1, []int32{1, 5, 9}, []float64{0.5, 0.0001, -3})
	s, _ := split.NewSplit(u, 0, 3)
	filtered, _ := split.NewSplit(u, 0, 3)
	feats := []*vector.Vector[float32]{vector.DenseOf([]float32{1, 2}), nil}
	p, _ := param.New(4, testKey, []int32{3, 4}, feats, 0, 2)

	return map[string]request.Request{
		"Checkpoint":        request.NewCheckpointRequest(1, testTarget, 4),
		"CheckpointUnset":   request.NewCheckpointRequest(2, testTarget, -1),
		"GetRowSplit":       request.NewGetRowSplitRequest(3, testTarget, testKey, 1),
		"Update":            request.NewUpdateRequest(4, testTarget, partition.NewSplitContext(testKey), []*split.RowUpdateSplit{s}),
		"UpdateFiltered":    request.NewUpdateRequest(5, testTarget, partition.NewSplitContext(testKey).WithFilter(0.001), []*split.RowUpdateSplit{filtered}),
		"UpdatePSF":         request.NewUpdatePSFRequest(6, testTarget, p),
		"UpdateEmptyWindow": request.NewUpdateRequest(7, testTarget, partition.NewSplitContext(testKey), nil),
	}
}

// TestRequestRoundTrip tests that requests keep method and envelope and have the announced size
func TestRequestRoundTrip(t *testing.T) {
	serializer := NewBinarySerializer()

	for name, req := range testRequests() {
		t.Run(name, func(t *testing.T) {
			data, err := serializer.SerializeRequest(req)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			if len(data) != 4+req.BufferLength() {
				t.Errorf("Frame has %d bytes, expected %d", len(data), 4+req.BufferLength())
			}
			if tag := int32(binary.BigEndian.Uint32(data)); tag != int32(req.Method()) {
				t.Errorf("Method tag is %d, expected %d", tag, req.Method())
			}

			result, err := serializer.DeserializeRequest(data)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if result.Method() != req.Method() {
				t.Errorf("Method mismatch: expected %s, got %s", req.Method(), result.Method())
			}
			if *result.Header() != *req.Header() {
				t.Errorf("Envelope mismatch: expected %+v, got %+v", *req.Header(), *result.Header())
			}
		})
	}
}

// TestFilteredUpdate tests that filtered entries are absent after the round trip
func TestFilteredUpdate(t *testing.T) {
	serializer := NewBinarySerializer()
	req := testRequests()["UpdateFiltered"]

	data, err := serializer.SerializeRequest(req)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	result, err := serializer.DeserializeRequest(data)
	if err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	v, ok := split.DecodedAs[float64](result.(*request.UpdateRequest).Splits[0])
	if !ok {
		t.Fatalf("Decoded split has wrong type %T", result.(*request.UpdateRequest).Splits[0].Vector())
	}
	if got := v.Indices(); len(got) != 2 || got[0] != 1 || got[1] != 9 {
		t.Errorf("Expected offsets [1 9], got %v", got)
	}
}

// TestResponseRoundTrip tests responses with and without payload
func TestResponseRoundTrip(t *testing.T) {
	serializer := NewBinarySerializer()
	reqs := testRequests()

	u, _ := split.NewSparseUpdate(1, []int32{7}, []float64{2.5})
	row, _ := split.NewSplit(u, 0, 1)

	testCases := []struct {
		name string
		resp *request.Response
	}{
		{"Ok", request.NewResponse(reqs["Checkpoint"], nil, nil)},
		{"Error", request.NewResponse(reqs["Update"], nil, errors.New("partition 0 is not served"))},
		{"Row", request.NewResponse(reqs["GetRowSplit"], request.NewRowResult(testKey, row), nil)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.SerializeResponse(tc.resp)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			result, err := serializer.DeserializeResponse(data)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if result.Method != tc.resp.Method || result.UserRequestID != tc.resp.UserRequestID ||
				result.Status != tc.resp.Status || result.Err != tc.resp.Err {
				t.Errorf("Response mismatch:\nOriginal: %+v\nResult: %+v", tc.resp, result)
			}
			if (tc.resp.Payload == nil) != (result.Payload == nil) {
				t.Errorf("Payload presence mismatch: expected %v, got %v", tc.resp.Payload, result.Payload)
			}
		})
	}
}

// lyingRequest announces a wrong buffer length
type lyingRequest struct {
	request.CheckpointRequest
	delta int
}

func (r *lyingRequest) BufferLength() int {
	return r.CheckpointRequest.BufferLength() + r.delta
}

// TestLengthMismatch tests that wrong length announcements are rejected
func TestLengthMismatch(t *testing.T) {
	serializer := NewBinarySerializer()

	for _, delta := range []int{-1, 1, 8} {
		req := &lyingRequest{CheckpointRequest: *request.NewCheckpointRequest(1, testTarget, 1), delta: delta}
		_, err := serializer.SerializeRequest(req)
		if !errors.Is(err, common.ErrLengthMismatch) {
			t.Errorf("delta %d: expected ErrLengthMismatch, got %v", delta, err)
		}
	}

	data, err := serializer.SerializeRequest(request.NewCheckpointRequest(1, testTarget, 1))
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if _, err := serializer.DeserializeRequest(append(data, 0)); !errors.Is(err, common.ErrLengthMismatch) {
		t.Errorf("Expected ErrLengthMismatch for trailing bytes, got %v", err)
	}
}

// TestInvalidFrames tests frames that must not decode
func TestInvalidFrames(t *testing.T) {
	serializer := NewBinarySerializer()

	frame := func(tag int32, rest ...byte) []byte {
		buf := wire.NewBuffer(4)
		buf.PutInt32(tag)
		return append(buf.Bytes(), rest...)
	}
	valid, _ := serializer.SerializeRequest(testRequests()["GetRowSplit"])

	testCases := []struct {
		name   string
		data   []byte
		target error
	}{
		{"Empty", nil, common.ErrTruncatedMessage},
		{"Short tag", []byte{0, 0}, common.ErrTruncatedMessage},
		{"Unknown tag", frame(1000), common.ErrUnknownTransportMethod},
		{"Zero tag", frame(0), common.ErrUnknownTransportMethod},
		{"Unsupported", frame(int32(common.MethodGetClocks)), request.ErrUnsupportedMethod},
		{"Truncated body", valid[:len(valid)-1], common.ErrTruncatedMessage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := serializer.DeserializeRequest(tc.data)
			if !errors.Is(err, tc.target) {
				t.Errorf("Expected %v, got %v", tc.target, err)
			}
		})
	}

	if _, err := serializer.DeserializeResponse(frame(1000)); !errors.Is(err, common.ErrUnknownTransportMethod) {
		t.Errorf("Expected ErrUnknownTransportMethod for response, got %v", err)
	}
}

// TestDeterministic tests that encoding the same request twice gives the same bytes
func TestDeterministic(t *testing.T) {
	serializer := NewBinarySerializer()
	for name, req := range testRequests() {
		a, errA := serializer.SerializeRequest(req)
		b, errB := serializer.SerializeRequest(req)
		if errA != nil || errB != nil || !bytes.Equal(a, b) {
			t.Errorf("%s: encoding is not deterministic", name)
		}
	}
}
