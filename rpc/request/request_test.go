package request

import (
	"errors"
	"math"
	"testing"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/param"
	"github.com/ValentinKolb/dPS/rpc/split"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTarget = partition.ServerID{Index: 3}
	testKey    = partition.Key{MatrixID: 1, PartitionID: 2, EndRow: 8, StartCol: 100, EndCol: 200}
)

// roundTrip encodes req like the serializer does (without the method tag) and decodes it
// into the empty request New returns for its method
func roundTrip(t *testing.T, req Request) Request {
	t.Helper()
	buf := wire.NewBuffer(req.BufferLength())
	require.NoError(t, req.Serialize(buf))
	require.Equal(t, req.BufferLength(), buf.Len())

	out, err := New(req.Method())
	require.NoError(t, err)
	r := wire.Wrap(buf.Bytes())
	require.NoError(t, out.Deserialize(r))
	require.Equal(t, 0, r.Remaining())
	assert.Equal(t, *req.Header(), *out.Header())
	return out
}

func TestCheckpointRequest(t *testing.T) {
	for _, matrixID := range []int32{-1, 0, 7, math.MaxInt32} {
		req := NewCheckpointRequest(42, testTarget, matrixID)

		assert.False(t, req.TimeoutEnabled())
		assert.Equal(t, 0, req.EstimatedPayloadSize())
		assert.Equal(t, EnvelopeLength+4, req.BufferLength())
		assert.Equal(t, common.MethodCheckpoint, req.Method())

		out := roundTrip(t, req).(*CheckpointRequest)
		assert.Equal(t, matrixID, out.MatrixID)
	}

	empty, err := New(common.MethodCheckpoint)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), empty.(*CheckpointRequest).MatrixID)
}

func TestNew(t *testing.T) {
	testCases := []struct {
		method  common.TransportMethod
		timeout bool
		err     error
	}{
		{common.MethodGetRowSplit, true, nil},
		{common.MethodUpdate, true, nil},
		{common.MethodUpdatePSF, true, nil},
		{common.MethodCheckpoint, false, nil},
		{common.MethodGetClocks, false, ErrUnsupportedMethod},
		{common.MethodUnknown, false, common.ErrUnknownTransportMethod},
		{common.TransportMethod(99), false, common.ErrUnknownTransportMethod},
	}

	for _, tc := range testCases {
		t.Run(tc.method.String(), func(t *testing.T) {
			req, err := New(tc.method)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.method, req.Method())
			assert.Equal(t, tc.timeout, req.TimeoutEnabled())
		})
	}
}

func TestUpdateRequest(t *testing.T) {
	u, err := split.NewSparseUpdate(4, []int32{101, 150, 199}, []float64{0.001, -2, 3})
	require.NoError(t, err)
	s1, err := split.NewSplit(u, 0, 3)
	require.NoError(t, err)
	s2, err := split.NewSplit(split.NewDenseUpdate(5, []float32{1, 2}), 0, 2)
	require.NoError(t, err)

	ctx := partition.NewSplitContext(testKey).WithFilter(0.01)
	req := NewUpdateRequest(9, testTarget, ctx, []*split.RowUpdateSplit{s1, s2})
	assert.Same(t, ctx, s1.Context())
	// the estimate ignores the filter
	assert.Equal(t, req.BufferLength()-EnvelopeLength+12, req.EstimatedPayloadSize())

	out := roundTrip(t, req).(*UpdateRequest)
	assert.Equal(t, testKey, out.Key)
	require.Len(t, out.Splits, 2)

	sparse, ok := split.DecodedAs[float64](out.Splits[0])
	require.True(t, ok)
	assert.Equal(t, int32(4), out.Splits[0].RowIndex)
	assert.Equal(t, []int32{50, 99}, sparse.Indices())
	assert.Equal(t, []float64{-2, 3}, sparse.Values())

	dense, ok := split.DecodedAs[float32](out.Splits[1])
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, dense.Values())
}

func TestUpdateRequestUnknownKind(t *testing.T) {
	buf := wire.NewBuffer(64)
	(&Envelope{UserRequestID: 1, Target: testTarget}).serializeEnvelope(buf)
	testKey.Serialize(buf)
	buf.PutInt32(1)
	buf.PutInt32(0)
	buf.PutInt32(77)
	buf.PutInt32(0)

	err := (&UpdateRequest{}).Deserialize(wire.Wrap(buf.Bytes()))
	assert.True(t, errors.Is(err, split.ErrUnknownKind))
}

func TestUpdatePSFRequest(t *testing.T) {
	keys := []int32{100, 101, 102}
	feats := []*vector.Vector[float32]{vector.DenseOf([]float32{1}), nil, vector.DenseOf([]float32{3, 4})}
	p, err := param.New(1, testKey, keys, feats, 0, 3)
	require.NoError(t, err)

	out := roundTrip(t, NewUpdatePSFRequest(2, testTarget, p)).(*UpdatePSFRequest)
	assert.Equal(t, []int32{100, 102}, out.Param.Keys)
	assert.Equal(t, testKey, out.Param.Key)
}

func TestGetRowSplitRequest(t *testing.T) {
	req := NewGetRowSplitRequest(5, testTarget, testKey, 6)
	assert.Equal(t, 0, req.EstimatedPayloadSize())

	out := roundTrip(t, req).(*GetRowSplitRequest)
	assert.Equal(t, testKey, out.Key)
	assert.Equal(t, int32(6), out.RowIndex)
}

func TestTruncatedRequests(t *testing.T) {
	req := NewGetRowSplitRequest(5, testTarget, testKey, 6)
	buf := wire.NewBuffer(req.BufferLength())
	require.NoError(t, req.Serialize(buf))

	for cut := 0; cut < buf.Len(); cut++ {
		out, _ := New(common.MethodGetRowSplit)
		err := out.Deserialize(wire.Wrap(buf.Bytes()[:cut]))
		assert.True(t, errors.Is(err, common.ErrTruncatedMessage), "cut at %d: %v", cut, err)
	}
}

func TestResponse(t *testing.T) {
	encode := func(resp *Response) *Response {
		buf := wire.NewBuffer(resp.BufferLength())
		require.NoError(t, resp.Serialize(buf))
		require.Equal(t, resp.BufferLength(), buf.Len())

		out := NewEmptyResponse(resp.Method)
		require.NoError(t, out.Deserialize(wire.Wrap(buf.Bytes())))
		return out
	}

	t.Run("row result", func(t *testing.T) {
		u, err := split.NewSparseUpdate(6, []int32{100, 142}, []float64{1.5, -1})
		require.NoError(t, err)
		s, err := split.NewSplit(u, 0, 2)
		require.NoError(t, err)

		req := NewGetRowSplitRequest(5, testTarget, testKey, 6)
		out := encode(NewResponse(req, NewRowResult(testKey, s), nil))
		require.NoError(t, out.Error())
		assert.Equal(t, int32(5), out.UserRequestID)

		result, ok := out.Payload.(*RowResult)
		require.True(t, ok)
		assert.Equal(t, testKey, result.Key)
		v, ok := split.DecodedAs[float64](result.Row)
		require.True(t, ok)
		assert.Equal(t, 100, v.Dim())
		assert.Equal(t, []int32{0, 42}, v.Indices())
	})

	t.Run("error drops payload", func(t *testing.T) {
		req := NewGetRowSplitRequest(5, testTarget, testKey, 6)
		out := encode(NewResponse(req, &RowResult{}, errors.New("row 6 not found")))
		assert.Equal(t, StatusError, out.Status)
		assert.Nil(t, out.Payload)
		assert.ErrorContains(t, out.Error(), "row 6 not found")
	})

	t.Run("no payload", func(t *testing.T) {
		out := encode(NewResponse(NewCheckpointRequest(8, testTarget, 1), nil, nil))
		assert.Equal(t, StatusOK, out.Status)
		assert.Equal(t, int32(8), out.UserRequestID)
		assert.Nil(t, out.Payload)
	})
}
