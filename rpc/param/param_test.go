package param

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = partition.Key{MatrixID: 2, PartitionID: 1, EndRow: 1, StartCol: 0, EndCol: 100}

func roundTrip(t *testing.T, p *PartitionedBatchParam) *PartitionedBatchParam {
	t.Helper()
	buf := wire.NewBuffer(p.BufferLength())
	require.NoError(t, p.Serialize(buf))
	require.Equal(t, p.BufferLength(), buf.Len())

	out := NewEmpty()
	r := wire.Wrap(buf.Bytes())
	require.NoError(t, out.Deserialize(r))
	require.Equal(t, 0, r.Remaining())
	return out
}

func feat(values ...float32) *vector.Vector[float32] {
	return vector.DenseOf(values)
}

func TestCompaction(t *testing.T) {
	keys := []int32{10, 11, 12, 13, 14}
	vectors := []*vector.Vector[float32]{
		feat(1, 2),
		nil,
		vector.SparseOf[float32](50, []int32{3}, []float32{0.5}),
		nil,
		feat(4),
	}
	p, err := New(2, testKey, keys, vectors, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())

	out := roundTrip(t, p)
	assert.Equal(t, int32(2), out.MatrixID)
	assert.Equal(t, testKey, out.Key)
	assert.Equal(t, []int32{10, 12, 14}, out.Keys)
	require.Len(t, out.Vectors, 3)
	assert.Equal(t, []float32{1, 2}, out.Vectors[0].Values())
	assert.Equal(t, float32(0.5), out.Vectors[1].Get(3))
	assert.Equal(t, []float32{4}, out.Vectors[2].Values())
}

func TestEmptyVectorsAreSkipped(t *testing.T) {
	keys := []int32{1, 2, 3}
	vectors := []*vector.Vector[float32]{feat(), vector.NewSparse[float32](10, 0), feat(7)}
	p, err := New(2, testKey, keys, vectors, 0, 3)
	require.NoError(t, err)

	withoutEmpty, err := New(2, testKey, []int32{3}, []*vector.Vector[float32]{feat(7)}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, withoutEmpty.BufferLength(), p.BufferLength())

	out := roundTrip(t, p)
	assert.Equal(t, []int32{3}, out.Keys)
}

func TestWindow(t *testing.T) {
	keys := []int32{1, 2, 3, 4}
	vectors := []*vector.Vector[float32]{feat(1), feat(2), feat(3), feat(4)}

	p, err := New(2, testKey, keys, vectors, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 3}, roundTrip(t, p).Keys)

	p, err = New(2, testKey, keys, vectors, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, p.PartitionUpdateParam.BufferLength()+4, p.BufferLength())
	out := roundTrip(t, p)
	assert.Empty(t, out.Keys)
	assert.Empty(t, out.Vectors)

	_, err = New(2, testKey, keys, vectors, 3, 5)
	assert.True(t, errors.Is(err, ErrInvalidRange))
	_, err = New(2, testKey, keys, vectors[:2], 0, 1)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestDeserializeTruncated(t *testing.T) {
	p, err := New(2, testKey, []int32{1}, []*vector.Vector[float32]{feat(1, 2, 3)}, 0, 1)
	require.NoError(t, err)
	buf := wire.NewBuffer(p.BufferLength())
	require.NoError(t, p.Serialize(buf))

	data := buf.Bytes()
	for _, cut := range []int{0, 10, p.PartitionUpdateParam.BufferLength() + 2, len(data) - 1} {
		err := NewEmpty().Deserialize(wire.Wrap(data[:cut]))
		assert.True(t, errors.Is(err, wire.ErrTruncated), "cut at %d: %v", cut, err)
	}
}

func TestSplit(t *testing.T) {
	parts := []partition.Key{
		{PartitionID: 0, StartCol: 0, EndCol: 10},
		{PartitionID: 1, StartCol: 10, EndCol: 20},
		{PartitionID: 2, StartCol: 20, EndCol: 30},
	}
	keys := []int32{1, 5, 22, 29}
	vectors := []*vector.Vector[float32]{feat(1), nil, feat(3), feat(4)}

	params, err := Split(7, keys, vectors, parts)
	require.NoError(t, err)
	require.Len(t, params, 3)
	assert.Nil(t, params[1])
	assert.Equal(t, [2]int{0, 2}, [2]int{params[0].StartIndex, params[0].EndIndex})
	assert.Equal(t, [2]int{2, 4}, [2]int{params[2].StartIndex, params[2].EndIndex})
	assert.Equal(t, parts[2], params[2].Key)
	assert.Equal(t, []int32{1}, roundTrip(t, params[0]).Keys)

	_, err = Split(7, []int32{5, 1}, vectors[:2], parts)
	assert.True(t, errors.Is(err, ErrUnsortedKeys))
	_, err = Split(7, []int32{1, 40}, vectors[:2], parts)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}
