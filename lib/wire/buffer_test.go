package wire

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPrimitivesRoundTrip(t *testing.T) {
	buf := NewBuffer(SizeUint8 + SizeInt32 + SizeInt64 + SizeFloat32 + SizeFloat64 + 3)
	buf.PutUint8(7)
	buf.PutInt32(-42)
	buf.PutInt64(math.MaxInt64)
	buf.PutFloat32(1.5)
	buf.PutFloat64(-0.25)
	buf.PutBytes([]byte("abc"))
	require.NoError(t, buf.Err())
	require.Equal(t, buf.Cap(), buf.Len())

	r := Wrap(buf.Bytes())
	u8, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-42), i32)

	i64, err := r.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), i64)

	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)

	f64, err := r.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -0.25, f64)

	raw, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), raw)
	assert.Zero(t, r.Remaining())
}

func TestBufferBigEndian(t *testing.T) {
	buf := NewBuffer(4)
	buf.PutInt32(1)
	assert.Equal(t, []byte{0, 0, 0, 1}, buf.Bytes())
}

func TestBufferOverflowIsSticky(t *testing.T) {
	buf := NewBuffer(6)
	buf.PutInt32(1)
	buf.PutInt32(2) // does not fit
	buf.PutUint8(3) // would fit, but the buffer already failed

	require.Error(t, buf.Err())
	assert.True(t, errors.Is(buf.Err(), ErrLengthMismatch))
	assert.Equal(t, 4, buf.Len())
}

func TestBufferReservePatch(t *testing.T) {
	buf := NewBuffer(12)
	pos := buf.Reserve()
	buf.PutInt32(10)
	buf.PutInt32(20)
	buf.PutInt32At(pos, 2)
	require.NoError(t, buf.Err())

	r := Wrap(buf.Bytes())
	n, err := r.ReadCount(SizeInt32)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBufferPatchUnwrittenPosition(t *testing.T) {
	buf := NewBuffer(8)
	buf.PutInt32At(4, 1)
	assert.True(t, errors.Is(buf.Err(), ErrLengthMismatch))
}

func TestBufferTruncatedReads(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		read func(b *Buffer) error
	}{
		{"int32 from 3 bytes", []byte{0, 0, 1}, func(b *Buffer) error { _, err := b.ReadInt32(); return err }},
		{"int64 from 4 bytes", []byte{0, 0, 0, 1}, func(b *Buffer) error { _, err := b.ReadInt64(); return err }},
		{"float64 from empty", nil, func(b *Buffer) error { _, err := b.ReadFloat64(); return err }},
		{"count larger than data", []byte{0, 0, 0, 3, 1, 2, 3, 4}, func(b *Buffer) error { _, err := b.ReadCount(4); return err }},
		{"negative count", []byte{0xff, 0xff, 0xff, 0xff}, func(b *Buffer) error { _, err := b.ReadCount(4); return err }},
		{"bytes past end", []byte{1}, func(b *Buffer) error { _, err := b.ReadBytes(2); return err }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.read(Wrap(tc.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTruncated))
		})
	}
}

func TestBufferFailedReadDoesNotConsume(t *testing.T) {
	r := Wrap([]byte{0, 0, 0, 9, 0, 0})
	_, err := r.ReadInt64()
	require.Error(t, err)

	v, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(9), v)
}
