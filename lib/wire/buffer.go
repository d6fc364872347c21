package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Sizes of the fixed width primitives written by Buffer
const (
	SizeUint8   = 1
	SizeInt32   = 4
	SizeInt64   = 8
	SizeFloat32 = 4
	SizeFloat64 = 8
)

var (
	// ErrTruncated is returned when a read needs more bytes than the buffer still holds.
	ErrTruncated = errors.New("wire: truncated message")
	// ErrLengthMismatch is returned when a write does not fit into the pre-computed capacity
	// or when an encoded message does not have the length that was announced for it.
	ErrLengthMismatch = errors.New("wire: length mismatch")
)

// --------------------------------------------------------------------------
// Buffer
// --------------------------------------------------------------------------

// Buffer is a fixed capacity big-endian byte buffer with independent write and read cursors.
//
// A buffer for encoding is created with NewBuffer using the exact length the message announced
// via its BufferLength method. The buffer never grows: a write that does not fit is dropped and
// the buffer remembers ErrLengthMismatch (see Err). This keeps the encode path free of per-write
// error checks while still catching a wrong length prediction.
//
// A buffer for decoding is created with Wrap. Every read checks the remaining bytes first and
// returns ErrTruncated instead of over-reading.
type Buffer struct {
	data []byte
	w    int
	r    int
	err  error
}

// NewBuffer creates an empty buffer with exactly capacity bytes of storage
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Wrap creates a buffer for reading the given bytes. The slice is not copied.
func Wrap(data []byte) *Buffer {
	return &Buffer{data: data, w: len(data)}
}

// Bytes returns the written part of the buffer
func (b *Buffer) Bytes() []byte {
	return b.data[:b.w]
}

// Len returns the number of bytes written so far
func (b *Buffer) Len() int {
	return b.w
}

// Cap returns the fixed capacity of the buffer
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Remaining returns the number of written bytes that have not been read yet
func (b *Buffer) Remaining() int {
	return b.w - b.r
}

// Err returns the first write error, nil if every write fit
func (b *Buffer) Err() error {
	return b.err
}

// --------------------------------------------------------------------------
// Write Methods
// --------------------------------------------------------------------------

// grow reserves n bytes for writing and returns the start position, or -1 if they do not fit
func (b *Buffer) grow(n int) int {
	if b.err != nil {
		return -1
	}
	if b.w+n > len(b.data) {
		b.err = fmt.Errorf("%w: writing %d bytes at offset %d exceeds capacity %d", ErrLengthMismatch, n, b.w, len(b.data))
		return -1
	}
	pos := b.w
	b.w += n
	return pos
}

// PutUint8 writes a single byte
func (b *Buffer) PutUint8(v uint8) {
	if pos := b.grow(SizeUint8); pos >= 0 {
		b.data[pos] = v
	}
}

// PutInt32 writes a big-endian int32
func (b *Buffer) PutInt32(v int32) {
	if pos := b.grow(SizeInt32); pos >= 0 {
		binary.BigEndian.PutUint32(b.data[pos:], uint32(v))
	}
}

// PutInt64 writes a big-endian int64
func (b *Buffer) PutInt64(v int64) {
	if pos := b.grow(SizeInt64); pos >= 0 {
		binary.BigEndian.PutUint64(b.data[pos:], uint64(v))
	}
}

// PutFloat32 writes the IEEE 754 bits of v
func (b *Buffer) PutFloat32(v float32) {
	if pos := b.grow(SizeFloat32); pos >= 0 {
		binary.BigEndian.PutUint32(b.data[pos:], math.Float32bits(v))
	}
}

// PutFloat64 writes the IEEE 754 bits of v
func (b *Buffer) PutFloat64(v float64) {
	if pos := b.grow(SizeFloat64); pos >= 0 {
		binary.BigEndian.PutUint64(b.data[pos:], math.Float64bits(v))
	}
}

// PutBytes writes raw bytes without a length prefix
func (b *Buffer) PutBytes(v []byte) {
	if pos := b.grow(len(v)); pos >= 0 {
		copy(b.data[pos:], v)
	}
}

// Reserve writes a zero int32 placeholder and returns its position for a later PutInt32At.
// Used when a count has to precede entries that are only known after a filtering pass.
func (b *Buffer) Reserve() int {
	pos := b.grow(SizeInt32)
	if pos >= 0 {
		binary.BigEndian.PutUint32(b.data[pos:], 0)
	}
	return pos
}

// PutInt32At overwrites an int32 that was written before (usually a Reserve placeholder).
// A negative position (failed Reserve) is ignored, the buffer already holds the error.
func (b *Buffer) PutInt32At(pos int, v int32) {
	if pos < 0 {
		return
	}
	if pos+SizeInt32 > b.w {
		if b.err == nil {
			b.err = fmt.Errorf("%w: patch position %d is not written yet", ErrLengthMismatch, pos)
		}
		return
	}
	binary.BigEndian.PutUint32(b.data[pos:], uint32(v))
}

// --------------------------------------------------------------------------
// Read Methods
// --------------------------------------------------------------------------

// Require returns ErrTruncated if less than n bytes are left to read
func (b *Buffer) Require(n int) error {
	if n < 0 || b.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes, %d left", ErrTruncated, n, b.Remaining())
	}
	return nil
}

// next consumes n bytes and returns them
func (b *Buffer) next(n int) ([]byte, error) {
	if err := b.Require(n); err != nil {
		return nil, err
	}
	p := b.data[b.r : b.r+n]
	b.r += n
	return p, nil
}

// ReadUint8 reads a single byte
func (b *Buffer) ReadUint8() (uint8, error) {
	p, err := b.next(SizeUint8)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadInt32 reads a big-endian int32
func (b *Buffer) ReadInt32() (int32, error) {
	p, err := b.next(SizeInt32)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(p)), nil
}

// ReadInt64 reads a big-endian int64
func (b *Buffer) ReadInt64() (int64, error) {
	p, err := b.next(SizeInt64)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(p)), nil
}

// ReadFloat32 reads an IEEE 754 float32
func (b *Buffer) ReadFloat32() (float32, error) {
	p, err := b.next(SizeFloat32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(p)), nil
}

// ReadFloat64 reads an IEEE 754 float64
func (b *Buffer) ReadFloat64() (float64, error) {
	p, err := b.next(SizeFloat64)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

// ReadBytes reads n raw bytes. The returned slice is a copy.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	p, err := b.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// ReadCount reads an int32 element count and checks that count*entrySize bytes follow.
// Checking before the caller allocates keeps a corrupted count from causing a huge allocation.
func (b *Buffer) ReadCount(entrySize int) (int, error) {
	n, err := b.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrTruncated, n)
	}
	if err := b.Require(int(n) * entrySize); err != nil {
		return 0, err
	}
	return int(n), nil
}
