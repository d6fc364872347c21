package vector

import (
	"fmt"

	"github.com/ValentinKolb/dPS/lib/wire"
)

// Storage tags written in front of an encoded vector
const (
	storageDense  uint8 = 1
	storageSparse uint8 = 2
)

// HeaderLength is the encoded size of an empty vector: storage tag + dimension + stored value count
const HeaderLength = wire.SizeUint8 + wire.SizeInt32 + wire.SizeInt32

// ElementSize returns the encoded width of one value of type T
func ElementSize[T Element]() int {
	var zero T
	switch any(zero).(type) {
	case float32, int32:
		return 4
	default:
		return 8
	}
}

// PutElement writes a single value with the width of its type
func PutElement[T Element](buf *wire.Buffer, value T) {
	switch v := any(value).(type) {
	case float64:
		buf.PutFloat64(v)
	case float32:
		buf.PutFloat32(v)
	case int32:
		buf.PutInt32(v)
	case int64:
		buf.PutInt64(v)
	}
}

// ReadElement reads a single value written by PutElement
func ReadElement[T Element](buf *wire.Buffer) (T, error) {
	var zero T
	switch any(zero).(type) {
	case float64:
		v, err := buf.ReadFloat64()
		return T(v), err
	case float32:
		v, err := buf.ReadFloat32()
		return T(v), err
	case int32:
		v, err := buf.ReadInt32()
		return T(v), err
	default:
		v, err := buf.ReadInt64()
		return T(v), err
	}
}

// --------------------------------------------------------------------------
// Vector Codec
// --------------------------------------------------------------------------

// EncodedLength returns the exact number of bytes Encode writes for v.
//
// Format:
//   - 1 byte: storage (1 dense, 2 sparse)
//   - 4 bytes: dimension
//   - 4 bytes: number of stored values n
//   - dense: n values, sparse: n (int32 index, value) pairs
func EncodedLength[T Element](v *Vector[T]) int {
	entry := ElementSize[T]()
	if !v.IsDense() {
		entry += wire.SizeInt32
	}
	return HeaderLength + v.Size()*entry
}

// Encode writes v to buf. Callers skip nil vectors, there is no encoding for them.
func Encode[T Element](buf *wire.Buffer, v *Vector[T]) {
	if v.IsDense() {
		buf.PutUint8(storageDense)
		buf.PutInt32(int32(v.dim))
		buf.PutInt32(int32(len(v.dense)))
		for _, val := range v.dense {
			PutElement(buf, val)
		}
		return
	}

	buf.PutUint8(storageSparse)
	buf.PutInt32(int32(v.dim))
	buf.PutInt32(int32(len(v.sparse)))
	v.ForEach(func(index int32, value T) {
		buf.PutInt32(index)
		PutElement(buf, value)
	})
}

// Decode reads a vector written by Encode
func Decode[T Element](buf *wire.Buffer) (*Vector[T], error) {
	storage, err := buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	dim, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	if dim < 0 {
		return nil, fmt.Errorf("vector: negative dimension %d", dim)
	}

	switch storage {
	case storageDense:
		n, err := buf.ReadCount(ElementSize[T]())
		if err != nil {
			return nil, err
		}
		if n != int(dim) {
			return nil, fmt.Errorf("vector: dense vector of dimension %d has %d values", dim, n)
		}
		v := NewDense[T](n)
		for i := 0; i < n; i++ {
			if v.dense[i], err = ReadElement[T](buf); err != nil {
				return nil, err
			}
		}
		return v, nil

	case storageSparse:
		n, err := buf.ReadCount(wire.SizeInt32 + ElementSize[T]())
		if err != nil {
			return nil, err
		}
		v := NewSparse[T](int(dim), n)
		for i := 0; i < n; i++ {
			index, err := buf.ReadInt32()
			if err != nil {
				return nil, err
			}
			if index < 0 || index >= dim {
				return nil, fmt.Errorf("vector: index %d out of range [0, %d)", index, dim)
			}
			value, err := ReadElement[T](buf)
			if err != nil {
				return nil, err
			}
			v.sparse[index] = value
		}
		return v, nil

	default:
		return nil, fmt.Errorf("vector: unknown storage type %d", storage)
	}
}
