package split

import (
	"math"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/pkg/errors"
)

var (
	ErrDuplicateOffset     = errors.New("split: duplicate offset")
	ErrInvalidWindow       = errors.New("split: invalid window")
	ErrMissingSplitContext = errors.New("split: no split context attached")
	ErrOffsetOutOfRange    = errors.New("split: offset outside of partition")
	ErrUnknownKind         = errors.New("split: unknown value kind")
	ErrUnsortedOffsets     = errors.New("split: offsets are not sorted")
)

// --------------------------------------------------------------------------
// Row Update
// --------------------------------------------------------------------------

// RowUpdate is the pending update of one full matrix row.
// Splits created from it borrow its arrays, so it must not be modified while
// any of its splits is encoded.
type RowUpdate struct {
	RowIndex int32
	Kind     Kind
	offsets  []int32
	values   any
}

// NewSparseUpdate creates a sparse row update from global column offsets and values
func NewSparseUpdate[T vector.Element](row int32, offsets []int32, values []T) (*RowUpdate, error) {
	if len(offsets) != len(values) {
		return nil, errors.Wrapf(ErrInvalidWindow, "%d offsets but %d values", len(offsets), len(values))
	}
	return &RowUpdate{RowIndex: row, Kind: kindOf[T](true), offsets: offsets, values: values}, nil
}

// NewDenseUpdate creates a dense row update, values[i] is the update of column i
func NewDenseUpdate[T vector.Element](row int32, values []T) *RowUpdate {
	return &RowUpdate{RowIndex: row, Kind: kindOf[T](false), values: values}
}

// Len returns the number of entries of the update
func (u *RowUpdate) Len() int {
	switch v := u.values.(type) {
	case []float64:
		return len(v)
	case []float32:
		return len(v)
	case []int32:
		return len(v)
	case []int64:
		return len(v)
	default:
		return 0
	}
}

// Offsets returns the column offsets of a sparse update (nil for dense updates)
func (u *RowUpdate) Offsets() []int32 {
	return u.offsets
}

// --------------------------------------------------------------------------
// Row Update Split
// --------------------------------------------------------------------------

// RowUpdateSplit is the part of a row update that falls into a single partition.
//
// On the sending side it is a window [Start, End) into the arrays of a RowUpdate.
// On the receiving side it is created with NewEmpty and holds the decoded vector,
// whose indices are local to the partition (global column - StartCol).
//
// Wire format (big endian):
//   - sparse kinds: [int32 count]{[int32 localOffset][value]}*count
//   - dense kinds:  [int32 count]{[value]}*count
type RowUpdateSplit struct {
	RowIndex int32
	Kind     Kind
	Start    int
	End      int

	offsets []int32
	values  any
	ctx     *partition.SplitContext
	decoded vector.Any
}

// NewSplit creates the split [start, end) of a row update
func NewSplit(u *RowUpdate, start, end int) (*RowUpdateSplit, error) {
	if start < 0 || start > end || end > u.Len() {
		return nil, errors.Wrapf(ErrInvalidWindow, "[%d,%d) of %d entries", start, end, u.Len())
	}
	return &RowUpdateSplit{
		RowIndex: u.RowIndex,
		Kind:     u.Kind,
		Start:    start,
		End:      end,
		offsets:  u.offsets,
		values:   u.values,
	}, nil
}

// NewSparseDouble creates a sparse double split directly over borrowed arrays
func NewSparseDouble(row int32, start, end int, offsets []int32, values []float64) (*RowUpdateSplit, error) {
	u, err := NewSparseUpdate(row, offsets, values)
	if err != nil {
		return nil, err
	}
	return NewSplit(u, start, end)
}

// NewEmpty creates a split to decode into
func NewEmpty(row int32, kind Kind) (*RowUpdateSplit, error) {
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "%d", int32(kind))
	}
	return &RowUpdateSplit{RowIndex: row, Kind: kind}, nil
}

// SetContext attaches the encoding context. The split only reads it.
func (s *RowUpdateSplit) SetContext(ctx *partition.SplitContext) {
	s.ctx = ctx
}

// Context returns the attached context (may be nil)
func (s *RowUpdateSplit) Context() *partition.SplitContext {
	return s.ctx
}

// Len returns the size of the window
func (s *RowUpdateSplit) Len() int {
	return s.End - s.Start
}

// Vector returns the decoded vector, nil before Deserialize
func (s *RowUpdateSplit) Vector() vector.Any {
	return s.decoded
}

// DecodedAs returns the decoded vector with its concrete element type
func DecodedAs[T vector.Element](s *RowUpdateSplit) (*vector.Vector[T], bool) {
	v, ok := s.decoded.(*vector.Vector[T])
	return v, ok
}

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// BufferLength returns the exact number of bytes Serialize writes with the current context.
// With filtering enabled it runs the same filter as Serialize, without writing.
func (s *RowUpdateSplit) BufferLength() int {
	switch values := s.values.(type) {
	case []float64:
		return bufferLength(s, values)
	case []float32:
		return bufferLength(s, values)
	case []int32:
		return bufferLength(s, values)
	case []int64:
		return bufferLength(s, values)
	default:
		// nothing borrowed: an empty window, only the count is written
		return wire.SizeInt32
	}
}

// Serialize writes the window to buf. Without a context no filter is applied and
// offsets are written unchanged (as if StartCol was 0). With a context, every offset of
// the window must lie inside the partition.
func (s *RowUpdateSplit) Serialize(buf *wire.Buffer) error {
	var err error
	switch values := s.values.(type) {
	case []float64:
		err = serialize(s, buf, values)
	case []float32:
		err = serialize(s, buf, values)
	case []int32:
		err = serialize(s, buf, values)
	case []int64:
		err = serialize(s, buf, values)
	default:
		if s.decoded != nil {
			return errors.Wrap(ErrInvalidWindow, "decoded entries do not fit the int32 column range")
		}
		buf.PutInt32(0)
	}
	if err != nil {
		return err
	}
	return buf.Err()
}

// Deserialize reads a split. Sparse kinds decode into a vector spanning the columns of the
// context's partition, dense kinds into a vector holding the written values.
// A context must be attached, it provides the partition size.
// Afterwards the window covers the decoded entries, so the split encodes them again.
func (s *RowUpdateSplit) Deserialize(buf *wire.Buffer) error {
	if s.ctx == nil {
		return ErrMissingSplitContext
	}
	span := s.ctx.Key.ColSpan()

	switch s.Kind {
	case DenseDouble, SparseDouble:
		return deserialize[float64](s, buf, span)
	case DenseFloat, SparseFloat:
		return deserialize[float32](s, buf, span)
	case DenseInt, SparseInt:
		return deserialize[int32](s, buf, span)
	case DenseLong, SparseLong:
		return deserialize[int64](s, buf, span)
	default:
		return errors.Wrapf(ErrUnknownKind, "%d", int32(s.Kind))
	}
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// keep is the filter predicate, strictly greater so values equal to the threshold are dropped
func keep[T vector.Element](value T, threshold float64) bool {
	return math.Abs(float64(value)) > threshold
}

// filtering reports whether the attached context enables the filter
func (s *RowUpdateSplit) filtering() bool {
	return s.ctx != nil && s.ctx.FilterEnabled
}

// startCol returns the first column of the target partition
func (s *RowUpdateSplit) startCol() int64 {
	if s.ctx == nil {
		return 0
	}
	return s.ctx.Key.StartCol
}

// keptEntries counts the entries of the window that Serialize writes
func keptEntries[T vector.Element](s *RowUpdateSplit, values []T) int {
	if !s.Kind.IsSparse() || !s.filtering() {
		return s.Len()
	}
	n := 0
	threshold := s.ctx.FilterThreshold
	for i := s.Start; i < s.End; i++ {
		if keep(values[i], threshold) {
			n++
		}
	}
	return n
}

func bufferLength[T vector.Element](s *RowUpdateSplit, values []T) int {
	entry := vector.ElementSize[T]()
	if s.Kind.IsSparse() {
		entry += wire.SizeInt32
	}
	return wire.SizeInt32 + keptEntries(s, values)*entry
}

// checkWindow rejects windows the receiver of the attached context cannot decode
func (s *RowUpdateSplit) checkWindow() error {
	if s.ctx == nil {
		return nil
	}
	key := s.ctx.Key
	if !s.Kind.IsSparse() {
		if int64(s.Len()) > key.ColSpan() {
			return errors.Wrapf(ErrOffsetOutOfRange, "%d values for %d columns", s.Len(), key.ColSpan())
		}
		return nil
	}
	for i := s.Start; i < s.End; i++ {
		if !key.ContainsCol(int64(s.offsets[i])) {
			return errors.Wrapf(ErrOffsetOutOfRange, "column %d outside of partition %s", s.offsets[i], key)
		}
	}
	return nil
}

func serialize[T vector.Element](s *RowUpdateSplit, buf *wire.Buffer, values []T) error {
	if err := s.checkWindow(); err != nil {
		return err
	}

	// dense rows have nothing to filter, the whole window is written
	if !s.Kind.IsSparse() {
		buf.PutInt32(int32(s.Len()))
		for _, v := range values[s.Start:s.End] {
			vector.PutElement(buf, v)
		}
		return nil
	}

	startCol := s.startCol()
	if s.filtering() {
		// the count is only known after filtering: reserve, scan, patch
		pos := buf.Reserve()
		written := int32(0)
		threshold := s.ctx.FilterThreshold
		for i := s.Start; i < s.End; i++ {
			if keep(values[i], threshold) {
				buf.PutInt32(int32(int64(s.offsets[i]) - startCol))
				vector.PutElement(buf, values[i])
				written++
			}
		}
		buf.PutInt32At(pos, written)
		return nil
	}

	buf.PutInt32(int32(s.Len()))
	for i := s.Start; i < s.End; i++ {
		buf.PutInt32(int32(int64(s.offsets[i]) - startCol))
		vector.PutElement(buf, values[i])
	}
	return nil
}

func deserialize[T vector.Element](s *RowUpdateSplit, buf *wire.Buffer, span int64) error {
	var v *vector.Vector[T]
	var err error
	if s.Kind.IsSparse() {
		v, err = readSparse[T](buf, span)
	} else {
		v, err = readDense[T](buf, span)
	}
	if err != nil {
		return err
	}
	s.decoded = v
	adopt(s, v)
	return nil
}

// adopt points the window of a decoded split at its entries, translated back to global
// columns. Entries beyond the int32 column range are left without window.
func adopt[T vector.Element](s *RowUpdateSplit, v *vector.Vector[T]) {
	values := v.Values()
	var offsets []int32
	if s.Kind.IsSparse() {
		startCol := s.startCol()
		offsets = v.Indices()
		for i, local := range offsets {
			col := startCol + int64(local)
			if col > math.MaxInt32 {
				return
			}
			offsets[i] = int32(col)
		}
	}
	s.offsets = offsets
	s.values = values
	s.Start, s.End = 0, len(values)
}

func readSparse[T vector.Element](buf *wire.Buffer, span int64) (*vector.Vector[T], error) {
	n, err := buf.ReadCount(wire.SizeInt32 + vector.ElementSize[T]())
	if err != nil {
		return nil, err
	}
	if int64(n) > span {
		return nil, errors.Wrapf(ErrOffsetOutOfRange, "%d entries for %d columns", n, span)
	}

	v := vector.NewSparse[T](int(span), n)
	for i := 0; i < n; i++ {
		offset, err := buf.ReadInt32()
		if err != nil {
			return nil, err
		}
		if offset < 0 || int64(offset) >= span {
			return nil, errors.Wrapf(ErrOffsetOutOfRange, "local offset %d, partition has %d columns", offset, span)
		}
		value, err := vector.ReadElement[T](buf)
		if err != nil {
			return nil, err
		}
		v.Set(offset, value)
	}
	if v.Size() != n {
		return nil, errors.Wrapf(ErrDuplicateOffset, "%d entries for %d distinct offsets", n, v.Size())
	}
	return v, nil
}

func readDense[T vector.Element](buf *wire.Buffer, span int64) (*vector.Vector[T], error) {
	n, err := buf.ReadCount(vector.ElementSize[T]())
	if err != nil {
		return nil, err
	}
	if int64(n) > span {
		return nil, errors.Wrapf(ErrOffsetOutOfRange, "%d values for %d columns", n, span)
	}

	values := make([]T, n)
	for i := range values {
		if values[i], err = vector.ReadElement[T](buf); err != nil {
			return nil, err
		}
	}
	return vector.DenseOf(values), nil
}
