package param

import (
	"sort"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/pkg/errors"
)

var (
	ErrInvalidRange = errors.New("param: invalid index range")
	ErrUnsortedKeys = errors.New("param: keys are not sorted")
)

// --------------------------------------------------------------------------
// Partition Update Param
// --------------------------------------------------------------------------

// PartitionUpdateParam is the header of every partition scoped parameter: [int32 matrixId][key]
type PartitionUpdateParam struct {
	MatrixID int32
	Key      partition.Key
}

func (p *PartitionUpdateParam) BufferLength() int {
	return wire.SizeInt32 + partition.KeyLength
}

func (p *PartitionUpdateParam) Serialize(buf *wire.Buffer) {
	buf.PutInt32(p.MatrixID)
	p.Key.Serialize(buf)
}

func (p *PartitionUpdateParam) Deserialize(buf *wire.Buffer) (err error) {
	if p.MatrixID, err = buf.ReadInt32(); err != nil {
		return err
	}
	return p.Key.Deserialize(buf)
}

// --------------------------------------------------------------------------
// Partitioned Batch Param
// --------------------------------------------------------------------------

// PartitionedBatchParam is the part of a key/vector batch that belongs to one partition,
// e.g. the feature vectors of the nodes a partition holds.
//
// On the sending side Keys and Vectors are the full batch and only [StartIndex, EndIndex)
// is written. Entries whose vector is nil or has no values are skipped, the receiver cannot
// tell them apart from keys that were never in the batch.
//
// Wire format: [header][int32 count]{[int32 key][vector]}*count
type PartitionedBatchParam struct {
	PartitionUpdateParam
	Keys       []int32
	Vectors    []*vector.Vector[float32]
	StartIndex int
	EndIndex   int
}

// New creates the param for the window [start, end) of a batch
func New(matrixID int32, key partition.Key, keys []int32, vectors []*vector.Vector[float32], start, end int) (*PartitionedBatchParam, error) {
	if len(keys) != len(vectors) {
		return nil, errors.Wrapf(ErrInvalidRange, "%d keys but %d vectors", len(keys), len(vectors))
	}
	if start < 0 || start > end || end > len(keys) {
		return nil, errors.Wrapf(ErrInvalidRange, "[%d,%d) of %d entries", start, end, len(keys))
	}
	return &PartitionedBatchParam{
		PartitionUpdateParam: PartitionUpdateParam{MatrixID: matrixID, Key: key},
		Keys:                 keys,
		Vectors:              vectors,
		StartIndex:           start,
		EndIndex:             end,
	}, nil
}

// NewEmpty creates a param to decode into
func NewEmpty() *PartitionedBatchParam {
	return &PartitionedBatchParam{PartitionUpdateParam: PartitionUpdateParam{MatrixID: -1}}
}

// Len returns the number of entries that are written
func (p *PartitionedBatchParam) Len() int {
	n := 0
	for i := p.StartIndex; i < p.EndIndex; i++ {
		if present(p.Vectors[i]) {
			n++
		}
	}
	return n
}

func (p *PartitionedBatchParam) BufferLength() int {
	n := p.PartitionUpdateParam.BufferLength() + wire.SizeInt32
	for i := p.StartIndex; i < p.EndIndex; i++ {
		if present(p.Vectors[i]) {
			n += wire.SizeInt32 + vector.EncodedLength(p.Vectors[i])
		}
	}
	return n
}

func (p *PartitionedBatchParam) Serialize(buf *wire.Buffer) error {
	p.PartitionUpdateParam.Serialize(buf)

	pos := buf.Reserve()
	written := int32(0)
	for i := p.StartIndex; i < p.EndIndex; i++ {
		if !present(p.Vectors[i]) {
			continue
		}
		buf.PutInt32(p.Keys[i])
		vector.Encode(buf, p.Vectors[i])
		written++
	}
	buf.PutInt32At(pos, written)
	return buf.Err()
}

// Deserialize reads the entries into Keys and Vectors, both of the written length
func (p *PartitionedBatchParam) Deserialize(buf *wire.Buffer) error {
	if err := p.PartitionUpdateParam.Deserialize(buf); err != nil {
		return err
	}
	n, err := buf.ReadCount(wire.SizeInt32 + vector.HeaderLength)
	if err != nil {
		return err
	}

	keys := make([]int32, n)
	vectors := make([]*vector.Vector[float32], n)
	for i := 0; i < n; i++ {
		if keys[i], err = buf.ReadInt32(); err != nil {
			return err
		}
		if vectors[i], err = vector.Decode[float32](buf); err != nil {
			return errors.Wrapf(err, "entry %d (key %d)", i, keys[i])
		}
	}

	p.Keys, p.Vectors = keys, vectors
	p.StartIndex, p.EndIndex = 0, n
	return nil
}

// present reports whether v carries an update
func present(v *vector.Vector[float32]) bool {
	return v != nil && v.Size() > 0
}

// --------------------------------------------------------------------------
// Splitting
// --------------------------------------------------------------------------

// Split cuts a batch into one param per partition. A key k belongs to the partition whose
// column range contains k. keys must be ascending, the result is parallel to parts and holds
// nil for partitions without keys.
func Split(matrixID int32, keys []int32, vectors []*vector.Vector[float32], parts []partition.Key) ([]*PartitionedBatchParam, error) {
	if len(keys) != len(vectors) {
		return nil, errors.Wrapf(ErrInvalidRange, "%d keys but %d vectors", len(keys), len(vectors))
	}
	if !sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] }) {
		return nil, ErrUnsortedKeys
	}

	out := make([]*PartitionedBatchParam, len(parts))
	covered := 0
	for i, part := range parts {
		start := sort.Search(len(keys), func(j int) bool { return int64(keys[j]) >= part.StartCol })
		end := sort.Search(len(keys), func(j int) bool { return int64(keys[j]) >= part.EndCol })
		if start == end {
			continue
		}
		p, err := New(matrixID, part, keys, vectors, start, end)
		if err != nil {
			return nil, err
		}
		out[i] = p
		covered += end - start
	}

	if covered != len(keys) {
		return nil, errors.Wrapf(ErrInvalidRange, "%d of %d keys are not covered by any partition", len(keys)-covered, len(keys))
	}
	return out, nil
}
