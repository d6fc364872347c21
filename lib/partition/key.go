package partition

import (
	"fmt"

	"github.com/ValentinKolb/dPS/lib/wire"
)

// --------------------------------------------------------------------------
// Parameter Server ID
// --------------------------------------------------------------------------

// ServerID identifies a parameter server shard
type ServerID struct {
	Index int32
}

// ShardID returns the transport level shard id of the server
func (id ServerID) ShardID() uint64 {
	return uint64(uint32(id.Index))
}

func (id ServerID) String() string {
	return fmt.Sprintf("ps-%d", id.Index)
}

// BufferLength returns the encoded size of the id
func (id ServerID) BufferLength() int {
	return wire.SizeInt32
}

// Serialize writes the id to buf
func (id ServerID) Serialize(buf *wire.Buffer) {
	buf.PutInt32(id.Index)
}

// Deserialize reads the id from buf
func (id *ServerID) Deserialize(buf *wire.Buffer) (err error) {
	id.Index, err = buf.ReadInt32()
	return err
}

// --------------------------------------------------------------------------
// Partition Key
// --------------------------------------------------------------------------

// KeyLength is the encoded size of a Key
const KeyLength = 4*wire.SizeInt32 + 2*wire.SizeInt64

// Key identifies a partition: a contiguous row/column range of a matrix owned by one shard.
// Rows are [StartRow, EndRow), columns [StartCol, EndCol).
type Key struct {
	MatrixID    int32
	PartitionID int32
	StartRow    int32
	EndRow      int32
	StartCol    int64
	EndCol      int64
}

// ColSpan returns the number of columns covered by the partition
func (k Key) ColSpan() int64 {
	return k.EndCol - k.StartCol
}

// ContainsRow reports whether row lies in [StartRow, EndRow)
func (k Key) ContainsRow(row int32) bool {
	return row >= k.StartRow && row < k.EndRow
}

// ContainsCol reports whether col lies in [StartCol, EndCol)
func (k Key) ContainsCol(col int64) bool {
	return col >= k.StartCol && col < k.EndCol
}

func (k Key) String() string {
	return fmt.Sprintf("matrix=%d part=%d rows=[%d,%d) cols=[%d,%d)",
		k.MatrixID, k.PartitionID, k.StartRow, k.EndRow, k.StartCol, k.EndCol)
}

// BufferLength returns the encoded size of the key
func (k Key) BufferLength() int {
	return KeyLength
}

// Serialize writes the key to buf with the format:
// - 4 bytes: matrixId
// - 4 bytes: partitionId
// - 4 bytes: startRow, 4 bytes: endRow
// - 8 bytes: startCol, 8 bytes: endCol
func (k Key) Serialize(buf *wire.Buffer) {
	buf.PutInt32(k.MatrixID)
	buf.PutInt32(k.PartitionID)
	buf.PutInt32(k.StartRow)
	buf.PutInt32(k.EndRow)
	buf.PutInt64(k.StartCol)
	buf.PutInt64(k.EndCol)
}

// Deserialize reads a key written by Serialize
func (k *Key) Deserialize(buf *wire.Buffer) error {
	if err := buf.Require(KeyLength); err != nil {
		return err
	}
	// lengths were checked above, the reads cannot fail
	k.MatrixID, _ = buf.ReadInt32()
	k.PartitionID, _ = buf.ReadInt32()
	k.StartRow, _ = buf.ReadInt32()
	k.EndRow, _ = buf.ReadInt32()
	k.StartCol, _ = buf.ReadInt64()
	k.EndCol, _ = buf.ReadInt64()

	if k.StartRow > k.EndRow || k.StartCol > k.EndCol {
		return fmt.Errorf("partition: invalid key %s", k)
	}
	return nil
}

// --------------------------------------------------------------------------
// Split Context
// --------------------------------------------------------------------------

// SplitContext is the per partition encoding configuration of a row update split.
// It is created by the partitioning code, attached right before encoding and never
// modified while a split is encoded.
type SplitContext struct {
	Key             Key
	FilterEnabled   bool
	FilterThreshold float64
}

// NewSplitContext creates a context for key with filtering disabled
func NewSplitContext(key Key) *SplitContext {
	return &SplitContext{Key: key}
}

// WithFilter returns a copy of the context that drops entries with abs(value) <= threshold
func (c SplitContext) WithFilter(threshold float64) *SplitContext {
	c.FilterEnabled = true
	c.FilterThreshold = threshold
	return &c
}
