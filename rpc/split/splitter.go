package split

import (
	"sort"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/pkg/errors"
)

// Split slices a row update into one split per partition key.
// The result is parallel to keys, an entry is nil if no column of the update falls into
// that partition. Every split gets an unfiltered context for its key attached.
//
// Sparse updates must have strictly ascending offsets. Keys must not overlap.
func Split(u *RowUpdate, keys []partition.Key) ([]*RowUpdateSplit, error) {
	if u.Kind.IsSparse() {
		return splitSparse(u, keys)
	}
	return splitDense(u, keys)
}

func splitSparse(u *RowUpdate, keys []partition.Key) ([]*RowUpdateSplit, error) {
	offsets := u.offsets
	for i := 1; i < len(offsets); i++ {
		if offsets[i] == offsets[i-1] {
			return nil, errors.Wrapf(ErrDuplicateOffset, "offset %d", offsets[i])
		}
		if offsets[i] < offsets[i-1] {
			return nil, errors.Wrapf(ErrUnsortedOffsets, "offset %d follows %d", offsets[i], offsets[i-1])
		}
	}

	out := make([]*RowUpdateSplit, len(keys))
	covered := 0
	for i, key := range keys {
		start := sort.Search(len(offsets), func(j int) bool { return int64(offsets[j]) >= key.StartCol })
		end := sort.Search(len(offsets), func(j int) bool { return int64(offsets[j]) >= key.EndCol })
		if start == end {
			continue
		}
		s, err := NewSplit(u, start, end)
		if err != nil {
			return nil, err
		}
		s.SetContext(partition.NewSplitContext(key))
		out[i] = s
		covered += end - start
	}

	if covered != len(offsets) {
		return nil, errors.Wrapf(ErrOffsetOutOfRange, "%d of %d offsets are not covered by any partition", len(offsets)-covered, len(offsets))
	}
	return out, nil
}

func splitDense(u *RowUpdate, keys []partition.Key) ([]*RowUpdateSplit, error) {
	n := int64(u.Len())
	out := make([]*RowUpdateSplit, len(keys))
	for i, key := range keys {
		if key.StartCol >= n {
			continue
		}
		end := key.EndCol
		if end > n {
			end = n
		}
		s, err := NewSplit(u, int(key.StartCol), int(end))
		if err != nil {
			return nil, err
		}
		s.SetContext(partition.NewSplitContext(key))
		out[i] = s
	}
	return out, nil
}
