package split

import (
	"fmt"

	"github.com/ValentinKolb/dPS/lib/vector"
)

// Kind is the value kind of a row update: storage (dense/sparse) and element type.
// It is written next to every split so the receiver knows how to decode it.
type Kind int32

const (
	KindUnknown Kind = iota
	DenseDouble
	SparseDouble
	DenseFloat
	SparseFloat
	DenseInt
	SparseInt
	DenseLong
	SparseLong
)

func (k Kind) String() string {
	switch k {
	case DenseDouble:
		return "denseDouble"
	case SparseDouble:
		return "sparseDouble"
	case DenseFloat:
		return "denseFloat"
	case SparseFloat:
		return "sparseFloat"
	case DenseInt:
		return "denseInt"
	case SparseInt:
		return "sparseInt"
	case DenseLong:
		return "denseLong"
	case SparseLong:
		return "sparseLong"
	default:
		return fmt.Sprintf("unknown(%d)", int32(k))
	}
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k >= DenseDouble && k <= SparseLong
}

// IsSparse reports whether splits of this kind carry offsets
func (k Kind) IsSparse() bool {
	switch k {
	case SparseDouble, SparseFloat, SparseInt, SparseLong:
		return true
	default:
		return false
	}
}

// kindOf returns the kind for element type T
func kindOf[T vector.Element](sparse bool) Kind {
	var zero T
	var k Kind
	switch any(zero).(type) {
	case float64:
		k = DenseDouble
	case float32:
		k = DenseFloat
	case int32:
		k = DenseInt
	default:
		k = DenseLong
	}
	if sparse {
		// every sparse kind directly follows its dense counterpart
		k++
	}
	return k
}

// EntryLength returns the encoded size of one entry (offset and value for sparse kinds)
func (k Kind) EntryLength() int {
	n := 8
	switch k {
	case DenseFloat, SparseFloat, DenseInt, SparseInt:
		n = 4
	}
	if k.IsSparse() {
		n += 4
	}
	return n
}
