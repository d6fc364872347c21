package vector

import (
	"fmt"
	"sort"
)

// Element is the set of value types a Vector can hold
type Element interface {
	float32 | float64 | int32 | int64
}

// Any is the element type independent view of a vector.
// It is used by consumers that only need to read values, like the partition store.
type Any interface {
	Dim() int
	Size() int
	IsDense() bool
	ForEachFloat64(fn func(index int32, value float64))
}

// Vector is a numeric vector with either dense or sparse storage.
//
// Dense vectors store all Dim() values, sparse vectors only the explicitly set ones.
// A Vector is not safe for concurrent modification.
type Vector[T Element] struct {
	dim    int
	dense  []T
	sparse map[int32]T
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// NewDense creates a zero initialized dense vector
func NewDense[T Element](dim int) *Vector[T] {
	return &Vector[T]{dim: dim, dense: make([]T, dim)}
}

// DenseOf creates a dense vector backed by values (the slice is not copied)
func DenseOf[T Element](values []T) *Vector[T] {
	if values == nil {
		values = []T{}
	}
	return &Vector[T]{dim: len(values), dense: values}
}

// NewSparse creates an empty sparse vector with room for capacity entries
func NewSparse[T Element](dim, capacity int) *Vector[T] {
	return &Vector[T]{dim: dim, sparse: make(map[int32]T, capacity)}
}

// SparseOf creates a sparse vector from parallel index/value arrays
func SparseOf[T Element](dim int, indices []int32, values []T) *Vector[T] {
	if len(indices) != len(values) {
		panic(fmt.Sprintf("vector: %d indices but %d values", len(indices), len(values)))
	}
	v := NewSparse[T](dim, len(indices))
	for i, idx := range indices {
		v.Set(idx, values[i])
	}
	return v
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Dim returns the logical dimension of the vector
func (v *Vector[T]) Dim() int {
	return v.dim
}

// IsDense reports whether all Dim() values are stored
func (v *Vector[T]) IsDense() bool {
	return v.sparse == nil
}

// Size returns the number of stored values (Dim() for dense vectors)
func (v *Vector[T]) Size() int {
	if v.IsDense() {
		return len(v.dense)
	}
	return len(v.sparse)
}

// Get returns the value at index, zero if it is not stored
func (v *Vector[T]) Get(index int32) T {
	if v.IsDense() {
		return v.dense[index]
	}
	return v.sparse[index]
}

// Set stores value at index. Dense vectors panic on an index outside [0, Dim()).
func (v *Vector[T]) Set(index int32, value T) {
	if v.IsDense() {
		v.dense[index] = value
		return
	}
	v.sparse[index] = value
}

// Indices returns the stored indices in ascending order
func (v *Vector[T]) Indices() []int32 {
	if v.IsDense() {
		out := make([]int32, len(v.dense))
		for i := range out {
			out[i] = int32(i)
		}
		return out
	}
	out := make([]int32, 0, len(v.sparse))
	for idx := range v.sparse {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Values returns the stored values in the order of Indices
func (v *Vector[T]) Values() []T {
	if v.IsDense() {
		out := make([]T, len(v.dense))
		copy(out, v.dense)
		return out
	}
	indices := v.Indices()
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = v.sparse[idx]
	}
	return out
}

// ForEach calls fn for every stored value in ascending index order
func (v *Vector[T]) ForEach(fn func(index int32, value T)) {
	if v.IsDense() {
		for i, val := range v.dense {
			fn(int32(i), val)
		}
		return
	}
	for _, idx := range v.Indices() {
		fn(idx, v.sparse[idx])
	}
}

// ForEachFloat64 is ForEach with values converted to float64
func (v *Vector[T]) ForEachFloat64(fn func(index int32, value float64)) {
	v.ForEach(func(index int32, value T) {
		fn(index, float64(value))
	})
}

// Clone returns a deep copy
func (v *Vector[T]) Clone() *Vector[T] {
	if v.IsDense() {
		values := make([]T, len(v.dense))
		copy(values, v.dense)
		return &Vector[T]{dim: v.dim, dense: values}
	}
	c := NewSparse[T](v.dim, len(v.sparse))
	for idx, val := range v.sparse {
		c.sparse[idx] = val
	}
	return c
}
