package data

import (
	"fmt"
	"math"
	"strings"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Element is the set of element types an array can hold.
type Element interface {
	string | uint32 | float32
}

// Array is a type-erased N-dimensional array. It is implemented only by
// *NDArray[string], *NDArray[uint32] and *NDArray[float32], so a type switch
// over those three cases is exhaustive.
type Array interface {
	DataType() DataType
	Shape() []int
	NDim() int
	Len() int
	// IndexArray fixes the leading axes and returns a view of the rest.
	IndexArray(prefix ...int) (Array, error)

	sealed()
}

// NDArray is a dense row-major N-dimensional array. Views returned by Index
// share the backing slice; arrays are never mutated after construction.
type NDArray[T Element] struct {
	shape []int
	data  []T
}

// NewNDArray creates an array of the given shape over data. The array takes
// ownership of data.
func NewNDArray[T Element](shape []int, data []T) (*NDArray[T], error) {
	n, err := numElements(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, tserrors.DataErrorf(tserrors.ErrShapeMismatch,
			"shape %v holds %d elements, got %d", shape, n, len(data))
	}
	return &NDArray[T]{shape: append([]int{}, shape...), data: data}, nil
}

// Scalar returns a zero-dimensional array holding v.
func Scalar[T Element](v T) *NDArray[T] {
	return &NDArray[T]{shape: []int{}, data: []T{v}}
}

// FromRows builds a 2-D array from equally long rows.
func FromRows[T Element](rows [][]T) (*NDArray[T], error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	data := make([]T, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, tserrors.DataErrorf(tserrors.ErrShapeMismatch,
				"row %d has %d columns, expected %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return &NDArray[T]{shape: []int{len(rows), cols}, data: data}, nil
}

func numElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, tserrors.DataErrorf(tserrors.ErrShapeMismatch, "negative dimension in shape %v", shape)
		}
		if d != 0 && n > math.MaxInt32/d {
			return 0, tserrors.DataErrorf(tserrors.ErrShapeMismatch, "shape %v is too large", shape)
		}
		n *= d
	}
	return n, nil
}

// DataType returns the element type of the array.
func (a *NDArray[T]) DataType() DataType {
	var zero T
	switch any(zero).(type) {
	case string:
		return String
	case uint32:
		return U32
	default:
		return F32
	}
}

// Shape returns a copy of the array's dimensions.
func (a *NDArray[T]) Shape() []int { return append([]int{}, a.shape...) }

// NDim returns the number of axes.
func (a *NDArray[T]) NDim() int { return len(a.shape) }

// Len returns the number of elements.
func (a *NDArray[T]) Len() int { return len(a.data) }

// Data returns the elements in row-major order. Callers must not modify it.
func (a *NDArray[T]) Data() []T { return a.data }

// At returns the element at the full index idx. It panics if idx does not
// address an element, like slice indexing.
func (a *NDArray[T]) At(idx ...int) T {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("data: At with %d indices on %d-dimensional array", len(idx), len(a.shape)))
	}
	off, err := a.offset(idx)
	if err != nil {
		panic(err.Error())
	}
	return a.data[off]
}

// Index fixes the leading len(prefix) axes and returns a view of the
// remaining axes.
func (a *NDArray[T]) Index(prefix ...int) (*NDArray[T], error) {
	if len(prefix) > len(a.shape) {
		return nil, tserrors.DataErrorf(tserrors.ErrShapeMismatch,
			"cannot index %d axes of a %d-dimensional array", len(prefix), len(a.shape))
	}
	off, err := a.offset(prefix)
	if err != nil {
		return nil, err
	}
	rest := a.shape[len(prefix):]
	n := 1
	for _, d := range rest {
		n *= d
	}
	return &NDArray[T]{shape: append([]int{}, rest...), data: a.data[off : off+n : off+n]}, nil
}

// IndexArray implements Array.
func (a *NDArray[T]) IndexArray(prefix ...int) (Array, error) {
	v, err := a.Index(prefix...)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// offset returns the flat offset of the first element addressed by prefix.
func (a *NDArray[T]) offset(prefix []int) (int, error) {
	stride := 1
	for _, d := range a.shape[len(prefix):] {
		stride *= d
	}
	off := 0
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] < 0 || prefix[i] >= a.shape[i] {
			return 0, tserrors.ValidationErrorf(tserrors.ErrCoordinateOutOfRange,
				"index %d out of range for axis %d of size %d", prefix[i], i, a.shape[i])
		}
		off += prefix[i] * stride
		stride *= a.shape[i]
	}
	return off, nil
}

// Equal reports whether b has the same shape and elements. NaNs compare equal.
func (a *NDArray[T]) Equal(b *NDArray[T]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !sameShape(a.shape, b.shape) {
		return false
	}
	for i := range a.data {
		x, y := a.data[i], b.data[i]
		if x != y && (x == x || y == y) {
			return false
		}
	}
	return true
}

func (a *NDArray[T]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%v", a.DataType(), a.shape)
	if len(a.data) <= 8 {
		fmt.Fprintf(&sb, " %v", a.data)
	}
	return sb.String()
}

func (a *NDArray[T]) sealed() {}

// ArrayOf returns a as *NDArray[T] if its element type is T.
func ArrayOf[T Element](a Array) (*NDArray[T], bool) {
	v, ok := a.(*NDArray[T])
	return v, ok
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
