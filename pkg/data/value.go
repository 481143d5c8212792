package data

import (
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Value is an array tagged with the scope that says how it is sliced per
// neuron. The zero Value holds no array.
type Value struct {
	array Array
	scope Scope
}

// NewValue tags array with scope. The array must have at least as many axes
// as the scope reserves.
func NewValue(array Array, scope Scope) (Value, error) {
	if array == nil {
		return Value{}, tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "value has no array")
	}
	if !scope.Valid() {
		return Value{}, tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "invalid scope %s", scope)
	}
	if array.NDim() < scope.IndexAxes() {
		return Value{}, tserrors.DataErrorf(tserrors.ErrShapeMismatch,
			"%s-scoped value needs at least %d axes, got shape %v", scope, scope.IndexAxes(), array.Shape())
	}
	return Value{array: array, scope: scope}, nil
}

// Array returns the underlying array.
func (v Value) Array() Array { return v.array }

// Scope returns the value's scope.
func (v Value) Scope() Scope { return v.scope }

// DataType returns the element type.
func (v Value) DataType() DataType { return v.array.DataType() }

// Shape returns the full shape including index axes.
func (v Value) Shape() []int { return v.array.Shape() }

// InnerShape returns the shape left after stripping the scope's index axes.
func (v Value) InnerShape() []int { return v.array.Shape()[v.scope.IndexAxes():] }

// IsZero reports whether v holds no array.
func (v Value) IsZero() bool { return v.array == nil }

// SliceAt returns the view of v that belongs to the given neuron: Global
// values are returned whole, Layer values are indexed by layer, Neuron
// values by (layer, neuron).
func (v Value) SliceAt(layer, neuron int) (Array, error) {
	switch v.scope {
	case Layer:
		return v.array.IndexArray(layer)
	case Neuron:
		return v.array.IndexArray(layer, neuron)
	default:
		return v.array, nil
	}
}
