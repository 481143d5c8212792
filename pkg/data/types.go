// Package data holds the typed, scope-aware values that describe a network:
// N-dimensional arrays, their scopes, the value store and the neuron ranking.
package data

import (
	"fmt"
	"strings"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Scope states which leading axes of a value index the network structure.
type Scope uint8

const (
	// Global values have no index axes.
	Global Scope = iota
	// Layer values lead with a layer axis.
	Layer
	// Neuron values lead with (layer, neuron) axes.
	Neuron
)

// IndexAxes returns the number of leading axes the scope reserves.
func (s Scope) IndexAxes() int {
	switch s {
	case Layer:
		return 1
	case Neuron:
		return 2
	default:
		return 0
	}
}

func (s Scope) String() string {
	switch s {
	case Global:
		return "global"
	case Layer:
		return "layer"
	case Neuron:
		return "neuron"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the three defined scopes.
func (s Scope) Valid() bool {
	return s <= Neuron
}

// ParseScope parses a scope name, case-insensitively.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "global":
		return Global, nil
	case "layer":
		return Layer, nil
	case "neuron":
		return Neuron, nil
	}
	return 0, tserrors.ValidationErrorf(tserrors.ErrInvalidArgument,
		"unknown scope %q (want global, layer or neuron)", name)
}

// DataType is the element type of an array.
type DataType uint8

const (
	String DataType = iota
	U32
	F32
)

func (d DataType) String() string {
	switch d {
	case String:
		return "string"
	case U32:
		return "u32"
	case F32:
		return "f32"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Valid reports whether d is one of the three defined element types.
func (d DataType) Valid() bool {
	return d <= F32
}

// ParseDataType parses a data type name such as "f32" or "float32".
func ParseDataType(name string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "str":
		return String, nil
	case "u32", "uint32":
		return U32, nil
	case "f32", "float32":
		return F32, nil
	}
	return 0, tserrors.ValidationErrorf(tserrors.ErrInvalidArgument,
		"unknown data type %q (want string, u32 or f32)", name)
}
