package template

import (
	"fmt"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// ArgumentErrorKind classifies why an element argument was rejected.
type ArgumentErrorKind int

const (
	// MissingValue: the named value is not in the store.
	MissingValue ArgumentErrorKind = iota
	// AxisCount: wrong number of axes after stripping index axes.
	AxisCount
	// DataTypeMismatch: wrong element type.
	DataTypeMismatch
	// ShapeEquality: two arguments that must share a shape do not.
	ShapeEquality
)

func (k ArgumentErrorKind) String() string {
	switch k {
	case MissingValue:
		return "missing value"
	case AxisCount:
		return "axis count"
	case DataTypeMismatch:
		return "data type"
	case ShapeEquality:
		return "shape equality"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ArgumentError reports an element argument that does not satisfy the
// element's contract.
type ArgumentError struct {
	Kind      ArgumentErrorKind
	Element   string
	ValueName string
	Required  string
	Found     string
}

func (e *ArgumentError) Error() string {
	prefix := ""
	if e.Element != "" {
		prefix = e.Element + ": "
	}
	switch e.Kind {
	case MissingValue:
		return fmt.Sprintf("%svalue %q does not exist", prefix, e.ValueName)
	case AxisCount:
		return fmt.Sprintf("%svalue %q must have %s axes after indexing, found %s", prefix, e.ValueName, e.Required, e.Found)
	case DataTypeMismatch:
		return fmt.Sprintf("%svalue %q must be %s, found %s", prefix, e.ValueName, e.Required, e.Found)
	default:
		return fmt.Sprintf("%svalue %q must have shape %s, found %s", prefix, e.ValueName, e.Required, e.Found)
	}
}

// Code returns the error code matching the kind.
func (e *ArgumentError) Code() string {
	switch e.Kind {
	case MissingValue:
		return tserrors.ErrMissingValue
	case DataTypeMismatch:
		return tserrors.ErrTypeMismatch
	default:
		return tserrors.ErrShapeMismatch
	}
}

// Wrap converts e into a TScopeError carrying e as its cause, so callers can
// match on the code and still recover the ArgumentError with errors.As.
func (e *ArgumentError) Wrap() *tserrors.TScopeError {
	te := tserrors.Wrapf(e, e.Code(), "template argument rejected").
		WithContext("value", e.ValueName).
		WithContext("kind", e.Kind.String())
	if e.Element != "" {
		te.WithContext("element", e.Element)
	}
	return te
}
