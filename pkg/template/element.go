package template

import (
	"fmt"
	"strings"

	"github.com/albertsgarde/transformerscope/pkg/data"
)

// Renderer turns the per-neuron views of an element's arguments into markup.
// The template hands it arrays whose shapes and types have been validated.
type Renderer interface {
	// Heatmap renders a 2-D f32 table.
	Heatmap(values *data.NDArray[float32]) string
	// Value renders a 0-dimensional array of any element type.
	Value(v data.Array) string
	// FocusSequences renders a 2-D table of step names shaded by activations
	// of the same shape.
	FocusSequences(activations *data.NDArray[float32], stepNames *data.NDArray[string]) string
}

// Element is a directive that appears in a neuron template. The set of
// elements is closed: Heatmap, Value and FocusSequences.
type Element interface {
	// Name is the directive identifier, e.g. "heatmap".
	Name() string
	// Args returns the value names the directive refers to.
	Args() []string

	validate(store *data.Store) *ArgumentError
	evaluate(store *data.Store, layer, neuron int, r Renderer) (string, error)
}

// Heatmap renders a 2-D f32 value as a colored table.
type Heatmap struct {
	Values string
}

// Value renders a single scalar.
type Value struct {
	Scalar string
}

// FocusSequences renders a table of step names colored by activations.
type FocusSequences struct {
	Activations string
	StepNames   string
}

func (Heatmap) Name() string        { return "heatmap" }
func (Value) Name() string          { return "value" }
func (FocusSequences) Name() string { return "focus_sequences" }

func (e Heatmap) Args() []string        { return []string{e.Values} }
func (e Value) Args() []string          { return []string{e.Scalar} }
func (e FocusSequences) Args() []string { return []string{e.Activations, e.StepNames} }

func (e Heatmap) String() string        { return directiveString(e) }
func (e Value) String() string          { return directiveString(e) }
func (e FocusSequences) String() string { return directiveString(e) }

func directiveString(e Element) string {
	return fmt.Sprintf("%c%s(%s)", Marker, e.Name(), strings.Join(e.Args(), ", "))
}

// arity returns the argument count of a known directive.
func arity(name string) (int, bool) {
	switch name {
	case "heatmap", "value":
		return 1, true
	case "focus_sequences":
		return 2, true
	}
	return 0, false
}

func newElement(name string, args []string) Element {
	switch name {
	case "heatmap":
		return Heatmap{Values: args[0]}
	case "value":
		return Value{Scalar: args[0]}
	default:
		return FocusSequences{Activations: args[0], StepNames: args[1]}
	}
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func lookup(store *data.Store, element, name string) (data.Value, *ArgumentError) {
	v, ok := store.Get(name)
	if !ok {
		return data.Value{}, &ArgumentError{Kind: MissingValue, Element: element, ValueName: name}
	}
	return v, nil
}

func checkAxes(element, name string, v data.Value, want int) *ArgumentError {
	inner := v.InnerShape()
	if len(inner) != want {
		return &ArgumentError{
			Kind:      AxisCount,
			Element:   element,
			ValueName: name,
			Required:  fmt.Sprint(want),
			Found:     fmt.Sprintf("%d (inner shape %v)", len(inner), inner),
		}
	}
	return nil
}

func checkType(element, name string, v data.Value, want data.DataType) *ArgumentError {
	if v.DataType() != want {
		return &ArgumentError{
			Kind:      DataTypeMismatch,
			Element:   element,
			ValueName: name,
			Required:  want.String(),
			Found:     v.DataType().String(),
		}
	}
	return nil
}

func (e Heatmap) validate(store *data.Store) *ArgumentError {
	v, err := lookup(store, e.Name(), e.Values)
	if err != nil {
		return err
	}
	if err := checkAxes(e.Name(), e.Values, v, 2); err != nil {
		return err
	}
	return checkType(e.Name(), e.Values, v, data.F32)
}

func (e Value) validate(store *data.Store) *ArgumentError {
	v, err := lookup(store, e.Name(), e.Scalar)
	if err != nil {
		return err
	}
	return checkAxes(e.Name(), e.Scalar, v, 0)
}

func (e FocusSequences) validate(store *data.Store) *ArgumentError {
	act, err := lookup(store, e.Name(), e.Activations)
	if err != nil {
		return err
	}
	steps, err := lookup(store, e.Name(), e.StepNames)
	if err != nil {
		return err
	}
	if err := checkAxes(e.Name(), e.Activations, act, 2); err != nil {
		return err
	}
	if err := checkAxes(e.Name(), e.StepNames, steps, 2); err != nil {
		return err
	}
	if a, s := act.InnerShape(), steps.InnerShape(); a[0] != s[0] || a[1] != s[1] {
		return &ArgumentError{
			Kind:      ShapeEquality,
			Element:   e.Name(),
			ValueName: e.StepNames,
			Required:  fmt.Sprintf("%v (inner shape of %q)", a, e.Activations),
			Found:     fmt.Sprint(s),
		}
	}
	if err := checkType(e.Name(), e.Activations, act, data.F32); err != nil {
		return err
	}
	return checkType(e.Name(), e.StepNames, steps, data.String)
}

// -----------------------------------------------------------------------------
// Evaluation
// -----------------------------------------------------------------------------

func sliceOf[T data.Element](store *data.Store, name string, layer, neuron int) (*data.NDArray[T], error) {
	v, ok := store.Get(name)
	if !ok {
		return nil, &ArgumentError{Kind: MissingValue, ValueName: name}
	}
	s, err := v.SliceAt(layer, neuron)
	if err != nil {
		return nil, err
	}
	typed, ok := data.ArrayOf[T](s)
	if !ok {
		return nil, &ArgumentError{Kind: DataTypeMismatch, ValueName: name, Found: s.DataType().String()}
	}
	return typed, nil
}

func (e Heatmap) evaluate(store *data.Store, layer, neuron int, r Renderer) (string, error) {
	values, err := sliceOf[float32](store, e.Values, layer, neuron)
	if err != nil {
		return "", err
	}
	return r.Heatmap(values), nil
}

func (e Value) evaluate(store *data.Store, layer, neuron int, r Renderer) (string, error) {
	v, ok := store.Get(e.Scalar)
	if !ok {
		return "", &ArgumentError{Kind: MissingValue, Element: e.Name(), ValueName: e.Scalar}
	}
	s, err := v.SliceAt(layer, neuron)
	if err != nil {
		return "", err
	}
	return r.Value(s), nil
}

func (e FocusSequences) evaluate(store *data.Store, layer, neuron int, r Renderer) (string, error) {
	act, err := sliceOf[float32](store, e.Activations, layer, neuron)
	if err != nil {
		return "", err
	}
	steps, err := sliceOf[string](store, e.StepNames, layer, neuron)
	if err != nil {
		return "", err
	}
	return r.FocusSequences(act, steps), nil
}
