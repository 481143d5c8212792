package payload

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/template"
)

// Builder collects values, an optional rank source and the neuron template,
// and produces a Payload. A Builder is spent by Build; every later call
// fails with BUILDER_CONSUMED.
type Builder struct {
	numLayers     int
	numMLPNeurons int
	template      *template.NeuronTemplate
	store         *data.Store
	rankSource    string
	consumed      bool
}

// NewBuilder creates a builder for a network with the given dimensions.
// Both must be at least one.
func NewBuilder(numLayers, numMLPNeurons int) (*Builder, error) {
	if numLayers < 1 || numMLPNeurons < 1 {
		return nil, tserrors.ValidationErrorf(tserrors.ErrInvalidDimension,
			"num_layers and num_mlp_neurons must be at least 1, got %d and %d", numLayers, numMLPNeurons)
	}
	return &Builder{
		numLayers:     numLayers,
		numMLPNeurons: numMLPNeurons,
		store:         data.NewStore(),
	}, nil
}

// NumLayers returns the number of layers.
func (b *Builder) NumLayers() int { return b.numLayers }

// NumMLPNeurons returns the number of MLP neurons per layer.
func (b *Builder) NumMLPNeurons() int { return b.numMLPNeurons }

// SetTemplate parses source as the neuron template. It may be set once.
func (b *Builder) SetTemplate(source string) error {
	if b.consumed {
		return tserrors.BuilderConsumed("SetTemplate")
	}
	if b.template != nil {
		return tserrors.Newf(tserrors.ErrTemplateAlreadySet, "neuron template already set")
	}
	tmpl, err := template.Parse(source)
	if err != nil {
		return err
	}
	b.template = tmpl
	return nil
}

// AddValue adds a producer value. Its leading axes must match the network
// dimensions its scope indexes.
func (b *Builder) AddValue(name string, v data.Value) error {
	if b.consumed {
		return tserrors.BuilderConsumed("AddValue")
	}
	if err := checkName(name); err != nil {
		return err
	}
	if v.IsZero() {
		return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "value %q has no array", name)
	}
	if err := checkScopeShape(name, v.Scope(), v.Shape(), b.numLayers, b.numMLPNeurons); err != nil {
		return err
	}
	return b.store.Add(name, v)
}

// AddF32 adds an f32 array of the given shape.
func (b *Builder) AddF32(name string, scope data.Scope, shape []int, values []float32) error {
	return addArray(b, name, scope, shape, values)
}

// AddU32 adds a u32 array of the given shape.
func (b *Builder) AddU32(name string, scope data.Scope, shape []int, values []uint32) error {
	return addArray(b, name, scope, shape, values)
}

// AddString adds a string array of the given shape.
func (b *Builder) AddString(name string, scope data.Scope, shape []int, values []string) error {
	return addArray(b, name, scope, shape, values)
}

func addArray[T data.Element](b *Builder, name string, scope data.Scope, shape []int, values []T) error {
	if b.consumed {
		return tserrors.BuilderConsumed("AddValue")
	}
	arr, err := data.NewNDArray(shape, values)
	if err != nil {
		return tserrors.ShapeMismatch(name, shape, []int{len(values)}, err.Error())
	}
	if err := checkScopeShape(name, scope, shape, b.numLayers, b.numMLPNeurons); err != nil {
		return err
	}
	v, err := data.NewValue(arr, scope)
	if err != nil {
		return err
	}
	return b.AddValue(name, v)
}

// checkName rejects names a template could not refer to.
func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, "$(), \t\n") {
		return tserrors.Newf(tserrors.ErrInvalidName, "invalid value name %q", name).
			WithSuggestion("Value names must be non-empty and may not contain whitespace, '$', '(', ')' or ','")
	}
	return nil
}

// checkScopeShape verifies the leading axes of shape against the network
// dimensions scope indexes.
func checkScopeShape(name string, scope data.Scope, shape []int, numLayers, numMLPNeurons int) error {
	if !scope.Valid() {
		return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "value %q has invalid scope %s", name, scope)
	}
	want := []int{numLayers, numMLPNeurons}[:scope.IndexAxes()]
	if len(shape) < len(want) {
		return tserrors.ShapeMismatch(name, want, shape,
			fmt.Sprintf("%s-scoped value needs leading axes %v", scope, want))
	}
	for i := range want {
		if shape[i] != want[i] {
			return tserrors.ShapeMismatch(name, want, shape[:len(want)],
				fmt.Sprintf("%s-scoped value needs leading axes %v, got shape %v", scope, want, shape))
		}
	}
	return nil
}

// SetRankSource names the f32 value, one scalar per neuron, whose ascending
// order defines the neuron ranking.
func (b *Builder) SetRankSource(name string) error {
	if b.consumed {
		return tserrors.BuilderConsumed("SetRankSource")
	}
	v, ok := b.store.Get(name)
	if !ok {
		return tserrors.ValueNotFound(name)
	}
	if v.DataType() != data.F32 {
		return tserrors.TypeMismatch(name, data.F32.String(), v.DataType().String())
	}
	want := []int{b.numLayers, b.numMLPNeurons}
	if v.Scope() != data.Neuron || len(v.InnerShape()) != 0 {
		return tserrors.ShapeMismatch(name, want, v.Shape(),
			fmt.Sprintf("rank source must be neuron-scoped with shape %v", want))
	}
	b.rankSource = name
	return nil
}

// Build derives the ranking, validates the template and returns the
// Payload. The builder is spent afterwards whether or not Build succeeds.
func (b *Builder) Build() (*Payload, error) {
	if b.consumed {
		return nil, tserrors.BuilderConsumed("Build")
	}
	b.consumed = true

	if b.template == nil {
		return nil, tserrors.TemplateNotSet()
	}
	if b.rankSource != "" {
		if err := b.rank(); err != nil {
			return nil, err
		}
	}
	return newPayload(uuid.New(), b.numLayers, b.numMLPNeurons, b.template, b.store)
}

func (b *Builder) rank() error {
	v, _ := b.store.Get(b.rankSource)
	metric, _ := data.ArrayOf[float32](v.Array())
	rank, ranked, err := data.RankNeurons(metric)
	if err != nil {
		return err
	}
	rankValue, err := data.NewValue(rank, data.Neuron)
	if err != nil {
		return err
	}
	rankedValue, err := data.NewValue(ranked, data.Global)
	if err != nil {
		return err
	}
	if err := b.store.PutDerived(data.RankName, rankValue); err != nil {
		return err
	}
	return b.store.PutDerived(data.RankedNeuronsName, rankedValue)
}
