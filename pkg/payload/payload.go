// Package payload assembles the values describing a network into an
// immutable Payload and renders neurons from it.
//
// A Payload is produced by a Builder, which checks every value against the
// network dimensions, derives the neuron ranking and validates the neuron
// template once. Payloads are safe for concurrent use.
package payload

import (
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/template"
)

// Payload is the validated, read-only result of a Builder.
type Payload struct {
	id            uuid.UUID
	numLayers     int
	numMLPNeurons int
	template      *template.NeuronTemplate
	store         *data.Store
}

// newPayload validates tmpl against store and wraps the result.
func newPayload(id uuid.UUID, numLayers, numMLPNeurons int, tmpl *template.NeuronTemplate, store *data.Store) (*Payload, error) {
	if err := tmpl.Validate(store); err != nil {
		var argErr *template.ArgumentError
		if errors.As(err, &argErr) {
			return nil, argErr.Wrap()
		}
		return nil, err
	}
	return &Payload{
		id:            id,
		numLayers:     numLayers,
		numMLPNeurons: numMLPNeurons,
		template:      tmpl,
		store:         store,
	}, nil
}

// ID identifies the payload. It survives snapshot round trips.
func (p *Payload) ID() uuid.UUID { return p.id }

// NumLayers returns the number of layers.
func (p *Payload) NumLayers() int { return p.numLayers }

// NumMLPNeurons returns the number of MLP neurons per layer.
func (p *Payload) NumMLPNeurons() int { return p.numMLPNeurons }

// Template returns the validated neuron template.
func (p *Payload) Template() *template.NeuronTemplate { return p.template }

// Value returns the named value.
func (p *Payload) Value(name string) (data.Value, bool) { return p.store.Get(name) }

// ValueNames returns the names of all values, sorted.
func (p *Payload) ValueNames() []string { return p.store.Names() }

// Ranked reports whether a ranking was derived at build time.
func (p *Payload) Ranked() bool {
	_, ok := p.store.Get(data.RankedNeuronsName)
	return ok
}

// RankedNeurons returns the (layers, neurons) table whose row l lists the
// neurons of layer l in ascending metric order. ok is false when the payload
// was built without a rank source.
func (p *Payload) RankedNeurons() (table *data.NDArray[uint32], ok bool) {
	v, found := p.store.Get(data.RankedNeuronsName)
	if !found {
		return nil, false
	}
	return data.ArrayOf[uint32](v.Array())
}

// LayerOrder returns the neurons of layer in display order: ranked order
// when a ranking exists, index order otherwise.
func (p *Payload) LayerOrder(layer int) ([]uint32, error) {
	if err := p.CheckCoordinates(layer, 0); err != nil {
		return nil, err
	}
	if table, ok := p.RankedNeurons(); ok {
		row, err := table.Index(layer)
		if err != nil {
			return nil, err
		}
		return append([]uint32(nil), row.Data()...), nil
	}
	order := make([]uint32, p.numMLPNeurons)
	for n := range order {
		order[n] = uint32(n)
	}
	return order, nil
}

// CheckCoordinates returns an error unless (layer, neuron) addresses a
// neuron of the payload.
func (p *Payload) CheckCoordinates(layer, neuron int) error {
	if layer < 0 || layer >= p.numLayers {
		return tserrors.CoordinateOutOfRange("layer", layer, p.numLayers)
	}
	if neuron < 0 || neuron >= p.numMLPNeurons {
		return tserrors.CoordinateOutOfRange("neuron", neuron, p.numMLPNeurons)
	}
	return nil
}

// RenderNeuron evaluates the neuron template for (layer, neuron) with r.
func (p *Payload) RenderNeuron(layer, neuron int, r template.Renderer) (string, error) {
	if err := p.CheckCoordinates(layer, neuron); err != nil {
		return "", err
	}
	out, err := p.template.Evaluate(p.store, layer, neuron, r)
	if err != nil {
		log.Printf("[payload] render L%d/N%d failed: %v", layer, neuron, err)
		return "", tserrors.WrapInternal(err, tserrors.ErrInternalError, "rendering validated template failed")
	}
	return out, nil
}
