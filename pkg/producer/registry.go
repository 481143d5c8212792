// Package producer exposes the payload builder through integer handles and
// JSON results, for callers that cannot hold Go pointers such as the C ABI
// in cmd/tscope-cabi.
//
// Every operation returns a Result. Builders and payloads live in the
// Registry until they are freed; Build consumes its builder handle whether
// or not it succeeds.
package producer

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
	"github.com/albertsgarde/transformerscope/pkg/render"
)

// Handle identifies a builder or payload held by a Registry. Zero is never
// issued.
type Handle uint64

// Result is the JSON envelope every operation returns.
type Result struct {
	OK     bool        `json:"ok"`
	Handle Handle      `json:"handle,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo carries a failed operation's error code and message.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// JSON encodes r. Encoding a Result cannot fail for the data types the
// registry produces.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"ok":false,"error":{"code":%q,"message":%q}}`,
			tserrors.ErrInternalError, err.Error())
	}
	return string(b)
}

func ok(h Handle, d interface{}) Result {
	return Result{OK: true, Handle: h, Data: d}
}

func failed(err error) Result {
	te, isTScope := tserrors.AsTScopeError(err)
	if !isTScope {
		te = tserrors.WrapInternal(err, tserrors.ErrInternalError, err.Error())
	}
	return Result{Error: &ErrorInfo{Code: te.Code, Message: te.Message, Context: te.Context}}
}

// Registry owns builders and payloads addressed by handle. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	next     Handle
	builders map[Handle]*payload.Builder
	payloads map[Handle]*payload.Payload
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[Handle]*payload.Builder),
		payloads: make(map[Handle]*payload.Payload),
	}
}

func (r *Registry) issue() Handle {
	r.next++
	return r.next
}

func (r *Registry) builder(h Handle) (*payload.Builder, error) {
	b, found := r.builders[h]
	if !found {
		return nil, tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "unknown builder handle %d", h)
	}
	return b, nil
}

func (r *Registry) payload(h Handle) (*payload.Payload, error) {
	pl, found := r.payloads[h]
	if !found {
		return nil, tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "unknown payload handle %d", h)
	}
	return pl, nil
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.builders) + len(r.payloads)
}

// -----------------------------------------------------------------------------
// Builder Operations
// -----------------------------------------------------------------------------

// NewBuilder starts a payload for a network of the given dimensions.
func (r *Registry) NewBuilder(numLayers, numMLPNeurons int) Result {
	b, err := payload.NewBuilder(numLayers, numMLPNeurons)
	if err != nil {
		return failed(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.issue()
	r.builders[h] = b
	return ok(h, nil)
}

// SetTemplate sets the neuron template of builder h.
func (r *Registry) SetTemplate(h Handle, source string) Result {
	return r.withBuilder(h, func(b *payload.Builder) error {
		return b.SetTemplate(source)
	})
}

// SetRankSource names the f32 neuron value that ranks neurons.
func (r *Registry) SetRankSource(h Handle, name string) Result {
	return r.withBuilder(h, func(b *payload.Builder) error {
		return b.SetRankSource(name)
	})
}

// ValueSpec is the JSON form of a value passed to AddValue. Data holds the
// elements flattened in row-major order; a missing Shape means 1-D. f32
// elements may be numbers or the strings "NaN", "+Inf" and "-Inf".
type ValueSpec struct {
	Name  string            `json:"name"`
	Scope string            `json:"scope"`
	// Type defaults to f32.
	Type  string            `json:"type"`
	Shape []int             `json:"shape"`
	Data  []json.RawMessage `json:"data"`
}

// AddValue decodes specJSON as a ValueSpec and adds it to builder h.
func (r *Registry) AddValue(h Handle, specJSON []byte) Result {
	var spec ValueSpec
	if err := json.Unmarshal(specJSON, &spec); err != nil {
		return failed(tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "invalid value JSON: %v", err))
	}
	return r.withBuilder(h, func(b *payload.Builder) error {
		return addSpec(b, spec)
	})
}

func addSpec(b *payload.Builder, spec ValueSpec) error {
	scope, err := data.ParseScope(spec.Scope)
	if err != nil {
		return err
	}
	dtype := data.F32
	if spec.Type != "" {
		if dtype, err = data.ParseDataType(spec.Type); err != nil {
			return err
		}
	}
	if spec.Shape == nil {
		spec.Shape = []int{len(spec.Data)}
	}

	switch dtype {
	case data.F32:
		values := make([]float32, len(spec.Data))
		for i, raw := range spec.Data {
			if values[i], err = decodeF32(raw); err != nil {
				return elementError(spec.Name, i, raw, "f32")
			}
		}
		return b.AddF32(spec.Name, scope, spec.Shape, values)
	case data.U32:
		values := make([]uint32, len(spec.Data))
		for i, raw := range spec.Data {
			if err := json.Unmarshal(raw, &values[i]); err != nil {
				return elementError(spec.Name, i, raw, "u32")
			}
		}
		return b.AddU32(spec.Name, scope, spec.Shape, values)
	default:
		values := make([]string, len(spec.Data))
		for i, raw := range spec.Data {
			if err := json.Unmarshal(raw, &values[i]); err != nil {
				return elementError(spec.Name, i, raw, "string")
			}
		}
		return b.AddString(spec.Name, scope, spec.Shape, values)
	}
}

func decodeF32(raw json.RawMessage) (float32, error) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		switch s {
		case "NaN":
			return float32(math.NaN()), nil
		case "+Inf", "Inf":
			return float32(math.Inf(1)), nil
		case "-Inf":
			return float32(math.Inf(-1)), nil
		}
		return 0, fmt.Errorf("unknown float %q", s)
	}
	var f float32
	err := json.Unmarshal(raw, &f)
	return f, err
}

func elementError(name string, i int, raw json.RawMessage, want string) error {
	return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument,
		"value %q: element %d (%s) is not a valid %s", name, i, raw, want).WithContext("name", name)
}

func (r *Registry) withBuilder(h Handle, fn func(*payload.Builder) error) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.builder(h)
	if err != nil {
		return failed(err)
	}
	if err := fn(b); err != nil {
		return failed(err)
	}
	return ok(h, nil)
}

// Build finishes builder h and returns a new payload handle. The builder
// handle is released even when Build fails.
func (r *Registry) Build(h Handle) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.builder(h)
	if err != nil {
		return failed(err)
	}
	delete(r.builders, h)

	pl, err := b.Build()
	if err != nil {
		return failed(err)
	}
	ph := r.issue()
	r.payloads[ph] = pl
	return ok(ph, nil)
}

// -----------------------------------------------------------------------------
// Payload Operations
// -----------------------------------------------------------------------------

// Info is the data of an Info result.
type Info struct {
	ID            string   `json:"id"`
	NumLayers     int      `json:"numLayers"`
	NumMLPNeurons int      `json:"numMlpNeurons"`
	Ranked        bool     `json:"ranked"`
	Values        []string `json:"values"`
}

// Info describes payload h.
func (r *Registry) Info(h Handle) Result {
	return r.withPayload(h, func(pl *payload.Payload) (interface{}, error) {
		return Info{
			ID:            pl.ID().String(),
			NumLayers:     pl.NumLayers(),
			NumMLPNeurons: pl.NumMLPNeurons(),
			Ranked:        pl.Ranked(),
			Values:        pl.ValueNames(),
		}, nil
	})
}

// Save writes payload h as a snapshot at path.
func (r *Registry) Save(h Handle, path string) Result {
	return r.withPayload(h, func(pl *payload.Payload) (interface{}, error) {
		return nil, pl.Save(path)
	})
}

// Load reads the snapshot at path and returns a new payload handle.
func (r *Registry) Load(path string) Result {
	pl, err := payload.Load(path)
	if err != nil {
		return failed(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.issue()
	r.payloads[h] = pl
	return ok(h, nil)
}

// RenderNeuron renders one neuron of payload h to HTML. The data is the
// rendered fragment.
func (r *Registry) RenderNeuron(h Handle, layer, neuron int) Result {
	return r.withPayload(h, func(pl *payload.Payload) (interface{}, error) {
		return pl.RenderNeuron(layer, neuron, render.NewHTMLRenderer(render.DefaultHeatmapScale))
	})
}

// Free releases builder or payload h.
func (r *Registry) Free(h Handle) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.builders[h]; found {
		delete(r.builders, h)
		return ok(h, nil)
	}
	if _, found := r.payloads[h]; found {
		delete(r.payloads, h)
		return ok(h, nil)
	}
	return failed(tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "unknown handle %d", h))
}

func (r *Registry) withPayload(h Handle, fn func(*payload.Payload) (interface{}, error)) Result {
	r.mu.Lock()
	pl, err := r.payload(h)
	r.mu.Unlock()
	if err != nil {
		return failed(err)
	}
	d, err := fn(pl)
	if err != nil {
		return failed(err)
	}
	return ok(h, d)
}
