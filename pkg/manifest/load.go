package manifest

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/safetensors"
)

// load reads the array of one value from its source. Opened safetensors
// files are cached in tensors.
func (m *Manifest) load(spec ValueSpec, tensors map[string]*safetensors.File) (data.Array, error) {
	if spec.Safetensors != "" {
		return m.loadTensor(spec, tensors)
	}

	node := &spec.Data
	if spec.File != "" {
		raw, err := os.ReadFile(m.path(spec.File))
		if err != nil {
			return nil, tserrors.WrapIO(err, tserrors.ErrIOReadFailed, "failed to read value file").
				WithContext("name", spec.Name).
				WithContext("path", m.path(spec.File))
		}
		// JSON is a subset of YAML, so one decoder serves both.
		node = &yaml.Node{}
		if err := yaml.Unmarshal(raw, node); err != nil {
			return nil, tserrors.WrapIO(err, tserrors.ErrManifestInvalid, "failed to parse value file").
				WithContext("name", spec.Name).
				WithContext("path", m.path(spec.File))
		}
	}

	dtype := data.F32
	if spec.Type != "" {
		var err error
		if dtype, err = data.ParseDataType(spec.Type); err != nil {
			return nil, err
		}
	}

	shape, leaves, ferr := flatten(node)
	if ferr != nil {
		ferr.Message = fmt.Sprintf("value %q: %s", spec.Name, ferr.Message)
		return nil, ferr.WithContext("name", spec.Name)
	}
	if spec.Shape != nil {
		shape = spec.Shape
	}

	switch dtype {
	case data.F32:
		values := make([]float32, len(leaves))
		for i, leaf := range leaves {
			f, err := parseF32(leaf.Value)
			if err != nil {
				return nil, scalarError(spec.Name, leaf, "f32")
			}
			values[i] = f
		}
		return asArray(data.NewNDArray(shape, values))
	case data.U32:
		values := make([]uint32, len(leaves))
		for i, leaf := range leaves {
			u, err := strconv.ParseUint(leaf.Value, 10, 32)
			if err != nil {
				return nil, scalarError(spec.Name, leaf, "u32")
			}
			values[i] = uint32(u)
		}
		return asArray(data.NewNDArray(shape, values))
	default:
		values := make([]string, len(leaves))
		for i, leaf := range leaves {
			values[i] = leaf.Value
		}
		return asArray(data.NewNDArray(shape, values))
	}
}

func (m *Manifest) loadTensor(spec ValueSpec, tensors map[string]*safetensors.File) (data.Array, error) {
	path := m.path(spec.Safetensors)
	f, ok := tensors[path]
	if !ok {
		var err error
		if f, err = safetensors.Open(path); err != nil {
			return nil, err
		}
		tensors[path] = f
	}

	info, ok := f.Info(spec.Tensor)
	if !ok {
		return nil, invalid("value %q: tensor %q not in %s", spec.Name, spec.Tensor, spec.Safetensors).
			WithContext("name", spec.Name)
	}
	dtype := data.F32
	if info.DType == safetensors.U32 {
		dtype = data.U32
	}
	if spec.Type != "" {
		want, err := data.ParseDataType(spec.Type)
		if err != nil {
			return nil, err
		}
		if want != dtype {
			return nil, tserrors.TypeMismatch(spec.Name, want.String(), info.DType)
		}
	}

	if dtype == data.U32 {
		shape, values, err := f.Uint32(spec.Tensor)
		if err != nil {
			return nil, err
		}
		return asArray(data.NewNDArray(reshape(shape, spec.Shape), values))
	}
	shape, values, err := f.Float32(spec.Tensor)
	if err != nil {
		return nil, err
	}
	return asArray(data.NewNDArray(reshape(shape, spec.Shape), values))
}

func asArray[T data.Element](a *data.NDArray[T], err error) (data.Array, error) {
	if err != nil {
		return nil, err
	}
	return a, nil
}

func reshape(shape, override []int) []int {
	if override != nil {
		return override
	}
	return shape
}

// flatten returns the shape implied by nested sequences and the scalar
// leaves in row-major order. Sibling lists must have equal shapes.
func flatten(node *yaml.Node) ([]int, []*yaml.Node, *tserrors.TScopeError) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil, invalid("empty document")
		}
		return flatten(node.Content[0])
	case yaml.AliasNode:
		return flatten(node.Alias)
	case yaml.ScalarNode:
		return []int{}, []*yaml.Node{node}, nil
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return []int{0}, nil, nil
		}
		var inner []int
		var leaves []*yaml.Node
		for i, child := range node.Content {
			shape, childLeaves, err := flatten(child)
			if err != nil {
				return nil, nil, err
			}
			if i == 0 {
				inner = shape
			} else if !equalShape(inner, shape) {
				return nil, nil, invalid("ragged list at line %d: element %d has shape %v, want %v",
					child.Line, i, shape, inner)
			}
			leaves = append(leaves, childLeaves...)
		}
		return append([]int{len(node.Content)}, inner...), leaves, nil
	case 0:
		return nil, nil, invalid("no data")
	default:
		return nil, nil, invalid("line %d: data must be a scalar or nested lists", node.Line)
	}
}

func equalShape(a, b []int) bool {
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

// parseF32 accepts decimal floats plus the YAML spellings of NaN and the
// infinities.
func parseF32(s string) (float32, error) {
	switch strings.ToLower(s) {
	case ".nan", "nan":
		return float32(math.NaN()), nil
	case ".inf", "+.inf", "inf", "+inf":
		return float32(math.Inf(1)), nil
	case "-.inf", "-inf":
		return float32(math.Inf(-1)), nil
	}
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

func scalarError(name string, leaf *yaml.Node, want string) error {
	return invalid("value %q: line %d: %q is not a valid %s", name, leaf.Line, leaf.Value, want).
		WithContext("name", name)
}
