package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"sort"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Tensor is an in-memory tensor to encode. Exactly one of F32 and U32 is
// used, selected by DType.
type Tensor struct {
	DType string
	Shape []int
	F32   []float32
	U32   []uint32
}

// Encode serialises tensors with names in sorted order.
func Encode(tensors map[string]Tensor) ([]byte, error) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]TensorInfo, len(tensors))
	offset := 0
	for _, name := range names {
		t := tensors[name]
		n := 1
		for _, d := range t.Shape {
			n *= d
		}
		var size int
		switch t.DType {
		case F32:
			size = len(t.F32) * 4
			if len(t.F32) != n {
				return nil, formatError("tensor %q has %d values for shape %v", name, len(t.F32), t.Shape)
			}
		case U32:
			size = len(t.U32) * 4
			if len(t.U32) != n {
				return nil, formatError("tensor %q has %d values for shape %v", name, len(t.U32), t.Shape)
			}
		default:
			return nil, formatError("cannot encode dtype %s", t.DType)
		}
		header[name] = TensorInfo{DType: t.DType, Shape: t.Shape, DataOffsets: [2]int{offset, offset + size}}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, tserrors.WrapInternal(err, tserrors.ErrInternalError, "failed to encode safetensors header")
	}

	out := make([]byte, 8+len(headerJSON)+offset)
	binary.LittleEndian.PutUint64(out, uint64(len(headerJSON)))
	copy(out[8:], headerJSON)
	body := out[8+len(headerJSON):]
	for _, name := range names {
		t := tensors[name]
		dst := body[header[name].DataOffsets[0]:]
		switch t.DType {
		case F32:
			for i, v := range t.F32 {
				binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
			}
		case U32:
			for i, v := range t.U32 {
				binary.LittleEndian.PutUint32(dst[i*4:], v)
			}
		}
	}
	return out, nil
}

// Save encodes tensors and writes them to path.
func Save(path string, tensors map[string]Tensor) error {
	b, err := Encode(tensors)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write safetensors file").
			WithContext("path", path)
	}
	return nil
}
