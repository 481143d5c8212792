// Package safetensors reads and writes the safetensors tensor container:
// an 8-byte little-endian header length, a JSON header mapping tensor names
// to dtype, shape and byte offsets, then the raw little-endian tensor data.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"sort"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Supported dtypes.
const (
	F32  = "F32"
	F16  = "F16"
	BF16 = "BF16"
	U32  = "U32"
)

// metadataKey is the reserved header entry holding free-form string metadata.
const metadataKey = "__metadata__"

// maxHeaderSize guards against reading absurd header lengths from a
// corrupt file.
const maxHeaderSize = 100 << 20

// TensorInfo describes one tensor in the header.
type TensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// File is a parsed safetensors container held in memory.
type File struct {
	tensors  map[string]TensorInfo
	metadata map[string]string
	data     []byte
}

// Open reads and parses the file at path.
func Open(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, tserrors.WrapIO(err, tserrors.ErrIOReadFailed, "failed to read safetensors file").
			WithContext("path", path)
	}
	f, err := Parse(b)
	if err != nil {
		if te, ok := tserrors.AsTScopeError(err); ok {
			return nil, te.WithContext("path", path)
		}
		return nil, err
	}
	return f, nil
}

// Parse parses an in-memory safetensors container. Every tensor's offsets
// and byte size are checked against its dtype and shape.
func Parse(b []byte) (*File, error) {
	if len(b) < 8 {
		return nil, formatError("file too short for header length")
	}
	headerSize := binary.LittleEndian.Uint64(b[:8])
	if headerSize > maxHeaderSize || headerSize > uint64(len(b)-8) {
		return nil, formatError("header length %d exceeds file size %d", headerSize, len(b))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b[8:8+headerSize], &raw); err != nil {
		return nil, tserrors.WrapIO(err, tserrors.ErrTensorFormat, "failed to parse safetensors header")
	}

	f := &File{
		tensors: make(map[string]TensorInfo, len(raw)),
		data:    b[8+headerSize:],
	}
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &f.metadata); err != nil {
				return nil, tserrors.WrapIO(err, tserrors.ErrTensorFormat, "invalid __metadata__ entry")
			}
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, tserrors.WrapIO(err, tserrors.ErrTensorFormat, "invalid tensor entry").
				WithContext("tensor", name)
		}
		if err := f.check(name, info); err != nil {
			return nil, err
		}
		f.tensors[name] = info
	}
	return f, nil
}

func (f *File) check(name string, info TensorInfo) error {
	size := elementSize(info.DType)
	if size == 0 {
		// Unknown dtypes are accepted in the header; reading them fails.
		size = 1
	}
	n := 1
	for _, d := range info.Shape {
		if d < 0 {
			return formatError("tensor %q has negative dimension", name).WithContext("tensor", name)
		}
		n *= d
	}
	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start || end > len(f.data) {
		return formatError("tensor %q offsets [%d, %d) outside data of %d bytes", name, start, end, len(f.data)).
			WithContext("tensor", name)
	}
	if elementSize(info.DType) != 0 && end-start != n*size {
		return formatError("tensor %q has %d bytes, want %d for %s%v", name, end-start, n*size, info.DType, info.Shape).
			WithContext("tensor", name)
	}
	return nil
}

// Names returns the tensor names, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.tensors))
	for name := range f.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the header entry of a tensor.
func (f *File) Info(name string) (TensorInfo, bool) {
	info, ok := f.tensors[name]
	return info, ok
}

// Metadata returns the free-form header metadata, possibly nil.
func (f *File) Metadata() map[string]string { return f.metadata }

func (f *File) lookup(name string) (TensorInfo, []byte, error) {
	info, ok := f.tensors[name]
	if !ok {
		return TensorInfo{}, nil, tserrors.IOErrorf(tserrors.ErrTensorFormat, "tensor %q not found", name).
			WithContext("tensor", name)
	}
	return info, f.data[info.DataOffsets[0]:info.DataOffsets[1]], nil
}

// Float32 decodes a floating point tensor, widening F16 and BF16 to f32.
func (f *File) Float32(name string) (shape []int, values []float32, err error) {
	info, raw, err := f.lookup(name)
	if err != nil {
		return nil, nil, err
	}

	switch info.DType {
	case F32:
		values = make([]float32, len(raw)/4)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case F16:
		values = make([]float32, len(raw)/2)
		for i := range values {
			values[i] = float16ToFloat32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case BF16:
		values = make([]float32, len(raw)/2)
		for i := range values {
			values[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(raw[i*2:])) << 16)
		}
	default:
		return nil, nil, dtypeError(name, info.DType, "F32, F16 or BF16")
	}
	return append([]int(nil), info.Shape...), values, nil
}

// Uint32 decodes a U32 tensor.
func (f *File) Uint32(name string) (shape []int, values []uint32, err error) {
	info, raw, err := f.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	if info.DType != U32 {
		return nil, nil, dtypeError(name, info.DType, U32)
	}
	values = make([]uint32, len(raw)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return append([]int(nil), info.Shape...), values, nil
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exponent := int32(h>>10) & 0x1f
	mantissa := uint32(h & 0x3ff)

	switch {
	case exponent == 0 && mantissa == 0:
		return math.Float32frombits(sign)
	case exponent == 0:
		// Subnormal: normalise the mantissa.
		exponent = 1
		for mantissa&0x400 == 0 {
			mantissa <<= 1
			exponent--
		}
		mantissa &= 0x3ff
	case exponent == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | mantissa<<13)
	}
	return math.Float32frombits(sign | uint32(exponent+127-15)<<23 | mantissa<<13)
}

func elementSize(dtype string) int {
	switch dtype {
	case F32, U32:
		return 4
	case F16, BF16:
		return 2
	}
	return 0
}

func formatError(format string, args ...interface{}) *tserrors.TScopeError {
	return tserrors.IOErrorf(tserrors.ErrTensorFormat, format, args...)
}

func dtypeError(name, found, want string) error {
	return tserrors.TypeMismatch(name, want, found)
}
