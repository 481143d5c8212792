package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/template"
)

// Snapshot layout:
//
//	header: magic "TSCP" | version u16 | reserved u16 | crc32(body) u32 | body length u64
//	body:   id [16] | layers u32 | neurons u32 | template str | count u32 | values...
//	value:  name str | scope u8 | dtype u8 | ndim u8 | dims u32... | elements
//
// All integers are little endian; str is a u32 length followed by bytes.
// Values are written in name order so equal payloads encode identically.

// SnapshotMagic identifies snapshot files.
var SnapshotMagic = [4]byte{'T', 'S', 'C', 'P'}

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

type snapshotHeader struct {
	Magic    [4]byte
	Version  uint16
	Reserved uint16
	Checksum uint32
	Length   uint64
}

const snapshotHeaderSize = 20

// MarshalBinary encodes the payload as a snapshot.
func (p *Payload) MarshalBinary() ([]byte, error) {
	var body bytes.Buffer
	w := &snapshotWriter{buf: &body}

	w.raw(p.id[:])
	w.u32(uint32(p.numLayers))
	w.u32(uint32(p.numMLPNeurons))
	w.str(p.template.Source())

	names := p.store.Names()
	w.u32(uint32(len(names)))
	for _, name := range names {
		v, _ := p.store.Get(name)
		w.value(name, v)
	}
	if w.err != nil {
		return nil, tserrors.WrapIO(w.err, tserrors.ErrIOWriteFailed, "encoding snapshot failed")
	}

	header := snapshotHeader{
		Magic:    SnapshotMagic,
		Version:  SnapshotVersion,
		Checksum: crc32.ChecksumIEEE(body.Bytes()),
		Length:   uint64(body.Len()),
	}
	out := bytes.NewBuffer(make([]byte, 0, snapshotHeaderSize+body.Len()))
	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return nil, tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "encoding snapshot header failed")
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// Unmarshal decodes a snapshot. Decoded values go through the same checks
// as Builder input, so a snapshot that decodes is a valid Payload.
func Unmarshal(b []byte) (*Payload, error) {
	if len(b) < snapshotHeaderSize {
		return nil, tserrors.SnapshotCorrupt("too short for header")
	}
	var header snapshotHeader
	if err := binary.Read(bytes.NewReader(b[:snapshotHeaderSize]), binary.LittleEndian, &header); err != nil {
		return nil, tserrors.SnapshotCorrupt(err.Error())
	}
	if header.Magic != SnapshotMagic {
		return nil, tserrors.SnapshotCorrupt("bad magic")
	}
	if header.Version != SnapshotVersion {
		return nil, tserrors.Newf(tserrors.ErrSnapshotVersion,
			"snapshot version %d is not supported (want %d)", header.Version, SnapshotVersion)
	}
	body := b[snapshotHeaderSize:]
	if uint64(len(body)) != header.Length {
		return nil, tserrors.SnapshotCorrupt(fmt.Sprintf("body is %d bytes, header says %d", len(body), header.Length))
	}
	if crc32.ChecksumIEEE(body) != header.Checksum {
		return nil, tserrors.SnapshotCorrupt("checksum mismatch")
	}

	r := &snapshotReader{r: bytes.NewReader(body)}
	var id uuid.UUID
	r.raw(id[:])
	numLayers := int(r.u32())
	numMLPNeurons := int(r.u32())
	source := r.str()
	count := r.u32()
	if r.err != nil {
		return nil, tserrors.SnapshotCorrupt(r.err.Error())
	}
	if numLayers < 1 || numMLPNeurons < 1 {
		return nil, tserrors.SnapshotCorrupt("invalid dimensions")
	}

	store := data.NewStore()
	for i := uint32(0); i < count; i++ {
		name, v := r.value()
		if r.err != nil {
			return nil, tserrors.SnapshotCorrupt(fmt.Sprintf("value %d: %v", i, r.err))
		}
		if !data.IsReserved(name) {
			if err := checkName(name); err != nil {
				return nil, tserrors.SnapshotCorrupt(err.Error())
			}
		}
		if err := checkScopeShape(name, v.Scope(), v.Shape(), numLayers, numMLPNeurons); err != nil {
			return nil, tserrors.SnapshotCorrupt(err.Error())
		}
		add := store.Add
		if data.IsReserved(name) {
			add = store.PutDerived
		}
		if err := add(name, v); err != nil {
			return nil, tserrors.SnapshotCorrupt(err.Error())
		}
	}
	if r.r.Len() != 0 {
		return nil, tserrors.SnapshotCorrupt("trailing bytes")
	}
	if err := checkRanking(store, numLayers, numMLPNeurons); err != nil {
		return nil, tserrors.SnapshotCorrupt(err.Error())
	}

	tmpl, err := template.Parse(source)
	if err != nil {
		return nil, tserrors.Wrapf(err, tserrors.ErrSnapshotCorrupt, "snapshot template does not parse")
	}
	return newPayload(id, numLayers, numMLPNeurons, tmpl, store)
}

// checkRanking verifies the derived ranking values. rank and ranked_neurons
// are stored together as (layers, neurons) u32 arrays that invert each
// other along the neuron axis.
func checkRanking(store *data.Store, numLayers, numMLPNeurons int) error {
	rankValue, hasRank := store.Get(data.RankName)
	rankedValue, hasRanked := store.Get(data.RankedNeuronsName)
	if !hasRank && !hasRanked {
		return nil
	}
	if hasRank != hasRanked {
		return fmt.Errorf("%s and %s must be stored together", data.RankName, data.RankedNeuronsName)
	}

	rank, ok := data.ArrayOf[uint32](rankValue.Array())
	if !ok || rankValue.Scope() != data.Neuron || !hasShape(rank.Shape(), numLayers, numMLPNeurons) {
		return fmt.Errorf("%s must be a neuron-scoped u32 array of shape [%d %d], got %s %s%v",
			data.RankName, numLayers, numMLPNeurons, rankValue.Scope(), rankValue.DataType(), rankValue.Shape())
	}
	ranked, ok := data.ArrayOf[uint32](rankedValue.Array())
	if !ok || rankedValue.Scope() != data.Global || !hasShape(ranked.Shape(), numLayers, numMLPNeurons) {
		return fmt.Errorf("%s must be a global u32 array of shape [%d %d], got %s %s%v",
			data.RankedNeuronsName, numLayers, numMLPNeurons, rankedValue.Scope(), rankedValue.DataType(), rankedValue.Shape())
	}

	rankData, rankedData := rank.Data(), ranked.Data()
	for l := 0; l < numLayers; l++ {
		row := l * numMLPNeurons
		for n := 0; n < numMLPNeurons; n++ {
			r := rankData[row+n]
			if int(r) >= numMLPNeurons || rankedData[row+int(r)] != uint32(n) {
				return fmt.Errorf("%s and %s disagree at layer %d, neuron %d",
					data.RankName, data.RankedNeuronsName, l, n)
			}
		}
	}
	return nil
}

func hasShape(shape []int, numLayers, numMLPNeurons int) bool {
	return len(shape) == 2 && shape[0] == numLayers && shape[1] == numMLPNeurons
}

// WriteTo writes the snapshot encoding of p to w.
func (p *Payload) WriteTo(w io.Writer) (int64, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Save writes the snapshot to path, replacing any existing file.
func (p *Payload) Save(path string) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to create snapshot directory").
				WithContext("path", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write snapshot").
			WithContext("path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return tserrors.WrapIO(err, tserrors.ErrIOWriteFailed, "failed to write snapshot").
			WithContext("path", path)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*Payload, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, tserrors.WrapIO(err, tserrors.ErrIOReadFailed, "failed to read snapshot").
			WithContext("path", path)
	}
	p, err := Unmarshal(b)
	if err != nil {
		if te, ok := tserrors.AsTScopeError(err); ok {
			te.WithContext("path", path)
		}
		return nil, err
	}
	return p, nil
}

// -----------------------------------------------------------------------------
// Encoding helpers
// -----------------------------------------------------------------------------

type snapshotWriter struct {
	buf *bytes.Buffer
	err error
}

func (w *snapshotWriter) raw(b []byte) { w.buf.Write(b) }

func (w *snapshotWriter) u8(v uint8) { w.buf.WriteByte(v) }

func (w *snapshotWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *snapshotWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *snapshotWriter) value(name string, v data.Value) {
	shape := v.Shape()
	w.str(name)
	w.u8(uint8(v.Scope()))
	w.u8(uint8(v.DataType()))
	w.u8(uint8(len(shape)))
	for _, d := range shape {
		w.u32(uint32(d))
	}
	switch a := v.Array().(type) {
	case *data.NDArray[float32]:
		w.write(a.Data())
	case *data.NDArray[uint32]:
		w.write(a.Data())
	case *data.NDArray[string]:
		for _, s := range a.Data() {
			w.str(s)
		}
	}
}

func (w *snapshotWriter) write(v any) {
	if w.err == nil {
		w.err = binary.Write(w.buf, binary.LittleEndian, v)
	}
}

type snapshotReader struct {
	r   *bytes.Reader
	err error
}

func (r *snapshotReader) raw(b []byte) {
	if r.err == nil {
		_, r.err = io.ReadFull(r.r, b)
	}
}

func (r *snapshotReader) u8() uint8 {
	var b [1]byte
	r.raw(b[:])
	return b[0]
}

func (r *snapshotReader) u32() uint32 {
	var b [4]byte
	r.raw(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (r *snapshotReader) str() string {
	n := r.u32()
	if !r.fits(uint64(n)) {
		return ""
	}
	b := make([]byte, n)
	r.raw(b)
	return string(b)
}

// fits reports whether n more bytes remain, recording an error otherwise.
func (r *snapshotReader) fits(n uint64) bool {
	if r.err != nil {
		return false
	}
	if n > uint64(r.r.Len()) {
		r.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (r *snapshotReader) value() (string, data.Value) {
	name := r.str()
	scope := data.Scope(r.u8())
	dtype := data.DataType(r.u8())
	ndim := int(r.u8())
	shape := make([]int, ndim)
	count := uint64(1)
	for i := range shape {
		d := r.u32()
		shape[i] = int(d)
		count *= uint64(d)
	}
	if r.err != nil {
		return "", data.Value{}
	}
	if !scope.Valid() || !dtype.Valid() {
		r.err = fmt.Errorf("invalid scope %d or dtype %d", scope, dtype)
		return "", data.Value{}
	}

	var arr data.Array
	var err error
	switch dtype {
	case data.F32:
		if !r.fits(count * 4) {
			return "", data.Value{}
		}
		values := make([]float32, count)
		r.err = binary.Read(r.r, binary.LittleEndian, values)
		arr, err = data.NewNDArray(shape, values)
	case data.U32:
		if !r.fits(count * 4) {
			return "", data.Value{}
		}
		values := make([]uint32, count)
		r.err = binary.Read(r.r, binary.LittleEndian, values)
		arr, err = data.NewNDArray(shape, values)
	case data.String:
		// Every string carries at least its 4-byte length.
		if !r.fits(count * 4) {
			return "", data.Value{}
		}
		values := make([]string, count)
		for i := range values {
			values[i] = r.str()
		}
		arr, err = data.NewNDArray(shape, values)
	}
	if r.err != nil {
		return "", data.Value{}
	}
	if err != nil {
		r.err = err
		return "", data.Value{}
	}
	v, err := data.NewValue(arr, scope)
	if err != nil {
		r.err = err
	}
	return name, v
}
