package export

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/albertsgarde/transformerscope/pkg/data"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

// HashAlgorithm identifies the hashing algorithm used for fingerprints.
const HashAlgorithm = "SHA-256"

// Fingerprint identifies a payload's content. Unlike the payload ID it is
// the same for every build of the same data, so it shows whether two
// snapshots hold identical dimensions, template and values.
type Fingerprint struct {
	// Hash is the hex-encoded digest.
	Hash string `json:"hash" yaml:"hash"`

	// Algorithm identifies the hashing algorithm used.
	Algorithm string `json:"algorithm" yaml:"algorithm"`
}

// ShortHash returns the first 12 characters of the hash.
func (f Fingerprint) ShortHash() string {
	if len(f.Hash) < 12 {
		return f.Hash
	}
	return f.Hash[:12]
}

// ComputeFingerprint hashes the dimensions, the template source and every
// value in name order. Derived ranking values are included, so ranked and
// unranked builds of the same data differ.
func ComputeFingerprint(pl *payload.Payload) Fingerprint {
	h := sha256.New()
	writeUint(h, uint64(pl.NumLayers()))
	writeUint(h, uint64(pl.NumMLPNeurons()))
	writeString(h, pl.Template().Source())

	for _, name := range pl.ValueNames() {
		v, _ := pl.Value(name)
		writeString(h, name)
		h.Write([]byte{byte(v.Scope()), byte(v.DataType())})
		shape := v.Shape()
		writeUint(h, uint64(len(shape)))
		for _, d := range shape {
			writeUint(h, uint64(d))
		}
		writeElements(h, v.Array())
	}

	return Fingerprint{Hash: hex.EncodeToString(h.Sum(nil)), Algorithm: HashAlgorithm}
}

func writeElements(h hash.Hash, a data.Array) {
	switch arr := a.(type) {
	case *data.NDArray[float32]:
		for _, f := range arr.Data() {
			writeUint(h, uint64(math.Float32bits(f)))
		}
	case *data.NDArray[uint32]:
		for _, u := range arr.Data() {
			writeUint(h, uint64(u))
		}
	case *data.NDArray[string]:
		for _, s := range arr.Data() {
			writeString(h, s)
		}
	}
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// writeString length-prefixes s so adjacent strings cannot collide.
func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}
