package data

import (
	"math"
	"testing"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// -----------------------------------------------------------------------------
// NDArray Tests
// -----------------------------------------------------------------------------

func TestNewNDArrayShapeCheck(t *testing.T) {
	if _, err := NewNDArray([]int{2, 3}, make([]float32, 5)); !tserrors.IsCode(err, tserrors.ErrShapeMismatch) {
		t.Errorf("expected SHAPE_MISMATCH, got %v", err)
	}
	if _, err := NewNDArray([]int{2, -1}, []float32{}); !tserrors.IsCode(err, tserrors.ErrShapeMismatch) {
		t.Errorf("expected SHAPE_MISMATCH for negative dimension, got %v", err)
	}
	a, err := NewNDArray([]int{2, 3}, make([]uint32, 6))
	if err != nil {
		t.Fatalf("NewNDArray: %v", err)
	}
	if a.DataType() != U32 || a.NDim() != 2 || a.Len() != 6 {
		t.Errorf("unexpected array %v", a)
	}
}

func TestIndexReturnsTrailingView(t *testing.T) {
	data := make([]float32, 2*3*4)
	for i := range data {
		data[i] = float32(i)
	}
	a, _ := NewNDArray([]int{2, 3, 4}, data)

	v, err := a.Index(1, 2)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if got := v.Shape(); len(got) != 1 || got[0] != 4 {
		t.Fatalf("shape = %v, want [4]", got)
	}
	for k := 0; k < 4; k++ {
		if v.At(k) != a.At(1, 2, k) {
			t.Errorf("view[%d] = %v, want %v", k, v.At(k), a.At(1, 2, k))
		}
	}

	if _, err := a.Index(2); !tserrors.IsCode(err, tserrors.ErrCoordinateOutOfRange) {
		t.Errorf("expected out of range, got %v", err)
	}
	if _, err := a.Index(0, 0, 0, 0); err == nil {
		t.Error("expected error indexing too many axes")
	}
}

func TestEqualTreatsNaNAsEqual(t *testing.T) {
	nan := float32(math.NaN())
	a, _ := NewNDArray([]int{2}, []float32{1, nan})
	b, _ := NewNDArray([]int{2}, []float32{1, nan})
	c, _ := NewNDArray([]int{1, 2}, []float32{1, nan})
	if !a.Equal(b) {
		t.Error("expected equal arrays")
	}
	if a.Equal(c) {
		t.Error("arrays with different shapes must differ")
	}
}

// -----------------------------------------------------------------------------
// Value Tests
// -----------------------------------------------------------------------------

func TestSliceAtFollowsScope(t *testing.T) {
	const L, N = 2, 3
	neuronData := make([]float32, L*N*4*5)
	for i := range neuronData {
		neuronData[i] = float32(i)
	}
	neuronArr, _ := NewNDArray([]int{L, N, 4, 5}, neuronData)
	layerArr, _ := NewNDArray([]int{L, 7}, make([]uint32, L*7))
	globalArr, _ := NewNDArray([]int{9}, make([]string, 9))

	tests := []struct {
		name  string
		array Array
		scope Scope
		want  []int
	}{
		{"neuron", neuronArr, Neuron, []int{4, 5}},
		{"layer", layerArr, Layer, []int{7}},
		{"global", globalArr, Global, []int{9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewValue(tt.array, tt.scope)
			if err != nil {
				t.Fatalf("NewValue: %v", err)
			}
			if !sameShape(v.InnerShape(), tt.want) {
				t.Errorf("InnerShape() = %v, want %v", v.InnerShape(), tt.want)
			}
			for l := 0; l < L; l++ {
				for n := 0; n < N; n++ {
					s, err := v.SliceAt(l, n)
					if err != nil {
						t.Fatalf("SliceAt(%d, %d): %v", l, n, err)
					}
					if !sameShape(s.Shape(), tt.want) {
						t.Errorf("SliceAt(%d, %d) shape = %v, want %v", l, n, s.Shape(), tt.want)
					}
				}
			}
		})
	}

	v, _ := NewValue(neuronArr, Neuron)
	s, _ := v.SliceAt(1, 2)
	view, ok := ArrayOf[float32](s)
	if !ok {
		t.Fatal("expected f32 view")
	}
	if view.At(3, 4) != neuronArr.At(1, 2, 3, 4) {
		t.Errorf("view element = %v, want %v", view.At(3, 4), neuronArr.At(1, 2, 3, 4))
	}
}

func TestNewValueRequiresIndexAxes(t *testing.T) {
	a, _ := NewNDArray([]int{3}, make([]float32, 3))
	if _, err := NewValue(a, Neuron); !tserrors.IsCode(err, tserrors.ErrShapeMismatch) {
		t.Errorf("expected SHAPE_MISMATCH, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// Store Tests
// -----------------------------------------------------------------------------

func TestStoreAdd(t *testing.T) {
	s := NewStore()
	v, _ := NewValue(Scalar[float32](1), Global)

	if err := s.Add("a", v); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("a", v); !tserrors.IsCode(err, tserrors.ErrDuplicateName) {
		t.Errorf("expected DUPLICATE_NAME, got %v", err)
	}
	for _, name := range []string{RankName, RankedNeuronsName} {
		if err := s.Add(name, v); !tserrors.IsCode(err, tserrors.ErrDuplicateName) {
			t.Errorf("Add(%q): expected DUPLICATE_NAME, got %v", name, err)
		}
	}
	if err := s.PutDerived("a2", v); !tserrors.IsCode(err, tserrors.ErrInvalidName) {
		t.Errorf("expected INVALID_NAME, got %v", err)
	}
	if err := s.PutDerived(RankName, v); err != nil {
		t.Errorf("PutDerived: %v", err)
	}
	if got := s.Names(); len(got) != 2 || got[0] != "a" || got[1] != RankName {
		t.Errorf("Names() = %v", got)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("unexpected value for missing name")
	}
}

// -----------------------------------------------------------------------------
// Ranking Tests
// -----------------------------------------------------------------------------

func TestRankNeuronsScenario(t *testing.T) {
	metric, _ := FromRows([][]float32{{0.5, 0.1, 0.9}, {0.3, 0.7, 0.2}})
	rank, ranked, err := RankNeurons(metric)
	if err != nil {
		t.Fatalf("RankNeurons: %v", err)
	}
	wantRank, _ := FromRows([][]uint32{{1, 0, 2}, {1, 2, 0}})
	wantRanked, _ := FromRows([][]uint32{{1, 0, 2}, {2, 0, 1}})
	if !rank.Equal(wantRank) {
		t.Errorf("rank = %v, want %v", rank.Data(), wantRank.Data())
	}
	if !ranked.Equal(wantRanked) {
		t.Errorf("ranked = %v, want %v", ranked.Data(), wantRanked.Data())
	}
}

func TestRankNeuronsTotalOrder(t *testing.T) {
	nan := float32(math.NaN())
	negNaN := float32(math.Copysign(math.NaN(), -1))
	inf := float32(math.Inf(1))
	negZero := float32(math.Copysign(0, -1))
	row := []float32{nan, 2, -inf, 0, negZero, 2, inf, -1, negNaN}
	metric, _ := NewNDArray([]int{1, len(row)}, row)

	rank, ranked, err := RankNeurons(metric)
	if err != nil {
		t.Fatalf("RankNeurons: %v", err)
	}
	// -Inf, -1, 0 (idx 3), -0 (idx 4), 2 (idx 1), 2 (idx 5), +Inf, NaN (idx 0), -NaN (idx 8)
	want := []uint32{2, 7, 3, 4, 1, 5, 6, 0, 8}
	for r, n := range want {
		if ranked.At(0, r) != n {
			t.Fatalf("ranked = %v, want %v", ranked.Data(), want)
		}
	}
	for n := range row {
		if ranked.At(0, int(rank.At(0, n))) != uint32(n) {
			t.Errorf("ranked[rank[%d]] != %d", n, n)
		}
	}
}

func TestRankNeuronsSignedZerosTieByIndex(t *testing.T) {
	tests := []struct {
		name string
		row  []float32
		want []uint32
	}{
		{"+0 before -0", []float32{0, float32(math.Copysign(0, -1))}, []uint32{0, 1}},
		{"-0 before +0", []float32{float32(math.Copysign(0, -1)), 0}, []uint32{0, 1}},
		{"NaNs of either sign", []float32{float32(math.NaN()), 1, float32(math.Copysign(math.NaN(), -1))}, []uint32{1, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metric, _ := NewNDArray([]int{1, len(tt.row)}, tt.row)
			_, ranked, err := RankNeurons(metric)
			if err != nil {
				t.Fatalf("RankNeurons: %v", err)
			}
			for r, n := range tt.want {
				if ranked.At(0, r) != n {
					t.Fatalf("ranked = %v, want %v", ranked.Data(), tt.want)
				}
			}
		})
	}
}

func TestRankNeuronsPermutationProperty(t *testing.T) {
	const L, N = 5, 64
	data := make([]float32, L*N)
	for i := range data {
		data[i] = float32((i*7919)%13) - 6
	}
	metric, _ := NewNDArray([]int{L, N}, data)
	rank, ranked, err := RankNeurons(metric)
	if err != nil {
		t.Fatalf("RankNeurons: %v", err)
	}
	for l := 0; l < L; l++ {
		seen := make([]bool, N)
		for r := 0; r < N; r++ {
			n := ranked.At(l, r)
			if seen[n] {
				t.Fatalf("layer %d: neuron %d appears twice", l, n)
			}
			seen[n] = true
			if rank.At(l, int(n)) != uint32(r) {
				t.Fatalf("layer %d: rank[%d] = %d, want %d", l, n, rank.At(l, int(n)), r)
			}
			if r > 0 {
				prev := metric.At(l, int(ranked.At(l, r-1)))
				if prev > metric.At(l, int(n)) {
					t.Fatalf("layer %d: not ascending at rank %d", l, r)
				}
			}
		}
	}
}

func TestRankNeuronsRequires2D(t *testing.T) {
	metric, _ := NewNDArray([]int{3}, make([]float32, 3))
	if _, _, err := RankNeurons(metric); !tserrors.IsCode(err, tserrors.ErrShapeMismatch) {
		t.Errorf("expected SHAPE_MISMATCH, got %v", err)
	}
}

func TestParseScopeAndDataType(t *testing.T) {
	if s, err := ParseScope("Neuron"); err != nil || s != Neuron {
		t.Errorf("ParseScope(Neuron) = %v, %v", s, err)
	}
	if _, err := ParseScope("head"); !tserrors.IsCode(err, tserrors.ErrInvalidArgument) {
		t.Errorf("expected INVALID_ARGUMENT, got %v", err)
	}
	if d, err := ParseDataType("float32"); err != nil || d != F32 {
		t.Errorf("ParseDataType(float32) = %v, %v", d, err)
	}
}
