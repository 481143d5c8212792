package manifest

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/safetensors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const inlineManifest = `
layers: 2
mlp_neurons: 3
template: "<h2>$value(label)</h2>$value(metric)$heatmap(grid)"
rank_by: metric
values:
  - name: metric
    scope: neuron
    data: [[0.5, 0.1, 0.9], [0.3, 0.7, .nan]]
  - name: grid
    scope: layer
    data:
      - [[1, 2], [3, 4]]
      - [[5, 6], [7, 8]]
  - name: label
    scope: global
    type: string
    data: chess
  - name: counts
    scope: neuron
    type: u32
    shape: [2, 3]
    data: [1, 2, 3, 4, 5, 6]
`

func TestBuildInline(t *testing.T) {
	dir := t.TempDir()
	pl, err := BuildFile(writeFile(t, dir, "m.yaml", inlineManifest))
	if err != nil {
		t.Fatalf("BuildFile failed: %v", err)
	}

	if pl.NumLayers() != 2 || pl.NumMLPNeurons() != 3 || !pl.Ranked() {
		t.Fatalf("Unexpected payload: %d x %d ranked=%v", pl.NumLayers(), pl.NumMLPNeurons(), pl.Ranked())
	}

	metric, _ := pl.Value("metric")
	m, _ := data.ArrayOf[float32](metric.Array())
	if !reflect.DeepEqual(m.Shape(), []int{2, 3}) || !math.IsNaN(float64(m.At(1, 2))) {
		t.Errorf("Unexpected metric %v", m)
	}

	grid, _ := pl.Value("grid")
	if !reflect.DeepEqual(grid.Shape(), []int{2, 2, 2}) || grid.Scope() != data.Layer {
		t.Errorf("Unexpected grid %v", grid.Shape())
	}

	label, _ := pl.Value("label")
	l, ok := data.ArrayOf[string](label.Array())
	if !ok || l.NDim() != 0 || l.At() != "chess" {
		t.Errorf("Unexpected label %v", label.Array())
	}

	counts, _ := pl.Value("counts")
	c, ok := data.ArrayOf[uint32](counts.Array())
	if !ok || c.At(1, 0) != 4 {
		t.Errorf("Unexpected counts %v", counts.Array())
	}

	// NaN sorts after every number, so it is last in layer 1.
	order, err := pl.LayerOrder(1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []uint32{0, 1, 2}) {
		t.Errorf("Unexpected layer 1 order %v", order)
	}
}

func TestBuildFromFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "neuron.html", "<p>$value(steps)</p>$focus_sequences(act, names)")
	writeFile(t, dir, "names.json", `[["e4", "e5"], ["d4", "d5"]]`)
	if err := safetensors.Save(filepath.Join(dir, "t.safetensors"), map[string]safetensors.Tensor{
		"act":   {DType: safetensors.F32, Shape: []int{1, 2, 2, 2}, F32: []float32{1, 2, 3, 4, 5, 6, 7, 8}},
		"steps": {DType: safetensors.U32, Shape: []int{1, 2}, U32: []uint32{10, 20}},
	}); err != nil {
		t.Fatal(err)
	}
	manifest := `
layers: 1
mlp_neurons: 2
template_file: neuron.html
values:
  - name: act
    scope: neuron
    safetensors: t.safetensors
    tensor: act
  - name: steps
    scope: neuron
    safetensors: t.safetensors
    tensor: steps
  - name: names
    scope: global
    type: string
    file: names.json
`
	pl, err := BuildFile(writeFile(t, dir, "m.yaml", manifest))
	if err != nil {
		t.Fatalf("BuildFile failed: %v", err)
	}
	if pl.Ranked() {
		t.Error("Expected an unranked payload without rank_by")
	}

	steps, _ := pl.Value("steps")
	if steps.DataType() != data.U32 {
		t.Errorf("Expected u32 steps, got %s", steps.DataType())
	}
	names, _ := pl.Value("names")
	if !reflect.DeepEqual(names.Shape(), []int{2, 2}) {
		t.Errorf("Unexpected names shape %v", names.Shape())
	}
	if !strings.Contains(pl.Template().Source(), "focus_sequences") {
		t.Error("Expected template read from template_file")
	}
}

func TestManifestErrors(t *testing.T) {
	dir := t.TempDir()
	if err := safetensors.Save(filepath.Join(dir, "t.safetensors"), map[string]safetensors.Tensor{
		"f": {DType: safetensors.F32, Shape: []int{1, 1}, F32: []float32{1}},
	}); err != nil {
		t.Fatal(err)
	}

	header := "layers: 1\nmlp_neurons: 1\ntemplate: \"x\"\n"
	tests := []struct {
		name     string
		manifest string
		wantCode string
	}{
		{"bad yaml", "layers: [", tserrors.ErrManifestInvalid},
		{"no template", "layers: 1\nmlp_neurons: 1\n", tserrors.ErrManifestInvalid},
		{"both templates", header + "template_file: t.html\n", tserrors.ErrManifestInvalid},
		{"no source", header + "values:\n  - name: a\n    scope: global\n", tserrors.ErrManifestInvalid},
		{"two sources", header + "values:\n  - name: a\n    scope: global\n    data: 1\n    file: a.json\n", tserrors.ErrManifestInvalid},
		{"tensor without name", header + "values:\n  - name: a\n    scope: global\n    safetensors: t.safetensors\n", tserrors.ErrManifestInvalid},
		{"duplicate", header + "values:\n  - {name: a, scope: global, data: 1}\n  - {name: a, scope: global, data: 2}\n", tserrors.ErrDuplicateName},
		{"ragged", header + "values:\n  - {name: a, scope: global, data: [[1, 2], [3]]}\n", tserrors.ErrManifestInvalid},
		{"mapping data", header + "values:\n  - {name: a, scope: global, data: {x: 1}}\n", tserrors.ErrManifestInvalid},
		{"bad float", header + "values:\n  - {name: a, scope: global, data: [1, x]}\n", tserrors.ErrManifestInvalid},
		{"negative u32", header + "values:\n  - {name: a, scope: global, type: u32, data: -1}\n", tserrors.ErrManifestInvalid},
		{"bad scope", header + "values:\n  - {name: a, scope: galaxy, data: 1}\n", tserrors.ErrManifestInvalid},
		{"bad type", header + "values:\n  - {name: a, scope: global, type: f64, data: 1}\n", tserrors.ErrInvalidArgument},
		{"reshape mismatch", header + "values:\n  - {name: a, scope: global, shape: [3], data: [1, 2]}\n", tserrors.ErrShapeMismatch},
		{"scope shape mismatch", header + "values:\n  - {name: a, scope: neuron, data: [[1, 2]]}\n", tserrors.ErrShapeMismatch},
		{"missing file", header + "values:\n  - {name: a, scope: global, file: nope.json}\n", tserrors.ErrIOReadFailed},
		{"missing tensor", header + "values:\n  - {name: a, scope: global, safetensors: t.safetensors, tensor: g}\n", tserrors.ErrManifestInvalid},
		{"tensor type", header + "values:\n  - {name: a, scope: global, type: u32, safetensors: t.safetensors, tensor: f}\n", tserrors.ErrTypeMismatch},
		{"bad rank source", header + "rank_by: nope\n", tserrors.ErrNotFound},
		{"template references missing", "layers: 1\nmlp_neurons: 1\ntemplate: \"$value(a)\"\n", tserrors.ErrMissingValue},
		{"zero layers", "layers: 0\nmlp_neurons: 1\ntemplate: x\n", tserrors.ErrInvalidDimension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildFile(writeFile(t, dir, "m.yaml", tt.manifest))
			if !tserrors.IsCode(err, tt.wantCode) {
				t.Errorf("Expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestParseF32(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.5", 1.5},
		{"-2", -2},
		{"1e-3", 0.001},
		{".inf", math.Inf(1)},
		{"-.Inf", math.Inf(-1)},
	}
	for _, tt := range tests {
		got, err := parseF32(tt.in)
		if err != nil || got != float32(tt.want) {
			t.Errorf("parseF32(%q) = %v, %v", tt.in, got, err)
		}
	}
	if got, _ := parseF32(".NaN"); !math.IsNaN(float64(got)) {
		t.Errorf("Expected NaN, got %v", got)
	}
}
