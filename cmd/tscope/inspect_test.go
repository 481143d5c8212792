package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

func testReport(t *testing.T) inspectReport {
	t.Helper()
	b, err := payload.NewBuilder(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddF32("metric", data.Neuron, []int{1, 2}, []float32{0.2, 0.1}); err != nil {
		t.Fatal(err)
	}
	if err := b.SetTemplate("$value(metric)"); err != nil {
		t.Fatal(err)
	}
	pl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return newInspectReport(pl)
}

func TestWriteReport(t *testing.T) {
	report := testReport(t)

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		if err := writeReport(&out, report, "text"); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"Layers:   1", "Neurons:  2 per layer", "metric", "$value(metric)"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("Expected %q in:\n%s", want, out.String())
			}
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var out bytes.Buffer
		if err := writeReport(&out, report, "yaml"); err != nil {
			t.Fatal(err)
		}
		var decoded inspectReport
		if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded.NumMLPNeurons != 2 || len(decoded.Values) != 1 || decoded.Values[0].Scope != "neuron" {
			t.Errorf("Unexpected YAML report %+v", decoded)
		}
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		if err := writeReport(&out, report, "json"); err != nil {
			t.Fatal(err)
		}
		var decoded inspectReport
		if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded.ID != report.ID || decoded.Values[0].Type != "f32" {
			t.Errorf("Unexpected JSON report %+v", decoded)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		err := writeReport(&bytes.Buffer{}, report, "xml")
		if !tserrors.IsCode(err, tserrors.ErrInvalidArgument) {
			t.Errorf("Expected INVALID_ARGUMENT, got %v", err)
		}
	})
}

func TestIsManifest(t *testing.T) {
	tests := map[string]bool{
		"m.yaml":      true,
		"M.YML":       true,
		"payload.tsp": false,
		"yaml":        false,
	}
	for path, want := range tests {
		if got := isManifest(path); got != want {
			t.Errorf("isManifest(%q) = %v, want %v", path, got, want)
		}
	}
}
