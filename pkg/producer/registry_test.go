package producer

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

func mustOK(t *testing.T, res Result) Result {
	t.Helper()
	if !res.OK {
		t.Fatalf("Expected success, got %+v", res.Error)
	}
	return res
}

func newBuilder(t *testing.T, r *Registry) Handle {
	t.Helper()
	h := mustOK(t, r.NewBuilder(2, 3)).Handle
	mustOK(t, r.AddValue(h, []byte(`{"name":"metric","scope":"neuron","shape":[2,3],"data":[0.5,0.1,0.9,0.3,0.7,"NaN"]}`)))
	mustOK(t, r.AddValue(h, []byte(`{"name":"label","scope":"global","type":"string","shape":[],"data":["chess"]}`)))
	mustOK(t, r.SetTemplate(h, "<b>$value(label)</b>$value(metric)"))
	return h
}

// -----------------------------------------------------------------------------
// Builder Tests
// -----------------------------------------------------------------------------

func TestBuildAndRender(t *testing.T) {
	r := NewRegistry()
	b := newBuilder(t, r)
	mustOK(t, r.SetRankSource(b, "metric"))

	ph := mustOK(t, r.Build(b)).Handle
	if ph == b {
		t.Fatal("Expected a fresh payload handle")
	}

	info, isInfo := mustOK(t, r.Info(ph)).Data.(Info)
	if !isInfo || info.NumLayers != 2 || info.NumMLPNeurons != 3 || !info.Ranked {
		t.Errorf("Unexpected info %+v", info)
	}

	html := mustOK(t, r.RenderNeuron(ph, 0, 2)).Data.(string)
	if !strings.Contains(html, "<b>chess</b>") || !strings.Contains(html, "0.9") {
		t.Errorf("Unexpected render %q", html)
	}

	// The builder handle is gone after Build.
	if res := r.SetTemplate(b, "x"); res.OK || res.Error.Code != tserrors.ErrInvalidArgument {
		t.Errorf("Expected unknown handle, got %+v", res)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 live handle, got %d", r.Len())
	}
}

func TestBuildFailureReleasesBuilder(t *testing.T) {
	r := NewRegistry()
	b := mustOK(t, r.NewBuilder(1, 1)).Handle

	res := r.Build(b)
	if res.OK || res.Error.Code != tserrors.ErrTemplateNotSet {
		t.Fatalf("Expected TEMPLATE_NOT_SET, got %+v", res)
	}
	if r.Len() != 0 {
		t.Errorf("Expected builder to be released, %d handles live", r.Len())
	}
}

func TestOperationErrors(t *testing.T) {
	r := NewRegistry()
	b := newBuilder(t, r)

	tests := []struct {
		name     string
		res      Result
		wantCode string
	}{
		{"zero layers", r.NewBuilder(0, 3), tserrors.ErrInvalidDimension},
		{"bad json", r.AddValue(b, []byte(`{`)), tserrors.ErrInvalidArgument},
		{"bad scope", r.AddValue(b, []byte(`{"name":"x","scope":"galaxy","data":[1]}`)), tserrors.ErrInvalidArgument},
		{"bad element", r.AddValue(b, []byte(`{"name":"x","scope":"global","data":["one"]}`)), tserrors.ErrInvalidArgument},
		{"negative u32", r.AddValue(b, []byte(`{"name":"x","scope":"global","type":"u32","data":[-1]}`)), tserrors.ErrInvalidArgument},
		{"shape mismatch", r.AddValue(b, []byte(`{"name":"x","scope":"neuron","shape":[2,2],"data":[1,2,3,4]}`)), tserrors.ErrShapeMismatch},
		{"duplicate", r.AddValue(b, []byte(`{"name":"label","scope":"global","data":[1]}`)), tserrors.ErrDuplicateName},
		{"template twice", r.SetTemplate(b, "y"), tserrors.ErrTemplateAlreadySet},
		{"rank unknown", r.SetRankSource(b, "nope"), tserrors.ErrNotFound},
		{"unknown payload", r.Info(99), tserrors.ErrInvalidArgument},
		{"free unknown", r.Free(99), tserrors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.res.OK || tt.res.Error == nil || tt.res.Error.Code != tt.wantCode {
				t.Errorf("Expected %s, got %+v", tt.wantCode, tt.res)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Payload Tests
// -----------------------------------------------------------------------------

func TestSaveLoadFree(t *testing.T) {
	r := NewRegistry()
	ph := mustOK(t, r.Build(newBuilder(t, r))).Handle
	path := filepath.Join(t.TempDir(), "p.tsp")
	mustOK(t, r.Save(ph, path))

	loaded := mustOK(t, r.Load(path)).Handle
	a := mustOK(t, r.Info(ph)).Data.(Info)
	b := mustOK(t, r.Info(loaded)).Data.(Info)
	if a.ID != b.ID {
		t.Errorf("Expected the payload ID to survive a snapshot, got %s and %s", a.ID, b.ID)
	}

	mustOK(t, r.Free(ph))
	mustOK(t, r.Free(loaded))
	if r.Len() != 0 {
		t.Errorf("Expected no live handles, got %d", r.Len())
	}

	if res := r.Load(filepath.Join(t.TempDir(), "missing.tsp")); res.OK || res.Error.Code != tserrors.ErrIOReadFailed {
		t.Errorf("Expected IO_READ_FAILED, got %+v", res)
	}
}

func TestResultJSON(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{"handle", ok(3, nil), `{"ok":true,"handle":3}`},
		{"error", failed(tserrors.ValueNotFound("x")), `"code":"NOT_FOUND"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.res.JSON()
			if !strings.Contains(got, tt.want) {
				t.Errorf("Expected %s in %s", tt.want, got)
			}
			var decoded map[string]interface{}
			if err := json.Unmarshal([]byte(got), &decoded); err != nil {
				t.Errorf("Result is not valid JSON: %v", err)
			}
		})
	}
}

func TestConcurrentBuilders(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	handles := make([]Handle, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := r.NewBuilder(1, 2).Handle
			r.AddValue(b, []byte(`{"name":"m","scope":"neuron","shape":[1,2],"data":[1,2]}`))
			r.SetTemplate(b, "$value(m)")
			handles[i] = r.Build(b).Handle
		}(i)
	}
	wg.Wait()

	seen := make(map[Handle]bool)
	for _, h := range handles {
		if h == 0 || seen[h] {
			t.Fatalf("Expected distinct payload handles, got %v", handles)
		}
		seen[h] = true
	}
}
