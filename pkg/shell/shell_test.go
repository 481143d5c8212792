package shell

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

func testPayload(t *testing.T, ranked bool) *payload.Payload {
	t.Helper()

	b, err := payload.NewBuilder(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddF32("metric", data.Neuron, []int{2, 3}, []float32{0.5, 0.1, 0.9, 0.3, 0.7, 0.2}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddF32("grid", data.Layer, []int{2, 1, 2}, []float32{1, 2.5, -1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddString("moves", data.Global, []int{1, 2}, []string{"e4", "e5"}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddF32("focus", data.Global, []int{1, 2}, []float32{0.5, -0.25}); err != nil {
		t.Fatal(err)
	}
	if ranked {
		if err := b.SetRankSource("metric"); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.SetTemplate("m=$value(metric)$heatmap(grid)$focus_sequences(focus, moves)"); err != nil {
		t.Fatal(err)
	}
	pl, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return pl
}

// -----------------------------------------------------------------------------
// Command Tests
// -----------------------------------------------------------------------------

func TestExecute(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		ranked      bool
		wantContain []string
	}{
		{"blank line", "   ", true, nil},
		{"info", "/info", true, []string{"Layers:  2", "Neurons: 3 per layer", "Ranked:  yes"}},
		{"values", "/values", true, []string{"metric", "ranked_neurons", "neuron", "layer", "global"}},
		{"whole value", "/value moves", true, []string{`moves (global): [1 2] ["e4" "e5"]`}},
		{"neuron slice", "/value metric 1 1", true, []string{"metric[L1/N1]: [] [0.7]"}},
		{"layer slice", "/value grid 1 0", true, []string{"grid[L1/N0]: [1 2] [-1 0]"}},
		{"top ranked", "/top 0", true, []string{"1. L0/N1", "2. L0/N0", "3. L0/N2"}},
		{"top k", "/top 1 1", true, []string{"1. L1/N2"}},
		{"top unranked", "/top 0 2", false, []string{"unranked", "1. L0/N0", "2. L0/N1"}},
		{"render", "/render 0 2", true, []string{"m=0.9\n1 2.5\n", "e4(0.5) e5(-0.25)"}},
		{"template", "/template", true, []string{"$heatmap(grid)"}},
		{"help", "/help", true, []string{"TransformerScope Commands", "/render <layer> <neuron>"}},
		{"help command", "/help top", true, []string{"Usage: /top <layer> [k]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			s := newShell(testPayload(t, tt.ranked), &out)
			if err := s.Execute(tt.line); err != nil {
				t.Fatalf("Execute(%q) failed: %v", tt.line, err)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(out.String(), want) {
					t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestExecuteTopLimitsOutput(t *testing.T) {
	var out bytes.Buffer
	s := newShell(testPayload(t, true), &out)
	if err := s.Execute("/top 0 2"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "3.") {
		t.Errorf("Expected only two entries, got:\n%s", out.String())
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		line     string
		wantCode string
	}{
		{"hello", tserrors.ErrInvalidArgument},
		{"/bogus", tserrors.ErrInvalidArgument},
		{"/value", tserrors.ErrInvalidArgument},
		{"/value metric 1", tserrors.ErrInvalidArgument},
		{"/value nope", tserrors.ErrNotFound},
		{"/value metric 2 0", tserrors.ErrCoordinateOutOfRange},
		{"/value metric 0 -1", tserrors.ErrInvalidArgument},
		{"/top", tserrors.ErrInvalidArgument},
		{"/top x", tserrors.ErrInvalidArgument},
		{"/top 9", tserrors.ErrCoordinateOutOfRange},
		{"/render 0", tserrors.ErrInvalidArgument},
		{"/render 0 3", tserrors.ErrCoordinateOutOfRange},
		{"/help extract", tserrors.ErrInvalidArgument},
		{"/help a b", tserrors.ErrInvalidArgument},
	}

	s := newShell(testPayload(t, true), &bytes.Buffer{})
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := s.Execute(tt.line)
			if !tserrors.IsCode(err, tt.wantCode) {
				t.Errorf("Expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestExecuteQuit(t *testing.T) {
	s := newShell(testPayload(t, true), &bytes.Buffer{})
	for _, line := range []string{"/quit", "/exit", "/q"} {
		if err := s.Execute(line); !errors.Is(err, errQuit) {
			t.Errorf("Execute(%q) = %v, want errQuit", line, err)
		}
	}
}

func TestPrintErrorPlain(t *testing.T) {
	var out bytes.Buffer
	s := newShell(testPayload(t, true), &out)
	s.printError(s.Execute("/value nope"))

	if !strings.Contains(out.String(), "[NOT_FOUND]") {
		t.Errorf("Expected error code in output, got %q", out.String())
	}
	if strings.Contains(out.String(), "\033[") {
		t.Error("Expected no color codes")
	}
}

// -----------------------------------------------------------------------------
// Completer Tests
// -----------------------------------------------------------------------------

func TestCompleter(t *testing.T) {
	c := NewCompleter(testPayload(t, true))

	tests := []struct {
		name       string
		line       string
		wantMatch  []string
		wantLength int
	}{
		{"empty", "", nil, 0},
		{"slash lists all", "/", []string{"help ", "info ", "quit ", "render ", "template ", "top ", "value ", "values "}, 1},
		{"prefix", "/va", []string{"lue ", "lues "}, 3},
		{"top and template", "/t", []string{"emplate ", "op "}, 2},
		{"no slash", "val", nil, 0},
		{"value names", "/value m", []string{"etric ", "oves "}, 1},
		{"reserved names", "/value ra", []string{"nk ", "nked_neurons "}, 2},
		{"second argument", "/value metric 1", nil, 0},
		{"other command argument", "/top m", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, length := c.Do([]rune(tt.line), len([]rune(tt.line)))
			var got []string
			for _, m := range matches {
				got = append(got, string(m))
			}
			sort.Strings(got)
			if !reflect.DeepEqual(got, tt.wantMatch) {
				t.Errorf("Expected matches %q, got %q", tt.wantMatch, got)
			}
			if length != tt.wantLength {
				t.Errorf("Expected length %d, got %d", tt.wantLength, length)
			}
		})
	}
}

func TestFindWordStart(t *testing.T) {
	tests := map[string]int{
		"":          0,
		"/value":    0,
		"/value ":   7,
		"/value\tab": 7,
		"/a b c":    5,
	}
	for in, want := range tests {
		if got := findWordStart(in); got != want {
			t.Errorf("findWordStart(%q) = %d, want %d", in, got, want)
		}
	}
}

// -----------------------------------------------------------------------------
// Confirmation Tests
// -----------------------------------------------------------------------------

type fixedPrompter struct {
	answer  bool
	prompts []string
}

func (p *fixedPrompter) Confirm(message string) (bool, error) {
	p.prompts = append(p.prompts, message)
	return p.answer, nil
}

func TestInteractivePrompter(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yep\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := NewInteractivePrompterWithIO(strings.NewReader(tt.input), &out)
			got, err := p.Confirm("Proceed?")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Confirm with %q = %v, want %v", tt.input, got, tt.want)
			}
			if out.String() != "Proceed? [y/N]: " {
				t.Errorf("Unexpected prompt %q", out.String())
			}
		})
	}
}

func TestConfirmOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.tsp")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.tsp")

	t.Run("missing file needs no prompt", func(t *testing.T) {
		p := &fixedPrompter{}
		ok, err := ConfirmOverwrite(p, missing, false)
		if err != nil || !ok || len(p.prompts) != 0 {
			t.Errorf("Expected silent approval, got ok=%v err=%v prompts=%v", ok, err, p.prompts)
		}
	})

	t.Run("force skips prompt", func(t *testing.T) {
		p := &fixedPrompter{}
		ok, _ := ConfirmOverwrite(p, existing, true)
		if !ok || len(p.prompts) != 0 {
			t.Error("Expected force to approve without prompting")
		}
	})

	t.Run("existing file asks", func(t *testing.T) {
		p := &fixedPrompter{answer: false}
		ok, _ := ConfirmOverwrite(p, existing, false)
		if ok || len(p.prompts) != 1 || !strings.Contains(p.prompts[0], "existing.tsp") {
			t.Errorf("Expected a refused prompt naming the file, got ok=%v prompts=%v", ok, p.prompts)
		}
	})

	t.Run("nil prompter refuses", func(t *testing.T) {
		if ok, _ := ConfirmOverwrite(nil, existing, false); ok {
			t.Error("Expected refusal without a prompter")
		}
	})
}
