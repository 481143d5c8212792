package spinner

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

// -----------------------------------------------------------------------------
// Spinner Tests
// -----------------------------------------------------------------------------

func TestSpinnerNonTTY(t *testing.T) {
	var buf bytes.Buffer
	s := NewWithConfig(Config{Message: "Loading snapshot", Writer: &buf, IsTTY: boolPtr(false)})

	s.Start()
	if !s.IsActive() {
		t.Fatal("expected active spinner")
	}
	s.Start() // no-op
	s.Success("Loaded payload")

	out := buf.String()
	if strings.Count(out, "Loading snapshot") != 1 {
		t.Errorf("expected message once, got %q", out)
	}
	if !strings.Contains(out, "✓ Loaded payload (") {
		t.Errorf("missing success line in %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("non-TTY output must not contain escape codes: %q", out)
	}
	if s.IsActive() {
		t.Error("spinner should be stopped")
	}
}

func TestSpinnerTTYStops(t *testing.T) {
	var buf syncBuffer
	s := NewWithConfig(Config{Message: "Encoding", Writer: &buf, IsTTY: boolPtr(true)})
	s.Start()
	s.Fail("Encoding failed")

	out := buf.String()
	if !strings.Contains(out, "✗") || !strings.Contains(out, "Encoding failed") {
		t.Errorf("missing failure line in %q", out)
	}
	if !strings.Contains(out, showCursor) {
		t.Error("cursor must be restored")
	}
}

// -----------------------------------------------------------------------------
// ProgressBar Tests
// -----------------------------------------------------------------------------

func TestProgressNonTTYPrintsAtTenths(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressWithConfig(ProgressConfig{Total: 20, Message: "Layers", Writer: &buf, IsTTY: boolPtr(false)})
	p.Start()
	for i := 0; i < 25; i++ {
		p.Increment()
	}
	if p.Current() != 20 {
		t.Errorf("Current() = %d, want 20", p.Current())
	}
	p.Complete("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// initial line + one per tenth + result
	if len(lines) != 12 {
		t.Errorf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[10], "100% (20/20)") {
		t.Errorf("last bar line = %q", lines[10])
	}
	if !strings.HasPrefix(lines[11], "✓ Layers complete") {
		t.Errorf("result line = %q", lines[11])
	}
}

func TestProgressConcurrentIncrement(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressWithConfig(ProgressConfig{Total: 100, Writer: &buf, IsTTY: boolPtr(false)})
	p.Start()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				p.Increment()
			}
		}()
	}
	wg.Wait()
	if p.Current() != 100 {
		t.Errorf("Current() = %d, want 100", p.Current())
	}
}

func TestProgressTotalClamped(t *testing.T) {
	p := NewProgressWithConfig(ProgressConfig{Total: 0, Writer: &bytes.Buffer{}, IsTTY: boolPtr(true)})
	p.Start()
	p.Increment()
	p.Increment()
	if p.Current() != 1 {
		t.Errorf("Current() = %d, want 1", p.Current())
	}
}

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
