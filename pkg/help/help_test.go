package help

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Style Tests
// -----------------------------------------------------------------------------

func TestHighlightUsage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/info", StyleCommand("/info")},
		{"/value metric 0 3", StyleCommand("/value") + Argument(" metric 0 3")},
		{"/top   2", StyleCommand("/top") + Argument(" 2")},
	}
	for _, tt := range tests {
		if got := HighlightUsage(tt.in); got != tt.want {
			t.Errorf("HighlightUsage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripANSIAndPad(t *testing.T) {
	styled := WithShortcut("/help [command]", "/h")
	if got := StripANSI(styled); got != "/help [command] (or /h)" {
		t.Errorf("Unexpected plain text %q", got)
	}
	padded := PadRight(styled, 30)
	if got := visibleLength(padded); got != 30 {
		t.Errorf("Expected visible width 30, got %d", got)
	}
	if PadRight("abcdef", 3) != "abcdef" {
		t.Error("Expected long strings to be left alone")
	}
}

// -----------------------------------------------------------------------------
// Command Registry Tests
// -----------------------------------------------------------------------------

func TestGetCommand(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		found bool
	}{
		{"/value", "/value", true},
		{"value", "/value", true},
		{"/h", "/help", true},
		{"q", "/quit", true},
		{"extract", "", false},
	}
	for _, tt := range tests {
		cmd, found := GetCommand(tt.name)
		if found != tt.found || cmd.Name != tt.want {
			t.Errorf("GetCommand(%q) = %q, %v", tt.name, cmd.Name, found)
		}
	}
}

func TestEveryCommandHasCategoryAndUsage(t *testing.T) {
	total := 0
	for _, cat := range CategoryOrder {
		total += len(CommandsByCategory(cat))
	}
	if total != len(Commands) {
		t.Errorf("Expected every command in an ordered category, %d of %d", total, len(Commands))
	}
	for _, cmd := range Commands {
		if !strings.HasPrefix(cmd.Usage, cmd.Name) || cmd.Description == "" {
			t.Errorf("Command %s has usage %q and description %q", cmd.Name, cmd.Usage, cmd.Description)
		}
	}
}

func TestNames(t *testing.T) {
	want := []string{"info", "values", "template", "value", "top", "render", "help", "quit"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

// -----------------------------------------------------------------------------
// Renderer Tests
// -----------------------------------------------------------------------------

func TestRenderFull(t *testing.T) {
	var plain, colored bytes.Buffer
	NewRenderer(&plain, false).RenderFull()
	NewRenderer(&colored, true).RenderFull()

	out := plain.String()
	for _, want := range []string{
		"TransformerScope Commands",
		"Neurons & Values",
		"/render <layer> <neuron>",
		"/help [command] (or /h)",
		"e.g. /top 0",
		"Shortcuts & Tips",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Expected no ANSI codes without color")
	}
	if !strings.Contains(colored.String(), ColorCyan) {
		t.Error("Expected ANSI codes with color")
	}
	if StripANSI(colored.String()) != out {
		t.Error("Expected colored output to match plain output once stripped")
	}
}

func TestRenderCommand(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	if !r.RenderCommand("top") {
		t.Fatal("Expected /top to be found")
	}
	for _, want := range []string{"Usage: /top <layer> [k]", "/top 5 3 -> First 3 neurons of layer 5"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Expected %q in:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if r.RenderCommand("extract") || buf.Len() != 0 {
		t.Error("Expected unknown command to render nothing")
	}
}
