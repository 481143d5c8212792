// Package help renders the explorer shell's command help.
//
// Commands are listed by category under box-drawing rails, with command
// names in cyan, arguments and examples in yellow and descriptions dimmed.
// Without color the same layout is written as plain text.
//
//	r := help.NewRenderer(os.Stdout, true)
//	r.RenderFull()            // every category
//	r.RenderCommand("render") // one command with examples
//
// Commands is the single list of shell commands; the shell's completer
// reads its names from here.
package help

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Box drawing characters.
const (
	BoxHorizontal = "─"
	BoxVertical   = "│"
	BoxTeeLeft    = "├"
)

// ANSI color codes for styled output.
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorGray   = "\033[90m"
)

// Renderer formats and writes help output.
type Renderer struct {
	w     io.Writer
	color bool
}

// NewRenderer creates a help renderer that writes to w, with ANSI styling
// when color is set.
func NewRenderer(w io.Writer, color bool) *Renderer {
	return &Renderer{w: w, color: color}
}

var ansiPattern = regexp.MustCompile("\033\\[[0-9;]*m")

// StripANSI removes ANSI escape sequences.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// visibleLength returns the length of s excluding ANSI escape codes.
func visibleLength(s string) int {
	return len([]rune(StripANSI(s)))
}

// PadRight pads s with spaces to the given visible width.
func PadRight(s string, width int) string {
	if n := visibleLength(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func (r *Renderer) writeln(s string) {
	if !r.color {
		s = StripANSI(s)
	}
	fmt.Fprintln(r.w, s)
}
