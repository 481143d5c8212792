// Package errors provides error formatting and display functions.
package errors

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[90m"
)

// Formatter renders errors for people. A TScopeError is shown as
//
//	Data Error [SHAPE_MISMATCH]: value "act" has shape [2 3]
//	  expected: [2 4]
//	  cause: ...
//
//	  → suggestion
//
// Other errors print as "Error: <message>".
type Formatter struct {
	// UseColor enables ANSI color codes.
	UseColor bool

	// Writer is the Display destination. Defaults to os.Stderr.
	Writer io.Writer

	// Indent prefixes context, cause and suggestion lines.
	Indent string
}

// DefaultFormatter writes to stderr, in color when stderr is a terminal.
func DefaultFormatter() *Formatter {
	return &Formatter{UseColor: IsTTY(os.Stderr), Writer: os.Stderr, Indent: "  "}
}

// IsTTY reports whether f is a terminal.
func IsTTY(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func (f *Formatter) paint(color, s string) string {
	if !f.UseColor {
		return s
	}
	return color + s + colorReset
}

// Format renders err as a string. nil renders as "".
func (f *Formatter) Format(err error) string {
	if err == nil {
		return ""
	}
	te, ok := AsTScopeError(err)
	if !ok {
		return f.paint(colorRed, "Error: ") + err.Error()
	}

	var lines []string
	lines = append(lines, f.paint(colorRed+colorBold, CategoryLabel(te.Category))+
		f.paint(colorRed, " ["+te.Code+"]: ")+te.Message)

	keys := make([]string, 0, len(te.Context))
	for k := range te.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, f.Indent+f.paint(colorYellow, k+": ")+te.Context[k])
	}

	if te.Cause != nil {
		lines = append(lines, f.Indent+f.paint(colorDim, "cause: "+te.Cause.Error()))
	}

	if te.HasSuggestions() {
		if len(lines) > 1 {
			lines = append(lines, "")
		}
		for _, s := range te.Suggestions {
			lines = append(lines, f.Indent+f.paint(colorCyan, "→ "+s))
		}
	}
	return strings.Join(lines, "\n")
}

// Display writes the formatted error and a newline to f.Writer.
func (f *Formatter) Display(err error) {
	if err == nil {
		return
	}
	w := f.Writer
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, f.Format(err))
}

// Format renders err with DefaultFormatter.
func Format(err error) string {
	return DefaultFormatter().Format(err)
}

// Display writes err to stderr.
func Display(err error) {
	DefaultFormatter().Display(err)
}

// Sprint renders err without color.
func Sprint(err error) string {
	return (&Formatter{Indent: "  "}).Format(err)
}

// CategoryLabel returns the heading used for errors of cat.
func CategoryLabel(cat Category) string {
	switch cat {
	case CategoryConfig:
		return "Configuration Error"
	case CategoryData:
		return "Data Error"
	case CategoryTemplate:
		return "Template Error"
	case CategoryValidation:
		return "Validation Error"
	case CategoryNetwork:
		return "Server Error"
	case CategoryIO:
		return "I/O Error"
	case CategoryInternal:
		return "Internal Error"
	default:
		return "Error"
	}
}
