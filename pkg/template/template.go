// Package template parses and evaluates neuron templates: text with embedded
// $name(args) directives that refer to values in a data.Store.
//
// A template is parsed once, validated once against the store it will be
// rendered from, and then evaluated for any number of (layer, neuron) pairs.
package template

import (
	"fmt"
	"strings"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Marker introduces a directive.
const Marker = '$'

// Segment is an element followed by the literal text up to the next marker.
type Segment struct {
	Element Element
	Suffix  string
}

// NeuronTemplate is a parsed template.
type NeuronTemplate struct {
	source   string
	prefix   string
	segments []Segment
}

// Parse parses source in a single left-to-right pass. Each marker must be
// followed by identifier(arg, ...) with a known identifier and the
// directive's exact number of non-empty arguments.
func Parse(source string) (*NeuronTemplate, error) {
	parts := strings.Split(source, string(Marker))
	t := &NeuronTemplate{source: source, prefix: parts[0]}

	pos := len(parts[0])
	for _, part := range parts[1:] {
		end := strings.IndexByte(part, ')')
		if end < 0 {
			return nil, tserrors.ParseError(pos, excerpt(part), "unterminated directive: missing ')'")
		}
		el, err := parseElement(part[:end], pos)
		if err != nil {
			return nil, err
		}
		t.segments = append(t.segments, Segment{Element: el, Suffix: part[end+1:]})
		pos += 1 + len(part)
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level templates.
func MustParse(source string) *NeuronTemplate {
	t, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return t
}

// parseElement parses "name(args" (without the closing parenthesis).
func parseElement(text string, pos int) (Element, error) {
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return nil, tserrors.ParseError(pos, excerpt(text), "expected '(' after directive name")
	}
	name := strings.TrimSpace(text[:open])
	want, ok := arity(name)
	if !ok {
		return nil, tserrors.ParseError(pos, excerpt(text), fmt.Sprintf("unknown directive %q", name))
	}

	rawArgs := text[open+1:]
	var args []string
	if strings.TrimSpace(rawArgs) != "" {
		for _, a := range strings.Split(rawArgs, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}
	if len(args) != want {
		return nil, tserrors.ParseError(pos, excerpt(text),
			name+" takes "+plural(want, "argument")+", got "+plural(len(args), "argument"))
	}
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, "( \t\n") {
			return nil, tserrors.ParseError(pos, excerpt(text), fmt.Sprintf("invalid argument %q", a))
		}
	}
	return newElement(name, args), nil
}

func excerpt(s string) string {
	const max = 40
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Source returns the text the template was parsed from.
func (t *NeuronTemplate) Source() string { return t.source }

// Prefix returns the literal text before the first directive.
func (t *NeuronTemplate) Prefix() string { return t.prefix }

// Segments returns the parsed directives and their trailing text.
func (t *NeuronTemplate) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// References returns every value name the template refers to, in order of
// first appearance.
func (t *NeuronTemplate) References() []string {
	seen := make(map[string]bool)
	var names []string
	for _, seg := range t.segments {
		for _, a := range seg.Element.Args() {
			if !seen[a] {
				seen[a] = true
				names = append(names, a)
			}
		}
	}
	return names
}

// Validate checks every element against store and returns the first
// violation as a *ArgumentError. It has no side effects.
func (t *NeuronTemplate) Validate(store *data.Store) error {
	for _, seg := range t.segments {
		if err := seg.Element.validate(store); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate renders the template for one neuron. The template must have been
// validated against store; arguments are not re-checked.
func (t *NeuronTemplate) Evaluate(store *data.Store, layer, neuron int, r Renderer) (string, error) {
	var sb strings.Builder
	sb.WriteString(t.prefix)
	for _, seg := range t.segments {
		out, err := seg.Element.evaluate(store, layer, neuron, r)
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
		sb.WriteString(seg.Suffix)
	}
	return sb.String(), nil
}
