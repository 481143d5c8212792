package shell

import (
	"strings"

	"github.com/chzyer/readline"

	"github.com/albertsgarde/transformerscope/pkg/help"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

// Completer completes /commands and, after /value, value names.
type Completer struct {
	payload *payload.Payload
}

// NewCompleter creates a completer over pl's value names.
func NewCompleter(pl *payload.Payload) *Completer {
	return &Completer{payload: pl}
}

var _ readline.AutoCompleter = (*Completer)(nil)

// Do implements readline.AutoCompleter. It returns the candidate suffixes
// and the length of the word being completed.
func (c *Completer) Do(line []rune, pos int) (newLine [][]rune, length int) {
	if len(line) == 0 || pos <= 0 {
		return nil, 0
	}
	if pos > len(line) {
		pos = len(line)
	}

	lineStr := string(line[:pos])
	wordStart := findWordStart(lineStr)
	word := lineStr[wordStart:]

	if wordStart == 0 {
		if !strings.HasPrefix(word, "/") {
			return nil, 0
		}
		return completeFrom(help.Names(), strings.TrimPrefix(word, "/"), len(word))
	}

	// Only the first argument of /value is a name.
	fields := strings.Fields(lineStr[:wordStart])
	if len(fields) == 1 && fields[0] == "/value" && c.payload != nil {
		return completeFrom(c.payload.ValueNames(), word, len(word))
	}
	return nil, 0
}

// findWordStart returns the index after the last space or tab.
func findWordStart(s string) int {
	return strings.LastIndexAny(s, " \t") + 1
}

func completeFrom(candidates []string, prefix string, length int) ([][]rune, int) {
	var matches [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(cand, prefix) {
			matches = append(matches, []rune(cand[len(prefix):]+" "))
		}
	}
	return matches, length
}
