package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Prompter asks the user to confirm an action.
type Prompter interface {
	// Confirm shows message and returns true only for an explicit yes.
	Confirm(message string) (bool, error)
}

// InteractivePrompter reads answers from a reader, stdin by default.
type InteractivePrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewInteractivePrompter creates a prompter on stdin and stdout.
func NewInteractivePrompter() *InteractivePrompter {
	return NewInteractivePrompterWithIO(os.Stdin, os.Stdout)
}

// NewInteractivePrompterWithIO creates a prompter on the given streams.
func NewInteractivePrompterWithIO(reader io.Reader, writer io.Writer) *InteractivePrompter {
	return &InteractivePrompter{reader: bufio.NewReader(reader), writer: writer}
}

// Confirm prints message followed by " [y/N]: ". Only "y" or "yes"
// (any case) confirm; EOF counts as no.
func (p *InteractivePrompter) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.writer, "%s [y/N]: ", message)

	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, tserrors.WrapIO(err, tserrors.ErrIOReadFailed, "failed to read confirmation")
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}

var _ Prompter = (*InteractivePrompter)(nil)

// ConfirmOverwrite returns true when path may be written: it does not exist,
// force is set, or the user agrees to replace it. A nil prompter refuses.
func ConfirmOverwrite(p Prompter, path string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return true, nil
	}
	if p == nil {
		return false, nil
	}
	return p.Confirm(fmt.Sprintf("%s already exists. Overwrite?", path))
}
