// Package shell provides the interactive explorer for a payload.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/albertsgarde/transformerscope/pkg/data"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
	"github.com/albertsgarde/transformerscope/pkg/help"
	"github.com/albertsgarde/transformerscope/pkg/payload"
)

// DefaultTopK is the number of neurons /top lists without an explicit count.
const DefaultTopK = 10

// Shell is the interactive command-line explorer.
type Shell struct {
	payload *payload.Payload
	rl      *readline.Instance
	out     io.Writer
	color   bool
}

// Config holds shell configuration.
type Config struct {
	HistoryFile string
	// Out receives command output. Defaults to stdout.
	Out io.Writer
}

// New creates an explorer over pl backed by a readline terminal.
func New(pl *payload.Payload, cfg Config) (*Shell, error) {
	s := newShell(pl, cfg.Out)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mtscope>\033[0m ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    NewCompleter(pl),
		Stdout:          s.out,
	})
	if err != nil {
		return nil, tserrors.WrapInternal(err, tserrors.ErrInternalError, "failed to initialise terminal")
	}
	s.rl = rl
	s.color = true
	return s, nil
}

func newShell(pl *payload.Payload, out io.Writer) *Shell {
	if out == nil {
		out = os.Stdout
	}
	return &Shell{payload: pl, out: out}
}

// Run reads commands until /quit, EOF or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	defer s.rl.Close()

	fmt.Fprintf(s.out, "Payload %s: %d layers x %d neurons.\n",
		s.payload.ID(), s.payload.NumLayers(), s.payload.NumMLPNeurons())
	fmt.Fprintln(s.out, "Type /help for commands, Tab to complete.")
	fmt.Fprintln(s.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		if err := s.Execute(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			s.printError(err)
		}
	}
}

var errQuit = errors.New("quit")

// Execute runs one command line. It returns errQuit for /quit.
func (s *Shell) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument,
			"commands start with '/'; type /help for a list")
	}

	parts := strings.Fields(line)
	args := parts[1:]

	switch parts[0] {
	case "/quit", "/exit", "/q":
		return errQuit
	case "/help", "/h":
		return s.handleHelp(args)
	case "/info":
		s.printInfo()
	case "/values":
		s.printValues()
	case "/value":
		return s.handleValue(args)
	case "/top":
		return s.handleTop(args)
	case "/render":
		return s.handleRender(args)
	case "/template":
		fmt.Fprintln(s.out, s.payload.Template().Source())
	default:
		return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "unknown command: %s", parts[0])
	}
	return nil
}

func (s *Shell) printError(err error) {
	f := &tserrors.Formatter{UseColor: s.color, Writer: s.out, Indent: "  "}
	f.Display(err)
}

func (s *Shell) handleHelp(args []string) error {
	r := help.NewRenderer(s.out, s.color)
	switch len(args) {
	case 0:
		r.RenderFull()
	case 1:
		if !r.RenderCommand(args[0]) {
			return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "unknown command: %s", args[0])
		}
	default:
		return usage("/help [command]")
	}
	return nil
}

func (s *Shell) printInfo() {
	pl := s.payload
	fmt.Fprintf(s.out, "Payload: %s\n", pl.ID())
	fmt.Fprintf(s.out, "  Layers:  %d\n", pl.NumLayers())
	fmt.Fprintf(s.out, "  Neurons: %d per layer\n", pl.NumMLPNeurons())
	fmt.Fprintf(s.out, "  Values:  %d\n", len(pl.ValueNames()))
	if pl.Ranked() {
		fmt.Fprintln(s.out, "  Ranked:  yes")
	} else {
		fmt.Fprintln(s.out, "  Ranked:  no")
	}
}

func (s *Shell) printValues() {
	for _, name := range s.payload.ValueNames() {
		v, _ := s.payload.Value(name)
		fmt.Fprintf(s.out, "  %-20s %-7s %-6s %v\n", name, v.Scope(), v.DataType(), v.Shape())
	}
}

func (s *Shell) handleValue(args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return usage("/value <name> [layer neuron]")
	}
	v, ok := s.payload.Value(args[0])
	if !ok {
		return tserrors.ValueNotFound(args[0])
	}
	if len(args) == 1 {
		fmt.Fprintf(s.out, "%s (%s): %s\n", args[0], v.Scope(), formatArray(v.Array()))
		return nil
	}

	layer, neuron, err := parseCoordinates(args[1], args[2])
	if err != nil {
		return err
	}
	if err := s.payload.CheckCoordinates(layer, neuron); err != nil {
		return err
	}
	slice, err := v.SliceAt(layer, neuron)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s[L%d/N%d]: %s\n", args[0], layer, neuron, formatArray(slice))
	return nil
}

func (s *Shell) handleTop(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("/top <layer> [k]")
	}
	layer, err := parseIndex("layer", args[0])
	if err != nil {
		return err
	}
	k := DefaultTopK
	if len(args) == 2 {
		if k, err = parseIndex("k", args[1]); err != nil {
			return err
		}
	}

	order, err := s.payload.LayerOrder(layer)
	if err != nil {
		return err
	}
	if k < len(order) {
		order = order[:k]
	}
	if !s.payload.Ranked() {
		fmt.Fprintln(s.out, "(payload is unranked; showing index order)")
	}
	for i, n := range order {
		fmt.Fprintf(s.out, "  %3d. L%d/N%d\n", i+1, layer, n)
	}
	return nil
}

func (s *Shell) handleRender(args []string) error {
	if len(args) != 2 {
		return usage("/render <layer> <neuron>")
	}
	layer, neuron, err := parseCoordinates(args[0], args[1])
	if err != nil {
		return err
	}
	out, err := s.payload.RenderNeuron(layer, neuron, TextRenderer{})
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, out)
	return nil
}

func usage(text string) error {
	return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "usage: %s", text)
}

func parseCoordinates(layerArg, neuronArg string) (int, int, error) {
	layer, err := parseIndex("layer", layerArg)
	if err != nil {
		return 0, 0, err
	}
	neuron, err := parseIndex("neuron", neuronArg)
	if err != nil {
		return 0, 0, err
	}
	return layer, neuron, nil
}

func parseIndex(what, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return 0, tserrors.ValidationErrorf(tserrors.ErrInvalidArgument,
			"%s must be a non-negative integer, got %q", what, arg)
	}
	return n, nil
}

// formatArray prints small arrays in full and large ones as a summary.
func formatArray(a data.Array) string {
	if a.Len() > 64 {
		return fmt.Sprintf("%s%v (%d elements)", a.DataType(), a.Shape(), a.Len())
	}
	switch arr := a.(type) {
	case *data.NDArray[float32]:
		return fmt.Sprintf("%v %v", arr.Shape(), arr.Data())
	case *data.NDArray[uint32]:
		return fmt.Sprintf("%v %v", arr.Shape(), arr.Data())
	case *data.NDArray[string]:
		return fmt.Sprintf("%v %q", arr.Shape(), arr.Data())
	}
	return fmt.Sprint(a)
}
