// Package spinner provides terminal feedback for long-running operations:
// an animated spinner for waits of unknown length (loading or encoding a
// snapshot) and a progress bar for counted work (rendering layers).
package spinner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// ANSI escape sequences for terminal control.
const (
	hideCursor     = "\033[?25l"
	showCursor     = "\033[?25h"
	clearLine      = "\r\033[K"
	carriageReturn = "\r"

	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorReset = "\033[0m"

	symbolSuccess = "✓"
	symbolFailure = "✗"
)

// Braille is the spinner animation.
var Braille = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Config holds configuration options for a spinner.
type Config struct {
	// Message is the text displayed next to the spinner.
	Message string

	// RefreshRate controls how fast the spinner animates. Defaults to 80ms.
	RefreshRate time.Duration

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// IsTTY overrides terminal detection on Writer. Without a terminal the
	// spinner prints its message once and its result once.
	IsTTY *bool
}

// Spinner displays an animated spinner in the terminal.
type Spinner struct {
	mu sync.Mutex

	config    Config
	isTTY     bool
	active    bool
	startTime time.Time
	frame     int
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a spinner writing to stderr.
func New(message string) *Spinner {
	return NewWithConfig(Config{Message: message})
}

// NewWithConfig creates a spinner with custom configuration.
func NewWithConfig(config Config) *Spinner {
	if config.RefreshRate <= 0 {
		config.RefreshRate = 80 * time.Millisecond
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	return &Spinner{config: config, isTTY: resolveTTY(config.Writer, config.IsTTY)}
}

func resolveTTY(w io.Writer, override *bool) bool {
	if override != nil {
		return *override
	}
	return isTerminalWriter(w)
}

// isTerminalWriter reports whether w is an *os.File attached to a terminal.
func isTerminalWriter(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// IsActive reports whether the spinner is running.
func (s *Spinner) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start begins the animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.startTime = time.Now()

	if !s.isTTY {
		fmt.Fprintln(s.config.Writer, s.config.Message)
		return
	}
	fmt.Fprint(s.config.Writer, hideCursor)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.spin(s.stopCh, s.doneCh)
}

func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.config.RefreshRate)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		fmt.Fprintf(s.config.Writer, "%s%s %s %s", clearLine, Braille[s.frame%len(Braille)],
			s.config.Message, formatElapsed(time.Since(s.startTime)))
		s.frame++
		s.mu.Unlock()

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(message string) {
	s.stop(message, symbolSuccess, colorGreen)
}

// Fail stops the spinner and prints a failure line.
func (s *Spinner) Fail(message string) {
	s.stop(message, symbolFailure, colorRed)
}

func (s *Spinner) stop(message, symbol, color string) {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	stop, done := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		message = s.config.Message
	}
	elapsed := ""
	if wasActive {
		elapsed = " " + formatElapsed(time.Since(s.startTime))
	}
	writeResult(s.config.Writer, s.isTTY, symbol, color, message+elapsed)
}

// writeResult prints the final status line, colored on terminals.
func writeResult(w io.Writer, tty bool, symbol, color, text string) {
	if tty {
		fmt.Fprintf(w, "%s%s%s%s %s\n", clearLine+showCursor, color, symbol, colorReset, text)
		return
	}
	fmt.Fprintf(w, "%s %s\n", symbol, text)
}

// formatElapsed renders d as "(1.2s)" or "(1m 30s)".
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("(%.1fs)", d.Seconds())
	}
	return fmt.Sprintf("(%dm %ds)", int(d.Minutes()), int(d.Seconds())%60)
}
