package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	barFilled = "█"
	barEmpty  = "░"
	barWidth  = 20
)

// ProgressConfig holds configuration options for a progress bar.
type ProgressConfig struct {
	// Total is the number of items to process; values below 1 become 1.
	Total int

	// Message is the text displayed next to the bar.
	Message string

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// IsTTY overrides terminal detection on Writer. Without a terminal the
	// bar prints a line at every tenth of progress.
	IsTTY *bool
}

// ProgressBar displays counted progress. It is safe for concurrent use, so
// workers can call Increment directly.
type ProgressBar struct {
	mu sync.Mutex

	config    ProgressConfig
	isTTY     bool
	active    bool
	current   int
	startTime time.Time
}

// NewProgress creates a progress bar writing to stderr.
func NewProgress(total int, message string) *ProgressBar {
	return NewProgressWithConfig(ProgressConfig{Total: total, Message: message})
}

// NewProgressWithConfig creates a progress bar with custom configuration.
func NewProgressWithConfig(config ProgressConfig) *ProgressBar {
	if config.Total < 1 {
		config.Total = 1
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	return &ProgressBar{config: config, isTTY: resolveTTY(config.Writer, config.IsTTY)}
}

// Current returns the number of completed items.
func (p *ProgressBar) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Start shows the empty bar. Starting a running bar is a no-op.
func (p *ProgressBar) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return
	}
	p.active = true
	p.current = 0
	p.startTime = time.Now()
	if p.isTTY {
		fmt.Fprint(p.config.Writer, hideCursor)
	}
	p.render(-1)
}

// Increment advances the bar by one item.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.current >= p.config.Total {
		return
	}
	prev := p.current
	p.current++
	p.render(prev)
}

// render draws the bar. Without a terminal it prints only when progress
// crosses a tenth, or on the first draw (prev < 0). Caller holds mu.
func (p *ProgressBar) render(prev int) {
	line := p.line()
	if p.isTTY {
		fmt.Fprint(p.config.Writer, clearLine+line)
		return
	}
	if prev < 0 || prev*10/p.config.Total != p.current*10/p.config.Total {
		fmt.Fprintln(p.config.Writer, line)
	}
}

// line builds "Message [████░░░░] 40% (8/20) (2.4s)". Caller holds mu.
func (p *ProgressBar) line() string {
	filled := p.current * barWidth / p.config.Total
	bar := "[" + strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, barWidth-filled) + "]"
	parts := []string{
		bar,
		fmt.Sprintf("%d%%", p.current*100/p.config.Total),
		fmt.Sprintf("(%d/%d)", p.current, p.config.Total),
		formatElapsed(time.Since(p.startTime)),
	}
	if p.config.Message != "" {
		parts = append([]string{p.config.Message}, parts...)
	}
	return strings.Join(parts, " ")
}

// Complete stops the bar and prints a success line.
func (p *ProgressBar) Complete(message string) {
	p.finish(message, symbolSuccess, colorGreen)
}

// Fail stops the bar and prints a failure line.
func (p *ProgressBar) Fail(message string) {
	p.finish(message, symbolFailure, colorRed)
}

func (p *ProgressBar) finish(message, symbol, color string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if message == "" {
		message = p.config.Message + " complete"
	}
	if p.active {
		message += " " + formatElapsed(time.Since(p.startTime))
	}
	p.active = false
	writeResult(p.config.Writer, p.isTTY, symbol, color, message)
}
