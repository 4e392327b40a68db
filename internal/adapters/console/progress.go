// Package console prints operator-facing progress lines.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Color modes accepted by NewProgressPrinter.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// ProgressPrinter implements ports.ProgressReporter with lines of the form
// "[i/N] P.PP%". The final line is highlighted when color is enabled.
type ProgressPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	running  *color.Color
	finished *color.Color
}

// NewProgressPrinter creates a printer writing to out. mode is one of
// ColorAuto, ColorAlways or ColorNever; auto follows color.NoColor, which is
// set when stdout is not a terminal.
func NewProgressPrinter(out io.Writer, mode string) *ProgressPrinter {
	p := &ProgressPrinter{
		out:      out,
		running:  color.New(color.FgCyan),
		finished: color.New(color.FgGreen, color.Bold),
	}
	switch mode {
	case ColorAlways:
		p.running.EnableColor()
		p.finished.EnableColor()
	case ColorNever:
		p.running.DisableColor()
		p.finished.DisableColor()
	}
	return p
}

// Progress prints the line for command done out of total.
func (p *ProgressPrinter) Progress(done, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.running
	if done >= total {
		c = p.finished
	}
	if _, err := c.Fprintln(p.out, FormatProgress(done, total)); err != nil {
		return fmt.Errorf("print progress: %w", err)
	}
	return nil
}

// FormatProgress renders "[done/total] P.PP%".
func FormatProgress(done, total int) string {
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	return fmt.Sprintf("[%d/%d] %.2f%%", done, total, pct)
}
