package logview

import (
	"fmt"
	"io"
	"sync"

	"github.com/crimson-sun/updash/internal/model"
)

// Printer is the headless log panel: every entry becomes one line on w.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Append writes one entry. Notices are wrapped in asterisks.
func (p *Printer) Append(e model.LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text := e.Text
	if e.Notice {
		text = "** " + text + " **"
	}
	fmt.Fprintln(p.w, text)
	p.n++
}

// Len returns the number of entries written.
func (p *Printer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
