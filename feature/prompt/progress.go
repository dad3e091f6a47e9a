package prompt

import (
	"fmt"
	"io"
	"sync"
)

// Progress implements reconcile.Progress as one status line per phase.
type Progress struct {
	mu    sync.Mutex
	out   io.Writer
	phase string
	total int
	done  int
}

// NewProgress writes progress to out.
func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out}
}

// Start begins a phase.
func (p *Progress) Start(phase string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase, p.total, p.done = phase, total, 0
	fmt.Fprintf(p.out, "%s %s\n", phaseStyle.Render(p.phase), dimStyle.Render(fmt.Sprintf("(%d)", total)))
}

// Increment advances the phase by n.
func (p *Progress) Increment(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
}

// Done ends the phase.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == "" {
		return
	}
	fmt.Fprintf(p.out, "  %s %d/%d\n", successStyle.Render("done"), p.done, p.total)
	p.phase = ""
}
