package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/cwbudde/framedelta/internal/analyze"
)

// progressPrinter shows pipeline progress: carriage-return updates on an
// interactive terminal, periodic log lines otherwise.
type progressPrinter struct {
	mu     sync.Mutex
	out    *os.File
	tty    bool
	last   time.Time
	dirty  bool
	latest analyze.Progress
}

func newProgressPrinter(out *os.File) *progressPrinter {
	return &progressPrinter{
		out: out,
		tty: isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
	}
}

// update receives progress snapshots from the analyzer. Output is
// throttled so tight frame loops do not flood the terminal.
func (p *progressPrinter) update(pr analyze.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = pr
	p.dirty = true

	interval := 100 * time.Millisecond
	if !p.tty {
		interval = 2 * time.Second
	}
	if time.Since(p.last) < interval {
		return
	}
	p.last = time.Now()
	p.emit()
}

func (p *progressPrinter) emit() {
	if p.tty {
		fmt.Fprintf(p.out, "\rframes %d  pairs %d  keyframes %d", p.latest.FramesRead, p.latest.PairsScored, p.latest.Keyframes)
	} else {
		slog.Info("Analysis progress", "frames", p.latest.FramesRead, "pairs", p.latest.PairsScored, "keyframes", p.latest.Keyframes)
	}
	p.dirty = false
}

// done flushes the final snapshot and terminates the progress line.
func (p *progressPrinter) done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dirty {
		p.emit()
	}
	if p.tty {
		fmt.Fprintln(p.out)
	}
}
