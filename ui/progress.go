package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressBar shows progress of a step with a known number of units.
// On a terminal it redraws one line, otherwise it prints a line every 25%.
type ProgressBar struct {
	c        *Console
	total    int
	current  int
	label    string
	started  time.Time
	finished bool
	writeErr bool
	mu       sync.Mutex

	lastPrintedPct int
}

// NewProgressBar creates a progress bar writing to ErrOut.
func (c *Console) NewProgressBar(total int, label string) *ProgressBar {
	return &ProgressBar{
		c:              c,
		total:          total,
		label:          label,
		started:        time.Now(),
		lastPrintedPct: -1,
	}
}

// Set moves the bar to current and replaces the label when one is given.
// Values are clamped to [0, total].
func (pb *ProgressBar) Set(current int, label string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.finished {
		return
	}

	if current < 0 {
		current = 0
	}
	if pb.total > 0 && current > pb.total {
		current = pb.total
	}

	pb.current = current
	if label != "" {
		pb.label = label
	}
	pb.render()
}

// Finish completes the bar at 100%.
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.finished {
		return
	}
	pb.current = pb.total
	pb.finished = true

	pb.render()
	if pb.c.IsStderrTTY() && !pb.writeErr {
		fmt.Fprintln(pb.c.ErrOut)
	}
}

// Abort stops the bar where it is. A TTY line is terminated so following
// output starts on a fresh line.
func (pb *ProgressBar) Abort() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.finished {
		return
	}
	pb.finished = true
	if pb.c.IsStderrTTY() && !pb.writeErr {
		fmt.Fprintln(pb.c.ErrOut)
	}
}

func (pb *ProgressBar) render() {
	if pb.writeErr {
		return
	}
	if pb.c.IsStderrTTY() {
		pb.renderTTY()
	} else {
		pb.renderNonTTY()
	}
}

// renderTTY draws: Label [=====-----] 45% 0:12
func (pb *ProgressBar) renderTTY() {
	pct := pb.percentage()
	barWidth := 30
	filled := barWidth * pct / 100

	bar := strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled)
	elapsed := time.Since(pb.started).Truncate(time.Second)

	label := pb.c.style(StepStyle).Render(pb.label)
	if _, err := fmt.Fprintf(pb.c.ErrOut, "\r\033[K%s [%s] %3d%% %s", label, bar, pct, elapsed); err != nil {
		pb.writeErr = true
	}
}

// renderNonTTY prints a line each time a 25% threshold is crossed.
func (pb *ProgressBar) renderNonTTY() {
	pct := pb.percentage()

	threshold := (pct / 25) * 25
	if threshold == pb.lastPrintedPct {
		return
	}

	pb.lastPrintedPct = threshold
	if _, err := fmt.Fprintf(pb.c.ErrOut, "%s... %d%%\n", pb.label, pct); err != nil {
		pb.writeErr = true
	}
}

func (pb *ProgressBar) percentage() int {
	if pb.total <= 0 {
		return 0
	}
	pct := pb.current * 100 / pb.total
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
