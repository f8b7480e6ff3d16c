package downloader

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/x/ansi"

	"github.com/lvcoi/ytdlp-picker/internal/progress"
)

// DefaultProgressInterval is the minimum gap between two progress redraws.
const DefaultProgressInterval = 200 * time.Millisecond

// progressStatsWidth fits " <bar> 100.0% of 123.45MiB at 12.34MiB/s ETA 01:02:03"
// minus the bar itself.
const progressStatsWidth = 48

// progressWriter renders parsed download events on the printer's progress
// line. Plain progress updates are coalesced to one redraw per interval;
// completion and error events always redraw at once.
type progressWriter struct {
	printer  *Printer
	prefix   string
	interval time.Duration
	now      func() time.Time
	bar      bar.Model

	lastUpdate atomic.Int64 // Unix nanoseconds of the last redraw
	finished   atomic.Bool
	redraws    atomic.Int64

	mu    sync.Mutex
	state progress.Event
}

func newProgressWriter(printer *Printer, prefix string, interval time.Duration) *progressWriter {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &progressWriter{
		printer:  printer,
		prefix:   prefix,
		interval: interval,
		now:      time.Now,
		bar: bar.New(bar.WithDefaultGradient(), bar.WithWidth(progressBarWidth(printer.columns, prefix)),
			bar.WithoutPercentage()),
	}
}

// progressBarWidth sizes the bar to what is left of the line after the prefix
// and the stats. The printer clips whatever still does not fit.
func progressBarWidth(columns int, prefix string) int {
	width := columns - ansi.StringWidth(prefix) - progressStatsWidth
	if width > 30 {
		width = 30
	}
	if width < 10 {
		width = 10
	}
	return width
}

// Handle merges ev into the current state and redraws if allowed.
func (p *progressWriter) Handle(ev progress.Event) {
	if p.finished.Load() {
		return
	}
	p.merge(ev)

	now := p.now().UnixNano()
	if ev.Terminal() {
		p.lastUpdate.Store(now)
		p.print()
		return
	}
	last := p.lastUpdate.Load()
	if now-last < p.interval.Nanoseconds() {
		return
	}
	if p.lastUpdate.CompareAndSwap(last, now) {
		p.print()
	}
}

func (p *progressWriter) merge(ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// A new destination starts a new stream: forget the old numbers.
	if ev.Filename != "" && ev.Percentage == nil && ev.Kind == progress.KindProgress {
		p.state = progress.Event{Kind: progress.KindProgress, Filename: ev.Filename}
		return
	}
	p.state.Kind = ev.Kind
	if ev.Percentage != nil {
		v := *ev.Percentage
		p.state.Percentage = &v
	}
	keep(&p.state.Speed, ev.Speed)
	keep(&p.state.ETA, ev.ETA)
	keep(&p.state.Size, ev.Size)
	keep(&p.state.Filename, ev.Filename)
	keep(&p.state.Message, ev.Message)
}

func keep(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func (p *progressWriter) print() {
	p.redraws.Add(1)
	p.printer.writeProgressLine(p.line())
}

func (p *progressWriter) line() string {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	var b strings.Builder
	b.WriteString(p.prefix)
	switch state.Kind {
	case progress.KindError:
		b.WriteString(" error: ")
		b.WriteString(state.Message)
		return b.String()
	case progress.KindComplete:
		b.WriteString(" ")
		b.WriteString(p.bar.ViewAs(1))
		b.WriteString(" 100.0% done")
		if state.Size != "" {
			b.WriteString(" " + state.Size)
		}
		return b.String()
	}

	pct, ok := state.Percent()
	if !ok {
		name := state.Filename
		if name == "" {
			name = "starting"
		}
		b.WriteString(" ")
		b.WriteString(name)
		return b.String()
	}
	fmt.Fprintf(&b, " %s %s", p.bar.ViewAs(pct/100), padLeft(fmt.Sprintf("%.1f%%", pct), 6))
	if state.Size != "" {
		b.WriteString(" of " + state.Size)
	}
	if state.Speed != "" {
		b.WriteString(" at " + state.Speed)
	}
	if state.ETA != "" {
		b.WriteString(" ETA " + state.ETA)
	}
	return b.String()
}

// Finish ends the progress line. Without a terminal only the final state is
// printed, as one plain line.
func (p *progressWriter) Finish() {
	if p.finished.Swap(true) {
		return
	}
	if !p.printer.progressEnabled {
		p.mu.Lock()
		seen := p.state.Kind != ""
		p.mu.Unlock()
		if seen {
			p.printer.Println(p.plainLine())
		}
		return
	}
	p.printer.endProgressLine()
}

// plainLine is line without the bar, for logs and pipes.
func (p *progressWriter) plainLine() string {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	switch state.Kind {
	case progress.KindError:
		return p.prefix + " error: " + state.Message
	case progress.KindComplete:
		return p.prefix + " 100.0% done"
	}
	if pct, ok := state.Percent(); ok {
		return fmt.Sprintf("%s %.1f%%", p.prefix, pct)
	}
	return p.prefix
}
