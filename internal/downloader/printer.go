package downloader

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// LogLevel orders log messages by severity.
type LogLevel int

// LogInfo is the zero value so an unset threshold hides debug lines.
const (
	LogDebug LogLevel = iota - 1
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "DEBUG"
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	}
	return "LOG"
}

// ParseLogLevel accepts debug, info, warn/warning and error.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogDebug, nil
	case "", "info":
		return LogInfo, nil
	case "warn", "warning":
		return LogWarn, nil
	case "error":
		return LogError, nil
	}
	return LogInfo, fmt.Errorf("unknown log level %q", s)
}

// PrinterOptions configures a Printer.
type PrinterOptions struct {
	Quiet    bool
	LogLevel LogLevel
	// Out defaults to os.Stderr.
	Out io.Writer
	// Color forces color on or off; nil detects it from the terminal.
	Color *bool
}

// Printer owns the operator's terminal: log lines, per-item status lines and
// the single progress line. Everything that writes to stderr goes through it
// so a log line never lands in the middle of a progress redraw.
type Printer struct {
	out             io.Writer
	quiet           bool
	level           LogLevel
	progressEnabled bool
	columns         int
	titleWidth      int

	ok, fail, skip, warn, info, dim *color.Color

	mu         sync.Mutex
	lineActive bool
}

// NewPrinter builds a Printer for opts.
func NewPrinter(opts PrinterOptions) *Printer {
	out := opts.Out
	tty := false
	if out == nil {
		out = os.Stderr
		tty = isTerminal(os.Stderr)
	}

	columns := terminalColumns(out)
	if columns <= 0 {
		columns = 100
	}
	titleWidth := columns - 44
	if titleWidth < 20 {
		titleWidth = 20
	}
	if titleWidth > 60 {
		titleWidth = 60
	}

	useColor := tty && supportsColor()
	if opts.Color != nil {
		useColor = *opts.Color
	}

	p := &Printer{
		out:             out,
		quiet:           opts.Quiet,
		level:           opts.LogLevel,
		progressEnabled: tty && !opts.Quiet,
		columns:         columns,
		titleWidth:      titleWidth,
		ok:              color.New(color.FgGreen, color.Bold),
		fail:            color.New(color.FgRed, color.Bold),
		skip:            color.New(color.FgYellow),
		warn:            color.New(color.FgYellow),
		info:            color.New(color.FgCyan),
		dim:             color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.ok, p.fail, p.skip, p.warn, p.info, p.dim} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Log writes "[LEVEL] msg" when level passes the threshold. Quiet mode drops
// everything below warnings.
func (p *Printer) Log(level LogLevel, msg string) {
	if p == nil || level < p.level {
		return
	}
	if p.quiet && level < LogWarn {
		return
	}
	tag := "[" + level.String() + "]"
	switch level {
	case LogDebug:
		tag = p.dim.Sprint(tag)
	case LogInfo:
		tag = p.info.Sprint(tag)
	case LogWarn:
		tag = p.warn.Sprint(tag)
	case LogError:
		tag = p.fail.Sprint(tag)
	}
	p.println(tag + " " + msg)
}

// Logf is Log with formatting.
func (p *Printer) Logf(level LogLevel, format string, args ...any) {
	if p == nil || level < p.level {
		return
	}
	p.Log(level, fmt.Sprintf(format, args...))
}

// Println writes a plain line. It is dropped in quiet mode.
func (p *Printer) Println(msg string) {
	if p == nil || p.quiet {
		return
	}
	p.println(msg)
}

// Heading writes a highlighted section line such as a round banner.
func (p *Printer) Heading(msg string) {
	if p == nil || p.quiet {
		return
	}
	p.println(p.info.Sprint(msg))
}

// Prefix renders "[ 3/12] Title" padded to the title column.
func (p *Printer) Prefix(index, total int, title string) string {
	if total <= 0 {
		total = 1
	}
	width := len(strconv.Itoa(total))
	idx := fmt.Sprintf("%*d/%d", width, index, total)
	return fmt.Sprintf("[%s] %s", idx, padRight(truncateText(title, p.titleWidth), p.titleWidth))
}

// ItemResult prints the final OK/FAIL line for one download.
func (p *Printer) ItemResult(prefix string, result ItemResult) {
	if result.Err == nil && p.quiet {
		return
	}
	status := p.ok.Sprint("OK")
	plain := "OK"
	detail := result.OutputPath
	if result.Elapsed > 0 {
		detail = strings.TrimSpace(fmt.Sprintf("%s in %s", detail, formatDurationShort(result.Elapsed)))
	}
	if result.Synthesized {
		detail += " (exit 0)"
	}
	if result.Err != nil {
		status = p.fail.Sprint("FAIL")
		plain = "FAIL"
		detail = result.Err.Error()
	}
	maxDetail := p.columns - ansi.StringWidth(prefix) - len(plain) - 3
	if maxDetail < 0 {
		maxDetail = 0
	}
	p.println(fmt.Sprintf("%s %s %s", prefix, status, truncateText(detail, maxDetail)))
}

// ItemSkipped prints a SKIP line.
func (p *Printer) ItemSkipped(prefix, reason string) {
	if p.quiet {
		return
	}
	maxDetail := p.columns - ansi.StringWidth(prefix) - len("SKIP") - 3
	if maxDetail < 0 {
		maxDetail = 0
	}
	p.println(fmt.Sprintf("%s %s %s", prefix, p.skip.Sprint("SKIP"), truncateText(reason, maxDetail)))
}

// Summary prints the closing tally for a batch.
func (p *Printer) Summary(s Summary) {
	if p.quiet {
		return
	}
	p.println(fmt.Sprintf("Summary: %s %d | %s %d | %s %d | TOTAL %d | TIME %s",
		p.ok.Sprint("OK"), s.OK, p.fail.Sprint("FAIL"), s.Failed, p.skip.Sprint("SKIP"), s.Skipped,
		s.Total, formatDurationShort(s.Elapsed)))
}

// writeProgressLine redraws the progress line in place.
func (p *Printer) writeProgressLine(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.progressEnabled {
		return
	}
	fmt.Fprintf(p.out, "\r%s\x1b[K", truncateText(line, p.columns))
	p.lineActive = true
}

// endProgressLine moves past the progress line, keeping its last content.
func (p *Printer) endProgressLine() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lineActive {
		fmt.Fprint(p.out, "\n")
		p.lineActive = false
	}
}

func (p *Printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lineActive {
		p.clearLineLocked()
	}
	fmt.Fprintln(p.out, line)
}

func (p *Printer) clearLineLocked() {
	fmt.Fprint(p.out, "\r\x1b[K")
	p.lineActive = false
}

func padLeft(value string, width int) string {
	if w := ansi.StringWidth(value); w < width {
		return strings.Repeat(" ", width-w) + value
	}
	return value
}

func padRight(value string, width int) string {
	if w := ansi.StringWidth(value); w < width {
		return value + strings.Repeat(" ", width-w)
	}
	return value
}

// truncateText cuts text to max terminal cells, ending in "..." when there is
// room for it. Escape sequences are kept intact and wide runes are never split.
func truncateText(text string, max int) string {
	if max <= 0 || ansi.StringWidth(text) <= max {
		return text
	}
	if max <= 3 {
		return ansi.Truncate(text, max, "")
	}
	return ansi.Truncate(text, max, "...")
}

// formatDurationShort formats a duration as "5s", "2m30s" or "1h15m".
func formatDurationShort(d time.Duration) string {
	totalSeconds := int64(d.Seconds())
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", totalSeconds)
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", totalSeconds/60, totalSeconds%60)
	}
	return fmt.Sprintf("%dh%dm", totalSeconds/3600, (totalSeconds%3600)/60)
}

func terminalColumns(out io.Writer) int {
	if columns := os.Getenv("COLUMNS"); columns != "" {
		if val, err := strconv.Atoi(columns); err == nil && val > 0 {
			return val
		}
	}
	if f, ok := out.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 0
}

func supportsColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return true
}

func isTerminal(file *os.File) bool {
	if file == nil {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
