package downloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/reconcile"
)

var promptHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7FDBFF"))

type lineResult struct {
	text string
	err  error
}

// Prompter reads operator answers line by line. A read is only outstanding
// while a prompt is open, so a full-screen UI can own the terminal between
// prompts. A prompt abandoned through ctx hands its line to the next one.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer

	mu      sync.Mutex
	pending chan lineResult
}

// NewPrompter reads from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(in), out: out}
}

// ReadLine prints prompt and waits for one line or for ctx to end.
func (p *Prompter) ReadLine(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		ch := make(chan lineResult, 1)
		p.pending = ch
		go func() {
			line, err := p.reader.ReadString('\n')
			ch <- lineResult{text: line, err: err}
		}()
	}

	fmt.Fprint(p.out, prompt)
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case r := <-p.pending:
		p.pending = nil
		text := strings.TrimRight(r.text, "\r\n")
		switch {
		case r.err == nil:
			return text, nil
		case !errors.Is(r.err, io.EOF):
			return "", wrapCategory(CategoryInput, r.err)
		case r.text != "":
			return text, nil
		}
		return "", ErrNoInput
	}
}

// ChooseIndex asks for a number in 1..n until it gets one and returns it
// 0-based. Invalid answers re-prompt; there is no default.
func (p *Prompter) ChooseIndex(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, wrapCategory(CategoryUnsupported, errors.New("nothing to choose from"))
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		line, err := p.ReadLine(ctx, fmt.Sprintf("Enter your choice (1-%d): ", n))
		if err != nil {
			return 0, err
		}
		choice, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr == nil && choice >= 1 && choice <= n {
			return choice - 1, nil
		}
		fmt.Fprintf(p.out, "[ERROR] Please enter a number between 1 and %d\n", n)
	}
}

// LineChooser asks the operator to pick formats on plain terminal lines.
type LineChooser struct {
	Prompter *Prompter
	Out      io.Writer
}

// ChooseFormat lists the candidates of one video and returns the pick.
func (c *LineChooser) ChooseFormat(ctx context.Context, title string, candidates []formats.Candidate) (int, error) {
	fmt.Fprintln(c.Out)
	fmt.Fprintln(c.Out, promptHeaderStyle.Render("[>] Available formats for "+title+":"))
	for i, row := range candidateRows(candidates) {
		fmt.Fprintf(c.Out, "%d. %s\n", i+1, row)
	}
	return c.Prompter.ChooseIndex(ctx, len(candidates))
}

// Choose implements reconcile.Chooser.
func (c *LineChooser) Choose(ctx context.Context, round reconcile.Round) (int, error) {
	fmt.Fprintln(c.Out)
	fmt.Fprintln(c.Out, promptHeaderStyle.Render(roundTitle(round)))
	for i, row := range roundRows(round) {
		fmt.Fprintf(c.Out, "%d. %s\n", i+1, row)
	}
	return c.Prompter.ChooseIndex(ctx, len(round.Options))
}

func candidateRows(candidates []formats.Candidate) []string {
	rows := make([]string, 0, len(candidates))
	for _, c := range candidates {
		row := formats.Describe(c)
		if c.Kind != "" && c.Kind != formats.KindCombined {
			row += " [" + string(c.Kind) + "]"
		}
		rows = append(rows, fmt.Sprintf("%s  (-f %s)", row, c.Spec))
	}
	return rows
}

func roundRows(round reconcile.Round) []string {
	rows := make([]string, 0, len(round.Options))
	for _, opt := range round.Options {
		rows = append(rows, fmt.Sprintf("%s - Available in %d/%d videos",
			formats.DescribeWithTotal(opt.Candidate, opt.TotalSize), opt.Supported, round.Remaining))
	}
	return rows
}

func roundTitle(round reconcile.Round) string {
	return fmt.Sprintf("[>] Round %d: %d videos remaining. Available formats:", round.Number, round.Remaining)
}
