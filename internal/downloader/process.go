package downloader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Stream identifies which pipe a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// Line is one line of child output.
type Line struct {
	Stream Stream
	Text   string
}

// waitDelay bounds how long a cancelled child may keep its pipes open.
const waitDelay = 3 * time.Second

// Handle is one running child process. Every invocation gets its own Handle;
// nothing is shared between them.
type Handle struct {
	cmd   *exec.Cmd
	lines chan Line
	done  chan struct{}

	exitCode int
	err      error
}

// Spawn starts path with args. The child is killed when ctx is cancelled.
// Lines must be drained until closed, after which Wait returns immediately.
func Spawn(ctx context.Context, path string, args ...string) (*Handle, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = waitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, wrapCategory(CategoryProcess, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, wrapCategory(CategoryProcess, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, wrapCategory(CategoryProcess, fmt.Errorf("starting %s: %w", path, err))
	}

	h := &Handle{
		cmd:      cmd,
		lines:    make(chan Line, 64),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go h.pump(&wg, stdout, Stdout)
	go h.pump(&wg, stderr, Stderr)
	go func() {
		wg.Wait()
		h.finish(ctx, cmd.Wait())
		close(h.lines)
		close(h.done)
	}()
	return h, nil
}

func (h *Handle) pump(wg *sync.WaitGroup, r io.Reader, stream Stream) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		h.lines <- Line{Stream: stream, Text: text}
	}
	// Keep the pipe drained if the scanner gave up on an oversized line.
	_, _ = io.Copy(io.Discard, r)
}

func (h *Handle) finish(ctx context.Context, err error) {
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	switch {
	case ctx.Err() != nil:
		h.err = ctx.Err()
	case err != nil:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			h.err = wrapCategory(CategoryProcess, err)
		}
	}
}

// Lines streams child output until the child exits.
func (h *Handle) Lines() <-chan Line {
	return h.lines
}

// Wait blocks until the child exited and its output was drained. A non-zero
// exit status is reported through the code, not the error.
func (h *Handle) Wait() (int, error) {
	<-h.done
	return h.exitCode, h.err
}

// runOutput runs path to completion and returns stdout. On a non-zero exit the
// last "ERROR:" line from stderr becomes the message.
func runOutput(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &toolError{code: exitErr.ExitCode(), message: lastErrorLine(stderr.String())}
		}
		return nil, wrapCategory(CategoryProcess, fmt.Errorf("running %s: %w", path, err))
	}
	return stdout.Bytes(), nil
}

type toolError struct {
	code    int
	message string
}

func (e *toolError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.message
}

func lastErrorLine(stderr string) string {
	var last, fallback string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fallback = line
		if msg, ok := strings.CutPrefix(line, "ERROR:"); ok {
			last = strings.TrimSpace(msg)
		}
	}
	if last != "" {
		return last
	}
	return fallback
}

// scanLines splits on '\n' or '\r' so in-place progress redraws arrive as
// separate lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
