package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/lvcoi/ytdlp-picker/internal/progress"
)

// DownloadRequest describes one yt-dlp download.
type DownloadRequest struct {
	URL  string
	Spec string
	// OutputTemplate is passed to yt-dlp as -o.
	OutputTemplate string
}

// DownloadResult is what a finished download left behind.
type DownloadResult struct {
	OutputPath string
	// Synthesized is set when yt-dlp exited 0 without printing a completion
	// line and the completion event was generated locally.
	Synthesized bool
}

// Observer receives what a running download prints. Nil funcs are skipped.
type Observer struct {
	OnEvent func(progress.Event)
	// OnWarning gets benign "WARNING:" lines.
	OnWarning func(string)
	// OnOutput gets every other line that carried no progress.
	OnOutput func(string)
}

func (o Observer) event(ev progress.Event) {
	if o.OnEvent != nil {
		o.OnEvent(ev)
	}
}

func (o Observer) warning(line string) {
	if o.OnWarning != nil {
		o.OnWarning(line)
	}
}

func (o Observer) output(line string) {
	if o.OnOutput != nil {
		o.OnOutput(line)
	}
}

// Download runs yt-dlp for req and feeds parsed output to obs. The child is
// owned by this call and gone when it returns.
func (c *Client) Download(ctx context.Context, req DownloadRequest, obs Observer) (DownloadResult, error) {
	var result DownloadResult
	h, err := Spawn(ctx, c.path(), downloadArgs(req.URL, req.Spec, req.OutputTemplate)...)
	if err != nil {
		return result, err
	}

	completed := false
	lastError := ""
	for line := range h.Lines() {
		if line.Stream == Stderr {
			ev, warning := progress.ClassifyStderr(line.Text)
			switch {
			case ev != nil:
				lastError = ev.Message
				obs.event(*ev)
			case warning:
				obs.warning(line.Text)
			default:
				obs.output(line.Text)
			}
			continue
		}

		if path, ok := progress.OutputFile(line.Text); ok {
			result.OutputPath = path
			obs.output(line.Text)
			continue
		}
		ev := progress.Parse(line.Text)
		if ev == nil {
			obs.output(line.Text)
			continue
		}
		if _, ok := ev.Percent(); !ok && ev.Filename != "" {
			result.OutputPath = ev.Filename
		}
		if ev.Kind == progress.KindComplete {
			completed = true
		}
		obs.event(*ev)
	}

	code, err := h.Wait()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result, wrapCategory(CategoryCancelled, err)
		}
		return result, err
	}
	if code != 0 {
		if lastError == "" {
			lastError = fmt.Sprintf("yt-dlp exited with status %d", code)
			obs.event(progress.Event{Kind: progress.KindError, Message: lastError})
		}
		return result, classifyToolError("download", lastError)
	}
	if !completed {
		full := 100.0
		result.Synthesized = true
		obs.event(progress.Event{Kind: progress.KindComplete, Percentage: &full})
	}
	return result, nil
}
