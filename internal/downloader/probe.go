package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// MergeVerifier checks a finished download.
type MergeVerifier interface {
	Verify(ctx context.Context, path string) error
}

// ProbeVerifier uses ffprobe to confirm a merged file holds both a video and
// an audio stream.
type ProbeVerifier struct {
	Timeout time.Duration
}

var probeFn = func(path string, timeout time.Duration) (string, error) {
	return ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{"v": "error"})
}

// ffprobeAvailable checks if ffprobe is installed and accessible.
func ffprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

// NewProbeVerifier returns nil when ffprobe is not installed.
func NewProbeVerifier(timeout time.Duration) MergeVerifier {
	if !ffprobeAvailable() {
		return nil
	}
	return &ProbeVerifier{Timeout: timeout}
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

// Verify implements MergeVerifier.
func (v *ProbeVerifier) Verify(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	out, err := probeFn(path, timeout)
	if err != nil {
		return wrapCategory(CategoryProcess, fmt.Errorf("ffprobe: %w", err))
	}
	var parsed probeOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return wrapCategory(CategoryParse, fmt.Errorf("ffprobe output: %w", err))
	}
	var video, audio bool
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			video = true
		case "audio":
			audio = true
		}
	}
	switch {
	case !video && !audio:
		return wrapCategory(CategoryProcess, errors.New("merged file has no streams"))
	case !video:
		return wrapCategory(CategoryProcess, errors.New("merged file has no video stream"))
	case !audio:
		return wrapCategory(CategoryProcess, errors.New("merged file has no audio stream"))
	}
	return nil
}
