package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/model"
)

// DefaultFetchTimeout bounds every metadata call to yt-dlp.
const DefaultFetchTimeout = 30 * time.Second

// Client drives the yt-dlp executable.
type Client struct {
	// Path is the executable, "yt-dlp" by default.
	Path string
	// Timeout bounds Info and Playlist. Downloads are unbounded.
	Timeout time.Duration
}

// NewClient returns a Client for path with the default fetch timeout.
func NewClient(path string) *Client {
	return &Client{Path: path, Timeout: DefaultFetchTimeout}
}

func (c *Client) path() string {
	if c.Path == "" {
		return "yt-dlp"
	}
	return c.Path
}

func (c *Client) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Version returns the output of `yt-dlp --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := c.fetchContext(ctx)
	defer cancel()
	out, err := runOutput(ctx, c.path(), "--version")
	if err != nil {
		return "", c.wrapFetchError(ctx, "reading yt-dlp version", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Info fetches the metadata and format list of one media item.
func (c *Client) Info(ctx context.Context, url string) (*formats.Info, error) {
	fetchCtx, cancel := c.fetchContext(ctx)
	defer cancel()
	out, err := runOutput(fetchCtx, c.path(), "-J", "--no-playlist", "--no-warnings", url)
	if err != nil {
		return nil, c.wrapFetchError(fetchCtx, "fetching formats", err)
	}
	info, err := formats.ParseInfo(out)
	if err != nil {
		return nil, wrapCategory(CategoryParse, fmt.Errorf("fetching formats: %w", err))
	}
	return info, nil
}

// Formats fetches just the format list of one media item.
func (c *Client) Formats(ctx context.Context, url string) ([]formats.Format, error) {
	info, err := c.Info(ctx, url)
	if err != nil {
		return nil, err
	}
	return info.Formats, nil
}

type flatPlaylist struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Channel  string      `json:"channel"`
	Uploader string      `json:"uploader"`
	URL      string      `json:"webpage_url"`
	Type     string      `json:"_type"`
	Entries  []flatEntry `json:"entries"`
}

type flatEntry struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Playlist lists the entries of a playlist without resolving each video.
func (c *Client) Playlist(ctx context.Context, url string) (*model.Playlist, error) {
	fetchCtx, cancel := c.fetchContext(ctx)
	defer cancel()
	out, err := runOutput(fetchCtx, c.path(), "--flat-playlist", "-J", "--no-warnings", url)
	if err != nil {
		return nil, c.wrapFetchError(fetchCtx, "fetching playlist", err)
	}
	return parseFlatPlaylist(out, url)
}

func parseFlatPlaylist(data []byte, url string) (*model.Playlist, error) {
	var raw flatPlaylist
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, wrapCategory(CategoryParse, fmt.Errorf("fetching playlist: %w: %v", formats.ErrMalformed, err))
	}
	if raw.Type != "" && raw.Type != "playlist" {
		return nil, wrapCategory(CategoryUnsupported, fmt.Errorf("not a playlist: %s", url))
	}
	channel := raw.Channel
	if channel == "" {
		channel = raw.Uploader
	}
	videos := make([]model.Video, 0, len(raw.Entries))
	for _, e := range raw.Entries {
		if e.ID == "" && e.URL == "" {
			continue
		}
		videoURL := e.URL
		if !strings.HasPrefix(videoURL, "http://") && !strings.HasPrefix(videoURL, "https://") {
			videoURL = watchURLForID(e.ID)
		}
		videos = append(videos, model.Video{ID: e.ID, URL: videoURL, Title: e.Title})
	}
	if raw.URL != "" {
		url = raw.URL
	}
	return model.NewPlaylist(raw.ID, raw.Title, channel, url, videos), nil
}

func (c *Client) wrapFetchError(ctx context.Context, action string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return wrapCategory(CategoryTimeout, fmt.Errorf("%s: timed out", action))
	}
	if errors.Is(err, context.Canceled) {
		return wrapCategory(CategoryCancelled, err)
	}
	var te *toolError
	if errors.As(err, &te) {
		return classifyToolError(action, te.Error())
	}
	return wrapCategory(CategoryProcess, fmt.Errorf("%s: %w", action, err))
}

// downloadArgs builds the yt-dlp arguments for one download.
func downloadArgs(url, spec, outputTemplate string) []string {
	args := []string{"--newline", "--no-playlist", "-f", spec}
	if outputTemplate != "" {
		args = append(args, "-o", outputTemplate)
	}
	return append(args, url)
}
