package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/lvcoi/ytdlp-picker/internal/model"
)

// NativePlaylistSource lists YouTube playlists over HTTP without spawning
// yt-dlp. Only YouTube URLs are supported.
type NativePlaylistSource struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// kkdai/youtube picks its innertube client through a package variable.
var youtubeClientMu sync.Mutex

var getPlaylistFn = func(ctx context.Context, client *youtube.Client, url string) (*youtube.Playlist, error) {
	youtubeClientMu.Lock()
	saved := youtube.DefaultClient
	youtube.DefaultClient = youtube.WebClient
	defer func() {
		youtube.DefaultClient = saved
		youtubeClientMu.Unlock()
	}()
	return client.GetPlaylistContext(ctx, url)
}

// Playlist fetches the playlist at url.
func (s *NativePlaylistSource) Playlist(ctx context.Context, url string) (*model.Playlist, error) {
	if !isYouTubeURL(url) {
		return nil, wrapCategory(CategoryUnsupported, fmt.Errorf("native playlist backend only supports YouTube: %s", url))
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(timeout)
	}
	pl, err := getPlaylistFn(ctx, &youtube.Client{HTTPClient: httpClient}, ConvertMusicURL(url))
	if err != nil {
		switch ctxErr := ctx.Err(); {
		case errors.Is(ctxErr, context.DeadlineExceeded):
			return nil, wrapCategory(CategoryTimeout, fmt.Errorf("fetching playlist: %w", ctxErr))
		case ctxErr != nil:
			return nil, wrapCategory(CategoryCancelled, ctxErr)
		}
		return nil, wrapAccessError(fmt.Errorf("fetching playlist: %w", err))
	}
	return playlistFromYouTube(pl, url), nil
}

func playlistFromYouTube(pl *youtube.Playlist, url string) *model.Playlist {
	videos := make([]model.Video, 0, len(pl.Videos))
	for _, entry := range pl.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		videos = append(videos, model.Video{ID: entry.ID, URL: watchURLForID(entry.ID), Title: entryTitle(entry)})
	}
	title := pl.Title
	if title == "" {
		title = "Playlist"
	}
	return model.NewPlaylist(pl.ID, title, pl.Author, url, videos)
}

func entryTitle(entry *youtube.PlaylistEntry) string {
	if entry.Title != "" {
		return entry.Title
	}
	return entry.ID
}
