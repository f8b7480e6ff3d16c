package downloader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
)

func TestNativePlaylistSource(t *testing.T) {
	restore := getPlaylistFn
	var gotURL string
	getPlaylistFn = func(ctx context.Context, client *youtube.Client, url string) (*youtube.Playlist, error) {
		gotURL = url
		if client.HTTPClient == nil {
			t.Error("expected an HTTP client")
		}
		return &youtube.Playlist{
			ID:     "OLAK5uy_abc",
			Title:  "Album",
			Author: "Artist",
			Videos: []*youtube.PlaylistEntry{
				{ID: "v1", Title: "One"},
				nil,
				{ID: ""},
				{ID: "v2"},
			},
		}, nil
	}
	defer func() { getPlaylistFn = restore }()

	src := &NativePlaylistSource{}
	pl, err := src.Playlist(context.Background(), "https://music.youtube.com/playlist?list=OLAK5uy_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotURL != "https://www.youtube.com/playlist?list=OLAK5uy_abc" {
		t.Fatalf("music URL not converted: %q", gotURL)
	}
	if pl.DirName() != "Album (Artist)" || pl.Len() != 2 {
		t.Fatalf("unexpected playlist %+v", pl)
	}
	second := pl.Videos[1]
	if second.Title != "v2" || second.Index != 2 || second.URL != "https://www.youtube.com/watch?v=v2" {
		t.Fatalf("unexpected entry %+v", second)
	}
}

func TestNativePlaylistSourceErrors(t *testing.T) {
	restore := getPlaylistFn
	defer func() { getPlaylistFn = restore }()

	src := &NativePlaylistSource{}
	if _, err := src.Playlist(context.Background(), "https://vimeo.com/showcase/1"); CategoryOf(err) != CategoryUnsupported {
		t.Fatalf("non-YouTube URL should be unsupported, got %v", err)
	}

	getPlaylistFn = func(context.Context, *youtube.Client, string) (*youtube.Playlist, error) {
		return nil, errors.New("playlist is private")
	}
	if _, err := src.Playlist(context.Background(), "https://www.youtube.com/playlist?list=PLx"); CategoryOf(err) != CategoryUnavailable {
		t.Fatalf("private playlist should be unavailable, got %v", err)
	}
}

func TestNativePlaylistSourceContextErrors(t *testing.T) {
	restore := getPlaylistFn
	defer func() { getPlaylistFn = restore }()
	getPlaylistFn = func(ctx context.Context, _ *youtube.Client, _ string) (*youtube.Playlist, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	const url = "https://www.youtube.com/playlist?list=PLx"

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&NativePlaylistSource{}).Playlist(cancelled, url)
	if CategoryOf(err) != CategoryCancelled {
		t.Fatalf("cancellation should be cancelled, got %v (%s)", err, CategoryOf(err))
	}
	if Recoverable(err) {
		t.Fatal("cancellation must not be recoverable")
	}

	_, err = (&NativePlaylistSource{Timeout: time.Millisecond}).Playlist(context.Background(), url)
	if CategoryOf(err) != CategoryTimeout {
		t.Fatalf("deadline should be a timeout, got %v (%s)", err, CategoryOf(err))
	}
}
