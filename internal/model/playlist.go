// Package model holds the plain data records shared between the selection
// engine, the download orchestrator and the interactive session.
package model

import (
	"fmt"
	"strings"
)

// Video is one entry of a playlist.
type Video struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	// Index is the 1-based position in the playlist. It is assigned when the
	// playlist is fetched and never changes afterwards.
	Index int `json:"index"`
}

// DisplayTitle returns the title, falling back to the URL and then the ID.
func (v Video) DisplayTitle() string {
	switch {
	case strings.TrimSpace(v.Title) != "":
		return v.Title
	case v.URL != "":
		return v.URL
	default:
		return v.ID
	}
}

// Label renders the video as "3. Title" for logs and prompts.
func (v Video) Label() string {
	if v.Index <= 0 {
		return v.DisplayTitle()
	}
	return fmt.Sprintf("%d. %s", v.Index, v.DisplayTitle())
}

// Playlist is an ordered set of videos with its name and owner.
type Playlist struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Channel string  `json:"channel"`
	URL     string  `json:"url"`
	Videos  []Video `json:"videos"`
}

// NewPlaylist builds a playlist and numbers its videos 1..n in order.
// Videos that already carry a positive index keep it.
func NewPlaylist(id, title, channel, url string, videos []Video) *Playlist {
	p := &Playlist{ID: id, Title: title, Channel: channel, URL: url}
	for i, v := range videos {
		if v.Index <= 0 {
			v.Index = i + 1
		}
		p.Videos = append(p.Videos, v)
	}
	return p
}

// Len returns the number of videos.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Videos)
}

// DirName is the folder the playlist is saved under: "Title (Channel)".
func (p *Playlist) DirName() string {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = p.ID
	}
	if title == "" {
		title = "playlist"
	}
	if channel := strings.TrimSpace(p.Channel); channel != "" {
		return fmt.Sprintf("%s (%s)", title, channel)
	}
	return title
}
