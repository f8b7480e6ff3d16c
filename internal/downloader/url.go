package downloader

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	playlistIDRegex  = regexp.MustCompile(`^[A-Za-z0-9_-]{13,42}$`)
	playlistURLRegex = regexp.MustCompile(`[?&]list=([A-Za-z0-9_-]{13,42})`)
)

// ValidateURL checks operator input and returns the URL to hand to yt-dlp.
// A bare playlist ID is expanded to its playlist page; short and live
// YouTube links are rewritten to watch URLs.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", wrapCategory(CategoryInvalidURL, fmt.Errorf("invalid URL: empty input"))
	}
	if playlistIDRegex.MatchString(raw) && !strings.Contains(raw, ".") {
		return "https://www.youtube.com/playlist?list=" + raw, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", wrapCategory(CategoryInvalidURL, fmt.Errorf("invalid URL: %w", err))
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", wrapCategory(CategoryInvalidURL, fmt.Errorf("invalid URL: missing scheme or host"))
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return "", wrapCategory(CategoryInvalidURL, fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme))
	}
	if LooksLikePlaylist(raw) {
		return parsed.String(), nil
	}
	return NormalizeYouTubeURL(parsed.String()), nil
}

// LooksLikePlaylist reports whether input names a playlist rather than a
// single video.
func LooksLikePlaylist(input string) bool {
	if playlistURLRegex.MatchString(input) {
		return true
	}
	parsed, err := url.Parse(input)
	if err != nil {
		return false
	}
	return strings.TrimSuffix(parsed.Path, "/") == "/playlist"
}

func isYouTubeURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch normalizeHostname(parsed) {
	case "youtube.com", "m.youtube.com", "youtu.be", "music.youtube.com":
		return true
	}
	return false
}

// normalizeHostname lowercases the host and strips "www." and any port.
func normalizeHostname(parsed *url.URL) string {
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// ConvertMusicURL rewrites a music.youtube.com link to www.youtube.com so the
// native playlist client accepts it.
func ConvertMusicURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || normalizeHostname(parsed) != "music.youtube.com" {
		return u
	}
	parsed.Host = "www.youtube.com"
	query := parsed.Query()
	query.Del("si")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// NormalizeYouTubeURL converts youtu.be, /shorts/ and /live/ links to watch?v=.
func NormalizeYouTubeURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	host := normalizeHostname(parsed)
	if host != "youtube.com" && host != "m.youtube.com" && host != "youtu.be" {
		return u
	}
	query := parsed.Query()
	if host == "youtu.be" {
		id := strings.TrimPrefix(parsed.Path, "/")
		if id == "" {
			return u
		}
		query.Set("v", id)
		return "https://www.youtube.com/watch?" + query.Encode()
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) >= 2 && (parts[0] == "live" || parts[0] == "shorts") && parts[1] != "" {
		if query.Get("v") == "" {
			query.Set("v", parts[1])
		}
		parsed.Path = "/watch"
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}
	return u
}

func watchURLForID(id string) string {
	if id == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + id
}
