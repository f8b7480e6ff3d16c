package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lvcoi/ytdlp-picker/internal/model"
)

var invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

func sanitize(name string) string {
	clean := invalidPathChars.ReplaceAllString(name, "-")
	clean = strings.TrimSpace(clean)
	clean = strings.Trim(clean, ".")
	if clean == "" {
		return "video"
	}
	return clean
}

// singleTemplate is the yt-dlp output template for a standalone video.
func singleTemplate(dir string) string {
	return filepath.Join(escapeTemplate(dir), "%(title)s [%(id)s].%(ext)s")
}

// playlistDir is "<base>/<playlist title> (<channel>)".
func playlistDir(base string, playlist *model.Playlist) string {
	return filepath.Join(base, sanitize(playlist.DirName()))
}

// playlistTemplate prefixes the file name with the zero-padded playlist
// index so files sort in playlist order.
func playlistTemplate(dir string, video model.Video, total int) string {
	width := len(strconv.Itoa(total))
	if width < 2 {
		width = 2
	}
	return filepath.Join(escapeTemplate(dir), fmt.Sprintf("%0*d - %%(title)s [%%(id)s].%%(ext)s", width, video.Index))
}

// escapeTemplate protects literal "%" in a directory name from yt-dlp's
// output template expansion.
func escapeTemplate(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapCategory(CategoryFilesystem, fmt.Errorf("creating %s: %w", dir, err))
	}
	return nil
}
