// Package progress turns lines of yt-dlp output into structured events.
//
// yt-dlp's console output is not a versioned contract, so Parse tries an
// ordered list of patterns from most to least specific and the first match
// wins. A line that matches nothing is not an error; callers treat it as
// diagnostic output.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind tags an Event.
type Kind string

const (
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Event is one parsed line. Optional fields are empty when the line did not
// carry them; Percentage is nil rather than 0 when unknown.
type Event struct {
	Kind       Kind
	Percentage *float64
	Speed      string
	ETA        string
	Size       string
	Filename   string
	Message    string
}

// Percent returns the percentage and whether it was present.
func (e Event) Percent() (float64, bool) {
	if e.Percentage == nil {
		return 0, false
	}
	return *e.Percentage, true
}

// Terminal reports whether the event ends a download.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

const downloadMarker = "[download]"

var (
	// [download]  45.2% of ~ 123.45MiB at 1.23MiB/s ETA 00:45
	reFull = regexp.MustCompile(`([\d.]+)%\s+of\s+~?\s*(\S+)\s+at\s+(.+?)\s+ETA\s+(\S+)`)
	// video.mp4 [#####-----] 45.2% | 1.23MiB/s | ETA: 00:45
	reBarETA = regexp.MustCompile(`^\s*(.+?)\s+\[[^\]]*\]\s+([\d.]+)%\s*\|\s*(.+?)\s*\|\s*ETA:\s*(\S+)`)
	// video.mp4 [#####-----] 45.2% | 1.23MiB/s
	reBar = regexp.MustCompile(`^\s*(.+?)\s+\[[^\]]*\]\s+([\d.]+)%\s*\|\s*(\S+)\s*$`)
	// [download] Destination: Title [id].f137.mp4
	reDestination = regexp.MustCompile(`\[download\]\s+Destination:\s+(.+?)\s*$`)
	// [download] 100% of 64.00MiB in 00:01
	reComplete = regexp.MustCompile(`(?:^|\s)100(?:\.0+)?%\s+of\s`)
	rePercent  = regexp.MustCompile(`([\d.]+)%`)

	reMerger  = regexp.MustCompile(`\[Merger\]\s+Merging formats into "(.+)"`)
	reAlready = regexp.MustCompile(`\[download\]\s+(.+?)\s+has already been downloaded`)
)

type matcher func(line string) *Event

// patterns is tried in order; keep specific shapes ahead of the bare
// percentage fallback so a title containing "%" is not misread.
var patterns = []matcher{
	matchFull,
	matchBarETA,
	matchBar,
	matchDestination,
	matchComplete,
	matchBarePercent,
}

// Parse classifies one line of download output. It returns nil when the
// line carries no progress information.
func Parse(line string) *Event {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	for _, match := range patterns {
		if ev := match(line); ev != nil {
			return ev
		}
	}
	return nil
}

func matchFull(line string) *Event {
	m := reFull.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	pct, ok := parsePercent(m[1])
	if !ok {
		return nil
	}
	return &Event{Kind: KindProgress, Percentage: pct, Size: m[2], Speed: strings.TrimSpace(m[3]), ETA: m[4]}
}

func matchBarETA(line string) *Event {
	m := reBarETA.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	pct, ok := parsePercent(m[2])
	if !ok {
		return nil
	}
	return &Event{Kind: KindProgress, Filename: m[1], Percentage: pct, Speed: m[3], ETA: m[4]}
}

func matchBar(line string) *Event {
	m := reBar.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	pct, ok := parsePercent(m[2])
	if !ok {
		return nil
	}
	return &Event{Kind: KindProgress, Filename: m[1], Percentage: pct, Speed: m[3]}
}

func matchDestination(line string) *Event {
	m := reDestination.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return &Event{Kind: KindProgress, Filename: m[1]}
}

func matchComplete(line string) *Event {
	if !reComplete.MatchString(line) {
		return nil
	}
	full := 100.0
	return &Event{Kind: KindComplete, Percentage: &full}
}

func matchBarePercent(line string) *Event {
	if !strings.Contains(line, downloadMarker) {
		return nil
	}
	m := rePercent.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	pct, ok := parsePercent(m[1])
	if !ok {
		return nil
	}
	return &Event{Kind: KindProgress, Percentage: pct}
}

func parsePercent(s string) (*float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 100 {
		return nil, false
	}
	return &v, true
}

// ClassifyStderr inspects a line yt-dlp wrote to stderr. "ERROR:" lines become
// error events. warning is true for "WARNING:" lines, which are benign and
// never produce an event. Anything else returns nil, false.
func ClassifyStderr(line string) (ev *Event, warning bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "ERROR:"):
		msg := strings.TrimSpace(strings.TrimPrefix(trimmed, "ERROR:"))
		return &Event{Kind: KindError, Message: msg}, false
	case strings.HasPrefix(trimmed, "WARNING:"):
		return nil, true
	default:
		return nil, false
	}
}

// OutputFile extracts the final file path from a merger announcement or an
// "already downloaded" notice. These lines never produce progress events.
func OutputFile(line string) (string, bool) {
	if m := reMerger.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := reAlready.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}
