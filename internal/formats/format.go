// Package formats turns yt-dlp format dumps into ranked, downloadable candidates.
//
// A Format mirrors one row of yt-dlp's "formats" array. Only the attributes the
// selection logic reads are typed; everything else is kept verbatim in Extra so
// callers can pass it through without the core ever depending on it.
package formats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// noneCodec is what yt-dlp reports for a stream component that is not present.
const noneCodec = "none"

// ErrMalformed is returned when a format dump is not the shape yt-dlp emits.
var ErrMalformed = errors.New("malformed format data")

// Format is one encoding option for a media item.
type Format struct {
	ID             string   `json:"format_id"`
	Note           string   `json:"format_note,omitempty"`
	Ext            string   `json:"ext,omitempty"`
	Container      string   `json:"container,omitempty"`
	Protocol       string   `json:"protocol,omitempty"`
	VideoCodec     string   `json:"vcodec,omitempty"`
	AudioCodec     string   `json:"acodec,omitempty"`
	Width          *int     `json:"width,omitempty"`
	Height         *int     `json:"height,omitempty"`
	FPS            *float64 `json:"fps,omitempty"`
	FileSize       *int64   `json:"filesize,omitempty"`
	FileSizeApprox *int64   `json:"filesize_approx,omitempty"`
	TBR            *float64 `json:"tbr,omitempty"`
	Resolution     string   `json:"resolution,omitempty"`

	// Extra holds every field yt-dlp emitted that is not listed above.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = []string{
	"format_id", "format_note", "ext", "container", "protocol", "vcodec", "acodec",
	"width", "height", "fps", "filesize", "filesize_approx", "tbr", "resolution",
}

// UnmarshalJSON decodes the typed fields and stashes the rest in Extra.
// Numeric fields that yt-dlp reports as null stay nil.
func (f *Format) UnmarshalJSON(data []byte) error {
	type plain Format
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range knownFields {
		delete(raw, key)
	}
	*f = Format(p)
	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}

// MarshalJSON writes the typed fields and the Extra side channel back out.
func (f Format) MarshalJSON() ([]byte, error) {
	type plain Format
	typed, err := json.Marshal(plain(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return typed, nil
	}
	merged := make(map[string]json.RawMessage, len(f.Extra)+len(knownFields))
	for k, v := range f.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(typed, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// HasVideoCodec reports whether the format carries a usable video codec.
func (f Format) HasVideoCodec() bool {
	return f.VideoCodec != "" && f.VideoCodec != noneCodec
}

// HasAudioCodec reports whether the format carries a usable audio codec.
func (f Format) HasAudioCodec() bool {
	return f.AudioCodec != "" && f.AudioCodec != noneCodec
}

// HasHeight reports whether yt-dlp gave the format a non-zero height. Height is
// the authoritative signal that a stream actually contains picture data.
func (f Format) HasHeight() bool {
	return f.Height != nil && *f.Height > 0
}

// HeightPx returns the height or 0 when unknown.
func (f Format) HeightPx() int {
	if f.Height == nil {
		return 0
	}
	return *f.Height
}

// Size returns the exact file size, falling back to yt-dlp's approximation.
// ok is false when neither is known.
func (f Format) Size() (size int64, ok bool) {
	if f.FileSize != nil && *f.FileSize > 0 {
		return *f.FileSize, true
	}
	if f.FileSizeApprox != nil && *f.FileSizeApprox > 0 {
		return *f.FileSizeApprox, true
	}
	return 0, false
}

// sizeOrZero is Size with unknown mapped to 0.
func (f Format) sizeOrZero() int64 {
	size, _ := f.Size()
	return size
}

// ParseFormats decodes a bare JSON array of formats.
func ParseFormats(data []byte) ([]Format, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformed)
	}
	var list []Format
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate(list); err != nil {
		return nil, err
	}
	return list, nil
}

// Info is the subset of a yt-dlp info dict (`yt-dlp -J <url>`) the tool reads.
type Info struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Channel  string   `json:"channel"`
	Uploader string   `json:"uploader"`
	Duration *float64 `json:"duration"`
	Formats  []Format `json:"formats"`
}

// ParseInfo decodes a yt-dlp info object and validates its formats array.
func ParseInfo(data []byte) (*Info, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := probe["formats"]; !ok {
		return nil, fmt.Errorf("%w: info has no formats field", ErrMalformed)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate(info.Formats); err != nil {
		return nil, err
	}
	return &info, nil
}

func validate(list []Format) error {
	for i, f := range list {
		if f.ID == "" {
			return fmt.Errorf("%w: format %d has no format_id", ErrMalformed, i)
		}
	}
	return nil
}
