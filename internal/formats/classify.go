package formats

import "strings"

// OnlyVideo returns formats that carry picture data and no audio. When
// codecPrefix is non-empty the video codec must start with it
// (case-sensitive, e.g. "avc1" matches "avc1.640028").
func OnlyVideo(list []Format, codecPrefix string) []Format {
	var out []Format
	for _, f := range list {
		if !codecMatches(f.VideoCodec, codecPrefix) {
			continue
		}
		if !f.HasHeight() || f.HasAudioCodec() {
			continue
		}
		out = append(out, f)
	}
	return out
}

// OnlyAudio returns formats that carry audio and no video codec, optionally
// filtered by an audio codec prefix such as "mp4a".
func OnlyAudio(list []Format, codecPrefix string) []Format {
	var out []Format
	for _, f := range list {
		if !codecMatches(f.AudioCodec, codecPrefix) {
			continue
		}
		if f.HasVideoCodec() {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Combined returns already-muxed formats: a video codec, an audio codec and a
// height. Either prefix may be empty to accept any codec.
func Combined(list []Format, videoPrefix, audioPrefix string) []Format {
	var out []Format
	for _, f := range list {
		if !codecMatches(f.VideoCodec, videoPrefix) || !codecMatches(f.AudioCodec, audioPrefix) {
			continue
		}
		if !f.HasHeight() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func codecMatches(codec, prefix string) bool {
	if codec == "" || codec == noneCodec {
		return false
	}
	return prefix == "" || strings.HasPrefix(codec, prefix)
}
