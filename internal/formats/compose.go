package formats

import (
	"fmt"
	"sort"
	"strings"
)

// Policy names a strategy for choosing eligible formats and audio partners.
type Policy string

const (
	// PolicyGeneral pairs every video-only format with the first audio-only
	// format in yt-dlp's order.
	PolicyGeneral Policy = "general"
	// PolicyUniversal keeps only H.264 video and AAC audio.
	PolicyUniversal Policy = "universal"
	// PolicySmallest keeps only sized formats and pairs with the smallest audio.
	PolicySmallest Policy = "smallest"
	// PolicyAll lists every classified format on its own, unpaired.
	PolicyAll Policy = "all"
)

const (
	universalVideoCodec = "avc1"
	universalAudioCodec = "mp4a"
)

// Policies lists the accepted policy names in display order.
func Policies() []Policy {
	return []Policy{PolicyGeneral, PolicyUniversal, PolicySmallest, PolicyAll}
}

// ParsePolicy normalizes a user supplied policy name.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Policies() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown policy %q (expected general, universal, smallest or all)", s)
}

// Kind describes what a candidate will download.
type Kind string

const (
	KindCombined  Kind = "combined"
	KindPaired    Kind = "video+audio"
	KindVideoOnly Kind = "video-only"
	KindAudioOnly Kind = "audio-only"
)

// Candidate is one downloadable option built from one or two formats.
type Candidate struct {
	// Spec is what gets passed to yt-dlp -f: "18" or "137+140".
	Spec       string
	IsCombined bool
	Kind       Kind
	// Size is the sum of the constituent sizes, 0 when unknown.
	Size       int64
	Height     int
	FPS        float64
	VideoCodec string
	AudioCodec string
	Ext        string
	VideoID    string
	AudioID    string
}

// Compose builds the candidate list for one media item under policy. The
// result is sorted ascending by Size; equal sizes keep insertion order.
// An empty list is a valid result.
func Compose(list []Format, policy Policy) ([]Candidate, error) {
	var out []Candidate
	switch policy {
	case PolicyGeneral:
		out = composeGeneral(list)
	case PolicyUniversal:
		out = composeUniversal(list)
	case PolicySmallest:
		out = composeSmallest(list)
	case PolicyAll:
		out = composeAll(list)
	default:
		return nil, fmt.Errorf("unknown policy %q", policy)
	}
	sortBySize(out)
	return out, nil
}

func composeGeneral(list []Format) []Candidate {
	out := combinedCandidates(Combined(list, "", ""))
	audio := OnlyAudio(list, "")
	if len(audio) > 0 {
		out = append(out, pairAll(OnlyVideo(list, ""), audio[0])...)
	}
	return out
}

func composeUniversal(list []Format) []Candidate {
	out := combinedCandidates(Combined(list, universalVideoCodec, universalAudioCodec))
	audio := OnlyAudio(list, universalAudioCodec)
	if len(audio) > 0 {
		out = append(out, pairAll(OnlyVideo(list, universalVideoCodec), audio[0])...)
	}
	return out
}

func composeSmallest(list []Format) []Candidate {
	out := combinedCandidates(sized(Combined(list, "", "")))
	if audio, ok := smallestOf(sized(OnlyAudio(list, ""))); ok {
		out = append(out, pairAll(sized(OnlyVideo(list, "")), audio)...)
	}
	return out
}

func composeAll(list []Format) []Candidate {
	var out []Candidate
	for _, f := range OnlyVideo(list, "") {
		out = append(out, single(f, KindVideoOnly))
	}
	for _, f := range OnlyAudio(list, "") {
		out = append(out, single(f, KindAudioOnly))
	}
	return append(out, combinedCandidates(Combined(list, "", ""))...)
}

func combinedCandidates(list []Format) []Candidate {
	out := make([]Candidate, 0, len(list))
	for _, f := range list {
		out = append(out, single(f, KindCombined))
	}
	return out
}

func single(f Format, kind Kind) Candidate {
	c := Candidate{
		Spec:       f.ID,
		IsCombined: kind == KindCombined,
		Kind:       kind,
		Size:       f.sizeOrZero(),
		Height:     f.HeightPx(),
		Ext:        f.Ext,
	}
	if f.FPS != nil {
		c.FPS = *f.FPS
	}
	if f.HasVideoCodec() {
		c.VideoCodec = f.VideoCodec
		c.VideoID = f.ID
	}
	if f.HasAudioCodec() {
		c.AudioCodec = f.AudioCodec
		c.AudioID = f.ID
	}
	return c
}

func pairAll(videos []Format, audio Format) []Candidate {
	out := make([]Candidate, 0, len(videos))
	for _, v := range videos {
		out = append(out, pair(v, audio))
	}
	return out
}

func pair(video, audio Format) Candidate {
	c := single(video, KindPaired)
	c.Spec = video.ID + "+" + audio.ID
	c.Size = video.sizeOrZero() + audio.sizeOrZero()
	c.AudioCodec = audio.AudioCodec
	c.AudioID = audio.ID
	return c
}

func sized(list []Format) []Format {
	var out []Format
	for _, f := range list {
		if _, ok := f.Size(); ok {
			out = append(out, f)
		}
	}
	return out
}

// smallestOf returns the minimum-size format; ties go to the earliest one.
func smallestOf(list []Format) (Format, bool) {
	if len(list) == 0 {
		return Format{}, false
	}
	best := list[0]
	for _, f := range list[1:] {
		if f.sizeOrZero() < best.sizeOrZero() {
			best = f
		}
	}
	return best, true
}

func sortBySize(list []Candidate) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Size < list[j].Size
	})
}
