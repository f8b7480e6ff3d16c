package reconcile

import (
	"context"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/model"
)

// FetchFunc returns the candidate list for one video.
type FetchFunc func(ctx context.Context, video model.Video) ([]formats.Candidate, error)

// Analysis is reported once per video while collecting.
// Position is 1-based. Done is false for the announcement sent before the
// fetch and true for the outcome sent after it.
type Analysis struct {
	Position int
	Total    int
	Video    model.Video
	Err      error
	Done     bool
	Count    int
}

// Collect fetches candidates for every video one at a time. A failed fetch
// is recorded on that video and does not stop the others; only cancellation
// of ctx aborts the whole collection.
func Collect(ctx context.Context, videos []model.Video, fetch FetchFunc, observe func(Analysis)) ([]VideoFormats, error) {
	out := make([]VideoFormats, 0, len(videos))
	for i, video := range videos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if observe != nil {
			observe(Analysis{Position: i + 1, Total: len(videos), Video: video})
		}
		candidates, err := fetch(ctx, video)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vf := VideoFormats{Video: video, Err: err}
		if err == nil {
			vf.Candidates = candidates
		}
		out = append(out, vf)
		if observe != nil {
			observe(Analysis{Position: i + 1, Total: len(videos), Video: video, Err: err, Done: true, Count: len(vf.Candidates)})
		}
	}
	return out, nil
}

// Analyzed counts the videos whose fetch succeeded.
func Analyzed(infos []VideoFormats) int {
	n := 0
	for _, vf := range infos {
		if vf.Err == nil {
			n++
		}
	}
	return n
}
