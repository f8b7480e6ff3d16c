// Package reconcile negotiates a single format choice across the videos of a
// playlist whose available formats differ.
//
// Each round offers the union of formats still available to the unassigned
// videos, ranked by what the whole remaining set would cost to download. The
// operator picks one, every video that supports it is assigned, and the rest
// go into the next round.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/model"
)

// ErrInvalidChoice is returned when a Chooser picks an index outside the
// offered options.
var ErrInvalidChoice = errors.New("invalid format choice")

// VideoFormats pairs a playlist video with its precomputed candidates. Err is
// set when the candidates could not be fetched; such a video has none.
type VideoFormats struct {
	Video      model.Video
	Candidates []formats.Candidate
	Err        error
}

// Supports reports whether the video offers a candidate with the given spec.
func (vf VideoFormats) Supports(spec string) (formats.Candidate, bool) {
	for _, c := range vf.Candidates {
		if c.Spec == spec {
			return c, true
		}
	}
	return formats.Candidate{}, false
}

// Selection is the final format assignment for one video.
type Selection struct {
	Video     model.Video
	Candidate formats.Candidate
}

// Option is one ranked entry offered to the operator in a round.
type Option struct {
	// Candidate is the first occurrence of the spec across the remaining videos.
	Candidate formats.Candidate
	// TotalSize sums each supporting video's own size for this spec.
	TotalSize int64
	// Supported counts the remaining videos that offer the spec.
	Supported int
}

// Round is what the Chooser sees.
type Round struct {
	Number    int
	Remaining int
	Options   []Option
}

// Chooser picks one option per round. It returns a 0-based index into
// Round.Options.
type Chooser interface {
	Choose(ctx context.Context, round Round) (int, error)
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(ctx context.Context, round Round) (int, error)

func (f ChooserFunc) Choose(ctx context.Context, round Round) (int, error) {
	return f(ctx, round)
}

// RoundResult describes a completed round for progress reporting.
type RoundResult struct {
	Round    Round
	Chosen   Option
	Assigned []model.Video
	// Left is how many videos still need a format after this round.
	Left int
}

// Result is the outcome of a reconciliation session.
type Result struct {
	Selections []Selection
	// Unassigned holds videos no round could offer a format for.
	Unassigned []model.Video
	Rounds     int
}

// Reconciler runs the negotiation loop.
type Reconciler struct {
	Chooser Chooser
	// Report is called after every round when set.
	Report func(RoundResult)
}

// Run reconciles infos until every video is assigned or no format remains.
// Selections keep playlist order within a round and rounds are appended in
// order. A Chooser error or cancellation aborts the session.
func (r *Reconciler) Run(ctx context.Context, infos []VideoFormats) (*Result, error) {
	if r.Chooser == nil {
		return nil, errors.New("reconcile: no chooser configured")
	}
	result := &Result{}
	remaining := append([]VideoFormats(nil), infos...)

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		available := Available(remaining)
		if len(available) == 0 {
			break
		}
		round := Round{
			Number:    result.Rounds + 1,
			Remaining: len(remaining),
			Options:   Rank(available, remaining),
		}
		idx, err := r.Chooser.Choose(ctx, round)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(round.Options) {
			return nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidChoice, idx+1, len(round.Options))
		}
		chosen := round.Options[idx]
		supports, rest := Partition(remaining, chosen.Candidate.Spec)

		assigned := make([]model.Video, 0, len(supports))
		for _, vf := range supports {
			result.Selections = append(result.Selections, Selection{Video: vf.Video, Candidate: chosen.Candidate})
			assigned = append(assigned, vf.Video)
		}
		result.Rounds++
		remaining = rest

		if r.Report != nil {
			r.Report(RoundResult{Round: round, Chosen: chosen, Assigned: assigned, Left: len(remaining)})
		}
	}

	for _, vf := range remaining {
		result.Unassigned = append(result.Unassigned, vf.Video)
	}
	return result, nil
}

// Available returns the distinct candidates offered by remaining, keyed by
// spec. The first occurrence in playlist and candidate order is kept.
func Available(remaining []VideoFormats) []formats.Candidate {
	seen := make(map[string]struct{})
	var out []formats.Candidate
	for _, vf := range remaining {
		for _, c := range vf.Candidates {
			if _, ok := seen[c.Spec]; ok {
				continue
			}
			seen[c.Spec] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Rank orders available for presentation: cheapest aggregate over the
// remaining videos first, then taller first, then smaller individual size.
func Rank(available []formats.Candidate, remaining []VideoFormats) []Option {
	options := make([]Option, 0, len(available))
	for _, c := range available {
		opt := Option{Candidate: c}
		for _, vf := range remaining {
			if own, ok := vf.Supports(c.Spec); ok {
				opt.TotalSize += own.Size
				opt.Supported++
			}
		}
		options = append(options, opt)
	}
	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.TotalSize != b.TotalSize {
			return a.TotalSize < b.TotalSize
		}
		if a.Candidate.Height != b.Candidate.Height {
			return a.Candidate.Height > b.Candidate.Height
		}
		return a.Candidate.Size < b.Candidate.Size
	})
	return options
}

// Partition splits remaining into the videos that offer spec and the rest,
// preserving order in both.
func Partition(remaining []VideoFormats, spec string) (supports, rest []VideoFormats) {
	for _, vf := range remaining {
		if _, ok := vf.Supports(spec); ok {
			supports = append(supports, vf)
		} else {
			rest = append(rest, vf)
		}
	}
	return supports, rest
}
