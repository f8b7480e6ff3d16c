package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/model"
)

func cand(spec string, size int64, height int) formats.Candidate {
	return formats.Candidate{Spec: spec, Size: size, Height: height}
}

func video(i int) model.Video {
	return model.Video{ID: fmt.Sprintf("v%d", i), Title: fmt.Sprintf("Video %d", i), Index: i}
}

func scenarioB() []VideoFormats {
	return []VideoFormats{
		{Video: video(1), Candidates: []formats.Candidate{cand("137+140", 5_500_000, 1080)}},
		{Video: video(2), Candidates: []formats.Candidate{cand("137+140", 5_500_000, 1080), cand("18", 1_000_000, 360)}},
		{Video: video(3), Candidates: []formats.Candidate{cand("18", 1_000_000, 360)}},
	}
}

// pickSpec always chooses the option with the given spec, or the first one.
func pickSpec(spec string, rounds *[]Round) Chooser {
	return ChooserFunc(func(_ context.Context, round Round) (int, error) {
		*rounds = append(*rounds, round)
		for i, opt := range round.Options {
			if opt.Candidate.Spec == spec {
				return i, nil
			}
		}
		return 0, nil
	})
}

func TestRunScenarioB(t *testing.T) {
	var rounds []Round
	r := &Reconciler{Chooser: pickSpec("18", &rounds)}
	result, err := r.Run(context.Background(), scenarioB())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	first := rounds[0]
	if len(first.Options) != 2 {
		t.Fatalf("round 1 options = %d, want 2", len(first.Options))
	}
	if first.Options[0].Candidate.Spec != "18" || first.Options[0].TotalSize != 2_000_000 || first.Options[0].Supported != 2 {
		t.Fatalf("round 1 first option = %+v", first.Options[0])
	}
	if first.Options[1].Candidate.Spec != "137+140" || first.Options[1].TotalSize != 11_000_000 {
		t.Fatalf("round 1 second option = %+v", first.Options[1])
	}

	if result.Rounds != 2 || len(rounds) != 2 {
		t.Fatalf("rounds = %d, want 2", result.Rounds)
	}
	if rounds[1].Remaining != 1 || len(rounds[1].Options) != 1 || rounds[1].Options[0].Candidate.Spec != "137+140" {
		t.Fatalf("round 2 = %+v", rounds[1])
	}

	want := map[string]string{"v1": "137+140", "v2": "18", "v3": "18"}
	if len(result.Selections) != 3 {
		t.Fatalf("selections = %d, want 3", len(result.Selections))
	}
	for _, sel := range result.Selections {
		if want[sel.Video.ID] != sel.Candidate.Spec {
			t.Errorf("%s assigned %s, want %s", sel.Video.ID, sel.Candidate.Spec, want[sel.Video.ID])
		}
	}
	if len(result.Unassigned) != 0 {
		t.Fatalf("unexpected unassigned videos: %+v", result.Unassigned)
	}
}

func TestRunCoversEveryVideoOnce(t *testing.T) {
	infos := []VideoFormats{
		{Video: video(1), Candidates: []formats.Candidate{cand("a", 10, 720), cand("b", 20, 1080)}},
		{Video: video(2), Candidates: []formats.Candidate{cand("c", 5, 360)}},
		{Video: video(3), Candidates: []formats.Candidate{cand("b", 30, 1080), cand("d", 1, 144)}},
		{Video: video(4), Candidates: []formats.Candidate{cand("e", 7, 480)}},
		{Video: video(5), Candidates: nil, Err: errors.New("unavailable")},
	}
	// Always take the most expensive option so the loop needs several rounds.
	chooser := ChooserFunc(func(_ context.Context, round Round) (int, error) {
		return len(round.Options) - 1, nil
	})
	var reports []RoundResult
	r := &Reconciler{Chooser: chooser, Report: func(rr RoundResult) { reports = append(reports, rr) }}
	result, err := r.Run(context.Background(), infos)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Rounds > len(infos) {
		t.Fatalf("rounds = %d exceeds video count", result.Rounds)
	}

	seen := map[string]int{}
	for _, sel := range result.Selections {
		seen[sel.Video.ID]++
	}
	for _, v := range result.Unassigned {
		seen[v.ID]++
	}
	for _, vf := range infos {
		if seen[vf.Video.ID] != 1 {
			t.Errorf("%s appears %d times", vf.Video.ID, seen[vf.Video.ID])
		}
	}
	if len(result.Unassigned) != 1 || result.Unassigned[0].ID != "v5" {
		t.Fatalf("only the video without candidates should be unassigned, got %+v", result.Unassigned)
	}

	prev := len(infos)
	for _, rr := range reports {
		if len(rr.Assigned) == 0 {
			t.Fatalf("round %d assigned nothing", rr.Round.Number)
		}
		if rr.Left >= prev {
			t.Fatalf("round %d did not shrink remaining (%d -> %d)", rr.Round.Number, prev, rr.Left)
		}
		prev = rr.Left
	}
}

func TestRunInvalidChoice(t *testing.T) {
	r := &Reconciler{Chooser: ChooserFunc(func(context.Context, Round) (int, error) { return 5, nil })}
	_, err := r.Run(context.Background(), scenarioB())
	if !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
}

func TestRunChooserError(t *testing.T) {
	boom := errors.New("stdin closed")
	r := &Reconciler{Chooser: ChooserFunc(func(context.Context, Round) (int, error) { return 0, boom })}
	if _, err := r.Run(context.Background(), scenarioB()); !errors.Is(err, boom) {
		t.Fatalf("expected chooser error, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Reconciler{Chooser: ChooserFunc(func(context.Context, Round) (int, error) { return 0, nil })}
	if _, err := r.Run(ctx, scenarioB()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunNothingAvailable(t *testing.T) {
	called := false
	r := &Reconciler{Chooser: ChooserFunc(func(context.Context, Round) (int, error) {
		called = true
		return 0, nil
	})}
	infos := []VideoFormats{{Video: video(1)}, {Video: video(2)}}
	result, err := r.Run(context.Background(), infos)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Fatalf("chooser must not be asked when nothing is available")
	}
	if result.Rounds != 0 || len(result.Unassigned) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestAvailableKeepsFirstOccurrence(t *testing.T) {
	infos := []VideoFormats{
		{Video: video(1), Candidates: []formats.Candidate{cand("18", 100, 360)}},
		{Video: video(2), Candidates: []formats.Candidate{cand("22", 300, 720), cand("18", 999, 360)}},
	}
	got := Available(infos)
	if len(got) != 2 || got[0].Spec != "18" || got[0].Size != 100 || got[1].Spec != "22" {
		t.Fatalf("Available = %+v", got)
	}
}

func TestRankTieBreaks(t *testing.T) {
	infos := []VideoFormats{
		{Video: video(1), Candidates: []formats.Candidate{
			cand("low", 50, 360),
			cand("high", 50, 1080),
			cand("same-small", 40, 720),
			cand("same-big", 60, 720),
		}},
		{Video: video(2), Candidates: []formats.Candidate{
			cand("same-small", 60, 720),
			cand("same-big", 40, 720),
		}},
	}
	got := Rank(Available(infos), infos)
	var order []string
	for _, opt := range got {
		order = append(order, opt.Candidate.Spec)
	}
	// low/high tie on aggregate 50 and split on height; the two "same" specs
	// tie on aggregate 100 and height, so individual size decides.
	want := []string{"high", "low", "same-small", "same-big"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Rank order = %v, want %v", order, want)
		}
	}
}

func TestPartition(t *testing.T) {
	supports, rest := Partition(scenarioB(), "18")
	if len(supports) != 2 || supports[0].Video.ID != "v2" || supports[1].Video.ID != "v3" {
		t.Fatalf("supports = %+v", supports)
	}
	if len(rest) != 1 || rest[0].Video.ID != "v1" {
		t.Fatalf("rest = %+v", rest)
	}
}

func TestCollectIsolatesFailures(t *testing.T) {
	videos := []model.Video{video(1), video(2), video(3)}
	var order []string
	fetch := func(_ context.Context, v model.Video) ([]formats.Candidate, error) {
		order = append(order, v.ID)
		if v.ID == "v2" {
			return nil, errors.New("timed out")
		}
		return []formats.Candidate{cand("18", 1, 360)}, nil
	}
	var events []Analysis
	infos, err := Collect(context.Background(), videos, fetch, func(a Analysis) { events = append(events, a) })
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(infos) != 3 || infos[1].Err == nil || len(infos[1].Candidates) != 0 {
		t.Fatalf("unexpected infos %+v", infos)
	}
	if Analyzed(infos) != 2 {
		t.Fatalf("Analyzed = %d, want 2", Analyzed(infos))
	}
	if fmt.Sprint(order) != "[v1 v2 v3]" {
		t.Fatalf("fetch order = %v", order)
	}
	if len(events) != 6 || events[0].Done || !events[1].Done || events[0].Position != 1 || events[5].Total != 3 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestCollectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(ctx context.Context, v model.Video) ([]formats.Candidate, error) {
		calls++
		cancel()
		return nil, ctx.Err()
	}
	_, err := Collect(ctx, []model.Video{video(1), video(2)}, fetch, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times after cancel", calls)
	}
}
