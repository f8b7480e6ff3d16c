package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lvcoi/ytdlp-picker/internal/downloader"
	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/model"
	"github.com/lvcoi/ytdlp-picker/internal/reconcile"
	"github.com/lvcoi/ytdlp-picker/internal/updater"
)

func intp(v int) *int      { return &v }
func sizep(v int64) *int64 { return &v }

var (
	fmt137 = formats.Format{ID: "137", VideoCodec: "avc1.640028", AudioCodec: "none", Height: intp(1080), FileSize: sizep(5_000_000), Ext: "mp4"}
	fmt140 = formats.Format{ID: "140", VideoCodec: "none", AudioCodec: "mp4a.40.2", FileSize: sizep(500_000), Ext: "m4a"}
	fmt18  = formats.Format{ID: "18", VideoCodec: "avc1.42001E", AudioCodec: "mp4a.40.2", Height: intp(360), FileSize: sizep(1_000_000), Ext: "mp4"}
	fmt248 = formats.Format{ID: "248", VideoCodec: "vp9", AudioCodec: "none", Height: intp(1080), FileSize: sizep(4_000_000), Ext: "webm"}
)

type fakeFormats struct {
	infos map[string]*formats.Info
	errs  map[string]error
	calls []string
}

func (f *fakeFormats) Info(ctx context.Context, url string) (*formats.Info, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	if info, ok := f.infos[url]; ok {
		return info, nil
	}
	return nil, downloader.CategorizedError{Category: downloader.CategoryUnavailable, Err: fmt.Errorf("unknown url %s", url)}
}

type fakePlaylists struct {
	playlist *model.Playlist
	err      error
}

func (f *fakePlaylists) Playlist(ctx context.Context, url string) (*model.Playlist, error) {
	return f.playlist, f.err
}

// scriptedChooser picks formats by spec so tests do not depend on ranking.
type scriptedChooser struct {
	single []string
	rounds []string
	seen   []reconcile.Round
	err    error
}

func (c *scriptedChooser) ChooseFormat(ctx context.Context, title string, candidates []formats.Candidate) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	spec := c.single[0]
	c.single = c.single[1:]
	for i, cand := range candidates {
		if cand.Spec == spec {
			return i, nil
		}
	}
	return 0, fmt.Errorf("spec %s not offered", spec)
}

func (c *scriptedChooser) Choose(ctx context.Context, round reconcile.Round) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.seen = append(c.seen, round)
	spec := c.rounds[0]
	c.rounds = c.rounds[1:]
	for i, opt := range round.Options {
		if opt.Candidate.Spec == spec {
			return i, nil
		}
	}
	return 0, fmt.Errorf("spec %s not offered", spec)
}

type fakeDownloads struct {
	oneErr     error
	single     []downloader.Item
	items      []downloader.Item
	unassigned []model.Video
	allCalls   int
}

func (f *fakeDownloads) DownloadOne(ctx context.Context, video model.Video, candidate formats.Candidate) downloader.ItemResult {
	f.single = append(f.single, downloader.Item{Video: video, Candidate: candidate})
	status := model.TaskStatusCompleted
	if f.oneErr != nil {
		status = model.TaskStatusError
	}
	return downloader.ItemResult{Video: video, Spec: candidate.Spec, Status: status, Err: f.oneErr}
}

func (f *fakeDownloads) DownloadAll(ctx context.Context, playlist *model.Playlist, items []downloader.Item, unassigned []model.Video) (downloader.Summary, error) {
	f.allCalls++
	f.items = items
	f.unassigned = unassigned
	return downloader.Summary{Total: len(items) + len(unassigned), OK: len(items), Skipped: len(unassigned)}, nil
}

type scriptedInput struct {
	lines []string
}

func (in *scriptedInput) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(in.lines) == 0 {
		return "", downloader.ErrNoInput
	}
	line := in.lines[0]
	in.lines = in.lines[1:]
	return line, nil
}

type fakeUpdates struct {
	res updater.Result
	err error
}

func (f fakeUpdates) Check(ctx context.Context) (updater.Result, error) {
	return f.res, f.err
}

type harness struct {
	session   *Session
	formats   *fakeFormats
	chooser   *scriptedChooser
	downloads *fakeDownloads
	out       *bytes.Buffer
}

func newHarness(policy formats.Policy, lines ...string) *harness {
	var out bytes.Buffer
	off := false
	h := &harness{
		formats:   &fakeFormats{infos: map[string]*formats.Info{}, errs: map[string]error{}},
		chooser:   &scriptedChooser{},
		downloads: &fakeDownloads{},
		out:       &out,
	}
	h.session = &Session{
		Formats:   h.formats,
		Playlists: &fakePlaylists{},
		Chooser:   h.chooser,
		Downloads: h.downloads,
		Input:     &scriptedInput{lines: lines},
		Printer:   downloader.NewPrinter(downloader.PrinterOptions{Out: &out, Color: &off}),
		Policy:    policy,
	}
	return h
}

func TestRunSingleVideo(t *testing.T) {
	h := newHarness(formats.PolicyUniversal, "https://youtu.be/abc", "")
	h.session.Updates = fakeUpdates{res: updater.Result{Status: updater.StatusUpToDate, Current: "2024.08.06", Latest: "2024.08.06"}}
	h.formats.infos["https://www.youtube.com/watch?v=abc"] = &formats.Info{
		ID: "abc", Title: "Clip", Channel: "Chan",
		Formats: []formats.Format{fmt137, fmt140, fmt18, fmt248},
	}
	h.chooser.single = []string{"137+140"}

	if err := h.session.Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.downloads.single) != 1 {
		t.Fatalf("expected one download, got %d", len(h.downloads.single))
	}
	got := h.downloads.single[0]
	if got.Candidate.Spec != "137+140" || got.Video.URL != "https://www.youtube.com/watch?v=abc" || got.Video.Title != "Clip" {
		t.Fatalf("unexpected download %+v", got)
	}
	if !strings.Contains(h.out.String(), "yt-dlp 2024.08.06 is up to date") {
		t.Fatalf("version status not logged:\n%s", h.out.String())
	}
}

func TestRunPlaylistReconciles(t *testing.T) {
	h := newHarness(formats.PolicyGeneral, "https://www.youtube.com/playlist?list=PLabcdefghijklmnop")
	pl := model.NewPlaylist("PLabcdefghijklmnop", "Trip", "Chan", "", []model.Video{
		{ID: "v1", URL: "https://example.com/1", Title: "One"},
		{ID: "v2", URL: "https://example.com/2", Title: "Two"},
		{ID: "v3", URL: "https://example.com/3", Title: "Three"},
		{ID: "v4", URL: "https://example.com/4", Title: "Four"},
	})
	h.session.Playlists = &fakePlaylists{playlist: pl}
	h.formats.infos["https://example.com/1"] = &formats.Info{Formats: []formats.Format{fmt137, fmt140}}
	h.formats.infos["https://example.com/2"] = &formats.Info{Formats: []formats.Format{fmt137, fmt140, fmt18}}
	h.formats.infos["https://example.com/3"] = &formats.Info{Formats: []formats.Format{fmt18}}
	h.formats.errs["https://example.com/4"] = errors.New("Video unavailable")
	h.chooser.rounds = []string{"18", "137+140"}

	if err := h.session.Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Join(h.formats.calls, ","); got != "https://example.com/1,https://example.com/2,https://example.com/3,https://example.com/4" {
		t.Fatalf("videos analyzed out of order: %s", got)
	}
	if len(h.chooser.seen) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(h.chooser.seen))
	}
	if first := h.chooser.seen[0].Options[0].Candidate.Spec; first != "18" {
		t.Fatalf("cheapest aggregate should rank first, got %s", first)
	}

	assigned := map[string]string{}
	for _, item := range h.downloads.items {
		assigned[item.Video.ID] = item.Candidate.Spec
	}
	want := map[string]string{"v1": "137+140", "v2": "18", "v3": "18"}
	if fmt.Sprint(assigned) != fmt.Sprint(want) {
		t.Fatalf("assignments = %v, want %v", assigned, want)
	}
	if len(h.downloads.unassigned) != 1 || h.downloads.unassigned[0].ID != "v4" {
		t.Fatalf("unexpected unassigned %+v", h.downloads.unassigned)
	}

	log := h.out.String()
	for _, line := range []string{
		"Playlist: Trip (Chan) - 4 videos",
		"Analyzing video 1/4: One",
		"skipping 4. Four: Video unavailable",
		"analyzed 3/4 videos",
		"2 videos don't have this format",
		"3 videos ready for download",
	} {
		if !strings.Contains(log, line) {
			t.Errorf("log missing %q:\n%s", line, log)
		}
	}
}

func TestRunPlaylistWithoutFormats(t *testing.T) {
	h := newHarness(formats.PolicyUniversal)
	pl := model.NewPlaylist("PL1", "Trip", "", "", []model.Video{{ID: "v1", URL: "https://example.com/1"}})
	h.session.Playlists = &fakePlaylists{playlist: pl}
	h.formats.infos["https://example.com/1"] = &formats.Info{Formats: []formats.Format{fmt248}}

	err := h.session.Process(context.Background(), "https://www.youtube.com/playlist?list=PLabcdefghijklmnop")
	if downloader.CategoryOf(err) != downloader.CategoryUnsupported {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if h.downloads.allCalls != 0 {
		t.Fatal("nothing should be downloaded")
	}
}

func TestRunContinuesAfterFailures(t *testing.T) {
	h := newHarness(formats.PolicyGeneral, "not a url", "https://example.com/gone", "https://example.com/ok", "quit", "https://example.com/never")
	h.formats.errs["https://example.com/gone"] = downloader.CategorizedError{Category: downloader.CategoryUnavailable, Err: errors.New("fetching formats: Video unavailable")}
	h.formats.infos["https://example.com/ok"] = &formats.Info{Title: "OK", Formats: []formats.Format{fmt18}}
	h.chooser.single = []string{"18"}
	h.downloads.oneErr = errors.New("download: disk full")

	if err := h.session.Run(context.Background(), nil); err != nil {
		t.Fatalf("failures should not end the session: %v", err)
	}
	log := h.out.String()
	if n := strings.Count(log, "[ERROR]"); n != 2 {
		t.Fatalf("expected 2 error lines, got %d:\n%s", n, log)
	}
	if strings.Contains(log, "disk full") {
		t.Fatalf("download failure was already reported by the orchestrator:\n%s", log)
	}
	for _, url := range h.formats.calls {
		if url == "https://example.com/never" {
			t.Fatal("input after quit was processed")
		}
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	h := newHarness(formats.PolicyGeneral, "https://example.com/ok", "https://example.com/ok")
	h.formats.infos["https://example.com/ok"] = &formats.Info{Formats: []formats.Format{fmt18}}
	h.chooser.err = context.Canceled

	err := h.session.Run(context.Background(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(h.formats.calls) != 1 {
		t.Fatalf("session continued after cancellation: %v", h.formats.calls)
	}
}

func TestRunBatchReturnsWorstError(t *testing.T) {
	h := newHarness(formats.PolicyGeneral)
	h.session.Input = nil
	h.formats.infos["https://example.com/ok"] = &formats.Info{Formats: []formats.Format{fmt18}}
	h.formats.errs["https://example.com/down"] = downloader.CategorizedError{Category: downloader.CategoryNetwork, Err: errors.New("offline")}
	h.chooser.single = []string{"18"}

	err := h.session.Run(context.Background(), []string{"ftp://x", "https://example.com/down", "https://example.com/ok"})
	if downloader.ExitCode(err) != 4 {
		t.Fatalf("expected network exit code 4, got %d (%v)", downloader.ExitCode(err), err)
	}
	if len(h.downloads.single) != 1 {
		t.Fatalf("later URLs should still be processed, got %d downloads", len(h.downloads.single))
	}
}

func TestProcessNoMatchingFormat(t *testing.T) {
	h := newHarness(formats.PolicyUniversal)
	h.formats.infos["https://example.com/v"] = &formats.Info{Formats: []formats.Format{fmt248}}
	err := h.session.Process(context.Background(), "https://example.com/v")
	if downloader.CategoryOf(err) != downloader.CategoryUnsupported {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestCheckVersionWarnings(t *testing.T) {
	tests := []struct {
		name string
		upd  fakeUpdates
		want string
	}{
		{
			name: "outdated",
			upd:  fakeUpdates{res: updater.Result{Status: updater.StatusOutdated, Current: "2023.01.01", Latest: "2024.08.06"}},
			want: "[WARN] yt-dlp 2023.01.01 is outdated, latest is 2024.08.06",
		},
		{
			name: "unknown",
			upd:  fakeUpdates{res: updater.Result{Status: updater.StatusUnknown}, err: errors.New("rate limited")},
			want: "[WARN] could not check the yt-dlp version: rate limited",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(formats.PolicyGeneral)
			h.session.Updates = tt.upd
			if err := h.session.Run(context.Background(), nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(h.out.String(), tt.want) {
				t.Fatalf("missing %q in:\n%s", tt.want, h.out.String())
			}
		})
	}
}

func TestListFormats(t *testing.T) {
	h := newHarness(formats.PolicyGeneral)
	h.formats.infos["https://example.com/v"] = &formats.Info{Title: "Clip", Formats: []formats.Format{fmt137, fmt140, fmt18}}
	var out bytes.Buffer
	if err := h.session.ListFormats(context.Background(), "https://example.com/v", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Clip (policy general)", "SPEC", "137+140", "360p (avc1+mp4a) ~1MB"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, " 18 ") > strings.Index(text, "137+140") {
		t.Errorf("smaller candidate should be listed first:\n%s", text)
	}
}
