// Package app drives the interactive download session: read a URL, pick
// formats, download, repeat.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lvcoi/ytdlp-picker/internal/downloader"
	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/model"
	"github.com/lvcoi/ytdlp-picker/internal/reconcile"
	"github.com/lvcoi/ytdlp-picker/internal/updater"
)

// FormatSource fetches the metadata and formats of one media item.
type FormatSource interface {
	Info(ctx context.Context, url string) (*formats.Info, error)
}

// PlaylistSource lists the videos of a playlist.
type PlaylistSource interface {
	Playlist(ctx context.Context, url string) (*model.Playlist, error)
}

// Chooser asks the operator for a format, for one video or for a
// reconciliation round.
type Chooser interface {
	ChooseFormat(ctx context.Context, title string, candidates []formats.Candidate) (int, error)
	reconcile.Chooser
}

// Downloader runs chosen downloads. *downloader.Orchestrator implements it.
type Downloader interface {
	DownloadOne(ctx context.Context, video model.Video, candidate formats.Candidate) downloader.ItemResult
	DownloadAll(ctx context.Context, playlist *model.Playlist, items []downloader.Item, unassigned []model.Video) (downloader.Summary, error)
}

// LineReader reads one answer from the operator.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// VersionChecker reports whether yt-dlp is current.
type VersionChecker interface {
	Check(ctx context.Context) (updater.Result, error)
}

const urlPrompt = "Enter a video or playlist URL (empty to quit): "

// Session wires the collaborators of one interactive run.
type Session struct {
	Formats   FormatSource
	Playlists PlaylistSource
	Chooser   Chooser
	Downloads Downloader
	Input     LineReader
	Printer   *downloader.Printer
	// Updates is optional; nil skips the version check.
	Updates VersionChecker
	Policy  formats.Policy
}

// Run checks the yt-dlp version, then processes urls once each or, when
// none are given, prompts for URLs until the input ends. A failed item is
// reported and the session carries on; only cancellation or closed input
// end it early. The returned error is the worst one seen.
func (s *Session) Run(ctx context.Context, urls []string) error {
	s.checkVersion(ctx)
	if len(urls) > 0 {
		return s.runBatch(ctx, urls)
	}
	for {
		line, err := s.Input.ReadLine(ctx, urlPrompt)
		if err != nil {
			if errors.Is(err, downloader.ErrNoInput) {
				return nil
			}
			return err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "q", "quit", "exit":
			return nil
		}
		if err := s.Process(ctx, line); err != nil {
			if errors.Is(err, downloader.ErrNoInput) {
				return nil
			}
			s.report(err)
			if !downloader.Recoverable(err) {
				return err
			}
		}
	}
}

func (s *Session) runBatch(ctx context.Context, urls []string) error {
	var worst error
	for _, raw := range urls {
		err := s.Process(ctx, raw)
		if err == nil {
			continue
		}
		s.report(err)
		if worst == nil || downloader.ExitCode(err) > downloader.ExitCode(worst) {
			worst = err
		}
		if !downloader.Recoverable(err) {
			break
		}
	}
	return worst
}

// Process handles one URL: a playlist goes through reconciliation, anything
// else is treated as a single video.
func (s *Session) Process(ctx context.Context, raw string) error {
	url, err := downloader.ValidateURL(raw)
	if err != nil {
		return err
	}
	if downloader.LooksLikePlaylist(url) {
		return s.processPlaylist(ctx, url)
	}
	return s.processVideo(ctx, url)
}

func (s *Session) processVideo(ctx context.Context, url string) error {
	s.Printer.Logf(downloader.LogInfo, "fetching formats for %s", url)
	info, err := s.Formats.Info(ctx, url)
	if err != nil {
		return err
	}
	candidates, err := formats.Compose(info.Formats, s.Policy)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return noFormat(fmt.Sprintf("no format matches policy %q", s.Policy))
	}

	title := info.Title
	if title == "" {
		title = url
	}
	if owner := channelOf(info); owner != "" {
		s.Printer.Logf(downloader.LogInfo, "%s by %s", title, owner)
	}
	idx, err := s.Chooser.ChooseFormat(ctx, title, candidates)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(candidates) {
		return fmt.Errorf("%w: %d not in 1..%d", reconcile.ErrInvalidChoice, idx+1, len(candidates))
	}

	video := model.Video{ID: info.ID, URL: url, Title: info.Title, Index: 1}
	result := s.Downloads.DownloadOne(ctx, video, candidates[idx])
	return downloader.MarkReported(result.Err)
}

func (s *Session) processPlaylist(ctx context.Context, url string) error {
	s.Printer.Logf(downloader.LogInfo, "fetching playlist %s", url)
	playlist, err := s.Playlists.Playlist(ctx, url)
	if err != nil {
		return err
	}
	if playlist.Len() == 0 {
		return noFormat("playlist has no videos")
	}
	s.Printer.Heading(fmt.Sprintf("[>] Playlist: %s - %d videos", playlist.DirName(), playlist.Len()))

	infos, err := reconcile.Collect(ctx, playlist.Videos, s.candidates, s.observeAnalysis)
	if err != nil {
		return err
	}
	s.Printer.Logf(downloader.LogInfo, "analyzed %d/%d videos", reconcile.Analyzed(infos), len(infos))

	rec := reconcile.Reconciler{Chooser: s.Chooser, Report: s.reportRound}
	result, err := rec.Run(ctx, infos)
	if err != nil {
		return err
	}
	if len(result.Selections) == 0 {
		return noFormat("no format is available for any video in the playlist")
	}
	s.Printer.Logf(downloader.LogInfo, "%d videos ready for download", len(result.Selections))

	items := make([]downloader.Item, 0, len(result.Selections))
	for _, sel := range result.Selections {
		items = append(items, downloader.Item{Video: sel.Video, Candidate: sel.Candidate})
	}
	_, err = s.Downloads.DownloadAll(ctx, playlist, items, result.Unassigned)
	return err
}

func (s *Session) candidates(ctx context.Context, video model.Video) ([]formats.Candidate, error) {
	info, err := s.Formats.Info(ctx, video.URL)
	if err != nil {
		return nil, err
	}
	return formats.Compose(info.Formats, s.Policy)
}

func (s *Session) observeAnalysis(a reconcile.Analysis) {
	switch {
	case !a.Done:
		s.Printer.Logf(downloader.LogInfo, "Analyzing video %d/%d: %s", a.Position, a.Total, a.Video.DisplayTitle())
	case a.Err != nil:
		s.Printer.Logf(downloader.LogWarn, "skipping %s: %v", a.Video.Label(), a.Err)
	case a.Count == 0:
		s.Printer.Logf(downloader.LogWarn, "%s has no format for policy %s", a.Video.Label(), s.Policy)
	}
}

func (s *Session) reportRound(rr reconcile.RoundResult) {
	s.Printer.Logf(downloader.LogInfo, "round %d: %s assigned to %d videos",
		rr.Round.Number, formats.Describe(rr.Chosen.Candidate), len(rr.Assigned))
	if missing := rr.Round.Remaining - len(rr.Assigned); missing > 0 {
		s.Printer.Logf(downloader.LogInfo, "%d videos don't have this format", missing)
	}
}

func (s *Session) checkVersion(ctx context.Context) {
	if s.Updates == nil {
		return
	}
	res, err := s.Updates.Check(ctx)
	switch res.Status {
	case updater.StatusUpToDate:
		s.Printer.Logf(downloader.LogInfo, "yt-dlp %s is up to date", res.Current)
	case updater.StatusOutdated:
		s.Printer.Logf(downloader.LogWarn, "yt-dlp %s is outdated, latest is %s (update with yt-dlp -U)", res.Current, res.Latest)
	default:
		s.Printer.Logf(downloader.LogWarn, "could not check the yt-dlp version: %v", err)
	}
}

func (s *Session) report(err error) {
	if downloader.IsReported(err) {
		return
	}
	s.Printer.Logf(downloader.LogError, "%v", err)
}

// ListFormats prints the candidate table for one video without downloading.
func (s *Session) ListFormats(ctx context.Context, raw string, w io.Writer) error {
	url, err := downloader.ValidateURL(raw)
	if err != nil {
		return err
	}
	info, err := s.Formats.Info(ctx, url)
	if err != nil {
		return err
	}
	candidates, err := formats.Compose(info.Formats, s.Policy)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (policy %s)\n", info.Title, s.Policy)
	if len(candidates) == 0 {
		fmt.Fprintln(w, "no matching formats")
		return nil
	}
	fmt.Fprintln(w, FormatTable(candidates))
	return nil
}

var tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

// FormatTable renders candidates as a bordered table.
func FormatTable(candidates []formats.Candidate) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "SPEC", "KIND", "FORMAT", "EXT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	for i, c := range candidates {
		t.Row(fmt.Sprint(i+1), c.Spec, string(c.Kind), formats.Describe(c), c.Ext)
	}
	return t.String()
}

func channelOf(info *formats.Info) string {
	if info.Channel != "" {
		return info.Channel
	}
	return info.Uploader
}

func noFormat(msg string) error {
	return downloader.CategorizedError{Category: downloader.CategoryUnsupported, Err: errors.New(msg)}
}
