package downloader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/model"
)

// Fetcher runs one download. *Client implements it.
type Fetcher interface {
	Download(ctx context.Context, req DownloadRequest, obs Observer) (DownloadResult, error)
}

// Item is a video with the format chosen for it.
type Item struct {
	Video     model.Video
	Candidate formats.Candidate
}

// ItemResult is the outcome of one download.
type ItemResult struct {
	TaskID      string
	Video       model.Video
	Spec        string
	Status      model.TaskStatus
	OutputPath  string
	Elapsed     time.Duration
	Synthesized bool
	Err         error
}

// Summary tallies a batch.
type Summary struct {
	Total   int
	OK      int
	Failed  int
	Skipped int
	Elapsed time.Duration
	Items   []ItemResult
}

func (s *Summary) add(r ItemResult) {
	s.Items = append(s.Items, r)
	switch r.Status {
	case model.TaskStatusCompleted:
		s.OK++
	case model.TaskStatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Orchestrator downloads chosen formats one item at a time.
type Orchestrator struct {
	Fetcher          Fetcher
	Printer          *Printer
	OutputDir        string
	ProgressInterval time.Duration
	// Verifier, when set, checks merged video+audio outputs.
	Verifier MergeVerifier

	newID func() string
	now   func() time.Time
}

func (o *Orchestrator) taskID() string {
	if o.newID != nil {
		return o.newID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}

// DownloadOne downloads a single video into the output directory.
func (o *Orchestrator) DownloadOne(ctx context.Context, video model.Video, candidate formats.Candidate) ItemResult {
	if err := ensureDir(o.OutputDir); err != nil {
		r := ItemResult{TaskID: o.taskID(), Video: video, Spec: candidate.Spec, Status: model.TaskStatusError, Err: err}
		o.Printer.ItemResult(o.Printer.Prefix(1, 1, video.DisplayTitle()), r)
		return r
	}
	prefix := o.Printer.Prefix(1, 1, video.DisplayTitle())
	return o.run(ctx, prefix, video, candidate, singleTemplate(o.OutputDir))
}

// DownloadAll downloads every item of a reconciled playlist in playlist
// order. A failed item is reported and the next one starts anyway; only
// cancellation stops the batch. Unassigned videos are reported as skipped.
func (o *Orchestrator) DownloadAll(ctx context.Context, playlist *model.Playlist, items []Item, unassigned []model.Video) (Summary, error) {
	start := o.clock()
	summary := Summary{Total: len(items) + len(unassigned)}

	dir := playlistDir(o.OutputDir, playlist)
	if err := ensureDir(dir); err != nil {
		return summary, err
	}
	o.Printer.Logf(LogInfo, "playlist: %s (%d videos) -> %s", playlist.DirName(), playlist.Len(), dir)

	ordered := append([]Item(nil), items...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Video.Index < ordered[j].Video.Index
	})

	total := playlist.Len()
	if total < summary.Total {
		total = summary.Total
	}
	var cancelled error
	for _, item := range ordered {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		prefix := o.Printer.Prefix(item.Video.Index, total, item.Video.DisplayTitle())
		summary.add(o.run(ctx, prefix, item.Video, item.Candidate, playlistTemplate(dir, item.Video, total)))
	}
	for _, video := range unassigned {
		prefix := o.Printer.Prefix(video.Index, total, video.DisplayTitle())
		o.Printer.ItemSkipped(prefix, "no suitable format")
		summary.add(ItemResult{TaskID: o.taskID(), Video: video, Status: model.TaskStatusSkipped})
	}

	summary.Elapsed = o.clock().Sub(start)
	o.Printer.Summary(summary)
	if cancelled != nil {
		return summary, wrapCategory(CategoryCancelled, cancelled)
	}
	if summary.OK == 0 && len(items) > 0 {
		return summary, MarkReported(wrapCategory(CategoryProcess, errors.New("no playlist entries downloaded successfully")))
	}
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, prefix string, video model.Video, candidate formats.Candidate, template string) ItemResult {
	start := o.clock()
	result := ItemResult{TaskID: o.taskID(), Video: video, Spec: candidate.Spec, Status: model.TaskStatusDownloading}
	o.Printer.Logf(LogDebug, "task %s: %s -f %s", result.TaskID, video.URL, candidate.Spec)

	writer := newProgressWriter(o.Printer, prefix, o.ProgressInterval)
	if o.now != nil {
		writer.now = o.now
	}
	res, err := o.Fetcher.Download(ctx, DownloadRequest{URL: video.URL, Spec: candidate.Spec, OutputTemplate: template}, Observer{
		OnEvent: writer.Handle,
		OnWarning: func(line string) {
			o.Printer.Log(LogDebug, strings.TrimSpace(line))
		},
		OnOutput: func(line string) {
			o.Printer.Log(LogDebug, line)
		},
	})
	writer.Finish()

	if err == nil && candidate.Kind == formats.KindPaired && o.Verifier != nil && res.OutputPath != "" {
		if verr := o.Verifier.Verify(ctx, res.OutputPath); verr != nil {
			err = fmt.Errorf("verifying %s: %w", res.OutputPath, verr)
		}
	}

	result.OutputPath = res.OutputPath
	result.Synthesized = res.Synthesized
	result.Elapsed = o.clock().Sub(start)
	result.Err = err
	result.Status = model.TaskStatusCompleted
	if err != nil {
		result.Status = model.TaskStatusError
	}
	o.Printer.ItemResult(prefix, result)
	return result
}

// wrapAccessError categorizes a playlist or video fetch failure.
func wrapAccessError(err error) error {
	if err == nil {
		return nil
	}
	if isRestrictedAccess(err) {
		return wrapCategory(CategoryUnavailable, fmt.Errorf("restricted access: %w", err))
	}
	return wrapCategory(CategoryNetwork, err)
}

func isRestrictedAccess(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(strings.ToLower(err.Error()),
		"private",
		"sign in",
		"login",
		"members only",
		"premium",
		"copyright",
		"video unavailable",
		"content unavailable",
		"age-restricted",
		"age restricted",
		"not available",
	)
}
