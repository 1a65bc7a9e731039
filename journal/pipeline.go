package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/theimaginaryfoundation/journal-distiller/journal/fileutils"
	"github.com/theimaginaryfoundation/journal-distiller/journal/provider"
)

// PreviewChars is how much of each generated answer goes into the log.
const PreviewChars = 150

// Params are the operator-chosen filter settings.
type Params struct {
	Start *time.Time
	End   *time.Time

	SplitSelector Selector
	SplitDays     int

	MinArticleLength     int
	MinMemberQuoteLength int
}

// FilterReport summarizes one Filter pass.
type FilterReport struct {
	InputThreads   int
	DateRange      DateRangeStats
	Split          SplitStats
	ArticleRemoved int
	QuotesRemoved  int
	OutputThreads  int
	OutputPosts    int
}

// Filter runs the filters in their fixed order on a deep copy of c:
// date range, time-gap split, article length, member-quote length.
// The input collection is never modified.
func Filter(c Collection, p Params, log zerolog.Logger) (Collection, FilterReport) {
	rep := FilterReport{InputThreads: c.Len()}
	work := c.Clone()

	work, rep.DateRange = FilterByDateRange(work, p.Start, p.End)
	if p.Start != nil || p.End != nil {
		log.Info().
			Str("start", optDate(p.Start)).
			Str("end", optDate(p.End)).
			Int("posts_removed", rep.DateRange.PostsRemoved).
			Int("threads_removed", rep.DateRange.ThreadsRemoved).
			Int("threads", work.Len()).
			Msg("date range filter")
	}

	if p.SplitDays > 0 && !p.SplitSelector.Empty() {
		work, rep.Split = SplitByTimeGap(work, p.SplitSelector, p.SplitDays)
		log.Info().
			Str("selector", p.SplitSelector.String()).
			Int("days", p.SplitDays).
			Int("targets", rep.Split.Targets).
			Int("threads_split", rep.Split.ThreadsSplit).
			Int("parts_created", rep.Split.PartsCreated).
			Int("threads", work.Len()).
			Msg("time gap split")
	}

	work, rep.ArticleRemoved = FilterByTotalArticleLength(work, p.MinArticleLength)
	if p.MinArticleLength > 0 {
		log.Info().
			Int("threshold", p.MinArticleLength).
			Int("threads_removed", rep.ArticleRemoved).
			Int("threads", work.Len()).
			Msg("article length filter")
	}

	work, rep.QuotesRemoved = FilterByMemberQuoteLength(work, p.MinMemberQuoteLength)
	if p.MinMemberQuoteLength > 0 {
		log.Info().
			Int("threshold", p.MinMemberQuoteLength).
			Int("quotes_removed", rep.QuotesRemoved).
			Msg("member quote length filter")
	}

	rep.OutputThreads = work.Len()
	rep.OutputPosts = work.PostCount()
	return work, rep
}

func optDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return FormatDate(*t)
}

// Generator is the text-generation capability the runner drives.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Status is the result of one request.
type Status string

const (
	StatusProcessed       Status = "processed"
	StatusSkippedExisting Status = "skipped_existing"
	StatusError           Status = "error"
)

// Outcome describes how one request ended.
type Outcome struct {
	ThreadID string
	Title    string
	Status   Status
	Category string
	Path     string
	Err      string
	Duration time.Duration

	called bool
}

// Recorder receives every outcome, e.g. to persist a run ledger.
type Recorder interface {
	RecordOutcome(ctx context.Context, o Outcome) error
}

// RunStats are the end-of-run counts.
type RunStats struct {
	Processed       int
	SkippedExisting int
	Errors          int
}

// Runner sends requests to the generator one at a time and writes the artifacts.
type Runner struct {
	Generator Generator
	Writer    ArtifactWriter
	Pacer     *Pacer
	Recorder  Recorder
	Log       zerolog.Logger

	// Progress, when set, gets one human-readable line per request.
	Progress io.Writer
}

// Run processes reqs in order. A failing request is counted and the run moves on;
// only context cancellation stops it early, in which case the stats so far are returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, reqs []Request) (RunStats, error) {
	if r.Generator == nil {
		return RunStats{}, errors.New("Runner.Run: generator is nil")
	}

	var stats RunStats
	total := len(reqs)
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		log := r.Log.With().Str("thread_id", req.ThreadID).Str("title", req.Title).Logger()
		log.Info().Int("n", i+1).Int("total", total).Msg("processing request")
		r.progressf("[%d/%d] %s (%s)\n", i+1, total, req.Title, req.ThreadID)

		out, err := r.runOne(ctx, log, req)
		if err != nil {
			return stats, err
		}

		switch out.Status {
		case StatusProcessed:
			stats.Processed++
			r.progressf("  -> saved %s\n", out.Path)
		case StatusSkippedExisting:
			stats.SkippedExisting++
			r.progressf("  -> skipped, %s exists\n", out.Path)
		default:
			stats.Errors++
			r.progressf("  -> error (%s), not saved\n", out.Category)
		}

		if r.Recorder != nil {
			if err := r.Recorder.RecordOutcome(ctx, out); err != nil {
				log.Warn().Err(err).Msg("record outcome")
			}
		}

		if !out.called {
			continue
		}
		if err := r.Pacer.After(ctx, out.Status == StatusError); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// runOne returns an error only when ctx is done.
func (r *Runner) runOne(ctx context.Context, log zerolog.Logger, req Request) (Outcome, error) {
	out := Outcome{ThreadID: req.ThreadID, Title: req.Title, Path: r.Writer.Path(req.Title)}

	exists, err := r.Writer.Exists(req.Title)
	if err != nil {
		log.Error().Err(err).Msg("check artifact")
		out.Status, out.Category, out.Err = StatusError, "persistence", err.Error()
		return out, nil
	}
	if exists {
		log.Warn().Str("path", out.Path).Msg("artifact exists, skipping generation")
		out.Status = StatusSkippedExisting
		return out, nil
	}

	if err := r.Pacer.Wait(ctx); err != nil {
		return out, err
	}

	start := time.Now()
	out.called = true
	text, err := r.Generator.Generate(ctx, req.SystemPrompt, req.UserPrompt)
	out.Duration = time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		out.Status, out.Category, out.Err = StatusError, string(provider.Categorize(err)), err.Error()
		ev := log.Error().Err(err).Str("category", out.Category)
		var f *provider.Failure
		if errors.As(err, &f) {
			ev = ev.Str("hint", f.Hint())
		}
		ev.Msg("generation failed")
		return out, nil
	}
	if strings.TrimSpace(text) == "" {
		out.Status, out.Category, out.Err = StatusError, string(provider.CategoryEmptyResponse), provider.ErrEmptyResponse.Error()
		log.Error().Msg("generation returned empty text")
		return out, nil
	}
	log.Info().
		Dur("duration", out.Duration).
		Str("preview", fileutils.Truncate(fileutils.SanitizeNewlines(text), PreviewChars)).
		Msg("response received")

	path, err := r.Writer.Write(req, text)
	out.Path = path
	if errors.Is(err, ErrArtifactExists) {
		log.Warn().Str("path", path).Msg("artifact appeared during generation, not overwriting")
		out.Status = StatusSkippedExisting
		return out, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("write artifact")
		out.Status, out.Category, out.Err = StatusError, "persistence", err.Error()
		return out, nil
	}

	log.Info().Str("path", path).Msg("artifact saved")
	out.Status = StatusProcessed
	return out, nil
}

func (r *Runner) progressf(format string, args ...any) {
	if r.Progress == nil {
		return
	}
	fmt.Fprintf(r.Progress, format, args...)
}
