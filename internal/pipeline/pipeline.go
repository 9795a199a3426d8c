// Package pipeline runs one search end to end: collect links, normalize,
// dedupe, drop excluded records, score, then hand the batch to the sinks.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/dedupe"
	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/normalize"
	"jobmate/aggregator-service/internal/parser"
	"jobmate/aggregator-service/internal/scoring"
	"jobmate/aggregator-service/internal/scraper"
)

// LinkSource is the collection side of a run. *scraper.Manager implements it.
type LinkSource interface {
	Collect(ctx context.Context, p model.SearchProfile) scraper.Collection
	CollectEmployers(ctx context.Context, p model.SearchProfile, employers []config.Employer) scraper.Collection
}

// PageFetcher downloads posting pages. *scraper.Fetcher implements it.
type PageFetcher interface {
	Get(ctx context.Context, rawURL, accept string) ([]byte, error)
}

// Store persists records keyed by job_id. Upsert is idempotent and never
// overwrites user-owned fields of an existing row.
type Store interface {
	Upsert(ctx context.Context, rec model.JobRecord) error
}

// RunRecorder is implemented by stores that also keep run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, s model.RunSummary) error
}

// Exporter re-syncs a presentation copy of the batch, matched by job_id.
type Exporter interface {
	Sync(ctx context.Context, destination string, records []model.JobRecord) error
}

// Options wires the optional collaborators. Nil sinks are skipped; a nil
// Pages disables page fetching.
type Options struct {
	Store             Store
	Exporter          Exporter
	ExportDestination string
	Pages             PageFetcher
	Scorer            *scoring.Engine
	Now               func() time.Time
}

// Pipeline is safe for sequential reuse across runs.
type Pipeline struct {
	sources LinkSource
	opt     Options
	norm    normalize.Normalizer
	log     *logger.Logger
}

// New builds a pipeline over sources.
func New(sources LinkSource, opt Options) *Pipeline {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Scorer == nil {
		opt.Scorer = scoring.NewEngine(scoring.WithClock(opt.Now))
	}
	return &Pipeline{
		sources: sources,
		opt:     opt,
		norm:    normalize.Normalizer{Now: opt.Now},
		log:     logger.Named("pipeline"),
	}
}

// Run searches every configured source for p and returns the scored batch.
// It always completes: source and sink failures are logged and counted in
// the summary.
func (pl *Pipeline) Run(ctx context.Context, p model.SearchProfile) ([]model.JobRecord, model.RunSummary) {
	started := pl.opt.Now().UTC()
	coll := pl.sources.Collect(ctx, p)
	return pl.process(ctx, p, model.ModeSearch, started, coll)
}

// RunEmployers is Run over the employer-directed ATS boards instead of the
// general search.
func (pl *Pipeline) RunEmployers(ctx context.Context, p model.SearchProfile, employers []config.Employer) ([]model.JobRecord, model.RunSummary) {
	started := pl.opt.Now().UTC()
	coll := pl.sources.CollectEmployers(ctx, p, employers)
	return pl.process(ctx, p, model.ModeEmployers, started, coll)
}

func (pl *Pipeline) process(
	ctx context.Context,
	p model.SearchProfile,
	mode string,
	started time.Time,
	coll scraper.Collection,
) ([]model.JobRecord, model.RunSummary) {
	sum := model.RunSummary{
		RunID:        uuid.NewString(),
		Profile:      p.Name,
		Mode:         mode,
		StartedAt:    started,
		Collected:    len(coll.Links),
		SourceErrors: []model.SourceError{},
	}
	for _, r := range coll.Results {
		sum.Found += len(r.Links)
		if !r.OK {
			reason := "unknown error"
			if r.Err != nil {
				reason = r.Err.Error()
			}
			sum.SourceErrors = append(sum.SourceErrors, model.SourceError{Source: r.Source, Domain: r.Domain, Reason: reason})
		}
	}
	log := pl.log.With().Str("run_id", sum.RunID).Str("profile", p.Name).Str("mode", mode).Logger()
	log.Info().Int("links", sum.Collected).Int("source_errors", len(sum.SourceErrors)).Msg("run started")

	// ── Normalize ──────────────────────────────────────────
	records := make([]model.JobRecord, 0, len(coll.Links))
	for _, link := range coll.Links {
		parsed := pl.parse(ctx, link)
		rec := pl.norm.Record(link, parsed)
		if rec.FetchStatus == model.FetchFailed {
			sum.Failed++
		}
		records = append(records, rec)
	}

	// ── Dedupe ─────────────────────────────────────────────
	deduped := dedupe.Dedupe(records)
	sum.Merged = len(records) - len(deduped)

	// ── Exclude keywords ───────────────────────────────────
	kept := make([]model.JobRecord, 0, len(deduped))
	for _, rec := range deduped {
		if scoring.ContainsExcluded(rec, p) {
			sum.Filtered++
			continue
		}
		kept = append(kept, rec)
	}

	// ── Score ──────────────────────────────────────────────
	scored := pl.opt.Scorer.ScoreAll(kept, p)

	// Sinks run even when the run context is already done so that whatever
	// was collected is persisted.
	sinkCtx := context.WithoutCancel(ctx)
	pl.persist(sinkCtx, &log, scored, &sum)
	pl.export(sinkCtx, &log, scored, &sum)

	sum.FinishedAt = pl.opt.Now().UTC()
	if rr, ok := pl.opt.Store.(RunRecorder); ok {
		if err := rr.RecordRun(sinkCtx, sum); err != nil {
			log.Error().Err(err).Msg("record run failed")
			sum.SinkErrors++
		}
	}

	log.Info().
		Int("found", sum.Found).
		Int("collected", sum.Collected).
		Int("failed", sum.Failed).
		Int("merged", sum.Merged).
		Int("filtered", sum.Filtered).
		Int("scored", len(scored)).
		Int("exported", sum.Exported).
		Int("sink_errors", sum.SinkErrors).
		Dur("took", sum.FinishedAt.Sub(sum.StartedAt)).
		Msg("run done")
	return scored, sum
}

// parse combines payload metadata with the posting page when page fetching
// is on. Payload values win; a failed fetch only sets the failure reason.
func (pl *Pipeline) parse(ctx context.Context, link model.JobLink) parser.Parsed {
	parsed := parser.FromMeta(link.Meta)
	if pl.opt.Pages == nil || ctx.Err() != nil {
		return parsed
	}
	body, err := pl.opt.Pages.Get(ctx, link.URL, "text/html,application/xhtml+xml")
	if err != nil {
		pl.log.Debug().Err(err).Str("url", link.URL).Msg("page fetch failed")
		parsed.FailureReason = fmt.Sprintf("fetch page: %v", err)
		return parsed
	}
	return parsed.Merge(parser.ParseHTML(body))
}

func (pl *Pipeline) persist(ctx context.Context, log *logger.Logger, records []model.JobRecord, sum *model.RunSummary) {
	if pl.opt.Store == nil {
		return
	}
	for _, rec := range records {
		if err := pl.opt.Store.Upsert(ctx, rec); err != nil {
			log.Error().Err(err).Str("job_id", rec.JobID).Msg("upsert failed — continuing")
			sum.SinkErrors++
		}
	}
}

func (pl *Pipeline) export(ctx context.Context, log *logger.Logger, records []model.JobRecord, sum *model.RunSummary) {
	if pl.opt.Exporter == nil {
		return
	}
	if err := pl.opt.Exporter.Sync(ctx, pl.opt.ExportDestination, records); err != nil {
		log.Error().Err(err).Str("destination", pl.opt.ExportDestination).Msg("export failed")
		sum.SinkErrors++
		return
	}
	sum.Exported = len(records)
}
