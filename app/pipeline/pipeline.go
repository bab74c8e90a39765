package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/moltdir/app/crawler"
	"github.com/lysyi3m/moltdir/app/database"
	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/extract"
	"github.com/lysyi3m/moltdir/app/filter"
	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/portal"
	"github.com/lysyi3m/moltdir/app/scoring"
	"github.com/lysyi3m/moltdir/app/tasks"
)

const (
	ModeRun  = "run"
	ModeSync = "sync"
)

type Options struct {
	Sources crawler.Sources
	// LockWait is how long to wait for another writer; 0 fails immediately.
	LockWait time.Duration
	// RecheckWindow skips DNS lookups for names seen more recently than this.
	RecheckWindow time.Duration
	DryRun        bool
}

// Deps wires the pipeline. Sites, Runs and Metrics are optional.
type Deps struct {
	Policy     *policy.Policy
	Store      *dataset.Store
	Discoverer *crawler.Discoverer
	Fetcher    *crawler.Fetcher
	Extractor  *extract.Extractor
	Pool       tasks.TaskRunnerInterface
	Sites      database.SiteRepositoryInterface
	Runs       database.RunRepositoryInterface
	Metrics    *Metrics
	Now        func() time.Time
}

type Report struct {
	Mode       string
	RunID      string
	Candidates int
	BySource   map[string]int
	Merge      dataset.MergeReport
	Saved      dataset.SaveResult
	DryRun     bool
	Duration   time.Duration
}

type Pipeline struct {
	deps   Deps
	opts   Options
	scorer *scoring.Scorer
	merger *dataset.Merger
}

func New(deps Deps, opts Options) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewExtractor()
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		scorer: scoring.NewScorer(deps.Policy),
		merger: dataset.NewMerger(deps.Policy, deps.Now),
	}
}

// Run performs full discovery: collect candidates, fetch, extract, score,
// filter and merge. A cancelled run writes nothing.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	return p.execute(ctx, ModeRun, p.discover)
}

// Sync re-scores the existing portals without fetching. The title is the one
// last fetched for the domain, so run and sync agree; portals never fetched
// fall back to their curated name.
func (p *Pipeline) Sync(ctx context.Context) (*Report, error) {
	return p.execute(ctx, ModeSync, func(ctx context.Context, ds *dataset.Dataset) ([]*portal.Candidate, error) {
		candidates := make([]*portal.Candidate, 0, len(ds.Portals))
		for _, domain := range ds.Domains() {
			existing, _ := ds.Portal(domain)
			candidates = append(candidates, &portal.Candidate{
				Domain:      domain,
				Source:      crawler.SourceDataset,
				URL:         existing.URL,
				FetchStatus: portal.FetchSkipped,
				Signal: portal.Signal{
					Title:       p.lastTitle(ctx, domain, existing.Name),
					Description: existing.Description,
				},
			})
		}
		return candidates, nil
	})
}

func (p *Pipeline) lastTitle(ctx context.Context, domain, fallback string) string {
	if p.deps.Sites == nil {
		return fallback
	}
	site, err := p.deps.Sites.GetSite(ctx, domain)
	if err != nil {
		slog.Warn("Failed to read crawl history", "domain", domain, "error", err)
		return fallback
	}
	if site == nil || site.Title == "" {
		return fallback
	}
	return site.Title
}

type collectFunc func(ctx context.Context, ds *dataset.Dataset) ([]*portal.Candidate, error)

func (p *Pipeline) execute(ctx context.Context, mode string, collect collectFunc) (report *Report, err error) {
	start := p.deps.Now()
	report = &Report{Mode: mode, DryRun: p.opts.DryRun, BySource: map[string]int{}}

	unlock, err := p.deps.Store.Lock(ctx, p.opts.LockWait)
	if err != nil {
		return report, err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			slog.Warn("Failed to release dataset lock", "error", uerr)
		}
	}()

	if p.deps.Runs != nil {
		runID, rerr := p.deps.Runs.StartRun(context.WithoutCancel(ctx), mode, start)
		if rerr != nil {
			slog.Warn("Failed to record run start", "error", rerr)
		}
		report.RunID = runID
	}
	defer func() {
		report.Duration = p.deps.Now().Sub(start)
		p.finish(report, err)
	}()

	ds, err := p.deps.Store.Load()
	if err != nil {
		return report, err
	}

	candidates, err := collect(ctx, ds)
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)
	for _, c := range candidates {
		report.BySource[crawler.SourceKind(c.Source)]++
	}

	evaluations := p.evaluate(ds, candidates)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run cancelled before merge: %w", err)
	}

	report.Merge = p.merger.Run(ds, evaluations)

	if !p.opts.DryRun {
		if report.Saved, err = p.deps.Store.Save(ds, p.deps.Now()); err != nil {
			return report, err
		}
	}

	p.recordSites(candidates, evaluations, report.Merge.Results)
	p.deps.Metrics.ObserveDataset(ds)

	slog.Info("Run completed",
		"mode", mode,
		"candidates", report.Candidates,
		"accepted", report.Merge.Outcomes[dataset.OutcomeAccepted],
		"excluded", report.Merge.Outcomes[dataset.OutcomeExcluded],
		"errored", report.Merge.Outcomes[dataset.OutcomeErrored],
		"unchanged", report.Merge.Outcomes[dataset.OutcomeUnchanged],
		"added", len(report.Merge.Delta.Added),
		"changed", len(report.Merge.Delta.Changed),
		"dry_run", p.opts.DryRun,
		"duration", p.deps.Now().Sub(start))

	return report, nil
}

func (p *Pipeline) discover(ctx context.Context, ds *dataset.Dataset) ([]*portal.Candidate, error) {
	opts := crawler.DiscoverOptions{
		Leads:    ds.Leads(),
		Existing: ds.Domains(),
		Excluded: ds.Excluded,
		Sources:  p.opts.Sources,
	}
	if p.deps.Sites != nil && p.opts.RecheckWindow > 0 {
		seen, err := p.deps.Sites.SeenSince(ctx, p.deps.Now().Add(-p.opts.RecheckWindow))
		if err != nil {
			slog.Warn("Failed to read crawl history, enumerating every name", "error", err)
		} else {
			opts.Known = func(domain string) bool { return seen[domain] }
		}
	}

	set, err := p.deps.Discoverer.Discover(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to discover candidates: %w", err)
	}
	candidates := set.List()

	fetches := make([]tasks.TaskInterface, len(candidates))
	for i, c := range candidates {
		if c.URL == "" {
			c.URL = portal.CanonicalURL(c.Domain)
		}
		fetches[i] = crawler.NewFetchTask(c, p.deps.Fetcher, p.deps.Extractor)
	}

	stats, err := p.deps.Pool.Run(ctx, fetches)
	if err != nil {
		return nil, fmt.Errorf("fetch interrupted after %d of %d candidates: %w", stats.Completed+stats.Failed, len(fetches), err)
	}

	return candidates, nil
}

func (p *Pipeline) evaluate(ds *dataset.Dataset, candidates []*portal.Candidate) []dataset.Evaluation {
	filterer := filter.NewFilterer(p.deps.Policy, ds)
	evaluations := make([]dataset.Evaluation, 0, len(candidates))
	for _, c := range candidates {
		score := p.scorer.Run(c.Domain, c.Signal)
		if score.Ambiguous {
			slog.Debug("Candidate needs review", "domain", c.Domain, "error", portal.ErrClassificationAmbiguous)
		}
		evaluations = append(evaluations, dataset.Evaluation{
			Candidate: c,
			Score:     score,
			Decision:  filterer.Run(c),
		})
	}
	return evaluations
}

func (p *Pipeline) recordSites(candidates []*portal.Candidate, evaluations []dataset.Evaluation, results map[string]dataset.Outcome) {
	if p.deps.Sites == nil || p.opts.DryRun {
		return
	}

	now := p.deps.Now()
	sites := make([]database.Site, 0, len(candidates))
	for i, c := range candidates {
		if c.FetchStatus == portal.FetchSkipped {
			continue
		}
		sites = append(sites, database.Site{
			Domain:      c.Domain,
			Source:      c.Source,
			LastSeen:    now,
			FetchStatus: string(c.FetchStatus),
			StatusCode:  c.StatusCode,
			Title:       c.Signal.Title,
			Relevance:   evaluations[i].Score.Relevance,
			Outcome:     string(results[c.Domain]),
		})
	}

	if err := p.deps.Sites.RecordSites(context.Background(), sites); err != nil {
		slog.Warn("Failed to record crawl history", "error", err)
	}
}

func (p *Pipeline) finish(report *Report, runErr error) {
	p.deps.Metrics.ObserveReport(report, runErr)

	if p.deps.Runs == nil || report.RunID == "" {
		return
	}

	finished := p.deps.Now()
	d := report.Merge.Delta
	run := database.Run{
		ID:         report.RunID,
		Mode:       report.Mode,
		FinishedAt: &finished,
		Candidates: report.Candidates,
		Accepted:   report.Merge.Outcomes[dataset.OutcomeAccepted],
		Excluded:   report.Merge.Outcomes[dataset.OutcomeExcluded],
		Errored:    report.Merge.Outcomes[dataset.OutcomeErrored],
		Unchanged:  report.Merge.Outcomes[dataset.OutcomeUnchanged],
		Added:      len(d.Added),
		Removed:    len(d.Removed),
		Changed:    len(d.Changed),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if err := p.deps.Runs.FinishRun(context.Background(), run); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Failed to record run", "run_id", report.RunID, "error", err)
	}
}
