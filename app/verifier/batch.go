package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/moltdir/app/crawler"
	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/extract"
	"github.com/lysyi3m/moltdir/app/portal"
	"github.com/lysyi3m/moltdir/app/tasks"
)

// Target is a site to verify. URL defaults to https://<domain>.
type Target struct {
	Domain string
	URL    string
}

// Targets selects the portals that still need a human or model decision.
func Targets(ds *dataset.Dataset) []Target {
	var out []Target
	for _, p := range ds.Portals {
		switch p.TrustLevel() {
		case portal.TrustLow, portal.TrustUntrusted:
			out = append(out, Target{Domain: p.Domain(), URL: p.URL})
		}
	}
	return out
}

type Verifier struct {
	classifier Classifier
	fetcher    *crawler.Fetcher
	extractor  *extract.Extractor
	pool       tasks.TaskRunnerInterface
}

func New(classifier Classifier, fetcher *crawler.Fetcher, extractor *extract.Extractor, pool tasks.TaskRunnerInterface) *Verifier {
	return &Verifier{
		classifier: classifier,
		fetcher:    fetcher,
		extractor:  extractor,
		pool:       pool,
	}
}

// Run fetches and classifies every target. Reports come back in target order.
func (v *Verifier) Run(ctx context.Context, targets []Target) ([]Report, error) {
	start := time.Now()
	verifyTasks := make([]*VerifyTask, len(targets))
	batch := make([]tasks.TaskInterface, len(targets))
	for i, t := range targets {
		verifyTasks[i] = NewVerifyTask(t, v)
		batch[i] = verifyTasks[i]
	}

	stats, err := v.pool.Run(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to verify portals: %w", err)
	}

	reports := make([]Report, len(verifyTasks))
	counts := make(map[Label]int)
	for i, t := range verifyTasks {
		reports[i] = t.Report
		counts[t.Report.Verdict.Label]++
	}

	slog.Info("Verification batch completed",
		"targets", len(targets),
		"verdicts", counts,
		"failed", stats.Failed,
		"duration", time.Since(start))

	return reports, nil
}

type VerifyTask struct {
	tasks.Task
	URL      string
	Report   Report
	verifier *Verifier
}

func NewVerifyTask(t Target, v *Verifier) *VerifyTask {
	url := t.URL
	if url == "" {
		url = portal.CanonicalURL(t.Domain)
	}
	return &VerifyTask{
		Task:     tasks.NewTask(tasks.TaskTypeVerify, t.Domain),
		URL:      url,
		Report:   Report{Domain: t.Domain, Verdict: Verdict{Label: LabelUnverified}},
		verifier: v,
	}
}

func (t *VerifyTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c := &portal.Candidate{Domain: t.Target, URL: t.URL}
	if err := t.verifier.fetcher.Fetch(ctx, c); err != nil {
		t.Report.Err = err
		t.Report.Verdict.Rationale = c.FetchError
		return err
	}
	signal := t.verifier.extractor.Run(c.Body, c.ContentType, c.FinalURL)

	t.Report = Check(ctx, t.verifier.classifier, Request{Domain: c.Domain, URL: c.FinalURL, Signal: signal})
	return t.Report.Err
}

// Apply writes verdicts into the dataset. agent_usable raises trust to at
// least medium; every other verdict replaces the portal with an exclusion.
// Unverified reports and verified portals are left alone.
func Apply(ds *dataset.Dataset, reports []Report, now time.Time) dataset.Delta {
	var delta dataset.Delta
	stamp := now.UTC()

	for _, r := range reports {
		if !r.Verified() {
			continue
		}

		p, isPortal := ds.Portal(r.Domain)
		if isPortal && p.TrustLevel() == portal.TrustVerified {
			continue
		}

		if r.Verdict.Label == LabelAgentUsable {
			if !isPortal {
				continue
			}
			if !p.TrustLevel().AtLeast(portal.TrustMedium) {
				p.Trust = portal.TrustMedium
			}
			p.AuditedAt = &stamp
			p.Notes = ""
			delta.Changed = append(delta.Changed, r.Domain)
			continue
		}

		category, _ := r.Verdict.Label.ExclusionCategory()
		if isPortal {
			ds.RemovePortals(r.Domain)
			delta.Removed = append(delta.Removed, r.Domain)
		}
		reason := r.Verdict.Rationale
		if reason == "" {
			reason = "Verifier verdict: " + string(r.Verdict.Label)
		}
		if ds.AddExclusion(portal.Exclusion{Domain: r.Domain, Category: category, Reason: reason}) {
			delta.Excluded = append(delta.Excluded, r.Domain)
		}
	}

	return delta
}
