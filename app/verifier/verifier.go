package verifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/moltdir/app/portal"
)

type Label string

const (
	LabelAgentUsable Label = "agent_usable"
	LabelForHumans   Label = "for_humans"
	LabelRedirect    Label = "redirect"
	LabelParked      Label = "parked"
	LabelUnrelated   Label = "unrelated"
	// LabelUnverified marks a domain the classifier could not judge.
	LabelUnverified Label = "unverified"
)

var verdictLabels = []Label{LabelAgentUsable, LabelForHumans, LabelRedirect, LabelParked, LabelUnrelated}

func (l Label) Valid() bool {
	for _, v := range verdictLabels {
		if v == l {
			return true
		}
	}
	return false
}

// ExclusionCategory maps a negative verdict onto the exclusion list.
func (l Label) ExclusionCategory() (portal.ExclusionCategory, bool) {
	switch l {
	case LabelForHumans:
		return portal.ExcludeForHumans, true
	case LabelRedirect:
		return portal.ExcludeRedirect, true
	case LabelParked:
		return portal.ExcludeParked, true
	case LabelUnrelated:
		return portal.ExcludeUnrelated, true
	}
	return "", false
}

type Verdict struct {
	Label     Label  `json:"verdict"`
	Rationale string `json:"rationale"`
}

// Request is what a classifier sees of a site.
type Request struct {
	Domain string
	URL    string
	Signal portal.Signal
}

// Classifier is an external judge of whether a site is usable by agents.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, req Request) (Verdict, error)
}

// Report is the outcome for one domain. Err is set when the verdict is unverified.
type Report struct {
	Domain   string
	Verdict  Verdict
	Err      error
	Duration time.Duration
}

func (r Report) Verified() bool {
	return r.Err == nil && r.Verdict.Label.Valid()
}

// Check classifies one request. A classifier failure never propagates: the
// report carries LabelUnverified and the wrapped error.
func Check(ctx context.Context, classifier Classifier, req Request) Report {
	start := time.Now()
	report := Report{Domain: req.Domain}

	verdict, err := classifier.Classify(ctx, req)
	report.Duration = time.Since(start)
	if err != nil {
		report.Err = err
		report.Verdict = Verdict{Label: LabelUnverified, Rationale: err.Error()}
		slog.Warn("Verification failed",
			"domain", req.Domain,
			"classifier", classifier.Name(),
			"duration", report.Duration,
			"error", err)
		return report
	}

	report.Verdict = verdict
	slog.Info("Verification completed",
		"domain", req.Domain,
		"classifier", classifier.Name(),
		"verdict", verdict.Label,
		"duration", report.Duration)
	return report
}
