package dataset

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/moltdir/app/filter"
	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/portal"
	"github.com/lysyi3m/moltdir/app/scoring"
)

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeExcluded  Outcome = "excluded"
	OutcomeErrored   Outcome = "errored"
	OutcomeUnchanged Outcome = "unchanged"
)

var Outcomes = []Outcome{OutcomeAccepted, OutcomeExcluded, OutcomeErrored, OutcomeUnchanged}

// Evaluation is everything the pipeline learned about one candidate.
type Evaluation struct {
	Candidate *portal.Candidate
	Score     scoring.Result
	Decision  filter.Decision
}

// Delta lists the domains the merge touched.
type Delta struct {
	Added    []string
	Removed  []string
	Changed  []string
	Excluded []string
	// Conflicts are verified portals the filter rejected; they are reported, never changed.
	Conflicts []string
}

func (d *Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0 && len(d.Excluded) == 0
}

type MergeReport struct {
	Outcomes map[Outcome]int
	// Results holds the outcome of every merged domain.
	Results map[string]Outcome
	Delta   Delta
}

const maxNameRunes = 60

// Merger folds evaluations into the dataset.
type Merger struct {
	policy *policy.Policy
	now    func() time.Time
}

func NewMerger(p *policy.Policy, now func() time.Time) *Merger {
	if now == nil {
		now = time.Now
	}
	return &Merger{policy: p, now: now}
}

// Run merges evaluations in domain order so new portals are appended sorted.
func (m *Merger) Run(ds *Dataset, evaluations []Evaluation) MergeReport {
	sorted := append([]Evaluation(nil), evaluations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Candidate.Domain < sorted[j].Candidate.Domain
	})

	report := MergeReport{
		Outcomes: make(map[Outcome]int, len(Outcomes)),
		Results:  make(map[string]Outcome, len(sorted)),
	}
	for _, ev := range sorted {
		outcome := m.Apply(ds, ev, &report.Delta)
		report.Outcomes[outcome]++
		report.Results[ev.Candidate.Domain] = outcome
	}
	return report
}

// Apply merges one evaluation. A failed fetch never touches an existing
// portal; a new domain still goes through the accept path on its name alone
// and the outcome is counted as errored.
func (m *Merger) Apply(ds *Dataset, ev Evaluation, delta *Delta) Outcome {
	existing, isExisting := ds.Portal(ev.Candidate.Domain)
	failed := ev.Candidate.FetchStatus == portal.FetchError || ev.Candidate.FetchStatus == portal.FetchTimeout

	if failed {
		if isExisting {
			return OutcomeErrored
		}
		m.apply(ds, ev, nil, delta)
		return OutcomeErrored
	}
	return m.apply(ds, ev, existing, delta)
}

func (m *Merger) apply(ds *Dataset, ev Evaluation, existing *portal.Portal, delta *Delta) Outcome {
	c := ev.Candidate
	isExisting := existing != nil

	if ev.Decision.Rejected {
		if !isExisting {
			if ev.Decision.Listed {
				return OutcomeExcluded
			}
			if ds.AddExclusion(ev.Decision.Exclusion(c.Domain)) {
				delta.Excluded = append(delta.Excluded, c.Domain)
			}
			return OutcomeExcluded
		}
		return m.flag(existing, ev.Decision, delta)
	}

	if isExisting {
		return m.refresh(existing, ev.Score, delta)
	}

	if ev.Score.Relevance < m.policy.Thresholds.Accept && !ev.Score.CoreDomain {
		return OutcomeUnchanged
	}

	p := m.newPortal(c, ev.Score, ds.NewID(c.Domain))
	ds.AddPortal(p)
	delta.Added = append(delta.Added, c.Domain)
	if ev.Score.Ambiguous {
		slog.Info("Portal added from domain name only", "domain", c.Domain, "trust", p.Trust, "fetch_status", c.FetchStatus)
	} else {
		slog.Info("Portal added", "domain", c.Domain, "trust", p.Trust, "relevance", p.Relevance, "source", c.Source)
	}
	return OutcomeAccepted
}

// flag marks a rejected existing portal untrusted for the cleanup pass.
func (m *Merger) flag(p *portal.Portal, d filter.Decision, delta *Delta) Outcome {
	domain := p.Domain()
	if p.TrustLevel() == portal.TrustVerified {
		slog.Warn("Verified portal matched a filter rule", "domain", domain, "category", d.Category, "reason", d.Reason)
		delta.Conflicts = append(delta.Conflicts, domain)
		return OutcomeUnchanged
	}
	if p.TrustLevel() == portal.TrustUntrusted {
		return OutcomeExcluded
	}

	now := m.now().UTC()
	p.Trust = portal.TrustUntrusted
	p.AuditedAt = &now
	if p.Notes == "" {
		p.Notes = flagNote(d.Category, d.Reason)
	}
	delta.Changed = append(delta.Changed, domain)
	slog.Info("Portal flagged", "domain", domain, "category", d.Category, "reason", d.Reason)
	return OutcomeExcluded
}

// refresh updates scores and leaves curated fields alone. Verified and
// untrusted are curation states and survive a refresh.
func (m *Merger) refresh(p *portal.Portal, score scoring.Result, delta *Delta) Outcome {
	updated := *p
	updated.Relevance = score.Relevance
	switch p.TrustLevel() {
	case portal.TrustVerified, portal.TrustUntrusted:
	default:
		updated.Trust = score.Trust
	}

	if updated.Relevance == p.Relevance && updated.Trust == p.Trust {
		return OutcomeUnchanged
	}

	*p = updated
	delta.Changed = append(delta.Changed, p.Domain())
	return OutcomeAccepted
}

func (m *Merger) newPortal(c *portal.Candidate, score scoring.Result, id string) portal.Portal {
	s := c.Signal
	text := policy.Normalize(strings.Join([]string{c.Domain, s.Title, s.Description}, " "))
	category, tag, icon := m.policy.Classify(text)

	description := s.Description
	if description == "" {
		description = s.Title
	}
	if description == "" {
		description = "Discovered at " + c.Domain
	}

	now := m.now().UTC()
	return portal.Portal{
		ID:          id,
		Name:        portalName(s.Title, c.Domain),
		URL:         portal.CanonicalURL(c.Domain),
		Icon:        icon,
		Category:    category,
		Tag:         tag,
		Description: description,
		Trust:       score.Trust,
		Relevance:   score.Relevance,
		Featured:    score.Trust == portal.TrustHigh && score.Relevance >= m.policy.Thresholds.Featured,
		AddedAt:     &now,
	}
}

var titleSeparators = []string{" | ", " - ", " — ", " – ", ": "}

// portalName keeps the site name part of a page title.
func portalName(title, domain string) string {
	name := strings.TrimSpace(title)
	for _, sep := range titleSeparators {
		if i := strings.Index(name, sep); i > 0 {
			name = strings.TrimSpace(name[:i])
		}
	}
	if name == "" {
		return domain
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxNameRunes]))
	}
	return name
}

func flagNote(category portal.ExclusionCategory, reason string) string {
	return fmt.Sprintf("%s: %s", category, reason)
}

// flaggedCategory recovers the exclusion category written by flagNote.
func flaggedCategory(notes string) portal.ExclusionCategory {
	prefix, _, ok := strings.Cut(notes, ": ")
	if ok && portal.ExclusionCategory(prefix).Valid() {
		return portal.ExclusionCategory(prefix)
	}
	return portal.ExcludeUnrelated
}
