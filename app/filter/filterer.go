package filter

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/portal"
)

// ExclusionIndex answers whether a domain is already on the exclusion list.
type ExclusionIndex interface {
	Exclusion(domain string) (portal.Exclusion, bool)
}

type Decision struct {
	Rejected bool
	Category portal.ExclusionCategory
	Reason   string
	// Listed is set when the domain is already excluded and no new record is needed.
	Listed bool
}

// Exclusion converts a rejection into the record the synchronizer persists.
func (d Decision) Exclusion(domain string) portal.Exclusion {
	return portal.Exclusion{Domain: domain, Category: d.Category, Reason: d.Reason}
}

type Filterer struct {
	policy     *policy.Policy
	exclusions ExclusionIndex
}

func NewFilterer(p *policy.Policy, exclusions ExclusionIndex) *Filterer {
	return &Filterer{policy: p, exclusions: exclusions}
}

// Run applies the exclusion list, the disqualifying pattern groups, the parked
// heuristics and the audience policy, in that order. The first rule that fires wins.
func (f *Filterer) Run(c *portal.Candidate) Decision {
	if f.exclusions != nil {
		if ex, ok := f.exclusions.Exclusion(c.Domain); ok {
			return Decision{Rejected: true, Listed: true, Category: ex.Category, Reason: ex.Reason}
		}
	}

	if fp, ok := f.policy.KnownFalsePositive(c.Domain); ok {
		return Decision{Rejected: true, Category: portal.ExclusionCategory(fp.Category), Reason: fp.Reason}
	}

	// Content rules only read what the site says about itself, never its body.
	text := join(c.Domain, c.Signal.Title, c.Signal.Description)

	for _, group := range f.policy.Disqualifiers() {
		if matched := group.Match(text); len(matched) > 0 {
			return Decision{
				Rejected: true,
				Category: portal.ExclusionCategory(group.Category),
				Reason:   fmt.Sprintf("Excluded by %s filter: contains '%s'", group.Name, matched[0]),
			}
		}
	}

	if d := f.parked(c); d.Rejected {
		return d
	}

	if matched := f.policy.HumansAudience().Match(text); len(matched) > 0 {
		return Decision{
			Rejected: true,
			Category: portal.ExcludeForHumans,
			Reason:   fmt.Sprintf("Built for humans, not agents: contains '%s'", matched[0]),
		}
	}

	return Decision{}
}

func (f *Filterer) parked(c *portal.Candidate) Decision {
	page := join(c.Signal.Title, c.Signal.Description, c.Signal.Excerpt)
	if matched := f.policy.ParkedIndicators().Match(page); len(matched) >= 2 {
		return Decision{
			Rejected: true,
			Category: portal.ExcludeParked,
			Reason:   fmt.Sprintf("Parked domain: contains %s", quoteAll(matched)),
		}
	}

	// Thin pages only count as placeholders when they also lack a meta description;
	// script-rendered apps usually still ship one.
	if !c.Fetched() || c.Signal.ParseFailed || c.Signal.Description != "" {
		return Decision{}
	}
	th := f.policy.Thresholds
	if c.Signal.TextLength < th.MinTextChars || c.Signal.WordCount < th.MinWords {
		return Decision{
			Rejected: true,
			Category: portal.ExcludeParked,
			Reason:   fmt.Sprintf("Placeholder page: %d words, %d characters of text", c.Signal.WordCount, c.Signal.TextLength),
		}
	}
	return Decision{}
}

func join(values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = policy.Normalize(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}
