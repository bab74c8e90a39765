package dataset

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/portal"
)

const siblingMargin = 30

// DuplicateGroup is a set of portals that describe one site.
type DuplicateGroup struct {
	Key    string
	Keep   portal.Portal
	Remove []portal.Portal
	// Scores holds the sibling score of every member, keyed by domain.
	Scores map[string]int
}

type DedupReport struct {
	// Exact groups share a canonical domain; Keep is the merged record.
	Exact []DuplicateGroup
	// Siblings share a registrable label under different public suffixes.
	// Remove is empty when every sibling is strong enough to stay.
	Siblings []DuplicateGroup
}

func (r DedupReport) Empty() bool {
	return len(r.Exact) == 0 && len(r.Siblings) == 0
}

// Removals counts the records an apply would drop.
func (r DedupReport) Removals() int {
	n := 0
	for _, g := range r.Exact {
		n += len(g.Remove)
	}
	for _, g := range r.Siblings {
		n += len(g.Remove)
	}
	return n
}

type Deduper struct {
	policy *policy.Policy
}

func NewDeduper(p *policy.Policy) *Deduper {
	return &Deduper{policy: p}
}

func (d *Deduper) Plan(ds *Dataset) DedupReport {
	var report DedupReport

	byDomain := make(map[string][]portal.Portal)
	var order []string
	for _, p := range ds.Portals {
		domain := p.Domain()
		if _, ok := byDomain[domain]; !ok {
			order = append(order, domain)
		}
		byDomain[domain] = append(byDomain[domain], p)
	}

	for _, domain := range order {
		members := byDomain[domain]
		if len(members) < 2 {
			continue
		}
		best := bestRecord(members)
		keep := mergeRecords(members, best)
		var remove []portal.Portal
		for i, p := range members {
			if i != best {
				remove = append(remove, p)
			}
		}
		report.Exact = append(report.Exact, DuplicateGroup{Key: domain, Keep: keep, Remove: remove})
	}

	byLabel := make(map[string][]portal.Portal)
	var labels []string
	for _, domain := range order {
		label, suffix := portal.SplitSuffix(domain)
		if suffix == "" {
			continue
		}
		if _, ok := byLabel[label]; !ok {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], byDomain[domain][bestRecord(byDomain[domain])])
	}
	sort.Strings(labels)

	for _, label := range labels {
		if group, ok := d.siblingGroup(label, byLabel[label]); ok {
			report.Siblings = append(report.Siblings, group)
		}
	}

	return report
}

func (d *Deduper) siblingGroup(label string, members []portal.Portal) (DuplicateGroup, bool) {
	if len(members) < 2 {
		return DuplicateGroup{}, false
	}

	scores := make(map[string]int, len(members))
	best := 0
	for i, p := range members {
		scores[p.Domain()] = d.siblingScore(p)
		if scores[p.Domain()] > scores[members[best].Domain()] {
			best = i
		}
	}

	keep := members[best]
	group := DuplicateGroup{Key: label, Keep: keep, Scores: scores}
	related := false
	for i, p := range members {
		if i == best {
			continue
		}
		if d.policy.KnownDifferent(keep.Domain(), p.Domain()) {
			continue
		}
		related = true
		weak := p.TrustLevel() == portal.TrustLow || p.TrustLevel() == portal.TrustUntrusted
		if weak || scores[p.Domain()] < scores[keep.Domain()]-siblingMargin {
			group.Remove = append(group.Remove, p)
		}
	}

	return group, related
}

var siblingTrustBonus = map[portal.Trust]int{
	portal.TrustVerified:  100,
	portal.TrustHigh:      50,
	portal.TrustMedium:    25,
	portal.TrustLow:       0,
	portal.TrustUntrusted: -50,
}

func (d *Deduper) siblingScore(p portal.Portal) int {
	_, suffix := portal.SplitSuffix(p.Domain())
	score := d.policy.TLDPriority(suffix) + p.Relevance + siblingTrustBonus[p.TrustLevel()]

	desc := strings.ToLower(p.Description)
	if desc != "" && !strings.HasPrefix(desc, "discovered at") &&
		!d.policy.ParkedIndicators().Contains(policy.Normalize(desc)) {
		score += 20
	}
	if p.Featured {
		score += 30
	}
	return score
}

// Apply removes the planned duplicates. Exact groups collapse into their merged
// record at the position of the first member; weaker siblings become redirect
// exclusions pointing at the kept domain.
func (d *Deduper) Apply(ds *Dataset, report DedupReport) Delta {
	var delta Delta

	merged := make(map[string]portal.Portal, len(report.Exact))
	for _, g := range report.Exact {
		merged[g.Key] = g.Keep
	}

	if len(merged) > 0 {
		emitted := make(map[string]bool, len(merged))
		kept := ds.Portals[:0:0]
		for _, p := range ds.Portals {
			domain := p.Domain()
			keep, ok := merged[domain]
			if !ok {
				kept = append(kept, p)
				continue
			}
			if emitted[domain] {
				continue
			}
			emitted[domain] = true
			kept = append(kept, keep)
			delta.Changed = append(delta.Changed, domain)
		}
		ds.Portals = kept
		ds.reindex()
	}

	for _, g := range report.Siblings {
		for _, p := range g.Remove {
			domain := p.Domain()
			if p.TrustLevel() == portal.TrustVerified {
				slog.Warn("Verified sibling kept", "domain", domain, "kept", g.Keep.Domain())
				continue
			}
			ds.RemovePortals(domain)
			ds.AddExclusion(portal.Exclusion{
				Domain:   domain,
				Category: portal.ExcludeRedirect,
				Reason:   fmt.Sprintf("Duplicate of %s", g.Keep.Domain()),
			})
			delta.Removed = append(delta.Removed, domain)
			delta.Excluded = append(delta.Excluded, domain)
		}
	}

	slog.Info("Dedup applied",
		"merged", len(report.Exact),
		"removed", len(delta.Removed))

	return delta
}

// bestRecord picks the record whose curated fields survive a merge: highest
// trust, then featured, then relevance, then first position.
func bestRecord(members []portal.Portal) int {
	best := 0
	for i := 1; i < len(members); i++ {
		a, b := members[i], members[best]
		switch {
		case a.TrustLevel().Rank() != b.TrustLevel().Rank():
			if a.TrustLevel().Rank() > b.TrustLevel().Rank() {
				best = i
			}
		case a.Featured != b.Featured:
			if a.Featured {
				best = i
			}
		case a.Relevance > b.Relevance:
			best = i
		}
	}
	return best
}

func mergeRecords(members []portal.Portal, best int) portal.Portal {
	keep := members[best]
	domain := keep.Domain()
	if keep.ID == "" {
		keep.ID = portal.PortalID(domain)
	}
	keep.URL = portal.CanonicalURL(domain)

	for _, p := range members {
		if p.AddedAt != nil && (keep.AddedAt == nil || p.AddedAt.Before(*keep.AddedAt)) {
			keep.AddedAt = p.AddedAt
		}
		if keep.Notes == "" && p.Notes != "" {
			keep.Notes = p.Notes
		}
	}
	return keep
}
