package dataset

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/portal"
)

const DefaultAuditWindow = 7 * 24 * time.Hour

// Removal is a portal the cleanup pass takes out, with the exclusion it leaves behind.
type Removal struct {
	Portal    portal.Portal
	Exclusion portal.Exclusion
}

type CleanupReport struct {
	Removals []Removal
	// Pending are untrusted portals still inside the audit window.
	Pending []portal.Portal
}

type Cleaner struct {
	policy *policy.Policy
	window time.Duration
	now    func() time.Time
}

func NewCleaner(p *policy.Policy, window time.Duration, now func() time.Time) *Cleaner {
	if window <= 0 {
		window = DefaultAuditWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Cleaner{policy: p, window: window, now: now}
}

func (c *Cleaner) Plan(ds *Dataset) CleanupReport {
	var report CleanupReport
	now := c.now()

	for _, p := range ds.Portals {
		domain := p.Domain()

		if fp, ok := c.policy.KnownFalsePositive(domain); ok {
			if p.TrustLevel() == portal.TrustVerified {
				slog.Warn("Verified portal is a known false positive", "domain", domain)
				continue
			}
			report.Removals = append(report.Removals, Removal{
				Portal: p,
				Exclusion: portal.Exclusion{
					Domain:   domain,
					Category: portal.ExclusionCategory(fp.Category),
					Reason:   fp.Reason,
				},
			})
			continue
		}

		if p.TrustLevel() != portal.TrustUntrusted {
			continue
		}

		if !c.expired(p, now) {
			report.Pending = append(report.Pending, p)
			continue
		}

		reason := p.Notes
		if reason == "" {
			reason = "Untrusted after audit"
		} else if _, r, ok := cutNote(reason); ok {
			reason = r
		}
		report.Removals = append(report.Removals, Removal{
			Portal: p,
			Exclusion: portal.Exclusion{
				Domain:   domain,
				Category: flaggedCategory(p.Notes),
				Reason:   reason,
			},
		})
	}

	return report
}

// expired reports whether the portal has been untrusted longer than the audit
// window. A portal with no timestamps is always eligible.
func (c *Cleaner) expired(p portal.Portal, now time.Time) bool {
	since := p.AuditedAt
	if since == nil {
		since = p.AddedAt
	}
	if since == nil {
		return true
	}
	return now.Sub(*since) > c.window
}

func (c *Cleaner) Apply(ds *Dataset, report CleanupReport) (Delta, error) {
	var delta Delta
	domains := make([]string, 0, len(report.Removals))

	for _, r := range report.Removals {
		if !r.Exclusion.Category.Valid() {
			return delta, fmt.Errorf("failed to exclude %s: unknown category %q", r.Exclusion.Domain, r.Exclusion.Category)
		}
		domains = append(domains, r.Exclusion.Domain)
	}

	ds.RemovePortals(domains...)
	for _, r := range report.Removals {
		if ds.AddExclusion(r.Exclusion) {
			delta.Excluded = append(delta.Excluded, r.Exclusion.Domain)
		}
		delta.Removed = append(delta.Removed, r.Exclusion.Domain)
		slog.Info("Portal removed", "domain", r.Exclusion.Domain, "category", r.Exclusion.Category, "reason", r.Exclusion.Reason)
	}

	return delta, nil
}

func cutNote(notes string) (portal.ExclusionCategory, string, bool) {
	category := flaggedCategory(notes)
	prefix := fmt.Sprintf("%s: ", category)
	if len(notes) > len(prefix) && notes[:len(prefix)] == prefix {
		return category, notes[len(prefix):], true
	}
	return category, notes, false
}
