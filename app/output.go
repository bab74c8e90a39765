package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lysyi3m/moltdir/app/database"
	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/pipeline"
	"github.com/lysyi3m/moltdir/app/portal"
	"github.com/lysyi3m/moltdir/app/verifier"
)

func printRunReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "Mode: %s", r.Mode)
	if r.RunID != "" {
		fmt.Fprintf(w, " (run %s)", r.RunID)
	}
	fmt.Fprintf(w, " in %s\n", r.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "Candidates: %d %s\n", r.Candidates, formatCounts(r.BySource))
	fmt.Fprintf(w, "Outcomes: accepted=%d excluded=%d errored=%d unchanged=%d\n",
		r.Merge.Outcomes[dataset.OutcomeAccepted],
		r.Merge.Outcomes[dataset.OutcomeExcluded],
		r.Merge.Outcomes[dataset.OutcomeErrored],
		r.Merge.Outcomes[dataset.OutcomeUnchanged])

	printDelta(w, r.Merge.Delta)

	switch {
	case r.DryRun:
		fmt.Fprintln(w, "Dry run: nothing written.")
	case !r.Saved.Any():
		fmt.Fprintln(w, "No changes.")
	default:
		fmt.Fprintf(w, "Written: portals=%t exclusions=%t\n", r.Saved.Portals, r.Saved.Exclusions)
	}
}

func printDelta(w io.Writer, d dataset.Delta) {
	for _, line := range []struct {
		label   string
		domains []string
	}{
		{"Added", d.Added},
		{"Removed", d.Removed},
		{"Changed", d.Changed},
		{"Excluded", d.Excluded},
		{"Conflicts", d.Conflicts},
	} {
		if len(line.domains) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s (%d): %s\n", line.label, len(line.domains), strings.Join(line.domains, ", "))
	}
}

func printDedupPlan(w io.Writer, plan dataset.DedupReport) {
	if plan.Empty() {
		fmt.Fprintln(w, "No duplicates found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range plan.Exact {
		fmt.Fprintf(tw, "exact\t%s\tkeep %s\tmerge %d records\n", g.Key, g.Keep.Name, len(g.Remove)+1)
	}
	for _, g := range plan.Siblings {
		keep := g.Keep.Domain()
		fmt.Fprintf(tw, "siblings\t%s\tkeep %s (%d)\t", g.Key, keep, g.Scores[keep])
		if len(g.Remove) == 0 {
			fmt.Fprintln(tw, "all kept")
			continue
		}
		removed := make([]string, 0, len(g.Remove))
		for _, p := range g.Remove {
			removed = append(removed, fmt.Sprintf("%s (%d)", p.Domain(), g.Scores[p.Domain()]))
		}
		fmt.Fprintf(tw, "remove %s\n", strings.Join(removed, ", "))
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d exact groups, %d sibling groups, %d records to remove\n",
		len(plan.Exact), len(plan.Siblings), plan.Removals())
}

func printCleanupPlan(w io.Writer, plan dataset.CleanupReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range plan.Removals {
		fmt.Fprintf(tw, "remove\t%s\t%s\t%s\n", r.Exclusion.Domain, r.Exclusion.Category, r.Exclusion.Reason)
	}
	for _, p := range plan.Pending {
		fmt.Fprintf(tw, "pending\t%s\t%s\t%s\n", p.Domain(), p.TrustLevel(), p.Notes)
	}
	tw.Flush()

	fmt.Fprintf(w, "%d to remove, %d pending audit\n", len(plan.Removals), len(plan.Pending))
}

func printAudit(w io.Writer, entries []dataset.AuditEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Nothing to audit.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tTRUST\tRELEVANCE\tACTION\tNAME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", e.Portal.Domain(), e.Portal.TrustLevel(), e.Portal.Relevance, e.Action, e.Portal.Name)
	}
	tw.Flush()

	fmt.Fprintf(w, "%d portals need review\n", len(entries))
}

func printVerifyReports(w io.Writer, reports []verifier.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range reports {
		note := r.Verdict.Rationale
		if r.Err != nil {
			note = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Domain, r.Verdict.Label, note)
	}
	tw.Flush()
}

func printStats(w io.Writer, s dataset.Stats) {
	fmt.Fprintf(w, "Updated: %s\n", s.Updated)
	fmt.Fprintf(w, "Portals: %d (public %d, featured %d)\n", s.Portals, s.Public, s.Featured)

	trust := make(map[string]int, len(s.ByTrust))
	for k, v := range s.ByTrust {
		trust[string(k)] = v
	}
	fmt.Fprintf(w, "By trust: %s\n", formatCounts(trust))

	categories := make(map[string]int, len(s.ByCategory))
	for k, v := range s.ByCategory {
		categories[string(k)] = v
	}
	fmt.Fprintf(w, "By category: %s\n", formatCounts(categories))

	excluded := make(map[string]int, len(s.Excluded))
	for _, c := range portal.ExclusionCategories {
		if n := s.Excluded[c]; n > 0 {
			excluded[string(c)] = n
		}
	}
	fmt.Fprintf(w, "Exclusions: %d %s\n", s.Exclusions, formatCounts(excluded))
	fmt.Fprintf(w, "Lead sources: %d\n", s.Leads)
}

func printRuns(w io.Writer, runs []database.Run) {
	if len(runs) == 0 {
		return
	}

	fmt.Fprintln(w, "\nRecent runs:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range runs {
		status := "running"
		if r.Error != "" {
			status = "failed"
		} else if r.FinishedAt != nil {
			status = "ok"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\tcandidates=%d\tadded=%d\tremoved=%d\tchanged=%d\n",
			r.StartedAt.Local().Format(time.DateTime), r.Mode, status, r.Candidates, r.Added, r.Removed, r.Changed)
	}
	tw.Flush()
}

// formatCounts renders a count map as "(a=1 b=2)" with sorted keys.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return "(" + strings.Join(parts, " ") + ")"
}
