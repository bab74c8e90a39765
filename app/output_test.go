package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/pipeline"
)

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "", formatCounts(nil))
	assert.Equal(t, "(dns=3 link=2 seed=1)", formatCounts(map[string]int{"seed": 1, "link": 2, "dns": 3}))
}

func TestPrintRunReport(t *testing.T) {
	report := &pipeline.Report{
		Mode:       pipeline.ModeRun,
		RunID:      "abc",
		Candidates: 3,
		BySource:   map[string]int{"seed": 1, "link": 2},
		Merge: dataset.MergeReport{
			Outcomes: map[dataset.Outcome]int{dataset.OutcomeAccepted: 1, dataset.OutcomeExcluded: 1, dataset.OutcomeUnchanged: 1},
			Delta: dataset.Delta{
				Added:    []string{"moltx.io"},
				Excluded: []string{"stonecrab-market.com"},
			},
		},
		Saved:    dataset.SaveResult{Portals: true, Exclusions: true},
		Duration: 1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	printRunReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "Mode: run (run abc) in 1.5s")
	assert.Contains(t, out, "Candidates: 3 (link=2 seed=1)")
	assert.Contains(t, out, "Outcomes: accepted=1 excluded=1 errored=0 unchanged=1")
	assert.Contains(t, out, "Added (1): moltx.io")
	assert.Contains(t, out, "Excluded (1): stonecrab-market.com")
	assert.NotContains(t, out, "Removed")
	assert.Contains(t, out, "Written: portals=true exclusions=true")

	buf.Reset()
	report.DryRun = true
	printRunReport(&buf, report)
	assert.Contains(t, buf.String(), "Dry run: nothing written.")
}

func TestSingleTarget(t *testing.T) {
	target, err := singleTarget("https://www.MoltX.io/feed")
	require.NoError(t, err)
	assert.Equal(t, "moltx.io", target.Domain)
	assert.Equal(t, "https://www.MoltX.io/feed", target.URL)

	target, err = singleTarget("clawhub.ai")
	require.NoError(t, err)
	assert.Equal(t, "clawhub.ai", target.Domain)
	assert.Empty(t, target.URL)

	_, err = singleTarget("localhost")
	assert.Error(t, err)
}
