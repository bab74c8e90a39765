package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewConnection(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewConnection_InvalidPath(t *testing.T) {
	_, err := NewConnection(filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	assert.Error(t, err)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestSiteRepository_RecordSites(t *testing.T) {
	ctx := context.Background()
	repo := NewSiteRepository(newTestDB(t))

	first := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	require.NoError(t, repo.RecordSites(ctx, []Site{
		{Domain: "moltbook.com", Source: "seed", LastSeen: first, FetchStatus: "success", StatusCode: 200, Title: "Moltbook", Relevance: 90, Outcome: "accepted"},
		{Domain: "moltbooks.com", Source: "dns", LastSeen: first, FetchStatus: "timeout"},
	}))
	require.NoError(t, repo.RecordSites(ctx, []Site{
		{Domain: "moltbook.com", Source: "dataset", LastSeen: second, FetchStatus: "success", StatusCode: 200, Title: "Moltbook", Relevance: 100, Outcome: "unchanged"},
	}))

	site, err := repo.GetSite(ctx, "moltbook.com")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, first, site.FirstSeen)
	assert.Equal(t, second, site.LastSeen)
	assert.Equal(t, "dataset", site.Source)
	assert.Equal(t, 100, site.Relevance)

	missing, err := repo.GetSite(ctx, "clawhub.ai")
	require.NoError(t, err)
	assert.Nil(t, missing)

	count, err := repo.CountSites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	recent, err := repo.SeenSince(ctx, first.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"moltbook.com": true}, recent)
}

func TestSiteRepository_RecordSites_KeepsLastTitle(t *testing.T) {
	ctx := context.Background()
	repo := NewSiteRepository(newTestDB(t))

	seen := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordSites(ctx, []Site{
		{Domain: "moltx.io", Source: "link", LastSeen: seen, FetchStatus: "success", StatusCode: 200, Title: "MoltX - agent feed"},
	}))
	require.NoError(t, repo.RecordSites(ctx, []Site{
		{Domain: "moltx.io", Source: "link", LastSeen: seen.Add(time.Hour), FetchStatus: "timeout"},
	}))

	site, err := repo.GetSite(ctx, "moltx.io")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, "timeout", site.FetchStatus)
	assert.Equal(t, "MoltX - agent feed", site.Title)
}

func TestRunRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))

	started := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	id, err := repo.StartRun(ctx, "run", started)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	finished := started.Add(3 * time.Minute)
	require.NoError(t, repo.FinishRun(ctx, Run{ID: id, FinishedAt: &finished, Candidates: 12, Accepted: 3, Added: 2}))

	_, err = repo.StartRun(ctx, "sync", started.Add(time.Hour))
	require.NoError(t, err)

	runs, err := repo.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "sync", runs[0].Mode)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, id, runs[1].ID)
	assert.Equal(t, 12, runs[1].Candidates)
	assert.Equal(t, finished, *runs[1].FinishedAt)

	assert.Error(t, repo.FinishRun(ctx, Run{ID: "nope"}))
}
