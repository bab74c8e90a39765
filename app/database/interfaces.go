package database

import (
	"context"
	"time"
)

type SiteRepositoryInterface interface {
	RecordSites(ctx context.Context, sites []Site) error
	GetSite(ctx context.Context, domain string) (*Site, error)
	SeenSince(ctx context.Context, since time.Time) (map[string]bool, error)
	CountSites(ctx context.Context) (int, error)
}

type RunRepositoryInterface interface {
	StartRun(ctx context.Context, mode string, startedAt time.Time) (string, error)
	FinishRun(ctx context.Context, run Run) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}
