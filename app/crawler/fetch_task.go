package crawler

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/moltdir/app/extract"
	"github.com/lysyi3m/moltdir/app/portal"
	"github.com/lysyi3m/moltdir/app/tasks"
)

// FetchTask fetches one candidate and extracts its signal in place.
type FetchTask struct {
	tasks.Task
	Candidate *portal.Candidate
	fetcher   *Fetcher
	extractor *extract.Extractor
}

func NewFetchTask(c *portal.Candidate, fetcher *Fetcher, extractor *extract.Extractor) *FetchTask {
	return &FetchTask{
		Task:      tasks.NewTask(tasks.TaskTypeFetchPage, c.Domain),
		Candidate: c,
		fetcher:   fetcher,
		extractor: extractor,
	}
}

func (t *FetchTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c := t.Candidate
	if c.FetchStatus == "" {
		// Failures stay on the candidate; scoring still runs on the domain name.
		_ = t.fetcher.Fetch(ctx, c)
	}
	if c.Fetched() && c.Signal.Empty() {
		c.Signal = t.extractor.Run(c.Body, c.ContentType, c.FinalURL)
	}

	slog.Debug("Task completed",
		"type", string(t.Type),
		"domain", c.Domain,
		"source", c.Source,
		"fetch_status", c.FetchStatus,
		"duration", t.GetDuration())

	return ctx.Err()
}
