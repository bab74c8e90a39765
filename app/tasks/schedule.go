package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Schedule runs a job on a cron expression. Overlapping runs are skipped.
type Schedule struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSchedule(spec string, name string, job func(ctx context.Context) error) (*Schedule, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := slogCronLogger{}

	s := &Schedule{
		cron:   cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger))),
		ctx:    ctx,
		cancel: cancel,
	}

	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil {
			slog.Error("Scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	return s, nil
}

func (s *Schedule) Start() {
	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		slog.Info("Schedule started", "next_run", entry.Next)
	}
}

// Stop cancels a running job and waits for it to return.
func (s *Schedule) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

type slogCronLogger struct{}

func (slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug(msg, keysAndValues...)
}

func (slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error(msg, append(keysAndValues, "error", err)...)
}
