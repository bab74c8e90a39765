package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var _ TaskRunnerInterface = (*Pool)(nil)

type Stats struct {
	Completed int
	Failed    int
	Skipped   int
}

// Pool is a bounded worker pool. Every task gets exactly one attempt with its
// own timeout; tasks still queued when the context is cancelled are skipped.
type Pool struct {
	workerCount int
	taskTimeout time.Duration
}

func NewPool(workerCount int, taskTimeout time.Duration) *Pool {
	return &Pool{
		workerCount: max(1, workerCount),
		taskTimeout: taskTimeout,
	}
}

func (p *Pool) Run(ctx context.Context, tasks []TaskInterface) (Stats, error) {
	taskQueue := make(chan TaskInterface, len(tasks))
	for _, task := range tasks {
		taskQueue <- task
	}
	close(taskQueue)

	var (
		mu    sync.Mutex
		stats Stats
		wg    sync.WaitGroup
	)
	record := func(f func(*Stats)) {
		mu.Lock()
		f(&stats)
		mu.Unlock()
	}

	for i := 0; i < min(p.workerCount, len(tasks)); i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for task := range taskQueue {
				if ctx.Err() != nil {
					record(func(s *Stats) { s.Skipped++ })
					continue
				}
				if err := p.executeTask(ctx, id, task); err != nil {
					record(func(s *Stats) { s.Failed++ })
				} else {
					record(func(s *Stats) { s.Completed++ })
				}
			}
		}(i)
	}
	wg.Wait()

	slog.Debug("Task batch finished",
		"total", len(tasks),
		"completed", stats.Completed,
		"failed", stats.Failed,
		"skipped", stats.Skipped)

	return stats, ctx.Err()
}

func (p *Pool) executeTask(ctx context.Context, workerID int, task TaskInterface) error {
	task.Start()

	taskCtx := ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.taskTimeout)
		defer cancel()
	}

	err := task.Execute(taskCtx)
	if err != nil {
		slog.Debug("Worker task execution failed",
			"worker_id", workerID,
			"type", string(task.GetType()),
			"target", task.GetTarget(),
			"duration", task.GetDuration(),
			"error", err)
	}
	return err
}
