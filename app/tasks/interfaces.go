package tasks

import "context"

// TaskRunnerInterface runs a batch of tasks to completion.
// Example usage:
//
//	pool := NewPool(8, 15*time.Second)
//	stats, err := pool.Run(ctx, fetchTasks)
type TaskRunnerInterface interface {
	Run(ctx context.Context, tasks []TaskInterface) (Stats, error)
}
