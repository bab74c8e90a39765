package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcTask struct {
	Task
	run func(ctx context.Context) error
}

func newFuncTask(target string, run func(ctx context.Context) error) *funcTask {
	return &funcTask{Task: NewTask(TaskTypeFetchPage, target), run: run}
}

func (t *funcTask) Execute(ctx context.Context) error {
	return t.run(ctx)
}

func TestPool_Run_AllTasks(t *testing.T) {
	pool := NewPool(4, time.Second)

	var calls atomic.Int32
	var batch []TaskInterface
	for i := 0; i < 20; i++ {
		batch = append(batch, newFuncTask("t", func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}))
	}

	stats, err := pool.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, int32(20), calls.Load())
	assert.Equal(t, Stats{Completed: 20}, stats)
}

func TestPool_Run_FailuresDoNotAbort(t *testing.T) {
	pool := NewPool(2, time.Second)

	batch := []TaskInterface{
		newFuncTask("ok", func(ctx context.Context) error { return nil }),
		newFuncTask("bad", func(ctx context.Context) error { return errors.New("boom") }),
		newFuncTask("ok2", func(ctx context.Context) error { return nil }),
	}

	stats, err := pool.Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, Stats{Completed: 2, Failed: 1}, stats)
}

func TestPool_Run_TaskTimeout(t *testing.T) {
	pool := NewPool(1, 20*time.Millisecond)

	batch := []TaskInterface{
		newFuncTask("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	}

	stats, err := pool.Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestPool_Run_Cancelled(t *testing.T) {
	pool := NewPool(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	batch := []TaskInterface{
		newFuncTask("first", func(ctx context.Context) error {
			calls.Add(1)
			cancel()
			return nil
		}),
		newFuncTask("second", func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}),
	}

	stats, err := pool.Run(ctx, batch)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, stats.Skipped)
}

func TestPool_Run_Empty(t *testing.T) {
	stats, err := NewPool(0, 0).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestTask_Duration(t *testing.T) {
	task := NewTask(TaskTypeResolveHost, "moltbook.com")
	assert.Zero(t, task.GetDuration())
	assert.NotEmpty(t, task.GetID())
	assert.Equal(t, "moltbook.com", task.GetTarget())

	task.Start()
	assert.NotNil(t, task.StartedAt)
}

func TestNewSchedule_InvalidExpression(t *testing.T) {
	_, err := NewSchedule("not a cron spec", "run", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestSchedule_StartStop(t *testing.T) {
	s, err := NewSchedule("@every 1h", "run", func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	s.Start()
	s.Stop()
}
