package task_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_InvalidSize(t *testing.T) {
	t.Parallel()

	_, err := task.NewPool(0)
	require.Error(t, err)
	_, err = task.NewPool(-3)
	require.Error(t, err)
}

func TestSpawn_CompletesAndPolls(t *testing.T) {
	t.Parallel()

	pool, err := task.NewPool(2)
	require.NoError(t, err)
	defer pool.Close()

	gate := make(chan struct{})
	tk := task.Spawn(pool, func(context.Context) string {
		<-gate
		return "done"
	})

	_, ok := tk.Poll()
	assert.False(t, ok)

	close(gate)
	<-tk.Done()

	out, ok := tk.Poll()
	require.True(t, ok)
	assert.Equal(t, "done", out)

	// Polling again keeps returning the output.
	out, ok = tk.Poll()
	require.True(t, ok)
	assert.Equal(t, "done", out)
}

func TestSpawn_RespectsPoolSize(t *testing.T) {
	t.Parallel()

	pool, err := task.NewPool(1)
	require.NoError(t, err)
	defer pool.Close()

	gate := make(chan struct{})
	var started atomic.Int32
	first := task.Spawn(pool, func(context.Context) int {
		started.Add(1)
		<-gate
		return 1
	})
	second := task.Spawn(pool, func(context.Context) int {
		started.Add(1)
		return 2
	})

	assert.Never(t, func() bool { return started.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	close(gate)
	<-first.Done()
	<-second.Done()
	assert.Equal(t, int32(2), started.Load())
}

func TestTask_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	pool, err := task.NewPool(1)
	require.NoError(t, err)

	gate := make(chan struct{})
	blocker := task.Spawn(pool, func(context.Context) int {
		<-gate
		return 0
	})
	var ran atomic.Bool
	waiting := task.Spawn(pool, func(context.Context) int {
		ran.Store(true)
		return 1
	})

	// Dropped while still queued behind blocker.
	waiting.Cancel()
	select {
	case <-waiting.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled task never finished")
	}
	require.ErrorIs(t, waiting.Err(), context.Canceled)
	_, ok := waiting.Poll()
	assert.False(t, ok)

	close(gate)
	<-blocker.Done()
	require.NoError(t, blocker.Err())
	pool.Close()
	assert.False(t, ran.Load())
}

func TestPool_CloseDropsQueuedTasks(t *testing.T) {
	t.Parallel()

	pool, err := task.NewPool(1)
	require.NoError(t, err)

	started := make(chan struct{})
	running := task.Spawn(pool, func(ctx context.Context) int {
		close(started)
		<-ctx.Done()
		return 1
	})
	<-started
	queued := task.Spawn(pool, func(context.Context) int { return 2 })

	pool.Close()
	<-running.Done()
	<-queued.Done()

	out, ok := running.Poll()
	require.True(t, ok, "a running body still delivers its output")
	assert.Equal(t, 1, out)
	require.ErrorIs(t, queued.Err(), context.Canceled)
}

func TestTask_CancelReachesBody(t *testing.T) {
	t.Parallel()

	pool, err := task.NewPool(1)
	require.NoError(t, err)
	defer pool.Close()

	started := make(chan struct{})
	tk := task.Spawn(pool, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	tk.Cancel()
	<-tk.Done()

	out, ok := tk.Poll()
	require.True(t, ok)
	require.ErrorIs(t, out, context.Canceled)
	require.NoError(t, tk.Err())
}

func TestReady(t *testing.T) {
	t.Parallel()

	a, b := task.Ready(7), task.Ready(7)
	out, ok := a.Poll()
	require.True(t, ok)
	assert.Equal(t, 7, out)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestPool_FromWorld(t *testing.T) {
	t.Parallel()

	w := ecs.NewWorld()
	pool := ecs.InitResource[task.Pool](w)
	defer pool.Close()
	assert.Positive(t, pool.Size())

	tk := task.Spawn(pool, func(context.Context) int { return 3 })
	<-tk.Done()
}

func TestPool_NotStarted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pool *task.Pool
	}{
		{name: "zero value", pool: &task.Pool{}},
		{name: "nil", pool: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.NotPanics(t, tt.pool.Close)

			var ran atomic.Bool
			tk := task.Spawn(tt.pool, func(context.Context) int {
				ran.Store(true)
				return 1
			})
			<-tk.Done()
			_, ok := tk.Poll()
			assert.False(t, ok)
			require.ErrorIs(t, tk.Err(), task.ErrPoolNotStarted)
			assert.False(t, ran.Load())
		})
	}
}
