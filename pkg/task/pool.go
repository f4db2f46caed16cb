package task

import (
	"context"
	"runtime"
	"sync"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Pool runs task bodies on goroutines, at most size at a time. It is stored as a resource and is
// safe to copy; copies share the same goroutines.
type Pool struct {
	sem    *semaphore.Weighted
	size   int64
	ctx    context.Context //nolint:containedctx // Parent of every task context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	logger zerolog.Logger
}

// NewPool creates a pool running at most size tasks at once.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, eris.Errorf("pool size must be positive, got %d", size)
	}
	p := &Pool{}
	p.init(int64(size))
	return p, nil
}

func (p *Pool) init(size int64) {
	p.sem = semaphore.NewWeighted(size)
	p.size = size
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.wg = &sync.WaitGroup{}
	p.logger = zerolog.Nop()
}

// FromWorld sizes a pool created by InitResource to GOMAXPROCS.
func (p *Pool) FromWorld(w *ecs.World) {
	p.init(int64(runtime.GOMAXPROCS(0)))
	p.logger = w.Logger().With().Str("component", "task.pool").Logger()
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int {
	return int(p.size)
}

// ErrPoolNotStarted is the error of tasks spawned on a Pool that was never set up with NewPool or
// FromWorld.
var ErrPoolNotStarted = eris.New("task pool not started")

func (p *Pool) started() bool {
	return p != nil && p.sem != nil
}

// Close cancels every task and waits for running bodies to return. Closing a pool that was never
// started does nothing.
func (p *Pool) Close() {
	if !p.started() {
		return
	}
	p.cancel()
	p.wg.Wait()
}

// Spawn runs fn on the pool and returns a handle to its output. fn receives a context that is
// cancelled by Task.Cancel or Pool.Close. On a pool that was never started the task is dropped
// with ErrPoolNotStarted.
func Spawn[T any](p *Pool, fn func(ctx context.Context) T) *Task[T] {
	if !p.started() {
		t := newTask[T](func() {})
		t.drop(ErrPoolNotStarted)
		return t
	}
	ctx, cancel := context.WithCancel(p.ctx)
	t := newTask[T](cancel)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			// Cancelled while waiting for a slot.
			t.drop(err)
			return
		}
		defer p.sem.Release(1)

		if err := ctx.Err(); err != nil {
			t.drop(err)
			return
		}
		t.complete(fn(ctx))
	}()
	return t
}
