// Package task runs background work on a bounded goroutine pool and polls the results from
// systems without ever blocking a tick.
package task

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task is a handle to a background computation producing a T.
type Task[T any] struct {
	id     uuid.UUID
	done   chan struct{}
	result T
	err    error
	cancel context.CancelFunc
	once   sync.Once
}

func newTask[T any](cancel context.CancelFunc) *Task[T] {
	return &Task[T]{id: uuid.New(), done: make(chan struct{}), cancel: cancel}
}

// Ready returns a task that has already completed with value.
func Ready[T any](value T) *Task[T] {
	t := newTask[T](func() {})
	t.complete(value)
	return t
}

func (t *Task[T]) complete(value T) {
	t.once.Do(func() {
		t.result = value
		close(t.done)
	})
}

// drop finishes a task whose body never ran.
func (t *Task[T]) drop(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// ID returns the task's unique id.
func (t *Task[T]) ID() uuid.UUID {
	return t.id
}

// Done returns a channel that is closed once the task completed or was dropped.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Poll returns the output if the task completed. It never blocks. A dropped task never has an
// output; see Err.
func (t *Task[T]) Poll() (T, bool) {
	select {
	case <-t.done:
		if t.err != nil {
			var zero T
			return zero, false
		}
		return t.result, true
	default:
		var zero T
		return zero, false
	}
}

// Err returns why a task was dropped before its body started: the context error when it was
// cancelled, or ErrPoolNotStarted. It is nil otherwise.
func (t *Task[T]) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel cancels the task's context. The work function decides whether to stop early. A task
// that was cancelled before it started never runs and is dropped with context.Canceled.
func (t *Task[T]) Cancel() {
	t.cancel()
}
