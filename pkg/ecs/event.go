package ecs

import (
	"iter"
	"reflect"
)

// Events is a double-buffered event queue stored as a resource. Events survive one Update so that
// readers running before the sender in the next tick still see them. Every reader keeps its own
// cursor, so each reader sees each event once.
type Events[T any] struct {
	prev  []eventInstance[T]
	curr  []eventInstance[T]
	count uint64
}

type eventInstance[T any] struct {
	id    uint64
	event T
}

// Send queues an event.
func (e *Events[T]) Send(event T) {
	e.curr = append(e.curr, eventInstance[T]{id: e.count, event: event})
	e.count++
}

// Update drops the events of two updates ago. The world calls it once per tick for every
// registered event type.
func (e *Events[T]) Update() {
	e.prev = e.curr
	e.curr = nil
}

// Len returns the number of buffered events.
func (e *Events[T]) Len() int {
	return len(e.prev) + len(e.curr)
}

// Clear drops every buffered event.
func (e *Events[T]) Clear() {
	e.prev = nil
	e.curr = nil
}

// since iterates over the events with an id of at least cursor.
func (e *Events[T]) since(cursor uint64) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, buf := range [2][]eventInstance[T]{e.prev, e.curr} {
			for _, inst := range buf {
				if inst.id < cursor {
					continue
				}
				if !yield(inst.event) {
					return
				}
			}
		}
	}
}

// unread returns how many events have an id of at least cursor.
func (e *Events[T]) unread(cursor uint64) int {
	n := 0
	for range e.since(cursor) {
		n++
	}
	return n
}

// RegisterEvent makes sure the Events[T] resource exists and is updated every tick.
func RegisterEvent[T any](w *World) *Events[T] {
	events := InitResource[Events[T]](w)

	w.eventMu.Lock()
	defer w.eventMu.Unlock()
	typ := reflect.TypeFor[T]()
	if _, ok := w.eventUpdaters[typ]; !ok {
		w.eventUpdaters[typ] = func() {
			if e, ok := Resource[Events[T]](w); ok {
				e.Update()
			}
		}
	}
	return events
}

// SendEvent sends an event from outside a system.
func SendEvent[T any](w *World, event T) {
	RegisterEvent[T](w).Send(event)
}

// UpdateEvents rotates the buffers of every registered event type.
func (w *World) UpdateEvents() {
	w.eventMu.Lock()
	updaters := make([]func(), 0, len(w.eventUpdaters))
	for _, fn := range w.eventUpdaters {
		updaters = append(updaters, fn)
	}
	w.eventMu.Unlock()

	for _, fn := range updaters {
		fn()
	}
}
