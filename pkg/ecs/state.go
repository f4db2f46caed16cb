package ecs

import (
	"fmt"
	"reflect"
)

// State is the resource holding the current value of a state machine of type S.
type State[S comparable] struct {
	current S
}

// Get returns the current state.
func (s *State[S]) Get() S {
	return s.current
}

// NextState is the resource used to request a transition of the state machine of type S. The
// transition happens the next time the StateTransition schedule runs.
type NextState[S comparable] struct {
	pending S
	set     bool
}

// Set requests a transition to next. Setting the current state again still runs the exit and
// enter schedules.
func (n *NextState[S]) Set(next S) {
	n.pending = next
	n.set = true
}

// Pending returns the requested state, if any.
func (n *NextState[S]) Pending() (S, bool) {
	return n.pending, n.set
}

// Reset drops a pending request.
func (n *NextState[S]) Reset() {
	var zero S
	n.pending = zero
	n.set = false
}

// OnEnter labels the schedule run when the state machine enters State.
type OnEnter[S comparable] struct{ State S }

func (o OnEnter[S]) String() string { return fmt.Sprintf("OnEnter(%v)", o.State) }

// OnExit labels the schedule run when the state machine leaves State.
type OnExit[S comparable] struct{ State S }

func (o OnExit[S]) String() string { return fmt.Sprintf("OnExit(%v)", o.State) }

// StateTransitionEvent is sent on every transition of the state machine of type S.
type StateTransitionEvent[S comparable] struct {
	From S
	To   S
}

// InitState inserts the State and NextState resources for S. The machine enters initial the
// first time its transition system runs.
func InitState[S comparable](w *World, initial S) {
	InsertResource(w, State[S]{current: initial})
	InsertResource(w, NextState[S]{})
	RegisterEvent[StateTransitionEvent[S]](w)
}

// ApplyStateTransition applies a pending transition of S: it runs OnExit of the old state, swaps
// the state, then runs OnEnter of the new one. Returns false if nothing was pending.
func ApplyStateTransition[S comparable](w *World) (bool, error) {
	next, ok := Resource[NextState[S]](w)
	if !ok {
		return false, nil
	}
	to, pending := next.Pending()
	if !pending {
		return false, nil
	}
	next.Reset()

	state := MustResource[State[S]](w)
	from := state.current

	if err := RunSchedule(w, OnExit[S]{State: from}); err != nil {
		return true, err
	}
	InsertResource(w, State[S]{current: to})
	SendEvent(w, StateTransitionEvent[S]{From: from, To: to})
	w.Logger().Debug().Str("state", reflect.TypeFor[S]().String()).
		Any("from", from).Any("to", to).Msg("state transition")
	if err := RunSchedule(w, OnEnter[S]{State: to}); err != nil {
		return true, err
	}
	return true, nil
}

// StateTransitionSystem returns the exclusive system that drives the state machine of S. Its
// first run enters the initial state; later runs apply pending transitions.
func StateTransitionSystem[S comparable]() Runnable {
	entered := false
	name := fmt.Sprintf("StateTransition[%s]", reflect.TypeFor[S]())
	return NewExclusiveSystem(name, &transitionState{}, func(state *transitionState) error {
		w := state.World()
		if !entered {
			entered = true
			if current, ok := Resource[State[S]](w); ok {
				if err := RunSchedule(w, OnEnter[S]{State: current.Get()}); err != nil {
					return err
				}
			}
		}
		_, err := ApplyStateTransition[S](w)
		return err
	})
}

// InState returns a condition that is true while the state machine of S is in s.
func InState[S comparable](s S) Condition {
	name := fmt.Sprintf("InState(%v)", s)
	return NewCondition(name, &stateRes[S]{}, func(state *stateRes[S]) bool {
		current, ok := state.State.TryGet()
		return ok && current.Get() == s
	})
}

// StateChanged returns a condition that is true on the run after the state machine of S changed.
func StateChanged[S comparable]() Condition {
	name := fmt.Sprintf("StateChanged[%s]", reflect.TypeFor[S]())
	return NewCondition(name, &stateRes[S]{}, func(state *stateRes[S]) bool {
		return state.State.IsChanged() && !state.State.IsAdded()
	})
}

type transitionState struct {
	BaseSystemState
}

type stateRes[S comparable] struct {
	State Res[State[S]]
}
