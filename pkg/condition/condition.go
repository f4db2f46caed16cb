// Package condition provides run conditions for gating systems and system sets.
//
// Every condition is an ecs.Condition and can be passed to RunIf:
//
//	a.AddSystem(app.Update{}, spawnWave).RunIf(condition.NoneFilter(ecs.With[Enemy]()))
package condition

import (
	"fmt"
	"reflect"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
)

// -------------------------------------------------------------------------------------------------
// Entities
// -------------------------------------------------------------------------------------------------

type queryState struct {
	Targets ecs.Query
}

func anyQuery(name string, filter ecs.Filter, want bool) ecs.Condition {
	state := &queryState{Targets: ecs.NewQuery(filter)}
	return ecs.NewCondition(name, state, func(state *queryState) bool {
		return state.Targets.IsEmpty() != want
	})
}

// AnyFilter is true when at least one entity matches filter.
func AnyFilter(filter ecs.Filter) ecs.Condition {
	return anyQuery("condition.AnyFilter", filter, true)
}

// NoneFilter is true when no entity matches filter.
func NoneFilter(filter ecs.Filter) ecs.Condition {
	return anyQuery("condition.NoneFilter", filter, false)
}

// AnyWithComponent is true when at least one entity has component T.
func AnyWithComponent[T ecs.Component]() ecs.Condition {
	return anyQuery(componentName[T]("condition.AnyWithComponent"), ecs.With[T](), true)
}

// AnyAddedComponent is true when component T was added to an entity since the condition last ran.
func AnyAddedComponent[T ecs.Component]() ecs.Condition {
	return anyQuery(componentName[T]("condition.AnyAddedComponent"), ecs.Added[T](), true)
}

// AnyChangedComponent is true when component T was added or written on an entity since the
// condition last ran.
func AnyChangedComponent[T ecs.Component]() ecs.Condition {
	return anyQuery(componentName[T]("condition.AnyChangedComponent"), ecs.Changed[T](), true)
}

// AnyMatching is true when at least one entity matches params. The where clause can look at any
// component, so the condition is exclusive. Invalid params fail the schedule run.
func AnyMatching(params ecs.SearchParam) ecs.Condition {
	return ecs.NewSystemWith("condition.AnyMatching", &matchState{},
		func(state *matchState, _ struct{}) (bool, error) {
			found, err := state.World().Search(params)
			if err != nil {
				return false, err
			}
			return len(found) > 0, nil
		}, ecs.WithExclusive())
}

type matchState struct {
	ecs.BaseSystemState
}

// -------------------------------------------------------------------------------------------------
// Resources and events
// -------------------------------------------------------------------------------------------------

type resState[T any] struct {
	Res ecs.Res[T]
}

// ResourceExists is true while the resource of type T exists.
func ResourceExists[T any]() ecs.Condition {
	name := fmt.Sprintf("condition.ResourceExists[%s]", reflect.TypeFor[T]())
	return ecs.NewCondition(name, &resState[T]{}, func(state *resState[T]) bool {
		return state.Res.Exists()
	})
}

// ResourceChanged is true when the resource of type T exists and was added or changed since the
// condition last ran.
func ResourceChanged[T any]() ecs.Condition {
	name := fmt.Sprintf("condition.ResourceChanged[%s]", reflect.TypeFor[T]())
	return ecs.NewCondition(name, &resState[T]{}, func(state *resState[T]) bool {
		return state.Res.Exists() && state.Res.IsChanged()
	})
}

// ResourceAdded is true when the resource of type T was inserted since the condition last ran.
func ResourceAdded[T any]() ecs.Condition {
	name := fmt.Sprintf("condition.ResourceAdded[%s]", reflect.TypeFor[T]())
	return ecs.NewCondition(name, &resState[T]{}, func(state *resState[T]) bool {
		return state.Res.Exists() && state.Res.IsAdded()
	})
}

type eventState[T any] struct {
	Events ecs.WithEventReceiver[T]
}

// OnEvent is true when events of type T were sent since the condition last ran. The events are
// marked read for this condition only; systems keep their own cursors.
func OnEvent[T any]() ecs.Condition {
	name := fmt.Sprintf("condition.OnEvent[%s]", reflect.TypeFor[T]())
	return ecs.NewCondition(name, &eventState[T]{}, func(state *eventState[T]) bool {
		pending := !state.Events.IsEmpty()
		state.Events.Clear()
		return pending
	})
}

func componentName[T ecs.Component](prefix string) string {
	var zero T
	return fmt.Sprintf("%s[%s]", prefix, zero.Name())
}
