// Package cleanup provides ready-made systems that tear down entities, components and resources,
// typically scheduled on a state's OnExit schedule.
package cleanup

import (
	"fmt"
	"reflect"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/rotisserie/eris"
)

// -------------------------------------------------------------------------------------------------
// Entities
// -------------------------------------------------------------------------------------------------

type despawnAllState struct {
	ecs.BaseSystemState
	Targets ecs.Query
}

// DespawnAll returns an exclusive system that despawns every entity matching filter. A nil filter
// matches every entity.
func DespawnAll(filter ecs.Filter) ecs.Runnable {
	return despawnAll("cleanup.DespawnAll", filter, (*ecs.World).Despawn)
}

// DespawnAllRecursive is DespawnAll that also despawns the descendants of every match.
func DespawnAllRecursive(filter ecs.Filter) ecs.Runnable {
	return despawnAll("cleanup.DespawnAllRecursive", filter, (*ecs.World).DespawnRecursive)
}

func despawnAll(name string, filter ecs.Filter, despawn func(*ecs.World, ecs.EntityID) error) ecs.Runnable {
	state := &despawnAllState{Targets: ecs.NewQuery(filter)}
	return ecs.NewExclusiveSystem(name, state, func(state *despawnAllState) error {
		w := state.World()
		targets := make([]ecs.EntityID, 0)
		for eid := range state.Targets.Iter() {
			targets = append(targets, eid)
		}
		for _, eid := range targets {
			// An earlier recursive despawn may already have removed eid.
			if !w.Alive(eid) {
				continue
			}
			if err := despawn(w, eid); err != nil {
				return eris.Wrapf(err, "failed to despawn entity %d", eid)
			}
		}
		if len(targets) > 0 {
			state.Logger().Debug().Int("count", len(targets)).Msg("despawned entities")
		}
		return nil
	})
}

type despawnWithState struct {
	Cmds    ecs.Commands
	Targets ecs.Query
}

// DespawnWith returns a system that queues despawning every entity with component T.
func DespawnWith[T ecs.Component]() ecs.Runnable {
	return despawnWith[T](false)
}

// DespawnWithRecursive is DespawnWith that also despawns the descendants of every match.
func DespawnWithRecursive[T ecs.Component]() ecs.Runnable {
	return despawnWith[T](true)
}

func despawnWith[T ecs.Component](recursive bool) ecs.Runnable {
	var zero T
	name := fmt.Sprintf("cleanup.DespawnWith[%s]", zero.Name())
	if recursive {
		name = fmt.Sprintf("cleanup.DespawnWithRecursive[%s]", zero.Name())
	}
	state := &despawnWithState{Targets: ecs.NewQuery(ecs.With[T]())}
	return ecs.NewSystem(name, state, func(state *despawnWithState) error {
		for eid := range state.Targets.Iter() {
			if recursive {
				state.Cmds.DespawnRecursive(eid)
			} else {
				state.Cmds.Despawn(eid)
			}
		}
		return nil
	})
}

// -------------------------------------------------------------------------------------------------
// Components
// -------------------------------------------------------------------------------------------------

type removeState struct {
	Cmds    ecs.Commands
	Targets ecs.Query
}

// RemoveFromAll returns a system that removes component T from every entity that has it and
// matches filter. A nil filter only requires T.
func RemoveFromAll[T ecs.Component](filter ecs.Filter) ecs.Runnable {
	var zero T
	name := fmt.Sprintf("cleanup.RemoveFromAll[%s]", zero.Name())
	return removeFromAll[T](name, filter)
}

// RemoveFromAllWith removes component T from every entity that also has component W.
func RemoveFromAllWith[T, W ecs.Component]() ecs.Runnable {
	var zero T
	var with W
	name := fmt.Sprintf("cleanup.RemoveFromAllWith[%s, %s]", zero.Name(), with.Name())
	return removeFromAll[T](name, ecs.With[W]())
}

func removeFromAll[T ecs.Component](name string, filter ecs.Filter) ecs.Runnable {
	match := ecs.With[T]()
	if filter != nil {
		match = ecs.All(match, filter)
	}
	state := &removeState{Targets: ecs.NewQuery(match)}
	return ecs.NewSystem(name, state, func(state *removeState) error {
		var zero T
		for eid := range state.Targets.Iter() {
			state.Cmds.Remove(eid, zero)
		}
		return nil
	})
}

// -------------------------------------------------------------------------------------------------
// Resources
// -------------------------------------------------------------------------------------------------

type resourceCmdState struct {
	Cmds ecs.Commands
}

// RemoveResource returns a system that removes the resource of type T. Missing resources are
// ignored.
func RemoveResource[T any]() ecs.Runnable {
	name := fmt.Sprintf("cleanup.RemoveResource[%s]", reflect.TypeFor[T]())
	return ecs.NewSystem(name, &resourceCmdState{}, func(state *resourceCmdState) error {
		ecs.RemoveResourceCmd[T](&state.Cmds)
		return nil
	})
}

type initResourceState struct {
	ecs.BaseSystemState
}

// InitResource returns an exclusive system that inserts the resource of type T unless it exists.
// See ecs.InitResource for how the initial value is built.
func InitResource[T any]() ecs.Runnable {
	name := fmt.Sprintf("cleanup.InitResource[%s]", reflect.TypeFor[T]())
	return ecs.NewExclusiveSystem(name, &initResourceState{}, func(state *initResourceState) error {
		ecs.InitResource[T](state.World())
		return nil
	})
}
