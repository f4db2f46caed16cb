package ecs

import (
	"sync"

	"github.com/rotisserie/eris"
)

// Command is a deferred world mutation.
type Command func(w *World) error

// Commands queues structural changes (spawns, despawns, inserts, removes) from a system. The
// queue is applied after the system's batch finishes, so systems running in parallel never see
// the world change under them. A failed command is logged and skipped; the rest of the queue
// still runs.
//
// Example:
//
//	type SpawnerState struct {
//	    Cmds ecs.Commands
//	}
//
//	func Spawner(state *SpawnerState) error {
//	    state.Cmds.Spawn(Health{Value: 100})
//	    return nil
//	}
type Commands struct {
	world  *World
	system string

	mu    sync.Mutex
	queue []Command
}

func (c *Commands) init(meta *fieldMeta) error {
	c.world = meta.world
	c.system = meta.system
	return nil
}

func (c *Commands) applyDeferred(w *World) {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, cmd := range queue {
		if err := cmd(w); err != nil {
			w.Logger().Warn().Err(err).Str("system", c.system).Msg("command failed")
		}
	}
}

// Add queues a custom command.
func (c *Commands) Add(cmd Command) {
	c.mu.Lock()
	c.queue = append(c.queue, cmd)
	c.mu.Unlock()
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Spawn reserves an entity id now and spawns the entity when the queue is applied. The id can be
// used by later commands in the same queue.
func (c *Commands) Spawn(components ...Component) (EntityID, error) {
	eid, err := c.world.entities.reserve()
	if err != nil {
		return 0, err
	}
	c.Add(func(w *World) error {
		if err := w.spawnReserved(eid, components); err != nil {
			w.entities.release(eid)
			return eris.Wrapf(err, "failed to spawn entity %d", eid)
		}
		return nil
	})
	return eid, nil
}

// Despawn queues the removal of an entity.
func (c *Commands) Despawn(eid EntityID) {
	c.Add(func(w *World) error {
		return w.Despawn(eid)
	})
}

// DespawnRecursive queues the removal of an entity and its descendants.
func (c *Commands) DespawnRecursive(eid EntityID) {
	c.Add(func(w *World) error {
		return w.DespawnRecursive(eid)
	})
}

// Insert queues adding components to an entity.
func (c *Commands) Insert(eid EntityID, components ...Component) {
	c.Add(func(w *World) error {
		return w.Insert(eid, components...)
	})
}

// Remove queues removing the component of kind's type from an entity. kind is only used for its
// Name, so a zero value works.
func (c *Commands) Remove(eid EntityID, kind Component) {
	name := kind.Name()
	c.Add(func(w *World) error {
		return w.RemoveByName(eid, name)
	})
}

// SetParent queues attaching child under parent.
func (c *Commands) SetParent(child, parent EntityID) {
	c.Add(func(w *World) error {
		return SetParent(w, child, parent)
	})
}

// InsertResourceCmd queues inserting a resource.
func InsertResourceCmd[T any](c *Commands, value T) {
	c.Add(func(w *World) error {
		InsertResource(w, value)
		return nil
	})
}

// RemoveResourceCmd queues removing a resource.
func RemoveResourceCmd[T any](c *Commands) {
	c.Add(func(w *World) error {
		RemoveResource[T](w)
		return nil
	})
}
