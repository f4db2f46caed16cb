package ecs

import (
	"slices"

	"github.com/rotisserie/eris"
)

// Parent points an entity at its parent in the hierarchy.
type Parent struct {
	ID EntityID `json:"id"`
}

func (Parent) Name() string { return "Parent" }

// Children lists an entity's direct children in insertion order.
type Children struct {
	IDs []EntityID `json:"ids"`
}

func (Children) Name() string { return "Children" }

// SetParent attaches child under parent, detaching it from its previous parent first.
func SetParent(w *World, child, parent EntityID) error {
	if child == parent {
		return eris.Errorf("entity %d cannot be its own parent", child)
	}
	if !w.Alive(child) {
		return eris.Wrapf(ErrEntityNotFound, "child %d", child)
	}
	if !w.Alive(parent) {
		return eris.Wrapf(ErrEntityNotFound, "parent %d", parent)
	}

	if old, err := Get[Parent](w, child); err == nil {
		w.detachChild(old.ID, child)
	}
	if err := Set(w, child, Parent{ID: parent}); err != nil {
		return err
	}

	children, _ := Get[Children](w, parent)
	ids := slices.Clone(children.IDs)
	ids = append(ids, child)
	return Set(w, parent, Children{IDs: ids})
}

// DespawnRecursive despawns an entity together with all of its descendants.
func (w *World) DespawnRecursive(eid EntityID) error {
	if !w.Alive(eid) {
		return eris.Wrapf(ErrEntityNotFound, "entity %d", eid)
	}
	w.despawnDescendants(eid)
	return w.Despawn(eid)
}

func (w *World) despawnDescendants(eid EntityID) {
	children, err := Get[Children](w, eid)
	if err != nil {
		return
	}
	for _, child := range slices.Clone(children.IDs) {
		if !w.Alive(child) {
			continue
		}
		w.despawnDescendants(child)
		// The parent is going away too, so skip the Children bookkeeping Despawn would do.
		if arch, ok := w.entities.archetypeOf(child); ok {
			arch.removeEntity(child)
			w.entities.release(child)
		}
	}
}

// detachChild removes child from parent's Children, dropping the component when it empties.
func (w *World) detachChild(parent, child EntityID) {
	children, err := Get[Children](w, parent)
	if err != nil {
		return
	}
	ids := slices.DeleteFunc(slices.Clone(children.IDs), func(id EntityID) bool { return id == child })
	if len(ids) == 0 {
		_ = Remove[Children](w, parent)
		return
	}
	_ = Set(w, parent, Children{IDs: ids})
}
