package ecs

import (
	"cmp"
	"slices"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// EntitySnapshot is the serialized form of one entity.
type EntitySnapshot struct {
	ID         EntityID                   `json:"id"`
	Components map[string]json.RawMessage `json:"components"`
}

// WorldSnapshot is the serialized form of a world's entities.
type WorldSnapshot struct {
	Tick     Tick             `json:"tick"`
	Entities []EntitySnapshot `json:"entities"`
}

// Snapshot serializes every entity and its components to JSON, ordered by entity id. Resources
// are not included.
func (w *World) Snapshot() ([]byte, error) {
	snapshot := WorldSnapshot{Tick: w.ChangeTick(), Entities: make([]EntitySnapshot, 0, w.EntityCount())}

	for _, arch := range w.archetypes {
		for row, eid := range arch.entities {
			entity := EntitySnapshot{ID: eid, Components: make(map[string]json.RawMessage, arch.compCount)}
			for _, col := range arch.columns {
				comp := col.getAbstract(row)
				data, err := json.Marshal(comp)
				if err != nil {
					return nil, eris.Wrapf(err, "failed to marshal component %s of entity %d", comp.Name(), eid)
				}
				entity.Components[comp.Name()] = data
			}
			snapshot.Entities = append(snapshot.Entities, entity)
		}
	}

	slices.SortFunc(snapshot.Entities, func(a, b EntitySnapshot) int {
		return cmp.Compare(a.ID, b.ID)
	})

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, eris.Wrap(err, "failed to marshal world snapshot")
	}
	return data, nil
}
