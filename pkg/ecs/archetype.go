package ecs

import (
	"strconv"
	"strings"

	"github.com/argus-labs/cardinal-extras/pkg/assert"
	"github.com/kelindar/bitmap"
)

// archetypeID is the index of an archetype in the world's archetype list.
type archetypeID = int

// archetype holds every entity that has exactly the same set of components.
// NOTE: compCount is cached because bitmap.Count is O(n).
type archetype struct {
	id         archetypeID
	components bitmap.Bitmap
	compCount  int
	entities   []EntityID
	rows       map[EntityID]int
	columns    map[dataID]abstractColumn
}

func newArchetype(aid archetypeID, components bitmap.Bitmap, columns map[dataID]abstractColumn) *archetype {
	assert.That(components.Count() == len(columns), "mismatched number of columns and components")
	return &archetype{
		id:         aid,
		components: components,
		compCount:  len(columns),
		entities:   make([]EntityID, 0),
		rows:       make(map[EntityID]int),
		columns:    columns,
	}
}

func (a *archetype) has(id dataID) bool {
	return a.components.Contains(id)
}

// exact returns true if the archetype has exactly the given components.
func (a *archetype) exact(components bitmap.Bitmap) bool {
	if a.compCount != components.Count() {
		return false
	}
	return a.contains(components)
}

// contains returns true if the archetype has all of the given components.
func (a *archetype) contains(components bitmap.Bitmap) bool {
	intersect := components.Clone(nil)
	intersect.And(a.components)
	return intersect.Count() == components.Count()
}

// newEntity appends eid with zero values that count as added at tick. Returns its row.
func (a *archetype) newEntity(eid EntityID, tick Tick) int {
	a.entities = append(a.entities, eid)
	for _, col := range a.columns {
		col.extend(tick)
		assert.That(col.len() == len(a.entities), "column components length doesn't match entities")
	}
	row := len(a.entities) - 1
	a.rows[eid] = row
	return row
}

// removeEntity swap-removes eid. The caller makes sure eid lives in this archetype.
func (a *archetype) removeEntity(eid EntityID) {
	row, exists := a.rows[eid]
	assert.That(exists, "entity is not in archetype")

	last := len(a.entities) - 1
	a.entities[row] = a.entities[last]
	a.entities = a.entities[:last]

	for _, col := range a.columns {
		col.remove(row)
		assert.That(col.len() == len(a.entities), "column components length doesn't match entities")
	}
	delete(a.rows, eid)

	if row != last {
		a.rows[a.entities[row]] = row
	}
}

// moveEntity moves eid into dst, carrying over the components both archetypes share. Components
// only dst has start as zero values added at tick. Returns the row in dst.
func (a *archetype) moveEntity(dst *archetype, eid EntityID, tick Tick) int {
	row, exists := a.rows[eid]
	assert.That(exists, "entity is not in archetype")

	newRow := dst.newEntity(eid, tick)
	for id, col := range a.columns {
		if dstCol, ok := dst.columns[id]; ok {
			col.moveTo(dstCol, row, newRow)
		}
	}
	a.removeEntity(eid)
	return newRow
}

// bitmapKey renders a component set as a canonical map key. ToBytes isn't used because trailing
// empty words make equal sets encode differently.
func bitmapKey(b bitmap.Bitmap) string {
	var sb strings.Builder
	b.Range(func(x uint32) {
		sb.WriteString(strconv.FormatUint(uint64(x), 36))
		sb.WriteByte(',')
	})
	return sb.String()
}
