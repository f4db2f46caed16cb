package ecs

import (
	"github.com/argus-labs/cardinal-extras/pkg/assert"
)

// columnFactory is a function that creates a new abstractColumn instance.
type columnFactory func() abstractColumn

// abstractColumn is an internal interface for generic column operations.
type abstractColumn interface {
	len() int
	name() string
	extend(tick Tick)

	setAbstract(row int, component Component, tick Tick)
	getAbstract(row int) Component
	remove(row int)
	moveTo(dst abstractColumn, srcRow, dstRow int)

	ticks(row int) (added, changed Tick)
	checkTicks(now Tick)
}

var _ abstractColumn = &column[Component]{}

// column stores the component data of entities in an archetype, together with the tick each
// value was added and last changed at. All three slices have the archetype's entity count.
type column[T Component] struct {
	compName   string
	components []T
	added      []Tick
	changed    []Tick
}

// newColumnFactory returns a function that constructs a new column of type T.
func newColumnFactory[T Component](name string) columnFactory {
	return func() abstractColumn {
		const initialCapacity = 16
		return &column[T]{
			compName:   name,
			components: make([]T, 0, initialCapacity),
			added:      make([]Tick, 0, initialCapacity),
			changed:    make([]Tick, 0, initialCapacity),
		}
	}
}

func (c *column[T]) len() int {
	return len(c.components)
}

func (c *column[T]) name() string {
	return c.compName
}

// extend adds a zero value row that counts as added and changed at tick.
func (c *column[T]) extend(tick Tick) {
	var zero T
	c.components = append(c.components, zero)
	c.added = append(c.added, tick)
	c.changed = append(c.changed, tick)
}

// set writes the component in a given row and marks it changed. Prefer this over setAbstract since
// it skips the type assertion and the boxing of the component.
func (c *column[T]) set(row int, component T, tick Tick) {
	assert.That(row < len(c.components), "column isn't extended when entity is created")
	c.components[row] = component
	c.changed[row] = tick
}

func (c *column[T]) setAbstract(row int, component Component, tick Tick) {
	concrete, ok := component.(T)
	assert.That(ok, "tried to set the wrong component type in column %s", c.compName)
	c.set(row, concrete, tick)
}

func (c *column[T]) get(row int) T {
	assert.That(row < len(c.components), "component doesn't exist")
	return c.components[row]
}

func (c *column[T]) getAbstract(row int) Component {
	return c.get(row)
}

// remove swaps the last row into row and truncates.
func (c *column[T]) remove(row int) {
	assert.That(row < len(c.components), "tried to remove component that doesn't exist")

	last := len(c.components) - 1
	c.components[row] = c.components[last]
	c.added[row] = c.added[last]
	c.changed[row] = c.changed[last]

	var zero T
	c.components[last] = zero
	c.components = c.components[:last]
	c.added = c.added[:last]
	c.changed = c.changed[:last]
}

// moveTo copies a row, ticks included, into the same component's column of another archetype.
func (c *column[T]) moveTo(dst abstractColumn, srcRow, dstRow int) {
	other, ok := dst.(*column[T])
	assert.That(ok, "mismatched column types for component %s", c.compName)
	other.components[dstRow] = c.components[srcRow]
	other.added[dstRow] = c.added[srcRow]
	other.changed[dstRow] = c.changed[srcRow]
}

func (c *column[T]) ticks(row int) (Tick, Tick) {
	return c.added[row], c.changed[row]
}

func (c *column[T]) checkTicks(now Tick) {
	for i := range c.added {
		c.added[i].CheckTick(now)
		c.changed[i].CheckTick(now)
	}
}

// columnGet reads a row of a column as T. Columns created from interface values are boxed, so
// this falls back to a type assertion when the column isn't a column[T].
func columnGet[T Component](col abstractColumn, row int) T {
	if typed, ok := col.(*column[T]); ok {
		return typed.get(row)
	}
	value, ok := col.getAbstract(row).(T)
	assert.That(ok, "column %s doesn't hold the requested type", col.name())
	return value
}

func columnSet[T Component](col abstractColumn, row int, value T, tick Tick) {
	if typed, ok := col.(*column[T]); ok {
		typed.set(row, value, tick)
		return
	}
	col.setAbstract(row, value, tick)
}
