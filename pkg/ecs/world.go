package ecs

import (
	"iter"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// World holds every entity, component, and resource, plus the change tick that systems use to
// detect what changed since they last ran.
type World struct {
	registry   registry
	entities   entityManager
	archetypes []*archetype
	archIndex  map[string]*archetype // Component set key -> archetype

	resMu     sync.RWMutex
	resources map[dataID]*resourceCell

	eventMu       sync.Mutex
	eventUpdaters map[reflect.Type]func()

	changeTick    atomic.Uint32
	lastCheckTick Tick

	logger zerolog.Logger
	tracer trace.Tracer
}

// resourceCell stores a resource as a pointer so handed out *T stay valid across inserts.
type resourceCell struct {
	value   any
	added   Tick
	changed Tick
}

// NewWorld creates an empty world.
func NewWorld() *World {
	w := &World{
		registry:      newRegistry(),
		entities:      newEntityManager(),
		archetypes:    make([]*archetype, 0),
		archIndex:     make(map[string]*archetype),
		resources:     make(map[dataID]*resourceCell),
		eventUpdaters: make(map[reflect.Type]func()),
		logger:        zerolog.Nop(),
		tracer:        noop.NewTracerProvider().Tracer("ecs"),
	}
	w.changeTick.Store(1)
	// The empty archetype always exists so spawning without components doesn't allocate one.
	w.archetypeFor(bitmap.Bitmap{})
	return w
}

// SetLogger replaces the world's logger. Systems derive their loggers from it at initialization.
func (w *World) SetLogger(logger zerolog.Logger) {
	w.logger = logger
}

// Logger returns the world's logger.
func (w *World) Logger() *zerolog.Logger {
	return &w.logger
}

// SetTracer replaces the tracer schedules start their spans with. A nil tracer restores the
// noop one.
func (w *World) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("ecs")
	}
	w.tracer = tracer
}

// -------------------------------------------------------------------------------------------------
// Change ticks
// -------------------------------------------------------------------------------------------------

// ChangeTick returns the current change tick. Writes made outside systems are stamped with it.
func (w *World) ChangeTick() Tick {
	return Tick(w.changeTick.Load())
}

// IncrementChangeTick advances the change tick and returns the value before the increment, which
// is the tick the caller runs at.
func (w *World) IncrementChangeTick() Tick {
	return Tick(w.changeTick.Add(1) - 1)
}

// LastCheckTick returns the tick at which stored ticks were last clamped.
func (w *World) LastCheckTick() Tick {
	return w.lastCheckTick
}

// CheckChangeTicks clamps every stored component and resource tick once CheckTickThreshold ticks
// have passed since the previous check. Returns true if a check ran, in which case the caller
// should clamp its systems' ticks too.
func (w *World) CheckChangeTicks() bool {
	now := w.ChangeTick()
	if uint32(now-w.lastCheckTick) < CheckTickThreshold {
		return false
	}

	for _, arch := range w.archetypes {
		for _, col := range arch.columns {
			col.checkTicks(now)
		}
	}

	w.resMu.Lock()
	for _, cell := range w.resources {
		cell.added.CheckTick(now)
		cell.changed.CheckTick(now)
	}
	w.resMu.Unlock()

	w.lastCheckTick = now
	return true
}

// -------------------------------------------------------------------------------------------------
// Entities
// -------------------------------------------------------------------------------------------------

// Spawn creates an entity with the given components. Unregistered component types are registered
// on the fly.
func (w *World) Spawn(components ...Component) (EntityID, error) {
	eid, err := w.entities.reserve()
	if err != nil {
		return 0, err
	}
	if err := w.spawnReserved(eid, components); err != nil {
		w.entities.release(eid)
		return 0, err
	}
	return eid, nil
}

// spawnReserved places a reserved id into the archetype matching components.
func (w *World) spawnReserved(eid EntityID, components []Component) error {
	ids, mask, err := w.componentIDs(components)
	if err != nil {
		return err
	}

	tick := w.ChangeTick()
	arch := w.archetypeFor(mask)
	row := arch.newEntity(eid, tick)
	for i, c := range components {
		arch.columns[ids[i]].setAbstract(row, c, tick)
	}
	w.entities.place(eid, arch)
	return nil
}

// Alive reports whether eid exists in the world.
func (w *World) Alive(eid EntityID) bool {
	_, ok := w.entities.archetypeOf(eid)
	return ok
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return w.entities.count()
}

// Entities iterates over every live entity in archetype order.
func (w *World) Entities() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		for _, arch := range w.archetypes {
			for _, eid := range arch.entities {
				if !yield(eid) {
					return
				}
			}
		}
	}
}

// Despawn removes an entity and all its components. If the entity has a Parent, it is also
// removed from the parent's Children.
func (w *World) Despawn(eid EntityID) error {
	arch, ok := w.entities.archetypeOf(eid)
	if !ok {
		return eris.Wrapf(ErrEntityNotFound, "entity %d", eid)
	}

	if parent, err := Get[Parent](w, eid); err == nil {
		w.detachChild(parent.ID, eid)
	}

	arch.removeEntity(eid)
	w.entities.release(eid)
	return nil
}

// Insert adds the given components to an entity, overwriting components it already has.
func (w *World) Insert(eid EntityID, components ...Component) error {
	arch, ok := w.entities.archetypeOf(eid)
	if !ok {
		return eris.Wrapf(ErrEntityNotFound, "entity %d", eid)
	}

	ids, mask, err := w.componentIDs(components)
	if err != nil {
		return err
	}

	tick := w.ChangeTick()
	row := arch.rows[eid]
	orInto(&mask, arch.components)
	if !arch.exact(mask) {
		dst := w.archetypeFor(mask)
		row = arch.moveEntity(dst, eid, tick)
		w.entities.place(eid, dst)
		arch = dst
	}

	for i, c := range components {
		arch.columns[ids[i]].setAbstract(row, c, tick)
	}
	return nil
}

// removeComponent moves eid to the archetype without component id.
func (w *World) removeComponent(eid EntityID, id dataID) error {
	arch, ok := w.entities.archetypeOf(eid)
	if !ok {
		return eris.Wrapf(ErrEntityNotFound, "entity %d", eid)
	}
	if !arch.has(id) {
		return eris.Wrapf(ErrComponentNotFound, "entity %d has no %s", eid, w.registry.name(id))
	}

	mask := arch.components.Clone(nil)
	mask.Remove(id)
	dst := w.archetypeFor(mask)
	arch.moveEntity(dst, eid, w.ChangeTick())
	w.entities.place(eid, dst)
	return nil
}

// RemoveByName removes the component with the given name from an entity.
func (w *World) RemoveByName(eid EntityID, name string) error {
	id, err := w.registry.componentID(name)
	if err != nil {
		return err
	}
	return w.removeComponent(eid, id)
}

// Components returns a copy of every component on an entity.
func (w *World) Components(eid EntityID) ([]Component, error) {
	arch, ok := w.entities.archetypeOf(eid)
	if !ok {
		return nil, eris.Wrapf(ErrEntityNotFound, "entity %d", eid)
	}
	row := arch.rows[eid]
	components := make([]Component, 0, arch.compCount)
	arch.components.Range(func(id uint32) {
		components = append(components, arch.columns[id].getAbstract(row))
	})
	return components, nil
}

// componentIDs registers the components' types and returns their ids and the combined set.
func (w *World) componentIDs(components []Component) ([]dataID, bitmap.Bitmap, error) {
	ids := make([]dataID, len(components))
	var mask bitmap.Bitmap
	for i, c := range components {
		id, err := w.registerValue(c)
		if err != nil {
			return nil, mask, eris.Wrap(err, "failed to register component")
		}
		ids[i] = id
		mask.Set(id)
	}
	return ids, mask, nil
}

// archetypeFor returns the archetype for a component set, creating it if needed.
func (w *World) archetypeFor(components bitmap.Bitmap) *archetype {
	key := bitmapKey(components)
	if arch, ok := w.archIndex[key]; ok {
		return arch
	}

	columns := make(map[dataID]abstractColumn, components.Count())
	components.Range(func(id uint32) {
		columns[id] = w.registry.factory(id)()
	})

	arch := newArchetype(len(w.archetypes), components.Clone(nil), columns)
	w.archetypes = append(w.archetypes, arch)
	w.archIndex[key] = arch
	return arch
}

// locate returns the column and row holding component id of eid.
func (w *World) locate(eid EntityID, id dataID) (abstractColumn, int, error) {
	arch, ok := w.entities.archetypeOf(eid)
	if !ok {
		return nil, 0, eris.Wrapf(ErrEntityNotFound, "entity %d", eid)
	}
	col, ok := arch.columns[id]
	if !ok {
		return nil, 0, eris.Wrapf(ErrComponentNotFound, "entity %d has no %s", eid, w.registry.name(id))
	}
	return col, arch.rows[eid], nil
}

// -------------------------------------------------------------------------------------------------
// Typed component access
// -------------------------------------------------------------------------------------------------

// Get gets a component from an entity.
// Returns an error if the entity doesn't exist or doesn't contain the component type.
func Get[T Component](w *World, eid EntityID) (T, error) {
	var zero T
	id, err := w.registry.componentID(zero.Name())
	if err != nil {
		return zero, err
	}
	col, row, err := w.locate(eid, id)
	if err != nil {
		return zero, err
	}
	return columnGet[T](col, row), nil
}

// Set sets a component on an entity. If the entity has the component it is overwritten and marked
// changed, otherwise it is added.
func Set[T Component](w *World, eid EntityID, component T) error {
	id, err := RegisterComponent[T](w)
	if err != nil {
		return err
	}
	col, row, err := w.locate(eid, id)
	if eris.Is(err, ErrComponentNotFound) {
		return w.Insert(eid, component)
	}
	if err != nil {
		return err
	}
	columnSet(col, row, component, w.ChangeTick())
	return nil
}

// Remove removes a component from an entity.
// Returns an error if the entity or the component to remove doesn't exist.
func Remove[T Component](w *World, eid EntityID) error {
	var zero T
	id, err := w.registry.componentID(zero.Name())
	if err != nil {
		return err
	}
	return w.removeComponent(eid, id)
}

// Has checks if an entity has a specific component type.
func Has[T Component](w *World, eid EntityID) bool {
	_, err := Get[T](w, eid)
	return err == nil
}

// -------------------------------------------------------------------------------------------------
// Resources
// -------------------------------------------------------------------------------------------------

// FromWorld is implemented by resources that build their initial value from the world. It is used
// by InitResource.
type FromWorld interface {
	FromWorld(w *World)
}

// InsertResource stores value as the resource of type T, replacing the current value if any.
// Pointers returned earlier keep pointing at the live value.
func InsertResource[T any](w *World, value T) *T {
	id := ResourceID[T](w)
	tick := w.ChangeTick()

	w.resMu.Lock()
	defer w.resMu.Unlock()

	if cell, ok := w.resources[id]; ok {
		ptr, _ := cell.value.(*T)
		*ptr = value
		cell.changed = tick
		return ptr
	}

	ptr := &value
	w.resources[id] = &resourceCell{value: ptr, added: tick, changed: tick}
	return ptr
}

// Resource returns the resource of type T.
func Resource[T any](w *World) (*T, bool) {
	cell, ok := w.resourceCell(ResourceID[T](w))
	if !ok {
		return nil, false
	}
	ptr, ok := cell.value.(*T)
	return ptr, ok
}

// MustResource returns the resource of type T and panics if it's missing. A missing resource here
// is a setup mistake the caller cannot recover from.
func MustResource[T any](w *World) *T {
	ptr, ok := Resource[T](w)
	if !ok {
		panic(eris.Wrapf(ErrResourceNotFound, "resource %s", reflect.TypeFor[T]()).Error())
	}
	return ptr
}

// HasResource reports whether a resource of type T exists.
func HasResource[T any](w *World) bool {
	_, ok := w.resourceCell(ResourceID[T](w))
	return ok
}

// RemoveResource removes the resource of type T. Returns false if it didn't exist.
func RemoveResource[T any](w *World) bool {
	id := ResourceID[T](w)

	w.resMu.Lock()
	defer w.resMu.Unlock()

	if _, ok := w.resources[id]; !ok {
		return false
	}
	delete(w.resources, id)
	return true
}

// InitResource inserts the resource of type T if it doesn't exist yet. The initial value comes
// from FromWorld when *T implements it, otherwise it's T's zero value.
func InitResource[T any](w *World) *T {
	if ptr, ok := Resource[T](w); ok {
		return ptr
	}
	var value T
	if fw, ok := any(&value).(FromWorld); ok {
		fw.FromWorld(w)
	}
	return InsertResource(w, value)
}

// ResourceChangedSince reports whether the resource of type T was added or changed after since.
func ResourceChangedSince[T any](w *World, since Tick) bool {
	cell, ok := w.resourceCell(ResourceID[T](w))
	if !ok {
		return false
	}
	return cell.changed.IsNewerThan(since, w.ChangeTick())
}

func (w *World) resourceCell(id dataID) (*resourceCell, bool) {
	w.resMu.RLock()
	defer w.resMu.RUnlock()
	cell, ok := w.resources[id]
	return cell, ok
}
