package ecs

import (
	"iter"
	"reflect"

	"github.com/argus-labs/cardinal-extras/pkg/assert"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// systemStateField is implemented by every field type a system state struct may hold.
type systemStateField interface {
	init(meta *fieldMeta) error
}

// tickedField is implemented by fields that need the system's change-detection window.
type tickedField interface {
	setTicks(ticks tickRange)
}

// deferredField is implemented by fields that queue work for ApplyDeferred.
type deferredField interface {
	applyDeferred(w *World)
}

var _ systemStateField = &BaseSystemState{}
var _ systemStateField = &Res[struct{}]{}
var _ systemStateField = &ResMut[struct{}]{}
var _ systemStateField = &Query{}
var _ systemStateField = &Commands{}
var _ systemStateField = &Contains[struct{}]{}
var _ systemStateField = &Exact[struct{}]{}
var _ systemStateField = &WithEventReceiver[struct{}]{}
var _ systemStateField = &WithEventEmitter[struct{}]{}

// fieldMeta is what a field sees while it initializes.
type fieldMeta struct {
	world     *World
	system    string
	exclusive bool
	access    *Access
	ticked    []tickedField
	deferred  []deferredField
}

// claim records access to id for one field and rejects fields of the same system that alias each
// other mutably.
func (m *fieldMeta) claim(id dataID, write bool) error {
	mode := m.access.Mode(id)
	if mode == AccessWrite || (write && mode != AccessNone) {
		return eris.Errorf("conflicting access to %s within system %s", m.world.DataName(id), m.system)
	}
	if write {
		m.access.AddWrite(id)
	} else {
		m.access.AddRead(id)
	}
	return nil
}

// initSystemFields initializes every field of state, walking into plain nested structs.
func initSystemFields(meta *fieldMeta, state any) error {
	value := reflect.ValueOf(state)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return eris.Errorf("system state must be a pointer to a struct, got %T", state)
	}
	return initStruct(meta, value.Elem())
}

func initStruct(meta *fieldMeta, value reflect.Value) error {
	for i := range value.NumField() {
		field := value.Field(i)
		fieldType := value.Type().Field(i)

		if !fieldType.IsExported() {
			return eris.Errorf("field %s must be exported", fieldType.Name)
		}

		instance := field.Addr().Interface()
		stateField, ok := instance.(systemStateField)
		if !ok {
			if field.Kind() == reflect.Struct {
				if err := initStruct(meta, field); err != nil {
					return eris.Wrapf(err, "in field %s", fieldType.Name)
				}
				continue
			}
			return eris.Errorf("field %s must be a system state field, got %s", fieldType.Name, fieldType.Type)
		}

		if err := stateField.init(meta); err != nil {
			return eris.Wrapf(err, "failed to initialize field %s", fieldType.Name)
		}
		if t, ok := instance.(tickedField); ok {
			meta.ticked = append(meta.ticked, t)
		}
		if d, ok := instance.(deferredField); ok {
			meta.deferred = append(meta.deferred, d)
		}
	}
	return nil
}

// -------------------------------------------------------------------------------------------------
// Base System State Field
// -------------------------------------------------------------------------------------------------

// BaseSystemState gives a system its logger and change ticks. Exclusive systems also get the
// world through World.
//
// Example:
//
//	type DebugSystemState struct {
//	    ecs.BaseSystemState
//	}
//
//	func DebugSystem(state *DebugSystemState) error {
//	    state.Logger().Debug().Msg("tick")
//	    return nil
//	}
type BaseSystemState struct {
	world     *World
	exclusive bool
	logger    zerolog.Logger
	ticks     tickRange
}

func (b *BaseSystemState) init(meta *fieldMeta) error {
	b.world = meta.world
	b.exclusive = meta.exclusive
	b.logger = meta.world.Logger().With().Str("system", meta.system).Logger()
	return nil
}

func (b *BaseSystemState) setTicks(ticks tickRange) {
	b.ticks = ticks
}

// Logger returns the system's logger.
func (b *BaseSystemState) Logger() *zerolog.Logger {
	return &b.logger
}

// World returns the world. Only exclusive systems may call it.
func (b *BaseSystemState) World() *World {
	assert.That(b.exclusive, "only exclusive systems can access the world directly")
	return b.world
}

// LastRun returns the tick of the system's previous run.
func (b *BaseSystemState) LastRun() Tick {
	return b.ticks.lastRun
}

// ThisRun returns the tick the system is running at.
func (b *BaseSystemState) ThisRun() Tick {
	return b.ticks.thisRun
}

// -------------------------------------------------------------------------------------------------
// Resource Fields
// -------------------------------------------------------------------------------------------------

// Res gives read-only access to the resource of type T.
type Res[T any] struct {
	world *World
	id    dataID
	ticks tickRange
}

func (r *Res[T]) init(meta *fieldMeta) error {
	r.world = meta.world
	r.id = ResourceID[T](meta.world)
	return meta.claim(r.id, false)
}

func (r *Res[T]) setTicks(ticks tickRange) {
	r.ticks = ticks
}

// Get returns the resource. A missing resource is a setup error and panics.
func (r *Res[T]) Get() *T {
	ptr, ok := r.TryGet()
	assert.That(ok, "resource %s does not exist", reflect.TypeFor[T]())
	return ptr
}

// TryGet returns the resource if it exists.
func (r *Res[T]) TryGet() (*T, bool) {
	cell, ok := r.world.resourceCell(r.id)
	if !ok {
		return nil, false
	}
	ptr, ok := cell.value.(*T)
	return ptr, ok
}

// Exists reports whether the resource exists.
func (r *Res[T]) Exists() bool {
	_, ok := r.world.resourceCell(r.id)
	return ok
}

// IsChanged reports whether the resource was added or changed since the system last ran.
func (r *Res[T]) IsChanged() bool {
	cell, ok := r.world.resourceCell(r.id)
	return ok && cell.changed.IsNewerThan(r.ticks.lastRun, r.ticks.thisRun)
}

// IsAdded reports whether the resource was added since the system last ran.
func (r *Res[T]) IsAdded() bool {
	cell, ok := r.world.resourceCell(r.id)
	return ok && cell.added.IsNewerThan(r.ticks.lastRun, r.ticks.thisRun)
}

// ResMut gives read-write access to the resource of type T. Get marks the resource changed.
type ResMut[T any] struct {
	Res[T]
}

func (r *ResMut[T]) init(meta *fieldMeta) error {
	r.world = meta.world
	r.id = ResourceID[T](meta.world)
	return meta.claim(r.id, true)
}

// Get returns the resource and marks it changed.
func (r *ResMut[T]) Get() *T {
	ptr, ok := r.TryGet()
	assert.That(ok, "resource %s does not exist", reflect.TypeFor[T]())
	return ptr
}

// TryGet returns the resource if it exists and marks it changed.
func (r *ResMut[T]) TryGet() (*T, bool) {
	cell, ok := r.world.resourceCell(r.id)
	if !ok {
		return nil, false
	}
	cell.changed = r.ticks.thisRun
	ptr, ok := cell.value.(*T)
	return ptr, ok
}

// Peek returns the resource without marking it changed.
func (r *ResMut[T]) Peek() (*T, bool) {
	return r.Res.TryGet()
}

// -------------------------------------------------------------------------------------------------
// Query Field
// -------------------------------------------------------------------------------------------------

// Query iterates over the entities matching a Filter. A nil Filter matches every entity. Set the
// filter before the system initializes, usually with NewQuery.
//
// Example:
//
//	type CleanupState struct {
//	    Cmds    ecs.Commands
//	    Expired ecs.Query
//	}
//
//	state := &CleanupState{Expired: ecs.NewQuery(ecs.With[Expired]())}
type Query struct {
	Filter Filter

	world *World
	bound boundFilter
	ticks tickRange
}

// NewQuery returns a query with the given filter.
func NewQuery(filter Filter) Query {
	return Query{Filter: filter}
}

func (q *Query) init(meta *fieldMeta) error {
	bound, err := bindFilter(meta.world, meta.access, q.Filter)
	if err != nil {
		return err
	}
	q.world = meta.world
	q.bound = bound
	return nil
}

func (q *Query) setTicks(ticks tickRange) {
	q.ticks = ticks
}

// Iter iterates over the matching entities. The world must not be changed structurally while
// iterating; collect the ids first if needed.
func (q *Query) Iter() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		for _, arch := range q.world.archetypes {
			if !q.bound.matchArchetype(arch) {
				continue
			}
			for row, eid := range arch.entities {
				if !q.bound.matchRow(arch, row, q.ticks) {
					continue
				}
				if !yield(eid) {
					return
				}
			}
		}
	}
}

// Count returns the number of matching entities.
func (q *Query) Count() int {
	n := 0
	for range q.Iter() {
		n++
	}
	return n
}

// IsEmpty reports whether no entity matches.
func (q *Query) IsEmpty() bool {
	for range q.Iter() {
		return false
	}
	return true
}

// Single returns the only matching entity. It returns false when zero or several entities match.
func (q *Query) Single() (EntityID, bool) {
	var found EntityID
	n := 0
	for eid := range q.Iter() {
		found = eid
		n++
		if n > 1 {
			return 0, false
		}
	}
	return found, n == 1
}

// Matches reports whether eid matches the query.
func (q *Query) Matches(eid EntityID) bool {
	arch, ok := q.world.entities.archetypeOf(eid)
	if !ok || !q.bound.matchArchetype(arch) {
		return false
	}
	return q.bound.matchRow(arch, arch.rows[eid], q.ticks)
}

// -------------------------------------------------------------------------------------------------
// Component Search Fields
// -------------------------------------------------------------------------------------------------

// search provides typed component access for the entities that have every component named in T.
// T must be a struct whose fields are all Ref[Component] or View[Component], e.g.:
//
//	type Particle struct {
//	    Position ecs.Ref[Position]
//	    Velocity ecs.View[Velocity]
//	}
//
// Ref fields are written, View fields only read, which is what the scheduler uses to decide which
// systems may run in parallel. An optional filter narrows the match further.
type search[T any] struct {
	world      *World
	components bitmap.Bitmap
	ids        []dataID
	fields     []ref
	result     T
	filter     Filter
	bound      boundFilter
	ticks      tickRange
}

func (s *search[T]) init(meta *fieldMeta) error {
	resultType := reflect.TypeFor[T]()
	if resultType.Kind() != reflect.Struct {
		return eris.Errorf("search type must be a struct, got %s", resultType)
	}
	resultValue := reflect.ValueOf(&s.result).Elem()

	s.world = meta.world
	s.components = bitmap.Bitmap{}
	s.ids = make([]dataID, resultType.NumField())
	s.fields = make([]ref, resultType.NumField())

	for i := range resultType.NumField() {
		field := resultType.Field(i)
		fieldRef, ok := resultValue.Field(i).Addr().Interface().(ref)
		if !ok {
			return eris.Errorf("field %s must be Ref[Component] or View[Component], got %s", field.Name, field.Type)
		}

		cid, err := fieldRef.register(meta.world)
		if err != nil {
			return err
		}
		if err := meta.claim(cid, fieldRef.writes()); err != nil {
			return err
		}
		s.ids[i] = cid
		s.fields[i] = fieldRef
		s.components.Set(cid)
	}

	bound, err := bindFilter(meta.world, meta.access, s.filter)
	if err != nil {
		return err
	}
	s.bound = bound
	return nil
}

func (s *search[T]) setTicks(ticks tickRange) {
	s.ticks = ticks
}

// attach points every field of the result at row of arch.
func (s *search[T]) attach(arch *archetype, row int) {
	for i, field := range s.fields {
		field.attach(arch.columns[s.ids[i]], row, s.ticks)
	}
}

func (s *search[T]) iter(match func(*archetype) bool) iter.Seq2[EntityID, T] {
	return func(yield func(EntityID, T) bool) {
		for _, arch := range s.world.archetypes {
			if !match(arch) || !s.bound.matchArchetype(arch) {
				continue
			}
			for row, eid := range arch.entities {
				if !s.bound.matchRow(arch, row, s.ticks) {
					continue
				}
				s.attach(arch, row)
				if !yield(eid, s.result) {
					return
				}
			}
		}
	}
}

func (s *search[T]) get(eid EntityID, match func(*archetype) bool) (T, bool) {
	arch, ok := s.world.entities.archetypeOf(eid)
	if !ok || !match(arch) || !s.bound.matchArchetype(arch) {
		var zero T
		return zero, false
	}
	row := arch.rows[eid]
	if !s.bound.matchRow(arch, row, s.ticks) {
		var zero T
		return zero, false
	}
	s.attach(arch, row)
	return s.result, true
}

// Contains matches entities that have every component in T, possibly along with others.
//
// Example:
//
//	type MovementSystemState struct {
//	    Movers ecs.Contains[struct {
//	        Position ecs.Ref[Position]
//	        Velocity ecs.View[Velocity]
//	    }]
//	}
type Contains[T any] struct{ search[T] }

// NewContains returns a Contains narrowed by filter.
func NewContains[T any](filter Filter) Contains[T] {
	return Contains[T]{search[T]{filter: filter}}
}

// Iter iterates over the matching entities and their components.
func (c *Contains[T]) Iter() iter.Seq2[EntityID, T] {
	return c.iter(c.matches)
}

// Get returns the components of eid if it matches.
func (c *Contains[T]) Get(eid EntityID) (T, bool) {
	return c.get(eid, c.matches)
}

// Single returns the components of the only matching entity.
func (c *Contains[T]) Single() (EntityID, T, bool) {
	return single(c.Iter())
}

func (c *Contains[T]) matches(arch *archetype) bool {
	return arch.contains(c.components)
}

// Exact matches entities that have exactly the components in T and nothing else.
type Exact[T any] struct{ search[T] }

// NewExact returns an Exact narrowed by filter.
func NewExact[T any](filter Filter) Exact[T] {
	return Exact[T]{search[T]{filter: filter}}
}

// Iter iterates over the matching entities and their components.
func (e *Exact[T]) Iter() iter.Seq2[EntityID, T] {
	return e.iter(e.matches)
}

// Get returns the components of eid if it matches.
func (e *Exact[T]) Get(eid EntityID) (T, bool) {
	return e.get(eid, e.matches)
}

func (e *Exact[T]) matches(arch *archetype) bool {
	return arch.exact(e.components)
}

func single[T any](seq iter.Seq2[EntityID, T]) (EntityID, T, bool) {
	var (
		found  EntityID
		result T
		n      int
	)
	for eid, r := range seq {
		n++
		if n > 1 {
			var zero T
			return 0, zero, false
		}
		found, result = eid, r
	}
	return found, result, n == 1
}

// -------------------------------------------------------------------------------------------------
// Component Handles
// -------------------------------------------------------------------------------------------------

// ref is an internal interface for component handles.
type ref interface {
	register(w *World) (dataID, error)
	writes() bool
	attach(col abstractColumn, row int, ticks tickRange)
}

var _ ref = &Ref[Component]{}
var _ ref = &View[Component]{}

// handle is the shared part of Ref and View.
type handle[T Component] struct {
	col   abstractColumn
	row   int
	ticks tickRange
}

func (h *handle[T]) register(w *World) (dataID, error) {
	return RegisterComponent[T](w)
}

func (h *handle[T]) attach(col abstractColumn, row int, ticks tickRange) {
	h.col = col
	h.row = row
	h.ticks = ticks
}

// Get returns the component value.
func (h *handle[T]) Get() T {
	return columnGet[T](h.col, h.row)
}

// IsAdded reports whether the component was added since the system last ran.
func (h *handle[T]) IsAdded() bool {
	added, _ := h.col.ticks(h.row)
	return added.IsNewerThan(h.ticks.lastRun, h.ticks.thisRun)
}

// IsChanged reports whether the component was added or written since the system last ran.
func (h *handle[T]) IsChanged() bool {
	_, changed := h.col.ticks(h.row)
	return changed.IsNewerThan(h.ticks.lastRun, h.ticks.thisRun)
}

// Ref is a read-write handle to a component of the current entity.
type Ref[T Component] struct{ handle[T] }

func (r *Ref[T]) writes() bool { return true }

// Set writes the component and marks it changed.
func (r *Ref[T]) Set(component T) {
	columnSet(r.col, r.row, component, r.ticks.thisRun)
}

// View is a read-only handle to a component of the current entity. Systems that only view a
// component can run in parallel with each other.
type View[T Component] struct{ handle[T] }

func (v *View[T]) writes() bool { return false }

// -------------------------------------------------------------------------------------------------
// Event Fields
// -------------------------------------------------------------------------------------------------

// WithEventEmitter lets a system send events of type T. The event type is registered when the
// system initializes.
type WithEventEmitter[T any] struct {
	world *World
	id    dataID
}

func (e *WithEventEmitter[T]) init(meta *fieldMeta) error {
	RegisterEvent[T](meta.world)
	e.world = meta.world
	e.id = ResourceID[Events[T]](meta.world)
	return meta.claim(e.id, true)
}

// Emit sends an event.
func (e *WithEventEmitter[T]) Emit(event T) {
	events, ok := Resource[Events[T]](e.world)
	assert.That(ok, "event %s not registered", reflect.TypeFor[T]())
	events.Send(event)
}

// WithEventReceiver lets a system read events of type T. Each receiver sees each event once.
type WithEventReceiver[T any] struct {
	world  *World
	id     dataID
	cursor uint64
}

func (e *WithEventReceiver[T]) init(meta *fieldMeta) error {
	RegisterEvent[T](meta.world)
	e.world = meta.world
	e.id = ResourceID[Events[T]](meta.world)
	return meta.claim(e.id, false)
}

func (e *WithEventReceiver[T]) events() *Events[T] {
	events, ok := Resource[Events[T]](e.world)
	assert.That(ok, "event %s not registered", reflect.TypeFor[T]())
	return events
}

// Iter iterates over the unread events and marks them read.
func (e *WithEventReceiver[T]) Iter() iter.Seq[T] {
	events := e.events()
	cursor := e.cursor
	e.cursor = events.count
	return events.since(cursor)
}

// Len returns the number of unread events without marking them read.
func (e *WithEventReceiver[T]) Len() int {
	return e.events().unread(e.cursor)
}

// IsEmpty reports whether there are no unread events.
func (e *WithEventReceiver[T]) IsEmpty() bool {
	return e.Len() == 0
}

// Clear marks every event read.
func (e *WithEventReceiver[T]) Clear() {
	e.cursor = e.events().count
}
