package ecs

// Filter narrows down which entities a Query or search visits. Filters are descriptions; they are
// bound to a world when the system that owns them initializes, so one Filter value can be shared
// by systems of different worlds.
type Filter interface {
	bind(w *World, access *Access) (boundFilter, error)
}

// boundFilter is a Filter resolved against a world's component ids. An entity matches when both
// matchArchetype and matchRow hold.
type boundFilter interface {
	matchArchetype(a *archetype) bool
	matchRow(a *archetype, row int, ticks tickRange) bool
	archetypeOnly() bool
}

// tickRange is the window a system looks at for change detection.
type tickRange struct {
	lastRun Tick
	thisRun Tick
}

// -------------------------------------------------------------------------------------------------
// Component presence
// -------------------------------------------------------------------------------------------------

type presenceFilter[T Component] struct{ want bool }

// With matches entities that have component T.
func With[T Component]() Filter { return presenceFilter[T]{want: true} }

// Without matches entities that don't have component T.
func Without[T Component]() Filter { return presenceFilter[T]{want: false} }

// Presence filters don't read component data so they don't add to the access.
func (f presenceFilter[T]) bind(w *World, _ *Access) (boundFilter, error) {
	id, err := RegisterComponent[T](w)
	if err != nil {
		return nil, err
	}
	return boundPresence{id: id, want: f.want}, nil
}

type boundPresence struct {
	id   dataID
	want bool
}

func (b boundPresence) matchArchetype(a *archetype) bool { return a.has(b.id) == b.want }
func (b boundPresence) matchRow(*archetype, int, tickRange) bool { return true }
func (b boundPresence) archetypeOnly() bool { return true }

// -------------------------------------------------------------------------------------------------
// Change detection
// -------------------------------------------------------------------------------------------------

type tickFilter[T Component] struct{ added bool }

// Added matches entities whose component T was added since the system last ran.
func Added[T Component]() Filter { return tickFilter[T]{added: true} }

// Changed matches entities whose component T was added or written since the system last ran.
func Changed[T Component]() Filter { return tickFilter[T]{added: false} }

func (f tickFilter[T]) bind(w *World, access *Access) (boundFilter, error) {
	id, err := RegisterComponent[T](w)
	if err != nil {
		return nil, err
	}
	access.AddRead(id)
	return boundTick(f.added, id), nil
}

type boundTickFilter struct {
	id    dataID
	added bool
}

func boundTick(added bool, id dataID) boundFilter {
	return boundTickFilter{id: id, added: added}
}

func (b boundTickFilter) matchArchetype(a *archetype) bool { return a.has(b.id) }

func (b boundTickFilter) matchRow(a *archetype, row int, ticks tickRange) bool {
	added, changed := a.columns[b.id].ticks(row)
	if b.added {
		return added.IsNewerThan(ticks.lastRun, ticks.thisRun)
	}
	return changed.IsNewerThan(ticks.lastRun, ticks.thisRun)
}

func (b boundTickFilter) archetypeOnly() bool { return false }

// -------------------------------------------------------------------------------------------------
// Combinators
// -------------------------------------------------------------------------------------------------

type allFilter []Filter

// All matches entities that match every filter.
func All(filters ...Filter) Filter { return allFilter(filters) }

func (f allFilter) bind(w *World, access *Access) (boundFilter, error) {
	bound, err := bindAll(w, access, f)
	return boundAll(bound), err
}

type boundAll []boundFilter

func (b boundAll) matchArchetype(a *archetype) bool {
	for _, f := range b {
		if !f.matchArchetype(a) {
			return false
		}
	}
	return true
}

func (b boundAll) matchRow(a *archetype, row int, ticks tickRange) bool {
	for _, f := range b {
		if !f.matchRow(a, row, ticks) {
			return false
		}
	}
	return true
}

func (b boundAll) archetypeOnly() bool {
	for _, f := range b {
		if !f.archetypeOnly() {
			return false
		}
	}
	return true
}

type anyFilter []Filter

// AnyOf matches entities that match at least one filter.
func AnyOf(filters ...Filter) Filter { return anyFilter(filters) }

func (f anyFilter) bind(w *World, access *Access) (boundFilter, error) {
	bound, err := bindAll(w, access, f)
	return boundAny(bound), err
}

type boundAny []boundFilter

func (b boundAny) matchArchetype(a *archetype) bool {
	for _, f := range b {
		if f.matchArchetype(a) {
			return true
		}
	}
	return false
}

func (b boundAny) matchRow(a *archetype, row int, ticks tickRange) bool {
	for _, f := range b {
		if f.matchArchetype(a) && f.matchRow(a, row, ticks) {
			return true
		}
	}
	return false
}

func (b boundAny) archetypeOnly() bool {
	return boundAll(b).archetypeOnly()
}

type notFilter struct{ inner Filter }

// Not matches entities that don't match f.
func Not(f Filter) Filter { return notFilter{inner: f} }

func (f notFilter) bind(w *World, access *Access) (boundFilter, error) {
	inner, err := f.inner.bind(w, access)
	if err != nil {
		return nil, err
	}
	return boundNot{inner: inner}, nil
}

type boundNot struct{ inner boundFilter }

func (b boundNot) matchArchetype(a *archetype) bool {
	// A row-level inner filter can only be negated per row.
	if !b.inner.archetypeOnly() {
		return true
	}
	return !b.inner.matchArchetype(a)
}

func (b boundNot) matchRow(a *archetype, row int, ticks tickRange) bool {
	if b.inner.archetypeOnly() {
		return true
	}
	return !(b.inner.matchArchetype(a) && b.inner.matchRow(a, row, ticks))
}

func (b boundNot) archetypeOnly() bool { return b.inner.archetypeOnly() }

// matchEverything is used when a query has no filter.
type matchEverything struct{}

func (matchEverything) matchArchetype(*archetype) bool { return true }
func (matchEverything) matchRow(*archetype, int, tickRange) bool { return true }
func (matchEverything) archetypeOnly() bool { return true }

func bindAll(w *World, access *Access, filters []Filter) ([]boundFilter, error) {
	bound := make([]boundFilter, 0, len(filters))
	for _, f := range filters {
		b, err := bindFilter(w, access, f)
		if err != nil {
			return nil, err
		}
		bound = append(bound, b)
	}
	return bound, nil
}

func bindFilter(w *World, access *Access, f Filter) (boundFilter, error) {
	if f == nil {
		return matchEverything{}, nil
	}
	return f.bind(w, access)
}
