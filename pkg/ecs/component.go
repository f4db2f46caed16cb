package ecs

import (
	"reflect"
	"sync"

	"github.com/rotisserie/eris"
)

// Component is the interface that all components must implement.
// Components are pure data containers that can be attached to entities. Implement Name on a value
// receiver; the name must be unique and stay the same across program executions.
type Component interface { //nolint:iface // We may add more methods in the future.
	Name() string
}

// dataID identifies a component or resource type. Both share one id space so a single Access
// describes a system's whole footprint.
type dataID = uint32

// registry assigns data ids to component names and resource types.
type registry struct {
	mu         sync.RWMutex
	nextID     dataID
	components map[string]dataID       // Component name -> id
	types      map[dataID]reflect.Type // Component id -> Go type
	names      map[dataID]string       // Data id -> display name
	factories  map[dataID]columnFactory
	resources  map[reflect.Type]dataID
}

func newRegistry() registry {
	return registry{
		components: make(map[string]dataID),
		types:      make(map[dataID]reflect.Type),
		names:      make(map[dataID]string),
		factories:  make(map[dataID]columnFactory),
		resources:  make(map[reflect.Type]dataID),
	}
}

// registerComponent registers a component type and returns its id. Registering the same name and
// type twice is a no-op. Reusing a name for a different type is an error.
func (r *registry) registerComponent(name string, typ reflect.Type, factory columnFactory) (dataID, error) {
	if name == "" {
		return 0, eris.New("component name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.components[name]; exists {
		if r.types[id] != typ {
			return 0, eris.Errorf("component name %s is used by both %s and %s", name, r.types[id], typ)
		}
		return id, nil
	}

	id := r.nextID
	r.nextID++
	r.components[name] = id
	r.types[id] = typ
	r.names[id] = name
	r.factories[id] = factory
	return id, nil
}

// componentID returns the id of a registered component name.
func (r *registry) componentID(name string) (dataID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.components[name]
	if !exists {
		return 0, eris.Wrapf(ErrComponentNotFound, "component %s", name)
	}
	return id, nil
}

// resourceID returns the id of a resource type, registering it on first use.
func (r *registry) resourceID(typ reflect.Type) dataID {
	r.mu.RLock()
	id, exists := r.resources[typ]
	r.mu.RUnlock()
	if exists {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, exists := r.resources[typ]; exists {
		return id
	}
	id = r.nextID
	r.nextID++
	r.resources[typ] = id
	r.names[id] = typ.String()
	return id
}

func (r *registry) factory(id dataID) columnFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[id]
}

func (r *registry) name(id dataID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[id]
}

// RegisterComponent registers component type T and returns its id. Systems register the
// components they use during initialization, so calling this directly is only needed to fix ids
// up front.
func RegisterComponent[T Component](w *World) (uint32, error) {
	var zero T
	name := zero.Name()
	return w.registry.registerComponent(name, reflect.TypeFor[T](), newColumnFactory[T](name))
}

// ComponentID returns the id of component type T if it is registered.
func ComponentID[T Component](w *World) (uint32, bool) {
	var zero T
	id, err := w.registry.componentID(zero.Name())
	return id, err == nil
}

// ResourceID returns the id of resource type T, registering it on first use.
func ResourceID[T any](w *World) uint32 {
	return w.registry.resourceID(reflect.TypeFor[T]())
}

// registerValue registers the dynamic type of c. Components seen first as interface values get a
// boxed column; the typed accessors handle both column kinds.
func (w *World) registerValue(c Component) (dataID, error) {
	if c == nil {
		return 0, eris.New("component cannot be nil")
	}
	name := c.Name()
	return w.registry.registerComponent(name, reflect.TypeOf(c), newColumnFactory[Component](name))
}

// DataName returns the component name or resource type name behind an id.
func (w *World) DataName(id uint32) string {
	return w.registry.name(id)
}
