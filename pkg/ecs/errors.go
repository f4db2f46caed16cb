package ecs

import "github.com/rotisserie/eris"

var (
	// ErrEntityNotFound is returned when attempting to operate on a non-existent entity.
	ErrEntityNotFound = eris.New("entity does not exist")

	// ErrComponentNotFound is returned when an entity doesn't contain the requested component or
	// the component type was never registered.
	ErrComponentNotFound = eris.New("component not found")

	// ErrResourceNotFound is returned when a resource of the requested type isn't in the world.
	ErrResourceNotFound = eris.New("resource does not exist")

	// ErrNotInitialized is returned when a system runs before Initialize was called.
	ErrNotInitialized = eris.New("system is not initialized")
)
