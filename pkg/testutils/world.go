package testutils

import (
	"testing"

	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/stretchr/testify/require"
)

// NewApp returns an app with a small task pool and a fast tick rate.
func NewApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(app.Options{Name: t.Name(), TickRate: 1000, TaskPoolSize: 2})
	require.NoError(t, err)
	return a
}

// Initialize initializes sys against w.
func Initialize[In, Out any](t *testing.T, w *ecs.World, sys ecs.System[In, Out]) {
	t.Helper()
	require.NoError(t, sys.Initialize(w))
}

// RunSystem initializes sys if needed, runs it once and applies its deferred changes.
func RunSystem(t *testing.T, w *ecs.World, sys ecs.Runnable) {
	t.Helper()
	require.NoError(t, sys.Initialize(w))
	_, err := sys.Run(w, struct{}{})
	require.NoError(t, err)
	sys.ApplyDeferred(w)
}

// RunWith is RunSystem for systems with an input and an output.
func RunWith[In, Out any](t *testing.T, w *ecs.World, sys ecs.System[In, Out], in In) Out {
	t.Helper()
	require.NoError(t, sys.Initialize(w))
	out, err := sys.Run(w, in)
	require.NoError(t, err)
	sys.ApplyDeferred(w)
	return out
}

// Eval initializes cond if needed and returns its result.
func Eval(t *testing.T, w *ecs.World, cond ecs.Condition) bool {
	t.Helper()
	return RunWith(t, w, cond, struct{}{})
}

// MustSpawn spawns an entity and fails the test on error.
func MustSpawn(t *testing.T, w *ecs.World, components ...ecs.Component) ecs.EntityID {
	t.Helper()
	eid, err := w.Spawn(components...)
	require.NoError(t, err)
	return eid
}
