package cursor

import (
	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
)

// Plugin2D updates the cursor for 2D scenes from the cursor camera's orthographic view.
type Plugin2D struct{}

func (Plugin2D) Build(a *app.App) error {
	if err := a.AddPlugins(Plugin{}); err != nil {
		return err
	}
	a.AddSystem(app.Update{}, cursor2DSystem()).InSet(Provide())
	return nil
}

type cursor2DState struct {
	Lookup lookupState
	Cursor ecs.ResMut[WorldCursor]
}

func cursor2DSystem() ecs.Runnable {
	state := &cursor2DState{Lookup: newLookupState()}
	return ecs.NewSystem("cursor.WorldCursor2D", state, func(state *cursor2DState) error {
		vc, ok, err := state.Lookup.locate()
		if err != nil || !ok {
			return err
		}
		pos, err := vc.camera.ViewportToWorld2D(vc.transform, vc.pos, vc.size)
		if err != nil {
			return nil //nolint:nilerr // A degenerate viewport just means there's no cursor
		}
		store(&state.Cursor, pos)
		return nil
	})
}
