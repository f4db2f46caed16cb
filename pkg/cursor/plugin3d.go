package cursor

import (
	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/condition"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/jakecoffman/cp"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plugin3DGround projects the cursor onto the GroundPlane and stores the plane-local X and Z. It
// only runs on ticks with a CursorMoved event, a 3D cursor camera and a ground plane.
type Plugin3DGround struct{}

func (Plugin3DGround) Build(a *app.App) error {
	if err := a.AddPlugins(Plugin{}); err != nil {
		return err
	}
	a.AddSystem(app.Update{}, cursor3DSystem()).
		RunIf(condition.OnEvent[view.CursorMoved]()).
		RunIf(condition.AnyFilter(ecs.All(ecs.With[view.Camera3D](), ecs.With[WorldCursorCamera]()))).
		RunIf(condition.AnyWithComponent[GroundPlane]()).
		InSet(Provide())
	return nil
}

type cursor3DState struct {
	ecs.BaseSystemState
	Lookup lookupState
	Cursor ecs.ResMut[WorldCursor]
	Planes ecs.Contains[struct {
		Transform ecs.View[view.GlobalTransform]
	}]
}

func cursor3DSystem() ecs.Runnable {
	state := &cursor3DState{Lookup: newLookupState()}
	state.Planes = ecs.NewContains[struct {
		Transform ecs.View[view.GlobalTransform]
	}](ecs.With[GroundPlane]())

	return ecs.NewSystem("cursor.WorldCursor3DGround", state, func(state *cursor3DState) error {
		_, plane, ok := state.Planes.Single()
		if !ok {
			return nil
		}
		vc, ok, err := state.Lookup.locate()
		if err != nil {
			state.Logger().Error().Err(err).Msg("cannot compute the 3D cursor")
			return nil
		}
		if !ok {
			return nil
		}
		ray, err := vc.camera.ViewportToWorld(vc.transform, vc.pos, vc.size)
		if err != nil {
			return nil //nolint:nilerr // A degenerate viewport just means there's no cursor
		}

		xf := plane.Transform.Get()
		distance, ok := ray.IntersectPlane(xf.Translation, xf.Up)
		if !ok {
			return nil
		}
		local := xf.InverseTransformPoint(ray.At(distance))
		store(&state.Cursor, groundPoint(local))
		return nil
	})
}

func groundPoint(local r3.Vec) cp.Vector {
	return cp.Vector{X: local.X, Y: local.Z}
}
