// Package cursor keeps the world-space position of the mouse cursor in the WorldCursor resource.
//
// Add Plugin2D for 2D scenes, or Plugin3DGround to project the cursor onto a ground plane. Both
// write during stageset.Provide(Set{}); systems that consume the cursor go in stageset.Want or
// stageset.WantChanged, which only runs on ticks where the cursor moved.
package cursor

import (
	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/condition"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/stageset"
	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/jakecoffman/cp"
	"github.com/rotisserie/eris"
)

// ErrNotWindowTarget is returned when the cursor camera doesn't render to a window.
var ErrNotWindowTarget = eris.New("cursor camera must render to a window")

// Set labels the cursor stage set.
type Set struct{}

func (Set) String() string { return "WorldCursor" }

// WorldCursor is the cursor position in world space and its position before the last move.
type WorldCursor struct {
	Pos     cp.Vector
	PosPrev cp.Vector
}

// WorldCursorCamera marks the camera the cursor is computed for. Exactly one camera should carry
// it; with none or several the cursor isn't updated.
type WorldCursorCamera struct{}

func (WorldCursorCamera) Name() string { return "cursor.WorldCursorCamera" }

// GroundPlane marks the entity whose local XZ plane the 3D cursor is projected onto.
type GroundPlane struct{}

func (GroundPlane) Name() string { return "cursor.GroundPlane" }

// Plugin sets up the WorldCursor resource and the stage set. Plugin2D and Plugin3DGround add it.
type Plugin struct{}

func (Plugin) Build(a *app.App) error {
	ecs.InitResource[WorldCursor](a.World())
	stageset.Configure(a.Schedule(app.Update{}), Set{}, condition.ResourceChanged[WorldCursor]())
	return nil
}

// Provide returns the stage set the cursor is written in.
func Provide() stageset.Stage[Set] {
	return stageset.Of(stageset.Provide, Set{})
}

// -------------------------------------------------------------------------------------------------
// Shared lookup
// -------------------------------------------------------------------------------------------------

type windowView = struct {
	Window ecs.View[view.Window]
}

type cameraView = struct {
	Camera    ecs.View[view.Camera]
	Transform ecs.View[view.GlobalTransform]
}

type lookupState struct {
	Windows ecs.Contains[windowView]
	Primary ecs.Contains[windowView]
	Cameras ecs.Contains[cameraView]
}

func newLookupState() lookupState {
	return lookupState{
		Primary: ecs.NewContains[windowView](ecs.With[view.PrimaryWindow]()),
		Cameras: ecs.NewContains[cameraView](ecs.With[WorldCursorCamera]()),
	}
}

// viewportCursor is the cursor relative to the cursor camera's viewport.
type viewportCursor struct {
	camera    view.Camera
	transform view.GlobalTransform
	pos       cp.Vector
	size      cp.Vector
}

// locate finds the cursor inside the cursor camera's viewport. It returns false when any piece is
// missing or the cursor is outside the viewport.
func (s *lookupState) locate() (viewportCursor, bool, error) {
	_, cam, ok := s.Cameras.Single()
	if !ok {
		return viewportCursor{}, false, nil
	}
	camera, xf := cam.Camera.Get(), cam.Transform.Get()
	if camera.Target.Kind != view.TargetWindow {
		return viewportCursor{}, false, ErrNotWindowTarget
	}

	var window windowView
	if camera.Target.Window.Primary {
		_, window, ok = s.Primary.Single()
	} else {
		window, ok = s.Windows.Get(camera.Target.Window.Entity)
	}
	if !ok {
		return viewportCursor{}, false, nil
	}
	win := window.Window.Get()

	wpos, ok := win.CursorPosition()
	if !ok {
		return viewportCursor{}, false, nil
	}
	rect, ok := camera.LogicalViewportRect(win)
	if !ok || !rect.Contains(wpos) {
		return viewportCursor{}, false, nil
	}
	return viewportCursor{
		camera:    camera,
		transform: xf,
		pos:       wpos.Sub(rect.Min),
		size:      rect.Size(),
	}, true, nil
}

// store writes pos to the cursor. Once pos stops changing it's written one more time so PosPrev
// catches up, after which the resource is left alone.
func store(res *ecs.ResMut[WorldCursor], pos cp.Vector) {
	if current, ok := res.Peek(); ok && current.Pos == pos && current.PosPrev == pos {
		return
	}
	cursor := res.Get()
	cursor.PosPrev = cursor.Pos
	cursor.Pos = pos
}
