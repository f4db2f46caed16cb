package view

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoViewport is returned when a camera's viewport has no area.
var ErrNoViewport = eris.New("camera viewport is empty")

// TargetKind is what a camera renders to.
type TargetKind uint8

const (
	TargetWindow TargetKind = iota
	TargetImage
)

// RenderTarget is a camera's output.
type RenderTarget struct {
	Kind   TargetKind `json:"kind"`
	Window WindowRef  `json:"window"`
	Image  string     `json:"image,omitempty"`
}

// WindowTarget returns a target rendering to ref.
func WindowTarget(ref WindowRef) RenderTarget {
	return RenderTarget{Kind: TargetWindow, Window: ref}
}

// ProjectionKind selects the projection.
type ProjectionKind uint8

const (
	Orthographic ProjectionKind = iota
	Perspective
)

// Projection maps view space to the viewport. Scale is the number of world units per logical
// pixel of an orthographic projection. FOV is the vertical field of view of a perspective
// projection, in radians.
type Projection struct {
	Kind  ProjectionKind `json:"kind"`
	Scale float64        `json:"scale"`
	FOV   float64        `json:"fov"`
}

// Ortho returns an orthographic projection.
func Ortho(scale float64) Projection {
	return Projection{Kind: Orthographic, Scale: scale}
}

// Persp returns a perspective projection.
func Persp(fov float64) Projection {
	return Projection{Kind: Perspective, FOV: fov}
}

// Camera renders the world from its entity's GlobalTransform. Viewport is the part of the target
// it draws to; nil means the whole target.
type Camera struct {
	Target     RenderTarget `json:"target"`
	Viewport   *Rect        `json:"viewport,omitempty"`
	Projection Projection   `json:"projection"`
}

func (Camera) Name() string { return "view.Camera" }

// Camera3D marks cameras that look at a 3D scene.
type Camera3D struct{}

func (Camera3D) Name() string { return "view.Camera3D" }

// LogicalViewportRect returns the camera's viewport inside window.
func (c Camera) LogicalViewportRect(window Window) (Rect, bool) {
	rect := NewRect(0, 0, window.Width, window.Height)
	if c.Viewport != nil {
		rect = *c.Viewport
	}
	size := rect.Size()
	return rect, size.X > 0 && size.Y > 0
}

// ndc converts a viewport position (origin top-left, Y down) to normalized device coordinates.
func ndc(pos, size cp.Vector) cp.Vector {
	return cp.Vector{
		X: pos.X/size.X*2 - 1,
		Y: 1 - pos.Y/size.Y*2,
	}
}

// ViewportToWorld2D returns the world point under pos, a position relative to the viewport's
// top-left corner. Only the X and Y of the result are meaningful for 2D scenes.
func (c Camera) ViewportToWorld2D(xf GlobalTransform, pos, viewport cp.Vector) (cp.Vector, error) {
	ray, err := c.ViewportToWorld(xf, pos, viewport)
	if err != nil {
		return cp.Vector{}, err
	}
	return cp.Vector{X: ray.Origin.X, Y: ray.Origin.Y}, nil
}

// ViewportToWorld returns the ray from the camera through pos, a position relative to the
// viewport's top-left corner.
func (c Camera) ViewportToWorld(xf GlobalTransform, pos, viewport cp.Vector) (Ray, error) {
	if viewport.X <= 0 || viewport.Y <= 0 {
		return Ray{}, ErrNoViewport
	}
	p := ndc(pos, viewport)

	switch c.Projection.Kind {
	case Orthographic:
		scale := c.Projection.Scale
		if scale == 0 {
			scale = 1
		}
		offset := r3.Add(
			r3.Scale(p.X*viewport.X/2*scale, xf.Right),
			r3.Scale(p.Y*viewport.Y/2*scale, xf.Up),
		)
		return Ray{Origin: r3.Add(xf.Translation, offset), Direction: xf.Forward}, nil
	case Perspective:
		if c.Projection.FOV <= 0 || c.Projection.FOV >= math.Pi {
			return Ray{}, eris.Errorf("invalid field of view %f", c.Projection.FOV)
		}
		tanHalf := math.Tan(c.Projection.FOV / 2)
		aspect := viewport.X / viewport.Y
		dir := r3.Add(xf.Forward, r3.Add(
			r3.Scale(p.X*tanHalf*aspect, xf.Right),
			r3.Scale(p.Y*tanHalf, xf.Up),
		))
		return Ray{Origin: xf.Translation, Direction: r3.Unit(dir)}, nil
	default:
		return Ray{}, eris.Errorf("unknown projection kind %d", c.Projection.Kind)
	}
}
