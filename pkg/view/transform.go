package view

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// GlobalTransform places an entity in the world. The basis is orthonormal; Forward looks down the
// local -Z axis.
type GlobalTransform struct {
	Translation r3.Vec `json:"translation"`
	Right       r3.Vec `json:"right"`
	Up          r3.Vec `json:"up"`
	Forward     r3.Vec `json:"forward"`
}

func (GlobalTransform) Name() string { return "view.GlobalTransform" }

// Identity returns the transform at the origin with the default basis.
func Identity() GlobalTransform {
	return GlobalTransform{
		Right:   r3.Vec{X: 1},
		Up:      r3.Vec{Y: 1},
		Forward: r3.Vec{Z: -1},
	}
}

// FromTranslation returns the identity transform moved to t.
func FromTranslation(t r3.Vec) GlobalTransform {
	xf := Identity()
	xf.Translation = t
	return xf
}

// LookingAt returns a transform at eye facing target, with up as the approximate up direction.
func LookingAt(eye, target, up r3.Vec) GlobalTransform {
	forward := r3.Unit(r3.Sub(target, eye))
	right := r3.Unit(r3.Cross(forward, up))
	return GlobalTransform{
		Translation: eye,
		Right:       right,
		Up:          r3.Cross(right, forward),
		Forward:     forward,
	}
}

// RotatedX returns the transform rotated by angle radians around its local X axis.
func (xf GlobalTransform) RotatedX(angle float64) GlobalTransform {
	sin, cos := math.Sincos(angle)
	up := r3.Add(r3.Scale(cos, xf.Up), r3.Scale(sin, r3.Scale(-1, xf.Forward)))
	forward := r3.Add(r3.Scale(cos, xf.Forward), r3.Scale(sin, xf.Up))
	xf.Up, xf.Forward = up, forward
	return xf
}

// back is the local +Z axis.
func (xf GlobalTransform) back() r3.Vec {
	return r3.Scale(-1, xf.Forward)
}

// TransformPoint maps a local point to world space.
func (xf GlobalTransform) TransformPoint(p r3.Vec) r3.Vec {
	return r3.Add(xf.Translation, r3.Add(
		r3.Add(r3.Scale(p.X, xf.Right), r3.Scale(p.Y, xf.Up)),
		r3.Scale(p.Z, xf.back()),
	))
}

// InverseTransformPoint maps a world point to local space.
func (xf GlobalTransform) InverseTransformPoint(p r3.Vec) r3.Vec {
	d := r3.Sub(p, xf.Translation)
	return r3.Vec{X: r3.Dot(d, xf.Right), Y: r3.Dot(d, xf.Up), Z: r3.Dot(d, xf.back())}
}

// Ray is a half-line in world space.
type Ray struct {
	Origin    r3.Vec
	Direction r3.Vec
}

// At returns the point at distance d along the ray.
func (r Ray) At(d float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(d, r.Direction))
}

// IntersectPlane returns the distance along the ray to the plane through origin with the given
// normal. It returns false if the ray is parallel to the plane or points away from it.
func (r Ray) IntersectPlane(origin, normal r3.Vec) (float64, bool) {
	const eps = 1e-6
	denom := r3.Dot(normal, r.Direction)
	if math.Abs(denom) <= eps {
		return 0, false
	}
	d := r3.Dot(r3.Sub(origin, r.Origin), normal) / denom
	if d <= eps {
		return 0, false
	}
	return d, true
}
