package view_test

import (
	"math"
	"testing"

	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const eps = 1e-9

func assertVec(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-6, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-6, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-6, "z")
}

func TestRect_Contains(t *testing.T) {
	t.Parallel()

	r := view.NewRect(10, 20, 100, 50)
	tests := []struct {
		name string
		p    cp.Vector
		want bool
	}{
		{name: "inside", p: cp.Vector{X: 50, Y: 40}, want: true},
		{name: "min corner", p: cp.Vector{X: 10, Y: 20}, want: true},
		{name: "max corner", p: cp.Vector{X: 110, Y: 70}, want: true},
		{name: "left", p: cp.Vector{X: 9.9, Y: 40}, want: false},
		{name: "below", p: cp.Vector{X: 50, Y: 70.1}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.Contains(tt.p))
		})
	}
	assert.Equal(t, cp.Vector{X: 100, Y: 50}, r.Size())
}

func TestWindow_CursorPosition(t *testing.T) {
	t.Parallel()

	win := view.Window{Width: 800, Height: 600}
	_, ok := win.CursorPosition()
	assert.False(t, ok)

	win.Cursor = &cp.Vector{X: 3, Y: 4}
	pos, ok := win.CursorPosition()
	require.True(t, ok)
	assert.Equal(t, cp.Vector{X: 3, Y: 4}, pos)
}

func TestCamera_LogicalViewportRect(t *testing.T) {
	t.Parallel()

	win := view.Window{Width: 800, Height: 600}
	rect, ok := view.Camera{}.LogicalViewportRect(win)
	require.True(t, ok)
	assert.Equal(t, view.NewRect(0, 0, 800, 600), rect)

	viewport := view.NewRect(100, 100, 200, 100)
	rect, ok = view.Camera{Viewport: &viewport}.LogicalViewportRect(win)
	require.True(t, ok)
	assert.Equal(t, viewport, rect)

	_, ok = view.Camera{}.LogicalViewportRect(view.Window{})
	assert.False(t, ok)
}

func TestCamera_ViewportToWorld2D(t *testing.T) {
	t.Parallel()

	size := cp.Vector{X: 800, Y: 600}
	xf := view.FromTranslation(r3.Vec{X: 10, Y: 20})

	tests := []struct {
		name  string
		scale float64
		pos   cp.Vector
		want  cp.Vector
	}{
		{name: "center", scale: 1, pos: cp.Vector{X: 400, Y: 300}, want: cp.Vector{X: 10, Y: 20}},
		{name: "top left", scale: 1, pos: cp.Vector{X: 0, Y: 0}, want: cp.Vector{X: -390, Y: 320}},
		{name: "bottom right", scale: 1, pos: cp.Vector{X: 800, Y: 600}, want: cp.Vector{X: 410, Y: -280}},
		{name: "zoomed out", scale: 2, pos: cp.Vector{X: 500, Y: 300}, want: cp.Vector{X: 210, Y: 20}},
		{name: "zero scale means one", scale: 0, pos: cp.Vector{X: 500, Y: 300}, want: cp.Vector{X: 110, Y: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cam := view.Camera{Projection: view.Ortho(tt.scale)}
			got, err := cam.ViewportToWorld2D(xf, tt.pos, size)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.X, got.X, eps)
			assert.InDelta(t, tt.want.Y, got.Y, eps)
		})
	}

	_, err := view.Camera{}.ViewportToWorld2D(xf, cp.Vector{}, cp.Vector{})
	require.ErrorIs(t, err, view.ErrNoViewport)
}

func TestCamera_ViewportToWorld_Perspective(t *testing.T) {
	t.Parallel()

	size := cp.Vector{X: 200, Y: 100}
	cam := view.Camera{Projection: view.Persp(math.Pi / 2)}
	xf := view.FromTranslation(r3.Vec{Y: 5})

	ray, err := cam.ViewportToWorld(xf, cp.Vector{X: 100, Y: 50}, size)
	require.NoError(t, err)
	assertVec(t, r3.Vec{Y: 5}, ray.Origin)
	assertVec(t, r3.Vec{Z: -1}, ray.Direction)

	// With a 90 degree vertical fov the top edge is 45 degrees up.
	ray, err = cam.ViewportToWorld(xf, cp.Vector{X: 100, Y: 0}, size)
	require.NoError(t, err)
	assertVec(t, r3.Unit(r3.Vec{Y: 1, Z: -1}), ray.Direction)

	_, err = view.Camera{Projection: view.Persp(0)}.ViewportToWorld(xf, cp.Vector{}, size)
	require.Error(t, err)
	_, err = view.Camera{Projection: view.Projection{Kind: 7}}.ViewportToWorld(xf, cp.Vector{}, size)
	require.Error(t, err)
}

func TestGlobalTransform(t *testing.T) {
	t.Parallel()

	xf := view.LookingAt(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 4, Y: 2, Z: 3}, r3.Vec{Y: 1})
	assertVec(t, r3.Vec{X: 1}, xf.Forward)
	assertVec(t, r3.Vec{Y: 1}, xf.Up)

	local := r3.Vec{X: 0.5, Y: -2, Z: 7}
	world := xf.TransformPoint(local)
	assertVec(t, local, xf.InverseTransformPoint(world))

	// Tilting down by 90 degrees makes the camera look straight down.
	down := view.Identity().RotatedX(-math.Pi / 2)
	assertVec(t, r3.Vec{Y: -1}, down.Forward)
	assertVec(t, r3.Vec{Z: -1}, down.Up)
}

func TestRay_IntersectPlane(t *testing.T) {
	t.Parallel()

	up := r3.Vec{Y: 1}
	tests := []struct {
		name   string
		ray    view.Ray
		want   float64
		wantOK bool
	}{
		{name: "straight down", ray: view.Ray{Origin: r3.Vec{Y: 10}, Direction: r3.Vec{Y: -1}}, want: 10, wantOK: true},
		{
			name:   "diagonal",
			ray:    view.Ray{Origin: r3.Vec{Y: 4}, Direction: r3.Unit(r3.Vec{X: 1, Y: -1})},
			want:   4 * math.Sqrt2,
			wantOK: true,
		},
		{name: "parallel", ray: view.Ray{Origin: r3.Vec{Y: 1}, Direction: r3.Vec{X: 1}}},
		{name: "pointing away", ray: view.Ray{Origin: r3.Vec{Y: 1}, Direction: r3.Vec{Y: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, ok := tt.ray.IntersectPlane(r3.Vec{}, up)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.want, d, 1e-9)
				assert.InDelta(t, 0, tt.ray.At(d).Y, 1e-9)
			}
		})
	}
}
