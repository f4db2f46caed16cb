// Package view holds the window and camera types the cursor and UI helpers read. They carry just
// enough state to map a cursor position in a window to a point in the world.
package view

import (
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/jakecoffman/cp"
)

// Window is a window entity. Positions are logical, with the origin in the top-left corner and Y
// pointing down.
type Window struct {
	Title  string     `json:"title"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Cursor *cp.Vector `json:"cursor,omitempty"`
}

func (Window) Name() string { return "view.Window" }

// CursorPosition returns the cursor position if the cursor is inside the window.
func (w Window) CursorPosition() (cp.Vector, bool) {
	if w.Cursor == nil {
		return cp.Vector{}, false
	}
	return *w.Cursor, true
}

// Size returns the window size.
func (w Window) Size() cp.Vector {
	return cp.Vector{X: w.Width, Y: w.Height}
}

// PrimaryWindow marks the primary window. At most one window should carry it.
type PrimaryWindow struct{}

func (PrimaryWindow) Name() string { return "view.PrimaryWindow" }

// WindowRef points at a window: either the primary one or a specific window entity.
type WindowRef struct {
	Primary bool         `json:"primary"`
	Entity  ecs.EntityID `json:"entity"`
}

// Primary refers to the primary window.
func Primary() WindowRef {
	return WindowRef{Primary: true}
}

// EntityWindow refers to the window on eid.
func EntityWindow(eid ecs.EntityID) WindowRef {
	return WindowRef{Entity: eid}
}

// CursorMoved is sent when the cursor moves inside a window.
type CursorMoved struct {
	Window   ecs.EntityID
	Position cp.Vector
}

// Rect is an axis-aligned rectangle in logical window coordinates.
type Rect struct {
	Min cp.Vector `json:"min"`
	Max cp.Vector `json:"max"`
}

// NewRect returns the rectangle at (x, y) with the given size.
func NewRect(x, y, width, height float64) Rect {
	return Rect{Min: cp.Vector{X: x, Y: y}, Max: cp.Vector{X: x + width, Y: y + height}}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p cp.Vector) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Size returns the width and height of r.
func (r Rect) Size() cp.Vector {
	return r.Max.Sub(r.Min)
}
