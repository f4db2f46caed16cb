// Package input keeps per-frame button state for keys, runes and mouse buttons, and feeds it from a
// terminal through tcell.
//
// Button state follows the usual frame rules: a press shows up in JustPressed for the frame it
// happened in, stays in Pressed until released, and the release shows up in JustReleased for one
// frame. The Plugin clears the per-frame sets in app.First.
package input

import (
	"iter"
	"maps"

	"github.com/gdamore/tcell/v2"
)

// ButtonInput is the state of a set of buttons. The zero value is ready to use.
type ButtonInput[T comparable] struct {
	pressed      map[T]struct{}
	justPressed  map[T]struct{}
	justReleased map[T]struct{}
}

// Keys holds the state of special keys. Printable characters arrive as tcell.KeyRune and are
// tracked in Runes as well.
type Keys = ButtonInput[tcell.Key]

// Runes holds the state of printable characters, the closest a terminal gets to scan codes.
type Runes = ButtonInput[rune]

// MouseButtons holds the state of mouse buttons.
type MouseButtons = ButtonInput[tcell.ButtonMask]

func (b *ButtonInput[T]) lazyInit() {
	if b.pressed == nil {
		b.pressed = make(map[T]struct{})
		b.justPressed = make(map[T]struct{})
		b.justReleased = make(map[T]struct{})
	}
}

// Press registers a press of button. Pressing a held button doesn't count as a new press.
func (b *ButtonInput[T]) Press(button T) {
	b.lazyInit()
	if _, held := b.pressed[button]; held {
		return
	}
	b.pressed[button] = struct{}{}
	b.justPressed[button] = struct{}{}
}

// Release registers a release of button. Releasing a button that isn't held does nothing.
func (b *ButtonInput[T]) Release(button T) {
	b.lazyInit()
	if _, held := b.pressed[button]; !held {
		return
	}
	delete(b.pressed, button)
	b.justReleased[button] = struct{}{}
}

// ReleaseAll releases every held button.
func (b *ButtonInput[T]) ReleaseAll() {
	for button := range b.pressed {
		b.Release(button)
	}
}

// Pressed reports whether button is held.
func (b *ButtonInput[T]) Pressed(button T) bool {
	_, ok := b.pressed[button]
	return ok
}

// AnyPressed reports whether any of buttons is held.
func (b *ButtonInput[T]) AnyPressed(buttons ...T) bool {
	for _, button := range buttons {
		if b.Pressed(button) {
			return true
		}
	}
	return false
}

// JustPressed reports whether button was pressed this frame.
func (b *ButtonInput[T]) JustPressed(button T) bool {
	_, ok := b.justPressed[button]
	return ok
}

// JustReleased reports whether button was released this frame.
func (b *ButtonInput[T]) JustReleased(button T) bool {
	_, ok := b.justReleased[button]
	return ok
}

// GetPressed iterates over the held buttons in no particular order.
func (b *ButtonInput[T]) GetPressed() iter.Seq[T] {
	return maps.Keys(b.pressed)
}

// Clear forgets this frame's presses and releases. Held buttons stay held.
func (b *ButtonInput[T]) Clear() {
	clear(b.justPressed)
	clear(b.justReleased)
}

// Reset forgets everything, including held buttons, without reporting releases.
func (b *ButtonInput[T]) Reset() {
	clear(b.pressed)
	b.Clear()
}
