package input

import (
	"fmt"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/gdamore/tcell/v2"
)

type buttonState[T comparable] struct {
	Buttons ecs.Res[ButtonInput[T]]
}

func buttonCondition[T comparable](name string, test func(*ButtonInput[T]) bool) ecs.Condition {
	return ecs.NewCondition(name, &buttonState[T]{}, func(state *buttonState[T]) bool {
		buttons, ok := state.Buttons.TryGet()
		return ok && test(buttons)
	})
}

// MousePressed is true on the frame button goes down.
func MousePressed(button tcell.ButtonMask) ecs.Condition {
	return buttonCondition(fmt.Sprintf("input.MousePressed[%s]", mouseName(button)),
		func(b *MouseButtons) bool { return b.JustPressed(button) })
}

// MouseReleased is true on the frame button goes up.
func MouseReleased(button tcell.ButtonMask) ecs.Condition {
	return buttonCondition(fmt.Sprintf("input.MouseReleased[%s]", mouseName(button)),
		func(b *MouseButtons) bool { return b.JustReleased(button) })
}

// KeyPressed is true on the frame key goes down.
func KeyPressed(key tcell.Key) ecs.Condition {
	return buttonCondition(fmt.Sprintf("input.KeyPressed[%s]", keyName(key)),
		func(b *Keys) bool { return b.JustPressed(key) })
}

// KeyReleased is true on the frame key goes up.
func KeyReleased(key tcell.Key) ecs.Condition {
	return buttonCondition(fmt.Sprintf("input.KeyReleased[%s]", keyName(key)),
		func(b *Keys) bool { return b.JustReleased(key) })
}

// RunePressed is true on the frame r goes down.
func RunePressed(r rune) ecs.Condition {
	return buttonCondition(fmt.Sprintf("input.RunePressed[%q]", r),
		func(b *Runes) bool { return b.JustPressed(r) })
}

// RuneReleased is true on the frame r goes up.
func RuneReleased(r rune) ecs.Condition {
	return buttonCondition(fmt.Sprintf("input.RuneReleased[%q]", r),
		func(b *Runes) bool { return b.JustReleased(r) })
}

func keyName(key tcell.Key) string {
	if name, ok := tcell.KeyNames[key]; ok {
		return name
	}
	return fmt.Sprintf("Key(%d)", key)
}

func mouseName(button tcell.ButtonMask) string {
	switch button {
	case tcell.ButtonPrimary:
		return "Primary"
	case tcell.ButtonSecondary:
		return "Secondary"
	case tcell.ButtonMiddle:
		return "Middle"
	default:
		return fmt.Sprintf("Button(%#x)", uint16(button))
	}
}
