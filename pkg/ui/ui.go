// Package ui provides buttons for terminal and window UIs: hit-testing against the cursor, click
// behaviors that run commands or systems, and run conditions for individual buttons.
//
// Interaction is updated during stageset.Provide(Set{}). Click behaviors and systems gated by
// OnButtonInteract belong in stageset.Want(Set{}), after it.
package ui

import (
	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/input"
	"github.com/argus-labs/cardinal-extras/pkg/stageset"
	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/gdamore/tcell/v2"
)

// Set labels the UI stage set.
type Set struct{}

func (Set) String() string { return "UI" }

// Button marks an entity as a button.
type Button struct{}

func (Button) Name() string { return "ui.Button" }

// Inactive disables a button. Inactive buttons aren't hit-tested and never count as clicked.
type Inactive struct{}

func (Inactive) Name() string { return "ui.Inactive" }

// Interaction is the cursor's relation to a button.
type Interaction uint8

const (
	InteractionNone Interaction = iota
	InteractionHovered
	InteractionPressed
)

func (Interaction) Name() string { return "ui.Interaction" }

func (i Interaction) String() string {
	switch i {
	case InteractionHovered:
		return "hovered"
	case InteractionPressed:
		return "pressed"
	case InteractionNone:
		return "none"
	default:
		return "none"
	}
}

// Node is the area a UI element covers, in logical coordinates of the primary window.
type Node struct {
	Rect view.Rect `json:"rect"`
}

func (Node) Name() string { return "ui.Node" }

// Label is the text shown on an element.
type Label struct {
	Text string `json:"text"`
}

func (Label) Name() string { return "ui.Label" }

// Plugin hit-tests buttons against the primary window's cursor and runs click behaviors.
type Plugin struct{}

func (Plugin) Build(a *app.App) error {
	if err := a.AddPlugins(input.Plugin{}); err != nil {
		return err
	}
	schedule := a.Schedule(app.Update{})
	stageset.ConfigureNoCondition(schedule, Set{})
	schedule.AddSystem(InteractionSystem()).InSet(stageset.Of(stageset.Provide, Set{}))
	schedule.AddSystem(ClickSystem()).InSet(stageset.Of(stageset.Want, Set{}))
	return nil
}

// Want returns the stage set for systems that react to button interactions.
func Want() stageset.Stage[Set] {
	return stageset.Of(stageset.Want, Set{})
}

// -------------------------------------------------------------------------------------------------
// Interaction
// -------------------------------------------------------------------------------------------------

type interactionState struct {
	Mouse   ecs.Res[input.MouseButtons]
	Windows ecs.Contains[struct {
		Window ecs.View[view.Window]
	}]
	Buttons ecs.Contains[struct {
		Node        ecs.View[Node]
		Interaction ecs.Ref[Interaction]
	}]
}

// InteractionSystem sets Interaction on every active button from the primary window's cursor and
// the primary mouse button. A press has to start on the button; holding the button down keeps it
// pressed while the cursor stays on it.
func InteractionSystem() ecs.Runnable {
	state := &interactionState{}
	state.Windows = ecs.NewContains[struct {
		Window ecs.View[view.Window]
	}](ecs.With[view.PrimaryWindow]())
	state.Buttons = ecs.NewContains[struct {
		Node        ecs.View[Node]
		Interaction ecs.Ref[Interaction]
	}](ecs.All(ecs.With[Button](), ecs.Without[Inactive]()))

	return ecs.NewSystem("ui.Interaction", state, func(state *interactionState) error {
		var (
			cursor    view.Window
			hasCursor bool
		)
		if _, win, ok := state.Windows.Single(); ok {
			cursor = win.Window.Get()
			_, hasCursor = cursor.CursorPosition()
		}
		mouse, hasMouse := state.Mouse.TryGet()

		for _, button := range state.Buttons.Iter() {
			current := button.Interaction.Get()
			next := InteractionNone
			if hasCursor && button.Node.Get().Rect.Contains(*cursor.Cursor) {
				next = InteractionHovered
				if hasMouse && pressing(mouse, current) {
					next = InteractionPressed
				}
			}
			if next != current {
				button.Interaction.Set(next)
			}
		}
		return nil
	})
}

func pressing(mouse *input.MouseButtons, current Interaction) bool {
	if mouse.JustPressed(tcell.ButtonPrimary) {
		return true
	}
	return current == InteractionPressed && mouse.Pressed(tcell.ButtonPrimary)
}

// -------------------------------------------------------------------------------------------------
// Conditions
// -------------------------------------------------------------------------------------------------

type buttonInteractState struct {
	Buttons ecs.Contains[struct {
		Interaction ecs.View[Interaction]
	}]
}

// OnButtonInteract is true when an active button marked with B became pressed since the condition
// last ran.
func OnButtonInteract[B ecs.Component]() ecs.Condition {
	var marker B
	state := &buttonInteractState{}
	state.Buttons = ecs.NewContains[struct {
		Interaction ecs.View[Interaction]
	}](ecs.All(ecs.Changed[Interaction](), ecs.With[Button](), ecs.With[B](), ecs.Without[Inactive]()))

	return ecs.NewCondition("ui.OnButtonInteract["+marker.Name()+"]", state, func(state *buttonInteractState) bool {
		for _, button := range state.Buttons.Iter() {
			if button.Interaction.Get() == InteractionPressed {
				return true
			}
		}
		return false
	})
}
