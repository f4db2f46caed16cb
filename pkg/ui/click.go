package ui

import (
	"strconv"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ErrNoCommandRunner is returned when a command behavior fires and no CommandHost resource exists.
var ErrNoCommandRunner = eris.New("click behavior runs a command but no command runner is set")

type behaviorKind uint8

const (
	behaviorCommand behaviorKind = iota
	behaviorSystem
)

// Behavior is one thing a button does when clicked.
type Behavior struct {
	kind       behaviorKind
	command    string
	withEntity bool
	system     ecs.System[ecs.EntityID, struct{}]
}

// RunCommand runs line through the CommandHost's runner.
func RunCommand(line string) Behavior {
	return Behavior{kind: behaviorCommand, command: line}
}

// RunCommandWithEntity runs line through the CommandHost's runner with the clicked entity's id
// appended as the last argument.
func RunCommandWithEntity(line string) Behavior {
	return Behavior{kind: behaviorCommand, command: line, withEntity: true}
}

// RunSystem runs sys. It's initialized the first time the behavior fires.
func RunSystem(sys ecs.Runnable) Behavior {
	return Behavior{kind: behaviorSystem, system: &dropInput{Runnable: sys}}
}

// RunEntitySystem runs sys with the clicked entity as input.
func RunEntitySystem(sys ecs.System[ecs.EntityID, struct{}]) Behavior {
	return Behavior{kind: behaviorSystem, system: sys, withEntity: true}
}

// String describes the behavior for logs.
func (b Behavior) String() string {
	if b.kind == behaviorCommand {
		if b.withEntity {
			return "command(" + b.command + " <entity>)"
		}
		return "command(" + b.command + ")"
	}
	return "system(" + b.system.Name() + ")"
}

// dropInput adapts a Runnable to take the clicked entity and ignore it.
type dropInput struct {
	ecs.Runnable
}

func (d *dropInput) Run(w *ecs.World, _ ecs.EntityID) (struct{}, error) {
	return d.Runnable.Run(w, struct{}{})
}

// ClickBehaviors is the ordered list of behaviors a button runs when it's pressed.
type ClickBehaviors struct {
	Behaviors []Behavior `json:"-"`
}

func (ClickBehaviors) Name() string { return "ui.ClickBehaviors" }

// OnClick returns the behaviors as a component.
func OnClick(behaviors ...Behavior) ClickBehaviors {
	return ClickBehaviors{Behaviors: behaviors}
}

// -------------------------------------------------------------------------------------------------
// Click dispatch
// -------------------------------------------------------------------------------------------------

type clickState struct {
	ecs.BaseSystemState
	Clicked ecs.Contains[struct {
		Interaction ecs.View[Interaction]
	}]
}

// ClickSystem runs the click behaviors of every active button that became pressed. The whole list
// runs in order, and the list is taken off the entity while it runs so behaviors can't observe or
// replace it halfway through; it's written back afterwards unless a behavior despawned the button.
//
// A failing behavior is logged and the rest of the list still runs. A command behavior without a
// CommandHost resource fails the schedule.
func ClickSystem() ecs.Runnable {
	state := &clickState{}
	state.Clicked = ecs.NewContains[struct {
		Interaction ecs.View[Interaction]
	}](ecs.All(ecs.Changed[Interaction](), ecs.With[ClickBehaviors](), ecs.Without[Inactive]()))

	return ecs.NewExclusiveSystem("ui.Click", state, func(state *clickState) error {
		var pressed []ecs.EntityID
		for eid, button := range state.Clicked.Iter() {
			if button.Interaction.Get() == InteractionPressed {
				pressed = append(pressed, eid)
			}
		}

		w := state.World()
		for _, eid := range pressed {
			if err := runBehaviors(w, state.Logger(), eid); err != nil {
				return err
			}
		}
		return nil
	})
}

func runBehaviors(w *ecs.World, log *zerolog.Logger, eid ecs.EntityID) error {
	behaviors, err := ecs.Get[ClickBehaviors](w, eid)
	if err != nil {
		return eris.Wrapf(err, "button %d", eid)
	}
	if err := ecs.Set(w, eid, ClickBehaviors{}); err != nil {
		return eris.Wrapf(err, "button %d", eid)
	}

	var fatal error
	for _, behavior := range behaviors.Behaviors {
		err := behavior.run(w, eid)
		if eris.Is(err, ErrNoCommandRunner) {
			fatal = err
			break
		}
		if err != nil {
			log.Error().Err(err).Uint32("entity", uint32(eid)).Stringer("behavior", behavior).
				Msg("click behavior failed")
		}
	}

	if w.Alive(eid) && ecs.Has[ClickBehaviors](w, eid) {
		if err := ecs.Set(w, eid, behaviors); err != nil {
			return eris.Wrapf(err, "button %d", eid)
		}
	}
	return fatal
}

func (b Behavior) run(w *ecs.World, eid ecs.EntityID) error {
	switch b.kind {
	case behaviorCommand:
		host, ok := ecs.Resource[CommandHost](w)
		if !ok || host.Runner == nil {
			return ErrNoCommandRunner
		}
		line := b.command
		if b.withEntity {
			line += " " + strconv.FormatUint(uint64(eid), 10)
		}
		return host.Runner.RunCommand(w, line)
	case behaviorSystem:
		if err := b.system.Initialize(w); err != nil {
			return err
		}
		_, err := b.system.Run(w, eid)
		b.system.ApplyDeferred(w)
		return err
	default:
		return eris.Errorf("unknown behavior kind %d", b.kind)
	}
}
