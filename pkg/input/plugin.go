package input

import (
	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/rotisserie/eris"
)

// Plugin sets up the Keys, Runes and MouseButtons resources and clears their per-frame state at
// the start of every tick.
type Plugin struct{}

func (Plugin) Build(a *app.App) error {
	w := a.World()
	ecs.InitResource[Keys](w)
	ecs.InitResource[Runes](w)
	ecs.InitResource[MouseButtons](w)
	a.AddSystems(app.First{},
		clearSystem[Keys]("input.ClearKeys"),
		clearSystem[Runes]("input.ClearRunes"),
		clearSystem[MouseButtons]("input.ClearMouseButtons"),
	)
	return nil
}

type clearState[T any] struct {
	Buttons ecs.ResMut[T]
}

func clearSystem[T any, P interface {
	*T
	Clear()
}](name string) ecs.Runnable {
	return ecs.NewSystem(name, &clearState[T]{}, func(state *clearState[T]) error {
		if buttons, ok := state.Buttons.Peek(); ok {
			P(buttons).Clear()
		}
		return nil
	})
}

// TerminalPlugin drains Terminal into the input resources during app.PreUpdate.
type TerminalPlugin struct {
	Terminal *Terminal
}

func (p TerminalPlugin) Build(a *app.App) error {
	if p.Terminal == nil {
		return eris.New("terminal plugin needs a terminal")
	}
	if err := a.AddPlugins(Plugin{}); err != nil {
		return err
	}
	ecs.RegisterEvent[view.CursorMoved](a.World())
	a.AddSystem(app.PreUpdate{}, p.Terminal.drainSystem())
	return nil
}
