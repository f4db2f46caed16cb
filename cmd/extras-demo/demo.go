package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/chain"
	"github.com/argus-labs/cardinal-extras/pkg/cleanup"
	"github.com/argus-labs/cardinal-extras/pkg/condition"
	"github.com/argus-labs/cardinal-extras/pkg/cursor"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/input"
	"github.com/argus-labs/cardinal-extras/pkg/script"
	"github.com/argus-labs/cardinal-extras/pkg/task"
	"github.com/argus-labs/cardinal-extras/pkg/ui"
	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/gdamore/tcell/v2"
	"github.com/rotisserie/eris"
)

// defaultMenu is shown when no menu file is given. Terminal cursor positions are whole cells and
// rects include their edges, so sizes stay half a cell short of the next row and column.
var defaultMenu = ui.MenuSpec{
	Name: "main",
	Buttons: []ui.ButtonSpec{
		{
			Name: "hello", Label: "[ Hello ]", X: 2, Y: 1, Width: 8.5, Height: 0.5,
			OnClick: []ui.BehaviorSpec{{Command: "say hello there"}},
		},
		{
			Name: "hide", Label: "[ Hide me ]", X: 2, Y: 3, Width: 10.5, Height: 0.5,
			OnClick: []ui.BehaviorSpec{{Command: "disable", WithEntity: true}},
		},
		{
			Name: "quit", Label: "[ Quit ]", X: 2, Y: 5, Width: 7.5, Height: 0.5,
			OnClick: []ui.BehaviorSpec{{Command: "quit"}},
		},
	},
}

// statusLine is the text shown at the bottom of the screen.
type statusLine struct {
	Text string
}

type demo struct {
	app       *app.App
	terminal  *input.Terminal
	watcher   *ui.MenuWatcher
	closeOnce sync.Once
}

// newDemo builds the app drawing to screen. quit is called by the quit command and by Escape or
// Ctrl-C.
func newDemo(screen tcell.Screen, opts options, logOut io.Writer, quit context.CancelFunc) (*demo, error) {
	a, err := app.New(app.Options{Name: "extras-demo", TickRate: opts.TickRate, LogOutput: logOut})
	if err != nil {
		return nil, err
	}
	d := &demo{app: a, terminal: input.NewTerminal()}

	spec := defaultMenu
	if opts.Menu != "" {
		if spec, err = ui.LoadMenu(opts.Menu); err != nil {
			return nil, err
		}
	}
	if opts.Watch {
		if d.watcher, err = ui.WatchMenu(opts.Menu); err != nil {
			return nil, err
		}
	}

	registry, err := newRegistry(quit)
	if err != nil {
		d.close()
		return nil, err
	}
	runner := script.NewRunner(a.Logger("script"), script.Options{})

	w := a.World()
	width, height := screen.Size()
	if _, err := w.Spawn(view.Window{Title: "extras-demo", Width: float64(width), Height: float64(height)},
		view.PrimaryWindow{}); err != nil {
		d.close()
		return nil, eris.Wrap(err, "failed to spawn window")
	}
	if _, err := w.Spawn(
		view.Camera{Target: view.WindowTarget(view.Primary()), Projection: view.Ortho(1)},
		view.Identity(),
		cursor.WorldCursorCamera{},
	); err != nil {
		d.close()
		return nil, eris.Wrap(err, "failed to spawn camera")
	}
	ecs.InsertResource(w, statusLine{Text: "click a button, Esc quits"})

	if err := a.AddPlugins(
		input.TerminalPlugin{Terminal: d.terminal},
		ui.MenuPlugin{Spec: spec, Watcher: d.watcher},
		script.Plugin{Runner: runner, Registry: registry},
		cursor.Plugin2D{},
	); err != nil {
		d.close()
		return nil, err
	}
	if opts.Scripts != "" {
		ecs.InsertResource(w, scriptSource{Dir: opts.Scripts, Runner: runner})
		if err := task.Register(a, scriptLoader{}); err != nil {
			d.close()
			return nil, err
		}
	}

	a.AddSystem(app.Update{}, quitSystem(quit)).
		RunIf(condition.Or(input.KeyPressed(tcell.KeyEscape), input.KeyPressed(tcell.KeyCtrlC)))
	a.AddSystem(app.Update{}, cleanup.RemoveFromAllWith[ui.Inactive, ui.MenuButton]()).
		RunIf(input.RunePressed('r'))
	a.AddSystem(app.Update{}, emittedSystem()).RunIf(condition.OnEvent[script.Emitted]())
	a.AddSystem(app.Update{}, chain.ChainOptional(pressedSystem(), showPressedSystem())).InSet(ui.Want())
	a.AddSystem(app.Last{}, renderSystem(screen)).RunIf(condition.Or(
		condition.ResourceChanged[cursor.WorldCursor](),
		condition.ResourceChanged[statusLine](),
		condition.AnyChangedComponent[ui.Interaction](),
		condition.AnyChangedComponent[ui.Label](),
		condition.AnyChangedComponent[view.Window](),
		condition.AnyAddedComponent[ui.Inactive](),
		condition.AnyAddedComponent[ui.Menu](),
		input.RunePressed('r'),
	))
	return d, nil
}

// close stops the menu watcher and the task pool. It is safe to call more than once.
func (d *demo) close() {
	d.closeOnce.Do(func() {
		if d.watcher != nil {
			_ = d.watcher.Close()
		}
		if d.app == nil {
			return
		}
		if pool, ok := ecs.Resource[task.Pool](d.app.World()); ok {
			pool.Close()
		}
	})
}

// newRegistry returns the built-in commands:
//
//	quit             stops the demo
//	say words...     shows words in the status line
//	disable id       makes a button inactive until r is pressed
func newRegistry(quit context.CancelFunc) (*ui.CommandRegistry, error) {
	registry := ui.NewCommandRegistry()
	commands := map[string]ui.CommandFunc{
		"quit": func(*ecs.World, []string) error {
			quit()
			return nil
		},
		"say": func(w *ecs.World, args []string) error {
			ecs.InsertResource(w, statusLine{Text: strings.Join(args, " ")})
			return nil
		},
		"disable": func(w *ecs.World, args []string) error {
			if len(args) != 1 {
				return eris.New("usage: disable <entity>")
			}
			eid, err := ecs.ParseEntityID(args[0])
			if err != nil {
				return err
			}
			return w.Insert(eid, ui.Inactive{}, ui.InteractionNone)
		},
	}
	for name, fn := range commands {
		if err := registry.Register(name, fn); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

type quitState struct{}

func quitSystem(quit context.CancelFunc) ecs.Runnable {
	return ecs.NewSystem("demo.Quit", &quitState{}, func(*quitState) error {
		quit()
		return nil
	})
}

type emittedState struct {
	Emitted ecs.WithEventReceiver[script.Emitted]
	Status  ecs.ResMut[statusLine]
	ecs.BaseSystemState
}

// emittedSystem shows the latest script event in the status line.
func emittedSystem() ecs.Runnable {
	return ecs.NewSystem("demo.ShowEmitted", &emittedState{}, func(state *emittedState) error {
		for ev := range state.Emitted.Iter() {
			state.Logger().Info().Str("script", ev.Script).Str("name", ev.Name).Interface("value", ev.Value).
				Msg("script event")
			state.Status.Get().Text = ev.Script + ": " + ev.Name
		}
		return nil
	})
}

type pressedView = struct {
	Button      ecs.View[ui.MenuButton]
	Interaction ecs.View[ui.Interaction]
}

type pressedState struct {
	Buttons ecs.Contains[pressedView]
}

// pressedSystem returns the name of a menu button pressed this tick.
func pressedSystem() ecs.System[struct{}, chain.Option[string]] {
	state := &pressedState{Buttons: ecs.NewContains[pressedView](ecs.Changed[ui.Interaction]())}
	return ecs.NewSystemWith("demo.Pressed", state,
		func(state *pressedState, _ struct{}) (chain.Option[string], error) {
			for _, button := range state.Buttons.Iter() {
				if button.Interaction.Get() == ui.InteractionPressed {
					return chain.Some(button.Button.Get().Key), nil
				}
			}
			return chain.None[string](), nil
		})
}

type showPressedState struct {
	ecs.BaseSystemState
}

func showPressedSystem() ecs.System[string, struct{}] {
	return ecs.NewSystemWith("demo.ShowPressed", &showPressedState{},
		func(state *showPressedState, name string) (struct{}, error) {
			state.Logger().Debug().Str("button", name).Msg("button pressed")
			return struct{}{}, nil
		})
}

// -------------------------------------------------------------------------------------------------
// Script loading
// -------------------------------------------------------------------------------------------------

// scriptSource is the directory scripts are loaded from in the background.
type scriptSource struct {
	Dir     string
	Runner  *script.Runner
	started bool
}

// scriptsLoaded is the outcome of loading a script directory.
type scriptsLoaded struct {
	Names []string
	Err   error
}

type loadStartState struct {
	Source ecs.ResMut[scriptSource]
}

type loadDoneState struct {
	ecs.BaseSystemState
	Status ecs.ResMut[statusLine]
}

// scriptLoader loads the script directory once, off the tick loop.
type scriptLoader struct{}

var _ task.Helper[scriptsLoaded, loadStartState, loadDoneState] = scriptLoader{}

func (scriptLoader) ShouldStart(state *loadStartState) bool {
	src, ok := state.Source.Peek()
	return ok && !src.started
}

func (scriptLoader) Start(pool *task.Pool, state *loadStartState) []*task.Task[scriptsLoaded] {
	src := state.Source.Get()
	src.started = true
	dir, runner := src.Dir, src.Runner
	return []*task.Task[scriptsLoaded]{
		task.Spawn(pool, func(context.Context) scriptsLoaded {
			if err := runner.LoadDir(dir); err != nil {
				return scriptsLoaded{Err: err}
			}
			return scriptsLoaded{Names: runner.Names()}
		}),
	}
}

func (scriptLoader) HandleOutput(state *loadDoneState, out scriptsLoaded) {
	status := state.Status.Get()
	if out.Err != nil {
		state.Logger().Error().Err(out.Err).Msg("failed to load scripts")
		status.Text = "failed to load scripts"
		return
	}
	state.Logger().Info().Strs("scripts", out.Names).Msg("scripts loaded")
	status.Text = "scripts: " + strings.Join(out.Names, ", ")
}

// -------------------------------------------------------------------------------------------------
// Rendering
// -------------------------------------------------------------------------------------------------

type labelView = struct {
	Node        ecs.View[ui.Node]
	Label       ecs.View[ui.Label]
	Interaction ecs.View[ui.Interaction]
}

type renderState struct {
	Cursor   ecs.Res[cursor.WorldCursor]
	Status   ecs.Res[statusLine]
	Labels   ecs.Contains[labelView]
	Inactive ecs.Query
}

// renderSystem redraws every button label and the status line.
func renderSystem(screen tcell.Screen) ecs.Runnable {
	state := &renderState{
		Labels:   ecs.NewContains[labelView](ecs.With[ui.Button]()),
		Inactive: ecs.NewQuery(ecs.With[ui.Inactive]()),
	}
	return ecs.NewSystem("demo.Render", state, func(state *renderState) error {
		screen.Clear()
		for eid, label := range state.Labels.Iter() {
			style := interactionStyle(label.Interaction.Get())
			if state.Inactive.Matches(eid) {
				style = tcell.StyleDefault.Dim(true)
			}
			rect := label.Node.Get().Rect
			drawText(screen, int(rect.Min.X), int(rect.Min.Y), label.Label.Get().Text, style)
		}

		footer := ""
		if status, ok := state.Status.TryGet(); ok {
			footer = status.Text
		}
		if wc, ok := state.Cursor.TryGet(); ok {
			footer += "  " + formatCursor(wc.Pos.X, wc.Pos.Y)
		}
		_, height := screen.Size()
		drawText(screen, 0, height-1, footer, tcell.StyleDefault.Foreground(tcell.ColorGray))
		screen.Show()
		return nil
	})
}

func interactionStyle(i ui.Interaction) tcell.Style {
	switch i {
	case ui.InteractionHovered:
		return tcell.StyleDefault.Reverse(true)
	case ui.InteractionPressed:
		return tcell.StyleDefault.Reverse(true).Bold(true)
	case ui.InteractionNone:
	}
	return tcell.StyleDefault
}

func formatCursor(x, y float64) string {
	return fmt.Sprintf("cursor (%.0f, %.0f)", x, y)
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		screen.SetContent(x+i, y, r, nil, style)
	}
}
