package input_test

import (
	"slices"
	"testing"

	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/input"
	. "github.com/argus-labs/cardinal-extras/pkg/testutils"
	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/gdamore/tcell/v2"
	"github.com/jakecoffman/cp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButtonInput(t *testing.T) {
	t.Parallel()

	var b input.ButtonInput[string]
	assert.False(t, b.Pressed("a"), "zero value has nothing pressed")

	b.Press("a")
	assert.True(t, b.Pressed("a"))
	assert.True(t, b.JustPressed("a"))
	assert.False(t, b.JustReleased("a"))

	b.Clear()
	assert.True(t, b.Pressed("a"), "clear keeps held buttons")
	assert.False(t, b.JustPressed("a"))

	b.Press("a")
	assert.False(t, b.JustPressed("a"), "pressing a held button isn't a new press")

	b.Release("a")
	assert.False(t, b.Pressed("a"))
	assert.True(t, b.JustReleased("a"))

	b.Clear()
	b.Release("a")
	assert.False(t, b.JustReleased("a"), "releasing an unheld button does nothing")

	b.Press("x")
	b.Press("y")
	assert.True(t, b.AnyPressed("z", "y"))
	assert.False(t, b.AnyPressed("z"))
	got := slices.Sorted(b.GetPressed())
	assert.Equal(t, []string{"x", "y"}, got)

	b.ReleaseAll()
	assert.False(t, b.AnyPressed("x", "y"))
	assert.True(t, b.JustReleased("x"))
	assert.True(t, b.JustReleased("y"))

	b.Press("q")
	b.Reset()
	assert.False(t, b.Pressed("q"))
	assert.False(t, b.JustPressed("q"))
	assert.False(t, b.JustReleased("q"))
}

func TestConditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cond  ecs.Condition
		input func(w *ecs.World)
		want  bool
	}{
		{
			name: "key pressed",
			cond: input.KeyPressed(tcell.KeyEnter),
			input: func(w *ecs.World) {
				ecs.InitResource[input.Keys](w).Press(tcell.KeyEnter)
			},
			want: true,
		},
		{
			name: "other key pressed",
			cond: input.KeyPressed(tcell.KeyEnter),
			input: func(w *ecs.World) {
				ecs.InitResource[input.Keys](w).Press(tcell.KeyEscape)
			},
			want: false,
		},
		{
			name: "key released",
			cond: input.KeyReleased(tcell.KeyEnter),
			input: func(w *ecs.World) {
				keys := ecs.InitResource[input.Keys](w)
				keys.Press(tcell.KeyEnter)
				keys.Clear()
				keys.Release(tcell.KeyEnter)
			},
			want: true,
		},
		{
			name: "held key isn't a press",
			cond: input.KeyPressed(tcell.KeyEnter),
			input: func(w *ecs.World) {
				keys := ecs.InitResource[input.Keys](w)
				keys.Press(tcell.KeyEnter)
				keys.Clear()
			},
			want: false,
		},
		{
			name: "rune pressed",
			cond: input.RunePressed('w'),
			input: func(w *ecs.World) {
				ecs.InitResource[input.Runes](w).Press('w')
			},
			want: true,
		},
		{
			name: "rune released",
			cond: input.RuneReleased('w'),
			input: func(w *ecs.World) {
				runes := ecs.InitResource[input.Runes](w)
				runes.Press('w')
				runes.Release('w')
			},
			want: true,
		},
		{
			name: "mouse pressed",
			cond: input.MousePressed(tcell.ButtonPrimary),
			input: func(w *ecs.World) {
				ecs.InitResource[input.MouseButtons](w).Press(tcell.ButtonPrimary)
			},
			want: true,
		},
		{
			name: "mouse released",
			cond: input.MouseReleased(tcell.ButtonSecondary),
			input: func(w *ecs.World) {
				mouse := ecs.InitResource[input.MouseButtons](w)
				mouse.Press(tcell.ButtonSecondary)
				mouse.Release(tcell.ButtonSecondary)
			},
			want: true,
		},
		{
			name:  "missing resource",
			cond:  input.MousePressed(tcell.ButtonPrimary),
			input: func(*ecs.World) {},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := ecs.NewWorld()
			tt.input(w)
			assert.Equal(t, tt.want, Eval(t, w, tt.cond))
		})
	}
}

func TestConditionNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "input.KeyPressed[Enter]", input.KeyPressed(tcell.KeyEnter).Name())
	assert.Equal(t, "input.RuneReleased['q']", input.RuneReleased('q').Name())
	assert.Equal(t, "input.MousePressed[Primary]", input.MousePressed(tcell.ButtonPrimary).Name())
}

// setupTerminal returns an app fed by a terminal adapter with a primary 80x24 window.
func setupTerminal(t *testing.T) (*app.App, *input.Terminal, ecs.EntityID) {
	t.Helper()
	a := NewApp(t)
	term := input.NewTerminal()
	require.NoError(t, a.AddPlugins(input.TerminalPlugin{Terminal: term}))
	window := MustSpawn(t, a.World(), view.Window{Title: "term", Width: 80, Height: 24}, view.PrimaryWindow{})
	return a, term, window
}

func TestTerminal_Keys(t *testing.T) {
	t.Parallel()

	a, term, _ := setupTerminal(t)
	keys := ecs.MustResource[input.Keys](a.World())
	runes := ecs.MustResource[input.Runes](a.World())

	term.Feed(tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone))
	term.Feed(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	require.NoError(t, a.Update())
	assert.True(t, runes.JustPressed('a'))
	assert.True(t, keys.JustPressed(tcell.KeyRune))
	assert.True(t, keys.JustPressed(tcell.KeyEnter))

	// Terminals don't send releases, so keys go up on the next frame.
	require.NoError(t, a.Update())
	assert.False(t, runes.Pressed('a'))
	assert.True(t, runes.JustReleased('a'))
	assert.True(t, keys.JustReleased(tcell.KeyEnter))

	require.NoError(t, a.Update())
	assert.False(t, runes.JustReleased('a'))
	assert.False(t, keys.JustReleased(tcell.KeyEnter))
}

func TestTerminal_KeyRepeat(t *testing.T) {
	t.Parallel()

	a, term, _ := setupTerminal(t)
	runes := ecs.MustResource[input.Runes](a.World())

	term.Feed(tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone))
	require.NoError(t, a.Update())

	term.Feed(tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone))
	require.NoError(t, a.Update())
	assert.True(t, runes.JustReleased('j'))
	assert.True(t, runes.JustPressed('j'))
	assert.True(t, runes.Pressed('j'))
}

func TestTerminal_Mouse(t *testing.T) {
	t.Parallel()

	a, term, window := setupTerminal(t)
	w := a.World()
	mouse := ecs.MustResource[input.MouseButtons](w)

	term.Feed(tcell.NewEventMouse(3, 4, tcell.ButtonPrimary, tcell.ModNone))
	require.NoError(t, a.Update())
	assert.True(t, mouse.JustPressed(tcell.ButtonPrimary))
	win, err := ecs.Get[view.Window](w, window)
	require.NoError(t, err)
	pos, ok := win.CursorPosition()
	require.True(t, ok)
	assert.Equal(t, cp.Vector{X: 3, Y: 4}, pos)

	moved := ecs.MustResource[ecs.Events[view.CursorMoved]](w)
	assert.Equal(t, 1, moved.Len())

	// Same position, button still down.
	term.Feed(tcell.NewEventMouse(3, 4, tcell.ButtonPrimary, tcell.ModNone))
	require.NoError(t, a.Update())
	assert.True(t, mouse.Pressed(tcell.ButtonPrimary))
	assert.False(t, mouse.JustPressed(tcell.ButtonPrimary))
	assert.Equal(t, 1, moved.Len(), "no move, no new event")

	term.Feed(tcell.NewEventMouse(5, 4, tcell.ButtonNone, tcell.ModNone))
	require.NoError(t, a.Update())
	assert.True(t, mouse.JustReleased(tcell.ButtonPrimary))
	win, err = ecs.Get[view.Window](w, window)
	require.NoError(t, err)
	assert.Equal(t, cp.Vector{X: 5, Y: 4}, *win.Cursor)
}

func TestTerminal_Resize(t *testing.T) {
	t.Parallel()

	a, term, window := setupTerminal(t)

	term.Feed(tcell.NewEventResize(120, 40))
	require.NoError(t, a.Update())

	win, err := ecs.Get[view.Window](a.World(), window)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, win.Width, 0)
	assert.InDelta(t, 40.0, win.Height, 0)
	assert.Equal(t, "term", win.Title)
}

func TestTerminalPlugin_NeedsTerminal(t *testing.T) {
	t.Parallel()

	a := NewApp(t)
	require.Error(t, a.AddPlugins(input.TerminalPlugin{}))
}

func TestPlugin_GatesSystems(t *testing.T) {
	t.Parallel()

	a, term, _ := setupTerminal(t)
	runs := 0
	a.AddSystem(app.Update{}, ecs.Func("jump", func(struct{}) (struct{}, error) {
		runs++
		return struct{}{}, nil
	})).RunIf(input.RunePressed(' '))

	require.NoError(t, a.Update())
	assert.Equal(t, 0, runs)

	term.Feed(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone))
	require.NoError(t, a.Update())
	assert.Equal(t, 1, runs)

	require.NoError(t, a.Update())
	assert.Equal(t, 1, runs)
}
