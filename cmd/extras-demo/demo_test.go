package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/argus-labs/cardinal-extras/pkg/cursor"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/script"
	"github.com/argus-labs/cardinal-extras/pkg/task"
	"github.com/argus-labs/cardinal-extras/pkg/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	screenWidth  = 40
	screenHeight = 10
)

type testDemo struct {
	*demo
	screen tcell.SimulationScreen
	quit   *bool
}

func newTestDemo(t *testing.T, opts options) testDemo {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	t.Cleanup(screen.Fini)
	screen.SetSize(screenWidth, screenHeight)

	if opts.TickRate == 0 {
		opts.TickRate = 1000
	}
	quit := new(bool)
	d, err := newDemo(screen, opts, io.Discard, func() { *quit = true })
	require.NoError(t, err)
	t.Cleanup(d.close)
	return testDemo{demo: d, screen: screen, quit: quit}
}

func (td testDemo) update(t *testing.T) {
	t.Helper()
	require.NoError(t, td.app.Update())
}

func (td testDemo) click(t *testing.T, x, y int) {
	t.Helper()
	td.terminal.Feed(tcell.NewEventMouse(x, y, tcell.ButtonPrimary, tcell.ModNone))
	td.update(t)
	td.terminal.Feed(tcell.NewEventMouse(x, y, tcell.ButtonNone, tcell.ModNone))
	td.update(t)
}

func (td testDemo) row(y int) string {
	cells, width, _ := td.screen.GetContents()
	var b strings.Builder
	for x := range width {
		if runes := cells[y*width+x].Runes; len(runes) > 0 {
			b.WriteRune(runes[0])
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func (td testDemo) status() string {
	return td.row(screenHeight - 1)
}

func (td testDemo) button(t *testing.T, name string) ecs.EntityID {
	t.Helper()
	w := td.app.World()
	for eid := range w.Entities() {
		if button, err := ecs.Get[ui.MenuButton](w, eid); err == nil && button.Key == name {
			return eid
		}
	}
	t.Fatalf("no button %s", name)
	return 0
}

func TestDemo_Render(t *testing.T) {
	t.Parallel()
	td := newTestDemo(t, options{})
	td.update(t)

	assert.Equal(t, "  [ Hello ]", td.row(1))
	assert.Equal(t, "  [ Hide me ]", td.row(3))
	assert.Equal(t, "  [ Quit ]", td.row(5))
	assert.True(t, strings.HasPrefix(td.status(), "click a button"), td.status())
}

func TestDemo_Commands(t *testing.T) {
	t.Parallel()
	td := newTestDemo(t, options{})
	td.update(t)

	td.click(t, 3, 1)
	assert.True(t, strings.HasPrefix(td.status(), "hello there"), td.status())
	assert.False(t, *td.quit)

	td.click(t, 3, 5)
	assert.True(t, *td.quit)
}

func TestDemo_DisableAndRestore(t *testing.T) {
	t.Parallel()
	td := newTestDemo(t, options{})
	td.update(t)
	hide := td.button(t, "hide")
	w := td.app.World()

	td.click(t, 3, 3)
	assert.True(t, ecs.Has[ui.Inactive](w, hide))

	td.terminal.Feed(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone))
	td.update(t)
	assert.False(t, ecs.Has[ui.Inactive](w, hide))
}

func TestDemo_Escape(t *testing.T) {
	t.Parallel()
	td := newTestDemo(t, options{})
	td.update(t)
	assert.False(t, *td.quit)

	td.terminal.Feed(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	td.update(t)
	assert.True(t, *td.quit)
}

func TestDemo_Scripts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shout.tengo"), []byte(`emit("shouted", args[0])`), 0o600))
	menu := filepath.Join(dir, "menu.yaml")
	require.NoError(t, os.WriteFile(menu, []byte(`
name: scripted
buttons:
  - name: shout
    label: Shout
    x: 0
    y: 0
    width: 4.5
    height: 0.5
    on_click:
      - command: shout hey
`), 0o600))

	td := newTestDemo(t, options{Menu: menu, Scripts: dir})
	deadline := time.Now().Add(5 * time.Second)
	for !strings.HasPrefix(td.status(), "scripts: shout") {
		require.True(t, time.Now().Before(deadline), "scripts never loaded: %q", td.status())
		td.update(t)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, "Shout", td.row(0))

	td.click(t, 1, 0)
	assert.True(t, strings.HasPrefix(td.status(), "shout: shouted"), td.status())
}

func TestDemo_Wiring(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	td := newTestDemo(t, options{Scripts: dir})
	td.update(t)
	w := td.app.World()

	host, ok := ecs.Resource[ui.CommandHost](w)
	require.True(t, ok)
	registry, ok := host.Runner.(*ui.CommandRegistry)
	require.True(t, ok, "registered commands take precedence over scripts")
	assert.IsType(t, &script.Runner{}, registry.Fallback)

	assert.True(t, ecs.HasResource[cursor.WorldCursor](w))
	assert.True(t, ecs.HasResource[task.Pool](w))
	status, ok := ecs.Resource[statusLine](w)
	require.True(t, ok)
	assert.NotEmpty(t, status.Text)

	var menus []ecs.EntityID
	for eid := range w.Entities() {
		if menu, err := ecs.Get[ui.Menu](w, eid); err == nil && menu.Title == defaultMenu.Name {
			menus = append(menus, eid)
		}
	}
	require.Len(t, menus, 1)
	children, err := ecs.Get[ecs.Children](w, menus[0])
	require.NoError(t, err)
	assert.Len(t, children.IDs, len(defaultMenu.Buttons))

	// Closing twice, as the error paths of newDemo and the test cleanup both may, is fine.
	td.close()
	td.close()
}

func TestDemo_CloseWithoutApp(t *testing.T) {
	t.Parallel()
	d := &demo{}
	assert.NotPanics(t, d.close)
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		opts    options
		wantErr bool
	}{
		{name: "defaults", opts: options{TickRate: 30}},
		{name: "watch menu", opts: options{TickRate: 30, Menu: "menu.yaml", Watch: true}},
		{name: "zero tick rate", opts: options{}, wantErr: true},
		{name: "watch without menu", opts: options{TickRate: 30, Watch: true}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.opts.validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRootCmd(t *testing.T) {
	t.Parallel()
	cmd := newRootCmd()
	assert.Equal(t, "30", cmd.Flags().Lookup("tick-rate").DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("watch"))

	cmd.SetArgs([]string{"--tick-rate", "0"})
	cmd.SetOut(io.Discard)
	require.ErrorContains(t, cmd.Execute(), "tick rate must be positive")
}
