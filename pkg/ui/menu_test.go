package ui_test

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	. "github.com/argus-labs/cardinal-extras/pkg/testutils"
	"github.com/argus-labs/cardinal-extras/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainMenu = `
name: main
buttons:
  - name: play
    label: Play
    x: 2
    y: 2
    width: 12
    height: 1
    on_click:
      - command: start
  - name: quit
    label: Quit
    x: 2
    y: 4
    width: 12
    height: 1
    inactive: true
    on_click:
      - command: despawn
        with_entity: true
`

func TestParseMenu(t *testing.T) {
	t.Parallel()

	spec, err := ui.ParseMenu([]byte(mainMenu))
	require.NoError(t, err)
	assert.Equal(t, "main", spec.Name)
	require.Len(t, spec.Buttons, 2)
	assert.Equal(t, ui.ButtonSpec{
		Name: "quit", Label: "Quit", X: 2, Y: 4, Width: 12, Height: 1, Inactive: true,
		OnClick: []ui.BehaviorSpec{{Command: "despawn", WithEntity: true}},
	}, spec.Buttons[1])
}

func TestParseMenu_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{name: "not yaml", yaml: "name: [unterminated"},
		{name: "no name", yaml: "buttons: []"},
		{name: "unnamed button", yaml: "name: m\nbuttons:\n  - width: 1\n    height: 1"},
		{name: "duplicate button", yaml: "name: m\nbuttons:\n  - {name: a, width: 1, height: 1}\n  - {name: a, width: 1, height: 1}"},
		{name: "empty button", yaml: "name: m\nbuttons:\n  - {name: a, width: 0, height: 1}"},
		{name: "empty command", yaml: "name: m\nbuttons:\n  - {name: a, width: 1, height: 1, on_click: [{with_entity: true}]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ui.ParseMenu([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func menuButtons(t *testing.T, w *ecs.World, root ecs.EntityID) map[string]ecs.EntityID {
	t.Helper()
	children, err := ecs.Get[ecs.Children](w, root)
	require.NoError(t, err)
	buttons := make(map[string]ecs.EntityID)
	for _, child := range children.IDs {
		button, err := ecs.Get[ui.MenuButton](w, child)
		require.NoError(t, err)
		buttons[button.Key] = child
	}
	return buttons
}

func TestSpawnMenu(t *testing.T) {
	t.Parallel()

	spec, err := ui.ParseMenu([]byte(mainMenu))
	require.NoError(t, err)

	w := ecs.NewWorld()
	root, err := ui.SpawnMenu(w, spec)
	require.NoError(t, err)

	menu, err := ecs.Get[ui.Menu](w, root)
	require.NoError(t, err)
	assert.Equal(t, "main", menu.Title)

	buttons := menuButtons(t, w, root)
	require.Len(t, buttons, 2)

	play := buttons["play"]
	label, err := ecs.Get[ui.Label](w, play)
	require.NoError(t, err)
	assert.Equal(t, "Play", label.Text)
	node, err := ecs.Get[ui.Node](w, play)
	require.NoError(t, err)
	assert.InDelta(t, 14.0, node.Rect.Max.X, 0)
	assert.False(t, ecs.Has[ui.Inactive](w, play))
	assert.True(t, ecs.Has[ui.Inactive](w, buttons["quit"]))

	clicks, err := ecs.Get[ui.ClickBehaviors](w, buttons["quit"])
	require.NoError(t, err)
	require.Len(t, clicks.Behaviors, 1)
	assert.Equal(t, "command(despawn <entity>)", clicks.Behaviors[0].String())
}

func TestReplaceMenu(t *testing.T) {
	t.Parallel()

	spec, err := ui.ParseMenu([]byte(mainMenu))
	require.NoError(t, err)

	w := ecs.NewWorld()
	other, err := ui.SpawnMenu(w, ui.MenuSpec{Name: "other"})
	require.NoError(t, err)
	old, err := ui.SpawnMenu(w, spec)
	require.NoError(t, err)
	oldButtons := menuButtons(t, w, old)

	spec.Buttons = spec.Buttons[:1]
	root, err := ui.ReplaceMenu(w, spec)
	require.NoError(t, err)

	newButtons := menuButtons(t, w, root)
	require.Len(t, newButtons, 1)

	// Released ids are recycled, so an old id may now belong to the new menu.
	current := map[ecs.EntityID]bool{root: true, newButtons["play"]: true}
	for _, eid := range append([]ecs.EntityID{old}, slices.Collect(maps.Values(oldButtons))...) {
		if w.Alive(eid) {
			assert.True(t, current[eid], "entity %d survived the replace", eid)
		}
	}
	assert.True(t, w.Alive(other), "other menus stay")

	var menus, buttons int
	for eid := range w.Entities() {
		if ecs.Has[ui.Menu](w, eid) {
			menus++
		}
		if ecs.Has[ui.MenuButton](w, eid) {
			buttons++
		}
	}
	assert.Equal(t, 2, menus)
	assert.Equal(t, 1, buttons)
	found, ok := findMenu(w, "main")
	require.True(t, ok)
	assert.Equal(t, root, found)
}

func TestMenuCommands(t *testing.T) {
	t.Parallel()

	spec, err := ui.ParseMenu([]byte(mainMenu))
	require.NoError(t, err)
	spec.Buttons[1].Inactive = false

	w := ecs.NewWorld()
	registry := ui.NewCommandRegistry()
	require.NoError(t, registry.Register("despawn", func(w *ecs.World, args []string) error {
		require.Len(t, args, 1)
		eid, err := ecs.ParseEntityID(args[0])
		if err != nil {
			return err
		}
		return w.DespawnRecursive(eid)
	}))
	ecs.InsertResource(w, ui.CommandHost{Runner: registry})

	root, err := ui.SpawnMenu(w, spec)
	require.NoError(t, err)
	quit := menuButtons(t, w, root)["quit"]
	require.NoError(t, ecs.Set(w, quit, ui.InteractionPressed))

	RunSystem(t, w, ui.ClickSystem())
	assert.False(t, w.Alive(quit))
}

func writeMenu(t *testing.T, path, name string) {
	t.Helper()
	data := "name: " + name + "\nbuttons:\n  - {name: ok, width: 4, height: 1}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestWatchMenu(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "menu.yaml")
	writeMenu(t, path, "first")

	watcher, err := ui.WatchMenu(path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, watcher.Close()) })

	writeMenu(t, path, "second")

	var got *ui.MenuSpec
	assert.Eventually(t, func() bool {
		if spec, _ := watcher.Take(); spec != nil {
			got = spec
		}
		return got != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Name)

	require.NoError(t, os.WriteFile(path, []byte("name: ["), 0o600))
	assert.Eventually(t, func() bool {
		_, err := watcher.Take()
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, watcher.Close(), "close twice")
}

func TestMenuPlugin_Reload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "menu.yaml")
	writeMenu(t, path, "live")
	spec, err := ui.LoadMenu(path)
	require.NoError(t, err)

	watcher, err := ui.WatchMenu(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })

	a := NewApp(t)
	require.NoError(t, a.AddPlugins(ui.MenuPlugin{Spec: spec, Watcher: watcher}))
	require.NoError(t, a.Update())

	_, ok := findMenu(a.World(), "live")
	require.True(t, ok)

	data := "name: live\nbuttons:\n  - {name: ok, width: 4, height: 1}\n  - {name: more, width: 4, height: 1}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	assert.Eventually(t, func() bool {
		if err := a.Update(); err != nil {
			return false
		}
		root, ok := findMenu(a.World(), "live")
		if !ok {
			return false
		}
		children, err := ecs.Get[ecs.Children](a.World(), root)
		return err == nil && len(children.IDs) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMenuPlugin_InvalidSpec(t *testing.T) {
	t.Parallel()

	a := NewApp(t)
	require.Error(t, a.AddPlugins(ui.MenuPlugin{}))
}

func TestLoadMenu_Missing(t *testing.T) {
	t.Parallel()

	_, err := ui.LoadMenu(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func findMenu(w *ecs.World, name string) (ecs.EntityID, bool) {
	for eid := range w.Entities() {
		if menu, err := ecs.Get[ui.Menu](w, eid); err == nil && menu.Title == name {
			return eid, true
		}
	}
	return 0, false
}
