package script_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/script"
	. "github.com/argus-labs/cardinal-extras/pkg/testutils"
	"github.com/argus-labs/cardinal-extras/pkg/ui"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reapScript = `
id := int(args[0])
health := component(id, "health")
if health != undefined && health.value <= 0 {
	despawn(id)
	emit("reaped", id)
}
`

type receiverState struct {
	Emitted ecs.WithEventReceiver[script.Emitted]
}

// receiver returns a function that returns the events sent since its previous call.
func receiver(t *testing.T, w *ecs.World) func() []script.Emitted {
	t.Helper()
	sys := ecs.NewSystemWith("receive", &receiverState{},
		func(state *receiverState, _ struct{}) ([]script.Emitted, error) {
			var got []script.Emitted
			for ev := range state.Emitted.Iter() {
				got = append(got, ev)
			}
			return got, nil
		})
	Initialize(t, w, sys)
	return func() []script.Emitted {
		return RunWith(t, w, sys, struct{}{})
	}
}

func newRunner(t *testing.T, opts script.Options) *script.Runner {
	t.Helper()
	return script.NewRunner(zerolog.Nop(), opts)
}

func TestRunner(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, script.Options{})
	require.NoError(t, runner.Add("reap", []byte(reapScript)))
	assert.True(t, runner.Has("reap"))

	w := ecs.NewWorld()
	received := receiver(t, w)
	dead := MustSpawn(t, w, Health{Value: 0})
	alive := MustSpawn(t, w, Health{Value: 3})
	child := MustSpawn(t, w, Marker{})
	require.NoError(t, ecs.SetParent(w, child, dead))

	require.NoError(t, runner.RunCommand(w, "reap "+strconv.Itoa(int(alive))))
	assert.True(t, w.Alive(alive))
	assert.Empty(t, received())

	require.NoError(t, runner.RunCommand(w, "reap "+strconv.Itoa(int(dead))))
	assert.False(t, w.Alive(dead))
	assert.False(t, w.Alive(child), "children go too")
	assert.Equal(t, []script.Emitted{{Script: "reap", Name: "reaped", Value: int64(dead)}}, received())
}

func TestRunner_Host(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		args    string
		want    []script.Emitted
		wantErr bool
	}{
		{
			name: "args",
			src:  `emit("args", args)`,
			args: "a b",
			want: []script.Emitted{{Script: "test", Name: "args", Value: []any{"a", "b"}}},
		},
		{
			name: "missing component",
			src:  `emit("missing", component(int(args[0]), "loot") == undefined)`,
			args: "0",
			want: []script.Emitted{{Script: "test", Name: "missing", Value: true}},
		},
		{
			name: "dead entity",
			src:  `emit("dead", component(999, "health") == undefined)`,
			want: []script.Emitted{{Script: "test", Name: "dead", Value: true}},
		},
		{
			name: "component fields",
			src:  `emit("health", component(int(args[0]), "health").value)`,
			args: "0",
			want: []script.Emitted{{Script: "test", Name: "health", Value: 7.0}},
		},
		{
			name: "despawn dead entity",
			src:  `emit("despawned", is_error(despawn(999)))`,
			want: []script.Emitted{{Script: "test", Name: "despawned", Value: true}},
		},
		{
			name: "log",
			src:  `log("hello", 1, true)`,
		},
		{
			name:    "emit arity",
			src:     `emit("only")`,
			wantErr: true,
		},
		{
			name:    "emit name type",
			src:     `emit(1, 2)`,
			wantErr: true,
		},
		{
			name:    "emit bool name",
			src:     `emit(true, 2)`,
			wantErr: true,
		},
		{
			name:    "component name type",
			src:     `component(0, 5)`,
			wantErr: true,
		},
		{
			name:    "bad entity",
			src:     `despawn("nope")`,
			wantErr: true,
		},
		{
			name:    "runtime error",
			src:     `f := 5; f()`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			runner := newRunner(t, script.Options{})
			require.NoError(t, runner.Add("test", []byte(tt.src)))

			w := ecs.NewWorld()
			received := receiver(t, w)
			MustSpawn(t, w, Health{Value: 7})

			err := runner.RunCommand(w, "test "+tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, received())
		})
	}
}

func TestRunner_Errors(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, script.Options{Timeout: 20 * time.Millisecond})
	w := ecs.NewWorld()

	require.Error(t, runner.Add("broken", []byte("if {")))
	require.Error(t, runner.Add("two words", []byte("")))
	require.Error(t, runner.Add("", []byte("")))

	require.ErrorIs(t, runner.RunCommand(w, "nope"), ui.ErrUnknownCommand)
	require.ErrorIs(t, runner.RunCommand(w, " "), ui.ErrEmptyCommand)

	require.NoError(t, runner.Add("spin", []byte("for {}")))
	require.Error(t, runner.RunCommand(w, "spin"), "runs are bounded by the timeout")
}

func TestRunner_Modules(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, script.Options{Modules: []string{"text"}})
	require.NoError(t, runner.Add("upper", []byte(`text := import("text"); emit("up", text.to_upper(args[0]))`)))
	require.Error(t, runner.Add("os", []byte(`os := import("os")`)), "module not allowed")

	w := ecs.NewWorld()
	received := receiver(t, w)
	require.NoError(t, runner.RunCommand(w, "upper hi"))
	assert.Equal(t, []script.Emitted{{Script: "upper", Name: "up", Value: "HI"}}, received())
}

func TestRunner_LoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reap.tengo"), []byte(reapScript), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a script"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.tengo"), 0o700))

	runner := newRunner(t, script.Options{})
	require.NoError(t, runner.LoadDir(dir))
	assert.True(t, runner.Has("reap"))
	assert.Equal(t, []string{"reap"}, runner.Names())
	assert.False(t, runner.Has("notes"))
	assert.False(t, runner.Has("sub"))

	require.Error(t, runner.LoadDir(filepath.Join(dir, "missing")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.tengo"), []byte("if {"), 0o600))
	require.Error(t, runner.LoadDir(dir))
}

func TestPlugin(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, script.Options{})
	require.NoError(t, runner.Add("reap", []byte(reapScript)))
	registry := ui.NewCommandRegistry()
	calls := 0
	require.NoError(t, registry.Register("count", func(*ecs.World, []string) error {
		calls++
		return nil
	}))

	a := NewApp(t)
	require.NoError(t, a.AddPlugins(script.Plugin{Runner: runner, Registry: registry}))
	w := a.World()

	host, ok := ecs.Resource[ui.CommandHost](w)
	require.True(t, ok)
	assert.Same(t, registry, host.Runner)

	button := MustSpawn(t, w, Health{Value: 0}, ui.InteractionPressed,
		ui.OnClick(ui.RunCommand("count"), ui.RunCommandWithEntity("reap")))
	RunSystem(t, w, ui.ClickSystem())
	assert.Equal(t, 1, calls)
	assert.False(t, w.Alive(button), "script despawned the clicked button")

	require.Error(t, NewApp(t).AddPlugins(script.Plugin{}))
}

func TestPlugin_RunnerOnly(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, script.Options{})
	a := NewApp(t)
	require.NoError(t, a.AddPlugins(script.Plugin{Runner: runner}))

	host, ok := ecs.Resource[ui.CommandHost](a.World())
	require.True(t, ok)
	assert.Same(t, runner, host.Runner)
}
