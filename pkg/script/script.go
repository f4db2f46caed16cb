// Package script runs tengo scripts as UI commands.
//
// A command line runs the script named by its first word. The remaining words are available to
// the script as the array args. Scripts can call back into the host:
//
//	log(values...)          logs the values at info level
//	emit(name, value)       sends an Emitted event
//	despawn(id)             despawns an entity and its children
//	component(id, name)     returns a component as a map, or undefined
//
// Example script:
//
//	id := int(args[0])
//	health := component(id, "health")
//	if health != undefined && health.value <= 0 {
//	    despawn(id)
//	    emit("died", id)
//	}
package script

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/ui"
	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Extension is the file extension LoadDir picks up.
const Extension = ".tengo"

const defaultTimeout = 100 * time.Millisecond

// hostNames are the globals every script is compiled with and that are rebound before each run.
var hostNames = []string{"args", "log", "emit", "despawn", "component"}

// Emitted is sent when a script calls emit.
type Emitted struct {
	Script string
	Name   string
	Value  any
}

// Options configures a Runner.
type Options struct {
	// Timeout bounds a single script run. Zero means 100ms.
	Timeout time.Duration
	// Modules are the standard library modules scripts may import. Nil allows all of them.
	Modules []string
}

// Runner is a ui.CommandRunner backed by compiled tengo scripts.
type Runner struct {
	mu      sync.Mutex
	scripts map[string]*tengo.Compiled
	timeout time.Duration
	modules *tengo.ModuleMap
	logger  zerolog.Logger
}

var _ ui.CommandRunner = &Runner{}

// NewRunner returns a runner without scripts.
func NewRunner(logger zerolog.Logger, opts Options) *Runner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	modules := opts.Modules
	if modules == nil {
		modules = stdlib.AllModuleNames()
	}
	return &Runner{
		scripts: make(map[string]*tengo.Compiled),
		timeout: timeout,
		modules: stdlib.GetModuleMap(modules...),
		logger:  logger.With().Str("component", "script").Logger(),
	}
}

// Add compiles src as the script called name, replacing any script with that name.
func (r *Runner) Add(name string, src []byte) error {
	if name == "" || strings.ContainsFunc(name, func(c rune) bool { return c == ' ' || c == '\t' }) {
		return eris.Errorf("invalid script name %q", name)
	}

	s := tengo.NewScript(src)
	s.SetImports(r.modules)
	for _, global := range hostNames {
		if err := s.Add(global, tengo.UndefinedValue); err != nil {
			return eris.Wrapf(err, "failed to declare %s", global)
		}
	}
	compiled, err := s.Compile()
	if err != nil {
		return eris.Wrapf(err, "failed to compile script %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[name] = compiled
	return nil
}

// LoadDir adds every script in dir, named after its file without the extension.
func (r *Runner) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "failed to read script dir %s", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != Extension {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return eris.Wrapf(err, "failed to read script %s", entry.Name())
		}
		if err := r.Add(strings.TrimSuffix(entry.Name(), Extension), src); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a script called name exists.
func (r *Runner) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.scripts[name]
	return ok
}

// Names returns the names of all scripts, sorted.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.scripts))
}

// RunCommand runs the script named by the first word of line. Unknown scripts return an error
// wrapping ui.ErrUnknownCommand.
func (r *Runner) RunCommand(w *ecs.World, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ui.ErrEmptyCommand
	}
	name, args := fields[0], fields[1:]

	// Compiled scripts keep their globals between runs, so runs of the same runner are serialized.
	r.mu.Lock()
	defer r.mu.Unlock()
	compiled, ok := r.scripts[name]
	if !ok {
		return eris.Wrap(ui.ErrUnknownCommand, name)
	}

	h := &host{world: w, script: name, logger: r.logger.With().Str("script", name).Logger()}
	if err := h.bind(compiled, args); err != nil {
		return eris.Wrapf(err, "failed to bind script %s", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := compiled.RunContext(ctx); err != nil {
		return eris.Wrapf(err, "script %s failed", name)
	}
	return nil
}
