package ui

import (
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/rotisserie/eris"
)

var (
	ErrEmptyCommand   = eris.New("empty command")
	ErrUnknownCommand = eris.New("unknown command")
)

// CommandRunner runs command lines on behalf of click behaviors. It's called from an exclusive
// system, so it may use w freely.
type CommandRunner interface {
	RunCommand(w *ecs.World, line string) error
}

// CommandHost is the resource ClickSystem hands command behaviors to.
type CommandHost struct {
	Runner CommandRunner
}

// CommandFunc handles one command. args doesn't include the command name.
type CommandFunc func(w *ecs.World, args []string) error

// CommandRegistry is a CommandRunner that looks commands up by their first word. Arguments are
// split on whitespace. Commands it doesn't know go to Fallback when one is set.
type CommandRegistry struct {
	Fallback CommandRunner

	mu       sync.RWMutex
	handlers map[string]CommandFunc
}

var _ CommandRunner = &CommandRegistry{}

// NewCommandRegistry returns an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{handlers: make(map[string]CommandFunc)}
}

// Register adds a command. Names must be a single non-empty word and can only be registered once.
func (r *CommandRegistry) Register(name string, fn CommandFunc) error {
	if name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		return eris.Errorf("invalid command name %q", name)
	}
	if fn == nil {
		return eris.Errorf("command %s has no handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return eris.Errorf("command %s is already registered", name)
	}
	r.handlers[name] = fn
	return nil
}

// Names returns the registered command names in order.
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *CommandRegistry) RunCommand(w *ecs.World, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ErrEmptyCommand
	}

	r.mu.RLock()
	fn, ok := r.handlers[fields[0]]
	r.mu.RUnlock()
	if !ok {
		if r.Fallback != nil {
			return r.Fallback.RunCommand(w, line)
		}
		return eris.Wrap(ErrUnknownCommand, fields[0])
	}
	if err := fn(w, fields[1:]); err != nil {
		return eris.Wrapf(err, "command %s failed", fields[0])
	}
	return nil
}
