package script

import (
	"strings"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/d5/tengo/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// host holds what the host functions of one run need.
type host struct {
	world  *ecs.World
	script string
	logger zerolog.Logger
}

func (h *host) bind(compiled *tengo.Compiled, args []string) error {
	argv := make([]tengo.Object, len(args))
	for i, arg := range args {
		argv[i] = &tengo.String{Value: arg}
	}
	bindings := map[string]any{
		"args":      &tengo.ImmutableArray{Value: argv},
		"log":       &tengo.UserFunction{Name: "log", Value: h.log},
		"emit":      &tengo.UserFunction{Name: "emit", Value: h.emit},
		"despawn":   &tengo.UserFunction{Name: "despawn", Value: h.despawn},
		"component": &tengo.UserFunction{Name: "component", Value: h.component},
	}
	for name, value := range bindings {
		if err := compiled.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (h *host) log(args ...tengo.Object) (tengo.Object, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		s, _ := tengo.ToString(arg)
		parts[i] = s
	}
	h.logger.Info().Msg(strings.Join(parts, " "))
	return tengo.UndefinedValue, nil
}

func (h *host) emit(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	name, ok := args[0].(*tengo.String)
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "name", Expected: "string", Found: args[0].TypeName()}
	}
	ecs.SendEvent(h.world, Emitted{Script: h.script, Name: name.Value, Value: tengo.ToInterface(args[1])})
	return tengo.UndefinedValue, nil
}

func (h *host) despawn(args ...tengo.Object) (tengo.Object, error) {
	eid, err := entityArg(args)
	if err != nil {
		return nil, err
	}
	if err := h.world.DespawnRecursive(eid); err != nil {
		return &tengo.Error{Value: &tengo.String{Value: err.Error()}}, nil
	}
	return tengo.TrueValue, nil
}

// component returns the named component of an entity as a map decoded from its JSON form.
func (h *host) component(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	eid, err := entityArg(args[:1])
	if err != nil {
		return nil, err
	}
	name, ok := args[1].(*tengo.String)
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "name", Expected: "string", Found: args[1].TypeName()}
	}

	components, err := h.world.Components(eid)
	if err != nil {
		return tengo.UndefinedValue, nil //nolint:nilerr // A dead entity reads as undefined
	}
	for _, c := range components {
		if c.Name() != name.Value {
			continue
		}
		data, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}
		return tengo.FromInterface(value)
	}
	return tengo.UndefinedValue, nil
}

func entityArg(args []tengo.Object) (ecs.EntityID, error) {
	if len(args) != 1 {
		return 0, tengo.ErrWrongNumArguments
	}
	id, ok := tengo.ToInt64(args[0])
	if !ok || id < 0 || id > ecs.MaxEntityID {
		return 0, tengo.ErrInvalidArgumentType{Name: "id", Expected: "entity id", Found: args[0].TypeName()}
	}
	return ecs.EntityID(id), nil
}
