package ui

import (
	"os"

	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// MenuSpec describes a menu of buttons.
//
// Example:
//
//	name: main
//	buttons:
//	  - name: play
//	    label: Play
//	    x: 2
//	    y: 2
//	    width: 12
//	    height: 1
//	    on_click:
//	      - command: start
//	  - name: quit
//	    label: Quit
//	    x: 2
//	    y: 4
//	    width: 12
//	    height: 1
//	    on_click:
//	      - command: despawn
//	        with_entity: true
type MenuSpec struct {
	Name    string       `yaml:"name"`
	Buttons []ButtonSpec `yaml:"buttons"`
}

type ButtonSpec struct {
	Name     string         `yaml:"name"`
	Label    string         `yaml:"label"`
	X        float64        `yaml:"x"`
	Y        float64        `yaml:"y"`
	Width    float64        `yaml:"width"`
	Height   float64        `yaml:"height"`
	Inactive bool           `yaml:"inactive"`
	OnClick  []BehaviorSpec `yaml:"on_click"`
}

type BehaviorSpec struct {
	Command    string `yaml:"command"`
	WithEntity bool   `yaml:"with_entity"`
}

func (b BehaviorSpec) behavior() Behavior {
	if b.WithEntity {
		return RunCommandWithEntity(b.Command)
	}
	return RunCommand(b.Command)
}

func (m MenuSpec) validate() error {
	if m.Name == "" {
		return eris.New("menu needs a name")
	}
	seen := make(map[string]struct{}, len(m.Buttons))
	for i, button := range m.Buttons {
		if button.Name == "" {
			return eris.Errorf("button %d needs a name", i)
		}
		if _, ok := seen[button.Name]; ok {
			return eris.Errorf("duplicate button %s", button.Name)
		}
		seen[button.Name] = struct{}{}
		if button.Width <= 0 || button.Height <= 0 {
			return eris.Errorf("button %s must have a positive size", button.Name)
		}
		for j, behavior := range button.OnClick {
			if behavior.Command == "" {
				return eris.Errorf("button %s behavior %d has no command", button.Name, j)
			}
		}
	}
	return nil
}

// ParseMenu decodes and validates a YAML menu spec.
func ParseMenu(data []byte) (MenuSpec, error) {
	var spec MenuSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return MenuSpec{}, eris.Wrap(err, "failed to decode menu")
	}
	if err := spec.validate(); err != nil {
		return MenuSpec{}, eris.Wrap(err, "invalid menu")
	}
	return spec, nil
}

// LoadMenu reads a YAML menu spec from path.
func LoadMenu(path string) (MenuSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MenuSpec{}, eris.Wrapf(err, "failed to read menu %s", path)
	}
	spec, err := ParseMenu(data)
	if err != nil {
		return MenuSpec{}, eris.Wrap(err, path)
	}
	return spec, nil
}

// Menu is the root entity of a spawned menu. Its buttons are its children.
type Menu struct {
	Title string `json:"title"`
}

func (Menu) Name() string { return "ui.Menu" }

// MenuButton names a button spawned from a MenuSpec. Key is the ButtonSpec name.
type MenuButton struct {
	Key string `json:"key"`
}

func (MenuButton) Name() string { return "ui.MenuButton" }

// SpawnMenu spawns spec's root entity and its buttons. Returns the root.
func SpawnMenu(w *ecs.World, spec MenuSpec) (ecs.EntityID, error) {
	if err := spec.validate(); err != nil {
		return 0, eris.Wrap(err, "invalid menu")
	}
	root, err := w.Spawn(Menu{Title: spec.Name})
	if err != nil {
		return 0, eris.Wrapf(err, "failed to spawn menu %s", spec.Name)
	}

	for _, button := range spec.Buttons {
		behaviors := make([]Behavior, 0, len(button.OnClick))
		for _, b := range button.OnClick {
			behaviors = append(behaviors, b.behavior())
		}
		components := []ecs.Component{
			Button{},
			MenuButton{Key: button.Name},
			Label{Text: button.Label},
			Node{Rect: view.NewRect(button.X, button.Y, button.Width, button.Height)},
			InteractionNone,
			OnClick(behaviors...),
		}
		if button.Inactive {
			components = append(components, Inactive{})
		}

		eid, err := w.Spawn(components...)
		if err != nil {
			return 0, eris.Wrapf(err, "failed to spawn button %s", button.Name)
		}
		if err := ecs.SetParent(w, eid, root); err != nil {
			return 0, eris.Wrapf(err, "failed to attach button %s", button.Name)
		}
	}
	return root, nil
}

// ReplaceMenu despawns every menu named like spec, with its buttons, and spawns spec.
func ReplaceMenu(w *ecs.World, spec MenuSpec) (ecs.EntityID, error) {
	var old []ecs.EntityID
	for eid := range w.Entities() {
		if menu, err := ecs.Get[Menu](w, eid); err == nil && menu.Title == spec.Name {
			old = append(old, eid)
		}
	}
	for _, eid := range old {
		if err := w.DespawnRecursive(eid); err != nil {
			return 0, eris.Wrapf(err, "failed to despawn menu %s", spec.Name)
		}
	}
	return SpawnMenu(w, spec)
}

// MenuPlugin spawns a menu at startup. With a Watcher, the menu is respawned whenever the watcher
// reports a new version of the file; specs that fail to load are logged and the current menu stays.
type MenuPlugin struct {
	Spec    MenuSpec
	Watcher *MenuWatcher
}

func (p MenuPlugin) Build(a *app.App) error {
	if err := p.Spec.validate(); err != nil {
		return eris.Wrap(err, "invalid menu")
	}
	if err := a.AddPlugins(Plugin{}); err != nil {
		return err
	}

	spec := p.Spec
	a.AddSystem(app.Startup{}, ecs.NewExclusiveSystem("ui.SpawnMenu", &menuState{}, func(state *menuState) error {
		_, err := SpawnMenu(state.World(), spec)
		return err
	}))
	if p.Watcher != nil {
		a.AddSystem(app.PreUpdate{}, p.Watcher.reloadSystem())
	}
	return nil
}

type menuState struct {
	ecs.BaseSystemState
}
