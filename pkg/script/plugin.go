package script

import (
	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/ui"
	"github.com/rotisserie/eris"
)

// Plugin makes Runner the command runner for click behaviors. With a Registry, registered commands
// take precedence and everything else falls through to the scripts.
type Plugin struct {
	Runner   *Runner
	Registry *ui.CommandRegistry
}

func (p Plugin) Build(a *app.App) error {
	if p.Runner == nil {
		return eris.New("script plugin needs a runner")
	}
	w := a.World()
	ecs.RegisterEvent[Emitted](w)

	var runner ui.CommandRunner = p.Runner
	if p.Registry != nil {
		p.Registry.Fallback = p.Runner
		runner = p.Registry
	}
	ecs.InsertResource(w, ui.CommandHost{Runner: runner})
	return nil
}
