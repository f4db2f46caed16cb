// Package app runs an ecs.World through a fixed sequence of schedules once per tick.
package app

import (
	"context"
	"reflect"
	"time"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/statsd"
	"github.com/argus-labs/cardinal-extras/pkg/telemetry"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Schedule labels, in the order Update runs them. Startup runs once before the first tick.
type (
	Startup         struct{}
	First           struct{}
	PreUpdate       struct{}
	StateTransition struct{}
	Update          struct{}
	PostUpdate      struct{}
	Last            struct{}
)

// tickSchedules is the order schedules run in every tick.
var tickSchedules = []ecs.ScheduleLabel{
	First{}, PreUpdate{}, StateTransition{}, Update{}, PostUpdate{}, Last{},
}

// Plugin groups the setup of a feature. Plugins of the same type are only built once.
type Plugin interface {
	Build(a *App) error
}

// App owns a world and its schedules.
type App struct {
	world     *ecs.World
	schedules *ecs.Schedules
	plugins   map[reflect.Type]struct{}
	started   bool
	tick      uint64

	options Options
	tel     telemetry.Telemetry
	logger  zerolog.Logger
}

// New creates an app. Options are merged over the environment configuration.
func New(opts Options) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load app config")
	}
	options := newDefaultOptions()
	cfg.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid app options")
	}

	tel, err := telemetry.New(telemetry.Options{
		ServiceName:    options.Name,
		Output:         options.LogOutput,
		TracerProvider: options.TracerProvider,
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize telemetry")
	}

	if options.StatsdAddress != "" {
		if err := statsd.Init(options.StatsdAddress, options.StatsdTags); err != nil {
			return nil, eris.Wrap(err, "failed to initialize statsd")
		}
	}

	world := ecs.NewWorld()
	world.SetLogger(tel.GetLogger("ecs"))
	world.SetTracer(tel.Tracer)

	a := &App{
		world:     world,
		schedules: ecs.InitResource[ecs.Schedules](world),
		plugins:   make(map[reflect.Type]struct{}),
		options:   options,
		tel:       tel,
		logger:    tel.GetLogger("app"),
	}
	for _, label := range append([]ecs.ScheduleLabel{Startup{}}, tickSchedules...) {
		a.schedules.Entry(label)
	}
	return a, nil
}

// World returns the app's world.
func (a *App) World() *ecs.World {
	return a.world
}

// Options returns the resolved options.
func (a *App) Options() Options {
	return a.options
}

// Logger returns a logger for component.
func (a *App) Logger(component string) zerolog.Logger {
	return a.tel.GetLogger(component)
}

// Tick returns the number of completed ticks.
func (a *App) Tick() uint64 {
	return a.tick
}

// Schedule returns the schedule labelled label, creating it if needed.
func (a *App) Schedule(label ecs.ScheduleLabel) *ecs.Schedule {
	return a.schedules.Entry(label)
}

// AddSystem adds a system to the schedule labelled label.
func (a *App) AddSystem(label ecs.ScheduleLabel, system ecs.Runnable) *ecs.SystemConfig {
	return a.Schedule(label).AddSystem(system)
}

// AddSystems adds several unconstrained systems to the schedule labelled label.
func (a *App) AddSystems(label ecs.ScheduleLabel, systems ...ecs.Runnable) {
	schedule := a.Schedule(label)
	for _, system := range systems {
		schedule.AddSystem(system)
	}
}

// ConfigureSet returns the configuration of set in the schedule labelled label.
func (a *App) ConfigureSet(label ecs.ScheduleLabel, set ecs.SystemSet) *ecs.SetConfig {
	return a.Schedule(label).ConfigureSet(set)
}

// AddPlugins builds plugins in order, skipping plugin types that were already built.
func (a *App) AddPlugins(plugins ...Plugin) error {
	for _, plugin := range plugins {
		typ := reflect.TypeOf(plugin)
		if _, ok := a.plugins[typ]; ok {
			continue
		}
		a.plugins[typ] = struct{}{}
		if err := plugin.Build(a); err != nil {
			return eris.Wrapf(err, "failed to build plugin %s", typ)
		}
		a.logger.Debug().Str("plugin", typ.String()).Msg("plugin built")
	}
	return nil
}

// HasPlugin reports whether a plugin of the same type as plugin was built.
func (a *App) HasPlugin(plugin Plugin) bool {
	_, ok := a.plugins[reflect.TypeOf(plugin)]
	return ok
}

// InitState sets up the state machine of type S starting in initial. The StateTransition
// schedule drives it; OnEnter and OnExit schedules run its callbacks.
func InitState[S comparable](a *App, initial S) {
	if ecs.HasResource[ecs.State[S]](a.world) {
		return
	}
	ecs.InitState(a.world, initial)
	a.AddSystem(StateTransition{}, ecs.StateTransitionSystem[S]())
}

// OnEnter returns the schedule run when the state machine of S enters state.
func OnEnter[S comparable](a *App, state S) *ecs.Schedule {
	return a.Schedule(ecs.OnEnter[S]{State: state})
}

// OnExit returns the schedule run when the state machine of S leaves state.
func OnExit[S comparable](a *App, state S) *ecs.Schedule {
	return a.Schedule(ecs.OnExit[S]{State: state})
}

// Update runs one tick: Startup on the first call, then every tick schedule in order. Events
// are rotated before the tick so each event is visible for this tick and the next.
func (a *App) Update() error {
	start := time.Now()

	if !a.started {
		a.started = true
		if err := ecs.RunSchedule(a.world, Startup{}); err != nil {
			return eris.Wrap(err, "startup failed")
		}
	}

	a.world.UpdateEvents()
	for _, label := range tickSchedules {
		if err := ecs.RunSchedule(a.world, label); err != nil {
			return eris.Wrapf(err, "tick %d", a.tick)
		}
	}
	ecs.CheckChangeTicks(a.world)

	a.tick++
	statsd.EmitTickStat(start)
	return nil
}

// Run calls Update at the configured tick rate until ctx is done or a tick fails. A failed tick is
// reported to Sentry when it's configured.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Float64("tick_rate", a.options.TickRate).Msg("starting app loop")

	ticker := time.NewTicker(time.Duration(float64(time.Second) / a.options.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Update(); err != nil {
				a.logger.Error().Err(err).Msg("tick failed")
				a.tel.CaptureError(ctx, err)
				a.tel.Shutdown(context.WithoutCancel(ctx))
				return eris.Wrap(err, "failed to run tick")
			}
		case <-ctx.Done():
			a.logger.Info().Uint64("ticks", a.tick).Msg("app loop stopped")
			a.tel.Shutdown(context.WithoutCancel(ctx))
			return ctx.Err()
		}
	}
}
