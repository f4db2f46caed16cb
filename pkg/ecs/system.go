package ecs

import (
	"github.com/argus-labs/cardinal-extras/pkg/assert"
	"github.com/rotisserie/eris"
)

// SystemSet labels a group of systems for ordering and run conditions. Any comparable value
// works; the usual choice is an empty struct type per set.
type SystemSet any

// System is a unit of work the scheduler can run. The scheduler only sees this interface: a name,
// a static data footprint, and a change-tick watermark. Systems take an input and produce an
// output so they can be composed, e.g. by piping one system's output into another.
type System[In, Out any] interface {
	// Name returns the display name of the system.
	Name() string
	// Initialize registers the system's data with w and computes its access. It is called once
	// before the first run.
	Initialize(w *World) error
	// Access returns the data footprint computed by Initialize.
	Access() *Access
	// Run runs the system once.
	Run(w *World, in In) (Out, error)
	// ApplyDeferred applies structural changes queued during Run.
	ApplyDeferred(w *World)
	// IsExclusive reports whether the system needs the whole world to itself.
	IsExclusive() bool
	// HasDeferred reports whether the system queues deferred changes.
	HasDeferred() bool
	// LastRun returns the tick of the system's previous run.
	LastRun() Tick
	// SetLastRun overrides the tick of the system's previous run.
	SetLastRun(tick Tick)
	// CheckChangeTick clamps the stored tick so it never looks newer than it is after wraparound.
	CheckChangeTick(now Tick)
	// DefaultSets returns the sets the system belongs to wherever it's scheduled.
	DefaultSets() []SystemSet
}

// Runnable is a system without input or output, the kind a schedule runs.
type Runnable = System[struct{}, struct{}]

// Condition is a system that decides whether other systems run.
type Condition = System[struct{}, bool]

// systemConfig holds all configurable options for system construction.
type systemConfig struct {
	exclusive   bool
	defaultSets []SystemSet
}

// SystemOption is a function that configures a system.
type SystemOption func(*systemConfig)

// WithExclusive makes the system exclusive. Exclusive systems run alone and may use
// BaseSystemState.World to touch the world directly.
func WithExclusive() SystemOption {
	return func(cfg *systemConfig) { cfg.exclusive = true }
}

// WithDefaultSets adds sets the system joins wherever it's scheduled.
func WithDefaultSets(sets ...SystemSet) SystemOption {
	return func(cfg *systemConfig) { cfg.defaultSets = append(cfg.defaultSets, sets...) }
}

var _ Runnable = &FunctionSystem[struct{}, struct{}, struct{}]{}

// FunctionSystem runs a function with a state struct whose fields are system state fields
// (BaseSystemState, Res, ResMut, Query, Contains, Commands, ...). The fields are initialized by
// reflection and determine the system's access.
//
// Example:
//
//	type MoveState struct {
//	    Movers ecs.Contains[struct {
//	        Position ecs.Ref[Position]
//	        Velocity ecs.View[Velocity]
//	    }]
//	}
//
//	move := ecs.NewSystem("move", &MoveState{}, func(state *MoveState) error {
//	    for _, mover := range state.Movers.Iter() {
//	        pos, vel := mover.Position.Get(), mover.Velocity.Get()
//	        mover.Position.Set(Position{X: pos.X + vel.X, Y: pos.Y + vel.Y})
//	    }
//	    return nil
//	})
type FunctionSystem[S, In, Out any] struct {
	name   string
	state  *S
	fn     func(*S, In) (Out, error)
	config systemConfig

	world    *World
	access   Access
	ticked   []tickedField
	deferred []deferredField
	lastRun  Tick
}

// NewSystem creates a system from a function that only takes its state.
func NewSystem[S any](
	name string, state *S, fn func(*S) error, opts ...SystemOption,
) *FunctionSystem[S, struct{}, struct{}] {
	return NewSystemWith(name, state, func(s *S, _ struct{}) (struct{}, error) {
		return struct{}{}, fn(s)
	}, opts...)
}

// NewExclusiveSystem creates a system that runs alone and may access the world directly through
// an embedded BaseSystemState.
func NewExclusiveSystem[S any](
	name string, state *S, fn func(*S) error, opts ...SystemOption,
) *FunctionSystem[S, struct{}, struct{}] {
	return NewSystem(name, state, fn, append(opts, WithExclusive())...)
}

// NewCondition creates a run condition.
func NewCondition[S any](
	name string, state *S, fn func(*S) bool, opts ...SystemOption,
) *FunctionSystem[S, struct{}, bool] {
	return NewSystemWith(name, state, func(s *S, _ struct{}) (bool, error) {
		return fn(s), nil
	}, opts...)
}

// NewSystemWith creates a system with an input and an output.
func NewSystemWith[S, In, Out any](
	name string, state *S, fn func(*S, In) (Out, error), opts ...SystemOption,
) *FunctionSystem[S, In, Out] {
	assert.That(state != nil, "system %s state cannot be nil", name)
	cfg := systemConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FunctionSystem[S, In, Out]{
		name:   name,
		state:  state,
		fn:     fn,
		config: cfg,
	}
}

// Func creates a stateless system from a plain function.
func Func[In, Out any](name string, fn func(In) (Out, error), opts ...SystemOption) *FunctionSystem[struct{}, In, Out] {
	return NewSystemWith(name, &struct{}{}, func(_ *struct{}, in In) (Out, error) {
		return fn(in)
	}, opts...)
}

func (s *FunctionSystem[S, In, Out]) Name() string {
	return s.name
}

// Initialize initializes the state fields and computes the access. Initializing again with the
// same world is a no-op.
func (s *FunctionSystem[S, In, Out]) Initialize(w *World) error {
	if s.world != nil {
		if s.world == w {
			return nil
		}
		return eris.Errorf("system %s is already initialized with another world", s.name)
	}

	meta := fieldMeta{
		world:     w,
		system:    s.name,
		exclusive: s.config.exclusive,
		access:    &s.access,
	}
	if err := initSystemFields(&meta, s.state); err != nil {
		s.access.Clear()
		return eris.Wrapf(err, "failed to initialize system %s", s.name)
	}
	if s.config.exclusive {
		s.access.SetExclusive()
	}

	s.ticked = meta.ticked
	s.deferred = meta.deferred
	s.lastRun = w.ChangeTick() - Tick(MaxChangeAge)
	s.world = w
	return nil
}

func (s *FunctionSystem[S, In, Out]) Access() *Access {
	return &s.access
}

// Run runs the function at a fresh change tick. Errors from the function are returned unchanged.
func (s *FunctionSystem[S, In, Out]) Run(w *World, in In) (Out, error) {
	if s.world == nil {
		var zero Out
		return zero, eris.Wrapf(ErrNotInitialized, "system %s", s.name)
	}
	assert.That(s.world == w, "system %s ran against a different world", s.name)

	thisRun := w.IncrementChangeTick()
	for _, field := range s.ticked {
		field.setTicks(tickRange{lastRun: s.lastRun, thisRun: thisRun})
	}
	out, err := s.fn(s.state, in)
	s.lastRun = thisRun
	return out, err
}

func (s *FunctionSystem[S, In, Out]) ApplyDeferred(w *World) {
	for _, field := range s.deferred {
		field.applyDeferred(w)
	}
}

func (s *FunctionSystem[S, In, Out]) IsExclusive() bool {
	return s.config.exclusive
}

func (s *FunctionSystem[S, In, Out]) HasDeferred() bool {
	return len(s.deferred) > 0
}

func (s *FunctionSystem[S, In, Out]) LastRun() Tick {
	return s.lastRun
}

func (s *FunctionSystem[S, In, Out]) SetLastRun(tick Tick) {
	s.lastRun = tick
}

func (s *FunctionSystem[S, In, Out]) CheckChangeTick(now Tick) {
	s.lastRun.CheckTick(now)
}

func (s *FunctionSystem[S, In, Out]) DefaultSets() []SystemSet {
	return s.config.defaultSets
}

// State returns the system's state struct.
func (s *FunctionSystem[S, In, Out]) State() *S {
	return s.state
}
