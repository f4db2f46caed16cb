package task

import (
	"fmt"
	"reflect"

	"github.com/argus-labs/cardinal-extras/pkg/app"
	"github.com/argus-labs/cardinal-extras/pkg/chain"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
)

// Helper starts background tasks and consumes their outputs. S is the system state the start
// phase runs with and O the one outputs are handled with; both are ordinary system state structs
// (Res, ResMut, Commands, Query, ...).
//
// Only one helper per output type may be registered with an app.
type Helper[Out, S, O any] interface {
	// ShouldStart decides whether Start runs this tick. It runs as a run condition, so it gets
	// its own instance of S.
	ShouldStart(state *S) bool
	// Start launches zero or more tasks on pool.
	Start(pool *Pool, state *S) []*Task[Out]
	// HandleOutput consumes the output of one completed task.
	HandleOutput(state *O, out Out)
}

// Progress is the number of completed and started tasks.
type Progress struct {
	Done  int
	Total int
}

// Ratio returns Done/Total, treating a zero Total as one.
func (p Progress) Ratio() float64 {
	return float64(p.Done) / float64(max(p.Total, 1))
}

// State is the resource holding the progress of the helper producing Out.
type State[Out any] struct {
	done  int
	total int
}

// Progress returns the current progress. Total is never reported below 1 so consumers can divide
// by it.
func (s *State[Out]) Progress() Progress {
	return Progress{Done: s.done, Total: max(s.total, 1)}
}

// Raw returns the counters without clamping.
func (s *State[Out]) Raw() (done, total int) {
	return s.done, s.total
}

// Set groups the systems of the helper producing Out, for ordering against other systems.
type Set[Out any] struct{}

// awaiting tracks one in-flight task on an entity.
type awaiting[Out any] struct {
	task *Task[Out]
}

func (awaiting[Out]) Name() string { return "task.Awaiting[" + typeName[Out]() + "]" }

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// -------------------------------------------------------------------------------------------------
// Systems
// -------------------------------------------------------------------------------------------------

type shouldStartState[S any] struct {
	Params S
}

type startState[Out, S any] struct {
	Cmds   ecs.Commands
	State  ecs.ResMut[State[Out]]
	Pool   ecs.Res[Pool]
	Params S
}

type pollState[Out, O any] struct {
	Cmds   ecs.Commands
	State  ecs.ResMut[State[Out]]
	Tasks  ecs.Contains[struct{ Task ecs.View[awaiting[Out]] }]
	Params O
}

type resetState[Out any] struct {
	Cmds  ecs.Commands
	State ecs.ResMut[State[Out]]
	Tasks ecs.Contains[struct{ Task ecs.View[awaiting[Out]] }]
}

type anyAwaitingState[Out any] struct {
	Tasks ecs.Query
}

func shouldStartCondition[Out, S, O any](helper Helper[Out, S, O]) ecs.Condition {
	name := fmt.Sprintf("task.ShouldStart[%s]", typeName[Out]())
	return ecs.NewCondition(name, &shouldStartState[S]{}, func(state *shouldStartState[S]) bool {
		return helper.ShouldStart(&state.Params)
	})
}

func startSystem[Out, S, O any](helper Helper[Out, S, O]) ecs.Runnable {
	name := fmt.Sprintf("task.Start[%s]", typeName[Out]())
	return ecs.NewSystem(name, &startState[Out, S]{}, func(state *startState[Out, S]) error {
		progress := state.State.Get()
		for _, task := range helper.Start(state.Pool.Get(), &state.Params) {
			if _, err := state.Cmds.Spawn(awaiting[Out]{task: task}); err != nil {
				return err
			}
			progress.total++
		}
		return nil
	})
}

func pollSystem[Out, S, O any](helper Helper[Out, S, O]) ecs.Runnable {
	name := fmt.Sprintf("task.Poll[%s]", typeName[Out]())
	return ecs.NewSystem(name, &pollState[Out, O]{}, func(state *pollState[Out, O]) error {
		progress := state.State.Get()
		for eid, tracked := range state.Tasks.Iter() {
			task := tracked.Task.Get().task
			out, ok := task.Poll()
			if !ok {
				if task.Err() != nil {
					// Dropped before it ran, so it will never produce an output.
					state.Cmds.Despawn(eid)
					progress.total--
				}
				continue
			}
			helper.HandleOutput(&state.Params, out)
			state.Cmds.Despawn(eid)
			progress.done++
		}
		return nil
	})
}

type progressState[Out any] struct {
	State ecs.Res[State[Out]]
}

func progressSystem[Out any]() *ecs.FunctionSystem[progressState[Out], struct{}, Progress] {
	name := fmt.Sprintf("task.Progress[%s]", typeName[Out]())
	return ecs.NewSystemWith(name, &progressState[Out]{}, func(state *progressState[Out], _ struct{}) (Progress, error) {
		return state.State.Get().Progress(), nil
	})
}

func anyAwaiting[Out any]() ecs.Condition {
	name := fmt.Sprintf("task.AnyAwaiting[%s]", typeName[Out]())
	state := &anyAwaitingState[Out]{Tasks: ecs.NewQuery(ecs.With[awaiting[Out]]())}
	return ecs.NewCondition(name, state, func(state *anyAwaitingState[Out]) bool {
		return !state.Tasks.IsEmpty()
	})
}

// ResetSystem returns a system that cancels and forgets every in-flight task of the helper
// producing Out and zeroes its progress.
func ResetSystem[Out any]() ecs.Runnable {
	name := fmt.Sprintf("task.Reset[%s]", typeName[Out]())
	return ecs.NewSystem(name, &resetState[Out]{}, func(state *resetState[Out]) error {
		for eid, tracked := range state.Tasks.Iter() {
			tracked.Task.Get().task.Cancel()
			state.Cmds.Despawn(eid)
		}
		progress := state.State.Get()
		progress.done, progress.total = 0, 0
		return nil
	})
}

// -------------------------------------------------------------------------------------------------
// Tracker
// -------------------------------------------------------------------------------------------------

// Tracker is the resource aggregating the progress of every helper registered with
// RegisterWithProgress.
type Tracker struct {
	entries map[string]Progress
}

// Report records the progress of the helper named key.
func (t *Tracker) Report(key string, p Progress) {
	if t.entries == nil {
		t.entries = make(map[string]Progress)
	}
	t.entries[key] = p
}

// Progress returns the sum of every reported progress.
func (t *Tracker) Progress() Progress {
	var sum Progress
	for _, p := range t.entries {
		sum.Done += p.Done
		sum.Total += p.Total
	}
	return sum
}

// IsComplete reports whether every helper finished all of its tasks.
func (t *Tracker) IsComplete() bool {
	p := t.Progress()
	return p.Done >= p.Total
}

type trackState struct {
	Tracker ecs.ResMut[Tracker]
}

func trackSystem(key string) *ecs.FunctionSystem[trackState, Progress, struct{}] {
	name := fmt.Sprintf("task.Track[%s]", key)
	return ecs.NewSystemWith(name, &trackState{}, func(state *trackState, p Progress) (struct{}, error) {
		state.Tracker.Get().Report(key, p)
		return struct{}{}, nil
	})
}

// -------------------------------------------------------------------------------------------------
// Registration
// -------------------------------------------------------------------------------------------------

// Plugin inserts the Pool resource, sized by the app's TaskPoolSize option.
type Plugin struct{}

func (Plugin) Build(a *app.App) error {
	if ecs.HasResource[Pool](a.World()) {
		return nil
	}
	pool, err := NewPool(a.Options().TaskPoolSize)
	if err != nil {
		return err
	}
	pool.logger = a.Logger("task")
	ecs.InsertResource(a.World(), *pool)
	return nil
}

func setup[Out any](a *app.App) error {
	if err := a.AddPlugins(Plugin{}); err != nil {
		return err
	}
	ecs.InitResource[State[Out]](a.World())
	return nil
}

// addStartAndPoll adds the start system and poll system to Update, start first.
func addStartAndPoll[Out, S, O any](a *app.App, helper Helper[Out, S, O]) {
	start := startSystem(helper)
	poll := pollSystem(helper)
	a.AddSystem(app.Update{}, start).RunIf(shouldStartCondition(helper)).InSet(Set[Out]{})
	a.AddSystem(app.Update{}, poll).After(start).RunIf(anyAwaiting[Out]()).InSet(Set[Out]{})
}

// Register runs helper every Update: start when ShouldStart says so, then poll every tracked task.
func Register[Out, S, O any](a *app.App, helper Helper[Out, S, O]) error {
	if err := setup[Out](a); err != nil {
		return err
	}
	addStartAndPoll(a, helper)
	return nil
}

// RegisterInState runs helper every Update while the state machine of St is in state. Entering
// state resets the helper so completions from an earlier visit never leak in.
func RegisterInState[St comparable, Out, S, O any](a *app.App, state St, helper Helper[Out, S, O]) error {
	if err := setup[Out](a); err != nil {
		return err
	}
	app.OnEnter(a, state).AddSystem(ResetSystem[Out]())
	a.ConfigureSet(app.Update{}, Set[Out]{}).RunIf(ecs.InState(state))
	addStartAndPoll(a, helper)
	return nil
}

// RegisterWithProgress works like RegisterInState and also reports the helper's progress to the
// Tracker resource every Update, after polling.
func RegisterWithProgress[St comparable, Out, S, O any](a *app.App, state St, helper Helper[Out, S, O]) error {
	if err := RegisterInState(a, state, helper); err != nil {
		return err
	}
	ecs.InitResource[Tracker](a.World())
	track := chain.Pipe(progressSystem[Out](), trackSystem(typeName[Out]()))
	a.AddSystem(app.Update{}, track).After(Set[Out]{}).RunIf(ecs.InState(state))
	return nil
}
