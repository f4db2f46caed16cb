package chain

import (
	"fmt"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/rotisserie/eris"
)

// constituents is the part shared by every composite system: the owned systems' bookkeeping and
// the access merged from them at Initialize.
type constituents struct {
	name    string
	primary interface {
		LastRun() ecs.Tick
	}
	parts  []part
	access ecs.Access
}

// part is the type-erased view of an owned system.
type part interface {
	Name() string
	Initialize(w *ecs.World) error
	Access() *ecs.Access
	ApplyDeferred(w *ecs.World)
	IsExclusive() bool
	HasDeferred() bool
	LastRun() ecs.Tick
	SetLastRun(tick ecs.Tick)
	CheckChangeTick(now ecs.Tick)
	DefaultSets() []ecs.SystemSet
}

func newConstituents(name string, parts ...part) constituents {
	return constituents{name: name, primary: parts[0], parts: parts}
}

func (c *constituents) Name() string {
	return c.name
}

// Initialize initializes every owned system and merges their accesses. The merged access is the
// union of the constituents', with a write anywhere staying a write.
func (c *constituents) Initialize(w *ecs.World) error {
	c.access.Clear()
	for _, p := range c.parts {
		if err := p.Initialize(w); err != nil {
			return eris.Wrapf(err, "failed to initialize %s", c.name)
		}
		c.access.Extend(p.Access())
	}
	return nil
}

func (c *constituents) Access() *ecs.Access {
	return &c.access
}

func (c *constituents) ApplyDeferred(w *ecs.World) {
	for _, p := range c.parts {
		p.ApplyDeferred(w)
	}
}

func (c *constituents) IsExclusive() bool {
	for _, p := range c.parts {
		if p.IsExclusive() {
			return true
		}
	}
	return false
}

func (c *constituents) HasDeferred() bool {
	for _, p := range c.parts {
		if p.HasDeferred() {
			return true
		}
	}
	return false
}

// LastRun reports the primary system's last run.
func (c *constituents) LastRun() ecs.Tick {
	return c.primary.LastRun()
}

// SetLastRun sets the watermark of every owned system so they stay consistent with each other.
func (c *constituents) SetLastRun(tick ecs.Tick) {
	for _, p := range c.parts {
		p.SetLastRun(tick)
	}
}

func (c *constituents) CheckChangeTick(now ecs.Tick) {
	for _, p := range c.parts {
		p.CheckChangeTick(now)
	}
}

func (c *constituents) DefaultSets() []ecs.SystemSet {
	var sets []ecs.SystemSet
	for _, p := range c.parts {
		sets = append(sets, p.DefaultSets()...)
	}
	return sets
}

// -------------------------------------------------------------------------------------------------
// Result router
// -------------------------------------------------------------------------------------------------

// ResultSystem runs a primary system that returns a Result, then exactly one of two continuations
// depending on the branch. The continuation's output is the router's output.
type ResultSystem[In, T, E, Out any] struct {
	constituents
	primary ecs.System[In, Result[T, E]]
	ok      ecs.System[T, Out]
	err     ecs.System[E, Out]
}

var _ ecs.System[struct{}, struct{}] = &ResultSystem[struct{}, int, error, struct{}]{}

// ChainResult composes primary with an ok and an err continuation. The router owns all three.
//
// Example:
//
//	load := chain.ChainResult(
//	    ecs.Func("read-save", readSave),   // struct{} -> Result[Save, error]
//	    ecs.Func("apply-save", applySave), // Save -> struct{}
//	    ecs.Func("show-error", showError), // error -> struct{}
//	)
func ChainResult[In, T, E, Out any](
	primary ecs.System[In, Result[T, E]], ok ecs.System[T, Out], err ecs.System[E, Out],
) *ResultSystem[In, T, E, Out] {
	name := fmt.Sprintf("ChainResult(%s -> %s / %s)", primary.Name(), ok.Name(), err.Name())
	return &ResultSystem[In, T, E, Out]{
		constituents: newConstituents(name, primary, ok, err),
		primary:      primary,
		ok:           ok,
		err:          err,
	}
}

// Run runs the primary system and dispatches on its outcome. Errors returned by any system are
// returned unchanged and stop the chain.
func (r *ResultSystem[In, T, E, Out]) Run(w *ecs.World, in In) (Out, error) {
	outcome, err := r.primary.Run(w, in)
	if err != nil {
		var zero Out
		return zero, err
	}
	if value, ok := outcome.Value(); ok {
		return r.ok.Run(w, value)
	}
	failure, _ := outcome.Error()
	return r.err.Run(w, failure)
}

// -------------------------------------------------------------------------------------------------
// Option router
// -------------------------------------------------------------------------------------------------

// OptionalSystem runs a primary system that returns an Option and, on Some, a continuation with
// the value. On None it returns the zero Out without running anything else.
type OptionalSystem[In, T, Out any] struct {
	constituents
	primary ecs.System[In, Option[T]]
	some    ecs.System[T, Out]
}

var _ ecs.System[struct{}, struct{}] = &OptionalSystem[struct{}, int, struct{}]{}

// ChainOptional composes primary with a continuation for the Some branch.
func ChainOptional[In, T, Out any](
	primary ecs.System[In, Option[T]], some ecs.System[T, Out],
) *OptionalSystem[In, T, Out] {
	name := fmt.Sprintf("ChainOptional(%s -> %s)", primary.Name(), some.Name())
	return &OptionalSystem[In, T, Out]{
		constituents: newConstituents(name, primary, some),
		primary:      primary,
		some:         some,
	}
}

func (o *OptionalSystem[In, T, Out]) Run(w *ecs.World, in In) (Out, error) {
	var zero Out
	outcome, err := o.primary.Run(w, in)
	if err != nil {
		return zero, err
	}
	value, ok := outcome.Get()
	if !ok {
		return zero, nil
	}
	return o.some.Run(w, value)
}

// -------------------------------------------------------------------------------------------------
// Pipe
// -------------------------------------------------------------------------------------------------

// PipeSystem feeds the output of one system into another.
type PipeSystem[In, Mid, Out any] struct {
	constituents
	first  ecs.System[In, Mid]
	second ecs.System[Mid, Out]
}

var _ ecs.System[struct{}, struct{}] = &PipeSystem[struct{}, int, struct{}]{}

// Pipe composes first and second into a single system.
func Pipe[In, Mid, Out any](first ecs.System[In, Mid], second ecs.System[Mid, Out]) *PipeSystem[In, Mid, Out] {
	name := fmt.Sprintf("Pipe(%s, %s)", first.Name(), second.Name())
	return &PipeSystem[In, Mid, Out]{
		constituents: newConstituents(name, first, second),
		first:        first,
		second:       second,
	}
}

func (p *PipeSystem[In, Mid, Out]) Run(w *ecs.World, in In) (Out, error) {
	mid, err := p.first.Run(w, in)
	if err != nil {
		var zero Out
		return zero, err
	}
	return p.second.Run(w, mid)
}
