package condition

import (
	"strings"

	"github.com/argus-labs/cardinal-extras/pkg/assert"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
)

var _ ecs.Condition = &Combinator{}

// Combinator is a condition computed from other conditions. It behaves like a single system to
// the scheduler: its access is the union of its parts and its tick watermark is shared by all of
// them.
type Combinator struct {
	name    string
	parts   []ecs.Condition
	combine func(w *ecs.World, parts []ecs.Condition) (bool, error)
	access  ecs.Access
}

// Not inverts cond.
func Not(cond ecs.Condition) *Combinator {
	return &Combinator{
		name:  "Not(" + cond.Name() + ")",
		parts: []ecs.Condition{cond},
		combine: func(w *ecs.World, parts []ecs.Condition) (bool, error) {
			ok, err := parts[0].Run(w, struct{}{})
			return !ok, err
		},
	}
}

// And is true when every condition is true. Evaluation stops at the first false condition, so
// later conditions don't see that tick.
func And(conds ...ecs.Condition) *Combinator {
	return shortCircuit("And", conds, false)
}

// Or is true when any condition is true. Evaluation stops at the first true condition.
func Or(conds ...ecs.Condition) *Combinator {
	return shortCircuit("Or", conds, true)
}

// shortCircuit evaluates conditions in order until one returns stop.
func shortCircuit(op string, conds []ecs.Condition, stop bool) *Combinator {
	assert.That(len(conds) > 0, "%s needs at least one condition", op)
	names := make([]string, len(conds))
	for i, c := range conds {
		names[i] = c.Name()
	}
	return &Combinator{
		name:  op + "(" + strings.Join(names, ", ") + ")",
		parts: conds,
		combine: func(w *ecs.World, parts []ecs.Condition) (bool, error) {
			for _, part := range parts {
				ok, err := part.Run(w, struct{}{})
				if err != nil {
					return false, err
				}
				if ok == stop {
					return stop, nil
				}
			}
			return !stop, nil
		},
	}
}

func (c *Combinator) Name() string {
	return c.name
}

func (c *Combinator) Initialize(w *ecs.World) error {
	for _, part := range c.parts {
		if err := part.Initialize(w); err != nil {
			return err
		}
		c.access.Extend(part.Access())
	}
	return nil
}

func (c *Combinator) Access() *ecs.Access {
	return &c.access
}

func (c *Combinator) Run(w *ecs.World, _ struct{}) (bool, error) {
	return c.combine(w, c.parts)
}

func (c *Combinator) ApplyDeferred(w *ecs.World) {
	for _, part := range c.parts {
		part.ApplyDeferred(w)
	}
}

func (c *Combinator) IsExclusive() bool {
	for _, part := range c.parts {
		if part.IsExclusive() {
			return true
		}
	}
	return false
}

func (c *Combinator) HasDeferred() bool {
	for _, part := range c.parts {
		if part.HasDeferred() {
			return true
		}
	}
	return false
}

func (c *Combinator) LastRun() ecs.Tick {
	return c.parts[0].LastRun()
}

func (c *Combinator) SetLastRun(tick ecs.Tick) {
	for _, part := range c.parts {
		part.SetLastRun(tick)
	}
}

func (c *Combinator) CheckChangeTick(now ecs.Tick) {
	for _, part := range c.parts {
		part.CheckChangeTick(now)
	}
}

func (c *Combinator) DefaultSets() []ecs.SystemSet {
	return nil
}
