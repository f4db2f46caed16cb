// Package stageset organizes the systems of a feature around four ordered system sets:
//
//   - Prepare runs first and may affect what the feature does.
//   - Provide holds the producers.
//   - Want holds the consumers of whatever Provide produced.
//   - WantChanged is part of Want and only runs when something notable happened.
package stageset

import (
	"fmt"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
)

// Kind is one of the four stages.
type Kind uint8

const (
	Prepare Kind = iota
	Provide
	Want
	WantChanged
)

func (k Kind) String() string {
	switch k {
	case Prepare:
		return "Prepare"
	case Provide:
		return "Provide"
	case Want:
		return "Want"
	case WantChanged:
		return "WantChanged"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Stage is the system set for one stage of the feature labelled T.
type Stage[T comparable] struct {
	Kind Kind
	Set  T
}

func (s Stage[T]) String() string {
	return fmt.Sprintf("%s(%v)", s.Kind, s.Set)
}

// Of returns the stage of kind k for t.
func Of[T comparable](k Kind, t T) Stage[T] {
	return Stage[T]{Kind: k, Set: t}
}

// Configure orders the stages of t in schedule: Prepare before Provide, Want after Provide, and
// WantChanged inside Want, gated by changed.
func Configure[T comparable](schedule *ecs.Schedule, t T, changed ecs.Condition) {
	configure(schedule, t).RunIf(changed)
}

// ConfigureNoCondition is Configure without the WantChanged gate.
func ConfigureNoCondition[T comparable](schedule *ecs.Schedule, t T) {
	configure(schedule, t)
}

func configure[T comparable](schedule *ecs.Schedule, t T) *ecs.SetConfig {
	schedule.ConfigureSet(Of(Prepare, t)).Before(Of(Provide, t))
	schedule.ConfigureSet(Of(Want, t)).After(Of(Provide, t))
	return schedule.ConfigureSet(Of(WantChanged, t)).InSet(Of(Want, t))
}
