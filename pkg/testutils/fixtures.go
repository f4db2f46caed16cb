// Package testutils holds fixtures and helpers shared by the tests of the helper packages.
package testutils

// -------------------------------------------------------------------------------------------------
// Components
// -------------------------------------------------------------------------------------------------

type Health struct {
	Value int `json:"value"`
}

func (Health) Name() string { return "health" }

type Position struct {
	X, Y float64
}

func (Position) Name() string { return "position" }

// Marker tags entities a test wants to find again.
type Marker struct{}

func (Marker) Name() string { return "marker" }

type Enemy struct {
	Kind string `json:"kind"`
}

func (Enemy) Name() string { return "enemy" }

type Loot struct {
	Gold int `json:"gold"`
}

func (Loot) Name() string { return "loot" }

// -------------------------------------------------------------------------------------------------
// Resources
// -------------------------------------------------------------------------------------------------

type Counter struct {
	Value int
}

type Settings struct {
	Volume int
}

// -------------------------------------------------------------------------------------------------
// Events
// -------------------------------------------------------------------------------------------------

type Ping struct {
	Seq int
}
