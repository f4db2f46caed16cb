package testutils

type Health struct {
	Value int `json:"value"`
}

func (Health) Name() string { return "Health" }

type Position struct{ X, Y int }

func (Position) Name() string { return "Position" }

type Velocity struct{ X, Y int }

func (Velocity) Name() string { return "Velocity" }

type Experience struct{ Value int }

func (Experience) Name() string { return "Experience" }

type PlayerTag struct{ Tag string }

func (PlayerTag) Name() string { return "PlayerTag" }

type Dead struct{}

func (Dead) Name() string { return "Dead" }

// Resources.

type Score struct{ Value int }

type Config struct{ Speed int }

// Events.

type PlayerDeathEvent struct{ Value int }

type ItemDropEvent struct{ Value int }

// States.

type GameState uint8

const (
	StateMenu GameState = iota
	StatePlaying
	StatePaused
)

func (s GameState) String() string {
	switch s {
	case StateMenu:
		return "menu"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
