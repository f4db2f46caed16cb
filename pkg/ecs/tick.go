package ecs

import "math"

// Tick is the world's change counter. It increases by one every time a system runs and is stamped
// on every component and resource write so systems can detect what changed since their last run.
// Ticks wrap around, so they are only ever compared relative to another tick.
type Tick uint32

const (
	// CheckTickThreshold is how many ticks may pass before stored ticks must be clamped.
	CheckTickThreshold uint32 = 518_400_000

	// MaxChangeAge is the oldest a stored tick may get relative to the world tick. Older ticks are
	// clamped so a wraparound never makes them look recent.
	MaxChangeAge uint32 = math.MaxUint32 - (2*CheckTickThreshold - 1)
)

// IsNewerThan reports whether t happened after lastRun, as seen from thisRun.
func (t Tick) IsNewerThan(lastRun, thisRun Tick) bool {
	sinceInsert := min(uint32(thisRun-t), MaxChangeAge)
	sinceSystem := min(uint32(thisRun-lastRun), MaxChangeAge)
	return sinceSystem > sinceInsert
}

// CheckTick clamps t to at most MaxChangeAge behind now. Returns true if t was clamped.
func (t *Tick) CheckTick(now Tick) bool {
	if uint32(now-*t) > MaxChangeAge {
		*t = now - Tick(MaxChangeAge)
		return true
	}
	return false
}
