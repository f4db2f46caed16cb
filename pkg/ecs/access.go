package ecs

import (
	"fmt"
	"strings"

	"github.com/kelindar/bitmap"
)

// AccessMode is how a system touches a single data category.
type AccessMode uint8

const (
	AccessNone AccessMode = iota
	AccessRead
	AccessWrite
)

func (m AccessMode) String() string {
	switch m {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessNone:
		return "none"
	default:
		return "none"
	}
}

// Access is the static data footprint of a system. Components and resources share one id space,
// so a single pair of bitmaps covers both. The scheduler only runs two systems at the same time if
// their accesses are compatible.
//
// reads holds every id the system touches, including the ones it writes. writes is a subset of
// reads. An exclusive access conflicts with everything.
type Access struct {
	reads     bitmap.Bitmap
	writes    bitmap.Bitmap
	exclusive bool
}

// AddRead records read-only access to id. A write on the same id is kept.
func (a *Access) AddRead(id uint32) {
	a.reads.Set(id)
}

// AddWrite records write access to id.
func (a *Access) AddWrite(id uint32) {
	a.reads.Set(id)
	a.writes.Set(id)
}

// SetExclusive marks the access as requiring the whole world.
func (a *Access) SetExclusive() {
	a.exclusive = true
}

// IsExclusive reports whether the access requires the whole world.
func (a *Access) IsExclusive() bool {
	return a.exclusive
}

// Mode returns how id is accessed.
func (a *Access) Mode(id uint32) AccessMode {
	switch {
	case a.writes.Contains(id):
		return AccessWrite
	case a.reads.Contains(id):
		return AccessRead
	default:
		return AccessNone
	}
}

// Extend merges other into a. The result is the union of both, and an id written by either side
// stays a write.
func (a *Access) Extend(other *Access) {
	if other == nil {
		return
	}
	orInto(&a.reads, other.reads)
	orInto(&a.writes, other.writes)
	a.exclusive = a.exclusive || other.exclusive
}

// IsCompatible reports whether systems with accesses a and other can run at the same time.
func (a *Access) IsCompatible(other *Access) bool {
	if a.exclusive || other.exclusive {
		return false
	}
	return !intersects(a.writes, other.reads) && !intersects(other.writes, a.reads)
}

// Clone returns a deep copy of a.
func (a *Access) Clone() *Access {
	return &Access{
		reads:     a.reads.Clone(nil),
		writes:    a.writes.Clone(nil),
		exclusive: a.exclusive,
	}
}

// Equal reports whether a and other describe the same footprint.
func (a *Access) Equal(other *Access) bool {
	return a.exclusive == other.exclusive && sameBits(a.reads, other.reads) && sameBits(a.writes, other.writes)
}

// Reads returns every id that is accessed read-only.
func (a *Access) Reads() []uint32 {
	ids := make([]uint32, 0, a.reads.Count())
	a.reads.Range(func(x uint32) {
		if !a.writes.Contains(x) {
			ids = append(ids, x)
		}
	})
	return ids
}

// Writes returns every id that is written.
func (a *Access) Writes() []uint32 {
	ids := make([]uint32, 0, a.writes.Count())
	a.writes.Range(func(x uint32) {
		ids = append(ids, x)
	})
	return ids
}

// Clear resets a to an empty, non-exclusive access.
func (a *Access) Clear() {
	a.reads.Clear()
	a.writes.Clear()
	a.exclusive = false
}

func (a *Access) String() string {
	if a.exclusive {
		return "exclusive"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "read%v write%v", a.Reads(), a.Writes())
	return sb.String()
}

func intersects(a, b bitmap.Bitmap) bool {
	clone := a.Clone(nil)
	clone.And(b)
	return clone.Count() != 0
}

func sameBits(a, b bitmap.Bitmap) bool {
	if len(b) == 0 {
		return a.Count() == 0
	}
	clone := a.Clone(nil)
	clone.Xor(b)
	return clone.Count() == 0
}

// orInto merges src into dst. The accelerated bitmap.Or indexes src[0], so an empty src is skipped.
func orInto(dst *bitmap.Bitmap, src bitmap.Bitmap) {
	if len(src) == 0 {
		return
	}
	dst.Or(src)
}
