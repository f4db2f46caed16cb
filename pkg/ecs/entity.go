package ecs

import (
	"math"
	"strconv"
	"sync"

	"github.com/argus-labs/cardinal-extras/pkg/assert"
	"github.com/rotisserie/eris"
)

// EntityID is a unique identifier for an entity.
type EntityID uint32

// MaxEntityID is the maximum entity ID that can be created.
const MaxEntityID = math.MaxUint32 - 1

// ParseEntityID parses an entity id written in decimal, the form commands receive it in.
func ParseEntityID(s string) (EntityID, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id > MaxEntityID {
		return 0, eris.Errorf("invalid entity id %q", s)
	}
	return EntityID(id), nil
}

// entityManager hands out entity ids and indexes which archetype each live entity is in.
// Systems running in parallel reserve ids through Commands and look entities up through their
// fields, so both the free list and the index are locked.
type entityManager struct {
	mu       sync.Mutex
	nextID   EntityID
	free     []EntityID // FIFO queue of released ids
	locMu    sync.RWMutex
	location map[EntityID]*archetype
}

func newEntityManager() entityManager {
	return entityManager{
		free:     make([]EntityID, 0),
		location: make(map[EntityID]*archetype),
	}
}

// reserve returns an id that isn't alive yet. The entity comes alive once it's placed.
func (em *entityManager) reserve() (EntityID, error) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if len(em.free) > 0 {
		id := em.free[0]
		em.free = em.free[1:]
		return id, nil
	}

	if em.nextID > MaxEntityID {
		return 0, eris.New("max number of entities exceeded")
	}
	id := em.nextID
	em.nextID++
	return id, nil
}

// place marks eid as alive in arch.
func (em *entityManager) place(eid EntityID, arch *archetype) {
	assert.That(arch != nil, "entity %d placed without an archetype", eid)
	em.locMu.Lock()
	em.location[eid] = arch
	em.locMu.Unlock()
}

// release forgets eid and queues it for reuse.
func (em *entityManager) release(eid EntityID) {
	em.locMu.Lock()
	delete(em.location, eid)
	em.locMu.Unlock()

	em.mu.Lock()
	em.free = append(em.free, eid)
	em.mu.Unlock()
}

func (em *entityManager) archetypeOf(eid EntityID) (*archetype, bool) {
	em.locMu.RLock()
	defer em.locMu.RUnlock()
	arch, ok := em.location[eid]
	return arch, ok
}

func (em *entityManager) count() int {
	em.locMu.RLock()
	defer em.locMu.RUnlock()
	return len(em.location)
}
