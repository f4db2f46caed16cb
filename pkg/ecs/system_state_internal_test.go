package ecs

import (
	"slices"
	"testing"

	. "github.com/argus-labs/cardinal-extras/pkg/ecs/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runOnce initializes and runs a system, then applies its deferred changes.
func runOnce(t *testing.T, w *World, sys Runnable) {
	t.Helper()
	require.NoError(t, sys.Initialize(w))
	_, err := sys.Run(w, struct{}{})
	require.NoError(t, err)
	sys.ApplyDeferred(w)
}

func TestInitSystemFields(t *testing.T) {
	t.Parallel()

	type nested struct {
		Score Res[Score]
	}
	type valid struct {
		BaseSystemState
		Nested nested
		Cmds   Commands
		Query  Query
	}
	type unexported struct {
		score Res[Score] //nolint:unused // Tests the error path
	}
	type unsupported struct {
		Count int
	}
	type readWrite struct {
		Read  Res[Score]
		Write ResMut[Score]
	}
	type twoWriters struct {
		A Contains[struct{ Health Ref[Health] }]
		B Contains[struct{ Health Ref[Health] }]
	}
	type twoViewers struct {
		A Contains[struct{ Health View[Health] }]
		B Exact[struct{ Health View[Health] }]
	}
	type badSearch struct {
		A Contains[struct{ Health Health }]
	}

	tests := []struct {
		name    string
		state   any
		wantErr bool
	}{
		{name: "valid with nested struct", state: &valid{}},
		{name: "unexported field", state: &unexported{}, wantErr: true},
		{name: "unsupported field", state: &unsupported{}, wantErr: true},
		{name: "read and write of one resource", state: &readWrite{}, wantErr: true},
		{name: "two writers of one component", state: &twoWriters{}, wantErr: true},
		{name: "two viewers of one component", state: &twoViewers{}},
		{name: "search field that isn't a handle", state: &badSearch{}, wantErr: true},
		{name: "not a pointer", state: valid{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := NewWorld()
			meta := fieldMeta{world: w, system: tt.name, access: &Access{}}
			err := initSystemFields(&meta, tt.state)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSystem_Access(t *testing.T) {
	t.Parallel()

	type state struct {
		Score  Res[Score]
		Config ResMut[Config]
		Movers Contains[struct {
			Position Ref[Position]
			Velocity View[Velocity]
		}]
		Alive Query
	}
	w := NewWorld()
	sys := NewSystem("access", &state{Alive: NewQuery(Changed[Health]())}, func(*state) error { return nil })
	require.NoError(t, sys.Initialize(w))

	access := sys.Access()
	assert.Equal(t, AccessRead, access.Mode(ResourceID[Score](w)))
	assert.Equal(t, AccessWrite, access.Mode(ResourceID[Config](w)))
	assert.Equal(t, AccessWrite, access.Mode(mustID[Position](t, w)))
	assert.Equal(t, AccessRead, access.Mode(mustID[Velocity](t, w)))
	assert.Equal(t, AccessRead, access.Mode(mustID[Health](t, w)))
	assert.False(t, access.IsExclusive())

	require.NoError(t, sys.Initialize(w), "initializing twice with the same world is a no-op")
	require.Error(t, sys.Initialize(NewWorld()))
}

func TestSystem_RunBeforeInitialize(t *testing.T) {
	t.Parallel()
	sys := NewSystem("lazy", &struct{}{}, func(*struct{}) error { return nil })
	_, err := sys.Run(NewWorld(), struct{}{})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestSystem_Ticks(t *testing.T) {
	t.Parallel()
	w := NewWorld()

	type state struct {
		BaseSystemState
	}
	var seen []tickRange
	sys := NewSystem("ticks", &state{}, func(s *state) error {
		seen = append(seen, tickRange{lastRun: s.LastRun(), thisRun: s.ThisRun()})
		return nil
	})
	require.NoError(t, sys.Initialize(w))
	assert.Equal(t, w.ChangeTick()-Tick(MaxChangeAge), sys.LastRun())

	for range 2 {
		_, err := sys.Run(w, struct{}{})
		require.NoError(t, err)
	}
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0].thisRun, seen[1].lastRun, "each run starts where the previous ended")
	assert.Equal(t, seen[1].thisRun, sys.LastRun())
}

func TestQuery_Filters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		want   []int // Health values of the expected entities
	}{
		{name: "no filter", filter: nil, want: []int{1, 2, 3, 4}},
		{name: "with", filter: With[Position](), want: []int{2, 4}},
		{name: "without", filter: Without[Position](), want: []int{1, 3}},
		{name: "all", filter: All(With[Position](), With[Velocity]()), want: []int{4}},
		{name: "any of", filter: AnyOf(With[Velocity](), Without[Position]()), want: []int{1, 3, 4}},
		{name: "not", filter: Not(With[Velocity]()), want: []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := NewWorld()
			for _, comps := range [][]Component{
				{Health{Value: 1}},
				{Health{Value: 2}, Position{}},
				{Health{Value: 3}, Velocity{}},
				{Health{Value: 4}, Position{}, Velocity{}},
			} {
				_, err := w.Spawn(comps...)
				require.NoError(t, err)
			}

			type state struct {
				Query Query
			}
			var got []int
			sys := NewSystem("query", &state{Query: NewQuery(tt.filter)}, func(s *state) error {
				for eid := range s.Query.Iter() {
					health, err := Get[Health](w, eid)
					require.NoError(t, err)
					got = append(got, health.Value)
				}
				return nil
			})
			runOnce(t, w, sys)

			slices.Sort(got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery_ChangeDetection(t *testing.T) {
	t.Parallel()
	w := NewWorld()

	a, err := w.Spawn(Health{Value: 1})
	require.NoError(t, err)
	_, err = w.Spawn(Health{Value: 2})
	require.NoError(t, err)

	type state struct {
		Added   Query
		Changed Query
	}
	var added, changed int
	sys := NewSystem("detect", &state{
		Added:   NewQuery(Added[Health]()),
		Changed: NewQuery(Changed[Health]()),
	}, func(s *state) error {
		added, changed = s.Added.Count(), s.Changed.Count()
		return nil
	})

	runOnce(t, w, sys)
	assert.Equal(t, 2, added, "everything is new on the first run")
	assert.Equal(t, 2, changed)

	runOnce(t, w, sys)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, changed)

	require.NoError(t, Set(w, a, Health{Value: 5}))
	runOnce(t, w, sys)
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, changed)

	_, err = w.Spawn(Health{Value: 3})
	require.NoError(t, err)
	runOnce(t, w, sys)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, changed)
}

func TestQuery_Single(t *testing.T) {
	t.Parallel()
	w := NewWorld()

	type state struct {
		Players Query
	}
	var (
		single EntityID
		ok     bool
	)
	sys := NewSystem("single", &state{Players: NewQuery(With[PlayerTag]())}, func(s *state) error {
		single, ok = s.Players.Single()
		return nil
	})

	runOnce(t, w, sys)
	assert.False(t, ok, "no entity")

	eid, err := w.Spawn(PlayerTag{Tag: "a"})
	require.NoError(t, err)
	runOnce(t, w, sys)
	assert.True(t, ok)
	assert.Equal(t, eid, single)

	_, err = w.Spawn(PlayerTag{Tag: "b"})
	require.NoError(t, err)
	runOnce(t, w, sys)
	assert.False(t, ok, "several entities")
}

func TestSearch_RefAndView(t *testing.T) {
	t.Parallel()
	w := NewWorld()

	mover, err := w.Spawn(Position{X: 1, Y: 1}, Velocity{X: 2, Y: 3})
	require.NoError(t, err)
	_, err = w.Spawn(Position{X: 9, Y: 9}, Velocity{X: 1, Y: 1}, Dead{})
	require.NoError(t, err)
	_, err = w.Spawn(Position{X: 0, Y: 0})
	require.NoError(t, err)

	type state struct {
		Movers Contains[struct {
			Position Ref[Position]
			Velocity View[Velocity]
		}]
	}
	move := NewSystem("move", &state{
		Movers: NewContains[struct {
			Position Ref[Position]
			Velocity View[Velocity]
		}](Without[Dead]()),
	}, func(s *state) error {
		for _, m := range s.Movers.Iter() {
			pos, vel := m.Position.Get(), m.Velocity.Get()
			m.Position.Set(Position{X: pos.X + vel.X, Y: pos.Y + vel.Y})
		}
		return nil
	})
	runOnce(t, w, move)

	pos, err := Get[Position](w, mover)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 3, Y: 4}, pos)

	type exactState struct {
		Positions Exact[struct{ Position View[Position] }]
	}
	var exact []Position
	read := NewSystem("exact", &exactState{}, func(s *exactState) error {
		for _, p := range s.Positions.Iter() {
			exact = append(exact, p.Position.Get())
		}
		return nil
	})
	runOnce(t, w, read)
	assert.Equal(t, []Position{{X: 0, Y: 0}}, exact)
}

func TestSearch_HandleChangeTicks(t *testing.T) {
	t.Parallel()
	w := NewWorld()

	eid, err := w.Spawn(Health{Value: 1})
	require.NoError(t, err)

	type state struct {
		Health Contains[struct{ Health Ref[Health] }]
	}
	var added, changed bool
	sys := NewSystem("handles", &state{}, func(s *state) error {
		h, ok := s.Health.Get(eid)
		require.True(t, ok)
		added, changed = h.Health.IsAdded(), h.Health.IsChanged()
		return nil
	})

	runOnce(t, w, sys)
	assert.True(t, added)
	assert.True(t, changed)

	runOnce(t, w, sys)
	assert.False(t, added)
	assert.False(t, changed)

	require.NoError(t, Set(w, eid, Health{Value: 2}))
	runOnce(t, w, sys)
	assert.False(t, added)
	assert.True(t, changed)
}

func TestResourceFields(t *testing.T) {
	t.Parallel()
	w := NewWorld()
	InsertResource(w, Score{Value: 1})

	type writer struct {
		Score ResMut[Score]
	}
	type reader struct {
		Score  Res[Score]
		Config Res[Config]
	}

	var changed, configExists bool
	read := NewSystem("read", &reader{}, func(s *reader) error {
		changed = s.Score.IsChanged()
		configExists = s.Config.Exists()
		return nil
	})
	peek := NewSystem("peek", &writer{}, func(s *writer) error {
		_, ok := s.Score.Peek()
		assert.True(t, ok)
		return nil
	})
	write := NewSystem("write", &writer{}, func(s *writer) error {
		s.Score.Get().Value++
		return nil
	})

	runOnce(t, w, read)
	assert.True(t, changed, "added counts as changed on the first run")
	assert.False(t, configExists)

	runOnce(t, w, peek)
	runOnce(t, w, read)
	assert.False(t, changed, "peeking doesn't mark the resource")

	runOnce(t, w, write)
	runOnce(t, w, read)
	assert.True(t, changed)
	assert.Equal(t, 2, MustResource[Score](w).Value)
}

func TestEventFields(t *testing.T) {
	t.Parallel()
	w := NewWorld()

	type emitter struct {
		Deaths WithEventEmitter[PlayerDeathEvent]
	}
	type receiver struct {
		Deaths WithEventReceiver[PlayerDeathEvent]
	}

	emit := NewSystem("emit", &emitter{}, func(s *emitter) error {
		s.Deaths.Emit(PlayerDeathEvent{Value: 1})
		s.Deaths.Emit(PlayerDeathEvent{Value: 2})
		return nil
	})
	var got []int
	recv := NewSystem("recv", &receiver{}, func(s *receiver) error {
		for ev := range s.Deaths.Iter() {
			got = append(got, ev.Value)
		}
		return nil
	})

	runOnce(t, w, emit)
	runOnce(t, w, recv)
	assert.Equal(t, []int{1, 2}, got)

	got = nil
	runOnce(t, w, recv)
	assert.Empty(t, got, "each event is read once per receiver")

	// Events survive one update, then are dropped.
	runOnce(t, w, emit)
	w.UpdateEvents()
	other := NewSystem("late", &receiver{}, func(s *receiver) error {
		got = append(got, s.Deaths.Len())
		return nil
	})
	runOnce(t, w, other)
	assert.Equal(t, []int{4}, got, "a new receiver sees both buffers")

	w.UpdateEvents()
	w.UpdateEvents()
	got = nil
	runOnce(t, w, recv)
	assert.Empty(t, got)
}

func TestCommands(t *testing.T) {
	t.Parallel()
	w := NewWorld()

	victim, err := w.Spawn(Health{Value: 0})
	require.NoError(t, err)

	type state struct {
		Cmds Commands
	}
	var spawned EntityID
	sys := NewSystem("cmds", &state{}, func(s *state) error {
		spawned, err = s.Cmds.Spawn(Health{Value: 100})
		require.NoError(t, err)
		s.Cmds.Insert(spawned, Position{X: 1})
		s.Cmds.Remove(victim, Health{})
		s.Cmds.Despawn(victim)
		s.Cmds.Despawn(EntityID(999)) // Fails and is skipped
		InsertResourceCmd(&s.Cmds, Score{Value: 3})

		assert.False(t, w.Alive(spawned), "nothing is applied during the run")
		assert.Equal(t, 6, s.Cmds.Len())
		return nil
	})
	require.NoError(t, sys.Initialize(w))
	assert.True(t, sys.HasDeferred())
	_, err = sys.Run(w, struct{}{})
	require.NoError(t, err)
	sys.ApplyDeferred(w)

	assert.True(t, w.Alive(spawned))
	assert.True(t, Has[Position](w, spawned))
	assert.False(t, w.Alive(victim))
	assert.Equal(t, 3, MustResource[Score](w).Value)
}
