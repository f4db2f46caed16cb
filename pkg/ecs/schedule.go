package ecs

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/argus-labs/cardinal-extras/pkg/assert"
	"github.com/argus-labs/cardinal-extras/pkg/statsd"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ScheduleLabel identifies a schedule. Like SystemSet, any comparable value works.
type ScheduleLabel any

// Schedule is an ordered collection of systems. Systems run in an order that respects every
// Before/After constraint; consecutive systems whose accesses don't conflict run in parallel.
// Structural changes queued through Commands are applied after each parallel batch.
type Schedule struct {
	label ScheduleLabel
	name  string

	entries  []*systemEntry
	sets     map[SystemSet]*setEntry
	setOrder []SystemSet

	world     *World
	built     bool
	order     []int           // Indices into entries in run order
	ancestors []bitmap.Bitmap // Per entry, every entry that must finish first
}

type systemEntry struct {
	system     Runnable
	conditions []Condition
	sets       []SystemSet
	before     []SystemSet
	after      []SystemSet

	// Filled in by build.
	memberOf   []SystemSet
	setConds   []SystemSet
	fullAccess Access // System plus its own conditions and those of its sets
}

type setEntry struct {
	set        SystemSet
	conditions []Condition
	parents    []SystemSet
	before     []SystemSet
	after      []SystemSet
}

// NewSchedule creates an empty schedule.
func NewSchedule(label ScheduleLabel) *Schedule {
	return &Schedule{
		label: label,
		name:  labelName(label),
		sets:  make(map[SystemSet]*setEntry),
	}
}

// Label returns the schedule's label.
func (s *Schedule) Label() ScheduleLabel {
	return s.label
}

// Name returns the schedule's display name.
func (s *Schedule) Name() string {
	return s.name
}

// Len returns the number of systems in the schedule.
func (s *Schedule) Len() int {
	return len(s.entries)
}

// SystemNames returns the names of the systems in run order. The schedule must be built.
func (s *Schedule) SystemNames() []string {
	names := make([]string, 0, len(s.order))
	for _, i := range s.order {
		names = append(names, s.entries[i].system.Name())
	}
	return names
}

// -------------------------------------------------------------------------------------------------
// Configuration
// -------------------------------------------------------------------------------------------------

// SystemConfig configures a system added to a schedule.
type SystemConfig struct {
	schedule *Schedule
	entry    *systemEntry
}

// AddSystem adds a system. The system itself can be used as an ordering target by other systems.
func (s *Schedule) AddSystem(system Runnable) *SystemConfig {
	assert.That(system != nil, "cannot add a nil system to schedule %s", s.name)
	entry := &systemEntry{system: system}
	s.entries = append(s.entries, entry)
	s.built = false
	return &SystemConfig{schedule: s, entry: entry}
}

// RunIf adds a run condition. A system runs only if all of its conditions, and the conditions of
// every set it belongs to, return true.
func (c *SystemConfig) RunIf(condition Condition) *SystemConfig {
	c.entry.conditions = append(c.entry.conditions, condition)
	c.schedule.built = false
	return c
}

// InSet adds the system to sets.
func (c *SystemConfig) InSet(sets ...SystemSet) *SystemConfig {
	c.entry.sets = append(c.entry.sets, c.schedule.checkSets(sets)...)
	c.schedule.built = false
	return c
}

// Before orders the system before every system in targets.
func (c *SystemConfig) Before(targets ...SystemSet) *SystemConfig {
	c.entry.before = append(c.entry.before, c.schedule.checkSets(targets)...)
	c.schedule.built = false
	return c
}

// After orders the system after every system in targets.
func (c *SystemConfig) After(targets ...SystemSet) *SystemConfig {
	c.entry.after = append(c.entry.after, c.schedule.checkSets(targets)...)
	c.schedule.built = false
	return c
}

// SetConfig configures a system set within a schedule.
type SetConfig struct {
	schedule *Schedule
	entry    *setEntry
}

// ConfigureSet returns the configuration of set, creating it if needed.
func (s *Schedule) ConfigureSet(set SystemSet) *SetConfig {
	s.checkSets([]SystemSet{set})
	entry, ok := s.sets[set]
	if !ok {
		entry = &setEntry{set: set}
		s.sets[set] = entry
		s.setOrder = append(s.setOrder, set)
	}
	s.built = false
	return &SetConfig{schedule: s, entry: entry}
}

// RunIf adds a condition that gates every system in the set. It is evaluated at most once per
// schedule run.
func (c *SetConfig) RunIf(condition Condition) *SetConfig {
	c.entry.conditions = append(c.entry.conditions, condition)
	c.schedule.built = false
	return c
}

// InSet nests the set inside parents.
func (c *SetConfig) InSet(parents ...SystemSet) *SetConfig {
	c.entry.parents = append(c.entry.parents, c.schedule.checkSets(parents)...)
	c.schedule.built = false
	return c
}

// Before orders every system in the set before every system in targets.
func (c *SetConfig) Before(targets ...SystemSet) *SetConfig {
	c.entry.before = append(c.entry.before, c.schedule.checkSets(targets)...)
	c.schedule.built = false
	return c
}

// After orders every system in the set after every system in targets.
func (c *SetConfig) After(targets ...SystemSet) *SetConfig {
	c.entry.after = append(c.entry.after, c.schedule.checkSets(targets)...)
	c.schedule.built = false
	return c
}

// Chain orders the given sets one after another.
func (s *Schedule) Chain(sets ...SystemSet) {
	for i := 1; i < len(sets); i++ {
		s.ConfigureSet(sets[i]).After(sets[i-1])
	}
}

func (s *Schedule) checkSets(sets []SystemSet) []SystemSet {
	for _, set := range sets {
		assert.That(set != nil && reflect.TypeOf(set).Comparable(),
			"system set %v in schedule %s must be a non-nil comparable value", set, s.name)
	}
	return sets
}

// -------------------------------------------------------------------------------------------------
// Build
// -------------------------------------------------------------------------------------------------

// Build initializes every system and condition with w and computes the run order. It is called by
// Run when the schedule changed since the last build.
func (s *Schedule) Build(w *World) error {
	if s.world != nil && s.world != w {
		return eris.Errorf("schedule %s is already bound to another world", s.name)
	}
	s.world = w

	for _, entry := range s.entries {
		if err := entry.system.Initialize(w); err != nil {
			return eris.Wrapf(err, "schedule %s", s.name)
		}
		entry.fullAccess.Clear()
		entry.fullAccess.Extend(entry.system.Access())
		for _, cond := range entry.conditions {
			if err := cond.Initialize(w); err != nil {
				return eris.Wrapf(err, "schedule %s: condition of %s", s.name, entry.system.Name())
			}
			entry.fullAccess.Extend(cond.Access())
		}
	}
	for _, set := range s.setOrder {
		for _, cond := range s.sets[set].conditions {
			if err := cond.Initialize(w); err != nil {
				return eris.Wrapf(err, "schedule %s: condition of set %v", s.name, set)
			}
		}
	}

	members := s.resolveMembership()
	for _, entry := range s.entries {
		for _, set := range entry.setConds {
			for _, cond := range s.sets[set].conditions {
				entry.fullAccess.Extend(cond.Access())
			}
		}
	}
	graph, indegree := s.buildGraph(members)
	order, err := topoSort(graph, indegree)
	if err != nil {
		return eris.Wrapf(err, "schedule %s", s.name)
	}

	s.order = order
	s.ancestors = ancestorsOf(order, graph)
	s.built = true
	return nil
}

// resolveMembership computes every set each system belongs to, including sets of sets, default
// sets and the system itself. Returns set -> member entry indices.
func (s *Schedule) resolveMembership() map[SystemSet][]int {
	members := make(map[SystemSet][]int)
	for i, entry := range s.entries {
		seen := make(map[SystemSet]bool)
		var memberOf []SystemSet
		var visit func(set SystemSet)
		visit = func(set SystemSet) {
			if seen[set] {
				return
			}
			seen[set] = true
			memberOf = append(memberOf, set)
			if parent, ok := s.sets[set]; ok {
				for _, p := range parent.parents {
					visit(p)
				}
			}
		}

		visit(entry.system)
		for _, set := range entry.sets {
			visit(set)
		}
		for _, set := range entry.system.DefaultSets() {
			visit(set)
		}

		entry.memberOf = memberOf
		entry.setConds = entry.setConds[:0]
		for _, set := range memberOf {
			members[set] = append(members[set], i)
			if cfg, ok := s.sets[set]; ok && len(cfg.conditions) > 0 {
				entry.setConds = append(entry.setConds, set)
			}
		}
	}
	return members
}

// buildGraph turns every ordering constraint into edges between systems.
func (s *Schedule) buildGraph(members map[SystemSet][]int) ([][]int, []int) {
	graph := make([][]int, len(s.entries))
	indegree := make([]int, len(s.entries))
	seen := make(map[[2]int]bool)

	addEdges := func(from, to SystemSet) {
		for _, a := range members[from] {
			for _, b := range members[to] {
				if a == b || seen[[2]int{a, b}] {
					continue
				}
				seen[[2]int{a, b}] = true
				graph[a] = append(graph[a], b)
				indegree[b]++
			}
		}
	}

	for _, entry := range s.entries {
		for _, target := range entry.before {
			addEdges(entry.system, target)
		}
		for _, target := range entry.after {
			addEdges(target, entry.system)
		}
	}
	for _, set := range s.setOrder {
		cfg := s.sets[set]
		for _, target := range cfg.before {
			addEdges(set, target)
		}
		for _, target := range cfg.after {
			addEdges(target, set)
		}
	}
	return graph, indegree
}

// topoSort orders the graph, always picking the lowest ready index so that unconstrained systems
// keep their insertion order.
func topoSort(graph [][]int, indegree []int) ([]int, error) {
	remaining := slices.Clone(indegree)
	order := make([]int, 0, len(graph))
	var ready []int
	for i, n := range remaining {
		if n == 0 {
			ready = append(ready, i)
		}
	}

	for len(ready) > 0 {
		slices.Sort(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range graph[next] {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(graph) {
		return nil, eris.New("system ordering contains a cycle")
	}
	return order, nil
}

func ancestorsOf(order []int, graph [][]int) []bitmap.Bitmap {
	ancestors := make([]bitmap.Bitmap, len(graph))
	for _, node := range order {
		for _, dep := range graph[node] {
			ancestors[dep].Set(uint32(node)) //nolint:gosec // Won't overflow
			orInto(&ancestors[dep], ancestors[node])
		}
	}
	return ancestors
}

// -------------------------------------------------------------------------------------------------
// Run
// -------------------------------------------------------------------------------------------------

// Run runs the schedule once against w, building it first if needed. The first system error stops
// the run after the current batch finishes.
func (s *Schedule) Run(w *World) (err error) {
	start := time.Now()
	ctx, span := w.tracer.Start(context.Background(), "schedule.run",
		trace.WithAttributes(attribute.String("schedule", s.name)))
	defer func() {
		endSpan(span, err)
	}()

	if !s.built || s.world != w {
		if err := s.Build(w); err != nil {
			return err
		}
	}

	var (
		batch       []int
		batchAccess Access
		batchSet    bitmap.Bitmap
		setResults  = make(map[SystemSet]bool)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.runBatch(ctx, w, batch)
		batch = batch[:0]
		batchAccess.Clear()
		batchSet.Clear()
		return err
	}

	for _, i := range s.order {
		entry := s.entries[i]

		// Conditions run on this goroutine and must see the writes of earlier batch members.
		if len(batch) > 0 && (entry.system.IsExclusive() ||
			!batchAccess.IsCompatible(&entry.fullAccess) ||
			intersects(batchSet, s.ancestors[i])) {
			if err := flush(); err != nil {
				return err
			}
		}

		ok, err := s.evaluateConditions(w, entry, setResults)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		batch = append(batch, i)
		batchAccess.Extend(entry.system.Access())
		batchSet.Set(uint32(i)) //nolint:gosec // Won't overflow
		if entry.system.IsExclusive() {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	statsd.EmitScheduleStat(start, s.name)
	return nil
}

// evaluateConditions evaluates every condition of entry, including those of its sets. All
// conditions run even once one returned false, so each keeps its change-detection ticks current.
func (s *Schedule) evaluateConditions(w *World, entry *systemEntry, setResults map[SystemSet]bool) (bool, error) {
	result := true
	for _, set := range entry.setConds {
		ok, cached := setResults[set]
		if !cached {
			var err error
			ok, err = runConditions(w, s.sets[set].conditions)
			if err != nil {
				return false, eris.Wrapf(err, "condition of set %v failed", set)
			}
			setResults[set] = ok
		}
		result = result && ok
	}

	ok, err := runConditions(w, entry.conditions)
	if err != nil {
		return false, eris.Wrapf(err, "condition of system %s failed", entry.system.Name())
	}
	return result && ok, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, eris.ToString(err, true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func runConditions(w *World, conditions []Condition) (bool, error) {
	result := true
	for _, cond := range conditions {
		ok, err := cond.Run(w, struct{}{})
		if err != nil {
			return false, err
		}
		if cond.HasDeferred() {
			cond.ApplyDeferred(w)
		}
		result = result && ok
	}
	return result, nil
}

// runBatch runs the systems of a batch in parallel and then applies their deferred changes in
// schedule order.
func (s *Schedule) runBatch(ctx context.Context, w *World, batch []int) error {
	runOne := func(i int) error {
		start := time.Now()
		system := s.entries[i].system
		_, span := w.tracer.Start(ctx, "system.run."+system.Name(),
			trace.WithAttributes(attribute.String("schedule", s.name)))
		if _, err := system.Run(w, struct{}{}); err != nil {
			err = eris.Wrapf(err, "system %s failed", system.Name())
			endSpan(span, err)
			return err
		}
		endSpan(span, nil)
		statsd.EmitSystemStat(start, s.name, system.Name())
		return nil
	}

	var err error
	if len(batch) == 1 {
		err = runOne(batch[0])
	} else {
		g := new(errgroup.Group)
		for _, i := range batch {
			g.Go(func() error { return runOne(i) })
		}
		err = g.Wait()
	}

	for _, i := range batch {
		s.entries[i].system.ApplyDeferred(w)
	}
	if err != nil {
		return eris.Wrapf(err, "schedule %s", s.name)
	}
	return nil
}

// CheckChangeTicks clamps the last-run tick of every system and condition.
func (s *Schedule) CheckChangeTicks(now Tick) {
	for _, entry := range s.entries {
		entry.system.CheckChangeTick(now)
		for _, cond := range entry.conditions {
			cond.CheckChangeTick(now)
		}
	}
	for _, set := range s.setOrder {
		for _, cond := range s.sets[set].conditions {
			cond.CheckChangeTick(now)
		}
	}
}

// -------------------------------------------------------------------------------------------------
// Schedules resource
// -------------------------------------------------------------------------------------------------

// Schedules is the resource holding every schedule of a world.
type Schedules struct {
	schedules map[ScheduleLabel]*Schedule
}

// Get returns the schedule labelled label.
func (s *Schedules) Get(label ScheduleLabel) (*Schedule, bool) {
	schedule, ok := s.schedules[label]
	return schedule, ok
}

// Entry returns the schedule labelled label, creating it if needed.
func (s *Schedules) Entry(label ScheduleLabel) *Schedule {
	if s.schedules == nil {
		s.schedules = make(map[ScheduleLabel]*Schedule)
	}
	schedule, ok := s.schedules[label]
	if !ok {
		schedule = NewSchedule(label)
		s.schedules[label] = schedule
	}
	return schedule
}

// Insert adds or replaces a schedule.
func (s *Schedules) Insert(schedule *Schedule) {
	if s.schedules == nil {
		s.schedules = make(map[ScheduleLabel]*Schedule)
	}
	s.schedules[schedule.label] = schedule
}

// CheckChangeTicks clamps the ticks of every system in every schedule.
func (s *Schedules) CheckChangeTicks(now Tick) {
	for _, schedule := range s.schedules {
		schedule.CheckChangeTicks(now)
	}
}

// RunSchedule runs the schedule labelled label. A missing schedule is not an error.
func RunSchedule(w *World, label ScheduleLabel) error {
	schedules, ok := Resource[Schedules](w)
	if !ok {
		return nil
	}
	schedule, ok := schedules.Get(label)
	if !ok {
		return nil
	}
	return schedule.Run(w)
}

// CheckChangeTicks runs the world tick check and, if it ran, clamps every schedule's systems.
func CheckChangeTicks(w *World) {
	if !w.CheckChangeTicks() {
		return
	}
	if schedules, ok := Resource[Schedules](w); ok {
		schedules.CheckChangeTicks(w.ChangeTick())
	}
}

func labelName(label ScheduleLabel) string {
	if stringer, ok := label.(fmt.Stringer); ok {
		return stringer.String()
	}
	typ := reflect.TypeOf(label)
	if typ != nil && typ.Kind() == reflect.Struct && typ.NumField() == 0 {
		return typ.Name()
	}
	return fmt.Sprint(label)
}
