package ecs

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
)

// SearchParam contains parameters for a search query.
// We use expr lang for the where clause to filter the entities, please refer to its documentation
// for more details: https://expr-lang.org/docs/getting-started.
type SearchParam struct {
	Find  []string    // List of component names to search for
	Match SearchMatch // A match type to use for the search
	Where string      // Optional expr language string to filter the results.
}

// validateAndGetFilter validates the search parameters and returns an expr VM program compiled
// from the where clause.
func (s *SearchParam) validateAndGetFilter() (*vm.Program, error) {
	if len(s.Find) == 0 {
		return nil, eris.New("component list cannot be empty")
	}

	if s.Match != MatchExact && s.Match != MatchContains {
		return nil, eris.Errorf("invalid `match` value: must be either '%s' or '%s'", MatchExact, MatchContains)
	}

	return CompileWhere(s.Where)
}

// SearchMatch is the type of match to use for the search.
type SearchMatch string

const (
	// MatchExact matches entities that have exactly the specified components.
	MatchExact SearchMatch = "exact"
	// MatchContains matches entities that contains the specified components, but may have other
	// components as well.
	MatchContains SearchMatch = "contains"
)

// CompileWhere compiles a where clause. An empty clause compiles to a nil program, which matches
// every entity.
func CompileWhere(where string) (*vm.Program, error) {
	if len(where) == 0 {
		return nil, nil //nolint:nilnil // A nil program means no filter
	}
	program, err := expr.Compile(where, expr.AsBool())
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse where clause")
	}
	return program, nil
}

// Search returns the entities that match the given search parameters, each as a map of component
// name to component plus an "_id" key holding the entity id.
func (w *World) Search(params SearchParam) ([]map[string]any, error) {
	filter, err := params.validateAndGetFilter()
	if err != nil {
		return nil, eris.Wrap(err, "invalid search params")
	}

	archs, err := w.archetypesMatching(params.Find, params.Match)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get archetypes from components")
	}

	results := make([]map[string]any, 0)
	for _, arch := range archs {
		for row, eid := range arch.entities {
			entityMap := arch.toMap(eid, row)
			ok, err := runWhere(filter, entityMap)
			if err != nil {
				return nil, err
			}
			if ok {
				results = append(results, entityMap)
			}
		}
	}
	return results, nil
}

// MatchWhere reports whether eid passes a compiled where clause.
func (w *World) MatchWhere(filter *vm.Program, eid EntityID) (bool, error) {
	arch, ok := w.entities.archetypeOf(eid)
	if !ok {
		return false, eris.Wrapf(ErrEntityNotFound, "entity %d", eid)
	}
	return runWhere(filter, arch.toMap(eid, arch.rows[eid]))
}

func runWhere(filter *vm.Program, entityMap map[string]any) (bool, error) {
	// If there's no filter, include all entities.
	if filter == nil {
		return true, nil
	}

	// The entity map is the environment so the program has access to the entity data.
	output, err := expr.Run(filter, entityMap)
	if err != nil {
		return false, eris.Wrap(err, "failed to run filter expression")
	}

	// The expression is compiled without an environment, so expr can't check that a clause on a
	// struct field, e.g. Health.Value > 200, returns a bool until it runs.
	isMatch, ok := output.(bool)
	if !ok {
		return false, eris.New("invalid where clause")
	}
	return isMatch, nil
}

// archetypesMatching returns the archetypes that match the given components and match type.
func (w *World) archetypesMatching(compNames []string, match SearchMatch) ([]*archetype, error) {
	if len(compNames) == 0 {
		return nil, eris.New("component list cannot be empty")
	}

	components := bitmap.Bitmap{}
	for _, name := range compNames {
		id, err := w.registry.componentID(name)
		if err != nil {
			return nil, eris.Wrapf(err, "component %s not registered", name)
		}
		components.Set(id)
	}

	var archs []*archetype
	for _, arch := range w.archetypes {
		switch match {
		case MatchExact:
			if arch.exact(components) {
				archs = append(archs, arch)
			}
		case MatchContains:
			if arch.contains(components) {
				archs = append(archs, arch)
			}
		}
	}
	return archs, nil
}

// toMap converts an entity to a map of its components. A "_id" key is added to the map to store
// the entity ID.
func (a *archetype) toMap(eid EntityID, row int) map[string]any {
	data := make(map[string]any, a.compCount+1)

	// expr can't compare EntityID with integer literals, so the id is stored as a plain uint32.
	data["_id"] = uint32(eid)

	for _, col := range a.columns {
		comp := col.getAbstract(row)
		data[comp.Name()] = comp
	}
	return data
}
