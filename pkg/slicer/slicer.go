// Package slicer closes a seed set of source locations under the
// dataflow relation, in either direction. It is grounded on the
// teacher's pkg/pdg/slice.go, which performs the same "seed then
// closure over edges, backward or forward" shape over a program
// dependence graph; this version closes over dataflow edges directly
// rather than a merged PDG, and adds the forward direction the teacher
// never needed.
package slicer

import (
	"pyslice/pkg/cfgbuild"
	"pyslice/pkg/dataflow"
	"pyslice/pkg/libspec"
	"pyslice/pkg/pyast"
	"pyslice/pkg/refs"
)

// Direction selects which way the slicer follows dataflow edges.
type Direction int

const (
	Backward Direction = iota
	Forward
)

// LocationSet is a keyed set of source locations.
type LocationSet struct {
	items map[string]pyast.Location
}

// NewLocationSet creates an empty LocationSet.
func NewLocationSet() *LocationSet {
	return &LocationSet{items: make(map[string]pyast.Location)}
}

// Add inserts loc if not already present.
func (s *LocationSet) Add(loc pyast.Location) {
	s.items[loc.String()] = loc
}

// Has reports whether loc is present.
func (s *LocationSet) Has(loc pyast.Location) bool {
	_, ok := s.items[loc.String()]
	return ok
}

// Items returns every location in the set.
func (s *LocationSet) Items() []pyast.Location {
	out := make([]pyast.Location, 0, len(s.items))
	for _, l := range s.items {
		out = append(out, l)
	}
	return out
}

// Size returns the number of locations in the set.
func (s *LocationSet) Size() int { return len(s.items) }

// ContainsAny reports whether any accepted location fully encloses loc.
func (s *LocationSet) ContainsAny(loc pyast.Location) bool {
	for _, l := range s.items {
		if l.Contains(loc) {
			return true
		}
	}
	return false
}

// Slice computes the slice of statements reachable from seedLocations
// under the dataflow relation of analyzer's result over a CFG built
// from statements. If analyzer is nil, a fresh Analyzer is built with
// an empty symbol table. If seedLocations is empty, the degenerate seed
// covering every statement's location is used.
func Slice(statements []*pyast.Node, seedLocations []pyast.Location, analyzer *dataflow.Analyzer, direction Direction) *LocationSet {
	if analyzer == nil {
		analyzer = dataflow.New(libspec.NewSymbolTable(nil, nil), nil, nil)
	}
	cfg := cfgbuild.Build(statements)
	result := analyzer.Analyze(cfg, nil)
	return sliceFromEdges(statements, seedLocations, result.Edges, direction)
}

func sliceFromEdges(statements []*pyast.Node, seedLocations []pyast.Location, edges *refs.EdgeSet, direction Direction) *LocationSet {
	accepted := NewLocationSet()

	if len(seedLocations) == 0 {
		for _, s := range statements {
			accepted.Add(s.Location())
		}
		return accepted
	}

	seedStatementLocs := seedStatementLocations(statements, seedLocations)
	for _, loc := range seedStatementLocs {
		accepted.Add(loc)
	}

	for {
		grew := false
		for _, e := range edges.Items() {
			if e.From == nil || e.To == nil {
				continue
			}
			start, end := e.To.Location(), e.From.Location()
			if direction == Forward {
				start, end = e.From.Location(), e.To.Location()
			}

			if accepted.ContainsAny(start) {
				if !accepted.Has(end) {
					accepted.Add(end)
					grew = true
				}
			}
		}
		if !grew {
			break
		}
	}

	return accepted
}

// seedStatementLocations returns the location of every statement whose
// range intersects some seed location.
func seedStatementLocations(statements []*pyast.Node, seedLocations []pyast.Location) []pyast.Location {
	var out []pyast.Location
	for _, s := range statements {
		loc := s.Location()
		for _, seed := range seedLocations {
			if loc.Intersects(seed) {
				out = append(out, loc)
				break
			}
		}
	}
	return out
}
