// Package refs defines the reference model the rest of the engine
// shares: a Ref describes one name occurrence relevant to dataflow, a
// RefSet is the keyed set of them, and a DefUse triple partitions a
// program point's references by kind. The shapes mirror the teacher's
// dfg.VarRef / dfg.DataflowEdge pair, generalized from a single
// definition/update/use classification to the richer kind+level split
// the slicer needs.
package refs

import (
	"fmt"

	"pyslice/pkg/pyast"
	"pyslice/pkg/set"
)

// Kind classifies what a reference names.
type Kind string

const (
	KindVariable Kind = "variable"
	KindClass    Kind = "class"
	KindFunction Kind = "function"
	KindImport   Kind = "import"
	KindMutation Kind = "mutation"
	KindMagic    Kind = "magic"
)

// Level classifies how a reference relates to its name: defining it,
// updating an existing binding, or merely reading it.
type Level string

const (
	LevelDefinition Level = "definition"
	LevelUpdate     Level = "update"
	LevelUse        Level = "use"
)

// TypeHandle is an opaque pointer to a library spec type, attached to a
// reference when an assignment's right-hand side is a call whose spec
// declares a return type. Equality is by pointer identity; the concrete
// type lives in package libspec, which refs does not import.
type TypeHandle any

// Ref is an immutable record of one name occurrence. Identity inside a
// RefSet is (Name, Level, Location).
type Ref struct {
	Name         string
	Kind         Kind
	Level        Level
	Location     pyast.Location
	Node         *pyast.Node
	InferredType TypeHandle
}

// Key returns the (Name, Level, Location) identity string used by RefSet.
func (r Ref) Key() string {
	return fmt.Sprintf("%s\x1f%s\x1f%s", r.Name, r.Level, r.Location.String())
}

// RefSet is a keyed set of references.
type RefSet = set.Set[string, Ref]

// NewRefSet creates an empty RefSet.
func NewRefSet() *RefSet {
	return set.New[string, Ref](Ref.Key)
}

// OfRefs creates a RefSet populated with refs.
func OfRefs(refs ...Ref) *RefSet {
	return set.Of[string, Ref](Ref.Key, refs...)
}

// FilterByName returns the subset of rs whose Name equals name.
func FilterByName(rs *RefSet, name string) *RefSet {
	return rs.Filter(func(r Ref) bool { return r.Name == name })
}

// FilterByKind returns the subset of rs whose Kind is one of kinds.
func FilterByKind(rs *RefSet, kinds ...Kind) *RefSet {
	want := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		want[k] = struct{}{}
	}
	return rs.Filter(func(r Ref) bool {
		_, ok := want[r.Kind]
		return ok
	})
}

// DefUse is the three ref-sets attached to a program point: what it
// defines, what it updates, and what it uses.
type DefUse struct {
	Definition *RefSet
	Update     *RefSet
	Use        *RefSet
}

// NewDefUse returns an empty DefUse triple.
func NewDefUse() DefUse {
	return DefUse{
		Definition: NewRefSet(),
		Update:     NewRefSet(),
		Use:        NewRefSet(),
	}
}

// Defs returns DEFINITION ∪ UPDATE.
func (d DefUse) Defs() *RefSet {
	return d.Definition.Union(d.Update)
}

// Uses returns UPDATE ∪ USE.
func (d DefUse) Uses() *RefSet {
	return d.Update.Union(d.Use)
}

// Of returns the set for the given level.
func (d DefUse) Of(level Level) *RefSet {
	switch level {
	case LevelDefinition:
		return d.Definition
	case LevelUpdate:
		return d.Update
	default:
		return d.Use
	}
}

// Union returns a new triple whose per-level sets are the union of d and
// other's.
func (d DefUse) Union(other DefUse) DefUse {
	return DefUse{
		Definition: d.Definition.Union(other.Definition),
		Update:     d.Update.Union(other.Update),
		Use:        d.Use.Union(other.Use),
	}
}

// Equals reports whether d and other hold the same references at every
// level.
func (d DefUse) Equals(other DefUse) bool {
	return d.Definition.Equals(other.Definition) &&
		d.Update.Equals(other.Update) &&
		d.Use.Equals(other.Use)
}

// Clone returns a deep-enough copy of d (the underlying sets are cloned;
// Ref values themselves are immutable and shared).
func (d DefUse) Clone() DefUse {
	return DefUse{
		Definition: d.Definition.Clone(),
		Update:     d.Update.Clone(),
		Use:        d.Use.Clone(),
	}
}

// DataflowEdge connects a definition/update to a use of the same name.
// Identity is (FromLocation, ToLocation); FromRef/ToRef are carried for
// callers that need the name or kind but are not part of identity, so
// control-dependency edges (which carry no refs) still dedupe correctly.
type DataflowEdge struct {
	From    *pyast.Node
	To      *pyast.Node
	FromRef *Ref
	ToRef   *Ref
}

// Key returns the (FromLocation, ToLocation) identity string.
func (e DataflowEdge) Key() string {
	var from, to pyast.Location
	if e.From != nil {
		from = e.From.Location()
	}
	if e.To != nil {
		to = e.To.Location()
	}
	return from.String() + "\x1e" + to.String()
}

// EdgeSet is a keyed set of dataflow edges.
type EdgeSet = set.Set[string, DataflowEdge]

// NewEdgeSet creates an empty EdgeSet.
func NewEdgeSet() *EdgeSet {
	return set.New[string, DataflowEdge](DataflowEdge.Key)
}
