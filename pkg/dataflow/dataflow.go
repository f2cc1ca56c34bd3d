// Package dataflow runs a fixed-point analysis over a control-flow
// graph, producing a set of dataflow edges and a set of undefined
// references. It is grounded on the teacher's reaching_defs.go
// worklist (pkg/dfg/reaching_defs.go) — a reverse-seeded worklist over
// CFG blocks accumulating a monotone per-block state — generalized
// from a single reaching-definitions lattice to the engine's richer
// Definition/Update/Use gen-kill tables.
package dataflow

import (
	"pyslice/internal/log"
	"pyslice/pkg/cfgbuild"
	"pyslice/pkg/defuse"
	"pyslice/pkg/libspec"
	"pyslice/pkg/pyast"
	"pyslice/pkg/refs"
)

// genTable and killTable are the static gen/kill rules of spec §9's
// design note: encode both as data, read generically by the transfer
// step, instead of inlining per-kind logic.
var genTable = map[refs.Level][]refs.Level{
	refs.LevelUse:        {refs.LevelUpdate, refs.LevelDefinition},
	refs.LevelUpdate:     {refs.LevelDefinition},
	refs.LevelDefinition: {},
}

var killTable = map[refs.Level][]refs.Level{
	refs.LevelDefinition: {refs.LevelDefinition, refs.LevelUpdate},
	refs.LevelUpdate:     {refs.LevelDefinition, refs.LevelUpdate},
	refs.LevelUse:        {},
}

// Result is the output of a fixed-point analysis.
type Result struct {
	Edges         *refs.EdgeSet
	UndefinedRefs *refs.RefSet
	// BlockStates holds the final DefUse triple reached for each block,
	// keyed by block ID.
	BlockStates map[int]refs.DefUse
}

// Analyzer runs fixed-point dataflow analyses, owning one symbol table
// and one per-statement extractor — both scoped to a single analyzer
// instance per the engine's single-threaded resource model.
type Analyzer struct {
	Extractor *defuse.Extractor
	Symbols   *libspec.SymbolTable
	logger    log.Logger
}

// New creates an Analyzer, wiring the extractor's free-variable
// callback back to this analyzer's own Analyze method so a nested "def"
// statement's body can be analyzed without defuse importing dataflow.
func New(symbols *libspec.SymbolTable, cache defuse.Cache, logger log.Logger) *Analyzer {
	if logger == nil {
		logger = log.Default()
	}
	a := &Analyzer{Symbols: symbols, logger: logger}
	a.Extractor = defuse.New(symbols, cache, logger)
	a.Extractor.FreeVars = a.freeVariablesOf
	return a
}

// Analyze runs the fixed-point over cfg, optionally seeding the entry
// block's incoming state with seedRefs as definitions.
func (a *Analyzer) Analyze(cfg *cfgbuild.CFG, seedRefs *refs.RefSet) Result {
	states := make(map[int]refs.DefUse, len(cfg.Blocks()))
	for _, b := range cfg.Blocks() {
		states[b.ID] = refs.NewDefUse()
	}
	if seedRefs != nil && cfg.Entry() != nil {
		seeded := refs.NewDefUse()
		seeded.Definition = seedRefs
		states[cfg.Entry().ID] = applyGenKill(states[cfg.Entry().ID], seeded)
	}

	edges := refs.NewEdgeSet()
	undefined := refs.NewRefSet()
	defined := refs.NewRefSet()

	worklist := make([]int, 0, len(cfg.Blocks()))
	blocks := cfg.Blocks()
	for i := len(blocks) - 1; i >= 0; i-- {
		worklist = append(worklist, blocks[i].ID)
	}
	queued := make(map[int]bool, len(blocks))
	for _, id := range worklist {
		queued[id] = true
	}

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		queued[id] = false
		block := blocks[id]

		blockIn := states[id]
		for _, pred := range cfg.Predecessors(block) {
			blockIn = blockIn.Union(states[pred.ID])
		}

		for _, stmt := range block.Statements {
			sdu := a.Extractor.GetDefUseForStatement(stmt, blockIn.Defs())

			for _, level := range []refs.Level{refs.LevelDefinition, refs.LevelUpdate, refs.LevelUse} {
				for _, to := range sdu.Of(level).Items() {
					for _, from := range blockIn.Of(level).Items() {
						if from.Name != to.Name {
							continue
						}
						edges.Add(refs.DataflowEdge{From: from.Node, To: to.Node, FromRef: &from, ToRef: &to})
						defined.Add(to)
					}
				}
			}

			uses := sdu.Uses()
			undefined = undefined.Union(uses).Minus(defined)

			blockIn = applyGenKill(blockIn, sdu)

			if sdu.Of(refs.LevelDefinition).Some(func(r refs.Ref) bool { return r.Kind == refs.KindFunction }) {
				a.analyzeParameterSideEffects(stmt)
			}
		}

		if !blockIn.Equals(states[id]) {
			states[id] = blockIn
			for _, succ := range cfg.Successors(block) {
				if !queued[succ.ID] {
					worklist = append(worklist, succ.ID)
					queued[succ.ID] = true
				}
			}
		}
	}

	cfg.VisitControlDependencies(func(control, dependent *pyast.Node) {
		edges.Add(refs.DataflowEdge{From: control, To: dependent})
	})

	return Result{Edges: edges, UndefinedRefs: undefined, BlockStates: states}
}

// applyGenKill advances blockIn past one statement's DefUse triple,
// using the static gen/kill tables keyed by reference level.
func applyGenKill(blockIn refs.DefUse, sdu refs.DefUse) refs.DefUse {
	gen := map[refs.Level]*refs.RefSet{
		refs.LevelDefinition: refs.NewRefSet(),
		refs.LevelUpdate:     refs.NewRefSet(),
		refs.LevelUse:        refs.NewRefSet(),
	}
	for _, level := range []refs.Level{refs.LevelDefinition, refs.LevelUpdate, refs.LevelUse} {
		for _, fromLevel := range genTable[level] {
			gen[level] = gen[level].Union(sdu.Of(fromLevel))
		}
	}

	result := make(map[refs.Level]*refs.RefSet, 3)
	for _, level := range []refs.Level{refs.LevelDefinition, refs.LevelUpdate, refs.LevelUse} {
		kept := blockIn.Of(level).Filter(func(r refs.Ref) bool {
			for _, killLevel := range killTable[level] {
				if gen[killLevel].Some(func(g refs.Ref) bool { return g.Name == r.Name }) {
					return false
				}
			}
			return true
		})
		result[level] = kept.Union(gen[level])
	}
	return refs.DefUse{
		Definition: result[refs.LevelDefinition],
		Update:     result[refs.LevelUpdate],
		Use:        result[refs.LevelUse],
	}
}

// freeVariablesOf builds a local CFG for defNode's body, seeds its
// parameters as definitions, and returns the resulting undefined-use
// references — the function's free variables.
func (a *Analyzer) freeVariablesOf(defNode *pyast.Node) *refs.RefSet {
	body := defNode.ChildByFieldName("body")
	if body == nil {
		return refs.NewRefSet()
	}
	params := defNode.ChildByFieldName("parameters")
	seeds := refs.NewRefSet()
	if params != nil {
		for _, p := range params.Children() {
			if p.RawType() == "identifier" {
				seeds.Add(refs.Ref{Name: p.Text(), Kind: refs.KindVariable, Level: refs.LevelDefinition, Location: p.Location(), Node: defNode})
			}
		}
	}
	var stmts []*pyast.Node
	for _, s := range body.Children() {
		stmts = append(stmts, s.Statement())
	}
	cfg := cfgbuild.Build(stmts)
	result := a.Analyze(cfg, seeds)
	return result.UndefinedRefs
}

// analyzeParameterSideEffects builds a fresh dataflow analysis of a
// function's body with its parameters seeded as definitions, then
// records in the symbol table which parameter positions the body (or
// any spec'd call it transitively flows into) mutates.
func (a *Analyzer) analyzeParameterSideEffects(defNode *pyast.Node) {
	name := defNode.ChildByFieldName("name")
	params := defNode.ChildByFieldName("parameters")
	body := defNode.ChildByFieldName("body")
	if name == nil || body == nil {
		return
	}

	var paramList []*pyast.Node
	if params != nil {
		for _, p := range params.Children() {
			if p.RawType() == "identifier" {
				paramList = append(paramList, p)
			}
		}
	}

	seeds := refs.NewRefSet()
	for _, p := range paramList {
		seeds.Add(refs.Ref{Name: p.Text(), Kind: refs.KindVariable, Level: refs.LevelDefinition, Location: p.Location(), Node: defNode})
	}

	var stmts []*pyast.Node
	for _, s := range body.Children() {
		stmts = append(stmts, s.Statement())
	}
	cfg := cfgbuild.Build(stmts)
	result := a.Analyze(cfg, seeds)

	updates := make([]any, 0)
	for pos, p := range paramList {
		if flowsIntoSideEffect(result.Edges, p.Text()) {
			updates = append(updates, pos+1)
		}
	}

	a.Symbols.SetFunctionSpec(&libspec.FunctionSpec{Name: name.Text(), Updates: updates})
}

// flowsIntoSideEffect reports whether paramName's definitions reach any
// dataflow edge endpoint whose ref is at the Update level (a dotted or
// indexed assignment target, or a call argument recorded as mutated).
func flowsIntoSideEffect(edges *refs.EdgeSet, paramName string) bool {
	reached := map[string]bool{paramName: true}
	changed := true
	for changed {
		changed = false
		for _, e := range edges.Items() {
			if e.FromRef == nil || e.ToRef == nil {
				continue
			}
			if reached[e.FromRef.Name] && !reached[e.ToRef.Name] {
				reached[e.ToRef.Name] = true
				changed = true
			}
			if e.ToRef.Level == refs.LevelUpdate && reached[e.FromRef.Name] {
				return true
			}
		}
	}
	return false
}
