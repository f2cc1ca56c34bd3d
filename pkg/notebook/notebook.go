// Package notebook assembles a virtual whole program out of a history
// of executed code fragments ("cells"), the way the teacher's CFG
// extractor assembles one function's control flow out of its
// statement list — generalized here to span many fragments, each
// tagged with the execution that produced it, concatenated into one
// line-addressable program.
package notebook

import (
	"errors"

	"pyslice/internal/log"
	"pyslice/pkg/cfgbuild"
	"pyslice/pkg/dataflow"
	"pyslice/pkg/defuse"
	"pyslice/pkg/libspec"
	"pyslice/pkg/magics"
	"pyslice/pkg/pyast"
	"pyslice/pkg/refs"
)

// Cell is the minimal externally-provided record of one code fragment.
type Cell interface {
	Text() string
	ExecutionCount() int
	ExecutionEventID() string
	PersistentID() string
	HasError() bool
	DeepCopy() Cell
}

// CellProgram is the parsed form of a single cell, created once when
// the cell is logged and never mutated afterwards.
type CellProgram struct {
	Cell       Cell
	Module     *pyast.Module
	Statements []*pyast.Node
	Defs       *refs.RefSet
	Uses       *refs.RefSet
	HasError   bool
}

// Program is assembled from an ordered list of cell programs: a
// concatenated statement list with every location shifted so lines are
// unique across the program, plus the two line maps spec.md requires.
type Program struct {
	Cells         []*CellProgram
	Statements    []*pyast.Node
	CellToLineMap map[string]map[int]bool // executionEventId -> line set
	LineToCellMap map[int]*CellProgram
}

// Builder parses cells, extracts their defs/uses, and assembles
// programs on request. One Builder owns one symbol table and one
// per-statement cache, matching the engine's single-threaded resource
// model: it must not be shared across concurrent analyses.
type Builder struct {
	Symbols   *libspec.SymbolTable
	Analyzer  *dataflow.Analyzer
	cellPrograms map[string][]*CellProgram // persistentId -> history, most recent last
	byEventID    map[string]*CellProgram
	logger       log.Logger
}

// NewBuilder creates a Builder over the given default spec bundle.
func NewBuilder(library map[string]*libspec.ModuleSpec, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	symbols := libspec.NewSymbolTable(library, logger)
	return &Builder{
		Symbols:      symbols,
		Analyzer:     dataflow.New(symbols, defuse.NewMemCache(), logger),
		cellPrograms: make(map[string][]*CellProgram),
		byEventID:    make(map[string]*CellProgram),
		logger:       logger,
	}
}

// Add parses cell's text (after magics rewriting), annotates every
// parsed node's location with the cell's executionEventId, extracts
// its defs and uses, and stores the resulting CellProgram. Parse or
// analysis failure is recovered locally: the cell is stored with
// hasError=true and empty statement/def/use lists.
func (b *Builder) Add(cell Cell) *CellProgram {
	cp := &CellProgram{Cell: cell, Defs: refs.NewRefSet(), Uses: refs.NewRefSet()}

	rewritten := magics.Rewrite(cell.Text())
	module, err := pyast.Parse(rewritten, cell.ExecutionEventID())
	if err == nil && module.Root.Raw().HasError() {
		err = errors.New("syntax error in cell source")
	}
	if err != nil {
		b.logger.Warn("cell parse failed", "eventId", cell.ExecutionEventID(), "err", err)
		cp.HasError = true
		b.store(cell, cp)
		return cp
	}

	stmts := func() []*pyast.Node {
		var out []*pyast.Node
		for _, s := range module.Root.Children() {
			out = append(out, s.Statement())
		}
		return out
	}()

	cp.Module = module
	cp.Statements = stmts

	func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Warn("cell analysis failed", "eventId", cell.ExecutionEventID(), "err", r)
				cp.HasError = true
				cp.Statements = nil
				cp.Defs = refs.NewRefSet()
				cp.Uses = refs.NewRefSet()
			}
		}()
		cfg := cfgbuild.Build(stmts)
		result := b.Analyzer.Analyze(cfg, nil)
		for _, stmt := range stmts {
			du := b.Analyzer.Extractor.GetDefUseForStatement(stmt, refs.NewRefSet())
			cp.Defs = cp.Defs.Union(du.Defs())
			cp.Uses = cp.Uses.Union(du.Use)
		}
		cp.Uses = cp.Uses.Union(result.UndefinedRefs)
	}()

	if cell.HasError() {
		cp.HasError = true
	}

	b.store(cell, cp)
	return cp
}

func (b *Builder) store(cell Cell, cp *CellProgram) {
	b.cellPrograms[cell.PersistentID()] = append(b.cellPrograms[cell.PersistentID()], cp)
	b.byEventID[cell.ExecutionEventID()] = cp
}

// GetCellProgram returns the most-recent CellProgram with the given
// executionEventId, or nil.
func (b *Builder) GetCellProgram(eventID string) *CellProgram {
	return b.byEventID[eventID]
}

// BuildTo starts from the target cell and walks backward through the
// log, collecting cell programs. The target is always included. A
// previous cell is included unless its executionCount is >= the
// last-seen count (a stale re-execution since superseded) or it
// recorded an error.
//
// Equal execution counts across a restart are treated as stale: this
// implementation excludes an earlier cell whose count equals the last
// seen count, on the grounds that a genuinely fresh execution after a
// kernel restart should reset every cell's count to a value strictly
// greater than what came before, so an equal count can only arise from
// the same execution being seen twice.
func (b *Builder) BuildTo(eventID string, history []Cell) *Program {
	target := b.byEventID[eventID]
	if target == nil {
		return nil
	}

	idx := -1
	for i, c := range history {
		if c.ExecutionEventID() == eventID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return &Program{Cells: []*CellProgram{target}}
	}

	collected := []*CellProgram{target}
	lastSeen := target.Cell.ExecutionCount()
	for i := idx - 1; i >= 0; i-- {
		c := history[i]
		if c.ExecutionCount() >= lastSeen {
			continue
		}
		if c.HasError() {
			continue
		}
		cp := b.byEventID[c.ExecutionEventID()]
		if cp == nil {
			continue
		}
		collected = append(collected, cp)
		lastSeen = c.ExecutionCount()
	}

	reversed := make([]*CellProgram, len(collected))
	for i, cp := range collected {
		reversed[len(collected)-1-i] = cp
	}
	return assemble(reversed)
}

// BuildFrom assembles a program starting from the first cell in
// history sharing the target's persistentId, through the end of the
// log.
func (b *Builder) BuildFrom(eventID string, history []Cell) *Program {
	target := b.byEventID[eventID]
	if target == nil {
		return nil
	}
	persistentID := target.Cell.PersistentID()

	startIdx := -1
	for i, c := range history {
		if c.PersistentID() == persistentID {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return &Program{Cells: []*CellProgram{target}}
	}

	var collected []*CellProgram
	for i := startIdx; i < len(history); i++ {
		cp := b.byEventID[history[i].ExecutionEventID()]
		if cp == nil || cp.HasError {
			continue
		}
		collected = append(collected, cp)
	}
	return assemble(collected)
}

// assemble concatenates cell programs into one Program, shifting every
// statement's location so line numbers are contiguous and disjoint per
// cell.
func assemble(cps []*CellProgram) *Program {
	prog := &Program{
		Cells:         cps,
		CellToLineMap: make(map[string]map[int]bool),
		LineToCellMap: make(map[int]*CellProgram),
	}

	offset := 0
	for _, cp := range cps {
		lineSet := map[int]bool{}
		for _, stmt := range cp.Statements {
			shifted := shiftStatement(stmt, offset)
			prog.Statements = append(prog.Statements, shifted)
			loc := shifted.Location()
			for line := loc.FirstLine; line <= loc.LastLine; line++ {
				lineSet[line] = true
				prog.LineToCellMap[line] = cp
			}
		}
		prog.CellToLineMap[cp.Cell.ExecutionEventID()] = lineSet

		maxLine := 0
		for _, stmt := range cp.Statements {
			if l := stmt.Location().LastLine; l > maxLine {
				maxLine = l
			}
		}
		offset += maxLine
	}

	return prog
}

// shiftStatement returns a new node view whose reported location has
// offset added to both FirstLine and LastLine. Because pyast.Node does
// not expose a mutator, the shift is carried by pyast.Shift, which
// returns a shifted copy of the node handle rather than mutating the
// parsed tree in place.
func shiftStatement(stmt *pyast.Node, offset int) *pyast.Node {
	if offset == 0 {
		return stmt
	}
	return pyast.Shift(stmt, offset)
}

