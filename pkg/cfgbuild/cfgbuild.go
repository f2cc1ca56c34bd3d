// Package cfgbuild builds a control-flow graph over a sequence of
// pyast statements, generalizing the teacher's per-function
// pythonCFGExtractor (pkg/cfg/python.go) from "one CFG per named
// top-level function" to "one CFG per arbitrary statement list" — a
// whole module body, or any function body the extractor needs a local
// CFG for. Blocks hold statement nodes rather than source strings, so
// the dataflow analyzer can walk them directly.
package cfgbuild

import "pyslice/pkg/pyast"

// Block is a basic block: a straight-line run of statements with a
// single entry and a single exit.
type Block struct {
	ID         int
	Statements []*pyast.Node
}

// ControlDep records that Dependent only executes under the condition
// tested by Control.
type ControlDep struct {
	Control   *pyast.Node
	Dependent *pyast.Node
}

// CFG is a built control-flow graph.
type CFG struct {
	blocks      []*Block
	entry       *Block
	exit        *Block
	succ        map[int][]int
	pred        map[int][]int
	controlDeps []ControlDep
}

// Blocks returns every block in the CFG, in creation order.
func (g *CFG) Blocks() []*Block { return g.blocks }

// Entry returns the CFG's entry block.
func (g *CFG) Entry() *Block { return g.entry }

// Exit returns the CFG's exit block.
func (g *CFG) Exit() *Block { return g.exit }

// Predecessors returns the blocks with an edge into b.
func (g *CFG) Predecessors(b *Block) []*Block {
	return g.lookup(g.pred, b)
}

// Successors returns the blocks with an edge from b.
func (g *CFG) Successors(b *Block) []*Block {
	return g.lookup(g.succ, b)
}

func (g *CFG) lookup(m map[int][]int, b *Block) []*Block {
	if b == nil {
		return nil
	}
	out := make([]*Block, 0, len(m[b.ID]))
	for _, id := range m[b.ID] {
		out = append(out, g.blocks[id])
	}
	return out
}

// VisitControlDependencies calls cb once per (control, dependent)
// statement pair recorded while building the graph.
func (g *CFG) VisitControlDependencies(cb func(control, dependent *pyast.Node)) {
	for _, d := range g.controlDeps {
		cb(d.Control, d.Dependent)
	}
}

type loopCtx struct {
	header *Block
	exit   *Block
}

type builder struct {
	blocks      []*Block
	succ        map[int][]int
	pred        map[int][]int
	controlDeps []ControlDep
	loops       []loopCtx
}

// Build constructs a CFG over the given sibling statements (a module
// body or a function body's statement list).
func Build(statements []*pyast.Node) *CFG {
	b := &builder{
		succ: make(map[int][]int),
		pred: make(map[int][]int),
	}
	entry := b.newBlock()
	cur := b.processStatements(statements, entry, nil)
	exit := b.newBlock()
	if cur != nil {
		b.addEdge(cur, exit)
	}
	return &CFG{
		blocks:      b.blocks,
		entry:       entry,
		exit:        exit,
		succ:        b.succ,
		pred:        b.pred,
		controlDeps: b.controlDeps,
	}
}

func (b *builder) newBlock() *Block {
	blk := &Block{ID: len(b.blocks)}
	b.blocks = append(b.blocks, blk)
	return blk
}

func (b *builder) addEdge(from, to *Block) {
	if from == nil || to == nil {
		return
	}
	b.succ[from.ID] = append(b.succ[from.ID], to.ID)
	b.pred[to.ID] = append(b.pred[to.ID], from.ID)
}

func (b *builder) addControlDep(control, dependent *pyast.Node) {
	b.controlDeps = append(b.controlDeps, ControlDep{Control: control, Dependent: dependent})
}

// processStatements appends stmts to cur, opening new blocks on
// branches and loops, and returns the block later statements fall
// through into (nil if control never falls through, e.g. the list ends
// in a return/break/continue/raise).
func (b *builder) processStatements(stmts []*pyast.Node, cur *Block, underControl *pyast.Node) *Block {
	for _, raw := range stmts {
		if cur == nil {
			cur = b.newBlock()
		}
		stmt := raw.Statement()
		if underControl != nil {
			b.addControlDep(underControl, stmt)
		}

		switch {
		case stmt.RawType() == "if_statement":
			cur = b.processIf(stmt, cur)
		case stmt.RawType() == "while_statement":
			cur = b.processWhile(stmt, cur)
		case stmt.RawType() == "for_statement" || stmt.RawType() == "async_for_statement":
			cur = b.processFor(stmt, cur)
		case stmt.RawType() == "try_statement":
			cur = b.processTry(stmt, cur)
		case stmt.RawType() == "with_statement" || stmt.RawType() == "async_with_statement":
			cur.Statements = append(cur.Statements, stmt)
			cur = b.processStatements(bodyOf(stmt), cur, underControl)
		case stmt.RawType() == "return_statement":
			cur.Statements = append(cur.Statements, stmt)
			b.addEdge(cur, nil) // return has no fall-through successor within this CFG
			cur = nil
		case stmt.RawType() == "break_statement":
			cur.Statements = append(cur.Statements, stmt)
			if n := len(b.loops); n > 0 {
				b.addEdge(cur, b.loops[n-1].exit)
			}
			cur = nil
		case stmt.RawType() == "continue_statement":
			cur.Statements = append(cur.Statements, stmt)
			if n := len(b.loops); n > 0 {
				b.addEdge(cur, b.loops[n-1].header)
			}
			cur = nil
		case stmt.RawType() == "raise_statement":
			cur.Statements = append(cur.Statements, stmt)
			cur = nil
		default:
			cur.Statements = append(cur.Statements, stmt)
		}
	}
	return cur
}

func bodyOf(stmt *pyast.Node) []*pyast.Node {
	if body := stmt.ChildByFieldName("body"); body != nil {
		return body.Children()
	}
	for _, c := range stmt.Children() {
		if c.RawType() == "block" {
			return c.Children()
		}
	}
	return nil
}

func (b *builder) processIf(stmt *pyast.Node, cur *Block) *Block {
	branch := b.newBlock()
	branch.Statements = append(branch.Statements, stmt)
	b.addEdge(cur, branch)

	consequence := b.newBlock()
	b.addEdge(branch, consequence)
	after := b.processStatements(bodyOf(stmt), consequence, stmt)

	merge := b.newBlock()
	if after != nil {
		b.addEdge(after, merge)
	}

	alt := stmt.ChildByFieldName("alternative")
	if alt == nil {
		b.addEdge(branch, merge)
		return merge
	}

	switch alt.RawType() {
	case "else_clause":
		elseAfter := b.processStatements(bodyOf(alt), branch, stmt)
		if elseAfter != nil && elseAfter != branch {
			b.addEdge(elseAfter, merge)
		} else if elseAfter == branch {
			b.addEdge(branch, merge)
		}
	case "elif_clause":
		elifAfter := b.processIf(alt, branch)
		if elifAfter != nil {
			b.addEdge(elifAfter, merge)
		}
	default:
		b.addEdge(branch, merge)
	}
	return merge
}

func (b *builder) processWhile(stmt *pyast.Node, cur *Block) *Block {
	header := b.newBlock()
	header.Statements = append(header.Statements, stmt)
	b.addEdge(cur, header)

	merge := b.newBlock()
	b.loops = append(b.loops, loopCtx{header: header, exit: merge})

	body := b.newBlock()
	b.addEdge(header, body)
	bodyAfter := b.processStatements(bodyOf(stmt), body, stmt)
	if bodyAfter != nil {
		b.addEdge(bodyAfter, header)
	}

	b.loops = b.loops[:len(b.loops)-1]
	b.addEdge(header, merge)
	return merge
}

func (b *builder) processFor(stmt *pyast.Node, cur *Block) *Block {
	header := b.newBlock()
	header.Statements = append(header.Statements, stmt)
	b.addEdge(cur, header)

	merge := b.newBlock()
	b.loops = append(b.loops, loopCtx{header: header, exit: merge})

	body := b.newBlock()
	b.addEdge(header, body)
	bodyAfter := b.processStatements(bodyOf(stmt), body, stmt)
	if bodyAfter != nil {
		b.addEdge(bodyAfter, header)
	}

	b.loops = b.loops[:len(b.loops)-1]
	b.addEdge(header, merge)
	return merge
}

func (b *builder) processTry(stmt *pyast.Node, cur *Block) *Block {
	tryBlock := b.newBlock()
	tryBlock.Statements = append(tryBlock.Statements, stmt)
	b.addEdge(cur, tryBlock)

	merge := b.newBlock()
	bodyAfter := b.processStatements(bodyOf(stmt), tryBlock, stmt)
	if bodyAfter != nil {
		b.addEdge(bodyAfter, merge)
	}

	for _, child := range stmt.Children() {
		if child.RawType() != "except_clause" && child.RawType() != "except_group_clause" {
			continue
		}
		handler := b.newBlock()
		b.addEdge(tryBlock, handler)
		handlerAfter := b.processStatements(bodyOf(child), handler, stmt)
		if handlerAfter != nil {
			b.addEdge(handlerAfter, merge)
		}
	}

	if fin := stmt.ChildByFieldName("finally"); fin != nil || hasFinally(stmt) {
		finallyClause := findFinally(stmt)
		finallyBlock := b.newBlock()
		b.addEdge(merge, finallyBlock)
		finallyAfter := b.processStatements(bodyOf(finallyClause), finallyBlock, stmt)
		return finallyAfter
	}

	return merge
}

func hasFinally(stmt *pyast.Node) bool {
	return findFinally(stmt) != nil
}

func findFinally(stmt *pyast.Node) *pyast.Node {
	for _, child := range stmt.Children() {
		if child.RawType() == "finally_clause" {
			return child
		}
	}
	return nil
}
