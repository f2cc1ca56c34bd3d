package cfgbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyslice/pkg/pyast"
)

func parse(t *testing.T, src string) []*pyast.Node {
	t.Helper()
	mod, err := pyast.Parse(src, "cell1")
	require.NoError(t, err)
	return mod.Root.Statements()
}

func TestBuild_StraightLine(t *testing.T) {
	stmts := parse(t, "x = 1\ny = 2\nz = 3\n")
	g := Build(stmts)

	require.NotNil(t, g.Entry())
	require.NotNil(t, g.Exit())
	assert.NotEqual(t, g.Entry().ID, g.Exit().ID)

	// A straight-line body ends up joined into the entry block, which
	// then falls through directly to exit.
	succ := g.Successors(g.Entry())
	require.Len(t, succ, 1)
	assert.Equal(t, g.Exit().ID, succ[0].ID)
}

func TestBuild_IfWithoutElseMerges(t *testing.T) {
	stmts := parse(t, "if x:\n    y = 1\nz = 2\n")
	g := Build(stmts)

	var sawControlDep bool
	g.VisitControlDependencies(func(control, dependent *pyast.Node) {
		if dependent.Text() == "y = 1" {
			sawControlDep = true
		}
	})
	assert.True(t, sawControlDep)

	// Every block must reach the exit block eventually (no dangling path).
	reached := reachable(g, g.Entry())
	assert.Contains(t, reached, g.Exit().ID)
}

func TestBuild_IfElse(t *testing.T) {
	stmts := parse(t, "if x:\n    y = 1\nelse:\n    y = 2\n")
	g := Build(stmts)

	reached := reachable(g, g.Entry())
	assert.Contains(t, reached, g.Exit().ID)
}

func TestBuild_WhileLoopBackEdge(t *testing.T) {
	stmts := parse(t, "while x:\n    y = 1\n")
	g := Build(stmts)

	// The loop body's block must have an edge back to the while header.
	var headerID int
	for _, blk := range g.Blocks() {
		for _, s := range blk.Statements {
			if s.RawType() == "while_statement" {
				headerID = blk.ID
			}
		}
	}
	found := false
	for _, blk := range g.Blocks() {
		for _, succID := range successorIDs(g, blk) {
			if succID == headerID {
				found = true
			}
		}
	}
	assert.True(t, found, "loop body must flow back to its header")
}

func TestBuild_ForLoop(t *testing.T) {
	stmts := parse(t, "for i in items:\n    total += i\n")
	g := Build(stmts)

	reached := reachable(g, g.Entry())
	assert.Contains(t, reached, g.Exit().ID)
}

func TestBuild_BreakJumpsToLoopExit(t *testing.T) {
	stmts := parse(t, "while x:\n    if y:\n        break\n    z = 1\n")
	g := Build(stmts)

	reached := reachable(g, g.Entry())
	assert.Contains(t, reached, g.Exit().ID)
}

func TestBuild_ReturnHasNoFallthrough(t *testing.T) {
	stmts := parse(t, "if x:\n    return 1\ny = 2\n")
	g := Build(stmts)

	for _, blk := range g.Blocks() {
		for _, s := range blk.Statements {
			if s.RawType() == "return_statement" {
				assert.Empty(t, successorIDs(g, blk), "a block ending in return has no fall-through successor")
			}
		}
	}
}

func TestBuild_TryExceptFinally(t *testing.T) {
	stmts := parse(t, "try:\n    x = 1\nexcept Exception:\n    x = 2\nfinally:\n    x = 3\n")
	g := Build(stmts)

	reached := reachable(g, g.Entry())
	assert.Contains(t, reached, g.Exit().ID)
}

func successorIDs(g *CFG, b *Block) []int {
	var out []int
	for _, s := range g.Successors(b) {
		out = append(out, s.ID)
	}
	return out
}

func reachable(g *CFG, from *Block) map[int]bool {
	seen := map[int]bool{}
	var visit func(*Block)
	visit = func(b *Block) {
		if b == nil || seen[b.ID] {
			return
		}
		seen[b.ID] = true
		for _, s := range g.Successors(b) {
			visit(s)
		}
	}
	visit(from)
	return seen
}
