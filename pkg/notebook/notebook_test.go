package notebook

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyslice/internal/log"
)

func testLogger() log.Logger {
	return log.New(log.LoggerConfig{Stdout: io.Discard, Stderr: io.Discard})
}

type fakeCell struct {
	text             string
	executionCount   int
	executionEventID string
	persistentID     string
	hasError         bool
}

func (c *fakeCell) Text() string             { return c.text }
func (c *fakeCell) ExecutionCount() int      { return c.executionCount }
func (c *fakeCell) ExecutionEventID() string { return c.executionEventID }
func (c *fakeCell) PersistentID() string     { return c.persistentID }
func (c *fakeCell) HasError() bool           { return c.hasError }
func (c *fakeCell) DeepCopy() Cell {
	cp := *c
	return &cp
}

func TestBuilder_AddParsesAndExtractsDefsUses(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	cell := &fakeCell{text: "x = 1\n", executionCount: 1, executionEventID: "e1", persistentID: "c1"}

	cp := b.Add(cell)
	require.False(t, cp.HasError)
	require.Len(t, cp.Statements, 1)
	assert.Equal(t, "x", cp.Defs.Items()[0].Name)
}

func TestBuilder_AddRecoversFromParseFailure(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	cell := &fakeCell{text: "def (:\n", executionCount: 1, executionEventID: "bad", persistentID: "c1"}

	cp := b.Add(cell)
	assert.True(t, cp.HasError)
}

func TestBuilder_AddRewritesMagics(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	cell := &fakeCell{text: "%time x = 1\n", executionCount: 1, executionEventID: "e1", persistentID: "c1"}

	cp := b.Add(cell)
	require.False(t, cp.HasError)
	require.Len(t, cp.Statements, 1)
}

func TestBuilder_GetCellProgramByEventID(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	cell := &fakeCell{text: "x = 1\n", executionCount: 1, executionEventID: "e1", persistentID: "c1"}
	b.Add(cell)

	assert.NotNil(t, b.GetCellProgram("e1"))
	assert.Nil(t, b.GetCellProgram("unknown"))
}

func TestBuilder_BuildToCollectsBackwardHistoryByExecutionCount(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	history := []Cell{
		&fakeCell{text: "x = 1\n", executionCount: 1, executionEventID: "e1", persistentID: "c1"},
		&fakeCell{text: "y = 2\n", executionCount: 2, executionEventID: "e2", persistentID: "c2"},
		&fakeCell{text: "x = 1\n", executionCount: 3, executionEventID: "e3", persistentID: "c1"},
		&fakeCell{text: "z = x + y\n", executionCount: 4, executionEventID: "e4", persistentID: "c3"},
	}
	for _, c := range history {
		b.Add(c)
	}

	prog := b.BuildTo("e4", history)
	require.NotNil(t, prog)

	var eventIDs []string
	for _, cp := range prog.Cells {
		eventIDs = append(eventIDs, cp.Cell.ExecutionEventID())
	}
	assert.Contains(t, eventIDs, "e4")
	assert.Contains(t, eventIDs, "e3")
	assert.Contains(t, eventIDs, "e2")
	assert.Contains(t, eventIDs, "e1", "e1's count 1 is below the last-seen count 2, so it is not stale")
}

func TestBuilder_BuildToExcludesErroredCells(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	history := []Cell{
		&fakeCell{text: "x = bad syntax here (\n", executionCount: 1, executionEventID: "e1", persistentID: "c1", hasError: true},
		&fakeCell{text: "y = 2\n", executionCount: 2, executionEventID: "e2", persistentID: "c2"},
	}
	for _, c := range history {
		b.Add(c)
	}

	prog := b.BuildTo("e2", history)
	require.NotNil(t, prog)

	var eventIDs []string
	for _, cp := range prog.Cells {
		eventIDs = append(eventIDs, cp.Cell.ExecutionEventID())
	}
	assert.NotContains(t, eventIDs, "e1")
}

func TestBuilder_BuildToUnknownEventReturnsNil(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	assert.Nil(t, b.BuildTo("missing", nil))
}

func TestBuilder_BuildFromCollectsForwardHistoryForSamePersistentCell(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	history := []Cell{
		&fakeCell{text: "x = 1\n", executionCount: 1, executionEventID: "e1", persistentID: "c1"},
		&fakeCell{text: "y = x\n", executionCount: 2, executionEventID: "e2", persistentID: "c2"},
		&fakeCell{text: "x = 2\n", executionCount: 3, executionEventID: "e3", persistentID: "c1"},
	}
	for _, c := range history {
		b.Add(c)
	}

	prog := b.BuildFrom("e1", history)
	require.NotNil(t, prog)
	require.Len(t, prog.Cells, 3)
	assert.Equal(t, "e1", prog.Cells[0].Cell.ExecutionEventID())
	assert.Equal(t, "e3", prog.Cells[2].Cell.ExecutionEventID())
}

func TestAssemble_ShiftsLinesAndBuildsLineMaps(t *testing.T) {
	b := NewBuilder(nil, testLogger())
	history := []Cell{
		&fakeCell{text: "x = 1\n", executionCount: 1, executionEventID: "e1", persistentID: "c1"},
		&fakeCell{text: "y = 2\n", executionCount: 2, executionEventID: "e2", persistentID: "c2"},
	}
	for _, c := range history {
		b.Add(c)
	}

	prog := b.BuildFrom("e1", history)
	require.NotNil(t, prog)
	require.Len(t, prog.Statements, 2)

	firstLoc := prog.Statements[0].Location()
	secondLoc := prog.Statements[1].Location()
	assert.NotEqual(t, firstLoc.FirstLine, secondLoc.FirstLine, "the second cell's statement must be shifted onto a disjoint line")

	assert.Contains(t, prog.CellToLineMap, "e1")
	assert.Contains(t, prog.CellToLineMap, "e2")
	assert.NotNil(t, prog.LineToCellMap[secondLoc.FirstLine])
}
