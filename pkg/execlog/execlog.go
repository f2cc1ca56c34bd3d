// Package execlog is the engine's public entry point: it records cell
// executions, drives the program builder and slicer, maps slice
// locations back to per-cell offsets, and answers forward-dependency
// queries for a notebook-style gathering tool. Grounded on the
// teacher's cache.LRUCache for the "append, never invalidate, reset
// wholesale" resource discipline (pkg/cache/cache.go), generalized from
// an LRU of embeddings to an append-only log of executions.
package execlog

import (
	"sort"
	"time"

	"pyslice/internal/log"
	"pyslice/pkg/libspec"
	"pyslice/pkg/notebook"
	"pyslice/pkg/pyast"
	"pyslice/pkg/slicer"
)

// CellExecution is one entry of the append-only execution log.
type CellExecution struct {
	Cell notebook.Cell
	Time time.Time
}

// Subscriber is notified, synchronously and in registration order,
// after every logged execution.
type Subscriber func(exec CellExecution)

// CellSlice is one cell's portion of a slice, expressed in the cell's
// own relative line coordinates.
type CellSlice struct {
	EventID        string
	PersistentID   string
	ExecutionCount int
	Lines          []int
}

// SlicedExecution is the result of slicing through one logged
// execution: the time it ran, and its accepted lines grouped by cell
// in first-occurrence order.
type SlicedExecution struct {
	ExecutionTime time.Time
	CellSlices    []CellSlice
}

// Merge unions the per-cell location sets of se and others, keyed by
// executionEventId, and returns a new SlicedExecution sorted by
// execution count.
func (se SlicedExecution) Merge(others ...SlicedExecution) SlicedExecution {
	lineSets := make(map[string]map[int]bool)
	counts := make(map[string]int)
	order := make(map[string]int)
	next := 0

	absorb := func(s SlicedExecution) {
		for _, cs := range s.CellSlices {
			if _, ok := order[cs.EventID]; !ok {
				order[cs.EventID] = next
				next++
			}
			if lineSets[cs.EventID] == nil {
				lineSets[cs.EventID] = make(map[int]bool)
			}
			for _, l := range cs.Lines {
				lineSets[cs.EventID][l] = true
			}
			counts[cs.EventID] = cs.ExecutionCount
		}
	}
	absorb(se)
	for _, o := range others {
		absorb(o)
	}

	ids := make([]string, 0, len(lineSets))
	for id := range lineSets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return counts[ids[i]] < counts[ids[j]] })

	merged := SlicedExecution{ExecutionTime: se.ExecutionTime}
	for _, id := range ids {
		lines := make([]int, 0, len(lineSets[id]))
		for l := range lineSets[id] {
			lines = append(lines, l)
		}
		sort.Ints(lines)
		merged.CellSlices = append(merged.CellSlices, CellSlice{
			EventID:        id,
			ExecutionCount: counts[id],
			Lines:          lines,
		})
	}
	return merged
}

// Log is the execution-log slicer: the engine's public API surface.
type Log struct {
	Builder *notebook.Builder
	logger  log.Logger

	history     []CellExecution
	subscribers []Subscriber
	now         func() time.Time
}

// New creates an empty Log over the given default spec bundle.
func New(library map[string]*libspec.ModuleSpec, logger log.Logger) *Log {
	if logger == nil {
		logger = log.Default()
	}
	return &Log{
		Builder: notebook.NewBuilder(library, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// Subscribe registers a subscriber, run synchronously in registration
// order after every LogExecution. A panicking subscriber is recovered
// so it cannot corrupt the log or block later subscribers.
func (l *Log) Subscribe(sub Subscriber) {
	l.subscribers = append(l.subscribers, sub)
}

// LogExecution stamps the current time, parses the cell via the
// program builder, appends a CellExecution to the log, and notifies
// subscribers.
func (l *Log) LogExecution(cell notebook.Cell) {
	exec := CellExecution{Cell: cell, Time: l.now()}
	l.addExecution(exec)
}

// AddExecutionToLog appends exec without re-stamping its time, for
// replaying a previously recorded history.
func (l *Log) AddExecutionToLog(exec CellExecution) {
	l.addExecution(exec)
}

func (l *Log) addExecution(exec CellExecution) {
	l.Builder.Add(exec.Cell)
	l.history = append(l.history, exec)
	l.notify(exec)
}

func (l *Log) notify(exec CellExecution) {
	for _, sub := range l.subscribers {
		l.runSubscriber(sub, exec)
	}
}

func (l *Log) runSubscriber(sub Subscriber, exec CellExecution) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("execution-log subscriber failed", "err", r)
		}
	}()
	sub(exec)
}

// Reset clears both the log and the program builder.
func (l *Log) Reset() {
	l.history = nil
	l.Builder = notebook.NewBuilder(nil, l.logger)
}

func (l *Log) cells() []notebook.Cell {
	out := make([]notebook.Cell, 0, len(l.history))
	for _, e := range l.history {
		out = append(out, e.Cell)
	}
	return out
}

// SlicedExecutionsFor runs sliceAllExecutions for persistentID: for
// every log entry sharing that persistentId with a non-empty execution
// count, builds the program up to that cell and slices it, mapping the
// result back to per-cell relative coordinates.
func (l *Log) SlicedExecutionsFor(persistentID string, seedLocations []pyast.Location) []SlicedExecution {
	var out []SlicedExecution
	history := l.cells()

	for _, exec := range l.history {
		if exec.Cell.PersistentID() != persistentID || exec.Cell.ExecutionCount() == 0 {
			continue
		}

		prog := l.Builder.BuildTo(exec.Cell.ExecutionEventID(), history)
		if prog == nil {
			continue
		}

		seeds := seedLocations
		if len(seeds) == 0 {
			seeds = []pyast.Location{sentinelWholeCell(exec.Cell.ExecutionEventID())}
		}
		absoluteSeeds := shiftToProgramCoordinates(prog, exec.Cell.ExecutionEventID(), seeds)

		accepted := slicer.Slice(prog.Statements, absoluteSeeds, l.Builder.Analyzer, slicer.Backward)
		out = append(out, mapToCellSlices(prog, accepted, exec.Time))
	}

	return out
}

// SliceLatestExecution returns the last element of
// SlicedExecutionsFor, or the zero value if there are none.
func (l *Log) SliceLatestExecution(persistentID string, seedLocations []pyast.Location) (SlicedExecution, bool) {
	all := l.SlicedExecutionsFor(persistentID, seedLocations)
	if len(all) == 0 {
		return SlicedExecution{}, false
	}
	return all[len(all)-1], true
}

// GetDependentCells builds a program from the target cell onward,
// seeds the slicer with every line belonging to any cell in the log
// sharing the target's persistentId, runs a forward slice, and
// returns the transitively dependent cells in topological (log) order,
// deduplicated by persistentId, excluding the target cell itself.
func (l *Log) GetDependentCells(eventID string) []notebook.Cell {
	target := l.Builder.GetCellProgram(eventID)
	if target == nil {
		return nil
	}
	history := l.cells()

	prog := l.Builder.BuildFrom(eventID, history)
	if prog == nil {
		return nil
	}

	targetPersistentID := target.Cell.PersistentID()
	var seeds []pyast.Location
	for evID, lines := range prog.CellToLineMap {
		cp := l.Builder.GetCellProgram(evID)
		if cp == nil || cp.Cell.PersistentID() != targetPersistentID {
			continue
		}
		for line := range lines {
			seeds = append(seeds, pyast.Location{FirstLine: line, FirstColumn: 1, LastLine: line, LastColumn: 1 << 20, Path: evID})
		}
	}

	accepted := slicer.Slice(prog.Statements, seeds, l.Builder.Analyzer, slicer.Forward)

	seen := map[string]bool{targetPersistentID: true}
	var out []notebook.Cell
	for _, exec := range l.history {
		cp := l.Builder.GetCellProgram(exec.Cell.ExecutionEventID())
		if cp == nil {
			continue
		}
		lines := prog.CellToLineMap[exec.Cell.ExecutionEventID()]
		if lines == nil {
			continue
		}
		touched := false
		for _, loc := range accepted.Items() {
			if lines[loc.FirstLine] {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		if seen[exec.Cell.PersistentID()] {
			continue
		}
		seen[exec.Cell.PersistentID()] = true
		out = append(out, exec.Cell)
	}
	return out
}

func sentinelWholeCell(eventID string) pyast.Location {
	return pyast.Location{FirstLine: 1, FirstColumn: 1, LastLine: 1 << 20, LastColumn: 1, Path: eventID}
}

func shiftToProgramCoordinates(prog *notebook.Program, eventID string, seeds []pyast.Location) []pyast.Location {
	lines := prog.CellToLineMap[eventID]
	if lines == nil {
		return nil
	}
	minLine := -1
	for l := range lines {
		if minLine == -1 || l < minLine {
			minLine = l
		}
	}
	if minLine == -1 {
		return nil
	}

	var out []pyast.Location
	for _, seed := range seeds {
		first, last := seed.FirstLine, seed.LastLine
		if last > len(lines)+1 {
			last = maxLine(lines)
		}
		out = append(out, pyast.Location{
			FirstLine:   minLine + first - 1,
			FirstColumn: seed.FirstColumn,
			LastLine:    minLine + last - 1,
			LastColumn:  seed.LastColumn,
			Path:        eventID,
		})
	}
	return out
}

func maxLine(lines map[int]bool) int {
	max := 0
	for l := range lines {
		if l > max {
			max = l
		}
	}
	return max
}

func mapToCellSlices(prog *notebook.Program, accepted *slicer.LocationSet, execTime time.Time) SlicedExecution {
	byCell := make(map[string][]int)
	order := make([]string, 0)
	seenOrder := make(map[string]bool)
	execCounts := make(map[string]int)
	persistentIDs := make(map[string]string)

	locs := accepted.Items()
	sort.Slice(locs, func(i, j int) bool { return locs[i].FirstLine < locs[j].FirstLine })

	for _, loc := range locs {
		cp := prog.LineToCellMap[loc.FirstLine]
		if cp == nil {
			continue
		}
		evID := cp.Cell.ExecutionEventID()
		if !seenOrder[evID] {
			seenOrder[evID] = true
			order = append(order, evID)
			execCounts[evID] = cp.Cell.ExecutionCount()
			persistentIDs[evID] = cp.Cell.PersistentID()
		}
		start := loc.FirstLine
		for l := range prog.CellToLineMap[evID] {
			if l < start {
				start = l
			}
		}
		byCell[evID] = append(byCell[evID], loc.FirstLine-start+1)
	}

	result := SlicedExecution{ExecutionTime: execTime}
	for _, evID := range order {
		lines := byCell[evID]
		sort.Ints(lines)
		result.CellSlices = append(result.CellSlices, CellSlice{
			EventID:        evID,
			PersistentID:   persistentIDs[evID],
			ExecutionCount: execCounts[evID],
			Lines:          lines,
		})
	}
	return result
}
