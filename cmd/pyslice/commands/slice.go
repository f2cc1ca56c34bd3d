package commands

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"pyslice/pkg/notebook"
	"pyslice/pkg/pyast"
	"pyslice/pkg/slicer"
)

var sliceCmd = &cobra.Command{
	Use:   "slice --log <file> --event <id> --line N [--forward] [--json]",
	Short: "Backward or forward slice a single logged cell execution",
	Long: `Builds the virtual program up to (backward) or from (forward) the
named cell execution, slices it from the given line, and prints the
accepted lines grouped by cell.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logPath, _ := cmd.Flags().GetString("log")
		eng, cells, err := loadEngine(logPath)
		if err != nil {
			return err
		}

		eventID, _ := cmd.Flags().GetString("event")
		if eventID == "" {
			return fmt.Errorf("--event is required")
		}

		target := eng.Builder.GetCellProgram(eventID)
		if target == nil {
			return cellNotFoundError(eventID)
		}

		forward, _ := cmd.Flags().GetBool("forward")
		lineNum, _ := cmd.Flags().GetInt("line")

		var prog *notebook.Program
		if forward {
			prog = eng.Builder.BuildFrom(eventID, cells)
		} else {
			prog = eng.Builder.BuildTo(eventID, cells)
		}
		if prog == nil {
			return fmt.Errorf("could not assemble a program around %q", eventID)
		}

		lines := prog.CellToLineMap[eventID]
		minLine, maxLine := 0, 0
		for l := range lines {
			if minLine == 0 || l < minLine {
				minLine = l
			}
			if l > maxLine {
				maxLine = l
			}
		}
		seedFirst, seedLast := minLine, maxLine
		if lineNum > 0 {
			seedFirst = minLine + lineNum - 1
			seedLast = seedFirst
		}
		seed := pyast.Location{FirstLine: seedFirst, FirstColumn: 1, LastLine: seedLast, LastColumn: 1 << 20, Path: eventID}

		direction := slicer.Backward
		if forward {
			direction = slicer.Forward
		}
		accepted := slicer.Slice(prog.Statements, []pyast.Location{seed}, eng.Builder.Analyzer, direction)

		byCell := map[string][]int{}
		var order []string
		for _, loc := range accepted.Items() {
			cp := prog.LineToCellMap[loc.FirstLine]
			if cp == nil {
				continue
			}
			id := cp.Cell.ExecutionEventID()
			if byCell[id] == nil {
				order = append(order, id)
			}
			byCell[id] = append(byCell[id], loc.FirstLine)
		}
		slices.SortFunc(order, func(a, b string) int {
			return indexOfEvent(cells, a) - indexOfEvent(cells, b)
		})

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			type cellOut struct {
				EventID string `json:"eventId"`
				Lines   []int  `json:"lines"`
			}
			var out []cellOut
			for _, id := range order {
				lns := byCell[id]
				slices.Sort(lns)
				out = append(out, cellOut{EventID: id, Lines: lns})
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		for _, id := range order {
			lns := byCell[id]
			slices.Sort(lns)
			fmt.Printf("%s: %s\n", id, formatLineRanges(lns))
		}
		return nil
	},
}

func indexOfEvent(cells []notebook.Cell, id string) int {
	for i, c := range cells {
		if c.ExecutionEventID() == id {
			return i
		}
	}
	return len(cells)
}

func formatLineRanges(lines []int) string {
	if len(lines) == 0 {
		return "none"
	}
	var ranges []string
	start, end := lines[0], lines[0]
	for i := 1; i < len(lines); i++ {
		if lines[i] == end+1 {
			end = lines[i]
			continue
		}
		ranges = append(ranges, rangeStr(start, end))
		start, end = lines[i], lines[i]
	}
	ranges = append(ranges, rangeStr(start, end))
	return strings.Join(ranges, ", ")
}

func rangeStr(start, end int) string {
	if start == end {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

func init() {
	sliceCmd.Flags().String("event", "", "executionEventId of the cell to slice")
	sliceCmd.Flags().IntP("line", "l", 0, "line within the target cell to seed from (1-based, default: whole cell)")
	sliceCmd.Flags().BoolP("forward", "f", false, "forward slice (default: backward)")
	sliceCmd.Flags().BoolP("json", "j", false, "output as JSON")
	_ = sliceCmd.MarkFlagRequired("event")
}
