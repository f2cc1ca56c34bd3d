package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pyslice/pkg/execlog"
)

var gatherCmd = &cobra.Command{
	Use:   "gather --log <file> --cell <persistentId> [--latest] [--json]",
	Short: "Reconstruct the minimal cell set feeding a cell's value",
	Long: `Replays every logged execution of a cell (identified by its stable
persistentId), backward-slicing the virtual program up to each one, and
prints the merged minimal cell set that produced its current state.
With --latest, only the most recent execution is sliced.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logPath, _ := cmd.Flags().GetString("log")
		eng, _, err := loadEngine(logPath)
		if err != nil {
			return err
		}

		persistentID, _ := cmd.Flags().GetString("cell")
		if persistentID == "" {
			return fmt.Errorf("--cell is required")
		}
		latestOnly, _ := cmd.Flags().GetBool("latest")

		var result execlog.SlicedExecution
		if latestOnly {
			exec, ok := eng.SliceLatestExecution(persistentID, nil)
			if !ok {
				return fmt.Errorf("no execution of cell %q found in log", persistentID)
			}
			result = exec
		} else {
			all := eng.SlicedExecutionsFor(persistentID, nil)
			if len(all) == 0 {
				return fmt.Errorf("no execution of cell %q found in log", persistentID)
			}
			result = all[0].Merge(all[1:]...)
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		if len(result.CellSlices) == 0 {
			fmt.Println("no cells gathered")
			return nil
		}
		for _, cs := range result.CellSlices {
			fmt.Printf("%s (execCount=%d): %s\n", cs.EventID, cs.ExecutionCount, formatLineRanges(cs.Lines))
		}
		return nil
	},
}

func init() {
	gatherCmd.Flags().String("cell", "", "persistentId of the cell to gather context for")
	gatherCmd.Flags().Bool("latest", false, "only slice the most recent execution")
	gatherCmd.Flags().BoolP("json", "j", false, "output as JSON")
	_ = gatherCmd.MarkFlagRequired("cell")
}
