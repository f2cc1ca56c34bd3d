package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var dependentsCmd = &cobra.Command{
	Use:   "dependents --log <file> --event <id> [--json]",
	Short: "Find cells transitively dependent on a cell's execution",
	Long: `Forward-slices from the named cell execution through the rest of
the log and reports every distinct cell (by persistentId) whose value
could have been affected, in log order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logPath, _ := cmd.Flags().GetString("log")
		eng, _, err := loadEngine(logPath)
		if err != nil {
			return err
		}

		eventID, _ := cmd.Flags().GetString("event")
		if eventID == "" {
			return fmt.Errorf("--event is required")
		}
		if eng.Builder.GetCellProgram(eventID) == nil {
			return cellNotFoundError(eventID)
		}

		dependents := eng.GetDependentCells(eventID)

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			type depOut struct {
				EventID      string `json:"eventId"`
				PersistentID string `json:"persistentId"`
			}
			var out []depOut
			for _, c := range dependents {
				out = append(out, depOut{EventID: c.ExecutionEventID(), PersistentID: c.PersistentID()})
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		if len(dependents) == 0 {
			fmt.Println("no dependent cells")
			return nil
		}
		for _, c := range dependents {
			fmt.Printf("%s (persistentId=%s)\n", c.ExecutionEventID(), c.PersistentID())
		}
		return nil
	},
}

func init() {
	dependentsCmd.Flags().String("event", "", "executionEventId of the cell to query")
	dependentsCmd.Flags().BoolP("json", "j", false, "output as JSON")
	_ = dependentsCmd.MarkFlagRequired("event")
}
