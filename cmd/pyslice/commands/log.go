package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log --log <file> [--json]",
	Short: "Inspect a log file without slicing it",
	Long: `Parses every cell in the log file and reports whether it parsed
and analyzed cleanly, without running any slice query.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logPath, _ := cmd.Flags().GetString("log")
		eng, cells, err := loadEngine(logPath)
		if err != nil {
			return err
		}

		type cellStatus struct {
			EventID      string `json:"eventId"`
			PersistentID string `json:"persistentId"`
			Count        int    `json:"executionCount"`
			HasError     bool   `json:"hasError"`
		}

		statuses := make([]cellStatus, 0, len(cells))
		for _, c := range cells {
			cp := eng.Builder.GetCellProgram(c.ExecutionEventID())
			hasError := cp == nil || cp.HasError
			statuses = append(statuses, cellStatus{
				EventID:      c.ExecutionEventID(),
				PersistentID: c.PersistentID(),
				Count:        c.ExecutionCount(),
				HasError:     hasError,
			})
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			data, err := json.MarshalIndent(statuses, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		for _, s := range statuses {
			flag := "ok"
			if s.HasError {
				flag = "error"
			}
			fmt.Printf("%-20s persistentId=%-20s count=%-4d %s\n", s.EventID, s.PersistentID, s.Count, flag)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().BoolP("json", "j", false, "output as JSON")
}
