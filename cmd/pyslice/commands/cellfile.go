// Package commands provides the CLI commands for the pyslice tool.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"pyslice/pkg/notebook"
)

// cellRecord is the on-disk JSON form of one logged cell execution. A
// log file is a JSON array of these, in execution order.
type cellRecord struct {
	Text             string `json:"text"`
	ExecutionCount   int    `json:"executionCount"`
	ExecutionEventID string `json:"executionEventId"`
	PersistentID     string `json:"persistentId"`
	HasError         bool   `json:"hasError"`
}

// fileCell adapts a cellRecord to notebook.Cell.
type fileCell struct {
	rec cellRecord
}

func (c fileCell) Text() string             { return c.rec.Text }
func (c fileCell) ExecutionCount() int      { return c.rec.ExecutionCount }
func (c fileCell) ExecutionEventID() string { return c.rec.ExecutionEventID }
func (c fileCell) PersistentID() string     { return c.rec.PersistentID }
func (c fileCell) HasError() bool           { return c.rec.HasError }
func (c fileCell) DeepCopy() notebook.Cell  { return fileCell{rec: c.rec} }

// loadLog reads a JSON array of cellRecord from path and returns them
// as notebook.Cell values in file order (assumed to be execution order).
func loadLog(path string) ([]notebook.Cell, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log file %s: %w", path, err)
	}

	var recs []cellRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parsing log file %s: %w", path, err)
	}

	cells := make([]notebook.Cell, 0, len(recs))
	for _, r := range recs {
		if r.ExecutionEventID == "" {
			r.ExecutionEventID = uuid.NewString()
		}
		if r.PersistentID == "" {
			r.PersistentID = uuid.NewString()
		}
		cells = append(cells, fileCell{rec: r})
	}
	return cells, nil
}

func cellNotFoundError(eventID string) error {
	return fmt.Errorf("no cell with executionEventId %q found in log", eventID)
}
