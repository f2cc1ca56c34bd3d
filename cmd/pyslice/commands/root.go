package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pyslice/internal/config"
	"pyslice/internal/log"
	"pyslice/pkg/execlog"
	"pyslice/pkg/notebook"
	"pyslice/specs"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "pyslice",
	Short: "pyslice - dataflow slicing for notebook execution logs",
	Long: `pyslice analyzes a log of executed notebook cells and answers
dataflow questions about it.

Commands:
  init        Create a .pyslice/config.yaml interactively
  slice       Backward/forward slice a single logged execution
  dependents  Find cells transitively dependent on a cell's execution
  gather      Reconstruct the minimal cell set feeding a cell's execution
  log         Inspect a log file without slicing it

Use "pyslice [command] --help" for more information about a command.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("log", "", "path to a JSON execution log file (required)")
	RootCmd.AddCommand(sliceCmd)
	RootCmd.AddCommand(dependentsCmd)
	RootCmd.AddCommand(gatherCmd)
	RootCmd.AddCommand(logCmd)
}

// loadEngine loads the configured logger/spec settings and replays
// logPath's cells into a fresh execlog.Log, returning both the engine
// and the cell slice in log order.
func loadEngine(logPath string) (*execlog.Log, []notebook.Cell, error) {
	if logPath == "" {
		return nil, nil, fmt.Errorf("--log is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.Default()
	logger.SetLevel(levelFromString(cfg.EffectiveLogLevel()))
	logger.SetJSONOutput(cfg.LogFormat == config.LogFormatJSON)

	library, err := specs.Load(cfg.SpecDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading library specs: %w", err)
	}

	cells, err := loadLog(logPath)
	if err != nil {
		return nil, nil, err
	}

	eng := execlog.New(library, logger)
	for _, c := range cells {
		eng.AddExecutionToLog(execlog.CellExecution{Cell: c})
	}

	return eng, cells, nil
}

func levelFromString(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
