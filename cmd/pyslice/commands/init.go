package commands

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"pyslice/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a pyslice configuration file interactively",
	Long: `Guides you through setting up a project-level .pyslice/config.yaml:
where to find extra library spec bundles, where to persist the def/use
cache, and the default log level and format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		return runInit(global)
	},
}

func runInit(global bool) error {
	cfg := config.DefaultConfig()

	var logLevel string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Library spec directory").
				Description("Extra *.json library spec bundles, beyond the built-in ones (leave blank for none)").
				Value(&cfg.SpecDir),
			huh.NewInput().
				Title("Def/use cache path").
				Placeholder(cfg.CachePath).
				Value(&cfg.CachePath),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	logLevel = cfg.LogLevel
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Rewrite IPython magics").
				Description("Neutralize %magic and !shell lines before parsing").
				Value(&cfg.RewriteMagics),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("debug", "debug"),
					huh.NewOption("info", "info"),
					huh.NewOption("warn", "warn"),
					huh.NewOption("error", "error"),
				).
				Value(&logLevel),
			huh.NewSelect[string]().
				Title("Log format").
				Options(
					huh.NewOption("text", string(config.LogFormatText)),
					huh.NewOption("json", string(config.LogFormatJSON)),
				).
				Value((*string)(&cfg.LogFormat)),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.LogLevel = logLevel

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := configSavePath(global)
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("wrote configuration to %s\n", path)
	return nil
}

func configSavePath(global bool) string {
	if global {
		return config.GlobalConfigFilePath()
	}
	return config.ProjectConfigFilePath()
}

func init() {
	initCmd.Flags().Bool("global", false, "write to the user config (~/.pyslice/config.yaml) instead of the project one")
	RootCmd.AddCommand(initCmd)
}
