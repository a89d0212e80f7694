package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"odysseyscraper/pkg/config"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/portal"
	"odysseyscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "odysseyscraper",
	Short: "Scrape criminal case records from Odyssey court portals",
	Long: `odysseyscraper walks a county's Tyler Technologies Odyssey public portal,
searches the court calendar of every judicial officer for every day in a
date range, and stores each listed case as a structured JSON record.

Requests are spaced by a global minimum delay shared by every worker.
Pages that fail their content check are refetched, and stored records are
only replaced by records captured on a later day.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet {
			ui.SetQuietMode(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .odysseyscraper.yaml or ~/.config/odysseyscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.SetVersionTemplate(`odysseyscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with flags applied and initializes
// the global logger from it
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	case quiet:
		flags["log-level"] = "error"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// loadRegistry returns the built-in county registry merged with the
// configured profiles file
func loadRegistry(cfg *config.Config) (*portal.Registry, error) {
	registry, err := portal.LoadRegistry(cfg.Portal.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load portal profiles: %w", err)
	}
	return registry, nil
}
