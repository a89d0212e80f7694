package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"odysseyscraper/pkg/config"
	"odysseyscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage odysseyscraper configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (ODYSSEY_*, also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with every available option.

The file is created as '.odysseyscraper.yaml' in the current directory
unless a different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration file together with the environment.

This command checks:
  - YAML syntax
  - Value ranges
  - The county against the portal registry
  - The date range
  - Storage and log paths`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# odysseyscraper configuration
#
# Every option can also be set with an ODYSSEY_* environment variable,
# for example ODYSSEY_COUNTY, ODYSSEY_START_DATE or ODYSSEY_OFFICERS
# (officer names separated by semicolons).

portal:
  # County portal, see 'odysseyscraper counties'
  county: hays
  # Court location on pre-2017 portals
  location: All Courts
  # Extra or overriding county profiles (optional)
  profiles_file: ""

search:
  # YYYY-MM-DD; empty means lookback_days before today
  start_date: ""
  # YYYY-MM-DD; empty means today
  end_date: ""
  lookback_days: 30
  # Judicial officers as listed by the portal; empty means every officer
  officers: []
  # Refetch cases that are already stored
  overwrite: false
  # Portal row limit per search, 0 if unknown
  record_cap: 0

rate_limit:
  # Minimum time between any two requests, across all workers
  min_delay: 200ms
  # Raise min_delay to the robots.txt Crawl-delay when it is larger
  respect_robots: true

retry:
  # Attempts per request and per page content check
  max_attempts: 3
  # exponential or constant
  strategy: exponential
  base_delay: 1s
  max_delay: 30s

workers:
  # Concurrent portal sessions, each with its own cookies
  sessions: 2
  # Concurrent case page fetches
  cases: 4

http:
  timeout: 30s
  # user_agent: "Mozilla/5.0 ..."

storage:
  # json (one file per case) or sqlite
  backend: json
  directory: ./data
  # Keep the raw case pages under <directory>/<county>/case_html
  archive_html: true
  # How long loaded records are memoized
  cache_ttl: 10m

logging:
  # debug, info, warn, error
  level: info
  # console, json, or empty to pick by terminal
  format: ""
  # Also log to this file (optional)
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".odysseyscraper.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		return fmt.Errorf("refusing to overwrite %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	ui.PrintInfo("Next", "edit it, then run 'odysseyscraper config validate'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	w := ui.Writer()
	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(w)
	fmt.Fprint(w, string(data))

	fmt.Fprintln(w, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(w, "1. Command line flags")
	fmt.Fprintln(w, "2. Environment variables (ODYSSEY_*)")
	if configFile != "" {
		fmt.Fprintf(w, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(w, "3. Configuration file: (searched in the default locations)")
	}
	fmt.Fprintln(w, "4. Default values")
	return nil
}

// checkConfig runs the checks config.Validate cannot do on its own
func checkConfig(cfg *config.Config, now time.Time) (problems, warnings []string) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		problems = append(problems, err.Error())
	} else if _, err := registry.Lookup(cfg.Portal.County); err != nil {
		problems = append(problems, err.Error())
	}

	if start, end, err := cfg.DateRange(now); err != nil {
		problems = append(problems, err.Error())
	} else if end.After(now) {
		warnings = append(warnings, fmt.Sprintf("end date %s is in the future", end.Format(config.DateLayout)))
	} else if start.Before(now.AddDate(-10, 0, 0)) {
		warnings = append(warnings, "date range starts more than ten years ago")
	}

	if err := os.MkdirAll(cfg.Storage.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create storage directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if cfg.RateLimit.MinDelay < 100*time.Millisecond {
		warnings = append(warnings, fmt.Sprintf("min_delay %s is aggressive for a public portal", cfg.RateLimit.MinDelay))
	}
	return problems, warnings
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		return err
	}

	problems, warnings := checkConfig(cfg, time.Now())
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			ui.PrintError("  - " + p)
		}
		return errors.New("invalid configuration")
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			ui.PrintWarning("  - " + w)
		}
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("County", cfg.Portal.County)
	ui.PrintInfo("Storage", fmt.Sprintf("%s in %s", cfg.Storage.Backend, cfg.Storage.Directory))
	ui.PrintInfo("Workers", fmt.Sprintf("%d sessions, %d case fetchers", cfg.Workers.Sessions, cfg.Workers.Cases))
	ui.PrintInfo("Min delay", cfg.RateLimit.MinDelay.String())
	ui.PrintInfo("Max attempts", fmt.Sprint(cfg.Retry.MaxAttempts))
	ui.PrintInfo("Log level", cfg.Logging.Level)
	return nil
}
