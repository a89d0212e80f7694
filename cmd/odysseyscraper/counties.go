package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"odysseyscraper/pkg/ui"
)

var countiesProfiles string

var countiesCmd = &cobra.Command{
	Use:   "counties",
	Short: "List the known county portals",
	Long: `List every county portal profile: the built-in registry plus the profiles
file given with --profiles or portal.profiles_file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := make(map[string]interface{})
		if cmd.Flags().Changed("profiles") {
			flags["profiles"] = countiesProfiles
		}
		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}
		registry, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(ui.Writer())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"County", "Portal", "Version", "Location", "Notes"})
		for _, p := range registry.Profiles() {
			t.AppendRow(table.Row{p.County, p.BaseURL, p.Version.String(), p.Location, p.Notes})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countiesCmd)
	countiesCmd.Flags().StringVar(&countiesProfiles, "profiles", "", "YAML file with extra or overriding county portal profiles")
}
