package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/scraper"
	"odysseyscraper/pkg/storage"
	"odysseyscraper/pkg/ui"
)

var (
	// Extract command flags
	extractCounty  string
	extractStore   string
	extractOutput  string
	extractWorkers int
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.html|dir>...",
	Short: "Extract archived case pages into the case store",
	Long: `Run saved case detail pages through the extractor and store the records.

Each file must be named "<MM-DD-YYYY> <id>.html", the name scrape archives
pages under; the capture date and portal id come from the name. A directory
argument means every .html file in it. Records captured earlier than the
stored record are skipped, as during a scrape.`,
	Example: `  # Re-extract everything archived for Hays County
  odysseyscraper extract ./data/hays/case_html

  # One page into a SQLite store
  odysseyscraper extract --store sqlite "./data/hays/case_html/07-02-2024 12947592.html"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	f := extractCmd.Flags()
	f.StringVarP(&extractCounty, "county", "C", "", "county whose store receives the records (default hays)")
	f.StringVar(&extractStore, "store", "", "case store backend: json or sqlite")
	f.StringVar(&extractOutput, "output", "", "data directory (default ./data)")
	f.IntVar(&extractWorkers, "workers", 4, "pages extracted concurrently")
}

// extractFlags returns the config overrides given on the extract command line
func extractFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	for name, v := range map[string]string{"county": extractCounty, "store": extractStore, "output": extractOutput} {
		if cmd.Flags().Changed(name) {
			flags[name] = v
		}
	}
	return flags
}

// expandPages replaces directory arguments with the .html files they hold
func expandPages(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.html"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(extractFlags(cmd))
	if err != nil {
		return err
	}

	files, err := expandPages(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .html files in %v", args)
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	profile, err := registry.Lookup(cfg.Portal.County)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage, profile.County)
	if err != nil {
		return err
	}
	defer store.Close()

	ui.PrintInfo("Pages", fmt.Sprint(len(files)))
	ui.PrintInfo("Store", storage.CountyDir(cfg.Storage, profile.County))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := scraper.Reprocess(ctx, store, profile.County, files, extractWorkers, logger.GetLogger())
	summary.Render(ui.Writer())

	if n := summary.Failed(); n > 0 {
		ui.PrintWarning("Some pages could not be extracted", n)
		return nil
	}
	ui.PrintSuccess("Extraction completed")
	return nil
}
