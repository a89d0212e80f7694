package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/scraper"
	"odysseyscraper/pkg/ui"
)

var (
	// Scrape command flags
	county       string
	location     string
	profilesFile string
	startDate    string
	endDate      string
	officers     []string
	overwrite    bool
	waitMillis   int
	maxAttempts  int
	workers      int
	caseWorkers  int
	recordCap    int
	storeBackend string
	outputDir    string
	resumeRun    bool
	forceRestart bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape a county's court calendar into case records",
	Long: `Search the court calendar of every judicial officer for every day in the
date range and store each listed case.

Cases already in the store are skipped unless --overwrite is given. A run
that stops early leaves a checkpoint; continue it with --resume or discard
it with --force-restart.`,
	Example: `  # Last 30 days of Hays County, every officer
  odysseyscraper scrape

  # One officer for one month, half a second between requests
  odysseyscraper scrape -C hays -s 2024-07-01 -e 2024-07-31 -j "Boyer, Bruce" -w 500

  # Refetch cases already stored, into SQLite
  odysseyscraper scrape --overwrite --store sqlite --output ./records

  # Continue an interrupted run
  odysseyscraper scrape -s 2024-07-01 -e 2024-07-31 --resume`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	f := scrapeCmd.Flags()
	f.StringVarP(&county, "county", "C", "", "county portal to scrape (default hays)")
	f.StringVarP(&location, "location", "l", "", "court location on pre-2017 portals (default \"All Courts\")")
	f.StringVar(&profilesFile, "profiles", "", "YAML file with extra or overriding county portal profiles")
	f.StringVarP(&startDate, "start", "s", "", "first day to search, YYYY-MM-DD (default 30 days ago)")
	f.StringVarP(&endDate, "end", "e", "", "last day to search, YYYY-MM-DD (default today)")
	f.StringArrayVarP(&officers, "officer", "j", nil, "judicial officer to search, repeatable (default every officer)")
	f.BoolVarP(&overwrite, "overwrite", "o", false, "refetch cases that are already stored")
	f.IntVarP(&waitMillis, "wait", "w", 200, "minimum milliseconds between requests")
	f.IntVar(&maxAttempts, "max-attempts", 3, "attempts per request and per page check")
	f.IntVar(&workers, "workers", 2, "concurrent portal sessions")
	f.IntVar(&caseWorkers, "case-workers", 4, "concurrent case page fetches")
	f.IntVar(&recordCap, "record-cap", 0, "portal row limit per search; results at the limit are reported as truncated")
	f.StringVar(&storeBackend, "store", "", "case store backend: json or sqlite")
	f.StringVar(&outputDir, "output", "", "data directory (default ./data)")
	f.BoolVar(&resumeRun, "resume", false, "resume from the last checkpoint")
	f.BoolVar(&forceRestart, "force-restart", false, "discard an existing checkpoint and start over")
}

// scrapeFlags returns only the flags given on the command line, so they
// override the file and environment without masking them
func scrapeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	strs := map[string]string{
		"county":   county,
		"location": location,
		"profiles": profilesFile,
		"start":    startDate,
		"end":      endDate,
		"store":    storeBackend,
		"output":   outputDir,
	}
	for name, v := range strs {
		if changed(name) {
			flags[name] = v
		}
	}
	if changed("officer") {
		flags["officers"] = officers
	}
	if changed("overwrite") {
		flags["overwrite"] = overwrite
	}
	if changed("wait") {
		flags["wait"] = waitMillis
	}

	ints := map[string]int{
		"max-attempts": maxAttempts,
		"workers":      workers,
		"case-workers": caseWorkers,
		"record-cap":   recordCap,
	}
	for name, v := range ints {
		if changed(name) {
			flags[name] = v
		}
	}
	return flags
}

func runScrape(cmd *cobra.Command, args []string) error {
	if resumeRun && forceRestart {
		return errors.New("--resume and --force-restart cannot be used together")
	}

	cfg, err := loadConfig(scrapeFlags(cmd))
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	rc, err := scraper.NewRunConfig(cfg, registry, time.Now())
	if err != nil {
		return err
	}
	rc.Resume = resumeRun
	rc.ForceRestart = forceRestart

	log := logger.GetLogger()
	ui.PrintInfo("County", fmt.Sprintf("%s (%s)", rc.County(), rc.Profile.BaseURL))
	ui.PrintInfo("Dates", rc.DateRange.String())
	if len(rc.OfficerFilter) > 0 {
		ui.PrintInfo("Officers", fmt.Sprint(rc.OfficerFilter))
	}

	s, err := scraper.New(rc, log)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := s.Run(ctx)
	if summary != nil {
		summary.Render(ui.Writer())
	}

	switch {
	case errors.Is(err, scraper.ErrCheckpointExists):
		ui.PrintWarning("An unfinished run exists for these dates")
		ui.PrintInfo("Continue it", "odysseyscraper scrape --resume")
		ui.PrintInfo("Start over", "odysseyscraper scrape --force-restart")
		return err
	case errors.Is(err, errs.ErrCanceled):
		ui.PrintWarning("Run interrupted; continue it with --resume")
		return err
	case err != nil:
		log.WithError(err).Error("Scrape failed")
		return err
	}

	if n := summary.Failed(); n > 0 {
		ui.PrintWarning("Scrape finished with failures", n)
		return nil
	}
	ui.PrintSuccess("Scrape completed")
	return nil
}
