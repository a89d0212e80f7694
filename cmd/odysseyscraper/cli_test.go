package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odysseyscraper/pkg/config"
)

func TestScrapeFlagsOnlyChanged(t *testing.T) {
	cmd := scrapeCmd
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	})

	require.NoError(t, cmd.Flags().Parse([]string{
		"-C", "Hays", "-s", "2024-07-01", "-j", "Boyer, Bruce", "-j", "Henry, Jack", "-w", "500", "--workers", "3",
	}))

	flags := scrapeFlags(cmd)
	assert.Equal(t, "Hays", flags["county"])
	assert.Equal(t, "2024-07-01", flags["start"])
	assert.Equal(t, []string{"Boyer, Bruce", "Henry, Jack"}, flags["officers"])
	assert.Equal(t, 500, flags["wait"])
	assert.Equal(t, 3, flags["workers"])
	assert.NotContains(t, flags, "end")
	assert.NotContains(t, flags, "overwrite")
	assert.NotContains(t, flags, "case-workers")

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit.MinDelay)
	assert.Equal(t, 4, cfg.Workers.Cases)
}

func TestExtractFlagsDoNotTouchScrape(t *testing.T) {
	cmd := extractCmd
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			f.Changed = false
			_ = f.Value.Set(f.DefValue)
		})
	})

	require.NoError(t, cmd.Flags().Parse([]string{"-C", "Travis", "--store", "sqlite", "--workers", "2"}))

	flags := extractFlags(cmd)
	assert.Equal(t, map[string]interface{}{"county": "Travis", "store": "sqlite"}, flags)
	assert.Equal(t, 2, extractWorkers)

	assert.Equal(t, 4, caseWorkers, "scrape keeps its own --case-workers default")
	assert.False(t, scrapeCmd.Flags().Changed("county"))
}

func TestExpandPages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"07-02-2024 2.html", "07-01-2024 1.html", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("<html></html>"), 0644))
	}
	single := filepath.Join(t.TempDir(), "07-03-2024 3.html")
	require.NoError(t, os.WriteFile(single, []byte("<html></html>"), 0644))

	files, err := expandPages([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "07-01-2024 1.html"),
		filepath.Join(dir, "07-02-2024 2.html"),
		single,
	}, files)

	_, err = expandPages([]string{filepath.Join(dir, "missing.html")})
	assert.Error(t, err)
}

func TestCheckConfig(t *testing.T) {
	now := time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)

	cfg := config.DefaultConfig()
	cfg.Storage.Directory = t.TempDir()
	problems, warnings := checkConfig(cfg, now)
	assert.Empty(t, problems)
	assert.Empty(t, warnings)

	cfg.Portal.County = "atlantis"
	cfg.Search.StartDate = "2024-08-01"
	cfg.Search.EndDate = "2024-07-01"
	cfg.RateLimit.MinDelay = 10 * time.Millisecond
	problems, warnings = checkConfig(cfg, now)
	assert.Len(t, problems, 2)
	assert.Len(t, warnings, 1)
}
