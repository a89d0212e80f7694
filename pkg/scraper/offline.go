package scraper

import (
	"context"

	"odysseyscraper/internal/worker"
	"odysseyscraper/pkg/cachegate"
	"odysseyscraper/pkg/extract"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/storage"
)

type fileResult struct {
	path     string
	read     bool
	decision cachegate.Decision
	err      error
}

// Reprocess runs archived case pages through the extractor and the cache
// gate into store. Capture date and source id come from each file name.
// Pages not started before ctx is done are left alone.
func Reprocess(ctx context.Context, store storage.Store, label string, files []string, workers int, log logger.Logger) *RunSummary {
	log = logger.OrDefault(log).WithField("component", "reprocess")
	extractor := extract.New(log)
	gate := cachegate.New(store, log)

	summary := newRunSummary(label, models.DateRange{})
	defer summary.finish()

	results := worker.Map(ctx, "reprocess", workers, files, func(ctx context.Context, _ int, path string) fileResult {
		res := fileResult{path: path}
		page, err := storage.ReadArchived(path)
		if err != nil {
			res.err = err
			return res
		}
		res.read = true
		record, err := extractor.Extract(page)
		if err != nil {
			res.err = err
			return res
		}
		res.decision, res.err = gate.Offer(context.WithoutCancel(ctx), record)
		return res
	}, log)

	for _, res := range results {
		summary.References++
		if res.read {
			summary.Fetched++
		}
		if res.err != nil {
			log.WithError(res.err).WithField("file", res.path).Warn("archived page not stored")
			summary.RecordFailure(res.err)
			continue
		}
		switch res.decision {
		case cachegate.Persist:
			summary.Stored++
		case cachegate.Unchanged:
			summary.Unchanged++
		}
	}
	return summary
}
