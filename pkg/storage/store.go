package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"odysseyscraper/pkg/config"
	"odysseyscraper/pkg/models"
)

// Store persists StructuredCase records keyed by case code. Writes replace
// the whole record.
type Store interface {
	// Load returns the stored record for code; ok is false when there is none
	Load(ctx context.Context, code string) (c *models.StructuredCase, ok bool, err error)
	// Save replaces the record stored under c.Code
	Save(ctx context.Context, c *models.StructuredCase) error
	Close() error
}

// Layout under the output directory
const (
	CaseDataDir = "case_data"
	CaseHTMLDir = "case_html"
	SQLiteFile  = "cases.db"
)

// CountyDir returns the directory holding one county's data
func CountyDir(cfg config.StorageConfig, county string) string {
	return filepath.Join(cfg.Directory, county)
}

// Open creates the configured backend for county. A positive CacheTTL puts
// a read-through cache in front of it.
func Open(cfg config.StorageConfig, county string) (Store, error) {
	dir := CountyDir(cfg, county)

	var (
		store Store
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "json":
		store, err = NewFileStore(filepath.Join(dir, CaseDataDir))
	case "sqlite":
		store, err = OpenSQLite(filepath.Join(dir, SQLiteFile))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL > 0 {
		store = NewCachedStore(store, cfg.CacheTTL)
	}
	return store, nil
}

// OpenArchive creates the raw case page archive for county
func OpenArchive(cfg config.StorageConfig, county string) (*Archive, error) {
	return NewArchive(filepath.Join(CountyDir(cfg, county), CaseHTMLDir))
}
