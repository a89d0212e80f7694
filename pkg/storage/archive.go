package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	"odysseyscraper/pkg/models"
)

// Archive keeps the raw HTML of fetched case pages as
// "<MM-DD-YYYY> <source id>.html" so they can be extracted again offline.
type Archive struct {
	dir string

	mu      sync.Mutex
	digests map[string][blake2b.Size256]byte
}

// NewArchive creates dir if needed
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{dir: dir, digests: make(map[string][blake2b.Size256]byte)}, nil
}

// Dir returns the archive directory
func (a *Archive) Dir() string { return a.dir }

// ArchiveName returns the file name a page is archived under
func ArchiveName(captured models.CaptureDate, sourceID string) string {
	return fmt.Sprintf("%s %s.html", captured.String(), sourceID)
}

// ParseArchiveName recovers the capture date and source id from an archive file name
func ParseArchiveName(name string) (models.CaptureDate, string, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	date, id, ok := strings.Cut(base, " ")
	if !ok || id == "" {
		return models.CaptureDate{}, "", fmt.Errorf("archive name %q is not \"<MM-DD-YYYY> <id>.html\"", name)
	}
	captured, err := models.ParseCaptureDate(date)
	if err != nil {
		return models.CaptureDate{}, "", err
	}
	return captured, id, nil
}

// Save writes page to the archive. A file already holding the same
// content is left alone and written is false.
func (a *Archive) Save(page *models.RawCasePage) (path string, written bool, err error) {
	path = filepath.Join(a.dir, ArchiveName(page.CaptureDate, page.SourceID))
	digest := blake2b.Sum256(page.HTML)

	a.mu.Lock()
	defer a.mu.Unlock()

	known, ok := a.digests[path]
	if !ok {
		if existing, err := os.ReadFile(path); err == nil {
			known, ok = blake2b.Sum256(existing), true
		}
	}
	if ok && known == digest {
		a.digests[path] = digest
		return path, false, nil
	}

	tmp, err := os.CreateTemp(a.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", false, fmt.Errorf("failed to create temporary file: %w", err)
	}
	_, err = tmp.Write(page.HTML)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", false, fmt.Errorf("failed to write case page: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", false, fmt.Errorf("failed to rename case page: %w", err)
	}

	a.digests[path] = digest
	return path, true, nil
}

// ReadArchived loads an archived page, taking its capture date and source
// id from the file name
func ReadArchived(path string) (*models.RawCasePage, error) {
	captured, id, err := ParseArchiveName(path)
	if err != nil {
		return nil, err
	}
	html, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived page: %w", err)
	}
	return &models.RawCasePage{
		SourceID:    id,
		CaptureDate: captured,
		HTML:        html,
	}, nil
}
