package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/models"
)

// FileStore keeps one JSON file per case, named <code>.json
type FileStore struct {
	dir   string
	codes map[string]bool
	mu    sync.RWMutex
}

// NewFileStore creates dir if needed and indexes the records already in it
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create case data directory: %w", err)
	}

	s := &FileStore{
		dir:   dir,
		codes: make(map[string]bool),
	}
	if err := s.scanExisting(); err != nil {
		return nil, fmt.Errorf("failed to scan existing records: %w", err)
	}
	return s, nil
}

func (s *FileStore) scanExisting() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			s.codes[strings.TrimSuffix(entry.Name(), ".json")] = true
		}
	}
	return nil
}

// fileName maps a case code to its file, keeping it inside the directory
func (s *FileStore) fileName(code string) string {
	safe := strings.NewReplacer("/", "_", `\`, "_").Replace(code)
	return filepath.Join(s.dir, safe+".json")
}

// Load reads the record for code
func (s *FileStore) Load(ctx context.Context, code string) (*models.StructuredCase, bool, error) {
	data, err := os.ReadFile(s.fileName(code))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &errs.StorageError{Code: code, Op: "load", Err: err}
	}

	var c models.StructuredCase
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, &errs.StorageError{Code: code, Op: "load", Err: fmt.Errorf("corrupt record: %w", err)}
	}
	return &c, true, nil
}

// Save writes the record through a temporary file and an atomic rename
func (s *FileStore) Save(ctx context.Context, c *models.StructuredCase) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return &errs.StorageError{Code: c.Code, Op: "save", Err: err}
	}

	filename := s.fileName(c.Code)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return &errs.StorageError{Code: c.Code, Op: "save", Err: fmt.Errorf("failed to create temporary file: %w", err)}
	}
	tempFile := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tempFile)
		return &errs.StorageError{Code: c.Code, Op: "save", Err: fmt.Errorf("failed to write record: %w", err)}
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return &errs.StorageError{Code: c.Code, Op: "save", Err: fmt.Errorf("failed to close file: %w", closeErr)}
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return &errs.StorageError{Code: c.Code, Op: "save", Err: fmt.Errorf("failed to rename temporary file: %w", err)}
	}

	s.mu.Lock()
	s.codes[c.Code] = true
	s.mu.Unlock()
	return nil
}

// Dir returns the record directory
func (s *FileStore) Dir() string { return s.dir }

// Count returns the number of stored records
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}

func (s *FileStore) Close() error { return nil }
