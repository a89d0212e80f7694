package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS cases (
	code         TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL,
	capture_date TEXT NOT NULL,
	record       TEXT NOT NULL,
	stored_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS cases_capture_date ON cases (capture_date);
`

// SQLiteStore keeps every case of a county in one SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" is accepted.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, code string) (*models.StructuredCase, bool, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM cases WHERE code = ?`, code).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &errs.StorageError{Code: code, Op: "load", Err: err}
	}

	var c models.StructuredCase
	if err := json.Unmarshal([]byte(record), &c); err != nil {
		return nil, false, &errs.StorageError{Code: code, Op: "load", Err: fmt.Errorf("corrupt record: %w", err)}
	}
	return &c, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, c *models.StructuredCase) error {
	record, err := json.Marshal(c)
	if err != nil {
		return &errs.StorageError{Code: c.Code, Op: "save", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO cases (code, source_id, capture_date, record, stored_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (code) DO UPDATE SET
	source_id = excluded.source_id,
	capture_date = excluded.capture_date,
	record = excluded.record,
	stored_at = excluded.stored_at`,
		c.Code, c.SourceID, c.CaptureDate.Format("2006-01-02"), string(record), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return &errs.StorageError{Code: c.Code, Op: "save", Err: err}
	}
	return nil
}

// Count returns the number of stored records
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
