package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
)

// Checkpoint is the progress of one county run over its query matrix
type Checkpoint struct {
	County    string `json:"county"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	// Completed maps a finished query key to the number of cases it listed
	Completed    map[string]int `json:"completed"`
	TotalQueries int            `json:"total_queries"`
	CasesSeen    int            `json:"cases_seen"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Version      int            `json:"version"`

	mu sync.Mutex
}

// IsCompleted reports whether the query with key already finished
func (cp *Checkpoint) IsCompleted(key string) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	_, ok := cp.Completed[key]
	return ok
}

// CompletedCount returns the number of finished queries
func (cp *Checkpoint) CompletedCount() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.Completed)
}

// Covers reports whether the checkpoint was made for county and dates
func (cp *Checkpoint) Covers(county string, dates models.DateRange) bool {
	return cp.County == county &&
		cp.StartDate == dates.Start.Format(time.DateOnly) &&
		cp.EndDate == dates.End.Format(time.DateOnly)
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

// NewManager creates a checkpoint manager for county. Checkpoints live in
// dir, or in the platform data directory when dir is empty.
func NewManager(county, dir string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", county)),
		logger:         logger.OrDefault(log),
	}, nil
}

// Path returns the checkpoint file
func (m *Manager) Path() string { return m.checkpointPath }

// Create starts a new checkpoint, replacing any existing one
func (m *Manager) Create(county string, dates models.DateRange, totalQueries int) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		County:       county,
		StartDate:    dates.Start.Format(time.DateOnly),
		EndDate:      dates.End.Format(time.DateOnly),
		Completed:    make(map[string]int),
		TotalQueries: totalQueries,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"county": county,
		"path":   m.checkpointPath,
	})
	return cp, nil
}

// Load loads an existing checkpoint. It returns nil when there is none.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Completed == nil {
		cp.Completed = make(map[string]int)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"county":     cp.County,
		"completed":  len(cp.Completed),
		"total":      cp.TotalQueries,
		"updated_at": cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp.mu.Lock()
	cp.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	cp.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"county":    cp.County,
		"completed": cp.CompletedCount(),
	})
	return nil
}

// MarkCompleted records a finished query and saves the checkpoint
func (m *Manager) MarkCompleted(cp *Checkpoint, key string, cases int) error {
	cp.mu.Lock()
	cp.Completed[key] = cases
	cp.CasesSeen += cases
	cp.mu.Unlock()
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// BackupCheckpoint copies the current checkpoint next to it
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	backupPath := m.checkpointPath + ".backup"

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "odysseyscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "odysseyscraper")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "odysseyscraper")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "odysseyscraper")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
