package checkpoint

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
)

var july = models.DateRange{
	Start: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC),
}

func TestCheckpointManager(t *testing.T) {
	dir := t.TempDir()

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager("hays", dir, logger.NewNopLogger())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create("hays", july, 62)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.StartDate != "2024-07-01" || cp.EndDate != "2024-07-31" {
			t.Errorf("Unexpected range %s..%s", cp.StartDate, cp.EndDate)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if !loaded.Covers("hays", july) {
			t.Error("Expected loaded checkpoint to cover the July range")
		}
		if loaded.Covers("comal", july) {
			t.Error("Expected checkpoint not to cover another county")
		}
		if loaded.TotalQueries != 62 {
			t.Errorf("Expected 62 total queries, got %d", loaded.TotalQueries)
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		mgr, err := NewManager("travis", dir, logger.NewNopLogger())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		cp, err := mgr.Load()
		if err != nil || cp != nil {
			t.Errorf("Expected no checkpoint and no error, got %v, %v", cp, err)
		}
	})

	t.Run("MarkCompleted", func(t *testing.T) {
		mgr, err := NewManager("hays", dir, logger.NewNopLogger())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		cp, err := mgr.Create("hays", july, 62)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		if err := mgr.MarkCompleted(cp, "39607@2024-07-01", 3); err != nil {
			t.Fatalf("Failed to mark query: %v", err)
		}
		if err := mgr.MarkCompleted(cp, "39607@2024-07-02", 0); err != nil {
			t.Fatalf("Failed to mark query: %v", err)
		}

		if !cp.IsCompleted("39607@2024-07-01") || !cp.IsCompleted("39607@2024-07-02") {
			t.Error("Expected both queries to be completed")
		}
		if cp.IsCompleted("39607@2024-07-03") {
			t.Error("Expected 07-03 to be pending")
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded.CompletedCount() != 2 {
			t.Errorf("Expected 2 completed queries, got %d", loaded.CompletedCount())
		}
		if loaded.CasesSeen != 3 {
			t.Errorf("Expected 3 cases seen, got %d", loaded.CasesSeen)
		}
	})

	t.Run("ConcurrentMarks", func(t *testing.T) {
		mgr, err := NewManager("hays", dir, logger.NewNopLogger())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		cp, err := mgr.Create("hays", july, 31)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		var wg sync.WaitGroup
		for day := 1; day <= 31; day++ {
			wg.Add(1)
			go func(day int) {
				defer wg.Done()
				if err := mgr.MarkCompleted(cp, fmt.Sprintf("39607@2024-07-%02d", day), 1); err != nil {
					t.Errorf("MarkCompleted: %v", err)
				}
			}(day)
		}
		wg.Wait()

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint after concurrent saves: %v", err)
		}
		if loaded.CompletedCount() != 31 {
			t.Errorf("Expected 31 completed queries, got %d", loaded.CompletedCount())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManager("hays", dir, logger.NewNopLogger())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if _, err := mgr.Create("hays", july, 1); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if !mgr.Exists() {
			t.Error("Expected checkpoint to exist")
		}
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist after deletion")
		}
	})

	t.Run("BackupCheckpoint", func(t *testing.T) {
		mgr, err := NewManager("hays", dir, logger.NewNopLogger())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if _, err := mgr.Create("hays", july, 1); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if err := mgr.BackupCheckpoint(); err != nil {
			t.Fatalf("Failed to backup checkpoint: %v", err)
		}
		if _, err := os.Stat(mgr.Path() + ".backup"); os.IsNotExist(err) {
			t.Error("Backup file not created")
		}
	})
}

func TestGetDataDirectory(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir, err := getDataDirectory()
	if err != nil {
		t.Fatalf("Failed to get data directory: %v", err)
	}
	if dir == "" {
		t.Error("Data directory is empty")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Data directory not created: %v", err)
	}
}
