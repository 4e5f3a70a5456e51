package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"instarchive/pkg/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr := NewManager(filepath.Join(t.TempDir(), ".checkpoint.json"), logger.NewNopLogger())
	mgr.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return mgr
}

func TestCheckpointManager(t *testing.T) {
	t.Run("LoadMissing", func(t *testing.T) {
		mgr := newTestManager(t)

		cp, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if cp != nil {
			t.Errorf("Expected no checkpoint, got %+v", cp)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist")
		}
	})

	t.Run("StartIsNotWritten", func(t *testing.T) {
		mgr := newTestManager(t)

		cp := mgr.Start(5)
		if cp.Line != 4 {
			t.Errorf("Expected line 4, got %d", cp.Line)
		}
		if cp.NextLine() != 5 {
			t.Errorf("Expected next line 5, got %d", cp.NextLine())
		}
		if mgr.Exists() {
			t.Error("Expected Start to leave the file alone")
		}
	})

	t.Run("RecordAndLoad", func(t *testing.T) {
		mgr := newTestManager(t)

		cp := mgr.Start(1)
		cp.RunID = "8d2f"
		if err := mgr.Record(cp, 3, "alice"); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
		if err := mgr.Record(cp, 7, "bob"); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Line != 7 || loaded.Account != "bob" {
			t.Errorf("Expected line 7 for bob, got %d for %s", loaded.Line, loaded.Account)
		}
		if loaded.RunID != "8d2f" {
			t.Errorf("Expected run id to survive, got %q", loaded.RunID)
		}
		if loaded.Version != currentVersion {
			t.Errorf("Expected version %d, got %d", currentVersion, loaded.Version)
		}

		if _, err := os.Stat(mgr.Path() + ".tmp"); !os.IsNotExist(err) {
			t.Error("Temporary file left behind")
		}
	})

	t.Run("ResumeLine", func(t *testing.T) {
		mgr := newTestManager(t)

		line, err := mgr.ResumeLine(2)
		if err != nil {
			t.Fatalf("Failed to get resume line: %v", err)
		}
		if line != 2 {
			t.Errorf("Expected fallback line 2, got %d", line)
		}

		if err := mgr.Record(mgr.Start(1), 4, "alice"); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
		line, err = mgr.ResumeLine(2)
		if err != nil {
			t.Fatalf("Failed to get resume line: %v", err)
		}
		if line != 5 {
			t.Errorf("Expected line 5, got %d", line)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr := newTestManager(t)

		if err := mgr.Record(mgr.Start(1), 1, "alice"); err != nil {
			t.Fatalf("Failed to record: %v", err)
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

		// Deleting twice is fine
		if err := mgr.Delete(); err != nil {
			t.Errorf("Second delete failed: %v", err)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		mgr := newTestManager(t)

		if err := os.WriteFile(mgr.Path(), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := mgr.Load(); err == nil {
			t.Error("Expected error for corrupt checkpoint")
		}
		if _, err := mgr.ResumeLine(1); err == nil {
			t.Error("Expected resume to fail on corrupt checkpoint")
		}
	})
}
