package saver_test

import (
	"path/filepath"
	"testing"
	"time"

	"savesaver/internal/fs"
	"savesaver/internal/saver"
	"savesaver/internal/testutil"
)

func newManager(t *testing.T) *saver.SessionManager {
	t.Helper()
	m := saver.NewSessionManager(fs.NewOSCopier(), saver.ManagerOptions{
		SlotPrefix: "slot",
		Retry:      saver.RetryPolicy{Attempts: 2, Backoff: time.Millisecond},
	}, testutil.FixedClock(), saver.NewNopLogger())
	t.Cleanup(m.Shutdown)
	return m
}

func TestSessionManager_ApplyConfig(t *testing.T) {
	t.Run("starts sessions for valid targets", func(t *testing.T) {
		watch := t.TempDir()
		m := newManager(t)

		m.ApplyConfig(map[string]saver.TargetConfig{
			"subnautica": {Name: "subnautica", SaveFolder: watch, BackupFolder: t.TempDir()},
		})

		statuses := m.Status()
		if len(statuses) != 1 {
			t.Fatalf("got %d statuses, want 1", len(statuses))
		}
		if statuses[0].Session != saver.StatusActive {
			t.Errorf("session = %v, want %v", statuses[0].Session, saver.StatusActive)
		}
	})

	t.Run("target without save folder runs no session", func(t *testing.T) {
		m := newManager(t)
		m.ApplyConfig(map[string]saver.TargetConfig{
			"subnautica": {Name: "subnautica", BackupFolder: t.TempDir()},
		})

		statuses := m.Status()
		if len(statuses) != 1 {
			t.Fatalf("got %d statuses, want 1", len(statuses))
		}
		if statuses[0].Session != saver.StatusStopped {
			t.Errorf("session = %v, want %v", statuses[0].Session, saver.StatusStopped)
		}
	})

	t.Run("missing save folder is reported, not fatal", func(t *testing.T) {
		m := newManager(t)
		m.ApplyConfig(map[string]saver.TargetConfig{
			"subnautica": {
				Name:         "subnautica",
				SaveFolder:   filepath.Join(t.TempDir(), "missing"),
				BackupFolder: t.TempDir(),
			},
		})

		statuses := m.Status()
		if len(statuses) != 1 {
			t.Fatalf("got %d statuses, want 1", len(statuses))
		}
		if statuses[0].Session != saver.StatusFailed {
			t.Errorf("session = %v, want %v", statuses[0].Session, saver.StatusFailed)
		}
	})

	t.Run("removed targets are stopped and dropped", func(t *testing.T) {
		m := newManager(t)
		m.ApplyConfig(map[string]saver.TargetConfig{
			"subnautica": {Name: "subnautica", SaveFolder: t.TempDir(), BackupFolder: t.TempDir()},
		})
		m.ApplyConfig(map[string]saver.TargetConfig{})

		if statuses := m.Status(); len(statuses) != 0 {
			t.Errorf("got %d statuses after removal, want 0", len(statuses))
		}
	})

	t.Run("changed roots restart the session", func(t *testing.T) {
		m := newManager(t)
		m.ApplyConfig(map[string]saver.TargetConfig{
			"subnautica": {Name: "subnautica", SaveFolder: t.TempDir(), BackupFolder: t.TempDir()},
		})

		newWatch := t.TempDir()
		m.ApplyConfig(map[string]saver.TargetConfig{
			"subnautica": {Name: "subnautica", SaveFolder: newWatch, BackupFolder: t.TempDir()},
		})

		statuses := m.Status()
		if len(statuses) != 1 {
			t.Fatalf("got %d statuses, want 1", len(statuses))
		}
		if statuses[0].SaveFolder != newWatch {
			t.Errorf("save folder = %q, want %q", statuses[0].SaveFolder, newWatch)
		}
		if statuses[0].Session != saver.StatusActive {
			t.Errorf("session = %v, want %v", statuses[0].Session, saver.StatusActive)
		}
	})
}

func TestSessionManager_SetTargets(t *testing.T) {
	m := newManager(t)
	m.SetTargets(map[string]saver.TargetConfig{
		"subnautica": {Name: "subnautica", SaveFolder: t.TempDir(), BackupFolder: t.TempDir()},
	})

	statuses := m.Status()
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1", len(statuses))
	}
	if statuses[0].Session != saver.StatusStopped {
		t.Errorf("session = %v, want no watching for SetTargets", statuses[0].Session)
	}
}

func TestSessionManager_BackupNow(t *testing.T) {
	t.Run("sweeps every slot of the target", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		mustWrite(t, filepath.Join(watch, "slot0000", "gameinfo.json"), "a")
		mustWrite(t, filepath.Join(watch, "slot0001", "gameinfo.json"), "b")

		m := newManager(t)
		m.SetTargets(map[string]saver.TargetConfig{
			"subnautica": {Name: "subnautica", SaveFolder: watch, BackupFolder: backup},
		})

		entries, err := m.BackupNow("subnautica")
		if err != nil {
			t.Fatalf("BackupNow() error = %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("got %d entries, want 2", len(entries))
		}
	})

	t.Run("unknown target errors", func(t *testing.T) {
		m := newManager(t)
		if _, err := m.BackupNow("nope"); err == nil {
			t.Fatal("expected an error for an unknown target")
		}
	})

	t.Run("target without save folder errors", func(t *testing.T) {
		m := newManager(t)
		m.SetTargets(map[string]saver.TargetConfig{
			"subnautica": {Name: "subnautica", BackupFolder: t.TempDir()},
		})
		if _, err := m.BackupNow("subnautica"); err == nil {
			t.Fatal("expected an error for a target without a save folder")
		}
	})
}

func TestSessionManager_RestoreRoundTrip(t *testing.T) {
	watch, backup := t.TempDir(), t.TempDir()
	mustWrite(t, filepath.Join(watch, "slot0000", "gameinfo.json"), "good save")

	m := newManager(t)
	m.SetTargets(map[string]saver.TargetConfig{
		"subnautica": {Name: "subnautica", SaveFolder: watch, BackupFolder: backup},
	})

	if _, err := m.BackupNow("subnautica"); err != nil {
		t.Fatalf("BackupNow() error = %v", err)
	}

	// Corrupt the live save, then restore the snapshot over it.
	mustWrite(t, filepath.Join(watch, "slot0000", "gameinfo.json"), "corrupted")

	snaps, err := m.ListSnapshots("subnautica")
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}

	if err := m.Restore("subnautica", snaps[0].Name); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := mustRead(t, filepath.Join(watch, "slot0000", "gameinfo.json")); got != "good save" {
		t.Errorf("restored content = %q, want %q", got, "good save")
	}
}
