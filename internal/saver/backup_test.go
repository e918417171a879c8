package saver_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"savesaver/internal/fs"
	"savesaver/internal/saver"
	"savesaver/internal/testutil"
)

// newEngine builds a BackupEngine over the real filesystem with a fixed clock.
func newEngine(t *testing.T, copier saver.FileCopier, clock saver.Clock) *saver.BackupEngine {
	t.Helper()
	retry := saver.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}
	bus := saver.NewEventBus(8, clock)
	return saver.NewBackupEngine(copier, "slot", retry, clock, saver.NewNopLogger(), bus)
}

func TestBackupEngine_BackupAll(t *testing.T) {
	t.Run("copies every slot with one shared timestamp", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		mustWrite(t, filepath.Join(watch, "slot0000", "gameinfo.json"), "one")
		mustWrite(t, filepath.Join(watch, "slot0001", "gameinfo.json"), "two")
		mustWrite(t, filepath.Join(watch, "slot0001", "cells", "batch.bin"), "cells")
		mustWrite(t, filepath.Join(watch, "options", "settings.bin"), "not a slot")

		engine := newEngine(t, fs.NewOSCopier(), testutil.FixedClock())
		entries, err := engine.BackupAll(watch, backup)
		if err != nil {
			t.Fatalf("BackupAll() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}

		stamp := "20240115103000"
		for _, e := range entries {
			if filepath.Base(e.StoredPath) != e.SlotName+"_"+stamp {
				t.Errorf("stored path %s does not share sweep timestamp", e.StoredPath)
			}
		}

		got := mustRead(t, filepath.Join(backup, "slot0001_"+stamp, "cells", "batch.bin"))
		if got != "cells" {
			t.Errorf("nested file content = %q, want %q", got, "cells")
		}
		if _, err := os.Stat(filepath.Join(backup, "options_"+stamp)); !os.IsNotExist(err) {
			t.Error("non-slot directory was backed up")
		}
	})

	t.Run("same-second sweeps get counter suffixes", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		mustWrite(t, filepath.Join(watch, "slot0000", "gameinfo.json"), "v1")

		clock := testutil.FixedClock()
		engine := newEngine(t, fs.NewOSCopier(), clock)

		if _, err := engine.BackupAll(watch, backup); err != nil {
			t.Fatalf("first BackupAll() error = %v", err)
		}
		mustWrite(t, filepath.Join(watch, "slot0000", "gameinfo.json"), "v2")
		if _, err := engine.BackupAll(watch, backup); err != nil {
			t.Fatalf("second BackupAll() error = %v", err)
		}

		first := mustRead(t, filepath.Join(backup, "slot0000_20240115103000", "gameinfo.json"))
		second := mustRead(t, filepath.Join(backup, "slot0000_20240115103000_2", "gameinfo.json"))
		if first != "v1" || second != "v2" {
			t.Errorf("snapshots = %q, %q; want %q, %q", first, second, "v1", "v2")
		}
	})

	t.Run("unreadable subtree does not abort the sweep", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permission checks do not apply to root")
		}
		watch, backup := t.TempDir(), t.TempDir()
		mustWrite(t, filepath.Join(watch, "slot0000", "gameinfo.json"), "readable")
		mustWrite(t, filepath.Join(watch, "slot0001", "gameinfo.json"), "other slot")
		locked := filepath.Join(watch, "slot0000", "locked")
		mustMkdir(t, locked)
		if err := os.Chmod(locked, 0); err != nil {
			t.Fatalf("chmod: %v", err)
		}
		t.Cleanup(func() { os.Chmod(locked, 0755) })

		engine := newEngine(t, fs.NewOSCopier(), testutil.FixedClock())
		entries, err := engine.BackupAll(watch, backup)
		if err != nil {
			t.Fatalf("BackupAll() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2 (both slots captured)", len(entries))
		}

		got := mustRead(t, filepath.Join(backup, "slot0000_20240115103000", "gameinfo.json"))
		if got != "readable" {
			t.Errorf("content = %q, want %q", got, "readable")
		}
	})

	t.Run("empty watch root yields no entries", func(t *testing.T) {
		engine := newEngine(t, fs.NewOSCopier(), testutil.FixedClock())
		entries, err := engine.BackupAll(t.TempDir(), t.TempDir())
		if err != nil {
			t.Fatalf("BackupAll() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("got %d entries, want 0", len(entries))
		}
	})
}

func TestBackupEngine_BackupPath(t *testing.T) {
	t.Run("copies a changed slot file preserving structure", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		src := filepath.Join(watch, "slot0000", "cells", "batch.bin")
		mustWrite(t, src, "payload")

		engine := newEngine(t, fs.NewOSCopier(), testutil.FixedClock())
		copied, err := engine.BackupPath(watch, backup, src)
		if err != nil {
			t.Fatalf("BackupPath() error = %v", err)
		}
		if !copied {
			t.Fatal("expected a copy to be performed")
		}
		got := mustRead(t, filepath.Join(backup, "slot0000", "cells", "batch.bin"))
		if got != "payload" {
			t.Errorf("content = %q, want %q", got, "payload")
		}
	})

	t.Run("paths outside slot directories are filtered", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		src := filepath.Join(watch, "options", "settings.bin")
		mustWrite(t, src, "x")

		engine := newEngine(t, fs.NewOSCopier(), testutil.FixedClock())
		copied, err := engine.BackupPath(watch, backup, src)
		if err != nil {
			t.Fatalf("BackupPath() error = %v", err)
		}
		if copied {
			t.Error("non-slot path should not be copied")
		}
	})

	t.Run("paths outside the watch root are filtered", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		outside := filepath.Join(t.TempDir(), "slot0000", "file.bin")
		mustWrite(t, outside, "x")

		engine := newEngine(t, fs.NewOSCopier(), testutil.FixedClock())
		copied, err := engine.BackupPath(watch, backup, outside)
		if err != nil {
			t.Fatalf("BackupPath() error = %v", err)
		}
		if copied {
			t.Error("path outside watch root should not be copied")
		}
	})

	t.Run("vanished source is a no-op", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		engine := newEngine(t, fs.NewOSCopier(), testutil.FixedClock())

		copied, err := engine.BackupPath(watch, backup, filepath.Join(watch, "slot0000", "gone.bin"))
		if err != nil {
			t.Fatalf("BackupPath() error = %v", err)
		}
		if copied {
			t.Error("vanished path should not report a copy")
		}
	})

	t.Run("retries transient failures then succeeds", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		src := filepath.Join(watch, "slot0000", "gameinfo.json")
		mustWrite(t, src, "locked then free")

		copier := testutil.NewFlakyCopier(2, errors.New("file locked"))
		engine := newEngine(t, copier, testutil.FixedClock())

		copied, err := engine.BackupPath(watch, backup, src)
		if err != nil {
			t.Fatalf("BackupPath() error = %v", err)
		}
		if !copied {
			t.Fatal("expected the copy to eventually succeed")
		}
		if copier.Calls() != 3 {
			t.Errorf("copier calls = %d, want 3", copier.Calls())
		}
		got := mustRead(t, filepath.Join(backup, "slot0000", "gameinfo.json"))
		if got != "locked then free" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("gives up after the retry bound", func(t *testing.T) {
		watch, backup := t.TempDir(), t.TempDir()
		src := filepath.Join(watch, "slot0000", "gameinfo.json")
		mustWrite(t, src, "never copied")

		lockErr := errors.New("file locked")
		copier := testutil.NewFlakyCopier(100, lockErr)
		engine := newEngine(t, copier, testutil.FixedClock())

		_, err := engine.BackupPath(watch, backup, src)
		if err == nil {
			t.Fatal("expected an error after retry exhaustion")
		}
		if !errors.Is(err, lockErr) {
			t.Errorf("error = %v, want wrapped %v", err, lockErr)
		}
		if copier.Calls() != 3 {
			t.Errorf("copier calls = %d, want 3 (the retry bound)", copier.Calls())
		}
	})
}
