package saver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultSlotPrefix is the directory-name convention marking a save slot.
	DefaultSlotPrefix = "slot"

	defaultRetryAttempts = 5
	defaultRetryBackoff  = 500 * time.Millisecond
)

// RetryPolicy bounds how copy operations behave under transient failures,
// typically the game process still holding a lock on a save file.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy returns the standard 5-attempt, 500ms-backoff policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: defaultRetryAttempts, Backoff: defaultRetryBackoff}
}

// SlotEntry records one slot directory captured by a backup sweep.
type SlotEntry struct {
	SlotName   string
	SourcePath string
	StoredPath string
}

// BackupEngine copies save data from a watch root into a backup root.
// It is stateless with respect to targets: the same engine serves every
// configured target, with paths supplied per call.
type BackupEngine struct {
	copier     FileCopier
	slotPrefix string
	retry      RetryPolicy
	clock      Clock
	logger     Logger
	bus        *EventBus
}

// NewBackupEngine creates a BackupEngine. A zero-valued retry policy is
// replaced with the default.
func NewBackupEngine(copier FileCopier, slotPrefix string, retry RetryPolicy, clock Clock, logger Logger, bus *EventBus) *BackupEngine {
	if slotPrefix == "" {
		slotPrefix = DefaultSlotPrefix
	}
	if retry.Attempts <= 0 {
		retry.Attempts = defaultRetryAttempts
	}
	if retry.Backoff < 0 {
		retry.Backoff = defaultRetryBackoff
	}
	return &BackupEngine{
		copier:     copier,
		slotPrefix: slotPrefix,
		retry:      retry,
		clock:      clock,
		logger:     logger,
		bus:        bus,
	}
}

// BackupAll sweeps watchRoot for slot directories and copies each one's full
// subtree to {backupRoot}/{slot}_{timestamp}. The whole sweep shares one
// timestamp so a single "save now" produces a coherent multi-slot backup.
// Individual file failures are logged and skipped; the sweep continues.
func (e *BackupEngine) BackupAll(watchRoot, backupRoot string) ([]SlotEntry, error) {
	slots, err := e.findSlots(watchRoot)
	if err != nil {
		return nil, fmt.Errorf("scanning watch root: %w", err)
	}

	now := e.clock.Now()
	var entries []SlotEntry
	for _, src := range slots {
		slot := filepath.Base(src)
		dst := uniqueSnapshotPath(backupRoot, slot, now)
		if err := e.copyTree(src, dst); err != nil {
			return entries, fmt.Errorf("backing up slot %s: %w", slot, err)
		}
		entries = append(entries, SlotEntry{SlotName: slot, SourcePath: src, StoredPath: dst})
		e.logger.Info("slot backed up", "slot", slot, "dest", dst)
		e.bus.Publish("", "backed up %s to %s", slot, filepath.Base(dst))
	}
	return entries, nil
}

// BackupPath copies one changed file into the backup root, preserving its
// path relative to the watch root. Paths whose first segment does not carry
// the slot prefix are not managed save data and are skipped; that is a
// filter, not an error. Returns whether a copy was performed.
func (e *BackupEngine) BackupPath(watchRoot, backupRoot, changed string) (bool, error) {
	rel, err := filepath.Rel(watchRoot, changed)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false, nil
	}

	first := rel
	if i := strings.IndexRune(rel, filepath.Separator); i >= 0 {
		first = rel[:i]
	}
	if !strings.HasPrefix(first, e.slotPrefix) {
		e.logger.Debug("ignoring change outside slot directories", "path", changed)
		return false, nil
	}

	info, err := os.Stat(changed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Deleted between notification and handling.
			return false, nil
		}
		return false, fmt.Errorf("stat changed path: %w", err)
	}
	if info.IsDir() {
		return false, nil
	}

	dst := filepath.Join(backupRoot, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("creating backup directory: %w", err)
	}
	if err := e.copyWithRetry(changed, dst); err != nil {
		return false, err
	}

	e.logger.Info("file backed up", "src", changed, "dest", dst)
	e.bus.Publish("", "backed up %s", rel)
	return true, nil
}

// findSlots walks watchRoot and collects directories whose name carries the
// slot prefix. A found slot directory is not descended into, so a slot's
// internal structure never produces nested slots.
func (e *BackupEngine) findSlots(watchRoot string) ([]string, error) {
	var slots []string
	err := filepath.WalkDir(watchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == watchRoot {
				return err
			}
			e.logger.Warn("skipping unreadable path during sweep", "path", path, "error", err)
			return fs.SkipDir
		}
		if !d.IsDir() || path == watchRoot {
			return nil
		}
		if strings.HasPrefix(d.Name(), e.slotPrefix) {
			slots = append(slots, path)
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// copyTree copies the full subtree at src to dst. File copy failures after
// retry exhaustion and unreadable subtrees are reported and skipped rather
// than aborting the tree; only destination-side failures propagate.
func (e *BackupEngine) copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			e.logger.Warn("skipping unreadable path during sweep", "path", path, "error", err)
			if path == src {
				return fs.SkipAll
			}
			return fs.SkipDir
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := e.copyWithRetry(path, out); err != nil {
			e.logger.Error("file skipped during sweep", "path", path, "error", err)
			e.bus.Publish("", "failed to back up %s: %v", rel, err)
		}
		return nil
	})
}

// copyWithRetry attempts a single-file copy up to the retry bound, sleeping
// a fixed backoff between attempts. A vanished source is not retried.
func (e *BackupEngine) copyWithRetry(src, dst string) error {
	var lastErr error
	for attempt := 1; attempt <= e.retry.Attempts; attempt++ {
		lastErr = e.copier.CopyFile(src, dst)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, fs.ErrNotExist) {
			return fmt.Errorf("copying %s: %w", src, lastErr)
		}
		if attempt < e.retry.Attempts {
			e.logger.Debug("copy attempt failed, retrying", "src", src, "attempt", attempt, "error", lastErr)
			time.Sleep(e.retry.Backoff)
		}
	}
	return fmt.Errorf("copying %s after %d attempts: %w", src, e.retry.Attempts, lastErr)
}
