package saver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// RestoreEngine copies a chosen backup snapshot back into the live watch
// root. Restores merge: files present in the snapshot overwrite their live
// counterparts, files only present live are preserved.
type RestoreEngine struct {
	copier FileCopier
	logger Logger
	bus    *EventBus
}

// NewRestoreEngine creates a RestoreEngine.
func NewRestoreEngine(copier FileCopier, logger Logger, bus *EventBus) *RestoreEngine {
	return &RestoreEngine{copier: copier, logger: logger, bus: bus}
}

// Restore copies the named snapshot from backupRoot over the corresponding
// slot under watchRoot. The original slot name is recovered from the
// snapshot name's "_timestamp" suffix. The caller is responsible for any
// user confirmation; errors are reportable, never fatal.
func (e *RestoreEngine) Restore(backupRoot, snapshotName, watchRoot string) error {
	slot, _, ok := ParseSnapshotName(snapshotName)
	if !ok {
		return fmt.Errorf("not a snapshot name: %s", snapshotName)
	}

	src := filepath.Join(backupRoot, snapshotName)
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("snapshot not found: %w", err)
	}

	dst := filepath.Join(watchRoot, slot)
	if info.IsDir() {
		err = e.mergeTree(src, dst)
	} else {
		err = e.copier.CopyFile(src, dst)
	}
	if err != nil {
		return fmt.Errorf("restoring %s: %w", snapshotName, err)
	}

	e.logger.Info("snapshot restored", "snapshot", snapshotName, "dest", dst)
	e.bus.Publish("", "restored %s to %s", snapshotName, slot)
	return nil
}

// mergeTree copies every file under src into dst, creating directories as
// needed and overwriting existing files. Files under dst that have no
// counterpart in src are left alone.
func (e *RestoreEngine) mergeTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
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
		return e.copier.CopyFile(path, out)
	})
}
