package saver

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// TimestampLayout is the format of the snapshot name suffix.
const TimestampLayout = "20060102150405"

// snapshotNameRe matches "{slot}_{YYYYMMDDHHMMSS}" with an optional "_{n}"
// counter that disambiguates snapshots created within the same second.
var snapshotNameRe = regexp.MustCompile(`^(.+)_(\d{14})(?:_(\d+))?$`)

// BackupSnapshot is one materialized backup in a backup root.
type BackupSnapshot struct {
	Name       string    // directory or file name under the backup root
	SlotName   string    // original slot (or file) name the snapshot was taken from
	Timestamp  time.Time // parsed from the name suffix
	StoredPath string
	ModTime    time.Time
	Size       int64 // total bytes; directories are summed over their subtree
	IsDir      bool
}

// ParseSnapshotName splits a snapshot name into the original slot name and
// its timestamp. Returns ok=false for names that do not follow the
// "{slot}_{timestamp}" convention.
func ParseSnapshotName(name string) (slot string, ts time.Time, ok bool) {
	m := snapshotNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, m[2], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], t, true
}

// SnapshotName builds the snapshot name for a slot at the given time.
func SnapshotName(slot string, t time.Time) string {
	return slot + "_" + t.Format(TimestampLayout)
}

// uniqueSnapshotPath returns a path under backupRoot for a new snapshot of
// slot at time t. If the base name is already taken, a counter suffix is
// appended so same-second snapshots never overwrite each other.
func uniqueSnapshotPath(backupRoot, slot string, t time.Time) string {
	base := filepath.Join(backupRoot, SnapshotName(slot, t))
	path := base
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = fmt.Sprintf("%s_%d", base, n)
	}
}

// ListSnapshots returns the snapshots present in backupRoot, newest first by
// modification time. Entries that do not follow the snapshot naming
// convention (such as file-granular event backups) are skipped.
func ListSnapshots(backupRoot string) ([]BackupSnapshot, error) {
	entries, err := os.ReadDir(backupRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup root: %w", err)
	}

	var snapshots []BackupSnapshot
	for _, entry := range entries {
		slot, ts, ok := ParseSnapshotName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		storedPath := filepath.Join(backupRoot, entry.Name())
		size := info.Size()
		if entry.IsDir() {
			size, _ = treeSize(storedPath)
		}
		snapshots = append(snapshots, BackupSnapshot{
			Name:       entry.Name(),
			SlotName:   slot,
			Timestamp:  ts,
			StoredPath: storedPath,
			ModTime:    info.ModTime(),
			Size:       size,
			IsDir:      entry.IsDir(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ModTime.After(snapshots[j].ModTime)
	})
	return snapshots, nil
}

// TotalBackupSize sums the size of everything under backupRoot.
// Unreadable entries are skipped; the total is a report, not an invariant.
func TotalBackupSize(backupRoot string) int64 {
	total, _ := treeSize(backupRoot)
	return total
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total, err
}
