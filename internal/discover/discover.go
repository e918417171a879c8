// Package discover locates candidate save-data directories, first by
// checking well-known default locations and then by scanning local drives
// for installation markers.
package discover

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultMaxDepth bounds the drive scan below each root.
const DefaultMaxDepth = 5

// Hints describes where a target's save data is likely to live.
type Hints struct {
	// DefaultPaths are absolute locations checked first.
	DefaultPaths []string
	// Markers are substrings (case-insensitive) of directory names that
	// suggest a game installation area, e.g. "games", "steam".
	Markers []string
	// SaveSuffix is the relative path expected beneath a marker directory,
	// e.g. "Subnautica/SNAppData/SavedGames".
	SaveSuffix string
	// MaxDepth limits traversal depth below each drive root.
	MaxDepth int
}

// Discover returns every existing candidate path for the given hints,
// default locations first, then drive-scan results. The result may be
// empty. Inaccessible drives or subtrees are skipped, never fatal: one
// unreadable folder must not hide candidates elsewhere.
func Discover(hints Hints) []string {
	return DiscoverFrom(DriveRoots(), hints)
}

// DiscoverFrom is Discover with an explicit set of scan roots.
func DiscoverFrom(roots []string, hints Hints) []string {
	maxDepth := hints.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	seen := make(map[string]bool)
	var candidates []string
	add := func(path string) {
		path = filepath.Clean(path)
		if seen[path] {
			return
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			seen[path] = true
			candidates = append(candidates, path)
		}
	}

	for _, p := range hints.DefaultPaths {
		add(p)
	}

	if hints.SaveSuffix == "" || len(hints.Markers) == 0 {
		return candidates
	}

	for _, root := range roots {
		scanRoot(root, hints, maxDepth, add)
	}
	return candidates
}

// scanRoot walks one drive root to the depth limit, looking for marker
// directories with the save suffix beneath them. Errors on individual
// entries skip that subtree and continue.
func scanRoot(root string, hints Hints, maxDepth int, add func(string)) {
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return filepath.SkipAll
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if depth > maxDepth {
			return fs.SkipDir
		}

		name := strings.ToLower(d.Name())
		for _, marker := range hints.Markers {
			if strings.Contains(name, strings.ToLower(marker)) {
				add(filepath.Join(path, hints.SaveSuffix))
				break
			}
		}
		return nil
	})
}

// DriveRoots enumerates the local filesystem roots to scan: each existing
// drive letter on Windows, the root directory elsewhere.
func DriveRoots() []string {
	if runtime.GOOS != "windows" {
		return []string{string(filepath.Separator)}
	}
	var roots []string
	for c := 'A'; c <= 'Z'; c++ {
		root := string(c) + `:\`
		if _, err := os.Stat(root); err == nil {
			roots = append(roots, root)
		}
	}
	return roots
}
