// Package settings persists the per-target folder configuration as a flat
// JSON object, the same on-disk shape the tool has always used:
//
//	{
//	  "subnautica_save_folder": "/path/to/SavedGames",
//	  "subnautica_target_folder": "/path/to/Saves"
//	}
//
// A missing or corrupt file loads as empty configuration rather than an
// error; the in-memory state stays authoritative for the process lifetime
// even when a save to disk fails.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"savesaver/internal/saver"
)

const (
	saveFolderSuffix   = "_save_folder"
	targetFolderSuffix = "_target_folder"
)

// Store reads and writes the settings file.
type Store struct {
	path string
}

// NewStore creates a store for the given settings file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the on-disk location of the settings file.
func (s *Store) Path() string { return s.path }

// Load reads the persisted target set. It fails soft: a missing or
// undecodable file yields an empty map, with the underlying problem
// returned alongside so the caller can log it. Paths are normalized to a
// canonical absolute form; fields that are null or not strings load as
// unset.
func (s *Store) Load() (map[string]saver.TargetConfig, error) {
	targets := make(map[string]saver.TargetConfig)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return targets, nil
		}
		return targets, fmt.Errorf("reading settings: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return targets, fmt.Errorf("decoding settings (using defaults): %w", err)
	}

	for key, value := range raw {
		var name, suffix string
		switch {
		case strings.HasSuffix(key, saveFolderSuffix):
			name, suffix = strings.TrimSuffix(key, saveFolderSuffix), saveFolderSuffix
		case strings.HasSuffix(key, targetFolderSuffix):
			name, suffix = strings.TrimSuffix(key, targetFolderSuffix), targetFolderSuffix
		default:
			continue
		}
		if name == "" {
			continue
		}

		path := normalize(value)
		cfg := targets[name]
		cfg.Name = name
		if suffix == saveFolderSuffix {
			cfg.SaveFolder = path
		} else {
			cfg.BackupFolder = path
		}
		targets[name] = cfg
	}
	return targets, nil
}

// Save persists the target set atomically: the file is fully written to a
// temp path and renamed into place, so a crash mid-write cannot corrupt the
// previous settings. Failure is recoverable; callers keep their in-memory
// configuration.
func (s *Store) Save(targets map[string]saver.TargetConfig) error {
	flat := make(map[string]any, len(targets)*2)
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cfg := targets[name]
		flat[name+saveFolderSuffix] = nullable(cfg.SaveFolder)
		flat[name+targetFolderSuffix] = nullable(cfg.BackupFolder)
	}

	data, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing settings file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}

// normalize turns a raw JSON value into a cleaned absolute path, or ""
// when the value is null, not a string, or not absolute.
func normalize(value any) string {
	str, ok := value.(string)
	if !ok || str == "" {
		return ""
	}
	str = filepath.Clean(str)
	if !filepath.IsAbs(str) {
		return ""
	}
	return str
}

// nullable maps unset paths to JSON null, matching the historical file shape.
func nullable(path string) any {
	if path == "" {
		return nil
	}
	return path
}
