package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the tool-level configuration for savesaver. Per-target
// folder pairs live in the separate JSON settings file; this file holds the
// engine tunables that apply to every target.
type Config struct {
	BaseDir       string          `toml:"base_dir"`
	LogDir        string          `toml:"log_dir"`
	SlotPrefix    string          `toml:"slot_prefix"`
	MirrorDeletes bool            `toml:"mirror_deletes"`
	Ignore        []string        `toml:"ignore"`
	Retry         RetryConfig     `toml:"retry"`
	Discovery     DiscoveryConfig `toml:"discovery"`
	History       HistoryConfig   `toml:"history"`
}

// RetryConfig bounds copy retries under transient file locks.
type RetryConfig struct {
	Attempts int      `toml:"attempts"`
	Backoff  duration `toml:"backoff"`
}

// BackoffDuration returns the configured backoff as a time.Duration.
func (r RetryConfig) BackoffDuration() time.Duration { return time.Duration(r.Backoff) }

// DiscoveryConfig holds the save-path detection hints.
type DiscoveryConfig struct {
	DefaultPaths []string `toml:"default_paths"`
	Markers      []string `toml:"markers"`
	SaveSuffix   string   `toml:"save_suffix"`
	MaxDepth     int      `toml:"max_depth"`
}

// HistoryConfig represents configuration for the operation-history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// duration lets TOML carry values like "500ms".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// NewConfig creates a Config with the standard defaults rooted at baseDir.
// The discovery hints default to the Subnautica profile the tool grew up
// around; other games override them in the config file.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		SlotPrefix: "slot",
		Ignore:     []string{"*.tmp", "*.swp"},
		Retry: RetryConfig{
			Attempts: 5,
			Backoff:  duration(500 * time.Millisecond),
		},
		Discovery: DiscoveryConfig{
			DefaultPaths: defaultSavePaths(),
			Markers:      []string{"games", "steam"},
			SaveSuffix:   filepath.Join("Subnautica", "SNAppData", "SavedGames"),
			MaxDepth:     5,
		},
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: baseDir,
		},
	}
}

// defaultSavePaths lists the well-known Subnautica save locations. The
// Windows-specific entries are harmless elsewhere; discovery only keeps
// paths that exist.
func defaultSavePaths() []string {
	paths := []string{
		`C:\Program Files\Steam\steamapps\common\Subnautica\SNAppData\SavedGames`,
		`C:\Program Files (x86)\Steam\steamapps\common\Subnautica\SNAppData\SavedGames`,
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		paths = append([]string{
			filepath.Join(appData, "..", "LocalLow", "Unknown Worlds", "Subnautica", "Subnautica", "SavedGames"),
		}, paths...)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".steam", "steam", "steamapps", "common", "Subnautica", "SNAppData", "SavedGames"))
	}
	return paths
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
