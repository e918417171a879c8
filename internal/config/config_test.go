package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:       "/home/user/.local/share/savesaver",
		LogDir:        "/home/user/.local/share/savesaver/log",
		SlotPrefix:    "slot",
		MirrorDeletes: true,
		Ignore:        []string{"*.tmp", "*.swp"},
		Retry: RetryConfig{
			Attempts: 3,
			Backoff:  duration(250 * time.Millisecond),
		},
		Discovery: DiscoveryConfig{
			DefaultPaths: []string{"/saves/default"},
			Markers:      []string{"games", "steam"},
			SaveSuffix:   "Subnautica/SNAppData/SavedGames",
			MaxDepth:     4,
		},
		History: HistoryConfig{Type: "sqlite", DataDir: "/home/user/.local/share/savesaver"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.SlotPrefix != "slot" {
		t.Errorf("SlotPrefix = %q, want %q", got.SlotPrefix, "slot")
	}
	if !got.MirrorDeletes {
		t.Error("MirrorDeletes = false, want true")
	}
	if len(got.Ignore) != 2 {
		t.Fatalf("len(Ignore) = %d, want 2", len(got.Ignore))
	}
	if got.Retry.Attempts != 3 {
		t.Errorf("Retry.Attempts = %d, want 3", got.Retry.Attempts)
	}
	if got.Retry.BackoffDuration() != 250*time.Millisecond {
		t.Errorf("Retry.Backoff = %v, want 250ms", got.Retry.BackoffDuration())
	}
	if got.Discovery.SaveSuffix != original.Discovery.SaveSuffix {
		t.Errorf("Discovery.SaveSuffix = %q, want %q", got.Discovery.SaveSuffix, original.Discovery.SaveSuffix)
	}
	if got.Discovery.MaxDepth != 4 {
		t.Errorf("Discovery.MaxDepth = %d, want 4", got.Discovery.MaxDepth)
	}
	if got.History.Type != "sqlite" {
		t.Errorf("History.Type = %q, want %q", got.History.Type, "sqlite")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/savesaver")

	if cfg.BaseDir != "/data/savesaver" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/savesaver")
	}
	if cfg.LogDir != filepath.Join("/data/savesaver", "log") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.SlotPrefix != "slot" {
		t.Errorf("SlotPrefix = %q, want %q", cfg.SlotPrefix, "slot")
	}
	if cfg.MirrorDeletes {
		t.Error("MirrorDeletes defaults to true, want false")
	}
	if cfg.Retry.Attempts != 5 {
		t.Errorf("Retry.Attempts = %d, want 5", cfg.Retry.Attempts)
	}
	if cfg.Retry.BackoffDuration() != 500*time.Millisecond {
		t.Errorf("Retry.Backoff = %v, want 500ms", cfg.Retry.BackoffDuration())
	}
	if len(cfg.Discovery.Markers) == 0 {
		t.Error("Discovery.Markers is empty")
	}
	if cfg.History.Type != "sqlite" {
		t.Errorf("History.Type = %q, want %q", cfg.History.Type, "sqlite")
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("1s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if time.Duration(d) != time.Second {
		t.Errorf("duration = %v, want 1s", time.Duration(d))
	}

	if err := d.UnmarshalText([]byte("not a duration")); err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "savesaver.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "savesaver.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "savesaver.toml")
		cfg := NewConfig(dir)
		cfg.History = HistoryConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.History.Type != "memory" {
			t.Errorf("History.Type = %q, want %q", got.History.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/savesaver.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
