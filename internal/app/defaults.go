package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SAVESAVER_CONFIG_PATH: config file location (default: ~/.config/savesaver.toml)
//   - SAVESAVER_HOME: base directory for savesaver data (default: ~/.local/share/savesaver)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":   configPath,
		"base_dir":      baseDir,
		"log_dir":       filepath.Join(baseDir, "log"),
		"settings_path": filepath.Join(baseDir, "settings.json"),
	}, nil
}

// getConfigPath returns the config file path, checking SAVESAVER_CONFIG_PATH
// first, then falling back to the default ~/.config/savesaver.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("SAVESAVER_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "savesaver.toml"), nil
}

// getBaseDir returns the base directory for savesaver data, checking
// SAVESAVER_HOME first, then falling back to the XDG default.
func getBaseDir() (string, error) {
	if path := os.Getenv("SAVESAVER_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "savesaver"), nil
}
