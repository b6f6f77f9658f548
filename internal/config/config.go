// Package config holds the launcher configuration. Everything a component
// needs (paths, branches, package lists, feature flags) lives here and is
// passed down explicitly; nothing re-reads the environment mid-run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StateDirName is the dot-directory under the install dir that holds the
// config, state record, run journal, and lock file.
const StateDirName = ".camlaunch"

// Config is the flat launcher configuration.
type Config struct {
	Version string `json:"version"`

	// InstallDir is the launcher's own working copy.
	InstallDir string `json:"install_dir"`
	// Branch is the tracked branch of the launcher repository.
	Branch string `json:"branch"`
	// EntryPoint is the path, relative to InstallDir, whose change after a
	// pull forces a restart of the run.
	EntryPoint string `json:"entry_point"`

	// UpdateFrigate enables syncing the managed Frigate working copy.
	UpdateFrigate bool   `json:"update_frigate"`
	FrigateDir    string `json:"frigate_dir,omitempty"`
	FrigateBranch string `json:"frigate_branch,omitempty"`

	// VenvDir is the isolated Python environment root.
	VenvDir string `json:"venv_dir"`
	// GUIScript is the collaborator script run inside the environment.
	GUIScript string `json:"gui_script"`
	// DesktopScript is the one-time desktop-integration hook, relative to
	// InstallDir. Empty or missing on disk means no desktop integration.
	DesktopScript string `json:"desktop_script,omitempty"`

	// RuntimePackages are the system packages for the base runtime.
	RuntimePackages []string `json:"runtime_packages"`
	// BuildPackages are the system build prerequisites installed before the
	// single pip retry.
	BuildPackages []string `json:"build_packages"`
	// PipPackages are the packages required inside the environment.
	PipPackages []string `json:"pip_packages"`

	// LogFile is the headless-mode log path, relative to InstallDir.
	LogFile string `json:"log_file"`
}

// Default returns the configuration for a stock install.
func Default(installDir string) *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Version:         "1",
		InstallDir:      installDir,
		Branch:          "main",
		EntryPoint:      "camlaunch",
		UpdateFrigate:   true,
		FrigateDir:      filepath.Join(home, "frigate"),
		FrigateBranch:   "dev",
		VenvDir:         filepath.Join(installDir, "venv"),
		GUIScript:       "camera_gui.py",
		DesktopScript:   filepath.Join("scripts", "install-desktop-entry.sh"),
		RuntimePackages: []string{"python3", "python3-pip", "python3-venv", "python3-dev"},
		BuildPackages:   []string{"build-essential", "python3-dev"},
		PipPackages:     []string{"PySide6", "PyYAML"},
		LogFile:         "launcher.log",
	}
}

// Load reads .camlaunch/config.json from the install directory. A missing
// file is not an error: defaults apply on a fresh install.
func Load(installDir string) (*Config, error) {
	path := filepath.Join(installDir, StateDirName, "config.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(installDir), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default(installDir)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.InstallDir = installDir
	return cfg, nil
}

// Save writes config.json under the install directory.
func Save(installDir string, cfg *Config) error {
	dir := filepath.Join(installDir, StateDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", StateDirName, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// StateDir returns the dot-directory path for an install dir.
func StateDir(installDir string) string {
	return filepath.Join(installDir, StateDirName)
}

// LogPath returns the absolute headless log path.
func (c *Config) LogPath() string {
	return filepath.Join(c.InstallDir, c.LogFile)
}

// EntryPointPath returns the absolute entry-point path.
func (c *Config) EntryPointPath() string {
	return filepath.Join(c.InstallDir, c.EntryPoint)
}
