// Package state persists the launcher's run state. A single versioned JSON
// record replaces scattered sentinel files: it is read once at startup and
// written back only at well-defined transition points (first-run setup done,
// info tip shown).
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/example/camlaunch/internal/config"
)

// CurrentVersion is the state record format version.
const CurrentVersion = 1

// State is the persistent launcher state.
type State struct {
	Version int `json:"version"`
	// SetupDone gates the one-time desktop integration.
	SetupDone bool `json:"setup_done"`
	// InfoShown gates the one-time shortcuts tip.
	InfoShown bool `json:"info_shown"`

	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
}

func path(installDir string) string {
	return filepath.Join(config.StateDir(installDir), "state.json")
}

// Load reads the state record. A missing file yields a fresh zero state,
// not an error.
func Load(installDir string) (*State, error) {
	data, err := os.ReadFile(path(installDir))
	if os.IsNotExist(err) {
		return &State{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	if st.Version == 0 {
		st.Version = CurrentVersion
	}
	return &st, nil
}

// Save writes the state record.
func Save(installDir string, st *State) error {
	dir := config.StateDir(installDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(path(installDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}
