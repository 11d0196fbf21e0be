// Package supervisor manages the server process lifecycle through a
// PID state file.
package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// State is the persisted record of a running server process.
type State struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"started_at"`
}

// StateFile persists the supervisor state as JSON on a single path.
// All reads and writes of the shared state go through it.
type StateFile struct {
	path string
}

// NewStateFile creates a state file accessor for the given path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the underlying file path.
func (f *StateFile) Path() string {
	return f.path
}

// Load reads the persisted state. A missing file returns (nil, nil).
func (f *StateFile) Load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &state, nil
}

// Save writes the state atomically via a temp file rename.
func (f *StateFile) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Clear removes the state file. Removing a missing file is not an error.
func (f *StateFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
