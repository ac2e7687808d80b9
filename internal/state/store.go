package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hermitbase/internal/logging"
)

// ErrCorrupt marks a state file that exists but cannot be decoded.
var ErrCorrupt = errors.New("corrupt state file")

// Store persists LifecycleState as a single human-readable JSON file.
type Store struct {
	path string
	// bornAt is used for the default state when no file exists yet.
	bornAt time.Time
}

// NewStore creates a store at path. bornAt is normally the process start time.
func NewStore(path string, bornAt time.Time) *Store {
	return &Store{path: path, bornAt: bornAt}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Read loads the state strictly. A missing file yields the default state;
// undecodable content yields ErrCorrupt.
func (s *Store) Read() (*LifecycleState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Default(s.bornAt), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	// Decoding over defaults makes missing fields fall back; unknown fields are ignored.
	st := Default(s.bornAt)
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	st.normalize()
	return st, nil
}

// Load is the tolerant variant used by the agent: any failure is logged and
// the default state returned.
func (s *Store) Load() *LifecycleState {
	st, err := s.Read()
	if err != nil {
		logging.Get(logging.CategoryState).Warn("Failed to load state file %s, using defaults: %v", s.path, err)
		return Default(s.bornAt)
	}
	return st
}

// Save replaces the state file. The write goes to a temp file that is renamed
// over the target so a crash never leaves a torn file behind.
func (s *Store) Save(st *LifecycleState) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	if err := atomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	logging.StateDebug("State saved: shell #%d, %d actions", st.GenerationIndex, st.ActionCount)
	return nil
}

// Encode renders the persisted form of st.
func Encode(st *LifecycleState) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return append(data, '\n'), nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
