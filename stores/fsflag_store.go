package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nutrijel/authflow"
)

// FSFlagStore stores the session flags as a JSON file
type FSFlagStore struct {
	mu   sync.Mutex
	path string
}

// NewFSFlagStore creates a file-backed store.
// If path is empty, defaults to ~/.config/<appName>/session.json
func NewFSFlagStore(path string, appName string) (*FSFlagStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "authflow"
		}
		path = filepath.Join(configDir, appName, "session.json")
	}
	return &FSFlagStore{path: path}, nil
}

// Path returns the file the flags are kept in
func (s *FSFlagStore) Path() string {
	return s.path
}

func (s *FSFlagStore) MarkAuthenticated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(authflow.PersistedFlags{IsAuthenticated: true})
}

func (s *FSFlagStore) Flags(ctx context.Context) (authflow.PersistedFlags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// SetExploring marks the visitor as browsing without an account
func (s *FSFlagStore) SetExploring(ctx context.Context, exploring bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flags, err := s.loadLocked()
	if err != nil {
		return err
	}
	flags.IsExploring = exploring
	return s.saveLocked(flags)
}

// Clear removes the file, forgetting both flags
func (s *FSFlagStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FSFlagStore) loadLocked() (authflow.PersistedFlags, error) {
	var flags authflow.PersistedFlags
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return flags, nil
		}
		return flags, err
	}
	if err := json.Unmarshal(data, &flags); err != nil {
		return flags, fmt.Errorf("failed to parse session file: %w", err)
	}
	return flags, nil
}

func (s *FSFlagStore) saveLocked(flags authflow.PersistedFlags) error {
	data, err := json.MarshalIndent(flags, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session flags: %w", err)
	}
	return writeAtomicFile(s.path, data)
}
