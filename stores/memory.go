// Package stores provides SessionStore implementations for authflow.
//
// MemoryFlagStore keeps flags for the life of the process and is what tests
// use. FSFlagStore keeps them in a JSON file so they survive restarts, the
// way a browser's local storage survives reloads. Subpackages back the same
// interface with an HTTP session (scsstore), Redis (redisstore) and BoltDB
// (boltstore).
package stores

import (
	"context"
	"sync"

	"github.com/nutrijel/authflow"
)

// MemoryFlagStore is an in-process SessionStore
type MemoryFlagStore struct {
	mu     sync.RWMutex
	flags  authflow.PersistedFlags
	writes int
}

// NewMemoryFlagStore creates a store seeded with the given flags
func NewMemoryFlagStore(initial authflow.PersistedFlags) *MemoryFlagStore {
	return &MemoryFlagStore{flags: initial}
}

func (s *MemoryFlagStore) MarkAuthenticated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = authflow.PersistedFlags{IsAuthenticated: true, IsExploring: false}
	s.writes++
	return nil
}

func (s *MemoryFlagStore) Flags(ctx context.Context) (authflow.PersistedFlags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags, nil
}

// SetExploring marks the visitor as browsing without an account
func (s *MemoryFlagStore) SetExploring(ctx context.Context, exploring bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.IsExploring = exploring
	s.writes++
	return nil
}

// Writes counts how many times the flags were written
func (s *MemoryFlagStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
