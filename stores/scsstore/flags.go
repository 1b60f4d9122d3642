// Package scsstore keeps authflow session flags in an scs HTTP session.
//
// The context passed to each call must carry a loaded session, either from
// SessionManager.LoadAndSave middleware or an explicit SessionManager.Load.
package scsstore

import (
	"context"

	"github.com/alexedwards/scs/v2"
	"github.com/nutrijel/authflow"
)

// FlagStore implements authflow.SessionStore on top of an scs.SessionManager
type FlagStore struct {
	Session *scs.SessionManager
}

// New creates a FlagStore. A nil manager gets scs defaults (in-memory store).
func New(session *scs.SessionManager) *FlagStore {
	if session == nil {
		session = scs.New()
	}
	return &FlagStore{Session: session}
}

// MarkAuthenticated writes both keys into the same session, so they are
// committed together
func (s *FlagStore) MarkAuthenticated(ctx context.Context) error {
	s.Session.Put(ctx, authflow.KeyAuthenticated, true)
	s.Session.Remove(ctx, authflow.KeyExploring)
	return nil
}

func (s *FlagStore) Flags(ctx context.Context) (authflow.PersistedFlags, error) {
	return authflow.PersistedFlags{
		IsAuthenticated: s.Session.GetBool(ctx, authflow.KeyAuthenticated),
		IsExploring:     s.Session.GetBool(ctx, authflow.KeyExploring),
	}, nil
}

// SetExploring marks the visitor as browsing without an account
func (s *FlagStore) SetExploring(ctx context.Context, exploring bool) error {
	if exploring {
		s.Session.Put(ctx, authflow.KeyExploring, true)
	} else {
		s.Session.Remove(ctx, authflow.KeyExploring)
	}
	return nil
}
