package authflow

import (
	"context"
	"time"
)

// Keys written by SessionStore implementations
const (
	KeyAuthenticated = "isAuthenticated"
	KeyExploring     = "isExploring"
)

// Session is what an identity provider hands back on success.
// The controller only cares that one exists.
type Session struct {
	UserID      string    `json:"user_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// PersistedFlags are the durable client-side markers of authentication state
type PersistedFlags struct {
	IsAuthenticated bool `json:"isAuthenticated"`
	IsExploring     bool `json:"isExploring"`
}

// IdentityProvider creates accounts and performs federated sign-in
type IdentityProvider interface {
	// CreateAccount registers a password account. Rejections are reported
	// as *AuthError.
	CreateAccount(ctx context.Context, email, password, displayName string) (*Session, error)

	// FederatedSignIn delegates authentication to a third-party provider
	// such as "google" or "github".
	FederatedSignIn(ctx context.Context, provider string) (*Session, error)
}

// SessionStore persists the authentication flags
type SessionStore interface {
	// MarkAuthenticated sets isAuthenticated and clears isExploring in one step
	MarkAuthenticated(ctx context.Context) error

	// Flags returns the currently persisted flags
	Flags(ctx context.Context) (PersistedFlags, error)
}

// Navigator moves the user to another route
type Navigator interface {
	NavigateTo(route string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route string)

func (f NavigatorFunc) NavigateTo(route string) { f(route) }
