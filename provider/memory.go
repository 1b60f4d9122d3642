package provider

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nutrijel/authflow"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Account is a password account held by MemoryProvider
type Account struct {
	UserID       string
	Email        string
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time
}

// MemoryProvider is an in-process identity provider for development and
// tests. It enforces the checks a real provider would: email format,
// minimum password length and unique emails.
type MemoryProvider struct {
	mu        sync.RWMutex
	accounts  map[string]*Account
	federated map[string]authflow.Session

	// MinPasswordLength defaults to authflow.MinPasswordLength
	MinPasswordLength int
}

// NewMemoryProvider creates an empty provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		accounts:  make(map[string]*Account),
		federated: make(map[string]authflow.Session),
	}
}

// AddFederatedIdentity registers the identity a federated provider will
// report for the next sign-ins through it
func (m *MemoryProvider) AddFederatedIdentity(provider string, identity authflow.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.federated[strings.ToLower(provider)] = identity
}

func (m *MemoryProvider) CreateAccount(ctx context.Context, email, password, displayName string) (*authflow.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return nil, authflow.NewAuthError(authflow.ErrCodeInvalidEmail, "Invalid email address")
	}
	minLen := m.MinPasswordLength
	if minLen <= 0 {
		minLen = authflow.MinPasswordLength
	}
	if len(password) < minLen {
		return nil, authflow.NewAuthError(authflow.ErrCodeWeakPassword, fmt.Sprintf("Password should be at least %d characters", minLen))
	}

	key := strings.ToLower(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[key]; exists {
		return nil, authflow.NewAuthError(authflow.ErrCodeEmailExists, "Email already in use")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &Account{
		UserID:       uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.accounts[key] = account
	slog.Info("created local user", "user_id", account.UserID, "email", email)

	return &authflow.Session{
		UserID:      account.UserID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Provider:    "local",
	}, nil
}

func (m *MemoryProvider) FederatedSignIn(ctx context.Context, provider string) (*authflow.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	identity, ok := m.federated[strings.ToLower(provider)]
	m.mu.RUnlock()
	if !ok {
		return nil, authflow.NewAuthError(authflow.ErrCodeUnknownProvider,
			fmt.Sprintf("%s sign-in is not available", authflow.ProviderDisplayName(provider)))
	}
	if identity.UserID == "" {
		identity.UserID = uuid.NewString()
	}
	identity.Provider = strings.ToLower(provider)
	return &identity, nil
}

// Authenticate checks a password against a stored account
func (m *MemoryProvider) Authenticate(email, password string) (*Account, error) {
	m.mu.RLock()
	account, ok := m.accounts[strings.ToLower(strings.TrimSpace(email))]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return account, nil
}

// Account returns the stored account for email
func (m *MemoryProvider) Account(email string) (*Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[strings.ToLower(strings.TrimSpace(email))]
	return a, ok
}
