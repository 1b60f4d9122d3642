package authflow

import (
	"errors"
	"fmt"
)

// Error codes for locally detected problems
const (
	ErrCodePasswordMismatch = "password_mismatch"
	ErrCodeWeakPassword     = "weak_password"
)

// Error codes identity providers commonly report
const (
	ErrCodeEmailExists      = "email_exists"
	ErrCodeInvalidEmail     = "invalid_email"
	ErrCodeProviderRejected = "provider_rejected"
	ErrCodeUnknownProvider  = "unknown_provider"
	ErrCodeStateMismatch    = "state_mismatch"
)

var (
	// ErrAttemptInFlight is returned when a submit arrives while another attempt
	// is still waiting on the identity provider. Nothing is changed.
	ErrAttemptInFlight = errors.New("authflow: attempt already in flight")

	// ErrClosed is returned by submits after the controller has been closed.
	ErrClosed = errors.New("authflow: controller closed")

	// ErrUnknownField is returned by Form.SetField for names outside the draft.
	ErrUnknownField = errors.New("authflow: unknown form field")
)

// AuthError is how identity providers report a rejected request.
// Message is meant for the user and may be empty.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

// NewAuthError creates an AuthError
func NewAuthError(code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// ValidationError is a locally detected problem with the draft.
// It never reaches the identity provider.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Path names which submission path an attempt took.
type Path string

const (
	PathPassword  Path = "password"
	PathFederated Path = "federated"
)

// ProviderError wraps a failed identity provider call. Message is the exact
// text shown inline and in the error notification.
type ProviderError struct {
	Path     Path
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s sign-in failed: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("%s sign-in failed: %s: %v", e.Path, e.Message, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// userMessage derives the text to show for a provider failure.
// An AuthError contributes its Message, anything else its Error() text;
// blank results fall back to def.
func userMessage(err error, def string) string {
	if err == nil {
		return def
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		if authErr.Message != "" {
			return authErr.Message
		}
		return def
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return def
}
