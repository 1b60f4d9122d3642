package authflow

import (
	"fmt"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted before submission
const MinPasswordLength = 6

// Field names a single input of the sign-up form
type Field string

const (
	FieldDisplayName     Field = "displayName"
	FieldEmail           Field = "email"
	FieldPassword        Field = "password"
	FieldConfirmPassword Field = "confirmPassword"
)

// Draft holds the not-yet-submitted sign-up form values
type Draft struct {
	DisplayName     string `json:"displayName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// With returns a copy of d with exactly one field replaced
func (d Draft) With(field Field, value string) (Draft, error) {
	switch field {
	case FieldDisplayName:
		d.DisplayName = value
	case FieldEmail:
		d.Email = value
	case FieldPassword:
		d.Password = value
	case FieldConfirmPassword:
		d.ConfirmPassword = value
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return d, nil
}

// Validate checks the draft before anything is sent to the identity provider.
// Rules run in order and the first failure is returned, so a mismatch is
// reported even when the password is also too short. Email and display name
// are left to the provider.
func Validate(d Draft) error {
	if d.Password != d.ConfirmPassword {
		return &ValidationError{
			Code:    ErrCodePasswordMismatch,
			Message: "Passwords do not match",
			Field:   string(FieldConfirmPassword),
		}
	}
	if utf8.RuneCountInString(d.Password) < MinPasswordLength {
		return &ValidationError{
			Code:    ErrCodeWeakPassword,
			Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
			Field:   string(FieldPassword),
		}
	}
	return nil
}
