package authflow

import (
	"context"
	"sync"
)

// FormState is a point-in-time view of the sign-up form
type FormState struct {
	Draft               Draft
	ShowPassword        bool
	ShowConfirmPassword bool
	Submitting          bool
	ErrorMessage        string
}

// Form holds the draft and the reveal toggles, and hands submissions to a
// Controller. The draft is replaced wholesale on every change so readers
// never observe a partially written value.
type Form struct {
	mu                  sync.RWMutex
	draft               Draft
	showPassword        bool
	showConfirmPassword bool
	controller          *Controller
}

// NewForm creates an empty form bound to a controller
func NewForm(controller *Controller) *Form {
	return &Form{controller: controller}
}

// SetField replaces one field of the draft, leaving the others untouched
func (f *Form) SetField(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := f.draft.With(field, value)
	if err != nil {
		return err
	}
	f.draft = next
	return nil
}

// Draft returns a copy of the current draft
func (f *Form) Draft() Draft {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.draft
}

// TogglePasswordVisibility flips whether the password is shown in clear text
func (f *Form) TogglePasswordVisibility() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showPassword = !f.showPassword
	return f.showPassword
}

// ToggleConfirmPasswordVisibility flips whether the confirmation is shown in clear text
func (f *Form) ToggleConfirmPasswordVisibility() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showConfirmPassword = !f.showConfirmPassword
	return f.showConfirmPassword
}

// State combines the form fields with the controller's attempt
func (f *Form) State() FormState {
	f.mu.RLock()
	s := FormState{
		Draft:               f.draft,
		ShowPassword:        f.showPassword,
		ShowConfirmPassword: f.showConfirmPassword,
	}
	f.mu.RUnlock()

	if f.controller != nil {
		a := f.controller.Attempt()
		s.Submitting = a.InFlight
		s.ErrorMessage = a.ErrorMessage
	}
	return s
}

// Submit sends the current draft through the controller
func (f *Form) Submit(ctx context.Context) error {
	return f.controller.Submit(ctx, f.Draft())
}

// SubmitFederated starts federated sign-in through the controller
func (f *Form) SubmitFederated(ctx context.Context, provider string) error {
	return f.controller.SubmitFederated(ctx, provider)
}
