// Package authflow drives the sign-up step of an application: a visitor fills
// in a credentials form or picks a federated provider, and the package turns
// that into exactly one identity provider call, a persisted session, a
// notification and a delayed move to the landing route.
//
// # Architecture
//
// Form: the draft (display name, email, password, confirmation) and the two
// password reveal toggles. Every edit replaces the draft wholesale.
//
// Controller: the submission state machine. It validates the draft, calls the
// IdentityProvider, and on success writes the session flags, emits a success
// Notification and schedules navigation. On failure it keeps the provider's
// message (or a default) for inline display and emits an error Notification.
// Only one attempt is in flight at a time; submits that arrive meanwhile
// return ErrAttemptInFlight and change nothing.
//
// Collaborators are interfaces so each deployment can bring its own:
//
//   - IdentityProvider creates password accounts and runs federated sign-in
//     (see the provider package for HTTP and OAuth2 implementations)
//   - SessionStore persists isAuthenticated and isExploring
//     (see stores, stores/scsstore, stores/redisstore, stores/boltstore)
//   - Notifier shows transient messages
//   - Navigator moves the user to a route
//
// # Basic Usage
//
//	store, _ := stores.NewFSFlagStore("", "Nutrijel")
//	idp := provider.New(
//	    provider.NewAccountClient("https://auth.example.com"),
//	    provider.NewFederatedClient(authorize, provider.GoogleConfig("", "", "")),
//	)
//
//	ctrl := authflow.NewController(idp, store, notifier, navigator)
//	defer ctrl.Close()
//
//	form := authflow.NewForm(ctrl)
//	form.SetField(authflow.FieldEmail, "ayu@example.com")
//	...
//	if err := form.Submit(ctx); err != nil {
//	    // form.State().ErrorMessage holds the text to show
//	}
//
// # Validation
//
// Drafts are checked locally before any network call, in this order:
//
//  1. Password and confirmation must match ("Passwords do not match")
//  2. Password must be at least MinPasswordLength characters
//
// Email format and uniqueness are left to the identity provider. Federated
// sign-in skips local validation entirely.
//
// # Configuration
//
// Timing, landing route, notification placement and texts live in Config.
// LoadConfig reads AUTHFLOW_* environment variables (and a .env file when
// present) on top of DefaultConfig.
package authflow
