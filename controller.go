package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/nutrijel/authflow/metrics"
)

// Attempt is the state of the current submit-to-resolution cycle.
// An empty ErrorMessage means there is nothing to show.
type Attempt struct {
	InFlight     bool   `json:"inFlight"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithConfig replaces the default configuration. Zero fields keep their defaults.
func WithConfig(cfg Config) ControllerOption {
	return func(c *Controller) {
		c.cfg = cfg.EnsureDefaults()
	}
}

// WithClock sets the clock used to delay navigation (a fake clock in tests)
func WithClock(clock clockwork.Clock) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger raw provider failures are recorded to
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a function called with a snapshot after every
// Attempt change. Observers run on the submitting goroutine, outside the
// controller's lock, one at a time and in the order the changes were made.
// A snapshot superseded by a newer one before it could be delivered is
// skipped. Observers may read the controller but must not submit.
func WithObserver(fn func(Attempt)) ControllerOption {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// Controller drives credential submission: it validates, calls the identity
// provider, and fans the outcome out to the session store, the notifier and
// a delayed navigation. At most one attempt is in flight at a time.
type Controller struct {
	mu          sync.Mutex
	attempt     Attempt
	closed      bool
	pending     map[uint64]clockwork.Timer
	nextTimerID uint64
	version     uint64

	observeMu    sync.Mutex
	lastObserved uint64

	provider  IdentityProvider
	store     SessionStore
	notifier  Notifier
	navigator Navigator
	clock     clockwork.Clock
	logger    *slog.Logger
	cfg       Config
	observers []func(Attempt)
}

// NewController creates a controller. A nil notifier logs notifications instead.
func NewController(provider IdentityProvider, store SessionStore, notifier Notifier, navigator Navigator, opts ...ControllerOption) *Controller {
	c := &Controller{
		pending:   make(map[uint64]clockwork.Timer),
		provider:  provider,
		store:     store,
		notifier:  notifier,
		navigator: navigator,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = &LogNotifier{Logger: c.logger}
	}
	return c
}

// Attempt returns a snapshot of the current attempt
func (c *Controller) Attempt() Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Config returns the effective configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// Submit creates a password account from the draft.
//
// It returns ErrAttemptInFlight without touching any state when another
// attempt has not resolved yet, a *ValidationError when the draft fails local
// checks (no provider call is made), and a *ProviderError when the provider
// rejects the request. On success the session flags are persisted, a success
// notification is emitted and navigation to the landing route is scheduled.
func (c *Controller) Submit(ctx context.Context, d Draft) error {
	c.mu.Lock()
	if err := c.checkAcceptingLocked(PathPassword); err != nil {
		c.mu.Unlock()
		return err
	}
	if verr := Validate(d); verr != nil {
		c.attempt.ErrorMessage = verr.Error()
		snap, version := c.snapshotLocked()
		c.mu.Unlock()
		metrics.AttemptsTotal.WithLabelValues(string(PathPassword), metrics.OutcomeInvalid).Inc()
		c.observe(snap, version)
		return verr
	}
	c.startLocked()

	return c.run(ctx, PathPassword, "local",
		func(ctx context.Context) (*Session, error) {
			return c.provider.CreateAccount(ctx, d.Email, d.Password, d.DisplayName)
		},
		c.cfg.Messages.SignupSuccess,
		c.cfg.Messages.SignupFailed,
	)
}

// SubmitFederated signs in through a third-party provider. An empty provider
// selects the configured default. It follows the same state machine as
// Submit but has no local checks.
func (c *Controller) SubmitFederated(ctx context.Context, provider string) error {
	if provider == "" {
		provider = c.cfg.FederatedProvider
	}

	c.mu.Lock()
	if err := c.checkAcceptingLocked(PathFederated); err != nil {
		c.mu.Unlock()
		return err
	}
	c.startLocked()

	name := ProviderDisplayName(provider)
	return c.run(ctx, PathFederated, provider,
		func(ctx context.Context) (*Session, error) {
			return c.provider.FederatedSignIn(ctx, provider)
		},
		withProvider(c.cfg.Messages.FederatedSuccess, name),
		withProvider(c.cfg.Messages.FederatedFailed, name),
	)
}

// Close cancels navigations that have not fired yet. Later submits return ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.pending {
		t.Stop()
		delete(c.pending, id)
	}
	return nil
}

// Caller must hold c.mu
func (c *Controller) checkAcceptingLocked(path Path) error {
	if c.closed {
		return ErrClosed
	}
	if c.attempt.InFlight {
		metrics.RejectedSubmitsTotal.WithLabelValues(string(path)).Inc()
		return ErrAttemptInFlight
	}
	return nil
}

// startLocked marks the attempt in flight and releases c.mu
func (c *Controller) startLocked() {
	c.attempt = Attempt{InFlight: true}
	snap, version := c.snapshotLocked()
	c.mu.Unlock()
	c.observe(snap, version)
}

// errProviderPanic marks a provider call that panicked instead of returning
var errProviderPanic = errors.New("identity provider panicked")

// callProvider runs call and turns a panic into an error so the attempt
// still resolves
func callProvider(ctx context.Context, call func(context.Context) (*Session, error)) (session *Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			session, err = nil, fmt.Errorf("%w: %v", errProviderPanic, r)
		}
	}()
	return call(ctx)
}

func (c *Controller) run(ctx context.Context, path Path, provider string, call func(context.Context) (*Session, error), successMsg, failMsg string) error {
	metrics.AttemptsInFlight.Inc()
	start := c.clock.Now()

	session, err := callProvider(ctx, call)
	if err == nil && session == nil {
		err = NewAuthError(ErrCodeProviderRejected, "")
	}
	persistFailed := false
	if err == nil {
		if err = c.store.MarkAuthenticated(ctx); err != nil {
			persistFailed = true
		}
	}

	metrics.AttemptDuration.WithLabelValues(string(path)).Observe(c.clock.Since(start).Seconds())
	metrics.AttemptsInFlight.Dec()

	if err != nil {
		msg := failMsg
		if !persistFailed && !errors.Is(err, errProviderPanic) {
			msg = userMessage(err, failMsg)
		}
		c.logger.Error("sign-in attempt failed", "path", path, "provider", provider, "persist_failed", persistFailed, "err", err)
		c.notifier.Notify(c.notification(NotifyError, msg))
		c.finish(Attempt{ErrorMessage: msg}, false)
		metrics.AttemptsTotal.WithLabelValues(string(path), metrics.OutcomeFailure).Inc()
		return &ProviderError{Path: path, Provider: provider, Message: msg, Err: err}
	}

	c.logger.Info("sign-in attempt succeeded", "path", path, "provider", provider, "user_id", session.UserID)
	c.notifier.Notify(c.notification(NotifySuccess, successMsg))
	c.finish(Attempt{}, true)
	metrics.AttemptsTotal.WithLabelValues(string(path), metrics.OutcomeSuccess).Inc()
	return nil
}

// finish resolves the attempt. The in-flight reset and the navigation timer
// registration share one critical section so the reset always comes first.
func (c *Controller) finish(next Attempt, navigate bool) {
	c.mu.Lock()
	c.attempt = next
	if navigate && !c.closed {
		c.scheduleNavigationLocked()
	}
	snap, version := c.snapshotLocked()
	c.mu.Unlock()
	c.observe(snap, version)
}

// Caller must hold c.mu
func (c *Controller) snapshotLocked() (Attempt, uint64) {
	c.version++
	return c.attempt, c.version
}

// Caller must hold c.mu
func (c *Controller) scheduleNavigationLocked() {
	id := c.nextTimerID
	c.nextTimerID++
	route := c.cfg.LandingRoute
	c.pending[id] = c.clock.AfterFunc(c.cfg.NavigationDelay, func() {
		c.mu.Lock()
		_, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			c.navigator.NavigateTo(route)
		}
	})
}

func (c *Controller) notification(kind NotificationKind, msg string) Notification {
	return Notification{
		Kind:      kind,
		Message:   msg,
		Duration:  c.cfg.NotificationDuration,
		Placement: c.cfg.Placement,
		Style:     StyleFor(kind),
	}
}

func (c *Controller) observe(a Attempt, version uint64) {
	if len(c.observers) == 0 {
		return
	}
	c.observeMu.Lock()
	defer c.observeMu.Unlock()
	if version <= c.lastObserved {
		return
	}
	c.lastObserved = version
	for _, fn := range c.observers {
		fn(a)
	}
}

func withProvider(tmpl, name string) string {
	return strings.ReplaceAll(tmpl, "%s", name)
}
