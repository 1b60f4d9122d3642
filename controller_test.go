package authflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nutrijel/authflow"
	"github.com/nutrijel/authflow/metrics"
	"github.com/nutrijel/authflow/stores"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider lets each test decide how the identity provider answers
type fakeProvider struct {
	createCalls    atomic.Int32
	federatedCalls atomic.Int32
	create         func(ctx context.Context, email, password, displayName string) (*authflow.Session, error)
	federated      func(ctx context.Context, provider string) (*authflow.Session, error)
}

func (p *fakeProvider) CreateAccount(ctx context.Context, email, password, displayName string) (*authflow.Session, error) {
	p.createCalls.Add(1)
	if p.create == nil {
		return &authflow.Session{UserID: "u-1", Email: email, DisplayName: displayName}, nil
	}
	return p.create(ctx, email, password, displayName)
}

func (p *fakeProvider) FederatedSignIn(ctx context.Context, provider string) (*authflow.Session, error) {
	p.federatedCalls.Add(1)
	if p.federated == nil {
		return &authflow.Session{UserID: "u-2", Provider: provider}, nil
	}
	return p.federated(ctx, provider)
}

// recorder collects notifications and navigations in the order they happen
type recorder struct {
	mu            sync.Mutex
	events        []string
	notifications []authflow.Notification
	routes        chan string
}

func newRecorder() *recorder {
	return &recorder{routes: make(chan string, 8)}
}

func (r *recorder) Notify(n authflow.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "notify:"+string(n.Kind))
	r.notifications = append(r.notifications, n)
}

func (r *recorder) NavigateTo(route string) {
	r.mu.Lock()
	r.events = append(r.events, "navigate:"+route)
	r.mu.Unlock()
	r.routes <- route
}

func (r *recorder) Notifications() []authflow.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]authflow.Notification(nil), r.notifications...)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) navigated() bool {
	return len(r.routes) > 0
}

// fakeClock is the part of clockwork's fake clock the tests drive
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type harness struct {
	provider *fakeProvider
	store    *stores.MemoryFlagStore
	rec      *recorder
	clock    fakeClock
	ctrl     *authflow.Controller

	mu     sync.Mutex
	states []authflow.Attempt
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider: &fakeProvider{},
		store:    stores.NewMemoryFlagStore(authflow.PersistedFlags{IsExploring: true}),
		rec:      newRecorder(),
		clock:    clockwork.NewFakeClock(),
	}
	h.ctrl = authflow.NewController(h.provider, h.store, h.rec, h.rec,
		authflow.WithClock(h.clock),
		authflow.WithObserver(func(a authflow.Attempt) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.states = append(h.states, a)
		}),
	)
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

func (h *harness) States() []authflow.Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]authflow.Attempt(nil), h.states...)
}

func (h *harness) flags(t *testing.T) authflow.PersistedFlags {
	t.Helper()
	flags, err := h.store.Flags(context.Background())
	require.NoError(t, err)
	return flags
}

func validDraft() authflow.Draft {
	return authflow.Draft{
		DisplayName:     "Ayu",
		Email:           "ayu@example.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	}
}

func TestSubmit_InvalidDraftNeverReachesProvider(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		wantCode string
		wantMsg  string
	}{
		{"mismatch", "abcdef", "abcxyz", authflow.ErrCodePasswordMismatch, "Passwords do not match"},
		{"mismatch wins over length", "ab", "xy", authflow.ErrCodePasswordMismatch, "Passwords do not match"},
		{"too short", "ab", "ab", authflow.ErrCodeWeakPassword, "Password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			before := testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("password", metrics.OutcomeInvalid))

			d := validDraft()
			d.Password, d.ConfirmPassword = tt.password, tt.confirm
			err := h.ctrl.Submit(context.Background(), d)

			var verr *authflow.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantCode, verr.Code)
			assert.Equal(t, tt.wantMsg, verr.Message)

			assert.Equal(t, authflow.Attempt{ErrorMessage: tt.wantMsg}, h.ctrl.Attempt())
			assert.Equal(t, []authflow.Attempt{{ErrorMessage: tt.wantMsg}}, h.States(), "in-flight must never be set")
			assert.Zero(t, h.provider.createCalls.Load())
			assert.Empty(t, h.rec.Notifications())
			assert.Equal(t, authflow.PersistedFlags{IsExploring: true}, h.flags(t))
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("password", metrics.OutcomeInvalid)))
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	h := newHarness(t)
	var got [3]string
	h.provider.create = func(ctx context.Context, email, password, displayName string) (*authflow.Session, error) {
		got = [3]string{email, password, displayName}
		return &authflow.Session{UserID: "u-1"}, nil
	}

	require.NoError(t, h.ctrl.Submit(context.Background(), validDraft()))

	assert.Equal(t, [3]string{"ayu@example.com", "secret123", "Ayu"}, got)
	assert.Equal(t, authflow.PersistedFlags{IsAuthenticated: true, IsExploring: false}, h.flags(t))
	assert.Equal(t, []authflow.Attempt{{InFlight: true}, {}}, h.States())

	notes := h.rec.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, authflow.NotifySuccess, notes[0].Kind)
	assert.Equal(t, "Registration successful! Welcome to Nutrijel!", notes[0].Message)
	assert.Equal(t, 5000*time.Millisecond, notes[0].Duration)
	assert.Equal(t, "top-center", notes[0].Placement)
	assert.Equal(t, authflow.SuccessStyle, notes[0].Style)

	// Navigation waits for the delay
	assert.False(t, h.rec.navigated())
	h.clock.Advance(1499 * time.Millisecond)
	assert.Never(t, h.rec.navigated, 50*time.Millisecond, 5*time.Millisecond)

	h.clock.Advance(time.Millisecond)
	select {
	case route := <-h.rec.routes:
		assert.Equal(t, "/home", route)
	case <-time.After(time.Second):
		t.Fatal("navigation did not fire")
	}

	// Exactly once
	h.clock.Advance(time.Hour)
	assert.Never(t, h.rec.navigated, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []string{"notify:success", "navigate:/home"}, h.rec.Events())
}

func TestSubmit_ProviderRejects(t *testing.T) {
	h := newHarness(t)
	h.provider.create = func(ctx context.Context, email, password, displayName string) (*authflow.Session, error) {
		return nil, authflow.NewAuthError(authflow.ErrCodeEmailExists, "Email already in use")
	}

	err := h.ctrl.Submit(context.Background(), validDraft())

	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, authflow.PathPassword, perr.Path)
	assert.Equal(t, "Email already in use", perr.Message)
	var authErr *authflow.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, authflow.ErrCodeEmailExists, authErr.Code)

	assert.Equal(t, []authflow.Attempt{{InFlight: true}, {ErrorMessage: "Email already in use"}}, h.States())

	notes := h.rec.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, authflow.NotifyError, notes[0].Kind)
	assert.Equal(t, h.ctrl.Attempt().ErrorMessage, notes[0].Message)
	assert.Equal(t, 5000*time.Millisecond, notes[0].Duration)
	assert.Equal(t, authflow.ErrorStyle, notes[0].Style)

	assert.Equal(t, authflow.PersistedFlags{IsExploring: true}, h.flags(t))
	assert.Zero(t, h.store.Writes())

	h.clock.Advance(time.Hour)
	assert.Never(t, h.rec.navigated, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSubmit_DefaultMessages(t *testing.T) {
	tests := []struct {
		name      string
		federated bool
		err       error
		session   *authflow.Session
		want      string
	}{
		{"auth error without message", false, authflow.NewAuthError("internal", ""), nil, "Failed to create account. Please try again."},
		{"blank error", false, errors.New(""), nil, "Failed to create account. Please try again."},
		{"no session", false, nil, nil, "Failed to create account. Please try again."},
		{"plain error keeps its text", false, errors.New("network down"), nil, "network down"},
		{"federated without message", true, authflow.NewAuthError("popup_closed", ""), nil, "Failed to sign in with Google. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.provider.create = func(context.Context, string, string, string) (*authflow.Session, error) {
				return tt.session, tt.err
			}
			h.provider.federated = func(context.Context, string) (*authflow.Session, error) {
				return tt.session, tt.err
			}

			var err error
			if tt.federated {
				err = h.ctrl.SubmitFederated(context.Background(), "")
			} else {
				err = h.ctrl.Submit(context.Background(), validDraft())
			}

			var perr *authflow.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Message)
			assert.Equal(t, tt.want, h.ctrl.Attempt().ErrorMessage)
			notes := h.rec.Notifications()
			require.Len(t, notes, 1)
			assert.Equal(t, tt.want, notes[0].Message)
		})
	}
}

func TestSubmitFederated_Success(t *testing.T) {
	h := newHarness(t)
	var asked string
	h.provider.federated = func(ctx context.Context, provider string) (*authflow.Session, error) {
		asked = provider
		return &authflow.Session{UserID: "g-1", Provider: provider}, nil
	}

	require.NoError(t, h.ctrl.SubmitFederated(context.Background(), ""))

	assert.Equal(t, "google", asked)
	assert.Zero(t, h.provider.createCalls.Load(), "federated path skips account creation")
	assert.Equal(t, authflow.PersistedFlags{IsAuthenticated: true}, h.flags(t))
	assert.Equal(t, []authflow.Attempt{{InFlight: true}, {}}, h.States())

	notes := h.rec.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Signed in with Google! Welcome to Nutrijel!", notes[0].Message)

	h.clock.Advance(1500 * time.Millisecond)
	select {
	case route := <-h.rec.routes:
		assert.Equal(t, "/home", route)
	case <-time.After(time.Second):
		t.Fatal("navigation did not fire")
	}
}

func TestSubmitFederated_SkipsValidation(t *testing.T) {
	h := newHarness(t)
	form := authflow.NewForm(h.ctrl)
	require.NoError(t, form.SetField(authflow.FieldPassword, "ab"))

	require.NoError(t, form.SubmitFederated(context.Background(), "github"))
	assert.Equal(t, int32(1), h.provider.federatedCalls.Load())
}

func TestSubmit_RejectsWhileInFlight(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.provider.create = func(ctx context.Context, email, password, displayName string) (*authflow.Session, error) {
		close(entered)
		<-release
		return &authflow.Session{UserID: "u-1"}, nil
	}
	rejectedBefore := testutil.ToFloat64(metrics.RejectedSubmitsTotal.WithLabelValues("password"))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- h.ctrl.Submit(context.Background(), validDraft())
	}()
	<-entered

	assert.Equal(t, authflow.Attempt{InFlight: true}, h.ctrl.Attempt())

	// A different, even invalid, draft is ignored rather than validated
	bad := validDraft()
	bad.ConfirmPassword = "other"
	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), bad), authflow.ErrAttemptInFlight)
	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), validDraft()), authflow.ErrAttemptInFlight)
	assert.ErrorIs(t, h.ctrl.SubmitFederated(context.Background(), "google"), authflow.ErrAttemptInFlight)
	assert.Equal(t, authflow.Attempt{InFlight: true}, h.ctrl.Attempt())
	assert.Equal(t, rejectedBefore+2, testutil.ToFloat64(metrics.RejectedSubmitsTotal.WithLabelValues("password")))

	close(release)
	require.NoError(t, <-firstDone)

	assert.Equal(t, int32(1), h.provider.createCalls.Load())
	assert.Zero(t, h.provider.federatedCalls.Load())
	assert.Len(t, h.rec.Notifications(), 1)
	assert.Equal(t, []authflow.Attempt{{InFlight: true}, {}}, h.States())

	h.clock.Advance(1500 * time.Millisecond)
	require.Eventually(t, h.rec.navigated, time.Second, 5*time.Millisecond)
	<-h.rec.routes
	assert.Never(t, h.rec.navigated, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSubmit_ConcurrentCallersOnlyOneReachesProvider(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.provider.create = func(ctx context.Context, email, password, displayName string) (*authflow.Session, error) {
		<-release
		return &authflow.Session{UserID: "u-1"}, nil
	}

	const callers = 20
	var wg sync.WaitGroup
	var rejected atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if errors.Is(h.ctrl.Submit(context.Background(), validDraft()), authflow.ErrAttemptInFlight) {
				rejected.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return rejected.Load() == callers-1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), h.provider.createCalls.Load())
}

func TestSubmit_InFlightClearedBeforeNavigation(t *testing.T) {
	h := newHarness(t)
	inFlightAtNavigation := make(chan bool, 1)
	ctrlRef := h.ctrl
	nav := authflow.NavigatorFunc(func(route string) {
		inFlightAtNavigation <- ctrlRef.Attempt().InFlight
	})
	h.ctrl = authflow.NewController(h.provider, h.store, h.rec, nav,
		authflow.WithClock(h.clock),
		authflow.WithConfig(authflow.Config{NavigationDelay: time.Millisecond}),
	)
	ctrlRef = h.ctrl
	defer h.ctrl.Close()

	require.NoError(t, h.ctrl.Submit(context.Background(), validDraft()))

	// The form is interactive again while navigation is still pending
	assert.False(t, h.ctrl.Attempt().InFlight)
	require.NoError(t, h.ctrl.Submit(context.Background(), validDraft()))
	assert.Equal(t, int32(2), h.provider.createCalls.Load())

	h.clock.Advance(time.Millisecond)
	for i := 0; i < 2; i++ {
		select {
		case inFlight := <-inFlightAtNavigation:
			assert.False(t, inFlight)
		case <-time.After(time.Second):
			t.Fatal("navigation did not fire")
		}
	}
}

func TestSubmit_StoreFailureIsAFailedAttempt(t *testing.T) {
	h := newHarness(t)
	h.ctrl = authflow.NewController(h.provider, failingStore{}, h.rec, h.rec, authflow.WithClock(h.clock))
	defer h.ctrl.Close()

	err := h.ctrl.Submit(context.Background(), validDraft())

	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Failed to create account. Please try again.", perr.Message)
	assert.ErrorIs(t, err, errStoreDown)
	assert.False(t, h.ctrl.Attempt().InFlight)

	h.clock.Advance(time.Hour)
	assert.Never(t, h.rec.navigated, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSubmit_PanickingProviderIsAFailedAttempt(t *testing.T) {
	h := newHarness(t)
	h.provider.create = func(context.Context, string, string, string) (*authflow.Session, error) {
		panic("nil account client")
	}
	inFlightBefore := testutil.ToFloat64(metrics.AttemptsInFlight)

	err := h.ctrl.Submit(context.Background(), validDraft())

	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Failed to create account. Please try again.", perr.Message)
	assert.ErrorContains(t, err, "nil account client")
	assert.Equal(t, authflow.Attempt{ErrorMessage: perr.Message}, h.ctrl.Attempt())
	assert.Equal(t, inFlightBefore, testutil.ToFloat64(metrics.AttemptsInFlight))

	notes := h.rec.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, authflow.NotifyError, notes[0].Kind)
	assert.Equal(t, perr.Message, notes[0].Message)
	assert.Zero(t, h.store.Writes())

	// The form is usable again
	h.provider.create = nil
	require.NoError(t, h.ctrl.Submit(context.Background(), validDraft()))
	assert.Equal(t, int32(2), h.provider.createCalls.Load())
}

func TestSubmitFederated_ProviderRejects(t *testing.T) {
	h := newHarness(t)
	h.provider.federated = func(ctx context.Context, provider string) (*authflow.Session, error) {
		return nil, authflow.NewAuthError("access_denied", "You declined access")
	}

	err := h.ctrl.SubmitFederated(context.Background(), "github")

	var perr *authflow.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, authflow.PathFederated, perr.Path)
	assert.Equal(t, "github", perr.Provider)
	assert.Equal(t, "You declined access", perr.Message)
	assert.Equal(t, []authflow.Attempt{{InFlight: true}, {ErrorMessage: "You declined access"}}, h.States())

	notes := h.rec.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, authflow.NotifyError, notes[0].Kind)
	assert.Equal(t, authflow.ErrorStyle, notes[0].Style)

	assert.Equal(t, authflow.PersistedFlags{IsExploring: true}, h.flags(t))
	assert.Zero(t, h.store.Writes())

	h.clock.Advance(time.Hour)
	assert.Never(t, h.rec.navigated, 50*time.Millisecond, 5*time.Millisecond)
}

func TestObservers_LastSnapshotMatchesController(t *testing.T) {
	for round := 0; round < 20; round++ {
		h := newHarness(t)
		h.provider.create = func(context.Context, string, string, string) (*authflow.Session, error) {
			time.Sleep(time.Millisecond)
			return &authflow.Session{UserID: "u-1"}, nil
		}

		bad := validDraft()
		bad.ConfirmPassword = "different"

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				d := validDraft()
				if i%2 == 0 {
					d = bad
				}
				h.ctrl.Submit(context.Background(), d)
			}(i)
		}
		wg.Wait()

		states := h.States()
		require.NotEmpty(t, states)
		assert.Equal(t, h.ctrl.Attempt(), states[len(states)-1], "observers never end on a stale snapshot")
	}
}

func TestClose_CancelsPendingNavigation(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Submit(context.Background(), validDraft()))
	require.NoError(t, h.ctrl.Close())

	h.clock.Advance(time.Hour)
	assert.Never(t, h.rec.navigated, 50*time.Millisecond, 5*time.Millisecond)

	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), validDraft()), authflow.ErrClosed)
	assert.ErrorIs(t, h.ctrl.SubmitFederated(context.Background(), ""), authflow.ErrClosed)
}

func TestWithConfig_CustomRouteAndMessages(t *testing.T) {
	h := newHarness(t)
	h.ctrl = authflow.NewController(h.provider, h.store, h.rec, h.rec,
		authflow.WithClock(h.clock),
		authflow.WithConfig(authflow.Config{
			LandingRoute:    "/dashboard",
			NavigationDelay: 3 * time.Second,
			Messages:        authflow.Messages{FederatedSuccess: "Hi from %s"},
		}),
	)
	defer h.ctrl.Close()

	require.NoError(t, h.ctrl.SubmitFederated(context.Background(), "github"))
	assert.Equal(t, "Hi from GitHub", h.rec.Notifications()[0].Message)

	h.clock.Advance(1500 * time.Millisecond)
	assert.Never(t, h.rec.navigated, 50*time.Millisecond, 5*time.Millisecond)
	h.clock.Advance(1500 * time.Millisecond)
	select {
	case route := <-h.rec.routes:
		assert.Equal(t, "/dashboard", route)
	case <-time.After(time.Second):
		t.Fatal("navigation did not fire")
	}
}

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) MarkAuthenticated(context.Context) error { return errStoreDown }

func (failingStore) Flags(context.Context) (authflow.PersistedFlags, error) {
	return authflow.PersistedFlags{}, errStoreDown
}
