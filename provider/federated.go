package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nutrijel/authflow"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// AuthorizeFunc sends the user to authURL and returns the code and state the
// provider redirected back with
type AuthorizeFunc func(ctx context.Context, authURL string) (code, state string, err error)

// ProviderConfig describes one OAuth2 identity provider
type ProviderConfig struct {
	Name        string
	OAuth2      oauth2.Config
	UserInfoURL string
}

// GoogleConfig returns the Google provider. Empty arguments are read from
// OAUTH2_GOOGLE_CLIENT_ID, OAUTH2_GOOGLE_CLIENT_SECRET and OAUTH2_GOOGLE_CALLBACK_URL.
func GoogleConfig(clientId, clientSecret, callbackUrl string) ProviderConfig {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL"))
	}
	return ProviderConfig{
		Name: "google",
		OAuth2: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// GithubConfig returns the GitHub provider. Empty arguments are read from
// OAUTH2_GITHUB_CLIENT_ID, OAUTH2_GITHUB_CLIENT_SECRET and OAUTH2_GITHUB_CALLBACK_URL.
func GithubConfig(clientId, clientSecret, callbackUrl string) ProviderConfig {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"))
	}
	return ProviderConfig{
		Name: "github",
		OAuth2: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		UserInfoURL: "https://api.github.com/user",
	}
}

// FederatedClient signs users in through OAuth2 providers using the
// authorization code flow with PKCE
type FederatedClient struct {
	providers  map[string]ProviderConfig
	authorize  AuthorizeFunc
	httpClient *http.Client
}

// NewFederatedClient creates a client for the given providers
func NewFederatedClient(authorize AuthorizeFunc, providers ...ProviderConfig) *FederatedClient {
	f := &FederatedClient{
		providers: make(map[string]ProviderConfig, len(providers)),
		authorize: authorize,
	}
	for _, p := range providers {
		f.providers[strings.ToLower(p.Name)] = p
	}
	return f
}

// SetHTTPClient overrides the client used for token exchange and user info.
// Can be overridden for testing.
func (f *FederatedClient) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// Providers lists the configured provider names
func (f *FederatedClient) Providers() []string {
	out := make([]string, 0, len(f.providers))
	for name := range f.providers {
		out = append(out, name)
	}
	return out
}

// FederatedSignIn runs the authorization code flow for provider and returns
// a session built from the provider's user info
func (f *FederatedClient) FederatedSignIn(ctx context.Context, provider string) (*authflow.Session, error) {
	var cfg ProviderConfig
	ok := false
	if f != nil {
		cfg, ok = f.providers[strings.ToLower(provider)]
	}
	if !ok {
		return nil, authflow.NewAuthError(authflow.ErrCodeUnknownProvider,
			fmt.Sprintf("%s sign-in is not available", authflow.ProviderDisplayName(provider)))
	}
	if f.authorize == nil {
		return nil, fmt.Errorf("no authorizer configured for %s", cfg.Name)
	}

	state, err := generateState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.OAuth2.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	code, gotState, err := f.authorize(ctx, authURL)
	if err != nil {
		return nil, err
	}
	if gotState != state {
		return nil, authflow.NewAuthError(authflow.ErrCodeStateMismatch, "Sign-in was interrupted. Please try again.")
	}

	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}
	token, err := cfg.OAuth2.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	userInfo, err := f.getUserData(ctx, cfg, token)
	if err != nil {
		return nil, err
	}
	return sessionFromUserInfo(cfg.Name, token, userInfo), nil
}

func (f *FederatedClient) getUserData(ctx context.Context, cfg ProviderConfig, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	response, err := cfg.OAuth2.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from %s: %w", cfg.Name, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed getting user info from %s: HTTP %d", cfg.Name, response.StatusCode)
	}

	var userInfo map[string]any
	dec := json.NewDecoder(response.Body)
	dec.UseNumber()
	if err := dec.Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return userInfo, nil
}

func sessionFromUserInfo(provider string, token *oauth2.Token, userInfo map[string]any) *authflow.Session {
	s := &authflow.Session{
		Provider:    provider,
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
		UserID:      stringField(userInfo, "id", "sub"),
		Email:       stringField(userInfo, "email"),
		DisplayName: stringField(userInfo, "name", "login"),
	}
	if s.UserID != "" {
		s.UserID = provider + ":" + s.UserID
	}
	return s
}

// stringField returns the first non-empty value among keys
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return ""
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// LoopbackAuthorizer returns an AuthorizeFunc for command line use. It serves
// the redirect on addr (which must match the provider's RedirectURL host),
// hands the authorization URL to open, and waits for the callback.
func LoopbackAuthorizer(addr string, open func(authURL string) error) AuthorizeFunc {
	return func(ctx context.Context, authURL string) (string, string, error) {
		done := make(chan callbackResult, 1)

		mux := http.NewServeMux()
		mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if e := q.Get("error"); e != "" {
				http.Error(w, "Sign-in was not completed. You can close this window.", http.StatusBadRequest)
				deliver(done, callbackResult{err: authflow.NewAuthError(authflow.ErrCodeProviderRejected, q.Get("error_description"))})
				return
			}
			fmt.Fprintln(w, "Sign-in complete. You can close this window.")
			deliver(done, callbackResult{code: q.Get("code"), state: q.Get("state")})
		})

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return "", "", fmt.Errorf("failed to listen for callback on %s: %w", addr, err)
		}
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		serveErr := make(chan error, 1)
		go func() {
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				serveErr <- err
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		if err := open(authURL); err != nil {
			return "", "", fmt.Errorf("failed to open authorization URL: %w", err)
		}

		select {
		case r := <-done:
			return r.code, r.state, r.err
		case err := <-serveErr:
			return "", "", fmt.Errorf("callback listener failed: %w", err)
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
}

type callbackResult struct {
	code, state string
	err         error
}

// deliver keeps the first callback and drops repeats
func deliver(ch chan callbackResult, r callbackResult) {
	select {
	case ch <- r:
	default:
	}
}
