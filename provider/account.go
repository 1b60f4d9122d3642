package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nutrijel/authflow"
)

// SignupRequest is the request body for the signup endpoint
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// SignupResponse is the response from the signup endpoint
type SignupResponse struct {
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

// AccountClient creates password accounts against an HTTP auth backend
type AccountClient struct {
	serverURL      string
	signupEndpoint string
	httpClient     *http.Client
}

// AccountOption configures an AccountClient
type AccountOption func(*AccountClient)

// WithSignupEndpoint sets a custom signup endpoint path
func WithSignupEndpoint(path string) AccountOption {
	return func(c *AccountClient) {
		c.signupEndpoint = path
	}
}

// WithHTTPClient sets the HTTP client used for requests (timeouts, TLS config, etc.)
func WithHTTPClient(client *http.Client) AccountOption {
	return func(c *AccountClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewAccountClient creates a client for the auth server at serverURL
func NewAccountClient(serverURL string, opts ...AccountOption) *AccountClient {
	// Normalize server URL
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &AccountClient{
		serverURL:      serverURL,
		signupEndpoint: "/auth/signup",
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServerURL returns the server URL this client is configured for
func (c *AccountClient) ServerURL() string {
	return c.serverURL
}

// CreateAccount registers a new account. Rejections by the server come back
// as *authflow.AuthError carrying the server's error description.
func (c *AccountClient) CreateAccount(ctx context.Context, email, password, displayName string) (*authflow.Session, error) {
	if c == nil {
		return nil, authflow.NewAuthError(authflow.ErrCodeUnknownProvider, "Email sign-up is not available")
	}
	jsonBody, err := json.Marshal(SignupRequest{Email: email, Password: password, DisplayName: displayName})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+c.signupEndpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var signupResp SignupResponse
	decodeErr := json.Unmarshal(body, &signupResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := signupResp.Error
		if code == "" {
			code = fmt.Sprintf("http_%d", resp.StatusCode)
		}
		return nil, authflow.NewAuthError(code, signupResp.ErrorDesc)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("invalid response from server: %w", decodeErr)
	}

	session := &authflow.Session{
		UserID:      signupResp.UserID,
		Email:       signupResp.Email,
		DisplayName: signupResp.DisplayName,
		Provider:    "local",
		AccessToken: signupResp.AccessToken,
	}
	if session.Email == "" {
		session.Email = email
	}
	if session.DisplayName == "" {
		session.DisplayName = displayName
	}
	if signupResp.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(signupResp.ExpiresIn) * time.Second)
	}
	fillFromToken(session)
	return session, nil
}

// fillFromToken reads subject and expiry from a JWT access token when the
// response left them out. The signature is the server's business; the
// client only reads claims.
func fillFromToken(session *authflow.Session) {
	if session.AccessToken == "" || (session.UserID != "" && !session.ExpiresAt.IsZero()) {
		return
	}
	token, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, jwt.MapClaims{})
	if err != nil {
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return
	}
	if session.UserID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			session.UserID = sub
		}
	}
	if session.ExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			session.ExpiresAt = exp.Time
		}
	}
}
