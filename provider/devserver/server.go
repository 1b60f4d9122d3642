// Package devserver serves a local auth backend for trying the sign-up flow
// without a real identity provider. Accounts live in a provider.MemoryProvider
// and successful signups get an HS256 JWT access token. Browser clients also
// get their session flags kept in a cookie session.
package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/nutrijel/authflow"
	"github.com/nutrijel/authflow/provider"
	"github.com/nutrijel/authflow/stores/scsstore"
)

// Server is the development auth backend
type Server struct {
	Accounts *provider.MemoryProvider

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string
	TokenTTL     time.Duration

	// Sessions carries isAuthenticated and isExploring for cookie clients
	Sessions *scs.SessionManager

	flags  *scsstore.FlagStore
	router http.Handler
}

// New creates a server backed by accounts
func New(accounts *provider.MemoryProvider) *Server {
	return (&Server{Accounts: accounts}).EnsureDefaults()
}

// EnsureDefaults fills in unset fields
func (s *Server) EnsureDefaults() *Server {
	if s.Accounts == nil {
		s.Accounts = provider.NewMemoryProvider()
	}
	if s.JwtIssuer == "" {
		s.JwtIssuer = "authflow-devserver"
	}
	if s.JWTSecretKey == "" {
		s.JWTSecretKey = strings.TrimSpace(os.Getenv("AUTHFLOW_JWT_SECRET_KEY"))
		if s.JWTSecretKey == "" {
			s.JWTSecretKey = "MyTestJWTSecretKey123456"
		}
	}
	if s.TokenTTL <= 0 {
		s.TokenTTL = time.Hour
	}
	if s.Sessions == nil {
		s.Sessions = scs.New()
		s.Sessions.Cookie.Name = "authflow_session"
	}
	s.flags = scsstore.New(s.Sessions)
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	if s.flags == nil {
		s.EnsureDefaults()
	}
	if s.router == nil {
		r := mux.NewRouter()
		r.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
		r.HandleFunc("/session", s.handleSessionFlags).Methods(http.MethodGet)
		r.HandleFunc("/session/explore", s.handleExplore).Methods(http.MethodPost)
		r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		}).Methods(http.MethodGet)
		s.router = s.Sessions.LoadAndSave(r)
	}
	return s.router
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req provider.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, provider.SignupResponse{Error: "parse_error", ErrorDesc: "Invalid post body"})
		return
	}

	session, err := s.Accounts.CreateAccount(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		var authErr *authflow.AuthError
		if errors.As(err, &authErr) {
			status := http.StatusBadRequest
			if authErr.Code == authflow.ErrCodeEmailExists {
				status = http.StatusConflict
			}
			writeJSON(w, status, provider.SignupResponse{Error: authErr.Code, ErrorDesc: authErr.Message})
			return
		}
		slog.Error("error creating user", "err", err)
		writeJSON(w, http.StatusInternalServerError, provider.SignupResponse{Error: "create_failed"})
		return
	}

	if err := s.flags.MarkAuthenticated(r.Context()); err != nil {
		slog.Error("error updating session flags", "err", err)
		writeJSON(w, http.StatusInternalServerError, provider.SignupResponse{Error: "session_failed"})
		return
	}

	tokenString, err := s.signToken(session.UserID)
	if err != nil {
		slog.Error("error signing token", "err", err)
		writeJSON(w, http.StatusInternalServerError, provider.SignupResponse{Error: "token_failed"})
		return
	}

	writeJSON(w, http.StatusCreated, provider.SignupResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.TokenTTL.Seconds()),
		UserID:      session.UserID,
		Email:       session.Email,
		DisplayName: session.DisplayName,
	})
}

func (s *Server) handleSessionFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := s.flags.Flags(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, flags)
}

// handleExplore records that the visitor chose to look around before signing up
func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	if err := s.flags.SetExploring(r.Context(), true); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.handleSessionFlags(w, r)
}

func (s *Server) signToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iss": s.JwtIssuer,
		"exp": now.Add(s.TokenTTL).Unix(),
		"iat": now.Unix(),
	})
	return token.SignedString([]byte(s.JWTSecretKey))
}

// VerifyToken checks a token issued by this server and returns its subject
func (s *Server) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.JWTSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.JwtIssuer))
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
