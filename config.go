package authflow

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Defaults for the submission flow
const (
	DefaultLandingRoute         = "/home"
	DefaultNavigationDelay      = 1500 * time.Millisecond
	DefaultNotificationDuration = 5000 * time.Millisecond
	DefaultPlacement            = "top-center"
	DefaultFederatedProvider    = "google"
	DefaultAppName              = "Nutrijel"
)

// Messages are the user-facing texts the controller emits
type Messages struct {
	// Shown after a password account is created
	SignupSuccess string

	// Shown when account creation fails without a provider message
	SignupFailed string

	// Shown after federated sign-in. %s is the provider's display name.
	FederatedSuccess string

	// Shown when federated sign-in fails without a provider message.
	// %s is the provider's display name.
	FederatedFailed string
}

// Config controls timing, routing and texts of the submission flow
type Config struct {
	AppName              string
	LandingRoute         string
	NavigationDelay      time.Duration
	NotificationDuration time.Duration
	Placement            string
	FederatedProvider    string
	Messages             Messages
}

// DefaultConfig returns the configuration the sign-up page ships with
func DefaultConfig() Config {
	return Config{
		AppName:              DefaultAppName,
		LandingRoute:         DefaultLandingRoute,
		NavigationDelay:      DefaultNavigationDelay,
		NotificationDuration: DefaultNotificationDuration,
		Placement:            DefaultPlacement,
		FederatedProvider:    DefaultFederatedProvider,
	}.EnsureDefaults()
}

// EnsureDefaults fills zero values with the defaults
func (c Config) EnsureDefaults() Config {
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.LandingRoute == "" {
		c.LandingRoute = DefaultLandingRoute
	}
	if c.NavigationDelay <= 0 {
		c.NavigationDelay = DefaultNavigationDelay
	}
	if c.NotificationDuration <= 0 {
		c.NotificationDuration = DefaultNotificationDuration
	}
	if c.Placement == "" {
		c.Placement = DefaultPlacement
	}
	if c.FederatedProvider == "" {
		c.FederatedProvider = DefaultFederatedProvider
	}
	if c.Messages.SignupSuccess == "" {
		c.Messages.SignupSuccess = fmt.Sprintf("Registration successful! Welcome to %s!", c.AppName)
	}
	if c.Messages.SignupFailed == "" {
		c.Messages.SignupFailed = "Failed to create account. Please try again."
	}
	if c.Messages.FederatedSuccess == "" {
		c.Messages.FederatedSuccess = "Signed in with %s! Welcome to " + c.AppName + "!"
	}
	if c.Messages.FederatedFailed == "" {
		c.Messages.FederatedFailed = "Failed to sign in with %s. Please try again."
	}
	return c
}

// LoadConfig reads overrides from the environment (and a .env file if present)
func LoadConfig() (Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getEnv("AUTHFLOW_APP_NAME", DefaultAppName),
		LandingRoute:      getEnv("AUTHFLOW_LANDING_ROUTE", DefaultLandingRoute),
		Placement:         getEnv("AUTHFLOW_NOTIFICATION_PLACEMENT", DefaultPlacement),
		FederatedProvider: getEnv("AUTHFLOW_FEDERATED_PROVIDER", DefaultFederatedProvider),
	}

	var err error
	if cfg.NavigationDelay, err = getEnvDuration("AUTHFLOW_NAVIGATION_DELAY", DefaultNavigationDelay); err != nil {
		return Config{}, err
	}
	if cfg.NotificationDuration, err = getEnvDuration("AUTHFLOW_NOTIFICATION_DURATION", DefaultNotificationDuration); err != nil {
		return Config{}, err
	}
	if !strings.HasPrefix(cfg.LandingRoute, "/") {
		return Config{}, fmt.Errorf("AUTHFLOW_LANDING_ROUTE must start with '/': %q", cfg.LandingRoute)
	}
	return cfg.EnsureDefaults(), nil
}

// ProviderDisplayName turns a provider key into the name shown to users
func ProviderDisplayName(provider string) string {
	switch strings.ToLower(provider) {
	case "google":
		return "Google"
	case "github":
		return "GitHub"
	case "":
		return ""
	}
	return cases.Title(language.Und).String(provider)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getEnvDuration accepts Go durations ("1.5s") or plain milliseconds ("1500")
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
