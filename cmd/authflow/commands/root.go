package commands

import (
	"log/slog"
	"os"

	"github.com/nutrijel/authflow"
	"github.com/spf13/cobra"
)

var (
	env         string
	logLevel    string
	sessionFile string
	storeKind   string
	redisAddr   string
	redisPrefix string

	logger *slog.Logger
	cfg    authflow.Config
)

func Execute() error {
	root := &cobra.Command{
		Use:           "authflow",
		Short:         "Sign up and sign in from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = authflow.NewLogger(os.Stderr, env, logLevel)
			slog.SetDefault(logger)

			var err error
			cfg, err = authflow.LoadConfig()
			return err
		},
	}

	root.PersistentFlags().StringVar(&env, "env", envOr("ENV", "development"), "environment (development uses text logs)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&sessionFile, "session-file", "", "session flag file for the fs and bolt stores (default under ~/.config/authflow)")
	root.PersistentFlags().StringVar(&storeKind, "store", envOr("AUTHFLOW_STORE", "fs"), "where session flags live: fs, bolt or redis")
	root.PersistentFlags().StringVar(&redisAddr, "redis-addr", envOr("REDIS_ADDR", "localhost:6379"), "redis address for --store=redis")
	root.PersistentFlags().StringVar(&redisPrefix, "redis-prefix", "authflow", "key prefix for --store=redis")

	root.AddCommand(
		signupCmd(),
		federatedCmd(),
		statusCmd(),
		exploreCmd(),
		serveDevCmd(),
	)

	return root.Execute()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
