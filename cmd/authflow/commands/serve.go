package commands

import (
	"net/http"
	"time"

	"github.com/nutrijel/authflow/provider"
	"github.com/nutrijel/authflow/provider/devserver"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveDevCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run an in-memory auth server for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := devserver.New(provider.NewMemoryProvider())

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.Handle("/", srv.Handler())

			logger.Info("dev auth server listening", "addr", addr)
			httpSrv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			return httpSrv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}
