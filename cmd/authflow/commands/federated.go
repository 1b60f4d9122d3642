package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/nutrijel/authflow"
	"github.com/nutrijel/authflow/provider"
	"github.com/spf13/cobra"
)

func federatedCmd() *cobra.Command {
	var callbackAddr string

	cmd := &cobra.Command{
		Use:   "federated [provider]",
		Short: "Sign in with Google or GitHub",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			store, _, closeStore, err := openSessionStore()
			if err != nil {
				return err
			}
			defer closeStore()

			callbackURL := fmt.Sprintf("http://%s/callback", callbackAddr)
			authorize := provider.LoopbackAuthorizer(callbackAddr, func(authURL string) error {
				_, err := fmt.Fprintf(os.Stderr, "Open this URL in your browser to continue:\n\n  %s\n\n", authURL)
				return err
			})
			federated := provider.NewFederatedClient(authorize,
				provider.GoogleConfig("", "", callbackURL),
				provider.GithubConfig("", "", callbackURL),
			)

			nav := newWaitingNavigator()
			controller := authflow.NewController(
				provider.New(nil, federated),
				store,
				&authflow.WriterNotifier{W: os.Stdout},
				nav,
				authflow.WithConfig(cfg),
				authflow.WithLogger(logger),
			)
			defer controller.Close()

			if err := controller.SubmitFederated(cmd.Context(), name); err != nil {
				return err
			}
			return nav.wait(controller.Config().NavigationDelay + 5*time.Second)
		},
	}

	cmd.Flags().StringVar(&callbackAddr, "callback-addr", "127.0.0.1:8085", "address to receive the OAuth2 redirect on")
	return cmd
}
