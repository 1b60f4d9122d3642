package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nutrijel/authflow"
	"github.com/nutrijel/authflow/provider"
	"github.com/spf13/cobra"
)

func signupCmd() *cobra.Command {
	var (
		serverURL       string
		displayName     string
		email           string
		password        string
		confirmPassword string
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, closeStore, err := openSessionStore()
			if err != nil {
				return err
			}
			defer closeStore()

			nav := newWaitingNavigator()
			controller := authflow.NewController(
				provider.New(provider.NewAccountClient(serverURL), nil),
				store,
				&authflow.WriterNotifier{W: os.Stdout},
				nav,
				authflow.WithConfig(cfg),
				authflow.WithLogger(logger),
			)
			defer controller.Close()

			form := authflow.NewForm(controller)
			fields := map[authflow.Field]string{
				authflow.FieldDisplayName:     displayName,
				authflow.FieldEmail:           email,
				authflow.FieldPassword:        password,
				authflow.FieldConfirmPassword: confirmPassword,
			}
			for field, value := range fields {
				if err := form.SetField(field, value); err != nil {
					return err
				}
			}

			if err := form.Submit(cmd.Context()); err != nil {
				// Provider failures were already shown by the notifier
				var verr *authflow.ValidationError
				if errors.As(err, &verr) {
					fmt.Fprintln(os.Stderr, form.State().ErrorMessage)
				}
				return err
			}
			return nav.wait(controller.Config().NavigationDelay + 5*time.Second)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", envOr("AUTHFLOW_SERVER_URL", "http://localhost:8080"), "auth server URL")
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&confirmPassword, "confirm-password", "", "password again")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("confirm-password")
	return cmd
}
