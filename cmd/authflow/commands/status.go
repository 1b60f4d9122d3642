package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, where, closeStore, err := openSessionStore()
			if err != nil {
				return err
			}
			defer closeStore()

			flags, err := store.Flags(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("session store: %s\n", where)
			fmt.Printf("authenticated: %t\n", flags.IsAuthenticated)
			fmt.Printf("exploring:     %t\n", flags.IsExploring)
			return nil
		},
	}
}

func exploreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Mark this device as browsing without an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, closeStore, err := openSessionStore()
			if err != nil {
				return err
			}
			defer closeStore()
			return store.SetExploring(cmd.Context(), true)
		},
	}
}
