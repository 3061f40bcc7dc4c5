package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bugian/Sign-up-Log-in-page/internal/pkg/crypto"
)

// NewSecretCmd creates the secret command group.
func NewSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Token signing secret helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Print a random secret suitable for auth.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := crypto.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	})

	return cmd
}
