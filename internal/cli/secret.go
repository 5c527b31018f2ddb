package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var secretSchemes = map[string]string{
	"auth":  "login cookies",
	"nonce": "clear-sessions links",
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage site secrets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rotate <auth|nonce>",
		Short: "Replace a site secret; everything signed with the old one stops verifying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme := args[0]
			what, ok := secretSchemes[scheme]
			if !ok {
				return fmt.Errorf("unknown secret scheme %q (want auth or nonce)", scheme)
			}

			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.store.RotateSecret(cmd.Context(), scheme); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Secret %q rotated; existing %s are now invalid\n", scheme, what)
			return nil
		},
	})
	return cmd
}
