package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/spf13/cobra"
)

func newIdentityCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage identities materialized from mirror rows",
	}
	cmd.AddCommand(newIdentityEnsureCommand(root))
	return cmd
}

func newIdentityEnsureCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure <mirror-id>",
		Short: "Create or refresh the identity of a socios_padron row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mirrorID, err := parseID("mirror-id", args[0])
			if err != nil {
				return err
			}
			return root.withBackend(cmd, "text", func(ctx context.Context, b Backend, _ logging.Logger) error {
				u, err := b.EnsureIdentity(ctx, mirrorID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "identity %d (dni %s) for mirror row %d\n", u.ID, u.NationalID, mirrorID)
				return nil
			})
		},
	}
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
