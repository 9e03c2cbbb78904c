package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/registry"
	"github.com/spf13/cobra"
)

type lookupResult struct {
	OK     bool             `json:"ok"`
	Padron *registry.Member `json:"padron"`
	Cached bool             `json:"cached"`
}

func newPadronCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "padron",
		Short: "Query the registry directly",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <dni>",
		Short: "Look up one member by national id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withBackend(cmd, "text", func(ctx context.Context, b Backend, _ logging.Logger) error {
				m, cached, err := b.LookupPadron(ctx, args[0])
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(lookupResult{OK: true, Padron: m, Cached: cached}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	})
	return cmd
}
