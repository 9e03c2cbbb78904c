package cli

import (
	"context"

	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/spf13/cobra"
)

func newServeCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ops HTTP server (health, metrics, lookups)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withBackend(cmd, "json", func(ctx context.Context, b Backend, logger logging.Logger) error {
				logger.Info(ctx, "Starting padronsync serve...")
				return b.Serve(ctx)
			})
		},
	}
}
