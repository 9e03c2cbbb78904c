package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/services"
	"github.com/spf13/cobra"
)

type syncOptions struct {
	since   string
	perPage int
}

func newSyncCommand(root *RootOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull registry changes into the mirror",
		Long: `Fetch every page of members updated since the stored cursor (or --since)
and upsert them into socios_padron. The cursor only advances when every page
was persisted.

Example:
  padronsync sync
  padronsync sync --since "2024-03-01 00:00:00" --per-page 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withBackend(cmd, "text", func(ctx context.Context, b Backend, logger logging.Logger) error {
				return runSync(ctx, cmd, b, logger, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.since, "since", "", `override the stored cursor ("YYYY-MM-DD HH:MM:SS")`)
	cmd.Flags().IntVar(&opts.perPage, "per-page", 0, "page size requested from the registry (default from config)")

	return cmd
}

func runSync(ctx context.Context, cmd *cobra.Command, b Backend, logger logging.Logger, opts *syncOptions) error {
	out := cmd.OutOrStdout()

	summary, err := b.RunSync(ctx, services.Options{
		Since:   opts.since,
		PerPage: opts.perPage,
		OnPage: func(p services.PageProgress) {
			fmt.Fprintf(out, "page %d/%d: %d items, %d upserted\n", p.Page, p.LastPage, p.Items, p.Upserted)
		},
	})

	// Metrics are pushed for failed runs too.
	if perr := b.PushMetrics(ctx); perr != nil {
		logger.Warn(ctx, "metrics push failed", "error", perr)
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(out, "done: processed %d, upserted %d, skipped %d, cursor %s\n",
		summary.Processed, summary.Upserted, summary.Skipped, summary.Cursor)
	return nil
}
