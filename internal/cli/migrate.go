package cli

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, "text")
			if err != nil {
				return err
			}
			return root.Migrate(cmd.Context(), cfg, logger)
		},
	}
}
