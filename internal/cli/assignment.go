package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/spf13/cobra"
)

func newAssignmentCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignment",
		Short: "Manage professor/student assignments",
	}

	var professorID int64
	ensure := &cobra.Command{
		Use:   "ensure <assignment-or-mirror-id>",
		Short: "Resolve an assignment id, creating it from a linked mirror row if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if professorID <= 0 {
				return fmt.Errorf("--professor is required")
			}
			incomingID, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			return root.withBackend(cmd, "text", func(ctx context.Context, b Backend, _ logging.Logger) error {
				id, err := b.EnsureAssignment(ctx, professorID, incomingID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "assignment %d\n", id)
				return nil
			})
		},
	}
	ensure.Flags().Int64Var(&professorID, "professor", 0, "professor user id")

	cmd.AddCommand(ensure)
	return cmd
}
