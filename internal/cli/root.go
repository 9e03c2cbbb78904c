// Package cli implements the padronsync command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gymbridge/internal/app"
	"github.com/dmitrijs2005/gymbridge/internal/config"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/registry"
	"github.com/dmitrijs2005/gymbridge/internal/services"
	"github.com/spf13/cobra"
)

// Backend is what the commands need from the application graph.
type Backend interface {
	RunSync(ctx context.Context, opts services.Options) (*services.RunSummary, error)
	EnsureIdentity(ctx context.Context, mirrorID int64) (*models.Identity, error)
	LookupPadron(ctx context.Context, dni string) (*registry.Member, bool, error)
	EnsureAssignment(ctx context.Context, professorID, incomingID int64) (int64, error)
	PushMetrics(ctx context.Context) error
	Serve(ctx context.Context) error
	Close() error
}

// RootOptions holds the factories shared by all commands. Tests replace them.
type RootOptions struct {
	NewBackend func(ctx context.Context, cfg *config.Config, logger logging.Logger) (Backend, error)
	Migrate    func(ctx context.Context, cfg *config.Config, logger logging.Logger) error
}

func defaultOptions() *RootOptions {
	return &RootOptions{
		NewBackend: func(ctx context.Context, cfg *config.Config, logger logging.Logger) (Backend, error) {
			return app.NewApp(ctx, cfg, logger)
		},
		Migrate: app.Migrate,
	}
}

// NewRootCommand creates the root command for the padronsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultOptions())
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "padronsync",
		Short: "Mirror the member registry (padrón) into the local database",
		Long: `padronsync pulls members updated since the last run from the registry
into socios_padron, and materializes local identities for mirror rows on demand.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newIdentityCommand(opts))
	cmd.AddCommand(newPadronCommand(opts))
	cmd.AddCommand(newAssignmentCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// Execute runs the command tree and returns the process exit code. Failures
// print a single "error: ..." line on stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, newRootCommand(defaultOptions()), args, stdout, stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// setup loads the configuration and builds a logger on stderr. format is used
// when the configuration does not name one.
func setup(cmd *cobra.Command, format string) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if cfg.LogFormat != "" {
		format = cfg.LogFormat
	}
	return cfg, logging.New(cmd.ErrOrStderr(), cfg.LogLevel, format), nil
}

// withBackend runs fn against a freshly built backend and closes it afterwards.
func (o *RootOptions) withBackend(cmd *cobra.Command, format string, fn func(ctx context.Context, b Backend, logger logging.Logger) error) (err error) {
	cfg, logger, err := setup(cmd, format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, err := o.NewBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	return fn(ctx, b, logger)
}
