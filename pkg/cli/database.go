package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/rapid/pkg/app"
	"github.com/marmos91/rapid/pkg/config"
)

// oneShot adapts options for a command that prepares the database and
// exits without serving. It refuses to run when the database is disabled.
func oneShot(name string, set func(f *config.Flags)) func(*config.Options) error {
	return func(opts *config.Options) error {
		if opts.DatabaseDisabled {
			return fmt.Errorf("%s: %w", name, app.ErrDatabaseDisabled)
		}
		opts.WebserverDisabled = true
		opts.ShortLived = true
		set(&opts.Flags)
		return nil
	}
}

func newMigrateCmd(g *globals) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Long: `Apply every pending migration as one new batch and exit.

Examples:
  # Apply pending migrations
  rapid migrate

  # Create the database first
  rapid migrate --create`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd.Context(), oneShot("migrate", func(f *config.Flags) {
				f.RunMigrateLatest = true
				f.RunMigrateRollback = false
				f.RunCreateDatabase = f.RunCreateDatabase || create
			}))
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "create the database before migrating")
	return cmd
}

func newRollbackCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Revert the last migration batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd.Context(), oneShot("rollback", func(f *config.Flags) {
				f.RunMigrateLatest = false
				f.RunMigrateRollback = true
			}))
		},
	}
}

func newSeedCmd(g *globals) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Run the seeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd.Context(), oneShot("seed", func(f *config.Flags) {
				f.RunSeeds = true
				f.RunMigrateLatest = f.RunMigrateLatest || migrate
			}))
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before seeding")
	return cmd
}
