package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/pkg/config"
)

func newStartCmd(g *globals) *cobra.Command {
	var (
		migrate bool
		seed    bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the application",
		Long: `Start the application and serve the API until interrupted.

Examples:
  # Start with rapid.yaml from the current directory
  rapid start

  # Apply pending migrations and run the seeds first
  rapid start --migrate --seed

  # Override settings from the environment
  RAPID_WEBSERVER_PORT=8080 rapid start`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd.Context(), func(opts *config.Options) error {
				opts.RunMigrateLatest = opts.RunMigrateLatest || migrate
				opts.RunSeeds = opts.RunSeeds || seed
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before starting")
	cmd.Flags().BoolVar(&seed, "seed", false, "run the seeds before starting")
	return cmd
}

// run loads the options, lets adjust change them, then starts an App and
// blocks until it is interrupted, fails or finishes. Short-lived apps
// return as soon as Start does.
func (g *globals) run(ctx context.Context, adjust func(*config.Options) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, opts, err := g.load()
	if err != nil {
		return err
	}
	if adjust != nil {
		if err := adjust(opts); err != nil {
			return err
		}
	}

	shutdownTelemetry, err := startTelemetry(ctx, opts)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	a := g.newApp(root, opts)
	if err := a.Start(ctx); err != nil {
		return err
	}
	if a.Destroyed() {
		return nil
	}

	if srv := a.Server(); srv != nil {
		logger.Info("Server is running", logger.KeyAddr, srv.URL())
	}
	logger.Info("Press Ctrl+C to stop")

	err = a.Wait(ctx)
	if err != nil {
		logger.Error("Server error", logger.Err(err))
	} else {
		logger.Info("Shutdown signal received, stopping")
	}
	a.Destroy(context.WithoutCancel(ctx))
	return err
}
