// Package cli implements the rapid command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/internal/telemetry"
	"github.com/marmos91/rapid/pkg/app"
	"github.com/marmos91/rapid/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globals carries the persistent flags and the app options every command
// builds its App with.
type globals struct {
	root       string
	configFile string
	envFiles   []string
	logLevel   string

	appOpts []app.Option
}

// NewRootCmd builds the rapid command tree. The app options are applied to
// every App the commands create.
func NewRootCmd(appOpts ...app.Option) *cobra.Command {
	g := &globals{appOpts: appOpts}

	cmd := &cobra.Command{
		Use:   "rapid",
		Short: "Rapid - application lifecycle runner",
		Long: `Rapid discovers the models, routers, actions, seeds, migrations and hooks
of a project, prepares the database and serves the API.

Use "rapid [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.root, "root", "r", ".", "project root directory")
	flags.StringVarP(&g.configFile, "config", "c", "", "config file (default: rapid.yaml in the root, then $XDG_CONFIG_HOME/rapid)")
	flags.StringSliceVar(&g.envFiles, "env-file", nil, "env files to load (default: .env in the root, when present)")
	flags.StringVar(&g.logLevel, "log-level", "", "override the configured log level (DEBUG, INFO, WARN, ERROR)")

	cmd.AddCommand(
		newStartCmd(g),
		newMigrateCmd(g),
		newRollbackCmd(g),
		newSeedCmd(g),
		newWatchCmd(g),
		newModulesCmd(g),
		newGenCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// Execute runs the command line. It is called by main.main().
func Execute(appOpts ...app.Option) error {
	return NewRootCmd(appOpts...).Execute()
}

// rootDir returns the absolute project root.
func (g *globals) rootDir() (string, error) {
	root, err := filepath.Abs(g.root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", g.root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", g.root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("invalid root %q: not a directory", g.root)
	}
	return root, nil
}

// loadEnv loads the env files into the process environment. Variables that
// are already set win.
func (g *globals) loadEnv(root string) error {
	files := g.envFiles
	if len(files) == 0 {
		def := filepath.Join(root, ".env")
		if _, err := os.Stat(def); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		files = []string{def}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// load resolves the root, env files and options, and initializes the
// logger from them.
func (g *globals) load() (string, *config.Options, error) {
	root, err := g.rootDir()
	if err != nil {
		return "", nil, err
	}
	if err := g.loadEnv(root); err != nil {
		return "", nil, err
	}

	opts, err := config.Load(g.configFile, root)
	if err != nil {
		return "", nil, err
	}
	if g.logLevel != "" {
		if _, ok := logger.ParseLevel(g.logLevel); !ok {
			return "", nil, fmt.Errorf("invalid log level %q", g.logLevel)
		}
		opts.Logging.Level = g.logLevel
	}

	if err := logger.Init(opts.Logging); err != nil {
		return "", nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return root, opts, nil
}

// startTelemetry initializes tracing and returns its shutdown func.
func startTelemetry(ctx context.Context, opts *config.Options) (func(), error) {
	cfg := opts.Telemetry
	cfg.ServiceVersion = Version
	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Endpoint, "sample_rate", cfg.SampleRate)
	}
	return func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}, nil
}

// newApp builds an App with the command-line app options.
func (g *globals) newApp(root string, opts *config.Options) *app.App {
	return app.New(root, opts, g.appOpts...)
}
