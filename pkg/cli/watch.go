package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/pkg/app"
)

// skipDirs are never watched.
var skipDirs = map[string]bool{".git": true, "node_modules": true, "vendor": true}

func newWatchCmd(g *globals) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start the application and restart it when files change",
		Long: `Start the application and restart it whenever a file under the root
changes. The configuration and SQL modules are reloaded on every restart;
Go modules need a rebuild of the binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return g.watch(ctx, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "quiet period before restarting")
	return cmd
}

// watch runs the app until ctx is cancelled, replacing it with a fresh
// instance after every burst of file changes.
func (g *globals) watch(ctx context.Context, debounce time.Duration) error {
	root, err := g.rootDir()
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	fs := afero.NewOsFs()
	if err := watchTree(fs, w, root); err != nil {
		return err
	}

	changes := make(chan string, 1)
	go forwardEvents(fs, w, root, changes)

	var current *app.App
	defer func() {
		if current != nil {
			current.Destroy(context.WithoutCancel(ctx))
		}
	}()

	for {
		current = g.boot(ctx)

		changed, ok := settle(ctx, changes, debounce)
		if !ok {
			return nil
		}
		logger.Info("Change detected, restarting", logger.KeyPath, changed)
		if current != nil {
			current.Destroy(context.WithoutCancel(ctx))
			current = nil
		}
	}
}

// boot loads the options and starts an App. Failures are logged so the
// watcher keeps running until the next change.
func (g *globals) boot(ctx context.Context) *app.App {
	root, opts, err := g.load()
	if err != nil {
		logger.Error("Failed to load configuration", logger.Err(err))
		return nil
	}
	a := g.newApp(root, opts)
	if err := a.Start(ctx); err != nil {
		logger.Error("Failed to start", logger.Err(err))
		return nil
	}
	if srv := a.Server(); srv != nil {
		logger.Info("Server is running", logger.KeyAddr, srv.URL())
	}
	return a
}

// settle waits for a change and then for debounce without further changes.
// It returns the last changed path, or false when ctx is done.
func settle(ctx context.Context, changes <-chan string, debounce time.Duration) (string, bool) {
	var last string
	select {
	case <-ctx.Done():
		return "", false
	case last = <-changes:
	}

	timer := time.NewTimer(debounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", false
		case last = <-changes:
			timer.Reset(debounce)
		case <-timer.C:
			return last, true
		}
	}
}

// watchTree adds root and every directory below it to w.
func watchTree(fs afero.Fs, w *fsnotify.Watcher, root string) error {
	return afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && skipDir(info.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func skipDir(name string) bool {
	return skipDirs[name] || strings.HasPrefix(name, ".")
}

// ignoredFile reports changes that never warrant a restart.
func ignoredFile(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if skipDir(part) && part != ".env" {
			return true
		}
	}
	for _, pattern := range []string{"**/*.sqlite", "**/*.sqlite-journal", "**/*.sqlite-wal", "**/*.sqlite-shm", "**/*~", "**/*.swp"} {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// forwardEvents turns watcher events into change notifications until the
// watcher is closed. New directories are watched as they appear.
func forwardEvents(fs afero.Fs, w *fsnotify.Watcher, root string, changes chan<- string) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) || ignoredFile(root, ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := fs.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watchTree(fs, w, ev.Name); err != nil {
						logger.Warn("Failed to watch directory", logger.KeyPath, ev.Name, logger.Err(err))
					}
				}
			}
			select {
			case changes <- ev.Name:
			default:
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error", logger.Err(err))
		}
	}
}
