// Package app implements the lifecycle orchestrator: it resolves and
// invokes modules, then runs the hook-bracketed stages that attach actions,
// prepare the database and start the webserver, and tears everything down
// again on Destroy.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/pkg/config"
	"github.com/marmos91/rapid/pkg/database"
	"github.com/marmos91/rapid/pkg/hook"
	"github.com/marmos91/rapid/pkg/metrics"
	"github.com/marmos91/rapid/pkg/module"
	"github.com/marmos91/rapid/pkg/resolver"
	"github.com/marmos91/rapid/pkg/webserver"
)

// Factory builds an artifact for the app it is invoked with.
type Factory = module.Factory[*App]

// Module is a factory with its metadata.
type Module = module.Descriptor[*App]

// registry collects modules registered from package init functions.
var registry = module.NewRegistry[*App]()

// Register declares a module of the given kind. Call it from an init
// function in the file that should match the category patterns.
//
//	func init() {
//		app.Register(module.KindRouter, func(a *app.App) (module.Artifact, error) {
//			return &module.Router{Name: "users", Routes: routes}, nil
//		}, module.WithOrder(10))
//	}
func Register(kind module.Kind, factory Factory, opts ...module.Option) {
	registry.Add(kind, module.New(1, factory, opts...))
}

// NewModule builds a module descriptor for WithModules. Its source is the
// caller's file.
func NewModule(factory Factory, opts ...module.Option) Module {
	return module.New(1, factory, opts...)
}

// Registry returns the process-wide module registry.
func Registry() *module.Registry[*App] { return registry }

// App is one orchestrator instance.
type App struct {
	root string
	opts *config.Options
	id   string

	fs         afero.Fs
	registry   *module.Registry[*App]
	explicit   map[module.Kind][]Module
	gormOpts   []database.Option
	middleware []webserver.Middleware

	metrics *metrics.Metrics
	emitter *hook.Emitter

	started     atomic.Bool
	state       atomic.Int32
	destroyOnce sync.Once
	destroyed   atomic.Bool
	done        chan struct{}

	mu      sync.RWMutex
	modules *module.Set[*App]
	models  map[string]*module.Model
	actions map[string]*module.Action
	db      *gorm.DB
	server  *webserver.Server
}

// Option configures an App.
type Option func(*App)

// WithModules fixes the modules of a category instead of discovering them.
// An empty list keeps discovery.
func WithModules(kind module.Kind, modules ...Module) Option {
	return func(a *App) {
		a.explicit[kind] = append(a.explicit[kind], modules...)
	}
}

// WithFs reads SQL migrations and seeds from fs.
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithRegistry discovers modules from reg instead of the process-wide
// registry.
func WithRegistry(reg *module.Registry[*App]) Option {
	return func(a *App) { a.registry = reg }
}

// WithGormOptions customizes the gorm configuration of the connection.
func WithGormOptions(opts ...database.Option) Option {
	return func(a *App) { a.gormOpts = append(a.gormOpts, opts...) }
}

// WithMiddleware appends middleware after the default pipeline.
func WithMiddleware(mws ...webserver.Middleware) Option {
	return func(a *App) { a.middleware = append(a.middleware, mws...) }
}

// New creates an app for the project at root. opts is copied; nil means
// config.Default().
func New(root string, opts *config.Options, options ...Option) *App {
	if opts == nil {
		opts = config.Default()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	a := &App{
		root:     root,
		opts:     opts.Clone(),
		id:       uuid.NewString(),
		fs:       afero.NewOsFs(),
		registry: registry,
		explicit: make(map[module.Kind][]Module),
		done:     make(chan struct{}),
		models:   make(map[string]*module.Model),
		actions:  make(map[string]*module.Action),
	}
	for _, opt := range options {
		opt(a)
	}

	if a.opts.Metrics.Enabled {
		a.metrics = metrics.New()
	}
	a.emitter = hook.NewEmitter(a.metrics)
	return a
}

// ID returns the instance id.
func (a *App) ID() string { return a.id }

// Root returns the absolute project root.
func (a *App) Root() string { return a.root }

// Options returns the app's options. Callers must not modify them.
func (a *App) Options() *config.Options { return a.opts }

// Metrics returns the app's metrics, or nil when disabled.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// State returns the lifecycle state.
func (a *App) State() State { return State(a.state.Load()) }

func (a *App) setState(s State) {
	prev := State(a.state.Swap(int32(s)))
	a.debug(context.Background(), "state changed", "from", prev.String(), logger.KeyState, s.String())
}

// transition moves from one state to the next only if no one else, Destroy
// in particular, has moved the app in the meantime.
func (a *App) transition(from, to State) bool {
	if !a.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	a.debug(context.Background(), "state changed", "from", from.String(), logger.KeyState, to.String())
	return true
}

// Destroyed reports whether teardown has completed.
func (a *App) Destroyed() bool { return a.destroyed.Load() }

// Done is closed once teardown has completed.
func (a *App) Done() <-chan struct{} { return a.done }

// DB returns the database handle, or nil before the database stage or when
// the database is disabled.
func (a *App) DB() *gorm.DB {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db
}

// Server returns the webserver, or nil before the webserver stage or when
// the webserver is disabled.
func (a *App) Server() *webserver.Server {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.server
}

// Model returns the model attached under name.
func (a *App) Model(name string) (*module.Model, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.models[name]
	return m, ok
}

// Models returns the names of the attached models, sorted.
func (a *App) Models() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return sortedKeys(a.models)
}

// Action returns the action attached under name.
func (a *App) Action(name string) (*module.Action, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	act, ok := a.actions[name]
	return act, ok
}

// Actions returns the names of the attached actions, sorted.
func (a *App) Actions() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return sortedKeys(a.actions)
}

// Call runs the action attached under name.
func (a *App) Call(ctx context.Context, name string, input any) (any, error) {
	act, ok := a.Action(name)
	if !ok || act.Run == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return act.Run(ctx, input)
}

// ResolveModules resolves the descriptor set without invoking anything.
func (a *App) ResolveModules(ctx context.Context) (*module.Set[*App], error) {
	opts := []resolver.Option[*App]{
		resolver.WithFs[*App](a.fs),
		resolver.WithRegistry(a.registry),
	}
	for kind, ds := range a.explicit {
		opts = append(opts, resolver.WithExplicit(kind, ds))
	}
	return resolver.New(a.root, a.opts.Modules, opts...).Resolve(ctx)
}

// Modules returns the descriptors resolved by Start, or nil before it.
func (a *App) Modules() *module.Set[*App] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.modules
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// modelName falls back to the Go type name of the model value.
func modelName(m *module.Model) string {
	if m.Name != "" {
		return m.Name
	}
	if m.Value == nil {
		return ""
	}
	t := reflect.TypeOf(m.Value)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
