package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/internal/telemetry"
	"github.com/marmos91/rapid/pkg/config"
	"github.com/marmos91/rapid/pkg/database"
	"github.com/marmos91/rapid/pkg/migrator"
	"github.com/marmos91/rapid/pkg/module"
	"github.com/marmos91/rapid/pkg/webserver"
)

// Start runs every stage in order. When a stage fails the app is destroyed
// before Start returns the failure as a *StageError naming the stage. The
// wrapper keeps the original error in its chain, so callers should match
// causes with errors.Is or errors.As rather than comparing directly.
// With ShortLived set the app is destroyed once all stages succeed. A
// Destroy issued from a hook while Start runs stops the remaining stages;
// Start then reports ErrDestroyed, or nil if every stage had completed.
func (a *App) Start(ctx context.Context) error {
	if a.destroyed.Load() || a.State() >= StateDestroying {
		return ErrDestroyed
	}
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if !a.transition(StateCreated, StateStarting) {
		return ErrDestroyed
	}

	ctx = logger.WithContext(ctx, logger.NewLogContext(a.id))
	ctx, span := telemetry.StartSpan(ctx, "app.start")
	defer span.End()

	start := time.Now()
	a.info(ctx, "starting app", logger.KeyRoot, a.root, "env", a.opts.Environment)

	if err := a.boot(ctx); err != nil {
		telemetry.RecordError(ctx, err)
		a.logError(ctx, "app failed to start", logger.Err(err))
		a.Destroy(context.WithoutCancel(ctx))
		return err
	}

	if !a.transition(StateStarting, StateRunning) {
		a.info(ctx, "app destroyed during start", logger.Since(start))
		return nil
	}
	a.info(ctx, "app started", logger.Since(start))

	if a.opts.ShortLived {
		a.Destroy(ctx)
	}
	return nil
}

func (a *App) boot(ctx context.Context) error {
	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{StageValidate, a.validate},
		{StageResolve, a.resolve},
		{StageHooks, a.attachHooks},
		{StageStart, func(ctx context.Context) error { return a.emit(ctx, module.BeforeStart) }},
		{StageActions, a.actionStage},
		{StageDatabase, a.databaseStage},
		{StageWebserver, a.webserverStage},
		{StageReady, func(ctx context.Context) error { return a.emit(ctx, module.AfterStart) }},
	}
	for _, s := range stages {
		if err := a.stage(ctx, s.name, s.run); err != nil {
			return err
		}
	}
	return nil
}

// stage runs fn with stage-scoped logging, tracing and metrics.
// Cancellation and concurrent teardown are observed between stages.
func (a *App) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	if a.State() >= StateDestroying {
		return &StageError{Stage: name, Err: ErrDestroyed}
	}

	ctx = logger.Stage(ctx, name)
	ctx, span := telemetry.StartStageSpan(ctx, name, telemetry.InstanceID(a.id))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	a.metrics.ObserveStage(name, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return &StageError{Stage: name, Err: err}
	}
	a.debug(ctx, "stage completed", logger.Since(start))
	return nil
}

func (a *App) emit(ctx context.Context, event module.Event) error {
	return a.emitter.Emit(ctx, event)
}

func (a *App) validate(_ context.Context) error {
	return config.Validate(a.opts)
}

func (a *App) resolve(ctx context.Context) error {
	set, err := a.ResolveModules(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.modules = set
	a.mu.Unlock()
	return nil
}

func (a *App) attachHooks(ctx context.Context) error {
	hooks, err := invoke[*module.Hook](ctx, a, module.KindHook)
	if err != nil {
		return err
	}
	a.emitter.Attach(ctx, hooks...)
	return nil
}

// invoke runs the resolved factories of one category.
func invoke[A module.Artifact](ctx context.Context, a *App, kind module.Kind) ([]A, error) {
	artifacts, err := module.Invoke[A](ctx, kind, a, a.Modules().Get(kind))
	if err != nil {
		return nil, err
	}
	a.metrics.AddModules(kind.String(), len(artifacts))
	a.debug(ctx, "modules invoked", logger.KeyKind, kind.String(), logger.KeyCount, len(artifacts))
	return artifacts, nil
}

func (a *App) actionStage(ctx context.Context) error {
	if err := a.emit(ctx, module.BeforeActions); err != nil {
		return err
	}
	actions, err := invoke[*module.Action](ctx, a, module.KindAction)
	if err != nil {
		return err
	}
	a.mu.Lock()
	for _, act := range actions {
		// Later modules replace earlier ones of the same name.
		a.actions[act.Name] = act
	}
	a.mu.Unlock()
	return a.emit(ctx, module.AfterActions)
}

func (a *App) databaseStage(ctx context.Context) error {
	if err := a.emit(ctx, module.BeforeDatabase); err != nil {
		return err
	}
	if !a.opts.DatabaseDisabled {
		for _, step := range []func(context.Context) error{a.connect, a.migrate, a.attachModels, a.seed} {
			if err := step(ctx); err != nil {
				return err
			}
		}
	}
	return a.emit(ctx, module.AfterDatabase)
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.opts.Database

	if a.opts.RunDropDatabase {
		if a.opts.IsProduction() {
			return ErrDropInProduction
		}
		if err := database.Drop(ctx, cfg, a.root); err != nil {
			return err
		}
		a.info(ctx, "database dropped", logger.KeyDatabase, cfg.DatabaseName())
	}
	if a.opts.RunCreateDatabase {
		if err := database.Create(ctx, cfg, a.root); err != nil {
			return err
		}
		a.info(ctx, "database created", logger.KeyDatabase, cfg.DatabaseName())
	}

	db, err := database.Open(ctx, cfg, a.root, a.gormOpts...)
	if err != nil {
		return err
	}
	if !a.publish(func() { a.db = db }) {
		_ = database.Close(db)
		return ErrDestroyed
	}

	a.info(ctx, "database connected", logger.KeyClient, string(cfg.Client), logger.KeyDatabase, cfg.DatabaseName())
	return nil
}

func (a *App) migrate(ctx context.Context) error {
	if err := a.emit(ctx, module.BeforeMigrations); err != nil {
		return err
	}

	if a.opts.RunMigrateLatest || a.opts.RunMigrateRollback {
		migrations, err := invoke[*module.Migration](ctx, a, module.KindMigration)
		if err != nil {
			return err
		}
		src := migrator.NewSource(migrations, a.opts.Database.Client)
		runner := migrator.NewRunner(a.DB())

		var (
			result migrator.Result
			action string
		)
		if a.opts.RunMigrateLatest {
			action = "migrated to latest"
			result, err = runner.Latest(ctx, src)
		} else {
			action = "rolled back"
			result, err = runner.Rollback(ctx, src)
		}
		if err != nil {
			return err
		}
		a.info(ctx, "database "+action,
			logger.KeyBatch, result.Batch,
			logger.KeyCount, len(result.Names))
	}

	return a.emit(ctx, module.AfterMigrations)
}

func (a *App) attachModels(ctx context.Context) error {
	if err := a.emit(ctx, module.BeforeModels); err != nil {
		return err
	}
	models, err := invoke[*module.Model](ctx, a, module.KindModel)
	if err != nil {
		return err
	}

	db := a.DB()
	for _, m := range models {
		if m.AutoMigrate && m.Value != nil {
			if err := db.WithContext(ctx).AutoMigrate(m.Value); err != nil {
				return fmt.Errorf("auto-migrate model %s: %w", modelName(m), err)
			}
		}
	}

	a.mu.Lock()
	for _, m := range models {
		a.models[modelName(m)] = m
	}
	a.mu.Unlock()
	return a.emit(ctx, module.AfterModels)
}

func (a *App) seed(ctx context.Context) error {
	if err := a.emit(ctx, module.BeforeSeeds); err != nil {
		return err
	}

	if a.opts.RunSeeds {
		seeds, err := invoke[*module.Seed](ctx, a, module.KindSeed)
		if err != nil {
			return err
		}
		db := a.DB()
		for i, s := range seeds {
			if s.Run == nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			name := s.Name
			if name == "" {
				name = fmt.Sprintf("seed %d", i)
			}
			start := time.Now()
			if err := s.Run(ctx, db); err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
			a.info(ctx, "seed applied", logger.KeyModule, name, logger.Since(start))
		}
	}

	return a.emit(ctx, module.AfterSeeds)
}

func (a *App) webserverStage(ctx context.Context) error {
	if err := a.emit(ctx, module.BeforeWebserver); err != nil {
		return err
	}
	if !a.opts.WebserverDisabled {
		if err := a.assembleServer(ctx); err != nil {
			return err
		}
	}
	return a.emit(ctx, module.AfterWebserver)
}

func (a *App) assembleServer(ctx context.Context) error {
	srv := webserver.New(a.opts.Webserver,
		webserver.WithRoot(a.root),
		webserver.WithMetrics(a.metrics))

	// Published before anything can fail so Destroy reaches it.
	if !a.publish(func() { a.server = srv }) {
		return ErrDestroyed
	}

	if err := a.emit(ctx, module.BeforeMiddleware); err != nil {
		return err
	}
	srv.UseDefaults()
	srv.Use(a.middleware...)
	if err := a.emit(ctx, module.AfterMiddleware); err != nil {
		return err
	}

	if err := a.emit(ctx, module.BeforeRoutes); err != nil {
		return err
	}
	routers, err := invoke[*module.Router](ctx, a, module.KindRouter)
	if err != nil {
		return err
	}
	for _, r := range routers {
		srv.Mount(r.Routes)
	}
	if err := a.emit(ctx, module.AfterRoutes); err != nil {
		return err
	}

	if err := a.emit(ctx, module.BeforeListen); err != nil {
		return err
	}
	if a.State() >= StateDestroying {
		return ErrDestroyed
	}
	if err := srv.Listen(ctx); err != nil {
		if errors.Is(err, webserver.ErrServerClosed) {
			return ErrDestroyed
		}
		return err
	}
	return a.emit(ctx, module.AfterListen)
}

// publish stores a freshly opened resource unless teardown has begun.
// Destroy marks the app destroying before it reads resources under a.mu,
// so anything published here is always seen by teardown.
func (a *App) publish(set func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.State() >= StateDestroying {
		return false
	}
	set()
	return true
}

// Wait blocks until ctx is done, the webserver fails or the app is
// destroyed. It returns the webserver failure, if any.
func (a *App) Wait(ctx context.Context) error {
	var serverErr <-chan error
	if srv := a.Server(); srv != nil {
		serverErr = srv.Err()
	}
	select {
	case <-ctx.Done():
		return nil
	case <-a.done:
		return nil
	case err := <-serverErr:
		return err
	}
}

// Destroy tears the app down: beforeDestroy, close the database, shut the
// webserver down, afterDestroy. Only the first call does anything; later or
// concurrent calls wait for it to finish. Teardown failures are logged and
// do not stop the remaining steps.
func (a *App) Destroy(ctx context.Context) {
	a.destroyOnce.Do(func() {
		a.destroy(ctx)
	})
	<-a.done
}

func (a *App) destroy(ctx context.Context) {
	if logger.FromContext(ctx) == nil {
		ctx = logger.WithContext(ctx, logger.NewLogContext(a.id))
	}
	ctx = logger.Stage(ctx, "destroy")
	ctx, span := telemetry.StartStageSpan(ctx, "destroy", telemetry.InstanceID(a.id))
	defer span.End()

	a.setState(StateDestroying)
	start := time.Now()

	var errs error
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			a.warn(ctx, "teardown step failed", "step", name, logger.Err(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step(string(module.BeforeDestroy), func() error { return a.emit(ctx, module.BeforeDestroy) })
	step("database", func() error {
		db := a.DB()
		if db == nil {
			return nil
		}
		return database.Close(db)
	})
	step("webserver", func() error {
		srv := a.Server()
		if srv == nil {
			return nil
		}
		return srv.Shutdown(ctx)
	})
	step(string(module.AfterDestroy), func() error { return a.emit(ctx, module.AfterDestroy) })

	a.metrics.ObserveStage("destroy", time.Since(start), errs)
	if errs != nil {
		telemetry.RecordError(ctx, errs)
		a.logError(ctx, "app destroyed with errors",
			logger.KeyCount, len(multierr.Errors(errs)),
			logger.Err(errs))
	} else {
		a.info(ctx, "app destroyed", logger.Since(start))
	}

	a.setState(StateDestroyed)
	a.destroyed.Store(true)
	close(a.done)
}

// IsStageError reports whether err came from the named stage.
func IsStageError(err error, stage string) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == stage
}
