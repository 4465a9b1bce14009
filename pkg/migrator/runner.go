package migrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/internal/telemetry"
)

// DefaultTable holds the applied-migration bookkeeping.
const DefaultTable = "rapid_migrations"

var (
	// ErrMissingMigration is returned when an applied migration is no longer
	// provided by the source.
	ErrMissingMigration = errors.New("applied migration missing from source")

	// ErrDuplicateMigration is returned when two migrations share a name.
	ErrDuplicateMigration = errors.New("duplicate migration name")

	// ErrIrreversible is returned when rolling back a migration without Down.
	ErrIrreversible = errors.New("migration has no down function")
)

// Record is one applied migration.
type Record struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	Name          string    `gorm:"size:255;not null;uniqueIndex"`
	Batch         int       `gorm:"not null;index"`
	MigrationTime time.Time `gorm:"not null"`
}

// Result summarizes a Latest or Rollback run.
type Result struct {
	Batch int
	Names []string
}

// Status describes one migration of the source.
type Status struct {
	Name      string
	Applied   bool
	Batch     int
	AppliedAt time.Time
}

// Runner applies migrations from a Source in batches: Latest applies every
// pending migration as one new batch, Rollback reverts the most recent batch.
type Runner struct {
	db    *gorm.DB
	table string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTable overrides the bookkeeping table name.
func WithTable(name string) RunnerOption {
	return func(r *Runner) { r.table = name }
}

// NewRunner creates a runner on db.
func NewRunner(db *gorm.DB, opts ...RunnerOption) *Runner {
	r := &Runner{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) records(db *gorm.DB) *gorm.DB {
	return db.Table(r.table)
}

func (r *Runner) ensureTable(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Table(r.table).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("failed to create %s table: %w", r.table, err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) ([]Record, error) {
	var recs []Record
	if err := r.records(r.db.WithContext(ctx)).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	return recs, nil
}

// index maps migration names to entries, rejecting duplicates.
func index(src Source, entries []Entry) (map[string]Entry, error) {
	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		name := src.MigrationName(e)
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMigration, name)
		}
		byName[name] = e
	}
	return byName, nil
}

func missing(recs []Record, byName map[string]Entry) error {
	var names []string
	for _, rec := range recs {
		if _, ok := byName[rec.Name]; !ok {
			names = append(names, rec.Name)
		}
	}
	if len(names) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingMigration, strings.Join(names, ", "))
	}
	return nil
}

// Latest applies every pending migration, in source order, as a new batch.
func (r *Runner) Latest(ctx context.Context, src Source) (Result, error) {
	if err := r.ensureTable(ctx); err != nil {
		return Result{}, err
	}

	entries, err := src.Migrations(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list migrations: %w", err)
	}
	byName, err := index(src, entries)
	if err != nil {
		return Result{}, err
	}

	recs, err := r.applied(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := missing(recs, byName); err != nil {
		return Result{}, err
	}

	done := make(map[string]bool, len(recs))
	batch := 0
	for _, rec := range recs {
		done[rec.Name] = true
		batch = max(batch, rec.Batch)
	}
	batch++

	result := Result{Batch: batch}
	for _, e := range entries {
		name := src.MigrationName(e)
		if done[name] {
			continue
		}

		mig, err := src.Migration(e)
		if err != nil {
			return result, fmt.Errorf("migration %s: %w", name, err)
		}
		if mig.Up == nil {
			return result, fmt.Errorf("migration %s has no up function", name)
		}

		start := time.Now()
		err = r.run(ctx, e.Transaction, name, func(tx *gorm.DB) error {
			if err := mig.Up(ctx, tx); err != nil {
				return err
			}
			return r.records(tx).Create(&Record{Name: name, Batch: batch, MigrationTime: time.Now().UTC()}).Error
		})
		if err != nil {
			return result, fmt.Errorf("migration %s failed: %w", name, err)
		}

		logger.InfoCtx(ctx, "migration applied", logger.KeyMigration, name, logger.KeyBatch, batch, logger.Since(start))
		result.Names = append(result.Names, name)
	}

	if len(result.Names) == 0 {
		logger.InfoCtx(ctx, "database already up to date")
		result.Batch = batch - 1
	}
	return result, nil
}

// Rollback reverts the most recent batch in reverse application order.
func (r *Runner) Rollback(ctx context.Context, src Source) (Result, error) {
	if err := r.ensureTable(ctx); err != nil {
		return Result{}, err
	}

	entries, err := src.Migrations(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list migrations: %w", err)
	}
	byName, err := index(src, entries)
	if err != nil {
		return Result{}, err
	}

	recs, err := r.applied(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(recs) == 0 {
		logger.InfoCtx(ctx, "no migrations to roll back")
		return Result{}, nil
	}

	batch := 0
	for _, rec := range recs {
		batch = max(batch, rec.Batch)
	}
	last := slices.DeleteFunc(slices.Clone(recs), func(rec Record) bool { return rec.Batch != batch })
	if err := missing(last, byName); err != nil {
		return Result{}, err
	}
	slices.Reverse(last)

	result := Result{Batch: batch}
	for _, rec := range last {
		e := byName[rec.Name]
		mig, err := src.Migration(e)
		if err != nil {
			return result, fmt.Errorf("migration %s: %w", rec.Name, err)
		}
		if mig.Down == nil {
			return result, fmt.Errorf("migration %s: %w", rec.Name, ErrIrreversible)
		}

		id := rec.ID
		start := time.Now()
		err = r.run(ctx, e.Transaction, rec.Name, func(tx *gorm.DB) error {
			if err := mig.Down(ctx, tx); err != nil {
				return err
			}
			return r.records(tx).Where("id = ?", id).Delete(&Record{}).Error
		})
		if err != nil {
			return result, fmt.Errorf("rollback of %s failed: %w", rec.Name, err)
		}

		logger.InfoCtx(ctx, "migration rolled back", logger.KeyMigration, rec.Name, logger.KeyBatch, batch, logger.Since(start))
		result.Names = append(result.Names, rec.Name)
	}
	return result, nil
}

// Status lists every migration of the source with its applied state, followed
// by applied migrations the source no longer provides.
func (r *Runner) Status(ctx context.Context, src Source) ([]Status, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	entries, err := src.Migrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	recs, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Record, len(recs))
	for _, rec := range recs {
		byName[rec.Name] = rec
	}

	out := make([]Status, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := src.MigrationName(e)
		seen[name] = true
		st := Status{Name: name}
		if rec, ok := byName[name]; ok {
			st.Applied, st.Batch, st.AppliedAt = true, rec.Batch, rec.MigrationTime
		}
		out = append(out, st)
	}
	for _, rec := range recs {
		if !seen[rec.Name] {
			out = append(out, Status{Name: rec.Name, Applied: true, Batch: rec.Batch, AppliedAt: rec.MigrationTime})
		}
	}
	return out, nil
}

func (r *Runner) run(ctx context.Context, transactional bool, name string, fn func(tx *gorm.DB) error) error {
	ctx, span := telemetry.StartSpan(ctx, "rapid.migration")
	defer span.End()
	span.SetAttributes(telemetry.Migration(name))

	var err error
	if transactional {
		err = r.db.WithContext(ctx).Transaction(fn)
	} else {
		err = fn(r.db.WithContext(ctx))
	}
	telemetry.RecordError(ctx, err)
	return err
}

// Names returns the display names of the migrations of a source.
func Names(ctx context.Context, src Source) ([]string, error) {
	entries, err := src.Migrations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, src.MigrationName(e))
	}
	return out, nil
}
