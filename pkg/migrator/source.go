// Package migrator adapts invoked migration artifacts for a migration runner
// and applies them in batches.
package migrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/rapid/pkg/database"
	"github.com/marmos91/rapid/pkg/module"
)

// Entry is a migration as seen by the runner.
type Entry struct {
	// Index is the position of the migration in the invoked sequence.
	Index int
	// Transaction wraps Up/Down and the bookkeeping write in a transaction.
	Transaction bool
	Migration   *module.Migration
}

// Source is the shape a runner consumes.
type Source interface {
	// Migrations lists every migration in execution order.
	Migrations(ctx context.Context) ([]Entry, error)
	// MigrationName returns the display name used for bookkeeping.
	MigrationName(e Entry) string
	// Migration resolves an entry to its executable migration.
	Migration(e Entry) (*module.Migration, error)
}

// ArtifactSource exposes already-invoked migrations. It does no I/O.
type ArtifactSource struct {
	migrations []*module.Migration
	client     database.Client
}

var _ Source = (*ArtifactSource)(nil)

// NewSource builds a source over migrations for the given client.
func NewSource(migrations []*module.Migration, client database.Client) *ArtifactSource {
	return &ArtifactSource{migrations: migrations, client: client}
}

// DefaultTransaction reports whether migrations run in a transaction by
// default. SQLite cannot run schema-altering statements transactionally in
// every case, so it defaults to false.
func DefaultTransaction(client database.Client) bool {
	return !client.IsFileBased()
}

// Migrations lists the migrations decorated with their index and
// transaction flag.
func (s *ArtifactSource) Migrations(_ context.Context) ([]Entry, error) {
	def := DefaultTransaction(s.client)
	entries := make([]Entry, 0, len(s.migrations))
	for i, m := range s.migrations {
		tx := def
		switch m.Tx {
		case module.TxAlways:
			tx = true
		case module.TxNever:
			tx = false
		}
		entries = append(entries, Entry{Index: i, Transaction: tx, Migration: m})
	}
	return entries, nil
}

// MigrationName returns the migration name, or "Migration {index}" when the
// artifact is unnamed.
func (s *ArtifactSource) MigrationName(e Entry) string {
	if e.Migration != nil && e.Migration.Name != "" {
		return e.Migration.Name
	}
	return fmt.Sprintf("Migration %d", e.Index)
}

// Migration returns the entry's migration unchanged.
func (s *ArtifactSource) Migration(e Entry) (*module.Migration, error) {
	if e.Migration == nil {
		return nil, errors.New("migration entry has no migration")
	}
	return e.Migration, nil
}
