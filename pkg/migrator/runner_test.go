package migrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marmos91/rapid/pkg/database"
	"github.com/marmos91/rapid/pkg/module"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Client: database.ClientSQLite, File: ":memory:"}, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func createTable(table string) *module.Migration {
	return &module.Migration{
		Name: "create_" + table,
		Up: func(ctx context.Context, db *gorm.DB) error {
			return db.Exec("CREATE TABLE " + table + " (id INTEGER PRIMARY KEY)").Error
		},
		Down: func(ctx context.Context, db *gorm.DB) error {
			return db.Exec("DROP TABLE " + table).Error
		},
	}
}

func hasTable(db *gorm.DB, table string) bool {
	return db.Migrator().HasTable(table)
}

func TestLatestAppliesPendingAsOneBatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db)

	migs := []*module.Migration{createTable("users"), createTable("posts")}
	res, err := runner.Latest(ctx, NewSource(migs, database.ClientSQLite))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Batch)
	assert.Equal(t, []string{"create_users", "create_posts"}, res.Names)
	assert.True(t, hasTable(db, "users"))
	assert.True(t, hasTable(db, "posts"))

	// Nothing pending.
	res, err = runner.Latest(ctx, NewSource(migs, database.ClientSQLite))
	require.NoError(t, err)
	assert.Empty(t, res.Names)

	// A new migration lands in batch 2.
	migs = append(migs, createTable("tags"))
	res, err = runner.Latest(ctx, NewSource(migs, database.ClientSQLite))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Batch)
	assert.Equal(t, []string{"create_tags"}, res.Names)
}

func TestRollbackRevertsLastBatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db)

	first := []*module.Migration{createTable("users")}
	_, err := runner.Latest(ctx, NewSource(first, database.ClientSQLite))
	require.NoError(t, err)

	all := append(first, createTable("posts"), createTable("tags"))
	_, err = runner.Latest(ctx, NewSource(all, database.ClientSQLite))
	require.NoError(t, err)

	res, err := runner.Rollback(ctx, NewSource(all, database.ClientSQLite))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Batch)
	assert.Equal(t, []string{"create_tags", "create_posts"}, res.Names)
	assert.True(t, hasTable(db, "users"))
	assert.False(t, hasTable(db, "posts"))
	assert.False(t, hasTable(db, "tags"))

	status, err := runner.Status(ctx, NewSource(all, database.ClientSQLite))
	require.NoError(t, err)
	require.Len(t, status, 3)
	assert.True(t, status[0].Applied)
	assert.False(t, status[1].Applied)
}

func TestRollbackWithNothingApplied(t *testing.T) {
	res, err := NewRunner(openTestDB(t)).Rollback(context.Background(), NewSource(nil, database.ClientSQLite))
	require.NoError(t, err)
	assert.Empty(t, res.Names)
}

func TestUnnamedMigrationsUsePositionalNames(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	migs := []*module.Migration{
		{Up: func(ctx context.Context, db *gorm.DB) error { return nil }},
	}
	res, err := NewRunner(db).Latest(ctx, NewSource(migs, database.ClientSQLite))
	require.NoError(t, err)
	assert.Equal(t, []string{"Migration 0"}, res.Names)
}

func TestFailedTransactionalMigrationLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db)
	boom := errors.New("boom")

	migs := []*module.Migration{{
		Name: "half_done",
		Tx:   module.TxAlways,
		Up: func(ctx context.Context, db *gorm.DB) error {
			if err := db.Exec("CREATE TABLE half (id INTEGER)").Error; err != nil {
				return err
			}
			return boom
		},
	}}

	_, err := runner.Latest(ctx, NewSource(migs, database.ClientSQLite))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	status, err := runner.Status(ctx, NewSource(migs, database.ClientSQLite))
	require.NoError(t, err)
	assert.False(t, status[0].Applied)
}

func TestMissingMigrationIsAnError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db)

	_, err := runner.Latest(ctx, NewSource([]*module.Migration{createTable("users")}, database.ClientSQLite))
	require.NoError(t, err)

	_, err = runner.Latest(ctx, NewSource([]*module.Migration{createTable("posts")}, database.ClientSQLite))
	assert.ErrorIs(t, err, ErrMissingMigration)
}

func TestDuplicateNamesRejected(t *testing.T) {
	migs := []*module.Migration{createTable("users"), createTable("users")}
	_, err := NewRunner(openTestDB(t)).Latest(context.Background(), NewSource(migs, database.ClientSQLite))
	assert.ErrorIs(t, err, ErrDuplicateMigration)
}

func TestRollbackIrreversible(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewRunner(db, WithTable("schema_history"))

	migs := []*module.Migration{{Name: "one_way", Up: func(context.Context, *gorm.DB) error { return nil }}}
	_, err := runner.Latest(ctx, NewSource(migs, database.ClientSQLite))
	require.NoError(t, err)
	assert.True(t, hasTable(db, "schema_history"))

	_, err = runner.Rollback(ctx, NewSource(migs, database.ClientSQLite))
	assert.ErrorIs(t, err, ErrIrreversible)
}
