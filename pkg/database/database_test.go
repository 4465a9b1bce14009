package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClient(t *testing.T) {
	tests := []struct {
		in   string
		want Client
	}{
		{"", ClientSQLite},
		{"sqlite3", ClientSQLite},
		{"pg", ClientPostgres},
		{"PostgreSQL", ClientPostgres},
		{"mariadb", ClientMySQL},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClient(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseClient("oracle")
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	t.Run("PostgresAlias", func(t *testing.T) {
		cfg := Config{Client: "pg", Name: "app"}
		cfg.ApplyDefaults()

		assert.Equal(t, ClientPostgres, cfg.Client)
		assert.Equal(t, 5432, cfg.Port)
		assert.Equal(t, "disable", cfg.SSLMode)
		require.NoError(t, cfg.Validate())
	})

	t.Run("SQLitePoolIsSingleConnection", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyDefaults()

		idle, open := cfg.PoolLimits()
		assert.Equal(t, 1, idle)
		assert.Equal(t, 1, open)
	})

	t.Run("PoolMinClamped", func(t *testing.T) {
		cfg := Config{Client: ClientMySQL, Name: "app", PoolMin: 20, PoolMax: 5}
		cfg.ApplyDefaults()

		idle, open := cfg.PoolLimits()
		assert.Equal(t, 5, idle)
		assert.Equal(t, 5, open)
	})
}

func TestValidate(t *testing.T) {
	cfg := Config{Client: ClientPostgres}
	assert.Error(t, cfg.Validate())

	cfg.URL = "postgres://u:p@localhost:5432/app"
	assert.NoError(t, cfg.Validate())

	cfg = Config{Client: ClientSQLite}
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	t.Run("SQLiteRelativeToRoot", func(t *testing.T) {
		cfg := Config{Client: ClientSQLite, File: "data/app.sqlite"}
		dsn, err := cfg.DSN("/srv/app")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(dsn, filepath.Join("/srv/app", "data/app.sqlite")+"?"), dsn)
	})

	t.Run("SQLiteAbsolute", func(t *testing.T) {
		cfg := Config{Client: ClientSQLite, File: "/var/lib/app.sqlite"}
		assert.Equal(t, "/var/lib/app.sqlite", cfg.SQLitePath("/srv/app"))
	})

	t.Run("PostgresFields", func(t *testing.T) {
		cfg := Config{Client: ClientPostgres, Host: "db", Port: 5433, User: "u", Password: "p", Name: "app", SSLMode: "require"}
		dsn, err := cfg.DSN("")
		require.NoError(t, err)
		assert.Equal(t, "host=db port=5433 user=u password=p dbname=app sslmode=require", dsn)
	})

	t.Run("PostgresURLWins", func(t *testing.T) {
		cfg := Config{Client: ClientPostgres, URL: "postgres://u:p@db/other", Name: "app"}
		dsn, err := cfg.DSN("")
		require.NoError(t, err)
		assert.Equal(t, cfg.URL, dsn)
		assert.Equal(t, "other", cfg.DatabaseName())

		maint, err := cfg.maintenanceDSN()
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@db/postgres", maint)
	})

	t.Run("MySQLFields", func(t *testing.T) {
		cfg := Config{Client: ClientMySQL, Host: "db", Port: 3306, User: "u", Password: "p", Name: "app"}
		dsn, err := cfg.DSN("")
		require.NoError(t, err)
		assert.Contains(t, dsn, "u:p@tcp(db:3306)/app")
		assert.Contains(t, dsn, "multiStatements=true")
		assert.Contains(t, dsn, "parseTime=true")
	})

	t.Run("MySQLSocket", func(t *testing.T) {
		cfg := Config{Client: ClientMySQL, SocketPath: "/run/mysqld.sock", User: "u", Name: "app"}
		dsn, err := cfg.DSN("")
		require.NoError(t, err)
		assert.Contains(t, dsn, "unix(/run/mysqld.sock)/app")
	})
}

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Client: ClientSQLite, File: ":memory:"}, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, db.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)").Error)
	require.NoError(t, db.Exec("INSERT INTO widgets (name) VALUES (?)", "gear").Error)

	var count int64
	require.NoError(t, db.Table("widgets").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateOpenDropSQLiteFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cfg := Config{Client: "sqlite3", File: "nested/dir/app.sqlite"}

	require.NoError(t, Create(ctx, cfg, root))
	assert.DirExists(t, filepath.Join(root, "nested/dir"))

	db, err := Open(ctx, cfg, root)
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE t (id INTEGER)").Error)
	require.NoError(t, Close(db))
	assert.FileExists(t, filepath.Join(root, "nested/dir/app.sqlite"))

	require.NoError(t, Drop(ctx, cfg, root))
	_, err = os.Stat(filepath.Join(root, "nested/dir/app.sqlite"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Dropping twice is fine.
	assert.NoError(t, Drop(ctx, cfg, root))
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, Close(nil))
}

func TestConfigString(t *testing.T) {
	assert.Equal(t, "sqlite(app.sqlite)", Config{Client: ClientSQLite, File: "app.sqlite"}.String())
	assert.Equal(t, "postgres(app)", Config{Client: ClientPostgres, Name: "app", Password: "secret"}.String())
}
