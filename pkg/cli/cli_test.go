package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marmos91/rapid/pkg/app"
	"github.com/marmos91/rapid/pkg/migrator"
	"github.com/marmos91/rapid/pkg/module"
)

// execute runs the command line against root with an empty module
// registry unless appOpts bring their own.
func execute(t *testing.T, root string, appOpts []app.Option, args ...string) (string, error) {
	t.Helper()
	opts := append([]app.Option{app.WithRegistry(module.NewRegistry[*app.App]())}, appOpts...)
	cmd := NewRootCmd(opts...)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--root", root, "--log-level", "ERROR"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rapid dev")
	assert.Contains(t, out, "commit:")
}

func TestInvalidRoot(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "missing"), nil, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid root")
}

func TestConfigShow(t *testing.T) {
	t.Setenv("PORT", "")
	root := t.TempDir()
	writeFile(t, root, "rapid.yaml", `
env: staging
webserver:
  port: 9090
database:
  client: postgres
  name: shop
  password: secret
`)

	t.Run("YAML", func(t *testing.T) {
		out, err := execute(t, root, nil, "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "env: staging")
		assert.Contains(t, out, "port: 9090")
		assert.Contains(t, out, redacted)
		assert.NotContains(t, out, "secret")
	})

	t.Run("JSON", func(t *testing.T) {
		out, err := execute(t, root, nil, "config", "show", "-o", "json")
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		assert.Equal(t, "staging", doc["env"])
		db, ok := doc["database"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "postgres", db["client"])
	})
}

func TestConfigShowLoadsEnvFile(t *testing.T) {
	// Register cleanup for the variable godotenv is about to set.
	t.Setenv("RAPID_DATABASE_NAME", "")
	require.NoError(t, os.Unsetenv("RAPID_DATABASE_NAME"))

	root := t.TempDir()
	writeFile(t, root, "rapid.yaml", "database:\n  client: postgres\n")
	writeFile(t, root, ".env", "RAPID_DATABASE_NAME=fromenv\n")

	out, err := execute(t, root, nil, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "name: fromenv")
}

func TestConfigValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "rapid.yaml", "env: production\nwebserver:\n  cors: true\n")

		out, err := execute(t, root, nil, "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "Validation: OK")
		assert.Contains(t, out, "rapid.yaml")
		assert.Contains(t, out, "SQLite database in production")
		assert.Contains(t, out, "CORS allows every origin in production")
	})

	t.Run("Invalid", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "rapid.yaml", "database:\n  client: oracle\n")

		_, err := execute(t, root, nil, "config", "validate")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
}

func TestConfigSchema(t *testing.T) {
	out, err := execute(t, t.TempDir(), nil, "config", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "Rapid Configuration", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "webserver")
	assert.Contains(t, props, "database")
	assert.NotContains(t, props, "Extra")
}

func TestModules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "migrations/001_init.up.sql", "CREATE TABLE t (id INTEGER);")

	reg := module.NewRegistry[*app.App]()
	reg.Add(module.KindModel, app.NewModule(
		func(*app.App) (module.Artifact, error) { return &module.Model{Name: "user"}, nil },
		module.WithName("user"),
		module.WithOrder(1),
		module.WithSource(filepath.Join(root, "models", "user.go")),
	))
	reg.Add(module.KindModel, app.NewModule(
		func(*app.App) (module.Artifact, error) { return &module.Model{Name: "post"}, nil },
		module.WithName("post"),
		module.WithSource(filepath.Join(root, "models", "post.go")),
	))

	t.Run("JSON", func(t *testing.T) {
		out, err := execute(t, root, []app.Option{app.WithRegistry(reg)}, "modules", "-o", "json")
		require.NoError(t, err)

		var list []moduleInfo
		require.NoError(t, json.Unmarshal([]byte(out), &list))
		assert.Equal(t, []moduleInfo{
			{Kind: "model", Name: "user", Order: "1", Source: "models/user.go"},
			{Kind: "model", Name: "post", Source: "models/post.go"},
			{Kind: "migration", Name: "1_init", Source: "migrations/001_init.up.sql"},
		}, list)
	})

	t.Run("Table", func(t *testing.T) {
		out, err := execute(t, root, []app.Option{app.WithRegistry(reg)}, "modules", "--kind", "migrations")
		require.NoError(t, err)
		assert.Contains(t, out, "SOURCE")
		assert.Contains(t, out, "1_init")
		assert.NotContains(t, out, "user")
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := execute(t, root, nil, "modules", "--kind", "widgets")
		assert.Error(t, err)
	})
}

func TestMigrateAndRollback(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rapid.yaml", "env: test\ndatabase:\n  client: sqlite\n  file: app.sqlite\n")
	writeFile(t, root, "migrations/001_create_widgets.up.sql", "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);")
	writeFile(t, root, "migrations/001_create_widgets.down.sql", "DROP TABLE widgets;")

	hasWidgets := func() bool {
		db, err := gorm.Open(sqlite.Open(filepath.Join(root, "app.sqlite")), &gorm.Config{})
		require.NoError(t, err)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		defer func() { _ = sqlDB.Close() }()
		return db.Migrator().HasTable("widgets")
	}

	_, err := execute(t, root, nil, "migrate")
	require.NoError(t, err)
	assert.True(t, hasWidgets())

	db, err := gorm.Open(sqlite.Open(filepath.Join(root, "app.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	var applied int64
	require.NoError(t, db.Table(migrator.DefaultTable).Count(&applied).Error)
	assert.EqualValues(t, 1, applied)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = execute(t, root, nil, "rollback")
	require.NoError(t, err)
	assert.False(t, hasWidgets())
}

func TestSettle(t *testing.T) {
	t.Run("ReturnsLastChange", func(t *testing.T) {
		changes := make(chan string, 3)
		changes <- "a.go"
		changes <- "b.go"

		path, ok := settle(context.Background(), changes, 20*time.Millisecond)
		assert.True(t, ok)
		assert.Equal(t, "b.go", path)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, ok := settle(ctx, make(chan string), time.Second)
		assert.False(t, ok)
	})
}

func TestIgnoredFile(t *testing.T) {
	root := "/srv/app"
	tests := []struct {
		path    string
		ignored bool
	}{
		{"/srv/app/models/user.go", false},
		{"/srv/app/migrations/001_init.up.sql", false},
		{"/srv/app/.env", false},
		{"/srv/app/rapid.yaml", false},
		{"/srv/app/.git/HEAD", true},
		{"/srv/app/node_modules/x/index.js", true},
		{"/srv/app/database.sqlite", true},
		{"/srv/app/data/app.sqlite-journal", true},
		{"/srv/app/models/user.go~", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignored, ignoredFile(root, tt.path))
		})
	}
}

func TestGenerate(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("Migration", func(t *testing.T) {
		root := t.TempDir()
		paths, err := generate(root, "migration", "addUser-email", now)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"migrations/20260304050607_add_user_email.up.sql",
			"migrations/20260304050607_add_user_email.down.sql",
		}, paths)

		body, err := os.ReadFile(filepath.Join(root, paths[0]))
		require.NoError(t, err)
		assert.Equal(t, "-- add_user_email\n", string(body))
	})

	t.Run("Model", func(t *testing.T) {
		root := t.TempDir()
		paths, err := generate(root, "model", "blog post", now)
		require.NoError(t, err)
		assert.Equal(t, []string{"models/blog_post.go"}, paths)

		body, err := os.ReadFile(filepath.Join(root, paths[0]))
		require.NoError(t, err)
		assert.Contains(t, string(body), "type BlogPost struct")
		assert.Contains(t, string(body), `Name: "blog_post"`)
	})

	t.Run("ExistingFile", func(t *testing.T) {
		root := t.TempDir()
		_, err := generate(root, "seed", "users", now)
		require.NoError(t, err)
		_, err = generate(root, "seed", "users", now)
		assert.ErrorContains(t, err, "already exists")
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := generate(t.TempDir(), "controller", "users", now)
		assert.ErrorContains(t, err, "unknown template")
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := generate(t.TempDir(), "seed", "--", now)
		assert.ErrorContains(t, err, "invalid name")
	})
}

func TestDatabaseCommandsNeedDatabase(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rapid.yaml", "env: test\ndisable_database: true\n")

	for _, args := range [][]string{{"migrate"}, {"rollback"}, {"seed", "--migrate"}} {
		t.Run(args[0], func(t *testing.T) {
			_, err := execute(t, root, nil, args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, app.ErrDatabaseDisabled)
			assert.Contains(t, err.Error(), args[0])
		})
	}
}
