//go:build integration

package database

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// postgresURL returns a server URL, starting a container unless
// RAPID_TEST_POSTGRES_URL points at an existing server.
func postgresURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("RAPID_TEST_POSTGRES_URL"); dsn != "" {
		return dsn
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("rapid"),
		tcpostgres.WithUsername("rapid"),
		tcpostgres.WithPassword("rapid"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresCreateOpenDrop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	base := Config{Client: ClientPostgres, URL: postgresURL(t)}
	base.ApplyDefaults()

	target := base
	target.URL = replaceDatabase(t, base.URL, "rapid_created")

	// Dropping a missing database is tolerated.
	require.NoError(t, Drop(ctx, target, ""))

	require.NoError(t, Create(ctx, target, ""))
	// Creating twice is tolerated.
	require.NoError(t, Create(ctx, target, ""))

	db, err := Open(ctx, target, "")
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE widgets (id SERIAL PRIMARY KEY); INSERT INTO widgets DEFAULT VALUES;").Error)

	var count int64
	require.NoError(t, db.Table("widgets").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, Close(db))

	require.NoError(t, Drop(ctx, target, ""))
}

func replaceDatabase(t *testing.T, raw, name string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	u.Path = "/" + name
	return u.String()
}
