package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/rapid/internal/logger"
)

// Postgres error codes tolerated by Create and Drop.
const (
	pgInvalidCatalogName = "3D000" // database does not exist
	pgDuplicateDatabase  = "42P04" // database already exists
)

// Create creates the configured database if it does not exist yet.
func Create(ctx context.Context, cfg Config, root string) error {
	cfg.ApplyDefaults()

	switch cfg.Client {
	case ClientSQLite:
		if cfg.InMemory() {
			return nil
		}
		return os.MkdirAll(filepath.Dir(cfg.SQLitePath(root)), 0755)
	case ClientPostgres:
		err := execMaintenance(ctx, cfg, "CREATE DATABASE "+quotePostgres(cfg.DatabaseName()))
		if isPgCode(err, pgDuplicateDatabase) {
			logger.DebugCtx(ctx, "database already exists", logger.KeyDatabase, cfg.DatabaseName())
			return nil
		}
		return err
	case ClientMySQL:
		return execMaintenance(ctx, cfg, "CREATE DATABASE IF NOT EXISTS "+quoteMySQL(cfg.DatabaseName()))
	default:
		return fmt.Errorf("unsupported database client: %s", cfg.Client)
	}
}

// Drop removes the configured database. A missing database is not an error.
func Drop(ctx context.Context, cfg Config, root string) error {
	cfg.ApplyDefaults()

	switch cfg.Client {
	case ClientSQLite:
		if cfg.InMemory() {
			return nil
		}
		path := cfg.SQLitePath(root)
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}
		return nil
	case ClientPostgres:
		err := execMaintenance(ctx, cfg, "DROP DATABASE "+quotePostgres(cfg.DatabaseName()))
		if isPgCode(err, pgInvalidCatalogName) {
			logger.DebugCtx(ctx, "database does not exist", logger.KeyDatabase, cfg.DatabaseName())
			return nil
		}
		return err
	case ClientMySQL:
		return execMaintenance(ctx, cfg, "DROP DATABASE IF EXISTS "+quoteMySQL(cfg.DatabaseName()))
	default:
		return fmt.Errorf("unsupported database client: %s", cfg.Client)
	}
}

func execMaintenance(ctx context.Context, cfg Config, statement string) error {
	if cfg.DatabaseName() == "" {
		return fmt.Errorf("%s database name is required", cfg.Client)
	}

	dsn, err := cfg.maintenanceDSN()
	if err != nil {
		return err
	}
	dialector, err := Dialector(cfg.Client, dsn)
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return fmt.Errorf("failed to connect to %s server: %w", cfg.Client, err)
	}
	defer func() {
		if cerr := Close(db); cerr != nil {
			logger.Warn("failed to close maintenance connection", logger.Err(cerr))
		}
	}()

	return db.WithContext(ctx).Exec(statement).Error
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func quotePostgres(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteMySQL(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}
