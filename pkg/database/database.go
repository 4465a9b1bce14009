// Package database opens and administers the gorm connection used by the
// database stage.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/rapid/internal/logger"
)

// Option adjusts the gorm configuration before the connection is opened.
type Option func(*gorm.Config)

// Dialector returns the gorm dialector for a DSN.
func Dialector(client Client, dsn string) (gorm.Dialector, error) {
	switch client {
	case ClientSQLite:
		return sqlite.Open(dsn), nil
	case ClientPostgres:
		return postgres.Open(dsn), nil
	case ClientMySQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database client: %s", client)
	}
}

// Open connects to the configured database and verifies the connection.
// Relative SQLite paths are resolved against root.
func Open(ctx context.Context, cfg Config, root string, opts ...Option) (*gorm.DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	if cfg.Client == ClientSQLite && !cfg.InMemory() {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath(root)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn, err := cfg.DSN(root)
	if err != nil {
		return nil, err
	}
	dialector, err := Dialector(cfg.Client, dsn)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{Logger: newGormLogger(cfg.Debug)}
	for _, opt := range opts {
		opt(gormConfig)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}

	idle, open := cfg.PoolLimits()
	sqlDB.SetMaxIdleConns(idle)
	sqlDB.SetMaxOpenConns(open)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	logger.DebugCtx(ctx, "database connected", logger.KeyClient, string(cfg.Client), logger.KeyDatabase, cfg.String())
	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// gormWriter forwards gorm's printf-style output to the process logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func newGormLogger(debug bool) gormlogger.Interface {
	if !debug {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Info,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
