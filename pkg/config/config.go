// Package config resolves the options an App is started with.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (RAPID_*, plus the bare legacy names such as
//     PORT or DATABASE_URL)
//  2. Configuration file (YAML, TOML or JSON)
//  3. Default values
package config

import (
	"maps"
	"slices"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/internal/telemetry"
	"github.com/marmos91/rapid/pkg/database"
	"github.com/marmos91/rapid/pkg/webserver"
)

// Production is the environment in which destructive operations such as
// dropping the database are refused.
const Production = "production"

// Options is the resolved configuration of one App instance.
type Options struct {
	// Environment names the deployment (development, test, production).
	Environment string `mapstructure:"env" yaml:"env" validate:"required"`

	// Silent discards the App's logs.
	Silent bool `mapstructure:"silent" yaml:"silent"`

	Logging   logger.Config    `mapstructure:"logging" yaml:"logging"`
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Webserver webserver.Config `mapstructure:"webserver" yaml:"webserver"`
	Database  database.Config  `mapstructure:"database" yaml:"database"`

	// Modules holds the discovery patterns per module category.
	Modules Patterns `mapstructure:"modules" yaml:"modules"`

	Flags `mapstructure:",squash" yaml:",inline"`

	// Extra keeps unrecognized keys so user modules can read their own
	// settings.
	Extra map[string]any `mapstructure:",remain" yaml:",inline" jsonschema:"-"`
}

// Flags toggle lifecycle stages and database operations.
type Flags struct {
	DatabaseDisabled   bool `mapstructure:"disable_database" yaml:"disable_database"`
	WebserverDisabled  bool `mapstructure:"disable_webserver" yaml:"disable_webserver"`
	RunSeeds           bool `mapstructure:"run_seeds" yaml:"run_seeds"`
	RunCreateDatabase  bool `mapstructure:"run_create_database" yaml:"run_create_database"`
	RunDropDatabase    bool `mapstructure:"run_drop_database" yaml:"run_drop_database"`
	RunMigrateLatest   bool `mapstructure:"run_migrate_latest" yaml:"run_migrate_latest"`
	RunMigrateRollback bool `mapstructure:"run_migrate_rollback" yaml:"run_migrate_rollback"`

	// ShortLived destroys the App as soon as Start completes.
	ShortLived bool `mapstructure:"short_lived" yaml:"short_lived"`
}

// MetricsConfig enables Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Patterns are doublestar globs relative to the project root. A module
// belongs to a category when its declaring file (or, for SQL migrations and
// seeds, the file itself) matches one of the category's patterns and none
// of the Ignore patterns.
type Patterns struct {
	Models     []string `mapstructure:"models" yaml:"models" validate:"dive,required"`
	Routers    []string `mapstructure:"routers" yaml:"routers" validate:"dive,required"`
	Actions    []string `mapstructure:"actions" yaml:"actions" validate:"dive,required"`
	Seeds      []string `mapstructure:"seeds" yaml:"seeds" validate:"dive,required"`
	Migrations []string `mapstructure:"migrations" yaml:"migrations" validate:"dive,required"`
	Hooks      []string `mapstructure:"hooks" yaml:"hooks" validate:"dive,required"`
	Ignore     []string `mapstructure:"ignore" yaml:"ignore" validate:"dive,required"`
}

// IsProduction reports whether the environment is production.
func (o *Options) IsProduction() bool {
	return o.Environment == Production
}

// Clone returns a deep copy of the options.
func (o *Options) Clone() *Options {
	c := *o
	c.Webserver.CORSOrigins = slices.Clone(o.Webserver.CORSOrigins)
	c.Modules = Patterns{
		Models:     slices.Clone(o.Modules.Models),
		Routers:    slices.Clone(o.Modules.Routers),
		Actions:    slices.Clone(o.Modules.Actions),
		Seeds:      slices.Clone(o.Modules.Seeds),
		Migrations: slices.Clone(o.Modules.Migrations),
		Hooks:      slices.Clone(o.Modules.Hooks),
		Ignore:     slices.Clone(o.Modules.Ignore),
	}
	c.Extra = maps.Clone(o.Extra)
	return &c
}
