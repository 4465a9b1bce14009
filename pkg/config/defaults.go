package config

import (
	"strings"

	"github.com/marmos91/rapid/internal/telemetry"
	"github.com/marmos91/rapid/pkg/database"
	"github.com/marmos91/rapid/pkg/webserver"
)

// DefaultPatterns returns the discovery patterns used when none are
// configured.
func DefaultPatterns() Patterns {
	return Patterns{
		Models:     []string{"models/**/*.go"},
		Routers:    []string{"routers/**/*.go"},
		Actions:    []string{"actions/**/*.go"},
		Seeds:      []string{"seeds/**/*.go", "seeds/**/*.sql"},
		Migrations: []string{"migrations/**/*.go", "migrations/**/*.sql"},
		Hooks:      []string{"hooks/**/*.go"},
		Ignore:     []string{"vendor/**", "**/testdata/**", "**/node_modules/**", "**/*_test.go"},
	}
}

// Default returns options with every default applied.
func Default() *Options {
	opts := &Options{
		Environment: "development",
		Telemetry:   telemetry.DefaultConfig(),
		Webserver:   webserver.DefaultConfig(),
		Database:    database.DefaultConfig(),
		Modules:     DefaultPatterns(),
	}
	ApplyDefaults(opts)
	return opts
}

// ApplyDefaults fills zero values with defaults. Explicit values are
// preserved.
func ApplyDefaults(o *Options) {
	if o.Environment == "" {
		o.Environment = "development"
	}
	o.Environment = strings.ToLower(o.Environment)

	applyLoggingDefaults(o)
	applyTelemetryDefaults(o)
	applyWebserverDefaults(&o.Webserver)
	o.Database.ApplyDefaults()
	applyPatternDefaults(&o.Modules)
}

func applyLoggingDefaults(o *Options) {
	if o.Logging.Level == "" {
		o.Logging.Level = "INFO"
	}
	o.Logging.Level = strings.ToUpper(o.Logging.Level)
	if o.Logging.Format == "" {
		o.Logging.Format = "text"
	}
	if o.Logging.Output == "" {
		o.Logging.Output = "stdout"
	}
}

func applyTelemetryDefaults(o *Options) {
	def := telemetry.DefaultConfig()
	if o.Telemetry.ServiceName == "" {
		o.Telemetry.ServiceName = def.ServiceName
	}
	if o.Telemetry.Endpoint == "" {
		o.Telemetry.Endpoint = def.Endpoint
	}
	if o.Telemetry.SampleRate == 0 {
		o.Telemetry.SampleRate = def.SampleRate
	}
}

func applyWebserverDefaults(c *webserver.Config) {
	def := webserver.DefaultConfig()
	if c.APIPrefix == "" {
		c.APIPrefix = def.APIPrefix
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		c.APIPrefix = "/" + c.APIPrefix
	}
	if len(c.APIPrefix) > 1 {
		c.APIPrefix = strings.TrimSuffix(c.APIPrefix, "/")
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = def.CORSOrigins
	}
	if c.BodyLimit == 0 {
		c.BodyLimit = def.BodyLimit
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}

// applyPatternDefaults only fills categories that are nil. An explicitly
// empty list disables discovery for that category.
func applyPatternDefaults(p *Patterns) {
	def := DefaultPatterns()
	if p.Models == nil {
		p.Models = def.Models
	}
	if p.Routers == nil {
		p.Routers = def.Routers
	}
	if p.Actions == nil {
		p.Actions = def.Actions
	}
	if p.Seeds == nil {
		p.Seeds = def.Seeds
	}
	if p.Migrations == nil {
		p.Migrations = def.Migrations
	}
	if p.Hooks == nil {
		p.Hooks = def.Hooks
	}
	if p.Ignore == nil {
		p.Ignore = def.Ignore
	}
}
