package webserver

import "time"

// Config holds webserver settings.
type Config struct {
	// Host is the bind address; empty listens on all interfaces.
	Host string `mapstructure:"host" yaml:"host,omitempty"`

	// Port is the TCP port. 0 picks a free port.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// APIPrefix is the path routers are mounted under.
	APIPrefix string `mapstructure:"api_prefix" yaml:"api_prefix" validate:"required,startswith=/"`

	// CORS enables cross-origin requests from CORSOrigins.
	CORS        bool     `mapstructure:"cors" yaml:"cors"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`

	// Public is a directory of static files served for unmatched paths,
	// relative to the project root unless absolute.
	Public string `mapstructure:"public" yaml:"public,omitempty"`

	// SecurityHeaders adds framing, sniffing and XSS protection headers.
	SecurityHeaders bool `mapstructure:"security_headers" yaml:"security_headers"`

	// Metrics exposes /metrics when the app has metrics enabled.
	Metrics bool `mapstructure:"metrics" yaml:"metrics"`

	// BodyLimit caps request bodies decoded with DecodeJSON.
	BodyLimit int64 `mapstructure:"body_limit" yaml:"body_limit" validate:"min=0"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultConfig returns the default webserver settings.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		APIPrefix:       "/api",
		CORSOrigins:     []string{"*"},
		SecurityHeaders: true,
		BodyLimit:       1 << 20,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.APIPrefix == "" {
		c.APIPrefix = def.APIPrefix
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
