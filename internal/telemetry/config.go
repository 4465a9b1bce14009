package telemetry

// Config holds OpenTelemetry configuration
type Config struct {
	// Enabled indicates whether tracing is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ServiceName is the name reported to the trace backend
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// ServiceVersion is the version of the service
	ServiceVersion string `mapstructure:"service_version" yaml:"service_version"`

	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`

	// Insecure disables TLS on the exporter connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"min=0,max=1"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "rapid",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
