package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override: RAPID_WEBSERVER_PORT.
const EnvPrefix = "RAPID"

// legacyEnv maps the bare environment names accepted for compatibility to
// their configuration keys.
var legacyEnv = map[string]string{
	"env":                    "APP_ENV",
	"silent":                 "SILENT",
	"webserver.port":         "PORT",
	"webserver.api_prefix":   "API_PREFIX",
	"webserver.cors":         "CORS",
	"webserver.public":       "PUBLIC",
	"database.url":           "DATABASE_URL",
	"database.client":        "DATABASE_CLIENT",
	"database.file":          "DATABASE_FILE",
	"database.host":          "DATABASE_HOST",
	"database.port":          "DATABASE_PORT",
	"database.user":          "DATABASE_USER",
	"database.password":      "DATABASE_PASSWORD",
	"database.name":          "DATABASE_NAME",
	"database.socket_path":   "DATABASE_SOCKET_PATH",
	"database.debug":         "DATABASE_DEBUG",
	"database.pool_min":      "DATABASE_POOL_MIN",
	"database.pool_max":      "DATABASE_POOL_MAX",
	"disable_database":       "DISABLE_DATABASE",
	"disable_webserver":      "DISABLE_WEBSERVER",
	"logging.level":          "LOG_LEVEL",
	"telemetry.enabled":      "OTEL_ENABLED",
	"telemetry.endpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
	"metrics.enabled":        "METRICS",
	"webserver.cors_origins": "CORS_ORIGINS",
}

// Load resolves options from the configuration file at path, the
// environment and the defaults. An empty path searches for rapid.yaml (or
// .toml/.json) in root and then in the user configuration directory. A
// missing file is not an error.
func Load(path, root string) (*Options, error) {
	v := viper.New()
	setupViper(v, path, root)
	setDefaults(v, Default())

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var opts Options
	if err := v.Unmarshal(&opts, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&opts)
	if err := Validate(&opts); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &opts, nil
}

// ConfigFile returns the file Load would read, or "" when none exists.
func ConfigFile(path, root string) string {
	v := viper.New()
	setupViper(v, path, root)
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// Save writes opts to path as YAML.
func Save(opts *Options, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	// Database passwords may be present.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, path, root string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		// RAPID_* keeps precedence over the bare name.
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	if path != "" {
		v.SetConfigFile(path)
		return
	}
	if root != "" {
		v.AddConfigPath(root)
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("rapid")
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, def *Options) {
	var m map[string]any
	if err := mapstructure.Decode(def, &m); err != nil {
		return
	}
	for key, val := range flatten("", m) {
		v.SetDefault(key, val)
	}
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		if k == "" || val == nil {
			continue
		}
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook accepts "30s" style strings and raw nanosecond numbers.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/rapid, ~/.config/rapid, or "." as a
// last resort.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rapid")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rapid")
}
