package database

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Client identifies a database backend.
type Client string

const (
	// ClientSQLite uses a single SQLite file (default).
	ClientSQLite Client = "sqlite"

	// ClientPostgres uses PostgreSQL.
	ClientPostgres Client = "postgres"

	// ClientMySQL uses MySQL or MariaDB.
	ClientMySQL Client = "mysql"
)

// ParseClient normalizes client names, accepting common aliases.
func ParseClient(s string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return ClientSQLite, nil
	case "postgres", "postgresql", "pg":
		return ClientPostgres, nil
	case "mysql", "mariadb":
		return ClientMySQL, nil
	default:
		return "", fmt.Errorf("unsupported database client: %s", s)
	}
}

// IsFileBased reports whether the client stores data in a local file.
func (c Client) IsFileBased() bool {
	return c == ClientSQLite
}

// Config contains database connection settings.
type Config struct {
	Client Client `mapstructure:"client" yaml:"client" validate:"required,oneof=sqlite postgres mysql"`

	// URL is a full connection string. It takes precedence over the
	// individual connection fields for postgres and mysql.
	URL string `mapstructure:"url" yaml:"url,omitempty"`

	// File is the SQLite database path, relative to the project root
	// unless absolute. ":memory:" opens an in-memory database.
	File string `mapstructure:"file" yaml:"file,omitempty"`

	Host       string `mapstructure:"host" yaml:"host,omitempty"`
	Port       int    `mapstructure:"port" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	User       string `mapstructure:"user" yaml:"user,omitempty"`
	Password   string `mapstructure:"password" yaml:"password,omitempty"`
	Name       string `mapstructure:"name" yaml:"name,omitempty"`
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path,omitempty"`
	SSLMode    string `mapstructure:"ssl_mode" yaml:"ssl_mode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// Debug logs every SQL statement at debug level.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	PoolMin int `mapstructure:"pool_min" yaml:"pool_min" validate:"min=0"`
	PoolMax int `mapstructure:"pool_max" yaml:"pool_max" validate:"min=0"`
}

// DefaultConfig returns the default SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Client:  ClientSQLite,
		File:    "database.sqlite",
		Host:    "localhost",
		PoolMin: 2,
		PoolMax: 10,
	}
}

// ApplyDefaults normalizes the client and fills in missing values.
func (c *Config) ApplyDefaults() {
	if client, err := ParseClient(string(c.Client)); err == nil {
		c.Client = client
	}

	switch c.Client {
	case ClientSQLite:
		if c.File == "" {
			c.File = "database.sqlite"
		}
	case ClientPostgres:
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 5432
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
	case ClientMySQL:
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 3306
		}
	}

	if c.PoolMax == 0 {
		c.PoolMax = 10
	}
	if c.PoolMin > c.PoolMax {
		c.PoolMin = c.PoolMax
	}
}

// Validate checks client-specific requirements beyond struct tags.
func (c *Config) Validate() error {
	if _, err := ParseClient(string(c.Client)); err != nil {
		return err
	}
	switch c.Client {
	case ClientSQLite:
		if c.File == "" {
			return fmt.Errorf("sqlite file is required")
		}
	case ClientPostgres, ClientMySQL:
		if c.URL == "" && c.Name == "" {
			return fmt.Errorf("%s database name or url is required", c.Client)
		}
	}
	if c.PoolMin > c.PoolMax {
		return fmt.Errorf("pool_min (%d) exceeds pool_max (%d)", c.PoolMin, c.PoolMax)
	}
	return nil
}

// InMemory reports whether the SQLite database lives in memory.
func (c *Config) InMemory() bool {
	return c.Client == ClientSQLite && (c.File == ":memory:" || strings.Contains(c.File, "mode=memory"))
}

// SQLitePath resolves the SQLite file against root.
func (c *Config) SQLitePath(root string) string {
	if c.InMemory() || filepath.IsAbs(c.File) {
		return c.File
	}
	return filepath.Join(root, c.File)
}

// PoolLimits returns the idle/open connection limits. SQLite is limited to a
// single connection.
func (c *Config) PoolLimits() (idle, open int) {
	if c.Client == ClientSQLite {
		return 1, 1
	}
	return c.PoolMin, c.PoolMax
}

// DatabaseName returns the target database name, reading it from the URL when
// one is configured.
func (c *Config) DatabaseName() string {
	if c.URL == "" {
		return c.Name
	}
	switch c.Client {
	case ClientPostgres:
		if u, err := url.Parse(c.URL); err == nil && u.Scheme != "" {
			return strings.TrimPrefix(u.Path, "/")
		}
	case ClientMySQL:
		if cfg, err := mysql.ParseDSN(c.URL); err == nil {
			return cfg.DBName
		}
	}
	return c.Name
}

// DSN returns the driver connection string for the configured client.
func (c *Config) DSN(root string) (string, error) {
	switch c.Client {
	case ClientSQLite:
		if c.InMemory() {
			return c.File, nil
		}
		// journal_mode(WAL): concurrent readers with a single writer
		// busy_timeout(5000): wait up to 5 seconds when the database is locked
		return c.SQLitePath(root) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	case ClientPostgres:
		if c.URL != "" {
			return c.URL, nil
		}
		return c.postgresDSN(c.Name), nil
	case ClientMySQL:
		return c.mysqlDSN(c.DatabaseName())
	default:
		return "", fmt.Errorf("unsupported database client: %s", c.Client)
	}
}

func (c *Config) postgresDSN(dbname string) string {
	host := c.Host
	if c.SocketPath != "" {
		host = c.SocketPath
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		host, c.Port, c.User, c.Password, dbname)
	if c.SSLMode != "" {
		dsn += " sslmode=" + c.SSLMode
	}
	return dsn
}

func (c *Config) mysqlDSN(dbname string) (string, error) {
	var cfg *mysql.Config
	if c.URL != "" {
		parsed, err := mysql.ParseDSN(c.URL)
		if err != nil {
			return "", fmt.Errorf("invalid mysql url: %w", err)
		}
		cfg = parsed
	} else {
		cfg = mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		if c.SocketPath != "" {
			cfg.Net = "unix"
			cfg.Addr = c.SocketPath
		} else {
			cfg.Net = "tcp"
			cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		}
	}
	cfg.DBName = dbname
	cfg.ParseTime = true
	// SQL migration and seed files may hold several statements.
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

// maintenanceDSN connects to the server without selecting the target
// database, for CREATE/DROP DATABASE.
func (c *Config) maintenanceDSN() (string, error) {
	switch c.Client {
	case ClientPostgres:
		if c.URL == "" {
			return c.postgresDSN("postgres"), nil
		}
		u, err := url.Parse(c.URL)
		if err != nil || u.Scheme == "" {
			return "", fmt.Errorf("invalid postgres url")
		}
		u.Path = "/postgres"
		return u.String(), nil
	case ClientMySQL:
		return c.mysqlDSN("")
	default:
		return "", fmt.Errorf("client %s has no maintenance database", c.Client)
	}
}

// String describes the target without credentials.
func (c Config) String() string {
	if c.Client == ClientSQLite {
		return fmt.Sprintf("sqlite(%s)", c.File)
	}
	return fmt.Sprintf("%s(%s)", c.Client, c.DatabaseName())
}
