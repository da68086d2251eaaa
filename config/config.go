/*
config.go - Layered runtime configuration

LOAD ORDER (later wins):
  1. Default()
  2. JSON file (optional, -config)
  3. .env file via godotenv (never overrides variables already set)
  4. Environment: COMMISSION_*, DB_*, JWT_SECRET
  5. Command-line flags (applied by the binaries in cmd/)

ENVIRONMENT:
  COMMISSION_PORT                 HTTP port
  COMMISSION_WORKERS              Engine parallelism
  COMMISSION_REPORTING_SHARE_PCT  Reporting employee slice, percent
  COMMISSION_DEFAULT_SHARE_PCT    Source share when no tier applies
  COMMISSION_LOG_LEVEL            debug|info|warn|error
  COMMISSION_LOG_FORMAT           console|json
  DB_DRIVER                       sqlite|postgres
  DB_PATH                         SQLite file (":memory:" allowed)
  DB_HOST DB_PORT DB_NAME DB_USER DB_PASSWORD DB_SSLMODE
  JWT_SECRET                      Enables bearer-token tenant auth
  JWT_TENANT_CLAIM                Claim carrying the tenant (default tenant_id)

SEE ALSO:
  - logging/logging.go: Logging section
  - store/open.go: Database section consumer
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/logging"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the main application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Engine   EngineConfig   `json:"engine"`
	Auth     AuthConfig     `json:"auth"`
	Logging  logging.Config `json:"logging"`
}

type ServerConfig struct {
	Port int `json:"port"`

	// Scenarios enables the demo dataset endpoints.
	Scenarios bool `json:"scenarios"`
}

// DatabaseConfig selects and addresses the store.
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslmode"`
}

// EngineConfig tunes commission runs. Percentages are decimal strings.
type EngineConfig struct {
	Workers               int    `json:"workers"`
	ReportingSharePercent string `json:"reporting_share_percent"`
	DefaultSharePercent   string `json:"default_share_percent"`
}

type AuthConfig struct {
	// JWTSecret enables HS256 bearer tokens. Empty means the X-Tenant-ID
	// header is trusted.
	JWTSecret   string `json:"jwt_secret"`
	TenantClaim string `json:"tenant_claim"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Scenarios: true},
		Database: DatabaseConfig{
			Driver:  DriverSQLite,
			Path:    "commission.db",
			Host:    "localhost",
			Port:    5432,
			Name:    "commissions",
			User:    "postgres",
			SSLMode: "disable",
		},
		Engine: EngineConfig{
			ReportingSharePercent: commission.DefaultReportingSharePercent.String(),
			DefaultSharePercent:   "0",
		},
		Auth:    AuthConfig{TenantClaim: "tenant_id"},
		Logging: logging.DefaultConfig(),
	}
}

// Load builds a configuration from defaults, an optional JSON file, an
// optional .env file and the environment. Empty paths are skipped; a
// missing .env is not an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if err := num("COMMISSION_PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := num("COMMISSION_WORKERS", &c.Engine.Workers); err != nil {
		return err
	}
	str("COMMISSION_REPORTING_SHARE_PCT", &c.Engine.ReportingSharePercent)
	str("COMMISSION_DEFAULT_SHARE_PCT", &c.Engine.DefaultSharePercent)
	str("COMMISSION_LOG_LEVEL", &c.Logging.Level)
	str("COMMISSION_LOG_FORMAT", &c.Logging.Format)
	str("COMMISSION_LOG_OUTPUT", &c.Logging.Output)
	if v, ok := lookup("COMMISSION_SCENARIOS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COMMISSION_SCENARIOS: %w", err)
		}
		c.Server.Scenarios = b
	}

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_PATH", &c.Database.Path)
	str("DB_HOST", &c.Database.Host)
	if err := num("DB_PORT", &c.Database.Port); err != nil {
		return err
	}
	str("DB_NAME", &c.Database.Name)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_SSLMODE", &c.Database.SSLMode)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("JWT_TENANT_CLAIM", &c.Auth.TenantClaim)
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("database.host and database.name are required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Engine.Workers < 0 {
		return errors.New("engine.workers must not be negative")
	}
	if _, _, err := c.Engine.Percentages(); err != nil {
		return err
	}
	return nil
}

// Percentages parses the engine share settings.
func (e EngineConfig) Percentages() (reporting, fallback decimal.Decimal, err error) {
	reporting, err = parsePercent("engine.reporting_share_percent", e.ReportingSharePercent)
	if err != nil {
		return
	}
	fallback, err = parsePercent("engine.default_share_percent", e.DefaultSharePercent)
	return
}

func parsePercent(name, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s: %s is outside 0..100", name, s)
	}
	return d, nil
}

// EngineOptions turns the engine section into commission options.
func (c *Config) EngineOptions() ([]commission.Option, error) {
	reporting, fallback, err := c.Engine.Percentages()
	if err != nil {
		return nil, err
	}
	return []commission.Option{
		commission.WithWorkers(c.Engine.Workers),
		commission.WithReportingSharePercent(reporting),
		commission.WithDefaultSharePercent(fallback),
		commission.WithLogger(logging.Logger),
	}, nil
}
