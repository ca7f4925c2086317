package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// FileName is the default config file looked up in the working directory.
const FileName = "db3.yaml"

// Config is the root of db3.yaml. Durations are written as Go duration
// strings ("10s", "5m"); empty fields fall back to package defaults when
// mapped onto the runtime types.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Pool        PoolConfig        `yaml:"pool"`
	Query       QueryConfig       `yaml:"query"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DatabaseConfig names the target server and session parameters.
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode,omitempty"`
	ClientEncoding string `yaml:"client_encoding,omitempty"`
	AppName        string `yaml:"app_name,omitempty"`
}

// PoolConfig holds the fixed pool profile. queue_limit may be negative to
// disable the lease queue cap.
type PoolConfig struct {
	MaxConns          int32  `yaml:"max_conns"`
	MinConns          int32  `yaml:"min_conns"`
	QueueLimit        int32  `yaml:"queue_limit"`
	ConnectTimeout    string `yaml:"connect_timeout,omitempty"`
	ProbeTimeout      string `yaml:"probe_timeout,omitempty"`
	IdleTimeout       string `yaml:"idle_timeout,omitempty"`
	MaxLifetime       string `yaml:"max_lifetime,omitempty"`
	KeepaliveInterval string `yaml:"keepalive_interval,omitempty"`
	SelfHealLimit     int    `yaml:"self_heal_limit"`
}

// QueryConfig holds execution defaults applied when a call does not
// override them.
type QueryConfig struct {
	Timeout       string `yaml:"timeout,omitempty"`
	MaxAttempts   int    `yaml:"max_attempts"`
	SlowThreshold string `yaml:"slow_threshold,omitempty"`
}

// CredentialsConfig selects how the password (or token) is obtained.
// Secrets themselves stay out of the file where possible: the Azure client
// secret and AWS keys come from the environment.
type CredentialsConfig struct {
	// Source is one of static, env, pgpass, aws, azure, google.
	Source string `yaml:"source,omitempty"`

	Password       string `yaml:"password,omitempty"`
	PgpassFile     string `yaml:"pgpass_file,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
	CacheTTL       string `yaml:"cache_ttl,omitempty"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Credentials: CredentialsConfig{Source: "env"},
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Load reads and parses the config file at path. A missing file returns
// ErrConfigNotFound so callers can fall back to Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, errors.Join(err, db3.ErrInvalidConfig))
	}
	return &cfg, nil
}

var validSources = map[string]bool{
	"": true, "static": true, "env": true, "pgpass": true,
	"aws": true, "azure": true, "google": true,
}

var validSSLModes = map[string]bool{
	"": true, "disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

var validLevels = map[string]bool{
	"": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validFormats = map[string]bool{
	"": true, "text": true, "json": true,
}

// Validate checks the file for values that cannot map onto the runtime
// types. It returns a multi-error if multiple failures occur.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Port < 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("database.port %d is out of range: %w", c.Database.Port, db3.ErrInvalidConfig))
	}
	if !validSSLModes[c.Database.SSLMode] {
		errs = append(errs, fmt.Errorf("database.sslmode %q is not a libpq sslmode: %w", c.Database.SSLMode, db3.ErrInvalidConfig))
	}
	if !validSources[c.Credentials.Source] {
		errs = append(errs, fmt.Errorf("credentials.source %q is not supported: %w", c.Credentials.Source, db3.ErrInvalidConfig))
	}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Errorf("logging.level %q is not a log level: %w", c.Logging.Level, db3.ErrInvalidConfig))
	}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json: %w", c.Logging.Format, db3.ErrInvalidConfig))
	}
	if c.Query.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("query.max_attempts cannot be negative: %w", db3.ErrInvalidConfig))
	}

	durations := []struct {
		key   string
		value string
	}{
		{"pool.connect_timeout", c.Pool.ConnectTimeout},
		{"pool.probe_timeout", c.Pool.ProbeTimeout},
		{"pool.idle_timeout", c.Pool.IdleTimeout},
		{"pool.max_lifetime", c.Pool.MaxLifetime},
		{"pool.keepalive_interval", c.Pool.KeepaliveInterval},
		{"query.timeout", c.Query.Timeout},
		{"query.slow_threshold", c.Query.SlowThreshold},
		{"credentials.cache_ttl", c.Credentials.CacheTTL},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not a duration: %w", d.key, d.value, db3.ErrInvalidConfig))
		}
	}

	return errors.Join(errs...)
}

// PoolConfig maps the file onto the runtime pool profile. Call Validate
// first; unparseable durations map to zero and take package defaults.
func (c *Config) PoolConfig() db3.PoolConfig {
	return db3.PoolConfig{
		MaxConns:          c.Pool.MaxConns,
		MinConns:          c.Pool.MinConns,
		QueueLimit:        c.Pool.QueueLimit,
		ConnectTimeout:    parseDuration(c.Pool.ConnectTimeout),
		ProbeTimeout:      parseDuration(c.Pool.ProbeTimeout),
		IdleTimeout:       parseDuration(c.Pool.IdleTimeout),
		MaxLifetime:       parseDuration(c.Pool.MaxLifetime),
		KeepaliveInterval: parseDuration(c.Pool.KeepaliveInterval),
		SelfHealLimit:     c.Pool.SelfHealLimit,
		SSLMode:           c.Database.SSLMode,
		ClientEncoding:    c.Database.ClientEncoding,
		AppName:           c.Database.AppName,
	}
}

// QueryOptions maps the query section onto per-call defaults.
func (c *Config) QueryOptions() db3.QueryOptions {
	return db3.QueryOptions{
		MaxAttempts: c.Query.MaxAttempts,
		Timeout:     parseDuration(c.Query.Timeout),
	}
}

// SlowQueryThreshold returns the configured slow-query threshold, or zero
// when unset.
func (c *Config) SlowQueryThreshold() time.Duration {
	return parseDuration(c.Query.SlowThreshold)
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
