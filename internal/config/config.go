// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration for the channel-analyzer service.
type Config struct {
	Debug    bool           `yaml:"debug"    env:"DEBUG"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host         string   `yaml:"host"          env:"SERVER_HOST"`
	Port         int      `yaml:"port"          env:"SERVER_PORT"`
	ReadTimeout  Duration `yaml:"read_timeout"  env:"SERVER_READ_TIMEOUT"`
	WriteTimeout Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
}

// StorageConfig selects the job store backend.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
}

// DatabaseConfig configures the PostgreSQL connection. Only consulted when
// the storage driver is "postgres".
type DatabaseConfig struct {
	Host         string   `yaml:"host"           env:"DB_HOST"`
	Port         int      `yaml:"port"           env:"DB_PORT"`
	User         string   `yaml:"user"           env:"DB_USER"`
	Password     string   `yaml:"password"       env:"DB_PASSWORD"`
	Name         string   `yaml:"name"           env:"DB_NAME"`
	SSLMode      string   `yaml:"ssl_mode"       env:"DB_SSL_MODE"`
	MaxOpenConns int      `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns int      `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	MaxLifetime  Duration `yaml:"max_lifetime"   env:"DB_MAX_LIFETIME"`
}

// RedisConfig configures the lifecycle event stream. Leave Addr empty to
// disable event publishing.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"`
	Stream   string `yaml:"stream"   env:"REDIS_STREAM"`
}

// AnalysisConfig tunes job execution.
type AnalysisConfig struct {
	// ProcessingCeiling is the longest a job may stay in processing before
	// the watchdog force-fails it with a timeout.
	ProcessingCeiling Duration `yaml:"processing_ceiling" env:"ANALYSIS_PROCESSING_CEILING"`
	// WatchdogInterval is how often stuck jobs are swept for.
	WatchdogInterval Duration `yaml:"watchdog_interval" env:"ANALYSIS_WATCHDOG_INTERVAL"`
	// ShutdownGrace bounds how long running jobs may drain on shutdown.
	ShutdownGrace Duration `yaml:"shutdown_grace" env:"ANALYSIS_SHUTDOWN_GRACE"`
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(15 * time.Second)
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.MaxLifetime == 0 {
		c.Database.MaxLifetime = Duration(5 * time.Minute)
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "channel-analyzer:events"
	}
	if c.Analysis.ProcessingCeiling == 0 {
		c.Analysis.ProcessingCeiling = Duration(10 * time.Minute)
	}
	if c.Analysis.WatchdogInterval == 0 {
		c.Analysis.WatchdogInterval = Duration(30 * time.Second)
	}
	if c.Analysis.ShutdownGrace == 0 {
		c.Analysis.ShutdownGrace = Duration(30 * time.Second)
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Database.User == "" {
			return fmt.Errorf("database user is required for the postgres driver")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	if c.Analysis.ProcessingCeiling.Std() < time.Second {
		return fmt.Errorf("processing ceiling %s is too short", c.Analysis.ProcessingCeiling.Std())
	}
	if c.Analysis.WatchdogInterval.Std() < time.Second {
		return fmt.Errorf("watchdog interval %s is too short", c.Analysis.WatchdogInterval.Std())
	}
	return nil
}
