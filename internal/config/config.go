package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration. Fields are populated by
// viper from an optional YAML file with environment variable overrides, per
// the env inputs named in spec.md section 6 (EXTERNAL INTERFACES).
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server and auth-surface configuration. Username
// and password gate the REST API with HTTP basic auth (spec.md's USERNAME/
// PASSWORD env inputs); SecretKey and SessionMaxAge are carried through for
// the surrounding surface (session cookies) and are not consumed by the core.
type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           string   `yaml:"port" mapstructure:"port"`
	Username       string   `yaml:"username" mapstructure:"username"`
	Password       string   `yaml:"password" mapstructure:"password"`
	SecretKey      string   `yaml:"secretKey" mapstructure:"secretKey"`
	SessionMaxAge  int      `yaml:"sessionMaxAge" mapstructure:"sessionMaxAge"`
	CORSOrigins    []string `yaml:"corsOrigins" mapstructure:"corsOrigins"`
}

// StorageConfig selects and configures the MonitorStore backend (see
// internal/storage.NewStore) plus the optional InfluxDB result mirror.
type StorageConfig struct {
	// Backend is one of "badger" (default), "postgres", "memory".
	Backend string `yaml:"backend" mapstructure:"backend"`
	// ResultsRetention caps how many results are kept per monitor,
	// evicting oldest-first (spec.md section 4.8). Corresponds to the
	// RESULTS_RETENTION env var.
	ResultsRetention int `yaml:"resultsRetention" mapstructure:"resultsRetention"`

	Badger   BadgerConfig   `yaml:"badger" mapstructure:"badger"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" mapstructure:"influxdb"`
}

// BadgerConfig configures the embedded BadgerDB backend.
type BadgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslMode" mapstructure:"sslMode"`
}

// InfluxDBConfig configures the supplemental result mirror. It is disabled
// unless Enabled is explicitly set.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	URL     string `yaml:"url" mapstructure:"url"`
	Token   string `yaml:"token" mapstructure:"token"`
	Org     string `yaml:"org" mapstructure:"org"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string            `yaml:"level" mapstructure:"level"`
	Format string            `yaml:"format" mapstructure:"format"`
	Output string            `yaml:"output" mapstructure:"output"`
	Fields map[string]string `yaml:"fields" mapstructure:"fields"`
}

// LoadConfig reads an optional YAML file at configPath and layers
// environment variables on top via viper's AutomaticEnv, matching the
// env inputs spec.md section 6 names. A missing config file is not an
// error: defaults plus environment variables are enough to run.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "7878")
	v.SetDefault("server.sessionMaxAge", 86400)
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("storage.backend", "badger")
	v.SetDefault("storage.resultsRetention", 100)
	v.SetDefault("storage.badger.path", "./data/hallmonitor")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.sslMode", "disable")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hallmonitor")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// CORS_ORIGINS is a comma-separated string in the environment, not a
	// native list; viper/mapstructure can't split it, so handle it by hand.
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		cfg.Server.CORSOrigins = origins
	}

	return &cfg, nil
}

// bindEnv maps the flat, Python-app-shaped env vars from spec.md section 6
// onto their nested config destinations. MONGODB_URI/MONGODB_DB name the
// original implementation's document store; they land on the
// storage.mongoURI/storage.mongoDB keys, which no Config field or backend
// reads, so they have no effect (Postgres is configured through the
// storage.postgres.* keys or STORAGE_POSTGRES_* env vars). They are bound
// here so LoadConfig never errors on their presence.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.host", "HOST")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.username", "USERNAME")
	_ = v.BindEnv("server.password", "PASSWORD")
	_ = v.BindEnv("server.secretKey", "SECRET_KEY")
	_ = v.BindEnv("server.sessionMaxAge", "SESSION_MAX_AGE")
	_ = v.BindEnv("server.corsOrigins", "CORS_ORIGINS")
	_ = v.BindEnv("storage.resultsRetention", "RESULTS_RETENTION")
	_ = v.BindEnv("storage.mongoURI", "MONGODB_URI")
	_ = v.BindEnv("storage.mongoDB", "MONGODB_DB")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Validate checks cross-field invariants that a YAML/env-sourced config
// might violate before it reaches the rest of the application.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	switch c.Storage.Backend {
	case "", "badger", "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage.backend: %s (valid options: badger, postgres, memory)", c.Storage.Backend)
	}

	if c.Storage.ResultsRetention <= 0 {
		return fmt.Errorf("storage.resultsRetention must be positive")
	}

	if c.Storage.Backend == "postgres" && c.Storage.Postgres.Host == "" {
		return fmt.Errorf("storage.postgres.host is required when storage.backend is postgres")
	}

	if c.Storage.InfluxDB.Enabled {
		if c.Storage.InfluxDB.URL == "" || c.Storage.InfluxDB.Bucket == "" {
			return fmt.Errorf("storage.influxdb.url and storage.influxdb.bucket are required when storage.influxdb.enabled is true")
		}
	}

	return nil
}
