// Package config loads schoolcoord settings from the process environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Local persistence drivers.
const (
	LocalMemory = "memory"
	LocalSQLite = "sqlite"
	LocalBlob   = "blob"
)

// Remote persistence drivers. An empty RemoteDriver disables remote sync.
const (
	RemotePostgres = "postgres"
	RemoteNATS     = "nats"
	RemoteS3       = "s3"
)

// Config holds every environment-driven setting.
type Config struct {
	LocalDriver string `env:"LOCAL_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"schoolcoord.db"`

	Blob BlobConfig `envPrefix:"BLOB_"`

	// RemoteDriver is the single switch for remote sync.
	RemoteDriver string `env:"REMOTE_DRIVER"`
	PostgresDSN  string `env:"POSTGRES_DSN" envDefault:"postgres://localhost/schoolcoord?sslmode=disable"`
	NATSURL      string `env:"NATS_URL"     envDefault:"nats://127.0.0.1:4222"`
	NATSBucket   string `env:"NATS_BUCKET"  envDefault:"coordination"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"10m"`
	PollInterval    time.Duration `env:"POLL_INTERVAL"    envDefault:"30s"`
	Locale          string        `env:"LOCALE"           envDefault:"fr-FR"`
	MetricsAddr     string        `env:"METRICS_ADDR"`
}

// BlobConfig selects and configures the blob store behind the blob driver
// and the s3 remote driver.
type BlobConfig struct {
	Driver      string `env:"DRIVER"  envDefault:"fs"`
	FSRoot      string `env:"FS_ROOT" envDefault:"./blobdata"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3PathStyle bool   `env:"S3_PATH_STYLE"`
}

// Prefix is prepended to every variable name.
const Prefix = "SCHOOLCOORD_"

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses the supplied variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RemoteEnabled reports whether a remote driver is configured.
func (c Config) RemoteEnabled() bool {
	return c.RemoteDriver != ""
}

// Validate checks driver names and intervals.
func (c Config) Validate() error {
	switch c.LocalDriver {
	case LocalMemory, LocalSQLite, LocalBlob:
	default:
		return fmt.Errorf("unknown local driver %q", c.LocalDriver)
	}
	switch c.RemoteDriver {
	case "", RemotePostgres, RemoteNATS, RemoteS3:
	default:
		return fmt.Errorf("unknown remote driver %q", c.RemoteDriver)
	}
	if c.RemoteDriver == RemoteS3 && c.Blob.S3Bucket == "" {
		return fmt.Errorf("%sBLOB_S3_BUCKET required for s3 remote driver", Prefix)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}
