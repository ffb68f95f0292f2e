// Package config loads lexsim settings from LEXSIM_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Mindburn-Labs/lexsim/pkg/artifacts"
	"github.com/Mindburn-Labs/lexsim/pkg/logging"
	"github.com/Mindburn-Labs/lexsim/pkg/observability"
)

// Config holds process-wide settings. Command-line flags override these.
type Config struct {
	LogLevel    string `env:"LEXSIM_LOG_LEVEL" envDefault:"info"`
	Parallelism int    `env:"LEXSIM_PARALLELISM" envDefault:"1"`

	// ArchiveDSN is a postgres:// URL or a sqlite file path. Empty disables archiving.
	ArchiveDSN string `env:"LEXSIM_ARCHIVE_DSN"`

	Cache     CacheConfig     `envPrefix:"LEXSIM_CACHE_"`
	Artifacts ArtifactsConfig `envPrefix:"LEXSIM_ARTIFACT_"`
	OTel      OTelConfig      `envPrefix:"LEXSIM_OTEL_"`

	AttestSecret string `env:"LEXSIM_ATTEST_SECRET"`
}

// CacheConfig selects the result cache. An empty RedisAddr uses process memory.
type CacheConfig struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL           time.Duration `env:"TTL" envDefault:"1h"`
}

type ArtifactsConfig struct {
	StorageType  string  `env:"STORAGE_TYPE" envDefault:"fs"`
	DataDir      string  `env:"DATA_DIR" envDefault:"data"`
	S3Bucket     string  `env:"S3_BUCKET"`
	S3Region     string  `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint   string  `env:"S3_ENDPOINT"`
	S3Prefix     string  `env:"S3_PREFIX"`
	GCSBucket    string  `env:"GCS_BUCKET"`
	GCSPrefix    string  `env:"GCS_PREFIX"`
	PublishRPS   float64 `env:"PUBLISH_RPS" envDefault:"5"`
	PublishBurst int     `env:"PUBLISH_BURST" envDefault:"2"`
}

type OTelConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	Endpoint    string  `env:"ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"INSECURE" envDefault:"true"`
	SampleRate  float64 `env:"SAMPLE_RATE" envDefault:"1.0"`
	Environment string  `env:"ENVIRONMENT" envDefault:"development"`
}

// Load parses the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Parallelism < 1 {
		return nil, fmt.Errorf("LEXSIM_PARALLELISM must be at least 1, got %d", cfg.Parallelism)
	}
	if cfg.OTel.SampleRate < 0 || cfg.OTel.SampleRate > 1 {
		return nil, fmt.Errorf("LEXSIM_OTEL_SAMPLE_RATE must be within [0, 1], got %g", cfg.OTel.SampleRate)
	}
	return cfg, nil
}

// Logger returns a leveled logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return logging.NewLogger(c.LogLevel, w)
}

// Observability maps the OTel settings onto a provider config.
func (c *Config) Observability(version string) *observability.Config {
	oc := observability.DefaultConfig()
	oc.Enabled = c.OTel.Enabled
	oc.OTLPEndpoint = c.OTel.Endpoint
	oc.Insecure = c.OTel.Insecure
	oc.SampleRate = c.OTel.SampleRate
	oc.Environment = c.OTel.Environment
	if version != "" {
		oc.ServiceVersion = version
	}
	return oc
}

// ArtifactStore maps the artifact settings onto a store config.
func (c *Config) ArtifactStore() artifacts.Config {
	a := c.Artifacts
	return artifacts.Config{
		Type:    artifacts.StoreType(a.StorageType),
		DataDir: a.DataDir,
		S3: artifacts.S3StoreConfig{
			Bucket:   a.S3Bucket,
			Region:   a.S3Region,
			Endpoint: a.S3Endpoint,
			Prefix:   a.S3Prefix,
		},
		GCS: artifacts.GCSStoreConfig{
			Bucket: a.GCSBucket,
			Prefix: a.GCSPrefix,
		},
	}
}
