package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/lexsim/pkg/artifacts"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 1, cfg.Parallelism)
	require.Empty(t, cfg.ArchiveDSN)
	require.Equal(t, time.Hour, cfg.Cache.TTL)
	require.Equal(t, "fs", cfg.Artifacts.StorageType)
	require.False(t, cfg.OTel.Enabled)
	require.Equal(t, "localhost:4317", cfg.OTel.Endpoint)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LEXSIM_LOG_LEVEL", "debug")
	t.Setenv("LEXSIM_PARALLELISM", "8")
	t.Setenv("LEXSIM_ARCHIVE_DSN", "postgres://localhost/lexsim")
	t.Setenv("LEXSIM_CACHE_REDIS_ADDR", "localhost:6379")
	t.Setenv("LEXSIM_CACHE_TTL", "15m")
	t.Setenv("LEXSIM_ARTIFACT_STORAGE_TYPE", "s3")
	t.Setenv("LEXSIM_ARTIFACT_S3_BUCKET", "reports")
	t.Setenv("LEXSIM_ARTIFACT_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("LEXSIM_OTEL_ENABLED", "true")
	t.Setenv("LEXSIM_OTEL_SAMPLE_RATE", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8, cfg.Parallelism)
	require.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	require.Equal(t, 15*time.Minute, cfg.Cache.TTL)

	store := cfg.ArtifactStore()
	require.Equal(t, artifacts.StoreTypeS3, store.Type)
	require.Equal(t, "reports", store.S3.Bucket)
	require.Equal(t, "us-east-1", store.S3.Region)
	require.Equal(t, "http://localhost:9000", store.S3.Endpoint)

	oc := cfg.Observability("1.2.3")
	require.True(t, oc.Enabled)
	require.InDelta(t, 0.25, oc.SampleRate, 1e-9)
	require.Equal(t, "1.2.3", oc.ServiceVersion)
	require.Equal(t, "lexsim", oc.ServiceName)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("parallelism", func(t *testing.T) {
		t.Setenv("LEXSIM_PARALLELISM", "0")
		_, err := Load()
		require.ErrorContains(t, err, "LEXSIM_PARALLELISM")
	})
	t.Run("sample rate", func(t *testing.T) {
		t.Setenv("LEXSIM_OTEL_SAMPLE_RATE", "2")
		_, err := Load()
		require.ErrorContains(t, err, "SAMPLE_RATE")
	})
	t.Run("malformed", func(t *testing.T) {
		t.Setenv("LEXSIM_CACHE_TTL", "soon")
		_, err := Load()
		require.ErrorContains(t, err, "parse env")
	})
}
