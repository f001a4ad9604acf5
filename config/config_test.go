package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "")
	t.Setenv("MINIO_BUCKET", "")
	t.Setenv("SIGNED_URL_EXPIRY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "podcasts", cfg.MinioBucket)
	assert.Equal(t, 12*time.Hour, cfg.SignedURLExpiry)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.StorageConfigured())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_NAME", "church")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SIGNED_URL_EXPIRY", "30m")
	t.Setenv("PUBLIC_BASE_URL", "https://kgic.example.org/")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_ACCESS_KEY", "access")
	t.Setenv("MINIO_SECRET_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "church", cfg.DBName)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 30*time.Minute, cfg.SignedURLExpiry)
	assert.Equal(t, "https://kgic.example.org", cfg.PublicBaseURL)
	assert.True(t, cfg.StorageConfigured())
	assert.Contains(t, cfg.DSN(), "/church?")
	assert.Contains(t, cfg.DSN(), "parseTime=true")
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kgic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL: debug\nMINIO_BUCKET: sermons\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sermons", cfg.MinioBucket)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
