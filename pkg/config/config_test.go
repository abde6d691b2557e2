package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 24, cfg.Auth.TokenExpiration)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"server": {"host": "0.0.0.0", "port": 9090},
		"storage": {"type": "postgresql", "postgres": {"host": "db.internal", "port": 5432, "database": "hub", "user": "hub"}},
		"auth": {"jwt_secret": "s3cret", "encryption_key": "aa"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgresql", cfg.Storage.Type)
	assert.Equal(t, "db.internal", cfg.Storage.Postgres.Host)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	// Defaults survive for untouched sections
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"auth": {"jwt_secret": "from-file"}}`), 0o644))

	t.Setenv("ATTIO_HUB_JWT_SECRET", "from-env")
	t.Setenv("ATTIO_HUB_ENCRYPTION_KEY", "deadbeef")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "deadbeef", cfg.Auth.EncryptionKey)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSaveAndReloadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = 7070
	require.NoError(t, SaveConfig(cfg, path))

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, reloaded.Server.Port)
}
