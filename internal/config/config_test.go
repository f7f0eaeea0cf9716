package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "admin@example.com", cfg.Admin.Email)
	assert.Equal(t, 5, cfg.Login.MaxFailures)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: "8081"
  show_error_details: true
database:
  type: postgres
  url: postgres://quiz@localhost/quiz
redis:
  addr: localhost:6379
  db: 2
login:
  max_failures: 3
  window: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_TYPE", "MYSQL")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Server.ShowErrorDetails)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "postgres://quiz@localhost/quiz", cfg.Database.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB, "invalid env value keeps the file value")
	assert.Equal(t, 3, cfg.Login.MaxFailures)
	assert.Equal(t, time.Minute, Duration(cfg.Login.Window, time.Hour))
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 10*time.Minute, Duration("", 10*time.Minute))
	assert.Equal(t, 10*time.Minute, Duration("soon", 10*time.Minute))
	assert.Equal(t, 90*time.Second, Duration("90s", 10*time.Minute))
}
