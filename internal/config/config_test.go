package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  url: postgres://localhost/crm\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/crm", cfg.Database.DSN)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "direct", cfg.Notifications.Transport)
	assert.Equal(t, "ex.notifications", cfg.RabbitMQ.Exchange)
	assert.Equal(t, 10, cfg.Pagination.DefaultSize)
	assert.Equal(t, 100, cfg.Pagination.MaxSize)
	assert.EqualValues(t, 10<<20, cfg.Import.MaxUploadBytes)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_FileValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
  timezone: Asia/Kolkata
auth:
  jwt_secret: s3cret
  access_ttl: 5m
redis:
  addr: cache:6379
  ttl: 2m
pagination:
  default_size: 25
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 25, cfg.Pagination.DefaultSize)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/crm")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("APP_PORT", "7000")
	t.Setenv("REDIS_ADDR", "redis:6380")

	cfg, err := Load(writeConfig(t, "database:\n  url: postgres://file/crm\nauth:\n  jwt_secret: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/crm", cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestLocation_UnknownZoneFallsBackToUTC(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Timezone: "Mars/Olympus"}}
	assert.Equal(t, time.UTC, cfg.Location())
}
