package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "memory", cfg.Import.Tracker)
	assert.Equal(t, "India", cfg.Import.DefaultCountry)
	assert.Equal(t, 3, cfg.Import.AllocationAttempts)
}

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  host: db.internal
  port: 6543
  max_conn_idle_time: 10m
server:
  read_timeout: 20s
  idle_timeout: 2m
import:
  tracker: redis
  tracker_ttl: 30m
  tracker_size: 64
redis:
  addr: cache:6379
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("DATABASE_USER", "trust")
	t.Setenv("IMPORT_ALLOCATION_ATTEMPTS", "5")
	t.Setenv("SERVER_WRITE_TIMEOUT", "90s")
	t.Setenv("DATABASE_MAX_CONN_LIFETIME", "45m")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "trust", cfg.Database.User)
	assert.Equal(t, "redis", cfg.Import.Tracker)
	assert.Equal(t, 30*time.Minute, cfg.Import.TrackerTTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Import.AllocationAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 64, cfg.Import.TrackerSize)
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, 45*time.Minute, cfg.Database.MaxConnLifetime)
	assert.Equal(t, 10*time.Minute, cfg.Database.MaxConnIdleTime)
}

func TestValidateRejectsUnknownTracker(t *testing.T) {
	cfg := Default()
	cfg.Import.Tracker = "memcached"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Import.AllocationAttempts = 0
	require.Error(t, cfg.Validate())
}
