package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 32, cfg.Session.Shards)
	assert.Equal(t, 5*time.Second, cfg.Escalation.HookTimeout)
	assert.Equal(t, 256, cfg.Escalation.QueueSize)
	assert.Empty(t, cfg.DB.DSN)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yaml := `
app:
  log_level: debug
http:
  port: 9090
kafka:
  enabled: true
  brokers: ["k1:9092"]
session:
  ttl: 10m
db:
  driver: postgres
  dsn: postgres://triage@localhost/triage?sslmode=disable
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("TRIAGE_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("TRIAGE_WORKERS_COUNT", "3")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 3, cfg.Workers.Count)
	assert.Equal(t, "postgres", cfg.DB.Driver)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad http port", func(c *config.Config) { c.HTTP.Port = 0 }},
		{"same ports", func(c *config.Config) { c.GRPC.Port = c.HTTP.Port }},
		{"kafka without brokers", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"unknown db driver", func(c *config.Config) { c.DB.DSN = "x"; c.DB.Driver = "sqlite" }},
		{"redis without qps", func(c *config.Config) { c.Redis.Addr = "localhost:6379"; c.Redis.RateLimitQPS = 0 }},
		{"no workers", func(c *config.Config) { c.Workers.Count = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
