package configs

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

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 1024, cfg.Realtime.EventQueueSize)
	assert.Equal(t, 64, cfg.Realtime.SendBufferSize)
	assert.Equal(t, 50*time.Second, cfg.Realtime.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongWait)
	assert.Equal(t, int64(4096), cfg.Realtime.ReadLimit)
	assert.Equal(t, StoreMemory, cfg.ProductStore.Driver)
	assert.Equal(t, RelayNone, cfg.Relay.Driver)
	assert.Equal(t, "zap", cfg.Logger.Driver)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9090
  allowed_origins: ["https://toko.example"]
realtime:
  ping_interval: 5s
  pong_wait: 15s
  send_buffer_size: 8
relay:
  driver: redis
  redis:
    channel: catalog.test
logger:
  driver: zerolog
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(9090), cfg.HTTP.Port)
	assert.Equal(t, []string{"https://toko.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Realtime.PingInterval)
	assert.Equal(t, 15*time.Second, cfg.Realtime.PongWait)
	assert.Equal(t, 8, cfg.Realtime.SendBufferSize)
	assert.Equal(t, 1024, cfg.Realtime.EventQueueSize, "unset keys keep defaults")
	assert.Equal(t, RelayRedis, cfg.Relay.Driver)
	assert.Equal(t, "catalog.test", cfg.Relay.Redis.Channel)
	assert.Equal(t, "localhost:6379", cfg.Relay.Redis.Addr)
	assert.Equal(t, "zerolog", cfg.Logger.Driver)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "http:\n  port: 9090\n")
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("REALTIME_EVENT_QUEUE_SIZE", "16")
	t.Setenv("RELAY_DRIVER", "rabbitmq")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(7070), cfg.HTTP.Port)
	assert.Equal(t, 16, cfg.Realtime.EventQueueSize)
	assert.Equal(t, RelayRabbitMQ, cfg.Relay.Driver)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"store driver":       "product_store:\n  driver: postgres\n",
		"relay driver":       "relay:\n  driver: kafka\n",
		"ping window":        "realtime:\n  ping_interval: 60s\n  pong_wait: 30s\n",
		"queue size":         "realtime:\n  event_queue_size: -1\n",
		"zero ping interval": "realtime:\n  ping_interval: 0s\n",
		"negative ping":      "realtime:\n  ping_interval: -5s\n",
		"zero write wait":    "realtime:\n  write_wait: 0s\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDetermineConfigPath(t *testing.T) {
	t.Setenv("TOKO_CONFIG", "/from/env.yaml")

	assert.Equal(t, "/from/flag.yaml", DetermineConfigPath([]string{"--config", "/from/flag.yaml"}))
	assert.Equal(t, "/from/env.yaml", DetermineConfigPath(nil))
}
