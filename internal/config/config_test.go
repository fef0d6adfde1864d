package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.AuthTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.StoreTimeout)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, []byte("test-secret"), cfg.JWT.Secret)
	assert.Equal(t, 256, cfg.WebSocket.SendQueueSize)
	assert.Less(t, cfg.WebSocket.PingInterval, cfg.WebSocket.PongWait)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "production")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("WS_SEND_QUEUE_SIZE", "8")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg := Load()

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Database.StoreTimeout)
	assert.Equal(t, 8, cfg.WebSocket.SendQueueSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}
