package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "STORE_DRIVER", "CHAT_RETRY_MAX_ATTEMPTS", "CHAT_RETRY_INITIAL_INTERVAL", "ASYNQ_CONCURRENCY", "CHAT_CONNECTION_GATE", "DB_MAX_CONNS"} {
		t.Setenv(key, "")
	}

	cfg, found := Load("does-not-exist.env")

	assert.False(t, found)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryInitialInterval)
	assert.Equal(t, 10, cfg.AsynqConcurrency)
	assert.False(t, cfg.ConnectionGate)
	assert.Equal(t, 16, cfg.DBMaxConns)
	assert.Equal(t, time.Hour, cfg.DBMaxConnLifetime)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("CHAT_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("CHAT_RETRY_INITIAL_INTERVAL", "5ms")
	t.Setenv("CHAT_DEDUPE_TTL", "not-a-duration")
	t.Setenv("CHAT_CONNECTION_GATE", "true")
	t.Setenv("DB_MAX_CONNS", "40")

	cfg, _ := Load("does-not-exist.env")

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 7, cfg.RetryMaxAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.RetryInitialInterval)
	assert.Equal(t, 24*time.Hour, cfg.DedupeTTL)
	assert.True(t, cfg.ConnectionGate)
	assert.Equal(t, 40, cfg.DBMaxConns)
}

func TestUnknownStoreDriverFallsBackToPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")

	cfg, _ := Load("does-not-exist.env")

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
}
