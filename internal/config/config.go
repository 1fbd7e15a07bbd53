package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every environment-driven setting of the chat service.
// Zero values are replaced by defaults in Load.
type Config struct {
	HTTPAddr    string
	DBURL       string
	StoreDriver string // "postgres" or "memory"
	RedisURL    string

	DBMaxConns        int
	DBMinConns        int
	DBMaxConnIdle     time.Duration
	DBMaxConnLifetime time.Duration

	AsynqConcurrency int
	AsynqQueues      string

	// ConnectionGate restricts joins to pairs with an accepted connection request.
	ConnectionGate bool

	JWTSecret string
	JWTIssuer string

	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	DedupeTTL       time.Duration
	InflightTimeout time.Duration

	LogLevel  string
	LogFormat string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error; the returned bool reports whether it was found.
func Load(files ...string) (Config, bool) {
	found := godotenv.Load(files...) == nil

	cfg := Config{
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),
		DBURL:       envString("DB_URL", ""),
		StoreDriver: strings.ToLower(envString("STORE_DRIVER", StoreDriverPostgres)),
		RedisURL:    envString("REDIS_URL", ""),

		DBMaxConns:        envInt("DB_MAX_CONNS", 16),
		DBMinConns:        envInt("DB_MIN_CONNS", 0),
		DBMaxConnIdle:     envDuration("DB_MAX_CONN_IDLE", 5*time.Minute),
		DBMaxConnLifetime: envDuration("DB_MAX_CONN_LIFETIME", time.Hour),

		AsynqConcurrency: envInt("ASYNQ_CONCURRENCY", 10),
		AsynqQueues:      envString("ASYNQ_QUEUES", "chat=6,default=1"),
		ConnectionGate:   envBool("CHAT_CONNECTION_GATE", false),

		JWTSecret: envString("JWT_SECRET", ""),
		JWTIssuer: envString("JWT_ISSUER", "matchchat"),

		RetryMaxAttempts:     envInt("CHAT_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialInterval: envDuration("CHAT_RETRY_INITIAL_INTERVAL", 100*time.Millisecond),
		RetryMaxInterval:     envDuration("CHAT_RETRY_MAX_INTERVAL", 2*time.Second),
		RetryMultiplier:      envFloat("CHAT_RETRY_MULTIPLIER", 2),

		DedupeTTL:       envDuration("CHAT_DEDUPE_TTL", 24*time.Hour),
		InflightTimeout: envDuration("CHAT_INFLIGHT_TIMEOUT", 5*time.Second),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "text"),
	}
	if cfg.StoreDriver != StoreDriverMemory {
		cfg.StoreDriver = StoreDriverPostgres
	}
	return cfg, found
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 1 {
			return f
		}
	}
	return def
}

// envDuration accepts Go duration strings ("250ms", "3s").
func envDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
