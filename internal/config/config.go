// Package config loads Brain core configuration from the environment,
// the same way the reference trading service does: an optional .env
// file via godotenv, then typed getEnv helpers with defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable setting named in §6.
type Config struct {
	// HTTP / auth
	HTTPAddr      string
	JWTSecretKey  string
	TokenTTL      time.Duration
	AdminEmails   []string

	// Persistence
	DatabaseURL string

	// Market data providers (slot names from MARKET_DATA_PROVIDER_*)
	ProviderHistoricalPrimary string
	ProviderLivePrimary       string
	ProviderLiveSecondary     string
	BinanceAPIKey             string
	BinanceAPISecret          string
	BinanceTestnet            bool

	// Cache
	CacheDir      string
	CacheS3Bucket string
	RedisURL      string // optional; read but not used by the cache wiring, whose L3 tier is disabled (no S3 client is passed)

	// Paper trading
	PaperStartingBalance float64

	// Evolution worker
	EvolutionWorkerIntervalHours int

	// MCN
	MCNSnapshotPath string
	MCNMaxBytes     int64

	// Encryption
	EncryptionSecretKey string

	// WebSocket
	WSMaxConnectionsPerSymbol int
	WSMaxConnectionsTotal     int

	// Billing
	StripeSecretKey     string
	StripeWebhookSecret string

	LogLevel string
}

// Load reads a .env file if present (ignoring a missing file, matching
// the reference service's Load) then builds a Config from the process
// environment, applying the defaults below.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:                     getEnv("HTTP_ADDR", ":8080"),
		JWTSecretKey:                 getEnv("JWT_SECRET_KEY", "dev-secret-change-me"),
		TokenTTL:                     getEnvDuration("JWT_TOKEN_TTL", 72*time.Hour),
		AdminEmails:                  splitAndTrim(getEnv("ADMIN_EMAILS", "")),
		DatabaseURL:                  getEnv("DATABASE_URL", "./data/brain.db"),
		ProviderHistoricalPrimary:    getEnv("MARKET_DATA_PROVIDER_HISTORICAL_PRIMARY", "yahoo"),
		ProviderLivePrimary:          getEnv("MARKET_DATA_PROVIDER_LIVE_PRIMARY", "binance"),
		ProviderLiveSecondary:        getEnv("MARKET_DATA_PROVIDER_LIVE_SECONDARY", "yahoo"),
		BinanceAPIKey:                getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret:             getEnv("BINANCE_API_SECRET", ""),
		BinanceTestnet:               getEnvBool("BINANCE_TESTNET", true),
		CacheDir:                     getEnv("CACHE_DIR", "./data/cache"),
		CacheS3Bucket:                getEnv("CACHE_S3_BUCKET", ""),
		RedisURL:                     getEnv("REDIS_URL", ""),
		PaperStartingBalance:         getEnvFloat("PAPER_STARTING_BALANCE", 10000),
		EvolutionWorkerIntervalHours: getEnvInt("EVOLUTION_WORKER_INTERVAL_HOURS", 6),
		MCNSnapshotPath:              getEnv("MCN_SNAPSHOT_PATH", "./data/mcn_snapshot.msgpack"),
		MCNMaxBytes:                  int64(getEnvInt("MCN_MAX_BYTES", 32*1024*1024)),
		EncryptionSecretKey:          getEnv("ENCRYPTION_SECRET_KEY", ""),
		WSMaxConnectionsPerSymbol:    getEnvInt("WS_MAX_CONNECTIONS_PER_SYMBOL", 1),
		WSMaxConnectionsTotal:        getEnvInt("WS_MAX_CONNECTIONS_TOTAL", 1000),
		StripeSecretKey:              getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:          getEnv("STRIPE_WEBHOOK_SECRET", ""),
		LogLevel:                     getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
