package config

import (
	"os"
	"strconv"
	"strings"
)

// Config captures daemon configuration. Everything comes from environment
// variables so main stays lean.
type Config struct {
	Addr          string
	APISecret     string
	JWTSigningKey string

	StatePath   string
	StateSecret string

	EventBackend string
	RedisURL     string
	KafkaBrokers []string

	PostgresURL string

	LedgerURL    string
	ChainID      string
	KeyringURL   string
	WalletCodeID uint64

	DevMode bool
}

// Event backend selectors.
const (
	EventBackendMemory = "memory"
	EventBackendRedis  = "redis"
	EventBackendKafka  = "kafka"
)

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("MOCHIFI_ADDR", ":8080"),
		APISecret:     os.Getenv("MOCHIFI_API_SECRET"),
		JWTSigningKey: envOr("MOCHIFI_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		StatePath:     envOr("MOCHIFI_STATE_PATH", "mochifi-state.sealed"),
		StateSecret:   os.Getenv("MOCHIFI_STATE_SECRET"),
		EventBackend:  envOr("MOCHIFI_EVENT_BACKEND", EventBackendMemory),
		RedisURL:      os.Getenv("MOCHIFI_REDIS_URL"),
		PostgresURL:   os.Getenv("MOCHIFI_POSTGRES_URL"),
		LedgerURL:     os.Getenv("MOCHIFI_LEDGER_URL"),
		ChainID:       envOr("MOCHIFI_CHAIN_ID", "columbus-5"),
		KeyringURL:    os.Getenv("MOCHIFI_KEYRING_URL"),
		DevMode:       os.Getenv("MOCHIFI_DEV_MODE") == "true",
	}
	if brokers := os.Getenv("MOCHIFI_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if raw := os.Getenv("MOCHIFI_WALLET_CODE_ID"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			cfg.WalletCodeID = id
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
