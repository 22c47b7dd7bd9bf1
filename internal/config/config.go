package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven configuration.
type Config struct {
	Addr     string
	AppEnv   string
	LogLevel string

	// DatabaseURL selects the Postgres store; empty runs against the in-memory store.
	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	CartCacheTTL  time.Duration

	KafkaBrokers   []string
	OutboxTopic    string
	OutboxInterval time.Duration

	PaymentWebhookSecret string
	PaymentCurrency      string

	CheckoutMaxAttempts int
	CheckoutLockTimeout time.Duration

	SeedProducts   bool
	AllowDevTokens bool
}

// Load reads a .env file when present and then environment variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:     getEnv("APP_ADDR", ":8080"),
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CartCacheTTL:  getEnvDuration("CART_CACHE_TTL", 2*time.Minute),

		KafkaBrokers:   splitCSV(os.Getenv("KAFKA_BROKERS")),
		OutboxTopic:    getEnv("OUTBOX_TOPIC", "orders"),
		OutboxInterval: getEnvDuration("OUTBOX_INTERVAL", time.Second),

		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		PaymentCurrency:      getEnv("PAYMENT_CURRENCY", "usd"),

		CheckoutMaxAttempts: getEnvInt("CHECKOUT_MAX_ATTEMPTS", 3),
		CheckoutLockTimeout: getEnvDuration("CHECKOUT_LOCK_TIMEOUT", 2*time.Second),

		SeedProducts:   getEnvBool("SEED_PRODUCTS", false),
		AllowDevTokens: getEnvBool("ALLOW_DEV_TOKENS", false),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

func splitCSV(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
