package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvDevelopment = "development"

type Config struct {
	HTTPPort           string
	APIURL             string
	AppEnv             string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	RedisAddr     string
	RedisPassword string

	KafkaBrokers   []string
	KafkaTopic     string
	OutboxDBPath   string
	MigrationsPath string
	PollInterval   time.Duration

	MutationRate  float64
	MutationBurst int
}

// Load reads the configuration from the environment. A .env file in the
// working directory, when present, fills in unset variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		APIURL:             strings.TrimSuffix(getEnv("API_URL", "http://localhost:8000"), "/"),
		AppEnv:             getEnv("APP_ENV", "production"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers:   getList("KAFKA_BROKERS"),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "storefront-orders"),
		OutboxDBPath:   getEnv("OUTBOX_DB_PATH", "./data/outbox.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/outbox/migrations"),
		PollInterval:   getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),

		MutationRate:  getFloat("MUTATION_RATE", 5),
		MutationBurst: getInt("MUTATION_BURST", 10),
	}
}

// Development reports whether cookies may be sent without Secure.
func (c *Config) Development() bool {
	return c.AppEnv == EnvDevelopment
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return defaultValue
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
