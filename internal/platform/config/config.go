package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	chstrings "chainsense/pkg/platform/strings"
)

// Server captures process-level configuration. FromEnv keeps main lean.
type Server struct {
	Addr        string
	PostgresDSN string
	Redis       RedisConfig
	Kafka       KafkaConfig
	TokenSecret string

	// ShutdownGrace bounds how long in-flight requests and workers get on
	// SIGTERM before the process exits.
	ShutdownGrace time.Duration
}

// RedisConfig configures the optional Redis backend for pipeline state.
// An empty URL means in-process state only.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit relay. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("CHAINSENSE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	tokenSecret := os.Getenv("CHAINSENSE_TOKEN_SECRET")
	if tokenSecret == "" {
		// Development fallback; override in production.
		tokenSecret = "dev-secret-change-in-production"
	}

	topic := os.Getenv("CHAINSENSE_KAFKA_TOPIC")
	if topic == "" {
		topic = "chainsense.audit"
	}

	return Server{
		Addr:        addr,
		PostgresDSN: os.Getenv("CHAINSENSE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("CHAINSENSE_REDIS_URL"),
			PoolSize:     envInt("CHAINSENSE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CHAINSENSE_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: envList("CHAINSENSE_KAFKA_BROKERS"),
			Topic:   topic,
		},
		TokenSecret:   tokenSecret,
		ShutdownGrace: 15 * time.Second,
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := chstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
