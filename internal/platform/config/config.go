package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// SubmitRateLimit caps registration submissions per client IP per
	// minute. Zero disables throttling.
	SubmitRateLimit int
}

// RedisConfig configures the confirmation-token store backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the notification publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("IDHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("IDHUB_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("IDHUB_KAFKA_TOPIC")
	if topic == "" {
		topic = "idhub.notifications"
	}

	var brokers []string
	if b := os.Getenv("IDHUB_KAFKA_BROKERS"); b != "" {
		brokers = splitComma(b)
	}

	return Server{
		Addr:          addr,
		AdminToken:    os.Getenv("IDHUB_ADMIN_TOKEN"),
		JWTSigningKey: jwtSigningKey,
		PostgresURL:   os.Getenv("IDHUB_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("IDHUB_REDIS_URL"),
			PoolSize:     envInt("IDHUB_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("IDHUB_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
		SubmitRateLimit: envInt("IDHUB_SUBMIT_RATE_LIMIT", 30),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
