package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN     string
	RedisAddr       string
	KafkaBrokers    []string
	JWTSecret       string
	HTTPAddr        string
	CodeTTL         time.Duration
	CodeMaxAttempts int32
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBrokers:    []string{os.Getenv("KAFKA_BROKER")},
		JWTSecret:       os.Getenv("JWT_SECRET"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		CodeTTL:         14 * 24 * time.Hour,
		CodeMaxAttempts: 5,
	}

	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=wallet sslmode=disable"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if days, err := strconv.Atoi(os.Getenv("CODE_TTL_DAYS")); err == nil && days > 0 {
		cfg.CodeTTL = time.Duration(days) * 24 * time.Hour
	}
	if attempts, err := strconv.Atoi(os.Getenv("CODE_MAX_ATTEMPTS")); err == nil && attempts > 0 {
		cfg.CodeMaxAttempts = int32(attempts)
	}

	slog.Info("config loaded",
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"http_addr", cfg.HTTPAddr,
		"code_ttl", cfg.CodeTTL,
		"code_max_attempts", cfg.CodeMaxAttempts)
	return cfg
}
