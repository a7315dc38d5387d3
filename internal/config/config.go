package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config captures all tunable parameters for the server process.
// Values are loaded from environment variables with sane defaults so the
// binary can run locally without excessive setup.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel string
	Seed     bool
}

func defaults() Config {
	return Config{
		HTTPAddr:        ":5000",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		TokenTTL:        30 * 24 * time.Hour,
		RedisGeoKey:     "riders_geo",
		KafkaTopic:      "ride-events",
		LogLevel:        "info",
	}
}

func Load() (Config, error) {
	cfg := defaults()
	var errs []error

	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setDuration(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDuration(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDuration(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDuration(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)
	setDuration(&cfg.TokenTTL, "TOKEN_TTL", &errs)

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}
	cfg.JWTSecret = os.Getenv("APP_JWT_SECRET")
	if cfg.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("APP_JWT_SECRET is required"))
	}

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setString(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setString(&cfg.KafkaTopic, "KAFKA_TOPIC")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.Seed = strings.EqualFold(os.Getenv("SEED"), "true")

	return cfg, errors.Join(errs...)
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setDuration(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
