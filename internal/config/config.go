package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bookstall/bookstall-go/internal/crypto"
)

const defaultJWTSecret = "dev-secret-change-in-production"

// Storage backends.
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      slog.Level
	Storage       string
	DatabaseDSN   string
	DBMigrate     bool
	JWTSecret     string
	JWTExpiry     time.Duration
	PasswordHash  string
	AuthRateRPS   float64
	AuthRateBurst int
}

// IsProduction reports whether ENV is production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		Storage:      strings.ToLower(getEnv("STORAGE", StorageMySQL)),
		DatabaseDSN:  getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/bookstall?parseTime=true"),
		JWTSecret:    getEnv("JWT_SECRET", defaultJWTSecret),
		PasswordHash: strings.ToLower(getEnv("PASSWORD_HASH", "argon2id")),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}
	if cfg.DBMigrate, err = strconv.ParseBool(getEnv("DB_MIGRATE", "true")); err != nil {
		return Config{}, errors.Wrap(err, "DB_MIGRATE")
	}
	if cfg.JWTExpiry, err = time.ParseDuration(getEnv("JWT_EXPIRY", "20h")); err != nil {
		return Config{}, errors.Wrap(err, "JWT_EXPIRY")
	}
	if cfg.AuthRateRPS, err = strconv.ParseFloat(getEnv("AUTH_RATE_RPS", "5"), 64); err != nil {
		return Config{}, errors.Wrap(err, "AUTH_RATE_RPS")
	}
	if cfg.AuthRateBurst, err = strconv.Atoi(getEnv("AUTH_RATE_BURST", "10")); err != nil {
		return Config{}, errors.Wrap(err, "AUTH_RATE_BURST")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageMySQL, StorageMemory:
	default:
		return errors.Errorf("STORAGE must be %q or %q, got %q", StorageMySQL, StorageMemory, c.Storage)
	}
	switch c.PasswordHash {
	case crypto.AlgorithmArgon2id, crypto.AlgorithmBcrypt:
	default:
		return errors.Errorf("PASSWORD_HASH must be %q or %q, got %q", crypto.AlgorithmArgon2id, crypto.AlgorithmBcrypt, c.PasswordHash)
	}
	if c.JWTExpiry <= 0 {
		return errors.New("JWT_EXPIRY must be positive")
	}
	if c.AuthRateRPS <= 0 || c.AuthRateBurst <= 0 {
		return errors.New("AUTH_RATE_RPS and AUTH_RATE_BURST must be positive")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production environment")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrap(err, "LOG_LEVEL")
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
