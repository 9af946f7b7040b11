// Package config turns the process environment into an explicit Config value that is
// handed to storage, services and the HTTP server at startup.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/money"
)

// Config is the immutable runtime configuration.
type Config struct {
	Addr string

	// DatabaseURL selects the Postgres store when set; SQLitePath selects the SQLite
	// store otherwise. With neither, the in-memory store is used.
	DatabaseURL string
	SQLitePath  string

	// AdminLogin and AdminPassword seed the protected administrator.
	AdminLogin    string
	AdminPassword string

	JWTSecret string
	JWTIssuer string
	AccessTTL time.Duration

	// Currency is the single ISO 4217 code all balances are kept in.
	Currency string

	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration
}

// Defaults mirror a local development setup.
func Defaults() Config {
	return Config{
		Addr:            ":8080",
		AdminLogin:      "admin",
		JWTIssuer:       "finman",
		AccessTTL:       7 * 24 * time.Hour,
		Currency:        "USD",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
	}
}

// FromEnv reads configuration through getenv (usually os.Getenv).
func FromEnv(getenv func(string) string) (Config, error) {
	c := Defaults()
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("ADDR", &c.Addr)
	str("DATABASE_URL", &c.DatabaseURL)
	str("SQLITE_PATH", &c.SQLitePath)
	str("ADMIN_LOGIN", &c.AdminLogin)
	str("ADMIN_PASSWORD", &c.AdminPassword)
	str("JWT_SECRET", &c.JWTSecret)
	str("JWT_ISSUER", &c.JWTIssuer)
	str("CURRENCY", &c.Currency)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v := strings.TrimSpace(getenv("ACCESS_DAYS")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return Config{}, fmt.Errorf("ACCESS_DAYS must be a positive integer, got %q", v)
		}
		c.AccessTTL = time.Duration(days) * 24 * time.Hour
	}
	if v := strings.TrimSpace(getenv("SHUTDOWN_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}
	c.Currency = strings.ToUpper(c.Currency)
	c.LogFormat = strings.ToLower(c.LogFormat)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AdminLogin == "" || c.AdminPassword == "" {
		return errors.New("ADMIN_LOGIN and ADMIN_PASSWORD are required")
	}
	if _, err := money.ParseCurr(c.Currency); err != nil {
		return fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q: %w", c.Currency, err)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// Backend names the storage backend the config selects.
func (c Config) Backend() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.SQLitePath != "":
		return "sqlite"
	default:
		return "memory"
	}
}
