package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	c, err := FromEnv(envOf(map[string]string{
		"JWT_SECRET":     "s",
		"ADMIN_PASSWORD": "pw",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "admin", c.AdminLogin)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, 7*24*time.Hour, c.AccessTTL)
	assert.Equal(t, "memory", c.Backend())
}

func TestFromEnv_Overrides(t *testing.T) {
	c, err := FromEnv(envOf(map[string]string{
		"JWT_SECRET":       "s",
		"ADMIN_LOGIN":      "root",
		"ADMIN_PASSWORD":   "pw",
		"ACCESS_DAYS":      "2",
		"CURRENCY":         "rub",
		"SQLITE_PATH":      "/tmp/x.db",
		"LOG_FORMAT":       "TEXT",
		"SHUTDOWN_TIMEOUT": "3s",
	}))
	require.NoError(t, err)
	assert.Equal(t, "root", c.AdminLogin)
	assert.Equal(t, 48*time.Hour, c.AccessTTL)
	assert.Equal(t, "RUB", c.Currency)
	assert.Equal(t, "text", c.LogFormat)
	assert.Equal(t, 3*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "sqlite", c.Backend())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres", c.Backend())
}

func TestFromEnv_Invalid(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{"ADMIN_PASSWORD": "pw"}))
	assert.Error(t, err, "missing secret")

	_, err = FromEnv(envOf(map[string]string{"JWT_SECRET": "s"}))
	assert.Error(t, err, "missing admin password")

	_, err = FromEnv(envOf(map[string]string{"JWT_SECRET": "s", "ADMIN_PASSWORD": "pw", "ACCESS_DAYS": "zero"}))
	assert.Error(t, err)

	_, err = FromEnv(envOf(map[string]string{"JWT_SECRET": "s", "ADMIN_PASSWORD": "pw", "CURRENCY": "EURO"}))
	assert.Error(t, err)

	_, err = FromEnv(envOf(map[string]string{"JWT_SECRET": "s", "ADMIN_PASSWORD": "pw", "CURRENCY": "XYZ"}))
	assert.Error(t, err, "unknown currency")
}
