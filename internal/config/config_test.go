package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 45*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 2, cfg.Oracle.MaxRetries)
	assert.False(t, cfg.Oracle.RecordAttempts)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.Equal(t, 165*time.Second, cfg.StageBudget())
	assert.Equal(t, cfg.StageBudget(), cfg.Lock.TTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ORACLE_TIMEOUT", "10s")
	t.Setenv("ORACLE_RECORD_ATTEMPTS", "yes")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Oracle.Timeout)
	assert.True(t, cfg.Oracle.RecordAttempts)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, 60*time.Second, cfg.Lock.TTL)
}

func TestLockTTLCoversOracleBudget(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	t.Setenv("LOCK_TTL", "2m")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCK_TTL must cover the oracle budget of 2m45s")

	t.Setenv("LOCK_TTL", "3m")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, cfg.Lock.TTL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":    {"JWT_SECRET": ""},
		"missing api key":   {"OPENAI_API_KEY": ""},
		"postgres no url":   {"DB_DRIVER": "postgres"},
		"unknown driver":    {"DB_DRIVER": "mysql"},
		"redis no addr":     {"LOCK_BACKEND": "redis"},
		"unknown lock":      {"LOCK_BACKEND": "etcd"},
		"negative retries":  {"ORACLE_MAX_RETRIES": "-1"},
		"negative lock ttl": {"LOCK_TTL": "-1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
