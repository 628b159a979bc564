package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("LIFECYCLE_CONFLICT_RETRIES", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, "migrations", cfg.Postgres.MigrationsDir)
	assert.Equal(t, "case-events", cfg.Redis.EventsChannel)
	assert.Equal(t, 3, cfg.Lifecycle.ConflictRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.Lifecycle.RetryInitialInterval())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REDIS_DB", "4")
	t.Setenv("REDIS_EVENTS_ENABLED", "false")
	t.Setenv("LIFECYCLE_CONFLICT_RETRIES", "7")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("POSTGRES_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.App.Addr())
	assert.Equal(t, 4, cfg.Redis.DB)
	assert.False(t, cfg.Redis.EventsEnabled)
	assert.Equal(t, 7, cfg.Lifecycle.ConflictRetries)
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "first")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid REDIS_DB")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "negative retries",
			env:  map[string]string{"LIFECYCLE_CONFLICT_RETRIES": "-1"},
			want: "invalid LIFECYCLE_CONFLICT_RETRIES",
		},
		{
			name: "production with default secret",
			env:  map[string]string{"APP_ENV": "production", "AUTH_JWT_SECRET": ""},
			want: "AUTH_JWT_SECRET must be set",
		},
		{
			name: "bootstrap email without password",
			env:  map[string]string{"AUTH_BOOTSTRAP_ADMIN_EMAIL": "root@example.com", "AUTH_BOOTSTRAP_ADMIN_PASSWORD": ""},
			want: "must be set together",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
