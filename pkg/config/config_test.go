package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaultsAreValid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15*time.Minute, cfg.ContextMaxAge)
	assert.Equal(t, 500.0, cfg.ContextMaxDistanceM)
	assert.Equal(t, 24*time.Hour, cfg.PatternCacheTTL)
	assert.Equal(t, time.Hour, cfg.RouteCacheTTL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PLANNER_REDIS_HOST", "cache.local")
	t.Setenv("PLANNER_REDIS_PORT", "6380")
	t.Setenv("PLANNER_LATITUDE", "48.85")
	t.Setenv("PLANNER_CONTEXT_MAX_AGE", "5m")
	t.Setenv("PLANNER_KV_BACKEND", "sqlite")
	t.Setenv("PLANNER_API_PORT", "not-a-number")
	t.Setenv("PLANNER_TASKS_FILE", "tasks.json")

	cfg := NewConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "cache.local", cfg.RedisHost)
	assert.Equal(t, 6380, cfg.RedisPort)
	assert.Equal(t, 48.85, cfg.Latitude)
	assert.Equal(t, 5*time.Minute, cfg.ContextMaxAge)
	assert.Equal(t, "sqlite", cfg.KVBackend)
	assert.Equal(t, "tasks.json", cfg.TasksFile)
	assert.Equal(t, 3010, cfg.APIPort, "unparseable values keep the default")
}

func TestRegisterFlagsOverridesValues(t *testing.T) {
	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)

	err := fs.Parse([]string{"--kv-backend=memory", "--log-level=debug", "--route-cache-ttl=30m"})
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.KVBackend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.RouteCacheTTL)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "invalid log level"},
		{"bad backend", func(c *Config) { c.KVBackend = "etcd" }, "invalid kv backend"},
		{"sqlite without path", func(c *Config) { c.KVBackend = "sqlite"; c.SQLitePath = "" }, "sqlite path"},
		{"latitude out of range", func(c *Config) { c.Latitude = 91 }, "latitude"},
		{"missing broker", func(c *Config) { c.MQTTBroker = "" }, "MQTT broker"},
		{"memory backend ignores redis", func(c *Config) { c.KVBackend = "memory"; c.RedisHost = "" }, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := NewConfig()
	cfg.PostgresPassword = "secret"
	assert.Equal(t,
		"host=localhost port=5432 user=planner password=secret dbname=planner sslmode=disable",
		cfg.PostgresConnectionString())
}
