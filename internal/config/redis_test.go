package config

import (
	"testing"
)

func clearRedisEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_STREAM", "REDIS_GROUP"} {
		t.Setenv(k, "")
	}
}

func TestGetRedisConfig_FromEnvVars(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("REDIS_ADDR", "testhost:6380")
	t.Setenv("REDIS_PASSWORD", "testpassword")
	t.Setenv("REDIS_DB", "5")
	t.Setenv("REDIS_STREAM", "test_stream")
	t.Setenv("REDIS_GROUP", "test_group")

	cfg := GetRedisConfig()
	want := RedisConfig{Addr: "testhost:6380", Password: "testpassword", DB: 5, Stream: "test_stream", Group: "test_group"}
	if cfg != want {
		t.Errorf("GetRedisConfig() = %+v, want %+v", cfg, want)
	}
}

func TestGetRedisConfig_Defaults(t *testing.T) {
	clearRedisEnv(t)

	cfg := GetRedisConfig()
	want := RedisConfig{Addr: "localhost:6379", Stream: DefaultStream, Group: "atmosfera-store"}
	if cfg != want {
		t.Errorf("GetRedisConfig() = %+v, want %+v", cfg, want)
	}
}

func TestGetRedisConfig_InvalidDB(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("REDIS_DB", "invalid")

	if cfg := GetRedisConfig(); cfg.DB != 0 {
		t.Errorf("GetRedisConfig().DB = %v, want %v (default on parse error)", cfg.DB, 0)
	}
}

func TestRedisSettings(t *testing.T) {
	clearRedisEnv(t)

	cfg := Defaults()
	cfg.Redis.Addr = "redis.internal:6379"
	cfg.Redis.Stream = "from_file"

	got := cfg.RedisSettings()
	if got.Addr != "redis.internal:6379" || got.Stream != "from_file" {
		t.Errorf("RedisSettings() = %+v, want file values", got)
	}

	t.Setenv("REDIS_STREAM", "from_env")
	t.Setenv("REDIS_DB", "2")
	got = cfg.RedisSettings()
	if got.Stream != "from_env" || got.DB != 2 {
		t.Errorf("RedisSettings() = %+v, want env overrides", got)
	}
	if got.Addr != "redis.internal:6379" {
		t.Errorf("RedisSettings().Addr = %v, want file value", got.Addr)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{name: "env var set", key: "ATMOSFERA_TEST_KEY", defaultValue: "default", envValue: "custom", want: "custom"},
		{name: "env var not set", key: "ATMOSFERA_TEST_KEY_NOT_SET", defaultValue: "default", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)
			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}
