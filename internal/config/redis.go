package config

import (
	"os"
	"strconv"
)

// DefaultStream is the Redis stream collected measurements are published to.
const DefaultStream = "air_quality_measurements"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
}

// GetRedisConfig reads REDIS_* from the environment, falling back to defaults.
func GetRedisConfig() RedisConfig {
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			db = parsed
		}
	}

	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		Stream:   getEnv("REDIS_STREAM", DefaultStream),
		Group:    getEnv("REDIS_GROUP", "atmosfera-store"),
	}
}

// RedisSettings merges the redis section of the file with REDIS_* overrides.
func (c *Config) RedisSettings() RedisConfig {
	rc := RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Stream:   c.Redis.Stream,
		Group:    c.Redis.Group,
	}
	env := GetRedisConfig()
	if os.Getenv("REDIS_ADDR") != "" || rc.Addr == "" {
		rc.Addr = env.Addr
	}
	if os.Getenv("REDIS_PASSWORD") != "" {
		rc.Password = env.Password
	}
	if os.Getenv("REDIS_DB") != "" {
		rc.DB = env.DB
	}
	if os.Getenv("REDIS_STREAM") != "" || rc.Stream == "" {
		rc.Stream = env.Stream
	}
	if os.Getenv("REDIS_GROUP") != "" || rc.Group == "" {
		rc.Group = env.Group
	}
	return rc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
