package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIBaseURL    string
	APIToken      string
	StoragePrefix string

	DirectoryInterval time.Duration
	ThreadInterval    time.Duration
	DirectoryLimit    int
	ThreadLimit       int

	StatePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	RabbitURL   string
	RabbitQueue string

	Env string
}

func Load() Config {
	base := getEnv("API_BASE_URL", "http://localhost:8000/api")

	storage := os.Getenv("STORAGE_PREFIX")
	if storage == "" {
		// Attachments are served from /storage next to the API root.
		storage = strings.TrimSuffix(base, "/api") + "/storage"
	}

	return Config{
		APIBaseURL:    base,
		APIToken:      getEnv("API_TOKEN", ""),
		StoragePrefix: storage,

		DirectoryInterval: getEnvAsDuration("DIRECTORY_INTERVAL", 15*time.Second),
		ThreadInterval:    getEnvAsDuration("THREAD_INTERVAL", 5*time.Second),
		DirectoryLimit:    getEnvAsInt("DIRECTORY_LIMIT", 50),
		ThreadLimit:       getEnvAsInt("THREAD_LIMIT", 100),

		StatePath: getEnv("STATE_PATH", "chatconsole.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisTTL:      getEnvAsDuration("REDIS_TTL", 5*time.Minute),

		RabbitURL:   getEnv("RABBIT_URL", ""),
		RabbitQueue: getEnv("RABBIT_QUEUE", "chat.moderation.audit"),

		Env: getEnv("ENV", "dev"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return fallback
}
