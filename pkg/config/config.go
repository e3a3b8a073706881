package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL        string
	AuthToken         string
	RefreshToken      string
	Environment       string
	MessagePageSize   int
	DirectoryRefresh  time.Duration // 0 disables directory auto-refresh
	ReconcileInterval time.Duration
	RequestTimeout    time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		APIBaseURL:        getEnv("MARKET_API_URL", "http://localhost:8080"),
		AuthToken:         getEnv("MARKET_AUTH_TOKEN", ""),
		RefreshToken:      getEnv("MARKET_REFRESH_TOKEN", ""),
		Environment:       getEnv("ENVIRONMENT", "development"),
		MessagePageSize:   getEnvAsInt("CHAT_PAGE_SIZE", 30),
		DirectoryRefresh:  time.Duration(getEnvAsInt("CHAT_DIRECTORY_REFRESH_SECONDS", 0)) * time.Second,
		ReconcileInterval: time.Duration(getEnvAsInt("CHAT_RECONCILE_SECONDS", 60)) * time.Second,
		RequestTimeout:    time.Duration(getEnvAsInt("CHAT_REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
