package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BASE_URL     string
	CRED_DB_PATH string
	LOG_LEVEL    string
	HTTP_TIMEOUT time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		BASE_URL:     getenv("BASE_URL", "http://localhost:8000"),
		CRED_DB_PATH: getenv("CRED_DB_PATH", "shopfront.db"),
		LOG_LEVEL:    getenv("LOG_LEVEL", "info"),
		HTTP_TIMEOUT: 10 * time.Second,
	}

	if raw := os.Getenv("HTTP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Printf("Notice: invalid HTTP_TIMEOUT %q: %v. Using default", raw, err)
		} else {
			config.HTTP_TIMEOUT = d
		}
	}

	return config, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
