package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	DatabasePath        string
	AppPassword         string
	SessionSecret       string
	ICalToken           string
	BaseURL             string
	LogLevel            string
	Port                string
	DueWindowMinutes    int
	OverdueGraceMinutes int
}

func Load() (Config, error) {
	config := Config{
		DatabasePath:        envOrDefault("DATABASE_PATH", "./data/petdose.db"),
		AppPassword:         os.Getenv("APP_PASSWORD"),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		ICalToken:           os.Getenv("ICAL_TOKEN"),
		BaseURL:             envOrDefault("BASE_URL", "http://localhost:8080"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		Port:                envOrDefault("PORT", "8080"),
		DueWindowMinutes:    envIntOrDefault("DUE_WINDOW_MINUTES", 60),
		OverdueGraceMinutes: envIntOrDefault("OVERDUE_GRACE_MINUTES", 30),
	}

	if config.AppPassword == "" {
		return Config{}, fmt.Errorf("APP_PASSWORD is required")
	}
	if config.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}

	return config, nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
