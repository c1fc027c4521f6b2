package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	DatabaseURL string
	WorkerURL   string
	PublicURL   string
	Provider    string
	Model       string
	LogLevel    string
}

func Load() Config {
	return Config{
		Port:        envInt("RAGLINE_PORT", 8080),
		DatabaseURL: envStr("DATABASE_URL", ""),
		WorkerURL:   envStr("WORKER_URL", "http://localhost:8000"),
		PublicURL:   envStr("PUBLIC_URL", "http://localhost:8080"),
		Provider:    envStr("LLM_PROVIDER", "gemini"),
		Model:       envStr("LLM_MODEL", "gemini-2.5-flash"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
