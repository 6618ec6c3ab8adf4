// Package config reads the engine's process configuration from the
// environment, mirroring the teacher's getEnvOrDefault pattern in
// cmd/engine/main.go rather than pulling in a config framework the
// teacher never reaches for.
package config

import (
	"os"
	"strconv"
)

// Config is the engine's process-wide configuration (§6 CLI/env).
type Config struct {
	Port                string
	DataDir             string
	LogLevel            string
	EnablePersistence   bool
	MaxTenants          int
	DefaultTimeoutMs    int
	DatabaseURL         string
	MaxWalletsPerTenant int
	MaxNFTsPerTenant    int
}

// FromEnv loads Config from the process environment, applying the
// defaults documented in §6.
func FromEnv() Config {
	return Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		DataDir:             getEnvOrDefault("DATA_DIR", "./data"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		EnablePersistence:   getEnvOrDefault("ENABLE_PERSISTENCE", "false") == "true",
		MaxTenants:          getEnvIntOrDefault("MAX_TENANTS", 1000),
		DefaultTimeoutMs:    getEnvIntOrDefault("DEFAULT_TIMEOUT_MS", 500),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MaxWalletsPerTenant: getEnvIntOrDefault("MAX_WALLETS_PER_TENANT", 50000),
		MaxNFTsPerTenant:    getEnvIntOrDefault("MAX_NFTS_PER_TENANT", 200000),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
