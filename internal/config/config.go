package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Logging configuration
	LogLevel string

	// Authentication configuration
	AuthEnabled    bool
	TrustedOrigins []string

	// CORS configuration
	AllowedOrigin string

	// Deployment variant: when true the bridge wraps a single server and
	// terminates as soon as that server's child process exits. When false
	// (the default) the bridge is a multi-server proxy that removes exited
	// servers from the registry and keeps running.
	SingleServer bool

	// Optional YAML manifest of servers to start at boot
	ServersFile string
}

// New creates a new Config instance by loading environment variables
// from .env file (if present) and OS environment.
// OS environment variables take precedence over .env file values.
func New() *Config {
	// Load .env file from the working directory (silently ignore if not found)
	envPath := filepath.Join(".", ".env")
	_ = godotenv.Load(envPath)

	cfg := &Config{
		// Server configuration
		Port: getEnvOrDefault("PORT", "3001"),

		// Logging configuration
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),

		// Authentication configuration
		AuthEnabled:    getBoolEnv("MCP_AUTH_ENABLED", false),
		TrustedOrigins: splitList(os.Getenv("MCP_TRUSTED_ORIGINS")),

		// CORS configuration
		AllowedOrigin: getEnvOrDefault("MCP_ALLOWED_ORIGIN", "*"),

		// Deployment variant
		SingleServer: getBoolEnv("MCP_SINGLE_SERVER", false),

		// Optional server manifest
		ServersFile: os.Getenv("MCP_SERVERS_FILE"),
	}

	cfg.validate()

	return cfg
}

// validate checks that configuration values are usable
func (c *Config) validate() {
	if c.Port == "" {
		panic("PORT must not be empty")
	}
	for _, r := range c.Port {
		if r < '0' || r > '9' {
			panic(fmt.Sprintf("PORT must be numeric (got '%s')", c.Port))
		}
	}
	if c.ServersFile != "" {
		if _, err := os.Stat(c.ServersFile); err != nil {
			panic(fmt.Sprintf("MCP_SERVERS_FILE points to an unreadable file: %v", err))
		}
	}
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv returns true for "true", "1" or "yes" (case-insensitive)
func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// splitList splits a comma-separated environment value into trimmed entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
