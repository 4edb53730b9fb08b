package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort string

	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	JWTSecret string
	JWTIssuer string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string

	ReconcileSchedule string
	JoinRateLimit     int
	JoinRateWindow    time.Duration
	ShutdownTimeout   time.Duration

	Debug bool
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present; real
// environment variables take precedence over it.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	return &Config{
		ServerPort:        getEnv("PORT", "8080"),
		DatabaseType:      strings.ToLower(getEnv("DATABASE_TYPE", "sqlite")),
		DatabasePath:      getEnv("DB_PATH", "./familyhub.db"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("AUTH_JWT_SECRET", ""),
		JWTIssuer:         getEnv("AUTH_JWT_ISSUER", ""),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "FamilyHub"),
		AppBaseURL:        strings.TrimSuffix(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@hourly"),
		JoinRateLimit:     getEnvInt("JOIN_RATE_LIMIT", 5),
		JoinRateWindow:    time.Minute,
		ShutdownTimeout:   30 * time.Second,
		Debug:             getEnvBool("DEBUG", false),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}
