// Package config provides application configuration management.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerPort         string
	ServiceName        string
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Prediction audit trail
	StatePath          string
	AuditDriver        string
	AuditDSN           string
	AuditQueueSize     int
	AuditRetention     time.Duration
	AuditPruneSchedule string
	AuditListLimit     int

	// Redis / events configuration
	RedisAddr        string
	RedisUsername    string
	RedisPassword    string
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSInsecure bool
	EventsChannel    string

	// Redis Stream receiving audit records; empty disables it.
	AuditStream       string
	AuditStreamMaxLen int
}

// AuditEnabled reports whether prediction records are persisted.
func (c *Config) AuditEnabled() bool {
	return c.AuditDriver != ""
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	statePath := getEnv("STATE_PATH", "./state")
	auditDriver := strings.ToLower(getEnv("AUDIT_DRIVER", ""))
	auditDSN := getEnv("AUDIT_DSN", "")
	if auditDSN == "" && auditDriver == "sqlite" {
		auditDSN = filepath.Join(statePath, "predictions.db")
	}
	if auditDSN == "" && auditDriver == "postgres" {
		auditDSN = os.Getenv("POSTGRES_DSN")
	}
	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "3000"),
		ServiceName:        getEnv("SERVICE_NAME", "ai-model-service"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		StatePath:          statePath,
		AuditDriver:        auditDriver,
		AuditDSN:           auditDSN,
		AuditQueueSize:     getEnvInt("AUDIT_QUEUE_SIZE", 256),
		AuditRetention:     getEnvDuration("AUDIT_RETENTION", 7*24*time.Hour),
		AuditPruneSchedule: getEnv("AUDIT_PRUNE_SCHEDULE", "@hourly"),
		AuditListLimit:     getEnvInt("AUDIT_LIST_LIMIT", 100),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisUsername:      getEnv("REDIS_USERNAME", ""),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisTLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
		RedisTLSInsecure:   getEnvBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false),
		EventsChannel:      getEnv("EVENTS_CHANNEL", "model-service-events"),
		AuditStream:        getEnv("AUDIT_STREAM", "model-service:predictions"),
		AuditStreamMaxLen:  getEnvInt("AUDIT_STREAM_MAXLEN", 10000),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %s, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s: %s, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		default:
			log.Printf("Invalid bool for %s: %s, using default %t", key, value, defaultValue)
		}
	}
	return defaultValue
}
