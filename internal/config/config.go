package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL and the email transport
// credentials are the only values an operator must provide.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// BaseURL is the externally reachable address of this service,
	// used to build confirmation links in outgoing emails.
	BaseURL string

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Email transport
	EmailBaseURL     string
	EmailSender      string
	EmailServerToken string
	SendTimeout      time.Duration

	// Dispatcher pool
	DispatchWorkers  int
	IdlePollInterval time.Duration

	// MaxDeliveryAttempts caps send attempts per task before abandonment.
	MaxDeliveryAttempts int

	// SendRateLimit is the maximum outbound sends per second across all workers.
	SendRateLimit int
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		EmailBaseURL:     getEnv("EMAIL_BASE_URL", "https://api.postmarkapp.com"),
		EmailSender:      getEnv("EMAIL_SENDER", "newsletter@example.com"),
		EmailServerToken: getEnv("EMAIL_SERVER_TOKEN", ""),
		SendTimeout:      getDuration("SEND_TIMEOUT", 10*time.Second),

		DispatchWorkers:  getInt("DISPATCH_WORKERS", 4),
		IdlePollInterval: getDuration("IDLE_POLL_INTERVAL", time.Second),

		MaxDeliveryAttempts: getInt("MAX_DELIVERY_ATTEMPTS", 3),

		SendRateLimit: getInt("SEND_RATE_LIMIT", 50),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
