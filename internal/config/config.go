package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

type Config struct {
	Env      string
	LogLevel string

	APIBaseURL string
	APITimeout time.Duration
	LoginPath  string

	SessionBackend string
	SessionDir     string
	SessionTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NATSURL         string
	NATSConnTimeout time.Duration
	NoticeSubject   string

	OTELCollectorURL string
}

// LoadConfig reads the environment, after merging an optional .env file from
// the working directory.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Env:      getEnvString("TRACKER_ENV", "development"),
		LogLevel: getEnvString("TRACKER_LOG_LEVEL", "warn"),

		APIBaseURL: strings.TrimRight(getEnvString("TRACKER_API_BASE_URL", "http://localhost:8080/api"), "/"),
		APITimeout: getEnvDuration("TRACKER_API_TIMEOUT", 15*time.Second),
		LoginPath:  getEnvString("TRACKER_LOGIN_PATH", "/login"),

		SessionBackend: getEnvString("TRACKER_SESSION_BACKEND", SessionBackendFile),
		SessionDir:     getEnvString("TRACKER_SESSION_DIR", defaultSessionDir()),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),

		RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		NATSURL:         getEnvString("NATS_URL", ""),
		NATSConnTimeout: getEnvDuration("NATS_CONN_TIMEOUT", 10*time.Second),
		NoticeSubject:   getEnvString("NOTICE_SUBJECT", "tracker.notices"),

		OTELCollectorURL: getEnvString("OTEL_COLLECTOR_URL", ""),
	}

	switch config.SessionBackend {
	case SessionBackendFile, SessionBackendRedis:
	default:
		return nil, fmt.Errorf("unknown session backend %q", config.SessionBackend)
	}

	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func defaultSessionDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".jobtracker"
	}
	return dir + string(os.PathSeparator) + "jobtracker"
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
