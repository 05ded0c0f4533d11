package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string
	Port              string
	ReportingTimezone string
	ReconcileInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ClerkSecretKey string
	MetricsUser    string
	MetricsPass    string
	PprofSecret    string
	AdminSecret    string

	FCMCredentialsFile string

	LogPath  string
	LogLevel string
}

// Load reads configuration from the environment. A .env file is optional
// and only used for local development.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Port:               getEnv("PORT", "3333"),
		ReportingTimezone:  getEnv("REPORTING_TIMEZONE", "UTC"),
		ReconcileInterval:  getDuration("RECONCILE_INTERVAL", 1*time.Hour),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		MetricsUser:        os.Getenv("METRICS_USER"),
		MetricsPass:        os.Getenv("METRICS_PASS"),
		PprofSecret:        os.Getenv("PPROF_SECRET"),
		AdminSecret:        os.Getenv("ADMIN_SECRET"),
		FCMCredentialsFile: getEnv("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		LogPath:            os.Getenv("LOG_PATH"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
