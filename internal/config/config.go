package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is everything the server reads from the environment.
type Config struct {
	Port    string
	GinMode string

	StoreDriver string
	DB          DBConfig

	// Admin access: a shared key for scripts, or username/password for the
	// login endpoint. AdminPasswordHash (bcrypt) wins over AdminPassword.
	AdminKey          string
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	JWTSecret         string
	JWTTTL            time.Duration

	// LoginRateLimit is the number of login attempts allowed per IP per minute.
	LoginRateLimit int

	ORSAPIKey  string
	ORSBaseURL string
	ORSProfile string

	CORSOrigin string

	LogFile  string
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// DSN builds a lib/pq connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found – relying on env vars")
	}

	return &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),

		StoreDriver: getEnv("STORE_DRIVER", StorePostgres),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "shiptrace"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},

		AdminKey:          getEnv("ADMIN_KEY", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", "supersecret"),
		JWTTTL:            getDuration("JWT_TTL", 72*time.Hour),
		LoginRateLimit:    getInt("LOGIN_RATE_LIMIT", 10),

		ORSAPIKey:  getEnv("ORS_API_KEY", ""),
		ORSBaseURL: getEnv("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSProfile: getEnv("ORS_PROFILE", "driving-car"),

		CORSOrigin: getEnv("CORS_ORIGIN", ""),

		LogFile:  getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// bare numbers are hours
	if h, err := strconv.Atoi(v); err == nil {
		return time.Duration(h) * time.Hour
	}
	logrus.WithField("key", key).Warnf("invalid duration %q, using %s", v, defaultValue)
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return v
}
