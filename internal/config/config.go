package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // STATS_TIMEZONE must resolve in minimal images
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Gate     GateConfig
	Log      LogConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port              int
	ReadHeaderTimeout time.Duration
	GinMode           string
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// StoreConfig selects the repository backend
type StoreConfig struct {
	Driver  string // "postgres" | "memory"
	Timeout time.Duration
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration

	// Bootstrap admin created on first run when no admin exists.
	// An empty password means one is generated and logged once.
	BootstrapLogin    string
	BootstrapEmail    string
	BootstrapPassword string
}

// RedisConfig points at the token revocation list. An empty Addr keeps the
// list in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GateConfig holds checkpoint settings
type GateConfig struct {
	DefaultLocation string
	StatsTimezone   string
	QRSize          int
}

// LogConfig holds the logger settings
type LogConfig struct {
	Level  string
	Format string // "text" | "json"
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// StatsLocation resolves the configured stats timezone
func (c *GateConfig) StatsLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE %q: %w", c.StatsTimezone, err)
	}
	return loc, nil
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			GinMode:           getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			Username:     getEnv("DB_USERNAME", "postgres"),
			Password:     getEnv("DB_PASSWORD", "password"),
			DBName:       getEnv("DB_NAME", "gate_security"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(getEnv("STORE", "postgres")),
			Timeout: getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET_KEY", ""),
			TokenTTL:          getEnvAsDuration("JWT_ACCESS_TOKEN_EXPIRES", 24*time.Hour),
			BootstrapLogin:    getEnv("BOOTSTRAP_ADMIN_USERNAME", "admin"),
			BootstrapEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", "admin@example.com"),
			BootstrapPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Gate: GateConfig{
			DefaultLocation: getEnv("GATE_DEFAULT_LOCATION", "Main Gate"),
			StatsTimezone:   getEnv("STATS_TIMEZONE", "UTC"),
			QRSize:          getEnvAsInt("QR_SIZE", 256),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Validate reports settings the server cannot start with
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET_KEY must be set and at least 16 characters")
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE %q (want postgres or memory)", c.Store.Driver)
	}
	if _, err := c.Gate.StatsLocation(); err != nil {
		return err
	}
	return nil
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
