package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Ingest        IngestConfig
	Observability ObservabilityConfig
	Jobs          JobsConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	AllowedOrigins     []string
	RateLimitPerSecond int
	RateLimitBurst     int
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	SQLitePath string
}

type StorageConfig struct {
	UploadDir    string
	ProcessedDir string
}

type IngestConfig struct {
	MaxUploadMB  int
	PreviewRows  int
	CatalogPath  string
	HeaderRows   [3]int
	DefaultSheet string
	YearFloor    int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
}

type JobsConfig struct {
	ReconcileEnabled bool
	ReconcileSpec    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins:     getEnvAsList("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 40),
			ShutdownTimeout:    time.Duration(getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getEnvAsInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", "postgres"),
			Password:   getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:   getEnv("POSTGRES_DB", "maritime-portal"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "data/portal.db"),
		},
		Storage: StorageConfig{
			UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
			ProcessedDir: getEnv("PROCESSED_DIR", "processed"),
		},
		Ingest: IngestConfig{
			MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 16),
			PreviewRows:  getEnvAsInt("PREVIEW_ROWS", 10),
			CatalogPath:  getEnv("CODE_CATALOG_PATH", ""),
			HeaderRows:   [3]int{4, 5, 6},
			DefaultSheet: getEnv("DEFAULT_SHEET", ""),
			YearFloor:    getEnvAsInt("CHART_YEAR_FLOOR", 2021),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
		Jobs: JobsConfig{
			ReconcileEnabled: getEnvAsBool("RECONCILE_ENABLED", true),
			ReconcileSpec:    getEnv("RECONCILE_CRON", "0 3 * * *"),
		},
	}

	rows, err := parseHeaderRows(getEnv("HEADER_ROWS", "4,5,6"))
	if err != nil {
		return nil, err
	}
	cfg.Ingest.HeaderRows = rows

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Ingest.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.Ingest.PreviewRows < 0 {
		return errors.New("PREVIEW_ROWS must not be negative")
	}
	if c.Storage.UploadDir == "" || c.Storage.ProcessedDir == "" {
		return errors.New("UPLOAD_DIR and PROCESSED_DIR are required")
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *IngestConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func parseHeaderRows(s string) ([3]int, error) {
	var rows [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return rows, fmt.Errorf("HEADER_ROWS must list three rows, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return rows, fmt.Errorf("HEADER_ROWS has invalid row %q", p)
		}
		rows[i] = n
	}
	return rows, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
