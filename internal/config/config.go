package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"erisextract/database"
	"erisextract/extraction"
	"erisextract/importer"
	"erisextract/normalization"
	"erisextract/pipeline"
)

// Config is the extractor configuration.
type Config struct {
	// Database
	DBDriver        string        `json:"db_driver"`
	DBHost          string        `json:"db_host"`
	DBPort          int           `json:"db_port"`
	DBUser          string        `json:"db_user"`
	DBPassword      string        `json:"-"`
	DBName          string        `json:"db_name"`
	DBPath          string        `json:"db_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Files
	UploadsDir        string `json:"uploads_dir"`
	RegistryPath      string `json:"registry_path"`
	RegistryHeaderRow int    `json:"registry_header_row"`

	// Extraction
	SheetWorkers   int           `json:"sheet_workers"`
	MatchWorkers   int           `json:"match_workers"`
	MatchThreshold float64       `json:"match_threshold"`
	CountryCutoff  float64       `json:"country_cutoff"`
	ExtractTimeout time.Duration `json:"extract_timeout"`

	// Server
	Port              string `json:"port"`
	TriggerRatePerMin int    `json:"trigger_rate_per_min"`

	// Logging
	LogLevel string `json:"log_level"`
}

// LoadConfig reads .env when present, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadConfigFromEnv(), nil
}

// LoadConfigFromEnv builds the configuration from environment variables only.
func LoadConfigFromEnv() *Config {
	driver := strings.ToLower(getEnv("DB_DRIVER", database.DriverSQLite))
	return &Config{
		DBDriver:        driver,
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnvInt("DB_PORT", database.DefaultPort(driver)),
		DBUser:          getEnv("DB_USER", ""),
		DBPassword:      getEnv("DB_PASSWORD", ""),
		DBName:          getEnv("DB_NAME", "eris"),
		DBPath:          getEnv("DB_PATH", "eris.db"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 3),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		UploadsDir:        getEnv("UPLOADS_DIR", "uploads"),
		RegistryPath:      getEnv("REGISTRY_PATH", "Invariants.xlsx"),
		RegistryHeaderRow: getEnvInt("REGISTRY_HEADER_ROW", importer.DefaultRegistryHeaderRow),

		SheetWorkers:   getEnvInt("SHEET_WORKERS", pipeline.DefaultSheetWorkers),
		MatchWorkers:   getEnvInt("MATCH_WORKERS", extraction.DefaultMatchWorkers),
		MatchThreshold: getEnvFloat("MATCH_THRESHOLD", extraction.DefaultMatchThreshold),
		CountryCutoff:  getEnvFloat("COUNTRY_CUTOFF", normalization.DefaultCountryCutoff),
		ExtractTimeout: getEnvDuration("EXTRACT_TIMEOUT", 60*time.Second),

		Port:              getEnv("SERVER_PORT", "5000"),
		TriggerRatePerMin: getEnvInt("TRIGGER_RATE_PER_MIN", 6),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}
}

// DB returns the store connection settings.
func (c *Config) DB() database.DBConfig {
	return database.DBConfig{
		Driver:          c.DBDriver,
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Name:            c.DBName,
		Path:            c.DBPath,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// Pipeline returns the extraction run settings.
func (c *Config) Pipeline() pipeline.Options {
	return pipeline.Options{
		UploadsDir:        c.UploadsDir,
		RegistryPath:      c.RegistryPath,
		RegistryHeaderRow: c.RegistryHeaderRow,
		SheetWorkers:      c.SheetWorkers,
		MatchWorkers:      c.MatchWorkers,
		MatchThreshold:    c.MatchThreshold,
	}
}

// Countries returns the default country table with the configured cutoff.
func (c *Config) Countries() *normalization.CountryTable {
	return normalization.NewCountryTable(normalization.DefaultCountryTable().Entries(), c.CountryCutoff)
}

// SlogLevel maps LogLevel to a slog level. Unknown or empty values give INFO.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}
