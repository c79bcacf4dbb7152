package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"erisextract/database"
)

var validDrivers = []string{database.DriverMySQL, database.DriverSQLite, database.DriverPostgres}

var validLogLevels = []string{"DEBUG", "INFO", "WARN", "ERROR"}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	// Server
	if c.Port == "" {
		errors = append(errors, "port is required")
	} else if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port: %s (must be 1-65535)", c.Port))
	}
	if c.TriggerRatePerMin < 1 {
		errors = append(errors, "trigger rate per minute must be at least 1")
	}

	// Database
	if !slices.Contains(validDrivers, c.DBDriver) {
		errors = append(errors, fmt.Sprintf("invalid db driver: %s (valid: %s)",
			c.DBDriver, strings.Join(validDrivers, ", ")))
	}
	switch c.DBDriver {
	case database.DriverSQLite:
		if c.DBPath == "" {
			errors = append(errors, "db path is required for sqlite3")
		}
	case database.DriverMySQL, database.DriverPostgres:
		if c.DBHost == "" {
			errors = append(errors, "db host is required")
		}
		if c.DBName == "" {
			errors = append(errors, "db name is required")
		}
		if c.DBPort < 1 || c.DBPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid db port: %d", c.DBPort))
		}
	}
	if c.MaxOpenConns < 1 {
		errors = append(errors, "max open connections must be at least 1")
	}
	if c.MaxIdleConns < 0 {
		errors = append(errors, "max idle connections cannot be negative")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		errors = append(errors, "max idle connections cannot exceed max open connections")
	}
	if c.ConnMaxLifetime < 0 {
		errors = append(errors, "connection max lifetime cannot be negative")
	}

	// Files
	if c.UploadsDir == "" {
		errors = append(errors, "uploads directory is required")
	}
	if c.RegistryPath == "" {
		errors = append(errors, "registry path is required")
	}
	if c.RegistryHeaderRow < 1 {
		errors = append(errors, "registry header row must be at least 1")
	}

	// Extraction
	if c.SheetWorkers < 1 {
		errors = append(errors, "sheet workers must be at least 1")
	}
	if c.MatchWorkers < 1 {
		errors = append(errors, "match workers must be at least 1")
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		errors = append(errors, "match threshold must be between 0 and 100")
	}
	if c.CountryCutoff < 0 || c.CountryCutoff > 1 {
		errors = append(errors, "country cutoff must be between 0 and 1")
	}
	if c.ExtractTimeout < time.Second {
		errors = append(errors, "extract timeout must be at least 1 second")
	}

	// Logging; empty falls back to INFO
	if c.LogLevel != "" && !slices.Contains(validLogLevels, strings.ToUpper(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level: %s (valid: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
