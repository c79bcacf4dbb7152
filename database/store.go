package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Layouts of the stamped date and timestamp columns.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

const sqliteBusyTimeoutMs = 5000

// Server ports used when DBConfig.Port is zero.
const (
	DefaultMySQLPort    = 3306
	DefaultPostgresPort = 5432
)

// DBConfig describes the relational store and its connection pool.
type DBConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Path     string // sqlite3 database file

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPort returns the standard server port of driver, or 0 for file stores.
func DefaultPort(driver string) int {
	switch driver {
	case DriverMySQL:
		return DefaultMySQLPort
	case DriverPostgres:
		return DefaultPostgresPort
	default:
		return 0
	}
}

func (c DBConfig) hostPort() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort(c.Driver)
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// DSN builds the driver data source name. A zero port means the driver's default.
func (c DBConfig) DSN() (string, error) {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return "", fmt.Errorf("sqlite3 requires a database path")
		}
		if isInMemory(c.Path) {
			return c.Path, nil
		}
		return c.Path + "?_busy_timeout=" + strconv.Itoa(sqliteBusyTimeoutMs), nil
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = c.hostPort()
		cfg.DBName = c.Name
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		return cfg.FormatDSN(), nil
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.hostPort(),
			Path:     "/" + c.Name,
			RawQuery: "sslmode=disable",
		}
		dsn, err := pq.ParseURL(u.String())
		if err != nil {
			return "", fmt.Errorf("failed to build postgres dsn: %w", err)
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// isInMemory reports whether an sqlite path keeps the database in memory.
func isInMemory(path string) bool {
	if path == ":memory:" {
		return true
	}
	return strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory")
}

// Store is the relational store receiving the extracted tables and tracking uploads.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	logger  *slog.Logger
}

// Open connects to the store described by cfg and checks the connection.
func Open(ctx context.Context, cfg DBConfig, logger *slog.Logger) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	configurePool(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	s, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("[Open] Connected", "driver", cfg.Driver, "max_open_conns", db.Stats().MaxOpenConnections)
	return s, nil
}

// NewStore wraps an open connection. The dialect follows the connection's driver name.
func NewStore(db *sqlx.DB, logger *slog.Logger) (*Store, error) {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, dialect: d, logger: logger.With("component", "store", "driver", d.name())}, nil
}

func configurePool(db *sqlx.DB, cfg DBConfig) {
	switch {
	case cfg.Driver == DriverSQLite:
		// sqlite has a single writer and an in-memory database lives in one
		// connection, so the pool is one connection wide
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	default:
		db.SetMaxOpenConns(10)
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(3)
	}

	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the driver name.
func (s *Store) Driver() string {
	return s.dialect.name()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
