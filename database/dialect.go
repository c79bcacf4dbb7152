package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// dialect holds the SQL that differs between the supported stores.
type dialect interface {
	name() string
	quote(ident string) string
	placeholder(n int) string // 1-based
	textType() string
	dateType() string
	timestampType() string
	tableOptions() string
	// insertIgnore returns an INSERT that silently skips rows violating a unique constraint.
	insertIgnore(table string, columns []string) string
	// columnsQuery lists a table's columns in order; it takes the table name as its only argument.
	columnsQuery() string
	uploadsSchema() []string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return sqliteDialect{}, nil
	case DriverMySQL:
		return mysqlDialect{}, nil
	case DriverPostgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func placeholders(d dialect, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

func quoteAll(d dialect, idents []string) string {
	parts := make([]string, len(idents))
	for i, c := range idents {
		parts[i] = d.quote(c)
	}
	return strings.Join(parts, ", ")
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) placeholder(int) string { return "?" }
func (sqliteDialect) textType() string       { return "TEXT" }
func (sqliteDialect) dateType() string       { return "DATE" }
func (sqliteDialect) timestampType() string  { return "DATETIME" }
func (sqliteDialect) tableOptions() string   { return "" }

func (d sqliteDialect) insertIgnore(table string, columns []string) string {
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		d.quote(table), quoteAll(d, columns), placeholders(d, len(columns)))
}

func (sqliteDialect) columnsQuery() string {
	return "SELECT name FROM pragma_table_info(?) ORDER BY cid"
}

func (sqliteDialect) uploadsSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS file_uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			filename TEXT NOT NULL,
			filetype TEXT NOT NULL,
			file_size TEXT NOT NULL,
			file_status TEXT NOT NULL DEFAULT 'pending',
			date_created DATE NOT NULL,
			upload_date DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_uploads_user_id ON file_uploads(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_file_uploads_upload_date ON file_uploads(upload_date)`,
	}
}

type mysqlDialect struct{}

func (mysqlDialect) name() string { return DriverMySQL }

func (mysqlDialect) quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysqlDialect) placeholder(int) string { return "?" }
func (mysqlDialect) textType() string       { return "TEXT" }
func (mysqlDialect) dateType() string       { return "DATE" }
func (mysqlDialect) timestampType() string  { return "DATETIME" }

func (mysqlDialect) tableOptions() string {
	return " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
}

func (d mysqlDialect) insertIgnore(table string, columns []string) string {
	return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)",
		d.quote(table), quoteAll(d, columns), placeholders(d, len(columns)))
}

func (mysqlDialect) columnsQuery() string {
	return `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`
}

func (mysqlDialect) uploadsSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS file_uploads (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			filename VARCHAR(255) NOT NULL,
			filetype VARCHAR(100) NOT NULL,
			file_size VARCHAR(50) NOT NULL,
			file_status VARCHAR(100) NOT NULL DEFAULT 'pending',
			date_created DATE NOT NULL,
			upload_date DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_user_id (user_id),
			INDEX idx_upload_date (upload_date)
		)`,
	}
}

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

func (postgresDialect) quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (postgresDialect) placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) textType() string         { return "TEXT" }
func (postgresDialect) dateType() string         { return "DATE" }
func (postgresDialect) timestampType() string    { return "TIMESTAMP" }
func (postgresDialect) tableOptions() string     { return "" }

func (d postgresDialect) insertIgnore(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		d.quote(table), quoteAll(d, columns), placeholders(d, len(columns)))
}

func (postgresDialect) columnsQuery() string {
	return `SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`
}

func (postgresDialect) uploadsSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS file_uploads (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			filename VARCHAR(255) NOT NULL,
			filetype VARCHAR(100) NOT NULL,
			file_size VARCHAR(50) NOT NULL,
			file_status VARCHAR(100) NOT NULL DEFAULT 'pending',
			date_created DATE NOT NULL,
			upload_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_uploads_user_id ON file_uploads(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_file_uploads_upload_date ON file_uploads(upload_date)`,
	}
}
