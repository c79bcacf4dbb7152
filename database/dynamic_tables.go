package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"erisextract/internal/domain/models"
)

// Fixed columns of every extracted table.
const (
	ColumnDate      = "date"
	ColumnTimestamp = "timestamp"
	ColumnRowHash   = "row_hash"
)

// ErrNoColumns is returned when a table would be created without data columns.
var ErrNoColumns = errors.New("no data columns")

// ErrTableNotFound is returned when inserting into a table that does not exist.
var ErrTableNotFound = errors.New("table not found")

// InsertResult counts the outcome of one InsertRecords call.
type InsertResult struct {
	Table       string
	Inserted    int
	Skipped     int
	DroppedKeys []string
}

func isReserved(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case ColumnDate, ColumnTimestamp, ColumnRowHash:
		return true
	}
	return false
}

// DataColumns returns the keys usable as data columns: empty keys, the literal
// "nan" and the fixed column names are left out.
func DataColumns(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k) == "" || strings.EqualFold(strings.TrimSpace(k), "nan") || isReserved(k) {
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// CreateTableIfNotExists creates table with one text column per data column,
// then date, timestamp and a unique row hash. An existing table is left as it
// is, whatever its columns.
func (s *Store) CreateTableIfNotExists(ctx context.Context, table string, keys []string) error {
	columns := DataColumns(keys)
	if len(columns) == 0 {
		return fmt.Errorf("failed to create table %s: %w", table, ErrNoColumns)
	}

	d := s.dialect
	defs := make([]string, 0, len(columns)+3)
	for _, c := range columns {
		defs = append(defs, d.quote(c)+" "+d.textType())
	}
	defs = append(defs,
		d.quote(ColumnDate)+" "+d.dateType(),
		d.quote(ColumnTimestamp)+" "+d.timestampType(),
		d.quote(ColumnRowHash)+" CHAR(64) NOT NULL UNIQUE",
	)

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)%s",
		d.quote(table), strings.Join(defs, ",\n\t"), d.tableOptions())
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	s.logger.Info("[CreateTableIfNotExists] Table ready", "table", table, "columns", len(columns))
	return nil
}

// TableColumns returns the columns of table in order; empty when it does not exist.
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	var columns []string
	if err := s.db.SelectContext(ctx, &columns, s.dialect.columnsQuery(), table); err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	return columns, nil
}

// InsertRecords stamps every record with date and the current time and inserts
// it unless a row with the same values in every column but the timestamp
// already exists. Keys the table has no column for are dropped; columns the
// record lacks are stored as NULL. All rows are written in one transaction.
func (s *Store) InsertRecords(ctx context.Context, table string, records []*models.Record, date time.Time) (*InsertResult, error) {
	// read the table layout before opening the transaction: an sqlite pool holds one connection
	columns, err := s.TableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, ErrTableNotFound)
	}

	layout := newRowLayout(columns)
	result := &InsertResult{Table: table, DroppedKeys: layout.unknownKeys(records)}
	if len(result.DroppedKeys) > 0 {
		s.logger.Warn("[InsertRecords] Dropping keys without a column",
			"table", table, "keys", result.DroppedKeys)
	}

	stamp := stampValues{
		date:      date.Format(DateLayout),
		timestamp: time.Now().Format(TimestampLayout),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for %s: %w", table, err)
	}
	defer tx.Rollback()

	if layout.hasHash {
		err = s.insertIgnore(ctx, tx, table, layout, records, stamp, result)
	} else {
		err = s.insertChecked(ctx, tx, table, layout, records, stamp, result)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", table, err)
	}

	s.logger.Info("[InsertRecords] Rows loaded", "table", table,
		"inserted", result.Inserted, "skipped", result.Skipped, "date", stamp.date)
	return result, nil
}

type stampValues struct {
	date      string
	timestamp string
}

// rowLayout splits a table's columns into data columns and the fixed ones present.
type rowLayout struct {
	data         []string
	known        map[string]bool
	hasDate      bool
	hasTimestamp bool
	hasHash      bool
}

func newRowLayout(columns []string) rowLayout {
	l := rowLayout{known: make(map[string]bool, len(columns))}
	for _, c := range columns {
		switch strings.ToLower(c) {
		case ColumnDate:
			l.hasDate = true
		case ColumnTimestamp:
			l.hasTimestamp = true
		case ColumnRowHash:
			l.hasHash = true
		default:
			l.data = append(l.data, c)
			l.known[c] = true
		}
	}
	return l
}

func (l rowLayout) unknownKeys(records []*models.Record) []string {
	var out []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if l.known[k] || isReserved(k) || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// compared returns the columns and values that identify a row: the data
// columns and the date, never the timestamp.
func (l rowLayout) compared(rec *models.Record, stamp stampValues) ([]string, []any) {
	columns := make([]string, 0, len(l.data)+1)
	values := make([]any, 0, len(l.data)+1)
	for _, c := range l.data {
		columns = append(columns, c)
		values = append(values, rec.Get(c).SQL())
	}
	if l.hasDate {
		columns = append(columns, ColumnDate)
		values = append(values, stamp.date)
	}
	return columns, values
}

// rowHash digests column/value pairs; NULL and the empty string differ.
func rowHash(columns []string, values []any) string {
	h := sha256.New()
	for i, c := range columns {
		h.Write([]byte(c))
		if values[i] == nil {
			h.Write([]byte{0})
		} else {
			h.Write([]byte{1})
			h.Write([]byte(values[i].(string)))
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) insertIgnore(ctx context.Context, tx *sqlx.Tx, table string, layout rowLayout,
	records []*models.Record, stamp stampValues, result *InsertResult) error {
	columns, _ := layout.compared(models.NewRecord(), stamp)
	if layout.hasTimestamp {
		columns = append(columns, ColumnTimestamp)
	}
	columns = append(columns, ColumnRowHash)

	stmt, err := tx.PreparexContext(ctx, s.dialect.insertIgnore(table, columns))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		cols, values := layout.compared(rec, stamp)
		hash := rowHash(cols, values)
		if layout.hasTimestamp {
			values = append(values, stamp.timestamp)
		}
		values = append(values, hash)

		res, err := stmt.ExecContext(ctx, values...)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows of %s: %w", table, err)
		}
		if n == 0 {
			result.Skipped++
			s.logger.Debug("[InsertRecords] Skipped duplicate row", "table", table, "date", stamp.date)
			continue
		}
		result.Inserted++
	}
	return nil
}

// insertChecked serves tables without a row hash: it looks for an identical
// row, matching NULL with IS NULL, and inserts only when none exists.
func (s *Store) insertChecked(ctx context.Context, tx *sqlx.Tx, table string, layout rowLayout,
	records []*models.Record, stamp stampValues, result *InsertResult) error {
	d := s.dialect
	for _, rec := range records {
		cols, values := layout.compared(rec, stamp)

		conds := make([]string, 0, len(cols))
		args := make([]any, 0, len(cols))
		for i, c := range cols {
			if values[i] == nil {
				conds = append(conds, d.quote(c)+" IS NULL")
				continue
			}
			args = append(args, values[i])
			conds = append(conds, d.quote(c)+" = "+d.placeholder(len(args)))
		}

		var count int
		check := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", d.quote(table), strings.Join(conds, " AND "))
		if err := tx.GetContext(ctx, &count, check, args...); err != nil {
			return fmt.Errorf("failed to check duplicates in %s: %w", table, err)
		}
		if count > 0 {
			result.Skipped++
			s.logger.Debug("[InsertRecords] Skipped duplicate row", "table", table, "date", stamp.date)
			continue
		}

		if layout.hasTimestamp {
			cols = append(cols, ColumnTimestamp)
			values = append(values, stamp.timestamp)
		}
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.quote(table), quoteAll(d, cols), placeholders(d, len(cols)))
		if _, err := tx.ExecContext(ctx, insert, values...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		result.Inserted++
	}
	return nil
}
