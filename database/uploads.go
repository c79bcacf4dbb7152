package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Upload statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// ErrUploadNotFound is returned when an upload id matches no row.
var ErrUploadNotFound = errors.New("upload not found")

// Upload is one row of file_uploads.
type Upload struct {
	ID          int64          `db:"id"`
	UserID      int64          `db:"user_id"`
	Filename    string         `db:"filename"`
	Filetype    string         `db:"filetype"`
	FileSize    string         `db:"file_size"`
	Status      string         `db:"file_status"`
	DateCreated string         `db:"date_created"`
	UploadDate  sql.NullString `db:"upload_date"`
}

// NominalDate is the date the upload stands for, stamped onto every loaded row.
func (u Upload) NominalDate() (time.Time, error) {
	return parseDate(u.DateCreated)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// parseDate reads a date column whatever form the driver returned it in and
// keeps the calendar date only.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse date %q", raw)
}

// EnsureUploadsSchema creates file_uploads when it is missing.
func (s *Store) EnsureUploadsSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.uploadsSchema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create file_uploads: %w", err)
		}
	}
	return nil
}

// LatestPending returns the most recently uploaded pending file, or nil when there is none.
func (s *Store) LatestPending(ctx context.Context) (*Upload, error) {
	var u Upload
	query := s.db.Rebind(`SELECT id, user_id, filename, filetype, file_size, file_status, date_created, upload_date
		FROM file_uploads
		WHERE file_status = ?
		ORDER BY upload_date DESC, id DESC
		LIMIT 1`)
	err := s.db.GetContext(ctx, &u, query, StatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest pending upload: %w", err)
	}
	return &u, nil
}

// MarkCompleted moves an upload to the completed status.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	query := s.db.Rebind(`UPDATE file_uploads SET file_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, StatusCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to update upload %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrUploadNotFound, id)
	}
	s.logger.Info("[MarkCompleted] Upload completed", "upload_id", id)
	return nil
}

// Register records a pending upload. A zero uploadedAt means now.
func (s *Store) Register(ctx context.Context, u Upload, nominal, uploadedAt time.Time) (int64, error) {
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	if u.Status == "" {
		u.Status = StatusPending
	}

	columns := "user_id, filename, filetype, file_size, file_status, date_created, upload_date"
	args := []any{u.UserID, u.Filename, u.Filetype, u.FileSize, u.Status,
		nominal.Format(DateLayout), uploadedAt.Format(TimestampLayout)}

	if s.dialect.name() == DriverPostgres {
		var id int64
		query := s.db.Rebind("INSERT INTO file_uploads (" + columns + ") VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id")
		if err := s.db.GetContext(ctx, &id, query, args...); err != nil {
			return 0, fmt.Errorf("failed to register upload %s: %w", u.Filename, err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, "INSERT INTO file_uploads ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?)", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to register upload %s: %w", u.Filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read upload id: %w", err)
	}
	s.logger.Info("[Register] Upload registered", "upload_id", id, "filename", u.Filename,
		"date", nominal.Format(DateLayout))
	return id, nil
}

// PurgeDate deletes the rows stamped with date from the given tables in one
// transaction. Tables that do not exist are skipped. It returns the rows
// deleted per table.
func (s *Store) PurgeDate(ctx context.Context, date time.Time, tables []string) (map[string]int64, error) {
	var existing []string
	for _, t := range tables {
		cols, err := s.TableColumns(ctx, t)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			existing = append(existing, t)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin purge: %w", err)
	}
	defer tx.Rollback()

	day := date.Format(DateLayout)
	counts := make(map[string]int64, len(existing))
	for _, t := range existing {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
			s.dialect.quote(t), s.dialect.quote(ColumnDate), s.dialect.placeholder(1))
		res, err := tx.ExecContext(ctx, query, day)
		if err != nil {
			return nil, fmt.Errorf("failed to purge %s: %w", t, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read purged rows of %s: %w", t, err)
		}
		counts[t] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}
	s.logger.Info("[PurgeDate] Rows deleted", "date", day, "counts", counts)
	return counts, nil
}
