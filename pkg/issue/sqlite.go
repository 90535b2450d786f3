package issue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS issues (
	id           TEXT PRIMARY KEY,
	created_at   TEXT NOT NULL,
	model_id     TEXT NOT NULL DEFAULT '',
	model_source TEXT NOT NULL DEFAULT '',
	thread       TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL
);`

// SQLiteSink stores issue reports in an embedded SQLite database.
type SQLiteSink struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLiteSink opens (creating if needed) the issues database at path.
func OpenSQLiteSink(path string, log *slog.Logger) (*SQLiteSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open issues database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create issues schema: %w", err)
	}

	return &SQLiteSink{db: db, log: log.With("component", "issue.sqlite_sink")}, nil
}

// Append inserts one report row.
func (s *SQLiteSink) Append(ctx context.Context, report Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (id, created_at, model_id, model_source, thread, description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.Timestamp.UTC().Format(time.RFC3339),
		report.Model.ID,
		report.Model.Source,
		FormatHistory(report.History),
		report.Description,
	)
	if err != nil {
		return fmt.Errorf("insert issue report: %w", err)
	}

	s.log.Info("Issue report stored", "report_id", report.ID, "model_id", report.Model.ID)
	return nil
}

// Count returns the number of stored reports.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count issue reports: %w", err)
	}

	return count, nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
