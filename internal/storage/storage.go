// Package storage keeps the caller-side history of automation results in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yourusername/linkedin-connector/internal/report"
)

// Record is one persisted automation result
type Record struct {
	ID             string
	RunID          string
	ProfileURL     string
	Mode           string
	Success        bool
	Status         report.Status
	Action         report.Action
	Message        string
	Error          string
	ScreenshotPath string
	CreatedAt      time.Time
}

// NewRecord builds a record from a finished run. The screenshot itself is not stored.
func NewRecord(runID, profileURL, mode string, res report.ActionResult) Record {
	return Record{
		RunID:      runID,
		ProfileURL: profileURL,
		Mode:       mode,
		Success:    res.Success,
		Status:     res.Status,
		Action:     res.Action,
		Message:    res.Message,
		Error:      res.Error,
	}
}

// Store is a SQLite-backed result history
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and creates if needed) the database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		profile_url TEXT NOT NULL,
		mode TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		status TEXT NOT NULL,
		action TEXT NOT NULL,
		message TEXT,
		error TEXT,
		screenshot_path TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_profile ON results(profile_url);
	CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record saves rec, filling in ID and CreatedAt when empty
func (s *Store) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	query := `
		INSERT INTO results (id, run_id, profile_url, mode, success, status, action, message, error, screenshot_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RunID, rec.ProfileURL, rec.Mode, rec.Success, string(rec.Status), string(rec.Action),
		rec.Message, rec.Error, rec.ScreenshotPath, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return rec, fmt.Errorf("failed to record result: %w", err)
	}

	return rec, nil
}

// CountToday returns how many connection requests were sent since local midnight
func (s *Store) CountToday(ctx context.Context) (int, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.CountSince(ctx, midnight)
}

// CountSince returns how many connection requests were sent at or after since
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM results
		WHERE success = TRUE AND action IN (?, ?) AND created_at >= ?
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, string(report.ActionConnect), string(report.ActionBoth), since.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sent requests: %w", err)
	}

	return count, nil
}

// Processed reports whether profileURL already has a successful result
func (s *Store) Processed(ctx context.Context, profileURL string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM results WHERE profile_url = ? AND success = TRUE"
	if err := s.db.QueryRowContext(ctx, query, profileURL).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check profile history: %w", err)
	}
	return count > 0, nil
}

// Recent returns the latest limit records, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, run_id, profile_url, mode, success, status, action,
			COALESCE(message, ''), COALESCE(error, ''), COALESCE(screenshot_path, ''), created_at
		FROM results
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			status  string
			action  string
			created int64
		)
		err := rows.Scan(&rec.ID, &rec.RunID, &rec.ProfileURL, &rec.Mode, &rec.Success, &status, &action,
			&rec.Message, &rec.Error, &rec.ScreenshotPath, &created)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		rec.Status = report.Status(status)
		rec.Action = report.Action(action)
		rec.CreatedAt = time.Unix(created, 0)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Stats returns result counts by status
func (s *Store) Stats(ctx context.Context) (map[report.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM results GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[report.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats[report.Status(status)] = count
	}

	return stats, rows.Err()
}
