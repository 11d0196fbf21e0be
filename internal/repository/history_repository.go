// Package repository persists the download history log.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/reelgrab/reelgrab/internal/domain"
)

// HistoryRepository records one row per dispatch attempt, success or
// failure, in a local SQLite database.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository opens (creating if needed) the SQLite database
// at path and ensures the schema exists.
func NewHistoryRepository(path string) (*HistoryRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			platform TEXT NOT NULL,
			author TEXT,
			filename TEXT,
			status TEXT NOT NULL,
			detail TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &HistoryRepository{db: db}, nil
}

// Close closes the underlying database.
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *HistoryRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert records a download attempt. A zero ID or CreatedAt is filled in.
func (r *HistoryRepository) Insert(ctx context.Context, entry *domain.DownloadEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO downloads (id, url, platform, author, filename, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.URL, entry.Platform, entry.Author,
		entry.Filename, entry.Status, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]domain.DownloadEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, platform, author, filename, status, detail, created_at
		FROM downloads
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.DownloadEntry, 0, limit)
	for rows.Next() {
		var e domain.DownloadEntry
		if err := rows.Scan(&e.ID, &e.URL, &e.Platform, &e.Author,
			&e.Filename, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
