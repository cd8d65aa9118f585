package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"poemharvest/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS poems (
	page_id            INTEGER PRIMARY KEY,
	revision_id        INTEGER NOT NULL,
	title              TEXT NOT NULL,
	author             TEXT,
	language           TEXT NOT NULL,
	collection_page_id INTEGER,
	hub_page_id        INTEGER NOT NULL,
	checksum_sha256    TEXT NOT NULL,
	extracted_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_poems_collection ON poems(collection_page_id);
CREATE INDEX IF NOT EXISTS idx_poems_hub ON poems(hub_page_id);
`

// SQLiteIndex is the default embedded index, one file next to the
// record stream.
type SQLiteIndex struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

func NewSQLiteIndex(path string, logger *slog.Logger) (*SQLiteIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: err}
	}
	// The driver serializes access anyway; one connection avoids
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("init schema: %w", err)}
	}

	return &SQLiteIndex{db: db, logger: logger.With("component", "sqlite_index")}, nil
}

func (s *SQLiteIndex) Upsert(ctx context.Context, rec IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO poems
			(page_id, revision_id, title, author, language, collection_page_id, hub_page_id, checksum_sha256, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PageID, rec.RevisionID, rec.Title, rec.Author, rec.Language, nullableID(rec.CollectionPageID),
		rec.HubPageID, rec.Checksum, rec.ExtractedAt.UTC().Format("2006-01-02T15:04:05Z"),
	)
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Err: err}
	}
	return nil
}

func (s *SQLiteIndex) ProcessedIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT page_id FROM poems`)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: err}
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, &types.StorageError{Backend: "sqlite", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteIndex) Close(context.Context) error {
	return s.db.Close()
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
