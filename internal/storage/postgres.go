package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"poemharvest/internal/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS poems (
	page_id            BIGINT PRIMARY KEY,
	revision_id        BIGINT NOT NULL,
	title              TEXT NOT NULL,
	author             TEXT,
	language           TEXT NOT NULL,
	collection_page_id BIGINT,
	hub_page_id        BIGINT NOT NULL,
	checksum_sha256    TEXT NOT NULL,
	extracted_at       TIMESTAMPTZ NOT NULL
)`

// PostgresIndex backs the page index with a shared database, for runs
// where several crawlers feed one corpus.
type PostgresIndex struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresIndex(ctx context.Context, url string, logger *slog.Logger) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &types.StorageError{Backend: "postgres", Err: err}
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("init schema: %w", err)}
	}
	return &PostgresIndex{pool: pool, logger: logger.With("component", "postgres_index")}, nil
}

func (p *PostgresIndex) Upsert(ctx context.Context, rec IndexRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO poems
			(page_id, revision_id, title, author, language, collection_page_id, hub_page_id, checksum_sha256, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (page_id) DO UPDATE SET
			revision_id        = EXCLUDED.revision_id,
			title              = EXCLUDED.title,
			author             = EXCLUDED.author,
			language           = EXCLUDED.language,
			collection_page_id = EXCLUDED.collection_page_id,
			hub_page_id        = EXCLUDED.hub_page_id,
			checksum_sha256    = EXCLUDED.checksum_sha256,
			extracted_at       = EXCLUDED.extracted_at`,
		rec.PageID, rec.RevisionID, rec.Title, rec.Author, rec.Language, nullableID(rec.CollectionPageID),
		rec.HubPageID, rec.Checksum, rec.ExtractedAt,
	)
	if err != nil {
		return &types.StorageError{Backend: "postgres", Err: err}
	}
	return nil
}

func (p *PostgresIndex) ProcessedIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT page_id FROM poems`)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Err: err}
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, &types.StorageError{Backend: "postgres", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *PostgresIndex) Close(context.Context) error {
	p.pool.Close()
	return nil
}
