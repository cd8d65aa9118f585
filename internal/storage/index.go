// Package storage persists extracted poems: an append-only compressed
// record stream plus a durable index keyed by page identity. The index
// is the source of truth for what has been processed; the stream may
// carry superseded lines for pages that were re-extracted.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"poemharvest/internal/config"
	"poemharvest/internal/types"
)

// IndexRecord is the per-page row kept in the durable index.
type IndexRecord struct {
	PageID           int64
	RevisionID       int64
	Title            string
	Author           string
	Language         string
	CollectionPageID int64
	HubPageID        int64
	Checksum         string
	ExtractedAt      time.Time
}

// Index is the durable page-identity index. Upsert has
// insert-or-replace semantics keyed by PageID: the last write wins.
type Index interface {
	Upsert(ctx context.Context, rec IndexRecord) error

	// ProcessedIDs returns every indexed page ID, for resume.
	ProcessedIDs(ctx context.Context) ([]int64, error)

	Close(ctx context.Context) error
}

// NewIndex builds the index backend selected by configuration.
func NewIndex(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Index, error) {
	switch cfg.IndexType {
	case "sqlite":
		return NewSQLiteIndex(filepath.Join(cfg.OutputDir, "poems_index.db"), logger)
	case "postgres":
		return NewPostgresIndex(ctx, cfg.PostgresURL, logger)
	case "mongodb":
		return NewMongoIndex(ctx, cfg.MongoURI, cfg.MongoDB, logger)
	default:
		return nil, fmt.Errorf("unsupported index type: %s", cfg.IndexType)
	}
}

func indexRecordOf(p *types.ExtractedPoem) IndexRecord {
	return IndexRecord{
		PageID:           p.PageID,
		RevisionID:       p.RevisionID,
		Title:            p.Title,
		Author:           p.Metadata.Author,
		Language:         p.Language,
		CollectionPageID: p.CollectionPageID,
		HubPageID:        p.HubPageID,
		Checksum:         p.ChecksumSHA256,
		ExtractedAt:      p.ExtractedAt,
	}
}
