package storage

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"poemharvest/internal/types"
)

// RecordWriter streams poems as gzip-compressed newline-delimited JSON.
// The stream is append-only; superseded versions of a page stay in the
// file, and the index decides which line is current.
type RecordWriter struct {
	path   string
	file   *os.File
	gz     *gzip.Writer
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewRecordWriter opens (or appends to) the poem stream under dir.
func NewRecordWriter(dir string, logger *slog.Logger) (*RecordWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, "poems.jsonl.gz")

	// Gzip members concatenate cleanly, so appending to an existing
	// stream produces a valid file.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open record stream: %w", err)
	}

	gz := gzip.NewWriter(f)
	return &RecordWriter{
		path:   path,
		file:   f,
		gz:     gz,
		enc:    json.NewEncoder(gz),
		logger: logger.With("component", "record_writer"),
	}, nil
}

func (w *RecordWriter) Path() string { return w.path }

func (w *RecordWriter) Write(poem *types.ExtractedPoem) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(poem); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	w.count++
	return nil
}

func (w *RecordWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.Info("record stream written", "path", w.path, "records", w.count)
	if err := w.gz.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close gzip stream: %w", err)
	}
	return w.file.Close()
}
