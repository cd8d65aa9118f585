package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"poemharvest/internal/types"
)

// submitBackoff paces retries when the sink queue is full. Producers
// back off rather than block so a slow index cannot deadlock workers
// that also submit frontier items.
const submitBackoff = 100 * time.Millisecond

// Sink decouples extraction from persistence: producers hand poems to a
// bounded queue and a single consumer goroutine owns the record stream
// and the index, so neither needs per-write locking across workers.
type Sink struct {
	records *RecordWriter
	index   Index

	queue chan *types.ExtractedPoem
	wg    sync.WaitGroup

	written   int
	writeErrs int
	mu        sync.Mutex

	logger *slog.Logger
}

// NewSink starts the consumer. Close must be called to flush and shut
// down cleanly.
func NewSink(records *RecordWriter, index Index, queueSize int, logger *slog.Logger) *Sink {
	s := &Sink{
		records: records,
		index:   index,
		queue:   make(chan *types.ExtractedPoem, queueSize),
		logger:  logger.With("component", "sink"),
	}
	s.wg.Add(1)
	go s.consume()
	return s
}

// Submit queues one poem for persistence. When the queue is full it
// retries with a fixed backoff until space frees or the context ends.
func (s *Sink) Submit(ctx context.Context, poem *types.ExtractedPoem) error {
	for {
		select {
		case s.queue <- poem:
			return nil
		default:
		}

		s.logger.Debug("sink queue full, backing off", "page_id", poem.PageID)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(submitBackoff):
		}
	}
}

func (s *Sink) consume() {
	defer s.wg.Done()

	for poem := range s.queue {
		if err := s.records.Write(poem); err != nil {
			s.fail("record write failed", poem, err)
			continue
		}
		if err := s.index.Upsert(context.Background(), indexRecordOf(poem)); err != nil {
			s.fail("index upsert failed", poem, err)
			continue
		}
		s.mu.Lock()
		s.written++
		s.mu.Unlock()
	}
}

func (s *Sink) fail(msg string, poem *types.ExtractedPoem, err error) {
	s.mu.Lock()
	s.writeErrs++
	s.mu.Unlock()
	s.logger.Error(msg, "page_id", poem.PageID, "title", poem.Title, "error", err)
}

// ProcessedIDs exposes the index's processed set, for resume.
func (s *Sink) ProcessedIDs(ctx context.Context) ([]int64, error) {
	return s.index.ProcessedIDs(ctx)
}

// Written returns how many poems were durably persisted.
func (s *Sink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Errors returns how many persistence attempts failed.
func (s *Sink) Errors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErrs
}

// Close drains the queue, stops the consumer and closes both backends.
// No Submit may run concurrently with or after Close.
func (s *Sink) Close(ctx context.Context) error {
	close(s.queue)
	s.wg.Wait()

	var firstErr error
	if err := s.records.Close(); err != nil {
		firstErr = err
	}
	if err := s.index.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
