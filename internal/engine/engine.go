// Package engine orchestrates the crawl: a discovery producer seeds the
// frontier from the root category tree, a worker pool fetches and
// classifies pages, and classified poems flow to the persistence sink.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"poemharvest/internal/auditlog"
	"poemharvest/internal/classify"
	"poemharvest/internal/config"
	"poemharvest/internal/extract"
	"poemharvest/internal/gateway"
	"poemharvest/internal/observability"
	"poemharvest/internal/storage"
)

// Engine is the crawl orchestrator.
type Engine struct {
	cfg        *config.Config
	gw         *gateway.Client
	frontier   *Frontier
	classifier *classify.Classifier
	extractor  *extract.Extractor
	sink       *storage.Sink
	audit      *auditlog.Audit
	tree       *auditlog.Tree
	metrics    *observability.Metrics
	logger     *slog.Logger

	startTime time.Time
	wg        sync.WaitGroup
}

// New wires an Engine from its parts. The sink must already be running;
// the engine takes over its lifecycle and closes it when Run returns.
func New(cfg *config.Config, gw *gateway.Client, sink *storage.Sink, audit *auditlog.Audit, tree *auditlog.Tree, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	lang := cfg.Crawl.Lang
	return &Engine{
		cfg:        cfg,
		gw:         gw,
		frontier:   NewFrontier(),
		classifier: classify.New(cfg.Classifier, lang, gateway.AuthorPrefix(lang), logger),
		extractor:  extract.New(cfg.Classifier, lang, logger),
		sink:       sink,
		audit:      audit,
		tree:       tree,
		metrics:    metrics,
		logger:     logger.With("component", "engine"),
	}
}

// Run executes one full crawl: resume preload, discovery, the worker
// pool, and shutdown. It blocks until every admitted page has been
// handled or the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.startTime = time.Now()

	if e.cfg.Crawl.Resume {
		ids, err := e.sink.ProcessedIDs(ctx)
		if err != nil {
			return fmt.Errorf("load processed ids: %w", err)
		}
		e.frontier.PreloadProcessed(ids)
		e.logger.Info("resume enabled", "already_processed", len(ids))
	}

	e.logger.Info("crawl starting",
		"lang", e.cfg.Crawl.Lang,
		"category", e.cfg.Crawl.Category,
		"workers", e.cfg.Crawl.Workers,
		"limit", e.cfg.Crawl.Limit,
	)

	for i := 0; i < e.cfg.Crawl.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}

	// Discovery runs in the caller's goroutine; workers begin as soon
	// as the first members are admitted.
	discoverErr := e.discover(ctx)
	e.frontier.Seal()

	e.wg.Wait()

	if err := e.sink.Close(ctx); err != nil {
		e.logger.Error("sink close failed", "error", err)
	}
	if e.audit != nil {
		if err := e.audit.Close(); err != nil {
			e.logger.Error("audit close failed", "error", err)
		}
	}
	if err := e.tree.Close(); err != nil {
		e.logger.Error("tree log close failed", "error", err)
	}

	e.logSummary()

	if discoverErr != nil {
		return discoverErr
	}
	return ctx.Err()
}

func (e *Engine) logSummary() {
	snap := e.metrics.Snapshot()
	e.logger.Info("crawl finished",
		"elapsed", time.Since(e.startTime).Round(time.Second).String(),
		"pages_fetched", snap["pages_fetched"],
		"poems_extracted", snap["poems_extracted"],
		"poems_persisted", int64(e.sink.Written()),
		"collections", snap["classified_collection"],
		"hubs", snap["classified_hub"],
		"duplicates_rejected", snap["pages_duplicate"],
		"skipped", snap["classified_author"]+snap["classified_other"]+snap["extract_failures"]+snap["pages_missing"],
	)
}
