package config

import (
	"fmt"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawl.Lang == "" {
		return fmt.Errorf("crawl.lang is required")
	}
	if cfg.Crawl.Category == "" {
		return fmt.Errorf("crawl.category is required")
	}
	if cfg.Crawl.Workers < 1 {
		return fmt.Errorf("crawl.workers must be >= 1, got %d", cfg.Crawl.Workers)
	}
	if cfg.Crawl.Workers > 100 {
		return fmt.Errorf("crawl.workers must be <= 100, got %d", cfg.Crawl.Workers)
	}
	if cfg.Crawl.Limit < 0 {
		return fmt.Errorf("crawl.limit must be >= 0, got %d", cfg.Crawl.Limit)
	}

	if cfg.Gateway.MaxConcurrent < 1 {
		return fmt.Errorf("gateway.max_concurrent must be >= 1, got %d", cfg.Gateway.MaxConcurrent)
	}
	if cfg.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("gateway.request_timeout must be > 0")
	}
	if cfg.Gateway.MaxRetries < 0 {
		return fmt.Errorf("gateway.max_retries must be >= 0, got %d", cfg.Gateway.MaxRetries)
	}
	if cfg.Gateway.BatchSize < 1 || cfg.Gateway.BatchSize > 50 {
		// The MediaWiki query API caps title batches at 50.
		return fmt.Errorf("gateway.batch_size must be in [1,50], got %d", cfg.Gateway.BatchSize)
	}

	if cfg.Classifier.LinkListRatio <= 0 || cfg.Classifier.LinkListRatio > 1 {
		return fmt.Errorf("classifier.link_list_ratio must be in (0,1], got %g", cfg.Classifier.LinkListRatio)
	}
	if cfg.Classifier.LinkListMinLinks < 1 {
		return fmt.Errorf("classifier.link_list_min_links must be >= 1")
	}
	if cfg.Classifier.SectionTitleMaxLen < 1 {
		return fmt.Errorf("classifier.section_title_max_len must be >= 1")
	}
	if cfg.Classifier.CollectionPathMaxLen < 1 {
		return fmt.Errorf("classifier.collection_path_max_len must be >= 1")
	}

	switch cfg.Storage.IndexType {
	case "sqlite":
	case "postgres":
		if cfg.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for index_type=postgres")
		}
	case "mongodb":
		if cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for index_type=mongodb")
		}
	default:
		return fmt.Errorf("storage.index_type must be 'sqlite', 'postgres' or 'mongodb', got %q", cfg.Storage.IndexType)
	}
	if cfg.Storage.QueueSize < 1 {
		return fmt.Errorf("storage.queue_size must be >= 1, got %d", cfg.Storage.QueueSize)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}
