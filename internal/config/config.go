package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for poemharvest.
type Config struct {
	Crawl      CrawlConfig      `mapstructure:"crawl"      yaml:"crawl"`
	Gateway    GatewayConfig    `mapstructure:"gateway"    yaml:"gateway"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// CrawlConfig controls the orchestrator and worker pool.
type CrawlConfig struct {
	Lang     string `mapstructure:"lang"     yaml:"lang"`
	Category string `mapstructure:"category" yaml:"category"`
	Workers  int    `mapstructure:"workers"  yaml:"workers"`
	Limit    int    `mapstructure:"limit"    yaml:"limit"`
	Resume   bool   `mapstructure:"resume"   yaml:"resume"`
	TreeLog  bool   `mapstructure:"tree_log" yaml:"tree_log"`
}

// GatewayConfig controls the MediaWiki API client.
type GatewayConfig struct {
	// Endpoint overrides the https://<lang>.wikisource.org/w/api.php
	// endpoint derived from the crawl language; used by tests and mirrors.
	Endpoint       string        `mapstructure:"endpoint"         yaml:"endpoint"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"   yaml:"max_concurrent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"  yaml:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"      yaml:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"  yaml:"retry_max_delay"`
	UserAgent      string        `mapstructure:"user_agent"       yaml:"user_agent"`
	BatchSize      int           `mapstructure:"batch_size"       yaml:"batch_size"`
}

// ClassifierConfig holds the empirically tuned heuristic thresholds.
// These are retuning knobs, not derived constants.
type ClassifierConfig struct {
	LinkListRatio        float64 `mapstructure:"link_list_ratio"         yaml:"link_list_ratio"`
	LinkListMinLinks     int     `mapstructure:"link_list_min_links"     yaml:"link_list_min_links"`
	SectionTitleMaxLen   int     `mapstructure:"section_title_max_len"   yaml:"section_title_max_len"`
	CollectionPathMaxLen int     `mapstructure:"collection_path_max_len" yaml:"collection_path_max_len"`
}

// StorageConfig controls the persistence sink.
type StorageConfig struct {
	OutputDir   string `mapstructure:"output_dir"   yaml:"output_dir"`
	IndexType   string `mapstructure:"index_type"   yaml:"index_type"` // sqlite, postgres, mongodb
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
	MongoURI    string `mapstructure:"mongo_uri"    yaml:"mongo_uri"`
	MongoDB     string `mapstructure:"mongo_db"     yaml:"mongo_db"`
	QueueSize   int    `mapstructure:"queue_size"   yaml:"queue_size"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr"    yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Lang:    "fr",
			Workers: 10,
		},
		Gateway: GatewayConfig{
			MaxConcurrent:  5,
			RequestTimeout: 30 * time.Second,
			MaxRetries:     4,
			RetryBaseDelay: 500 * time.Millisecond,
			RetryMaxDelay:  8 * time.Second,
			UserAgent:      "poemharvest/" + Version + " (structured poem corpus builder)",
			BatchSize:      50,
		},
		Classifier: ClassifierConfig{
			LinkListRatio:        0.70,
			LinkListMinLinks:     3,
			SectionTitleMaxLen:   150,
			CollectionPathMaxLen: 70,
		},
		Storage: StorageConfig{
			OutputDir: "./data",
			IndexType: "sqlite",
			MongoDB:   "poemharvest",
			QueueSize: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}
