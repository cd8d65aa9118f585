package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flag overrides are applied by the command layer on top of this.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("POEMHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("poemharvest")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".poemharvest"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawl.lang", cfg.Crawl.Lang)
	v.SetDefault("crawl.workers", cfg.Crawl.Workers)
	v.SetDefault("crawl.limit", cfg.Crawl.Limit)
	v.SetDefault("crawl.resume", cfg.Crawl.Resume)
	v.SetDefault("crawl.tree_log", cfg.Crawl.TreeLog)

	v.SetDefault("gateway.max_concurrent", cfg.Gateway.MaxConcurrent)
	v.SetDefault("gateway.request_timeout", cfg.Gateway.RequestTimeout)
	v.SetDefault("gateway.max_retries", cfg.Gateway.MaxRetries)
	v.SetDefault("gateway.retry_base_delay", cfg.Gateway.RetryBaseDelay)
	v.SetDefault("gateway.retry_max_delay", cfg.Gateway.RetryMaxDelay)
	v.SetDefault("gateway.user_agent", cfg.Gateway.UserAgent)
	v.SetDefault("gateway.batch_size", cfg.Gateway.BatchSize)

	v.SetDefault("classifier.link_list_ratio", cfg.Classifier.LinkListRatio)
	v.SetDefault("classifier.link_list_min_links", cfg.Classifier.LinkListMinLinks)
	v.SetDefault("classifier.section_title_max_len", cfg.Classifier.SectionTitleMaxLen)
	v.SetDefault("classifier.collection_path_max_len", cfg.Classifier.CollectionPathMaxLen)

	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.index_type", cfg.Storage.IndexType)
	v.SetDefault("storage.mongo_db", cfg.Storage.MongoDB)
	v.SetDefault("storage.queue_size", cfg.Storage.QueueSize)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}
