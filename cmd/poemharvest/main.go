package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"poemharvest/internal/auditlog"
	"poemharvest/internal/config"
	"poemharvest/internal/engine"
	"poemharvest/internal/enrich"
	"poemharvest/internal/gateway"
	"poemharvest/internal/observability"
	"poemharvest/internal/storage"
)

var (
	cfgFile string
	verbose bool

	lang      string
	category  string
	workers   int
	limit     int
	resume    bool
	treeLog   bool
	outputDir string
	indexType string

	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "poemharvest",
		Short: "Structured poem corpus builder for Wikisource",
		Long: `poemharvest crawls a Wikisource category tree, classifies each page by
structural signals, and extracts every poem it finds into a compressed
JSONL corpus with a durable page index.

Collections are expanded in reading order, multi-version hubs group
their versions under one identity, and interrupted runs resume from the
index without refetching finished pages.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(enrichCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [category]",
		Short: "Crawl a Wikisource category and extract its poems",
		Long:  "Crawl the given root category (e.g. \"Poèmes\"), classify every reachable page, and extract poems with their collection and hub context.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawl,
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "fr", "Wikisource language code")
	cmd.Flags().IntVarP(&workers, "workers", "n", 10, "number of concurrent workers")
	cmd.Flags().IntVarP(&limit, "limit", "m", 0, "maximum pages to seed from discovery (0 = unlimited)")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip pages already present in the index")
	cmd.Flags().BoolVar(&treeLog, "tree-log", false, "write an indented crawl hierarchy log")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVar(&indexType, "index", "", "index backend: sqlite, postgres, mongodb")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	category = args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg)

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	gw := gateway.New(&cfg.Gateway, cfg.Crawl.Lang, metrics, logger)

	recordWriter, err := storage.NewRecordWriter(cfg.Storage.OutputDir, logger)
	if err != nil {
		return fmt.Errorf("create record writer: %w", err)
	}
	index, err := storage.NewIndex(cmd.Context(), cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	sink := storage.NewSink(recordWriter, index, cfg.Storage.QueueSize, logger)

	audit, err := auditlog.New(cfg.Storage.OutputDir, logger)
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	tree, err := auditlog.NewTree(cfg.Storage.OutputDir, cfg.Crawl.TreeLog)
	if err != nil {
		return fmt.Errorf("create tree log: %w", err)
	}

	eng := engine.New(cfg, gw, sink, audit, tree, metrics, logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	start := time.Now()
	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("crawl: %w", err)
	}

	fmt.Printf("\nCrawl finished in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Poems:  %d persisted\n", sink.Written())
	fmt.Printf("   Output: %s\n", filepath.Join(cfg.Storage.OutputDir, "poems.jsonl.gz"))
	return nil
}

// enrichCmd creates the "enrich" subcommand.
func enrichCmd() *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Backfill collection page IDs in an existing corpus",
		Long:  "Rewrite a poem stream, resolving collection titles to page IDs for records extracted before their collection was crawled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if lang != "" {
				cfg.Crawl.Lang = lang
			}
			logger := setupLogger(cfg)

			if inPath == "" {
				inPath = filepath.Join(cfg.Storage.OutputDir, "poems.jsonl.gz")
			}
			if outPath == "" {
				outPath = filepath.Join(cfg.Storage.OutputDir, "poems_enriched.jsonl.gz")
			}

			gw := gateway.New(&cfg.Gateway, cfg.Crawl.Lang, nil, logger)
			stats, err := enrich.New(gw, logger).Run(cmd.Context(), inPath, outPath)
			if err != nil {
				return fmt.Errorf("enrich: %w", err)
			}

			fmt.Printf("Enriched %d records: %d backfilled, %d unresolved\n",
				stats.Records, stats.Backfilled, stats.Unresolved)
			fmt.Printf("   Output: %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "fr", "Wikisource language code")
	cmd.Flags().StringVarP(&inPath, "input", "i", "", "input stream (defaults to <output_dir>/poems.jsonl.gz)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output stream path")

	return cmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("poemharvest %s\n", config.Version)
		},
	}
}

// setupLogger creates the structured logger per config, with the
// verbose flag forcing debug level.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	cfg.Crawl.Category = category
	if lang != "" {
		cfg.Crawl.Lang = lang
	}
	if workers > 0 {
		cfg.Crawl.Workers = workers
	}
	if limit > 0 {
		cfg.Crawl.Limit = limit
	}
	if resume {
		cfg.Crawl.Resume = true
	}
	if treeLog {
		cfg.Crawl.TreeLog = true
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if indexType != "" {
		cfg.Storage.IndexType = indexType
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}
}
