package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for the crawl.
type Metrics struct {
	// API traffic
	APIRequestsTotal   atomic.Int64
	APIRequestsFailed  atomic.Int64
	APIRequestsRetried atomic.Int64

	// Frontier
	PagesSubmitted    atomic.Int64
	PagesDuplicate    atomic.Int64
	PagesFetched      atomic.Int64
	PagesMissing      atomic.Int64
	RedirectsFollowed atomic.Int64

	// Classification outcomes
	PoemsClassified       atomic.Int64
	CollectionsClassified atomic.Int64
	HubsClassified        atomic.Int64
	AuthorsClassified     atomic.Int64
	OthersClassified      atomic.Int64

	// Output
	PoemsExtracted  atomic.Int64
	PoemsPersisted  atomic.Int64
	ExtractFailures atomic.Int64

	ActiveWorkers atomic.Int32

	logger *slog.Logger
}

func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// RecordClassification bumps the counter matching a classified type.
func (m *Metrics) RecordClassification(name string) {
	switch name {
	case "poem":
		m.PoemsClassified.Add(1)
	case "poetic_collection":
		m.CollectionsClassified.Add(1)
	case "multi_version_hub":
		m.HubsClassified.Add(1)
	case "author":
		m.AuthorsClassified.Add(1)
	default:
		m.OthersClassified.Add(1)
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"poemharvest_api_requests_total", "Total MediaWiki API requests made", m.APIRequestsTotal.Load()},
		{"poemharvest_api_requests_failed_total", "Total failed API requests", m.APIRequestsFailed.Load()},
		{"poemharvest_api_requests_retried_total", "Total retried API requests", m.APIRequestsRetried.Load()},
		{"poemharvest_pages_submitted_total", "Total pages admitted to the frontier", m.PagesSubmitted.Load()},
		{"poemharvest_pages_duplicate_total", "Total duplicate submissions rejected", m.PagesDuplicate.Load()},
		{"poemharvest_pages_fetched_total", "Total pages fetched", m.PagesFetched.Load()},
		{"poemharvest_pages_missing_total", "Total missing or invalid pages", m.PagesMissing.Load()},
		{"poemharvest_redirects_followed_total", "Total wikitext redirects followed", m.RedirectsFollowed.Load()},
		{"poemharvest_classified_poem_total", "Pages classified as poems", m.PoemsClassified.Load()},
		{"poemharvest_classified_collection_total", "Pages classified as poetic collections", m.CollectionsClassified.Load()},
		{"poemharvest_classified_hub_total", "Pages classified as multi-version hubs", m.HubsClassified.Load()},
		{"poemharvest_classified_author_total", "Pages classified as author pages", m.AuthorsClassified.Load()},
		{"poemharvest_classified_other_total", "Pages classified as other", m.OthersClassified.Load()},
		{"poemharvest_poems_extracted_total", "Poems successfully extracted", m.PoemsExtracted.Load()},
		{"poemharvest_poems_persisted_total", "Poems durably persisted", m.PoemsPersisted.Load()},
		{"poemharvest_extract_failures_total", "Poem pages with no extractable structure", m.ExtractFailures.Load()},
		{"poemharvest_active_workers", "Currently active workers", int64(m.ActiveWorkers.Load())},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	m.logger.Info("metrics server starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns the counters as a map, for the end-of-run summary.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"api_requests_total":    m.APIRequestsTotal.Load(),
		"api_requests_failed":   m.APIRequestsFailed.Load(),
		"pages_submitted":       m.PagesSubmitted.Load(),
		"pages_duplicate":       m.PagesDuplicate.Load(),
		"pages_fetched":         m.PagesFetched.Load(),
		"pages_missing":         m.PagesMissing.Load(),
		"redirects_followed":    m.RedirectsFollowed.Load(),
		"classified_poem":       m.PoemsClassified.Load(),
		"classified_collection": m.CollectionsClassified.Load(),
		"classified_hub":        m.HubsClassified.Load(),
		"classified_author":     m.AuthorsClassified.Load(),
		"classified_other":      m.OthersClassified.Load(),
		"poems_extracted":       m.PoemsExtracted.Load(),
		"poems_persisted":       m.PoemsPersisted.Load(),
		"extract_failures":      m.ExtractFailures.Load(),
	}
}
