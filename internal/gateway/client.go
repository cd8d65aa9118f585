// Package gateway implements the MediaWiki action API client used by the
// crawl. All calls are idempotent reads; missing pages come back as nil
// results, not errors. Transport failures are retried with backoff and
// degrade to a typed *types.FetchError once the retry budget is spent.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"poemharvest/internal/config"
	"poemharvest/internal/observability"
	"poemharvest/internal/types"
)

// Client is a rate-bounded MediaWiki API client. A permit channel caps
// in-flight requests independently of the worker count, since one worker
// issues several API calls per page.
type Client struct {
	endpoint   string
	httpClient *http.Client
	permits    chan struct{}
	retry      retryPolicy
	userAgent  string
	batchSize  int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates a Client for the given language's Wikisource, or for
// cfg.Endpoint when set. A nil metrics gets a private instance so call
// sites never check.
func New(cfg *config.GatewayConfig, lang string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikisource.org/w/api.php", lang)
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: newHTTPClient(cfg),
		permits:    make(chan struct{}, cfg.MaxConcurrent),
		retry: retryPolicy{
			maxAttempts: cfg.MaxRetries,
			baseDelay:   cfg.RetryBaseDelay,
			maxDelay:    cfg.RetryMaxDelay,
		},
		userAgent: cfg.UserAgent,
		batchSize: cfg.BatchSize,
		metrics:   metrics,
		logger:    logger.With("component", "gateway"),
	}
}

// BatchSize returns the title-batch cap honored by ResolveTitles and
// CategoryInfo callers.
func (c *Client) BatchSize() int { return c.batchSize }

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() { <-c.permits }

// PageStub is a title-resolution result entry.
type PageStub struct {
	ID      int64  `json:"pageid"`
	Title   string `json:"title"`
	Missing bool   `json:"missing"`
	URL     string `json:"fullurl"`
}

// Redirect maps a source title to its target title.
type Redirect struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ResolveResult is the outcome of a batched title resolution.
type ResolveResult struct {
	Pages     []PageStub `json:"pages"`
	Redirects []Redirect `json:"redirects"`
}

// CategoryCounts reports a category's direct membership sizes.
type CategoryCounts struct {
	Pages   int `json:"pages"`
	Subcats int `json:"subcats"`
}

// ResolveTitles resolves up to BatchSize titles to page references,
// following redirects server-side. Larger inputs are an error: chunking
// is the caller's job, because the caller owns ordering.
func (c *Client) ResolveTitles(ctx context.Context, titles []string) (*ResolveResult, error) {
	if len(titles) == 0 {
		return &ResolveResult{}, nil
	}
	if len(titles) > c.batchSize {
		return nil, fmt.Errorf("resolve batch of %d exceeds cap %d", len(titles), c.batchSize)
	}

	params := url.Values{
		"action":    {"query"},
		"titles":    {strings.Join(titles, "|")},
		"redirects": {"1"},
		"prop":      {"info"},
		"inprop":    {"url"},
	}
	var resp struct {
		Query ResolveResult `json:"query"`
	}
	if err := c.do(ctx, "resolve_titles", params, &resp); err != nil {
		return nil, err
	}
	return &resp.Query, nil
}

// SearchPage runs a full-text search restricted to one namespace and
// returns the best-matching title, or "" when nothing matches. Used as
// the fuzzy fallback when the root category title is not found verbatim.
func (c *Client) SearchPage(ctx context.Context, term string, namespace int) (string, error) {
	params := url.Values{
		"action":      {"query"},
		"list":        {"search"},
		"srsearch":    {term},
		"srnamespace": {strconv.Itoa(namespace)},
		"srlimit":     {"1"},
	}
	var resp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := c.do(ctx, "search_page", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

// Subcategories lists the immediate subcategories of a category,
// following API continuation. Titles keep their "Category:" prefix.
func (c *Client) Subcategories(ctx context.Context, category string) ([]types.PageRef, error) {
	return c.categoryMembers(ctx, category, "subcat")
}

// CategoryMembers lists the content pages directly inside a category.
func (c *Client) CategoryMembers(ctx context.Context, category string) ([]types.PageRef, error) {
	return c.categoryMembers(ctx, category, "page")
}

func (c *Client) categoryMembers(ctx context.Context, category, cmType string) ([]types.PageRef, error) {
	var out []types.PageRef
	cont := ""
	for {
		params := url.Values{
			"action":  {"query"},
			"list":    {"categorymembers"},
			"cmtitle": {category},
			"cmtype":  {cmType},
			"cmlimit": {"max"},
		}
		if cont != "" {
			params.Set("cmcontinue", cont)
		}
		var resp struct {
			Continue struct {
				CMContinue string `json:"cmcontinue"`
			} `json:"continue"`
			Query struct {
				Members []struct {
					ID    int64  `json:"pageid"`
					Title string `json:"title"`
				} `json:"categorymembers"`
			} `json:"query"`
		}
		if err := c.do(ctx, "category_members", params, &resp); err != nil {
			return nil, err
		}
		for _, m := range resp.Query.Members {
			out = append(out, types.PageRef{ID: m.ID, Title: m.Title})
		}
		if resp.Continue.CMContinue == "" {
			return out, nil
		}
		cont = resp.Continue.CMContinue
	}
}

// CategoryInfo returns page/subcategory counts for up to BatchSize
// category titles. Categories missing from the response report zero
// counts; the caller treats those as empty.
func (c *Client) CategoryInfo(ctx context.Context, titles []string) (map[string]CategoryCounts, error) {
	if len(titles) == 0 {
		return map[string]CategoryCounts{}, nil
	}
	if len(titles) > c.batchSize {
		return nil, fmt.Errorf("categoryinfo batch of %d exceeds cap %d", len(titles), c.batchSize)
	}

	params := url.Values{
		"action": {"query"},
		"titles": {strings.Join(titles, "|")},
		"prop":   {"categoryinfo"},
	}
	var resp struct {
		Query struct {
			Pages []struct {
				Title        string          `json:"title"`
				CategoryInfo *CategoryCounts `json:"categoryinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.do(ctx, "category_info", params, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]CategoryCounts, len(resp.Query.Pages))
	for _, p := range resp.Query.Pages {
		if p.CategoryInfo != nil {
			out[p.Title] = *p.CategoryInfo
		}
	}
	return out, nil
}

// PageData fetches metadata, the latest revision's wikitext, and
// category/template membership for one page. Returns (nil, nil) when the
// page is missing or invalid.
func (c *Client) PageData(ctx context.Context, pageID int64) (*types.PageData, error) {
	params := url.Values{
		"action":  {"query"},
		"pageids": {strconv.FormatInt(pageID, 10)},
		"prop":    {"info|revisions|categories|templates"},
		"rvprop":  {"ids|content"},
		"rvslots": {"main"},
		"inprop":  {"url"},
		"cllimit": {"max"},
		"tllimit": {"max"},
	}
	var resp struct {
		Query struct {
			Pages []struct {
				ID        int64  `json:"pageid"`
				Title     string `json:"title"`
				Namespace int    `json:"ns"`
				Missing   bool   `json:"missing"`
				Invalid   bool   `json:"invalid"`
				URL       string `json:"fullurl"`
				Revisions []struct {
					ID    int64 `json:"revid"`
					Slots struct {
						Main struct {
							Content string `json:"content"`
						} `json:"main"`
					} `json:"slots"`
				} `json:"revisions"`
				Categories []struct {
					Title string `json:"title"`
				} `json:"categories"`
				Templates []struct {
					Title string `json:"title"`
				} `json:"templates"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.do(ctx, "page_data", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return nil, nil
	}
	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return nil, nil
	}

	data := &types.PageData{
		ID:        p.ID,
		Title:     p.Title,
		Namespace: p.Namespace,
		URL:       p.URL,
	}
	if len(p.Revisions) > 0 {
		data.RevisionID = p.Revisions[0].ID
		data.Wikitext = p.Revisions[0].Slots.Main.Content
	}
	for _, cat := range p.Categories {
		data.Categories = append(data.Categories, stripNamespacePrefix(cat.Title))
	}
	for _, tpl := range p.Templates {
		data.Templates = append(data.Templates, stripNamespacePrefix(tpl.Title))
	}
	return data, nil
}

// RenderedHTML fetches the server-rendered HTML body of a page.
// Returns "" when the page cannot be parsed.
func (c *Client) RenderedHTML(ctx context.Context, pageID int64) (string, error) {
	params := url.Values{
		"action": {"parse"},
		"pageid": {strconv.FormatInt(pageID, 10)},
		"prop":   {"text"},
	}
	var resp struct {
		Parse struct {
			Text string `json:"text"`
		} `json:"parse"`
	}
	if err := c.do(ctx, "rendered_html", params, &resp); err != nil {
		return "", err
	}
	return resp.Parse.Text, nil
}

// stripNamespacePrefix drops the "Category:"/"Template:" style prefix
// from an API-returned title.
func stripNamespacePrefix(title string) string {
	if i := strings.Index(title, ":"); i >= 0 {
		return title[i+1:]
	}
	return title
}
