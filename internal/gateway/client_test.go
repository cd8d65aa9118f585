package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poemharvest/internal/config"
	"poemharvest/internal/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig().Gateway
	cfg.Endpoint = srv.URL
	cfg.MaxRetries = 3
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(&cfg, "fr", nil, logger), srv
}

func TestResolveTitles(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "2", r.URL.Query().Get("formatversion"))
		assert.Equal(t, "1", r.URL.Query().Get("redirects"))
		assert.Equal(t, "Le_Lac|Aurore", r.URL.Query().Get("titles"))

		fmt.Fprint(w, `{"query":{
			"redirects":[{"from":"Le_Lac","to":"Le Lac (Lamartine)"}],
			"pages":[
				{"pageid":10,"title":"Le Lac (Lamartine)","fullurl":"https://fr.wikisource.org/wiki/Le_Lac"},
				{"pageid":11,"title":"Aurore"},
				{"title":"Fantôme","missing":true}
			]}}`)
	}))

	res, err := c.ResolveTitles(context.Background(), []string{"Le_Lac", "Aurore"})
	require.NoError(t, err)

	require.Len(t, res.Pages, 3)
	assert.Equal(t, int64(10), res.Pages[0].ID)
	assert.True(t, res.Pages[2].Missing)
	require.Len(t, res.Redirects, 1)
	assert.Equal(t, "Le Lac (Lamartine)", res.Redirects[0].To)
}

func TestResolveTitlesBatchCap(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an oversized batch")
	}))

	titles := make([]string, 51)
	for i := range titles {
		titles[i] = fmt.Sprintf("T%d", i)
	}
	_, err := c.ResolveTitles(context.Background(), titles)
	assert.Error(t, err)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"query":{"search":[{"title":"Catégorie:Poèmes"}]}}`)
	}))

	title, err := c.SearchPage(context.Background(), "Poèmes", 14)
	require.NoError(t, err)
	assert.Equal(t, "Catégorie:Poèmes", title)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequestCountersTrackRetriesAndFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"query":{"search":[{"title":"Catégorie:Poèmes"}]}}`)
	}))

	_, err := c.SearchPage(context.Background(), "Poèmes", 14)
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.metrics.APIRequestsTotal.Load())
	assert.Equal(t, int64(2), c.metrics.APIRequestsRetried.Load())
	assert.Equal(t, int64(0), c.metrics.APIRequestsFailed.Load())

	failing, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	_, err = failing.SearchPage(context.Background(), "Poèmes", 14)
	require.Error(t, err)
	assert.Equal(t, int64(1), failing.metrics.APIRequestsFailed.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))

	_, err := c.SearchPage(context.Background(), "Poèmes", 14)
	require.Error(t, err)
	var fetchErr *types.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.False(t, fetchErr.Retryable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAPIErrorEnvelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"invalidtitle","info":"Bad title"}}`)
	}))

	_, err := c.ResolveTitles(context.Background(), []string{"<<bad>>"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidtitle")
}

func TestCategoryMembersFollowsContinuation(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			assert.Empty(t, r.URL.Query().Get("cmcontinue"))
			fmt.Fprint(w, `{"continue":{"cmcontinue":"page|next"},"query":{"categorymembers":[{"pageid":1,"title":"A"}]}}`)
			return
		}
		assert.Equal(t, "page|next", r.URL.Query().Get("cmcontinue"))
		fmt.Fprint(w, `{"query":{"categorymembers":[{"pageid":2,"title":"B"}]}}`)
	}))

	members, err := c.CategoryMembers(context.Background(), "Catégorie:Poèmes")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "A", members[0].Title)
	assert.Equal(t, "B", members[1].Title)
}

func TestPageDataMissingPage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"pages":[{"title":"Disparu","missing":true}]}}`)
	}))

	data, err := c.PageData(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPageDataStripsNamespacePrefixes(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"pages":[{
			"pageid":10,"title":"Aurore","ns":0,
			"fullurl":"https://fr.wikisource.org/wiki/Aurore",
			"revisions":[{"revid":77,"slots":{"main":{"content":"<poem>..</poem>"}}}],
			"categories":[{"title":"Catégorie:Poèmes"}],
			"templates":[{"title":"Modèle:Header"}]
		}]}}`)
	}))

	data, err := c.PageData(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, int64(77), data.RevisionID)
	assert.Equal(t, []string{"Poèmes"}, data.Categories)
	assert.Equal(t, []string{"Header"}, data.Templates)
}

func TestRetryBackoffGrowsAndCaps(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, baseDelay: 100 * time.Millisecond, maxDelay: 400 * time.Millisecond}

	for attempt := 0; attempt < 5; attempt++ {
		d := p.backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, p.maxDelay)
	}
	assert.True(t, p.shouldRetry(0))
	assert.False(t, p.shouldRetry(5))
}
