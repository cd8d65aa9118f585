package enrich

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poemharvest/internal/config"
	"poemharvest/internal/gateway"
	"poemharvest/internal/types"
)

func writeCorpus(t *testing.T, path string, poems []*types.ExtractedPoem) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	for _, p := range poems {
		require.NoError(t, enc.Encode(p))
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func TestEnricherBackfillsCollectionIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("titles"), "Les Contemplations")
		fmt.Fprint(w, `{"query":{"pages":[
			{"pageid":100,"title":"Les Contemplations"},
			{"title":"Recueil Fantôme","missing":true}
		]}}`)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Gateway
	cfg.Endpoint = srv.URL
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(&cfg, "fr", nil, logger)

	dir := t.TempDir()
	in := filepath.Join(dir, "poems.jsonl.gz")
	out := filepath.Join(dir, "enriched.jsonl.gz")
	now := time.Now().UTC().Truncate(time.Second)
	writeCorpus(t, in, []*types.ExtractedPoem{
		{PageID: 1, Title: "Aurore", HubPageID: 1, CollectionTitle: "Les Contemplations", ExtractedAt: now},
		{PageID: 2, Title: "Seul", HubPageID: 2, ExtractedAt: now},
		{PageID: 3, Title: "Perdu", HubPageID: 3, CollectionTitle: "Recueil Fantôme", ExtractedAt: now},
		{PageID: 4, Title: "Déjà", HubPageID: 4, CollectionTitle: "Les Contemplations", CollectionPageID: 100, ExtractedAt: now},
	})

	stats, err := New(gw, logger).Run(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, 1, stats.Backfilled)
	assert.Equal(t, 1, stats.Unresolved)

	enriched, err := readStream(out)
	require.NoError(t, err)
	require.Len(t, enriched, 4)

	byID := map[int64]*types.ExtractedPoem{}
	for _, p := range enriched {
		byID[p.PageID] = p
	}
	assert.Equal(t, int64(100), byID[1].CollectionPageID)
	assert.Zero(t, byID[2].CollectionPageID)
	assert.Zero(t, byID[3].CollectionPageID)
	assert.Equal(t, int64(100), byID[4].CollectionPageID)
}
