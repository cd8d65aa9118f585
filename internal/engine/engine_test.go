package engine

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poemharvest/internal/auditlog"
	"poemharvest/internal/classify"
	"poemharvest/internal/config"
	"poemharvest/internal/gateway"
	"poemharvest/internal/observability"
	"poemharvest/internal/storage"
	"poemharvest/internal/types"
)

const collectionHTML = `<div id="mw-content-text"><div class="ws-summary">
	<h2>Livre premier</h2>
	<ul>
		<li><a href="/wiki/Aurore">Aurore</a></li>
		<li><a href="/wiki/Cr%C3%A9puscule">Crépuscule</a></li>
	</ul>
</div></div>`

const poemHTML = `<div id="mw-content-text"><div class="poem">
Premier vers,<br/>
Second vers.<br/>
<br/>
Troisième vers.<br/>
</div></div>`

// fakeWiki scripts a two-poem collection reachable from the root
// category through one author subcategory, answering the MediaWiki
// query and parse actions the crawl issues. A second, empty
// subcategory must be pruned by the batched emptiness pre-check; the
// fake fails the test if its members are ever listed.
func fakeWiki(t *testing.T) http.Handler {
	t.Helper()

	type pageInfo struct {
		id         int64
		title      string
		wikitext   string
		categories []string
		html       string
	}
	pages := map[int64]pageInfo{
		100: {
			id: 100, title: "Les Contemplations",
			wikitext:   "{{Header}}\n* [[Aurore]]\n* [[Crépuscule]]",
			categories: []string{"Catégorie:Recueils de poèmes"},
			html:       collectionHTML,
		},
		42: {42, "Aurore", "<poem>Premier vers,\nSecond vers.\n\nTroisième vers.</poem>", nil, poemHTML},
		43: {43, "Crépuscule", "<poem>Premier vers,\nSecond vers.\n\nTroisième vers.</poem>", nil, poemHTML},
	}
	byTitle := map[string]pageInfo{}
	for _, p := range pages {
		byTitle[p.title] = p
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("action") == "parse":
			var id int64
			fmt.Sscan(q.Get("pageid"), &id)
			p, ok := pages[id]
			require.True(t, ok, "parse for unknown page %d", id)
			writeJSON(t, w, map[string]any{"parse": map[string]any{"text": p.html}})

		case q.Get("list") == "categorymembers":
			members := []any{}
			switch {
			case q.Get("cmtype") == "subcat" && q.Get("cmtitle") == "Catégorie:Poèmes":
				members = append(members,
					map[string]any{"pageid": int64(14), "title": "Catégorie:Auteur Victor Hugo"},
					map[string]any{"pageid": int64(15), "title": "Catégorie:Sans contenu"},
				)
			case q.Get("cmtype") == "page" && q.Get("cmtitle") == "Catégorie:Auteur Victor Hugo":
				members = append(members, map[string]any{"pageid": int64(100), "title": "Les Contemplations"})
			case q.Get("cmtitle") == "Catégorie:Sans contenu":
				t.Errorf("empty subcategory was listed instead of pruned")
			}
			writeJSON(t, w, map[string]any{"query": map[string]any{"categorymembers": members}})

		case q.Get("prop") == "categoryinfo":
			writeJSON(t, w, map[string]any{"query": map[string]any{"pages": []any{
				map[string]any{"title": "Catégorie:Auteur Victor Hugo", "categoryinfo": map[string]any{"pages": 1, "subcats": 0}},
				map[string]any{"title": "Catégorie:Sans contenu"},
			}}})

		case q.Get("pageids") != "":
			var id int64
			fmt.Sscan(q.Get("pageids"), &id)
			p, ok := pages[id]
			require.True(t, ok, "pagedata for unknown page %d", id)
			cats := []any{}
			for _, c := range p.categories {
				cats = append(cats, map[string]any{"title": c})
			}
			writeJSON(t, w, map[string]any{"query": map[string]any{"pages": []any{map[string]any{
				"pageid": p.id, "title": p.title, "ns": 0,
				"fullurl":    "https://fr.wikisource.org/wiki/" + strings.ReplaceAll(p.title, " ", "_"),
				"revisions":  []any{map[string]any{"revid": p.id * 10, "slots": map[string]any{"main": map[string]any{"content": p.wikitext}}}},
				"categories": cats,
			}}}})

		case q.Get("titles") != "":
			resolved := []any{}
			for _, title := range strings.Split(q.Get("titles"), "|") {
				if strings.HasPrefix(title, "Catégorie:") {
					resolved = append(resolved, map[string]any{"pageid": int64(1), "title": title})
					continue
				}
				if p, ok := byTitle[title]; ok {
					resolved = append(resolved, map[string]any{
						"pageid": p.id, "title": p.title,
						"fullurl": "https://fr.wikisource.org/wiki/" + strings.ReplaceAll(p.title, " ", "_"),
					})
				} else {
					resolved = append(resolved, map[string]any{"title": title, "missing": true})
				}
			}
			writeJSON(t, w, map[string]any{"query": map[string]any{"pages": resolved}})

		default:
			t.Errorf("unexpected API call: %s", r.URL.RawQuery)
			writeJSON(t, w, map[string]any{"query": map[string]any{}})
		}
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestEngineCrawlsCollectionEndToEnd(t *testing.T) {
	srv := httptest.NewServer(fakeWiki(t))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Crawl.Category = "Poèmes"
	cfg.Crawl.Workers = 2
	cfg.Gateway.Endpoint = srv.URL
	cfg.Gateway.RetryBaseDelay = time.Millisecond
	cfg.Storage.OutputDir = dir

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics(logger)
	gw := gateway.New(&cfg.Gateway, cfg.Crawl.Lang, metrics, logger)

	records, err := storage.NewRecordWriter(dir, logger)
	require.NoError(t, err)
	index, err := storage.NewSQLiteIndex(filepath.Join(dir, "poems_index.db"), logger)
	require.NoError(t, err)
	sink := storage.NewSink(records, index, cfg.Storage.QueueSize, logger)

	audit, err := auditlog.New(dir, logger)
	require.NoError(t, err)

	eng := New(cfg, gw, sink, audit, nil, metrics, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, eng.Run(ctx))

	poems := readCorpus(t, filepath.Join(dir, "poems.jsonl.gz"))
	require.Len(t, poems, 2)

	byTitle := map[string]*types.ExtractedPoem{}
	for _, p := range poems {
		byTitle[p.Title] = p
	}
	aurore := byTitle["Aurore"]
	crepuscule := byTitle["Crépuscule"]
	require.NotNil(t, aurore)
	require.NotNil(t, crepuscule)

	// Collection context with reading-order ordinals.
	for _, p := range poems {
		assert.Equal(t, int64(100), p.CollectionPageID)
		assert.Equal(t, "Les Contemplations", p.CollectionTitle)
		assert.Equal(t, "Livre premier", p.SectionTitle)
		require.NotNil(t, p.PoemOrder)
		assert.Equal(t, p.PageID, p.HubPageID, "standalone poems hub with themselves")
		assert.NotEmpty(t, p.ChecksumSHA256)
		require.Len(t, p.Structure.Stanzas, 2)
	}
	assert.Equal(t, 0, *aurore.PoemOrder)
	assert.Equal(t, 1, *crepuscule.PoemOrder)

	// Full structure rides on the first member only.
	require.NotNil(t, aurore.CollectionStructure)
	assert.Equal(t, 2, aurore.CollectionStructure.PoemCount())
	assert.Nil(t, crepuscule.CollectionStructure)

	// The durable index matches the stream.
	ids, err := index2ids(t, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{42, 43}, ids)

	// The collection landed in the audit log, with its originating
	// author category and discovered child count.
	auditBytes, err := os.ReadFile(filepath.Join(dir, "collections.csv"))
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(auditBytes)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Les Contemplations", rows[1][1])
	assert.Equal(t, "Catégorie:Auteur Victor Hugo", rows[1][5])
	assert.Equal(t, "2", rows[1][6])
}

func TestExpandHubPropagatesLineage(t *testing.T) {
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := &Engine{
		cfg:        cfg,
		frontier:   NewFrontier(),
		classifier: classify.New(cfg.Classifier, "fr", gateway.AuthorPrefix("fr"), logger),
		metrics:    observability.NewMetrics(logger),
		logger:     logger,
	}

	hubHTML := `<div id="mw-content-text">
		<ul>
			<li><a href="/wiki/Le_Lac_(%C3%A9dition_1820)">Le Lac (édition 1820)</a></li>
			<li><a href="/wiki/Le_Lac_(%C3%A9dition_1849)">Le Lac (édition 1849)</a></li>
		</ul>
	</div>`
	page, err := classify.ParsePage(&types.PageData{ID: 9, Title: "Le Lac"}, hubHTML)
	require.NoError(t, err)

	n, err := eng.expandHub(page, types.WorkItem{
		Page:          types.PageRef{ID: 9, Title: "Le Lac"},
		GroupCategory: "Catégorie:Auteur Alphonse de Lamartine",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Every version keeps the hub identity and the originating author
	// category of the item that reached the hub.
	for i := 0; i < n; i++ {
		item, ok := eng.frontier.Drain(context.Background())
		require.True(t, ok)
		require.NotNil(t, item.Hub)
		assert.Equal(t, int64(9), item.Hub.ID)
		assert.Equal(t, "Catégorie:Auteur Alphonse de Lamartine", item.GroupCategory)
	}
}

func index2ids(t *testing.T, dir string) ([]int64, error) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	index, err := storage.NewSQLiteIndex(filepath.Join(dir, "poems_index.db"), logger)
	require.NoError(t, err)
	defer index.Close(context.Background())
	return index.ProcessedIDs(context.Background())
}

func readCorpus(t *testing.T, path string) []*types.ExtractedPoem {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var poems []*types.ExtractedPoem
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		var p types.ExtractedPoem
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &p))
		poems = append(poems, &p)
	}
	require.NoError(t, scanner.Err())
	return poems
}
