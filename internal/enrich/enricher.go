// Package enrich post-processes an existing poem stream, backfilling
// collection_page_id for records that knew their collection only by
// title at crawl time.
package enrich

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"poemharvest/internal/gateway"
	"poemharvest/internal/types"
)

type Enricher struct {
	gw     *gateway.Client
	logger *slog.Logger
}

func New(gw *gateway.Client, logger *slog.Logger) *Enricher {
	return &Enricher{gw: gw, logger: logger.With("component", "enricher")}
}

// Stats summarizes one enrichment pass.
type Stats struct {
	Records    int
	Backfilled int
	Unresolved int
}

// Run rewrites the stream at inPath to outPath, resolving collection
// titles to page IDs in API-sized batches. Records that already carry
// an ID, or have no collection, pass through unchanged.
func (e *Enricher) Run(ctx context.Context, inPath, outPath string) (Stats, error) {
	var stats Stats

	poems, err := readStream(inPath)
	if err != nil {
		return stats, err
	}
	stats.Records = len(poems)

	ids, err := e.resolveCollections(ctx, poems)
	if err != nil {
		return stats, err
	}

	for _, p := range poems {
		if p.CollectionPageID != 0 || p.CollectionTitle == "" {
			continue
		}
		if id, ok := ids[p.CollectionTitle]; ok {
			p.CollectionPageID = id
			stats.Backfilled++
		} else {
			stats.Unresolved++
		}
	}

	if err := writeStream(outPath, poems); err != nil {
		return stats, err
	}

	e.logger.Info("enrichment complete",
		"records", stats.Records, "backfilled", stats.Backfilled, "unresolved", stats.Unresolved)
	return stats, nil
}

// resolveCollections maps every distinct unresolved collection title to
// its page ID.
func (e *Enricher) resolveCollections(ctx context.Context, poems []*types.ExtractedPoem) (map[string]int64, error) {
	distinct := make(map[string]struct{})
	for _, p := range poems {
		if p.CollectionPageID == 0 && p.CollectionTitle != "" {
			distinct[p.CollectionTitle] = struct{}{}
		}
	}
	titles := make([]string, 0, len(distinct))
	for t := range distinct {
		titles = append(titles, t)
	}

	ids := make(map[string]int64, len(titles))
	batch := e.gw.BatchSize()
	for start := 0; start < len(titles); start += batch {
		end := start + batch
		if end > len(titles) {
			end = len(titles)
		}
		res, err := e.gw.ResolveTitles(ctx, titles[start:end])
		if err != nil {
			return nil, fmt.Errorf("resolve collection titles: %w", err)
		}

		redirects := make(map[string]string, len(res.Redirects))
		for _, r := range res.Redirects {
			redirects[r.From] = r.To
		}
		byFinal := make(map[string]gateway.PageStub, len(res.Pages))
		for _, p := range res.Pages {
			byFinal[p.Title] = p
		}
		for _, title := range titles[start:end] {
			final := title
			if to, ok := redirects[final]; ok {
				final = to
			}
			if stub, ok := byFinal[final]; ok && !stub.Missing {
				ids[title] = stub.ID
			}
		}
	}
	return ids, nil
}

func readStream(path string) ([]*types.ExtractedPoem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var poems []*types.ExtractedPoem
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var p types.ExtractedPoem
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		poems = append(poems, &p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return poems, nil
}

func writeStream(path string, poems []*types.ExtractedPoem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	enc := json.NewEncoder(w)
	for _, p := range poems {
		if err := enc.Encode(p); err != nil {
			f.Close()
			return fmt.Errorf("encode record: %w", err)
		}
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("close gzip stream: %w", err)
		}
	}
	return f.Close()
}
