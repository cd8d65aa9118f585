// Package extract turns classified poem pages into output records:
// verse structure from the rendered HTML, metadata from microdata and
// wikitext headers, and the collection and hub context carried in from
// the crawl.
package extract

import (
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"

	"poemharvest/internal/classify"
	"poemharvest/internal/config"
	"poemharvest/internal/types"
)

type Extractor struct {
	cfg    config.ClassifierConfig
	lang   string
	logger *slog.Logger
}

func New(cfg config.ClassifierConfig, lang string, logger *slog.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		lang:   lang,
		logger: logger.With("component", "extractor"),
	}
}

// Extract builds the output record for one poem page. The work item
// supplies the crawl context: collection membership and ordering when
// the poem was reached through a collection, hub identity when reached
// through a multi-version hub.
//
// Fails with ErrNoPoemStructure when the page renders no poem blocks.
func (e *Extractor) Extract(p *classify.Page, item types.WorkItem) (*types.ExtractedPoem, error) {
	structure, err := Structure(p.Doc)
	if err != nil {
		return nil, err
	}

	var root *html.Node
	if len(p.Doc.Nodes) > 0 {
		root = p.Doc.Nodes[0]
	}
	meta := Metadata(root, p.Data.Wikitext)

	poem := &types.ExtractedPoem{
		PageID:         p.Data.ID,
		RevisionID:     p.Data.RevisionID,
		Title:          p.Data.Title,
		Language:       e.lang,
		URL:            p.Data.URL,
		Structure:      structure,
		NormalizedText: structure.NormalizedText(),
		ChecksumSHA256: types.Checksum(p.Data.Wikitext),
		ExtractedAt:    time.Now().UTC(),
	}

	switch {
	case item.Collection != nil:
		coll := item.Collection
		poem.CollectionPageID = coll.Collection.ID
		poem.CollectionTitle = coll.Collection.Title
		poem.SectionTitle = coll.SectionTitle
		order := coll.Order
		poem.PoemOrder = &order
		// The full structure rides on the first member only; every
		// other record points back through collection_page_id.
		if coll.IsFirst {
			poem.CollectionStructure = coll.Collection
		}
		if meta.Author == "" {
			meta.Author = coll.Collection.Author
		}
	case meta.SourceCollectionName == "":
		meta.SourceCollectionName = e.titlePathCollection(p.Data.Title)
	}

	if item.Hub != nil {
		poem.HubTitle = item.Hub.Title
		poem.HubPageID = item.Hub.ID
	} else {
		poem.HubPageID = p.Data.ID
	}

	if meta.SourceCollectionName == "" {
		meta.SourceCollectionName = poem.CollectionTitle
	}
	poem.Metadata = meta

	return poem, nil
}

// titlePathCollection recovers a fallback collection name from a
// subpage-style title ("Collection/Poem"). It applies only when no
// explicit source-collection metadata was found. Long prefixes are
// ignored: they are more likely a single poem title containing a slash
// than a real collection path.
func (e *Extractor) titlePathCollection(title string) string {
	idx := strings.LastIndex(title, "/")
	if idx <= 0 {
		return ""
	}
	prefix := title[:idx]
	leaf := strings.TrimSpace(title[idx+1:])
	if leaf == "" || len(prefix) > e.cfg.CollectionPathMaxLen {
		return ""
	}
	return prefix
}
