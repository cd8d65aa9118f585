package classify

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"poemharvest/internal/config"
	"poemharvest/internal/types"
)

// Template names marking disambiguation pages. Matched case-insensitively
// against the page's template list.
var disambiguationTemplates = map[string]struct{}{
	"disambiguation": {},
	"disambig":       {},
	"homonymie":      {},
	"homonymes":      {},
}

// Category fragments marking curator-asserted page roles.
var (
	multiVersionCategoryMarks = []string{
		"multi-version",
		"éditions multiples",
		"versions multiples",
	}
	collectionCategoryMarks = []string{
		"poetic collection",
		"recueils de poèmes",
		"recueil de poèmes",
	}
)

// Classifier maps a fetched page to a PageType plus the signal that
// decided it.
type Classifier struct {
	cfg        config.ClassifierConfig
	lang       string
	authorMark string // localized "Author:" title prefix, with colon
	logger     *slog.Logger
}

// New creates a Classifier for one Wikisource language.
func New(cfg config.ClassifierConfig, lang, authorPrefix string, logger *slog.Logger) *Classifier {
	return &Classifier{
		cfg:        cfg,
		lang:       lang,
		authorMark: authorPrefix + ":",
		logger:     logger.With("component", "classifier"),
	}
}

// Classify applies the layered heuristics in precedence order.
// First match wins; category tags outrank structural HTML, which
// outranks content shape.
func (c *Classifier) Classify(p *Page) types.ClassifiedPage {
	// Namespace check: only the main namespace holds content pages.
	if p.Data.Namespace != types.NamespaceMain {
		if strings.HasPrefix(p.Data.Title, c.authorMark) {
			return types.ClassifiedPage{Type: types.TypeAuthor, Reason: types.ReasonAuthorNamespace}
		}
		return types.ClassifiedPage{Type: types.TypeOther, Reason: types.ReasonNonContentNamespace}
	}

	if c.isDisambiguation(p) {
		return types.ClassifiedPage{Type: types.TypeDisambiguation, Reason: types.ReasonDisambiguationTemplate}
	}

	if hasCategoryMark(p.Data.Categories, multiVersionCategoryMarks) {
		return types.ClassifiedPage{Type: types.TypeMultiVersionHub, Reason: types.ReasonMultiVersionCategory}
	}
	if hasCategoryMark(p.Data.Categories, collectionCategoryMarks) {
		return types.ClassifiedPage{Type: types.TypePoeticCollection, Reason: types.ReasonCollectionCategory}
	}

	hasWikidata := c.hasWikidataMarker(p.Doc)
	if c.hasSummaryBlock(p.Doc) {
		if hasWikidata {
			return types.ClassifiedPage{Type: types.TypeMultiVersionHub, Reason: types.ReasonSummaryBlockWithWikidata}
		}
		return types.ClassifiedPage{Type: types.TypePoeticCollection, Reason: types.ReasonSummaryBlock}
	}
	if c.hasEditionsHeading(p.Doc) {
		// Editions blocks co-occurring with a structured-data link mean
		// the page aggregates distinct works, not sections of one.
		if hasWikidata {
			return types.ClassifiedPage{Type: types.TypeMultiVersionHub, Reason: types.ReasonEditionsWithWikidata}
		}
		return types.ClassifiedPage{Type: types.TypePoeticCollection, Reason: types.ReasonEditionsHeading}
	}

	if c.hasPoemBlocks(p) {
		return types.ClassifiedPage{Type: types.TypePoem, Reason: types.ReasonPoemBlocks}
	}

	if c.isLinkList(p.Doc) {
		if hasWikidata {
			return types.ClassifiedPage{Type: types.TypeMultiVersionHub, Reason: types.ReasonLinkListWithWikidata}
		}
		return types.ClassifiedPage{Type: types.TypePoeticCollection, Reason: types.ReasonLinkList}
	}

	return types.ClassifiedPage{Type: types.TypeOther, Reason: types.ReasonNoSignal}
}

func (c *Classifier) isDisambiguation(p *Page) bool {
	for _, tpl := range p.Data.Templates {
		if _, ok := disambiguationTemplates[strings.ToLower(strings.TrimSpace(tpl))]; ok {
			return true
		}
	}
	return false
}

func hasCategoryMark(categories, marks []string) bool {
	for _, cat := range categories {
		lower := strings.ToLower(cat)
		for _, mark := range marks {
			if strings.Contains(lower, mark) {
				return true
			}
		}
	}
	return false
}

// hasSummaryBlock detects the dedicated table-of-contents container
// Wikisource pages use for collection summaries.
func (c *Classifier) hasSummaryBlock(doc *goquery.Document) bool {
	return doc.Find("div.ws-summary").Length() > 0 || doc.Find("div#toc").Length() > 0
}

// hasEditionsHeading detects an "Éditions"/"Editions" heading.
func (c *Classifier) hasEditionsHeading(doc *goquery.Document) bool {
	found := false
	doc.Find("h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if strings.EqualFold(text, "Éditions") || strings.EqualFold(text, "Editions") {
			found = true
			return false
		}
		return true
	})
	return found
}

// hasWikidataMarker detects the structured-data link MediaWiki emits for
// pages bound to a Wikidata item.
func (c *Classifier) hasWikidataMarker(doc *goquery.Document) bool {
	if doc.Find("li#t-wikibase").Length() > 0 {
		return true
	}
	return doc.Find(`a[href*="wikidata.org/wiki/Q"]`).Length() > 0
}

func (c *Classifier) hasPoemBlocks(p *Page) bool {
	if p.Doc.Find("div.poem, span.poem, poem").Length() > 0 {
		return true
	}
	return hasPoemMarkup(p.Data.Wikitext)
}

// isLinkList applies the link-to-item ratio heuristic: a long list whose
// items are overwhelmingly internal links reads as a table of contents.
func (c *Classifier) isLinkList(doc *goquery.Document) bool {
	items := contentArea(doc).Find("li")
	total := items.Length()
	if total == 0 {
		return false
	}
	linked := 0
	items.Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(`a[href^="/wiki/"]`).Length() > 0 {
			linked++
		}
	})
	if linked <= c.cfg.LinkListMinLinks {
		return false
	}
	return float64(linked)/float64(total) > c.cfg.LinkListRatio
}

// contentArea narrows to the rendered article body when present.
func contentArea(doc *goquery.Document) *goquery.Selection {
	if body := doc.Find("div#mw-content-text"); body.Length() > 0 {
		return body
	}
	if body := doc.Find("div.mw-parser-output"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}
