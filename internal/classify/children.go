package classify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"poemharvest/internal/types"
)

// Namespaces whose links are navigational or administrative rather than
// content, across the languages the crawl targets. Each exclusion is
// deliberate: following them would drag the crawl out of the corpus.
var excludedLinkPrefixes = []string{
	"Category", "Catégorie", "Kategorie", "Categoría", "Categoria",
	"Author", "Auteur", "Autor", "Autore",
	"Portal", "Portail",
	"Help", "Aide", "Hilfe", "Ayuda", "Aiuto",
	"Wikisource",
	"File", "Fichier", "Datei", "Archivo",
	"Special", "Spécial", "Spezial",
	"Book", "Livre", "Buch",
	"Template", "Modèle", "Vorlage", "Plantilla",
}

// CollectionChildren extracts the ordered child references of a
// collection page: internal links in document order, with interleaved
// headings and standalone bold text preserved as section-title markers.
//
// The most specific container wins: the dedicated summary block, then an
// Editions-headed list, then the general content area.
func (c *Classifier) CollectionChildren(p *Page) []types.ChildRef {
	container := c.collectionContainer(p.Doc)

	var children []types.ChildRef
	seen := make(map[string]struct{})

	container.Find("a[href], h2, h3, h4, b").Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "a" {
			title, ok := c.validChildLink(sel, p.Data.Title)
			if !ok {
				return
			}
			if _, dup := seen[title]; dup {
				return
			}
			seen[title] = struct{}{}
			children = append(children, types.ChildRef{Title: title, Type: types.TypePoem})
			return
		}

		if title, ok := c.sectionMarker(sel); ok {
			children = append(children, types.ChildRef{Title: title, Type: types.TypeSectionTitle})
		}
	})

	return children
}

// collectionContainer picks the narrowest block that holds the
// collection's table of contents.
func (c *Classifier) collectionContainer(doc *goquery.Document) *goquery.Selection {
	if summary := doc.Find("div.ws-summary"); summary.Length() > 0 {
		return summary.First()
	}
	if editions := editionsBlock(doc); editions != nil {
		return editions
	}
	return contentArea(doc)
}

// editionsBlock returns the sibling run following an Editions heading,
// up to the next heading, or nil when no such heading exists.
func editionsBlock(doc *goquery.Document) *goquery.Selection {
	var block *goquery.Selection
	doc.Find("h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if strings.EqualFold(text, "Éditions") || strings.EqualFold(text, "Editions") {
			block = sel.NextUntil("h2, h3")
			return false
		}
		return true
	})
	if block == nil || block.Length() == 0 {
		return nil
	}
	return block
}

// validChildLink checks a link against the content-link rules and
// returns the normalized target title.
func (c *Classifier) validChildLink(sel *goquery.Selection, selfTitle string) (string, bool) {
	href, ok := sel.Attr("href")
	if !ok {
		return "", false
	}
	// Redlinks point at the edit form rather than content.
	if sel.HasClass("new") || strings.Contains(href, "redlink=1") || strings.Contains(href, "action=edit") {
		return "", false
	}
	title := titleFromHref(href)
	if title == "" || title == selfTitle {
		return "", false
	}
	for _, prefix := range excludedLinkPrefixes {
		if strings.HasPrefix(title, prefix+":") {
			return "", false
		}
	}
	return title, true
}

// sectionMarker turns a heading or standalone bold element into a
// section-title marker. Bold runs nested inside links or list items are
// inline emphasis, not section boundaries.
func (c *Classifier) sectionMarker(sel *goquery.Selection) (string, bool) {
	if goquery.NodeName(sel) == "b" {
		if sel.ParentsFiltered("a, li").Length() > 0 {
			return "", false
		}
	}
	title := strings.TrimSpace(sel.Text())
	if title == "" || len(title) > c.cfg.SectionTitleMaxLen {
		return "", false
	}
	// MediaWiki table-of-contents headings carry an edit link suffix.
	title = strings.TrimSuffix(title, "[modifier]")
	title = strings.TrimSuffix(title, "[edit]")
	return strings.TrimSpace(title), true
}

var parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeHubTitle strips a trailing parenthetical qualifier and
// collapses whitespace for fuzzy containment matching.
func normalizeHubTitle(title string) string {
	base := parentheticalRe.ReplaceAllString(title, "")
	base = whitespaceRe.ReplaceAllString(base, " ")
	return strings.ToLower(strings.TrimSpace(base))
}

// HubChildren extracts version links from a multi-version hub: links
// whose target title contains the hub's own normalized title, or whose
// target is a "/"-delimited descendant of it. Hub pages mix version
// links with incidental cross-references; both rules select the former.
func (c *Classifier) HubChildren(p *Page) []types.ChildRef {
	base := normalizeHubTitle(p.Data.Title)
	if base == "" {
		return nil
	}

	var children []types.ChildRef
	seen := make(map[string]struct{})

	contentArea(p.Doc).Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		title, ok := c.validChildLink(sel, p.Data.Title)
		if !ok {
			return
		}
		normalized := strings.ToLower(whitespaceRe.ReplaceAllString(title, " "))
		isVersion := strings.Contains(normalized, base) ||
			strings.HasPrefix(normalized, strings.ToLower(p.Data.Title)+"/")
		if !isVersion {
			return
		}
		if _, dup := seen[title]; dup {
			return
		}
		seen[title] = struct{}{}
		children = append(children, types.ChildRef{Title: title, Type: types.TypePoem})
	})

	return children
}
