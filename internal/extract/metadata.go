package extract

import (
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"poemharvest/internal/types"
)

// itempropPaths maps each metadata field to the microdata property the
// rendered header block exposes.
var itempropPaths = map[string]string{
	"author":     "//*[@itemprop='author']",
	"date":       "//*[@itemprop='datePublished']",
	"collection": "//*[@itemprop='isPartOf']",
	"publisher":  "//*[@itemprop='publisher']",
	"translator": "//*[@itemprop='translator']",
}

// templateParams lists, per field, the wikitext header parameter names
// across the supported languages.
var templateParams = map[string][]string{
	"author":     {"author", "auteur", "autor", "autore"},
	"date":       {"year", "date", "année", "annee", "jahr", "año", "anno"},
	"collection": {"collection", "recueil", "section", "sammlung"},
	"publisher":  {"publisher", "éditeur", "editeur", "verlag", "editorial"},
	"translator": {"translator", "traducteur", "übersetzer", "traductor"},
}

// Metadata gathers page-level metadata, preferring rendered microdata
// over raw wikitext template parameters. Microdata reflects what the
// wiki actually resolved; template text may hold unexpanded markup.
func Metadata(root *html.Node, wikitext string) types.PoemMetadata {
	get := func(field string) string {
		if root != nil {
			if node := htmlquery.FindOne(root, itempropPaths[field]); node != nil {
				if v := strings.TrimSpace(htmlquery.InnerText(node)); v != "" {
					return v
				}
			}
		}
		for _, param := range templateParams[field] {
			if v := templateParam(wikitext, param); v != "" {
				return v
			}
		}
		return ""
	}

	return types.PoemMetadata{
		Author:               get("author"),
		PublicationDate:      get("date"),
		SourceCollectionName: get("collection"),
		Publisher:            get("publisher"),
		Translator:           get("translator"),
	}
}

var wikiLinkRe = regexp.MustCompile(`\[\[(?:[^|\]]*\|)?([^\]]+)\]\]`)

// templateParam pulls one "| name = value" parameter out of wikitext and
// strips link and emphasis markup from the value.
func templateParam(wikitext, name string) string {
	re := regexp.MustCompile(`(?im)^\s*\|\s*` + regexp.QuoteMeta(name) + `\s*=\s*(.+)$`)
	m := re.FindStringSubmatch(wikitext)
	if m == nil {
		return ""
	}
	v := wikiLinkRe.ReplaceAllString(m[1], "$1")
	v = strings.ReplaceAll(v, "'''", "")
	v = strings.ReplaceAll(v, "''", "")
	v = strings.TrimSpace(strings.Trim(v, "{}"))
	return v
}
