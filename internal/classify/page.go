// Package classify assigns semantic roles to wiki pages and extracts
// ordered child references from collection and hub pages. All decisions
// are rule-based over structural signals; precedence is category tags
// first (curator-asserted), structural HTML next, content shape last.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"poemharvest/internal/types"
)

// Page bundles the raw inputs the classifier inspects: API metadata,
// the parsed rendered HTML, and the revision wikitext.
type Page struct {
	Data *types.PageData
	Doc  *goquery.Document
}

// ParsePage builds a classifiable Page from page data and rendered HTML.
func ParsePage(data *types.PageData, renderedHTML string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return nil, &types.ParseError{Title: data.Title, Err: err}
	}
	return &Page{Data: data, Doc: doc}, nil
}

var redirectRe = regexp.MustCompile(`(?i)^\s*#(?:REDIRECT|REDIRECTION)\s*\[\[(.+?)\]\]`)

// RedirectTarget returns the normalized target title of a wikitext
// redirect, or "" when the page is not a redirect.
func RedirectTarget(wikitext string) string {
	m := redirectRe.FindStringSubmatch(wikitext)
	if m == nil {
		return ""
	}
	target := m[1]
	if i := strings.IndexByte(target, '|'); i >= 0 {
		target = target[:i]
	}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	if unescaped, err := url.QueryUnescape(target); err == nil {
		target = unescaped
	}
	return strings.TrimSpace(strings.ReplaceAll(target, "_", " "))
}

// hasPoemMarkup reports whether the wikitext carries poem extension tags.
func hasPoemMarkup(wikitext string) bool {
	return strings.Contains(wikitext, "<poem")
}

// titleFromHref converts an internal wiki href to a page title.
// Returns "" for hrefs it cannot interpret.
func titleFromHref(href string) string {
	const wikiPrefix = "/wiki/"
	if !strings.HasPrefix(href, wikiPrefix) {
		return ""
	}
	raw := href[len(wikiPrefix):]
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	title, err := url.PathUnescape(raw)
	if err != nil {
		title = raw
	}
	return strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
}
