package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"poemharvest/internal/types"
)

// poemContainers matches the rendered forms of poem markup: the poem
// extension output and the explicit class used by older pages.
const poemContainers = "div.poem, span.poem, poem"

// Structure parses the verse structure out of a rendered page. Every
// poem container contributes its stanzas in document order; blank lines
// separate stanzas, non-blank lines are verses.
//
// Returns ErrNoPoemStructure when the page renders no poem blocks or the
// blocks hold no text.
func Structure(doc *goquery.Document) (types.PoemStructure, error) {
	var s types.PoemStructure

	doc.Find(poemContainers).Each(func(_ int, sel *goquery.Selection) {
		// Nested containers would double-count their text.
		if sel.ParentsFiltered(poemContainers).Length() > 0 {
			return
		}
		s.RawMarkers = append(s.RawMarkers, goquery.NodeName(sel))
		for _, node := range sel.Nodes {
			s.Stanzas = append(s.Stanzas, splitStanzas(renderLines(node))...)
		}
	})

	if len(s.Stanzas) == 0 {
		return types.PoemStructure{}, types.ErrNoPoemStructure
	}
	return s, nil
}

// renderLines flattens a node to plain text, turning <br> and block
// boundaries into newlines. goquery's Text() drops line breaks, which
// are the whole point of poem markup.
func renderLines(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "br":
				b.WriteByte('\n')
				return
			case "style", "script":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "div") {
			b.WriteByte('\n')
		}
	}
	walk(node)
	return b.String()
}

// splitStanzas turns line-oriented text into stanzas: runs of non-blank
// lines separated by one or more blank lines.
func splitStanzas(text string) [][]string {
	var stanzas [][]string
	var current []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(current) > 0 {
				stanzas = append(stanzas, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		stanzas = append(stanzas, current)
	}
	return stanzas
}
