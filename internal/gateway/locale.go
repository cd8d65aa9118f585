package gateway

// Localized namespace prefixes for the Wikisource languages the crawl
// targets. Unknown languages fall back to the English canonical form,
// which every MediaWiki instance accepts as an alias.

var categoryPrefixes = map[string]string{
	"fr": "Catégorie",
	"en": "Category",
	"de": "Kategorie",
	"es": "Categoría",
	"it": "Categoria",
	"pt": "Categoria",
	"ru": "Категория",
	"pl": "Kategoria",
}

var authorPrefixes = map[string]string{
	"fr": "Auteur",
	"en": "Author",
	"de": "Autor",
	"es": "Autor",
	"it": "Autore",
	"pt": "Autor",
	"ru": "Автор",
	"pl": "Autor",
}

// CategoryPrefix returns the localized "Category" namespace prefix.
func CategoryPrefix(lang string) string {
	if p, ok := categoryPrefixes[lang]; ok {
		return p
	}
	return "Category"
}

// AuthorPrefix returns the localized "Author" namespace prefix.
func AuthorPrefix(lang string) string {
	if p, ok := authorPrefixes[lang]; ok {
		return p
	}
	return "Author"
}
