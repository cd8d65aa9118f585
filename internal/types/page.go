package types

// MediaWiki namespace numbers relevant to the crawl.
const (
	NamespaceMain   = 0
	NamespaceAuthor = 102
)

// PageRef is a minimal reference to a wiki page: its stable numeric
// identity plus the human-readable title. The ID is the system-wide
// deduplication key; titles may change, IDs never do.
type PageRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// PageData is everything the gateway returns for one resolved page:
// metadata, the latest revision's wikitext, and category membership.
type PageData struct {
	ID         int64
	Title      string
	Namespace  int
	URL        string
	RevisionID int64
	Wikitext   string
	Categories []string
	Templates  []string
	Missing    bool
}

// PageType is the semantic role assigned to a page by the classifier.
type PageType int

const (
	TypeOther PageType = iota
	TypePoem
	TypePoeticCollection
	TypeMultiVersionHub
	TypeAuthor
	TypeDisambiguation
	TypeSectionTitle
)

func (t PageType) String() string {
	switch t {
	case TypePoem:
		return "poem"
	case TypePoeticCollection:
		return "poetic_collection"
	case TypeMultiVersionHub:
		return "multi_version_hub"
	case TypeAuthor:
		return "author"
	case TypeDisambiguation:
		return "disambiguation"
	case TypeSectionTitle:
		return "section_title"
	default:
		return "other"
	}
}

// Reason names the heuristic signal that decided a classification.
// It is a closed set so audit logs stay machine-checkable.
type Reason int

const (
	ReasonNoSignal Reason = iota
	ReasonAuthorNamespace
	ReasonNonContentNamespace
	ReasonDisambiguationTemplate
	ReasonMultiVersionCategory
	ReasonCollectionCategory
	ReasonSummaryBlock
	ReasonSummaryBlockWithWikidata
	ReasonEditionsHeading
	ReasonEditionsWithWikidata
	ReasonPoemBlocks
	ReasonLinkList
	ReasonLinkListWithWikidata
)

func (r Reason) String() string {
	switch r {
	case ReasonAuthorNamespace:
		return "author_namespace"
	case ReasonNonContentNamespace:
		return "non_content_namespace"
	case ReasonDisambiguationTemplate:
		return "disambiguation_template"
	case ReasonMultiVersionCategory:
		return "multi_version_category"
	case ReasonCollectionCategory:
		return "collection_category"
	case ReasonSummaryBlock:
		return "summary_block"
	case ReasonSummaryBlockWithWikidata:
		return "summary_block_with_wikidata"
	case ReasonEditionsHeading:
		return "editions_heading"
	case ReasonEditionsWithWikidata:
		return "editions_heading_with_wikidata"
	case ReasonPoemBlocks:
		return "poem_blocks"
	case ReasonLinkList:
		return "link_list_ratio"
	case ReasonLinkListWithWikidata:
		return "link_list_with_wikidata"
	default:
		return "no_signal"
	}
}

// ClassifiedPage is the classifier's verdict for one page.
type ClassifiedPage struct {
	Type   PageType
	Reason Reason
}

// ChildRef is one ordered entry extracted from a collection or hub page:
// either a linked sub-page or a section-title marker interleaved between
// links, preserving document order.
type ChildRef struct {
	Title string
	Type  PageType // TypePoem for links, TypeSectionTitle for markers
}
