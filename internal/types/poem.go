package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PoemStructure is the parsed shape of one poem: ordered stanzas of
// ordered verse lines, plus the raw opening markers of the source blocks.
type PoemStructure struct {
	Stanzas    [][]string `json:"stanzas"`
	RawMarkers []string   `json:"raw_markers,omitempty"`
}

// NormalizedText flattens the structure: verses joined by "\n",
// stanzas separated by a blank line.
func (s *PoemStructure) NormalizedText() string {
	out := ""
	for i, stanza := range s.Stanzas {
		if i > 0 {
			out += "\n\n"
		}
		for j, verse := range stanza {
			if j > 0 {
				out += "\n"
			}
			out += verse
		}
	}
	return out
}

// PoemMetadata is the bag of optional page-level metadata gathered from
// microdata and wikitext templates.
type PoemMetadata struct {
	Author               string `json:"author,omitempty"`
	PublicationDate      string `json:"publication_date,omitempty"`
	SourceCollectionName string `json:"source_collection_name,omitempty"`
	Publisher            string `json:"publisher,omitempty"`
	Translator           string `json:"translator,omitempty"`
}

// ExtractedPoem is the final output record, written exactly once per page
// identity (insert-or-replace at the sink).
//
// HubPageID is always populated: the real hub's identity when the poem
// was reached through a multi-version hub, otherwise the poem's own page
// ID (standalone poems group with themselves).
type ExtractedPoem struct {
	PageID     int64  `json:"page_id"`
	RevisionID int64  `json:"revision_id"`
	Title      string `json:"title"`
	Language   string `json:"language"`
	URL        string `json:"wikisource_url"`

	CollectionPageID    int64       `json:"collection_page_id,omitempty"`
	CollectionTitle     string      `json:"collection_title,omitempty"`
	SectionTitle        string      `json:"section_title,omitempty"`
	PoemOrder           *int        `json:"poem_order,omitempty"`
	CollectionStructure *Collection `json:"collection_structure,omitempty"`

	HubTitle  string `json:"hub_title,omitempty"`
	HubPageID int64  `json:"hub_page_id"`

	Metadata       PoemMetadata  `json:"metadata"`
	Structure      PoemStructure `json:"structure"`
	NormalizedText string        `json:"normalized_text"`
	ChecksumSHA256 string        `json:"checksum_sha256"`
	ExtractedAt    time.Time     `json:"extraction_timestamp"`
}

// Checksum computes the content checksum used for dedup and integrity.
// Pure function of the raw source text.
func Checksum(rawWikitext string) string {
	sum := sha256.Sum256([]byte(rawWikitext))
	return hex.EncodeToString(sum[:])
}
