package types

// HubContext records the multi-version hub ancestor of a work item, if any.
// All versions submitted from one hub share the hub's identity as group key.
type HubContext struct {
	Title string
	ID    int64
}

// CollectionContext carries the in-progress collection a poem belongs to.
// The Collection pointer is fully built by the worker expanding the
// collection page before any child item is submitted, so children only
// ever observe an immutable value.
type CollectionContext struct {
	Collection   *Collection
	Order        int    // ordinal of this poem within the collection
	SectionTitle string // section the poem falls under, "" at top level
	IsFirst      bool   // only the first child serializes the full structure
}

// WorkItem is one unit of scheduled crawl work. It is immutable after
// submission and consumed exactly once.
type WorkItem struct {
	Page          PageRef
	ParentTitle   string // immediate parent, for lineage in logs
	GroupCategory string // originating author category (top-level group key)
	Hub           *HubContext
	Collection    *CollectionContext
}

// Collection is the ordered structure discovered on a collection page:
// top-level poems interleaved with titled sections.
type Collection struct {
	ID         int64                 `json:"id"`
	Title      string                `json:"title"`
	URL        string                `json:"url"`
	Author     string                `json:"author,omitempty"`
	Components []CollectionComponent `json:"content"`
}

// CollectionComponent is either a Section or a bare top-level PoemInfo.
// Exactly one of the two fields is set.
type CollectionComponent struct {
	Section *Section  `json:"section,omitempty"`
	Poem    *PoemInfo `json:"poem,omitempty"`
}

// Section groups an ordered run of poems under one heading.
type Section struct {
	Title string     `json:"title"`
	Poems []PoemInfo `json:"poems"`
}

// PoemInfo is a resolved poem entry inside a collection.
type PoemInfo struct {
	Title string `json:"title"`
	ID    int64  `json:"id"`
	URL   string `json:"url,omitempty"`
}

// AddPoem appends a poem either to the currently open section or to the
// top level when no section heading has been seen yet.
func (c *Collection) AddPoem(sectionTitle string, p PoemInfo) {
	if sectionTitle == "" {
		c.Components = append(c.Components, CollectionComponent{Poem: &p})
		return
	}
	if n := len(c.Components); n > 0 {
		if s := c.Components[n-1].Section; s != nil && s.Title == sectionTitle {
			s.Poems = append(s.Poems, p)
			return
		}
	}
	c.Components = append(c.Components, CollectionComponent{
		Section: &Section{Title: sectionTitle, Poems: []PoemInfo{p}},
	})
}

// PoemCount returns the number of poems across all components.
func (c *Collection) PoemCount() int {
	n := 0
	for _, comp := range c.Components {
		if comp.Poem != nil {
			n++
		} else if comp.Section != nil {
			n += len(comp.Section.Poems)
		}
	}
	return n
}
