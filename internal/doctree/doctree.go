package doctree

import "sort"

// Element types emitted by the parsers. The vocabulary is open: anything
// not listed here is treated as body content.
const (
	TypeTitle         = "title"
	TypeSectionHeader = "section_header"
	TypeText          = "text"
	TypeListItem      = "list_item"
	TypeTable         = "table"
	TypePicture       = "picture"
	TypeFigure        = "figure"
	TypeCaption       = "caption"
	TypePageHeader    = "page_header"
	TypePageFooter    = "page_footer"
	TypeDocumentIndex = "document_index"
)

// Element is one typed content element with page provenance.
type Element struct {
	Seq         int    `json:"seq"`          // Document order
	Type        string `json:"element_type"` // See Type* constants
	Text        string `json:"text"`
	Markdown    string `json:"markdown,omitempty"` // Pre-rendered marked-up text, preferred when set
	Page        int    `json:"page_number"`
	PageEnd     int    `json:"page_end,omitempty"`     // Last page for multi-page elements
	NativeDepth int    `json:"native_depth,omitempty"` // Layout depth hint (0 = none)
	Caption     string `json:"caption,omitempty"`
}

// IsHeading reports whether the parser tagged the element as a structural heading.
func (e Element) IsHeading() bool {
	return e.Type == TypeTitle || e.Type == TypeSectionHeader
}

// IsRunning reports whether the element is a running page header or footer.
func (e Element) IsRunning() bool {
	return e.Type == TypePageHeader || e.Type == TypePageFooter
}

// LastPage returns the final page the element touches.
func (e Element) LastPage() int {
	if e.PageEnd > e.Page {
		return e.PageEnd
	}
	return e.Page
}

// PageCount returns the highest page any element touches.
func PageCount(elements []Element) int {
	n := 0
	for _, el := range elements {
		if p := el.LastPage(); p > n {
			n = p
		}
	}
	return n
}

// TOCEntry is one line of a (possibly synthetic) table of contents.
type TOCEntry struct {
	Heading    string `json:"heading"`
	Numbering  string `json:"numbering,omitempty"`
	Page       int    `json:"page,omitempty"` // 0 when unresolved
	Level      int    `json:"level"`
	Kind       string `json:"kind,omitempty"`
	Source     string `json:"source"`
	ElementSeq int    `json:"element_seq"`
}

// Section is a node in the reconstructed hierarchy.
type Section struct {
	ID          int    `json:"id"`
	ParentID    int    `json:"parent_id,omitempty"`
	Level       int    `json:"level"`
	Heading     string `json:"heading"`
	HeadingPath string `json:"heading_path"`
	Numbering   string `json:"numbering,omitempty"`
	PageStart   int    `json:"page_start"`
	PageEnd     int    `json:"page_end"`
	OrderIndex  int    `json:"order_index"`
	Inferred    bool   `json:"inferred,omitempty"`
	Vocabulary  bool   `json:"vocabulary,omitempty"`
}

// Contains reports whether page falls inside the section's range.
func (s Section) Contains(page int) bool {
	return page >= s.PageStart && page <= s.PageEnd
}

// Unit is the cleaned content owned directly by one section, ready for packing.
type Unit struct {
	SectionID int
	Text      string
	Tokens    int
}

// ParentChunk is a token-bounded block of topic content.
type ParentChunk struct {
	SectionID  int    `json:"section_id"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
	OrderIndex int    `json:"order_index"`
	PageStart  int    `json:"page_start"` // Topic pages, not the chunk's own
	PageEnd    int    `json:"page_end"`
}

// Hierarchy is an arena of sections in document order. Section IDs are
// arena positions plus one, so zero never names a section.
type Hierarchy struct {
	Sections []Section

	index    map[int]int
	children map[int][]int
}

// NewHierarchy indexes sections that already carry IDs and parent IDs.
func NewHierarchy(sections []Section) *Hierarchy {
	sorted := make([]Section, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })

	h := &Hierarchy{Sections: sorted, index: make(map[int]int), children: make(map[int][]int)}
	for i, s := range sorted {
		h.index[s.ID] = i
		h.children[s.ParentID] = append(h.children[s.ParentID], s.ID)
	}
	return h
}

// ByID returns the section with the given ID.
func (h *Hierarchy) ByID(id int) (Section, bool) {
	i, ok := h.index[id]
	if !ok {
		return Section{}, false
	}
	return h.Sections[i], true
}

// Children returns the direct children of id in document order. Zero
// yields the chapters.
func (h *Hierarchy) Children(id int) []Section {
	var out []Section
	for _, cid := range h.children[id] {
		if s, ok := h.ByID(cid); ok {
			out = append(out, s)
		}
	}
	return out
}

// Descendants returns every section below id in document order.
func (h *Hierarchy) Descendants(id int) []Section {
	var out []Section
	var walk func(int)
	walk = func(pid int) {
		for _, c := range h.Children(pid) {
			out = append(out, c)
			walk(c.ID)
		}
	}
	walk(id)
	return out
}

// Topics returns the level-2 sections in document order.
func (h *Hierarchy) Topics() []Section {
	return h.AtLevel(2)
}

// AtLevel returns the sections at one level in document order.
func (h *Hierarchy) AtLevel(level int) []Section {
	var out []Section
	for _, s := range h.Sections {
		if s.Level == level {
			out = append(out, s)
		}
	}
	return out
}

// LevelCounts returns the number of sections per level.
func (h *Hierarchy) LevelCounts() map[int]int {
	counts := make(map[int]int)
	for _, s := range h.Sections {
		counts[s.Level]++
	}
	return counts
}
