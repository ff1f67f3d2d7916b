// Package hierarchy reconstructs the chapter > topic > subsection tree of a
// document from table-of-contents entries and content elements.
package hierarchy

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
)

// ErrNoSections is returned when no chapter or topic can be identified.
var ErrNoSections = errors.New("no sections identified")

// PathSeparator joins headings in a section's path.
const PathSeparator = " > "

const (
	defaultFallbackSpan = 20
	defaultMaxSpan      = 200
	rootHeading         = "Document (Inferred)"
)

// Report collects what the builder recovered from or dropped.
type Report struct {
	Chapters         int      `json:"chapters"`
	Topics           int      `json:"topics"`
	Subsections      int      `json:"subsections"`
	VocabularyAdded  int      `json:"vocabulary_added"`
	InferredChapters []string `json:"inferred_chapters,omitempty"`
	InferredTopics   []string `json:"inferred_topics,omitempty"`
	Excluded         []string `json:"excluded,omitempty"`
	Issues           []string `json:"issues,omitempty"`
}

// Builder builds section trees. It holds no per-document state.
type Builder struct {
	scorer       *heading.Scorer
	log          *slog.Logger
	fallbackSpan int
	maxSpan      int
}

// Option configures a Builder.
type Option func(*Builder)

// WithFallbackSpan sets how far the last chapter extends when the page
// count is unknown.
func WithFallbackSpan(pages int) Option {
	return func(b *Builder) {
		if pages > 0 {
			b.fallbackSpan = pages
		}
	}
}

// WithMaxSpan sets the page span above which non-chapter sections are
// reported as implausible.
func WithMaxSpan(pages int) Option {
	return func(b *Builder) {
		if pages > 0 {
			b.maxSpan = pages
		}
	}
}

// New returns a Builder.
func New(scorer *heading.Scorer, log *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		scorer:       scorer,
		log:          log,
		fallbackSpan: defaultFallbackSpan,
		maxSpan:      defaultMaxSpan,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// draft is a section under construction. Parents are arena indices.
type draft struct {
	parent     int
	level      int
	title      string
	numbering  string
	chapter    int
	page       int
	end        int
	seq        int
	sub        int
	inferred   bool
	vocabulary bool
	key        string
	label      string // Overrides numbering + title for inferred sections
}

func (d draft) heading() string {
	if d.label != "" {
		return d.label
	}
	if d.numbering == "" {
		return d.title
	}
	return d.numbering + " " + d.title
}

func (d draft) contains(page int) bool {
	return page >= d.page && page <= d.end
}

// arena owns every draft; children are tracked by parent index (-1 for roots).
type arena struct {
	nodes    []draft
	children map[int][]int
}

func newArena() *arena {
	return &arena{children: make(map[int][]int)}
}

func (a *arena) add(d draft) int {
	a.nodes = append(a.nodes, d)
	id := len(a.nodes) - 1
	a.children[d.parent] = append(a.children[d.parent], id)
	return id
}

// sorted returns the children of parent ordered by page, then document order.
func (a *arena) sorted(parent int) []int {
	ids := append([]int(nil), a.children[parent]...)
	sort.SliceStable(ids, func(i, j int) bool {
		x, y := a.nodes[ids[i]], a.nodes[ids[j]]
		if x.page != y.page {
			return x.page < y.page
		}
		if x.seq != y.seq {
			return x.seq < y.seq
		}
		return x.sub < y.sub
	})
	return ids
}

// tile gives siblings contiguous ranges: each ends one page before the next
// sibling starts (never before its own start) and the last ends at hi.
func (a *arena) tile(ids []int, hi int) {
	for i, id := range ids {
		n := &a.nodes[id]
		end := hi
		if i+1 < len(ids) {
			end = min(a.nodes[ids[i+1]].page-1, hi)
		}
		n.end = max(end, n.page)
	}
}

// anchor is an entry with a usable page and its position in the entry list.
type anchor struct {
	doctree.TOCEntry
	ord int
}

// build carries one document through the passes.
type build struct {
	b         *Builder
	a         *arena
	report    *Report
	elements  []doctree.Element
	pageCount int

	chapterByNum map[int]int
	topicByNum   map[string]int
	subByNum     map[string]int
	unanchored   map[string]string // numbering -> title for entries without a page
}

// Build returns the section hierarchy for one document.
func (b *Builder) Build(entries []doctree.TOCEntry, elements []doctree.Element, pageCount int) (*doctree.Hierarchy, Report, error) {
	report := Report{}
	if pageCount <= 0 {
		pageCount = doctree.PageCount(elements)
	}
	st := &build{
		b:            b,
		a:            newArena(),
		report:       &report,
		elements:     elements,
		pageCount:    pageCount,
		chapterByNum: make(map[int]int),
		topicByNum:   make(map[string]int),
		subByNum:     make(map[string]int),
		unanchored:   make(map[string]string),
	}

	resolved := ResolveLevels(entries)
	var anchored []anchor
	for i, e := range resolved {
		if e.Page <= 0 {
			if e.Numbering != "" {
				st.unanchored[e.Numbering] = e.Heading
			}
			continue
		}
		anchored = append(anchored, anchor{TOCEntry: e, ord: i})
	}

	st.chapters(anchored)
	demoted := st.topics(anchored)
	st.subsections(anchored, demoted)
	st.vocabularyPass()
	for _, t := range st.topicIDs() {
		st.tileBelow(t)
	}

	sections := st.emit()
	if len(sections) == 0 {
		return nil, report, ErrNoSections
	}
	sections = AssignPaths(sections)
	h := doctree.NewHierarchy(sections)

	counts := h.LevelCounts()
	report.Chapters = counts[1]
	report.Topics = counts[2]
	report.Subsections = len(sections) - counts[1] - counts[2]
	report.Issues = b.Validate(h)

	b.log.Info("built hierarchy",
		"chapters", report.Chapters,
		"topics", report.Topics,
		"subsections", report.Subsections,
		"vocabulary_added", report.VocabularyAdded,
		"excluded", len(report.Excluded),
	)
	return h, report, nil
}

// exclude records an entry the builder could not place.
func (st *build) exclude(reason string, e doctree.TOCEntry) {
	msg := fmt.Sprintf("%s: %q (page %d)", reason, displayHeading(e), e.Page)
	st.report.Excluded = append(st.report.Excluded, msg)
	st.b.log.Warn("excluded heading", "reason", reason, "heading", displayHeading(e), "page", e.Page)
}

// emit flattens the arena depth-first into sections with IDs equal to
// their position plus one.
func (st *build) emit() []doctree.Section {
	var out []doctree.Section
	var walk func(parent, parentID int)
	walk = func(parent, parentID int) {
		for _, idx := range st.a.sorted(parent) {
			d := st.a.nodes[idx]
			id := len(out) + 1
			out = append(out, doctree.Section{
				ID:         id,
				ParentID:   parentID,
				Level:      d.level,
				Heading:    d.heading(),
				Numbering:  d.numbering,
				PageStart:  d.page,
				PageEnd:    d.end,
				OrderIndex: len(out),
				Inferred:   d.inferred,
				Vocabulary: d.vocabulary,
			})
			walk(idx, id)
		}
	}
	walk(-1, 0)
	return out
}

func displayHeading(e doctree.TOCEntry) string {
	if e.Numbering == "" {
		return e.Heading
	}
	return e.Numbering + " " + e.Heading
}
