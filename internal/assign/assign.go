// Package assign attributes content elements to sections. A matched section
// heading claims the elements that follow it; elements with no heading in
// effect go to the deepest section whose page range holds them.
package assign

import (
	"log/slog"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
)

// Assignment maps section IDs to element indices in document order.
type Assignment struct {
	BySection map[int][]int
	Orphans   []int // Elements no section contains
	Skipped   int   // Running headers, footers and section headings
}

// Count returns how many elements were attributed to a section.
func (a Assignment) Count() int {
	n := 0
	for _, idx := range a.BySection {
		n += len(idx)
	}
	return n
}

// Assigner attributes elements to sections.
type Assigner struct {
	scorer   *heading.Scorer
	log      *slog.Logger
	pageOnly bool
}

// Option configures an Assigner.
type Option func(*Assigner)

// WithPageOnly ignores heading boundaries and attributes every element by
// page alone. Sections sharing a start page then lose their content to the
// first of them.
func WithPageOnly() Option {
	return func(a *Assigner) { a.pageOnly = true }
}

// New returns an Assigner.
func New(scorer *heading.Scorer, log *slog.Logger, opts ...Option) *Assigner {
	a := &Assigner{scorer: scorer, log: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assign attributes every content element of the document to one section.
func (a *Assigner) Assign(h *doctree.Hierarchy, elements []doctree.Element) Assignment {
	out := Assignment{BySection: make(map[int][]int)}
	headings := a.headingIndex(h)

	current, currentPage := 0, 0
	for i, el := range elements {
		if el.IsRunning() {
			out.Skipped++
			continue
		}
		if el.IsHeading() {
			if id := a.matchHeading(headings, el); id > 0 {
				out.Skipped++
				current, currentPage = id, el.Page
				continue
			}
		}

		id := deepest(h, el.Page)
		if !a.pageOnly && current > 0 && id != current {
			id = a.boundary(h, current, currentPage, id, el.Page)
		}
		if id == 0 {
			out.Orphans = append(out.Orphans, i)
			continue
		}
		out.BySection[id] = append(out.BySection[id], i)
	}

	if len(out.Orphans) > 0 {
		first := elements[out.Orphans[0]]
		a.log.Warn("elements outside every section",
			"count", len(out.Orphans),
			"first_page", first.Page,
			"first_type", first.Type,
		)
	}
	a.log.Debug("assigned elements",
		"sections", len(out.BySection),
		"assigned", out.Count(),
		"skipped", out.Skipped,
		"orphans", len(out.Orphans),
	)
	return out
}

// boundary picks between the section whose heading was seen last and the
// page rule's choice. The heading wins while its range holds the page, unless
// the page rule found one of its descendants starting after the heading's
// page (a subsection whose heading line was never matched).
func (a *Assigner) boundary(h *doctree.Hierarchy, current, currentPage, byPage, page int) int {
	s, ok := h.ByID(current)
	if !ok || !s.Contains(page) {
		return byPage
	}
	if byPage > 0 && isDescendant(h, byPage, current) {
		if d, ok := h.ByID(byPage); ok && d.PageStart > currentPage {
			return byPage
		}
	}
	return current
}

func isDescendant(h *doctree.Hierarchy, id, ancestor int) bool {
	for {
		s, ok := h.ByID(id)
		if !ok || s.ParentID == 0 {
			return false
		}
		if s.ParentID == ancestor {
			return true
		}
		id = s.ParentID
	}
}

type headingRef struct {
	id   int
	page int
}

// headingIndex keys sections by their folded heading, both with and
// without numbering, since parsers differ in whether they keep it.
func (a *Assigner) headingIndex(h *doctree.Hierarchy) map[string][]headingRef {
	idx := make(map[string][]headingRef)
	for _, s := range h.Sections {
		ref := headingRef{id: s.ID, page: s.PageStart}
		keys := []string{a.scorer.MatchKey(s.Heading)}
		if _, title, ok := heading.ParseNumbering(s.Heading); ok {
			keys = append(keys, a.scorer.MatchKey(title))
		}
		for _, k := range keys {
			idx[k] = append(idx[k], ref)
		}
	}
	return idx
}

func (a *Assigner) matchHeading(idx map[string][]headingRef, el doctree.Element) int {
	text := heading.NormalizeHeading(el.Text)
	keys := []string{a.scorer.MatchKey(text)}
	if _, title, ok := heading.ParseNumbering(text); ok {
		keys = append(keys, a.scorer.MatchKey(title))
	}
	for _, k := range keys {
		for _, ref := range idx[k] {
			if d := el.Page - ref.page; d >= -1 && d <= 1 {
				return ref.id
			}
		}
	}
	return 0
}

// deepest returns the highest-level section containing page. Ties go to
// the earliest start, then document order.
func deepest(h *doctree.Hierarchy, page int) int {
	best := -1
	for i, s := range h.Sections {
		if !s.Contains(page) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := h.Sections[best]
		if s.Level > b.Level || (s.Level == b.Level && s.PageStart < b.PageStart) {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return h.Sections[best].ID
}
