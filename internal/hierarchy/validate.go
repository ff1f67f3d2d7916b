package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/guideseg/internal/doctree"
)

const maxExamples = 3

// Validate checks a built hierarchy and logs what it finds. Problems never
// stop processing; the returned strings are for reports.
func (b *Builder) Validate(h *doctree.Hierarchy) []string {
	var issues []string

	var missing, inverted, large []doctree.Section
	for _, s := range h.Sections {
		if s.PageStart == 0 || s.PageEnd == 0 {
			missing = append(missing, s)
		}
		if s.PageStart > s.PageEnd {
			inverted = append(inverted, s)
		}
		if s.Level > 1 && s.PageEnd-s.PageStart > b.maxSpan {
			large = append(large, s)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("%d sections missing page numbers", len(missing)))
		b.logExamples("missing pages", missing)
	}
	if len(inverted) > 0 {
		issues = append(issues, fmt.Sprintf("%d sections have page_start > page_end", len(inverted)))
		b.logExamples("inverted range", inverted)
	}
	if len(large) > 0 {
		issues = append(issues, fmt.Sprintf("%d sections span more than %d pages", len(large), b.maxSpan))
		b.logExamples("large range", large)
	}

	var overlaps []doctree.Section
	for _, parent := range append([]doctree.Section{{ID: 0}}, h.Sections...) {
		kids := h.Children(parent.ID)
		for i := 1; i < len(kids); i++ {
			if kids[i].PageStart <= kids[i-1].PageEnd {
				overlaps = append(overlaps, kids[i])
			}
		}
	}
	if len(overlaps) > 0 {
		issues = append(issues, fmt.Sprintf("%d sections overlap their previous sibling", len(overlaps)))
		b.logExamples("overlapping range", overlaps)
	}

	counts := h.LevelCounts()
	if counts[1] == 0 {
		issues = append(issues, "no level 1 (chapter) sections")
	}
	if counts[2] == 0 {
		issues = append(issues, "no level 2 (topic) sections")
	}

	if len(issues) > 0 {
		b.log.Warn("hierarchy validation found issues", "count", len(issues), "issues", issues)
	}
	return issues
}

func (b *Builder) logExamples(kind string, sections []doctree.Section) {
	for _, s := range sections[:min(len(sections), maxExamples)] {
		b.log.Warn(kind,
			"heading", s.Heading,
			"level", s.Level,
			"page_start", s.PageStart,
			"page_end", s.PageEnd,
		)
	}
}

// Summary renders level counts and the page span of a hierarchy.
func Summary(h *doctree.Hierarchy) string {
	counts := h.LevelCounts()
	levels := make([]int, 0, len(counts))
	for l := range counts {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	var b strings.Builder
	fmt.Fprintf(&b, "Total sections: %d\n", len(h.Sections))
	for _, l := range levels {
		label := "Subsections"
		switch l {
		case 1:
			label = "Chapters"
		case 2:
			label = "Topics"
		}
		fmt.Fprintf(&b, "  Level %d (%s): %d\n", l, label, counts[l])
	}

	first, last := 0, 0
	for _, s := range h.Sections {
		if s.PageStart > 0 && (first == 0 || s.PageStart < first) {
			first = s.PageStart
		}
		last = max(last, s.PageEnd)
	}
	if first > 0 {
		fmt.Fprintf(&b, "Page range: %d to %d\n", first, last)
	}
	return b.String()
}
