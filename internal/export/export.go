// Package export renders a built hierarchy and its parent chunks as
// Markdown review documents.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// Export kinds.
const (
	KindTree   = "tree"
	KindChunks = "chunks"
)

// PageRange formats a section's pages as "page N" or "pages A-B".
func PageRange(start, end int) string {
	if start == end || end == 0 {
		return fmt.Sprintf("page %d", start)
	}
	return fmt.Sprintf("pages %d-%d", start, end)
}

// Tree writes the section hierarchy with two spaces of indent per level.
func Tree(w io.Writer, title string, sections []doctree.Section) error {
	counts := make(map[int]int)
	for _, s := range sections {
		counts[s.Level]++
	}
	deeper := 0
	for level, n := range counts {
		if level >= 3 {
			deeper += n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Section Hierarchy\n\n", title)
	fmt.Fprintf(&b, "Total Sections: %d\n\n", len(sections))
	b.WriteString("## Statistics\n\n")
	fmt.Fprintf(&b, "- Level 1 (Chapters): %d\n", counts[1])
	fmt.Fprintf(&b, "- Level 2 (Topics): %d\n", counts[2])
	fmt.Fprintf(&b, "- Level 3+ (Subsections): %d\n\n", deeper)
	b.WriteString("## Hierarchy\n\n")

	for _, s := range sections {
		indent := strings.Repeat("  ", max(s.Level-1, 0))
		fmt.Fprintf(&b, "%s%s (%s)\n", indent, s.Heading, PageRange(s.PageStart, s.PageEnd))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Chunks writes every parent chunk with a metadata header. Chunks must be
// ordered by topic then position, as the store returns them.
func Chunks(w io.Writer, docID string, sections []doctree.Section, chunks []doctree.ParentChunk) error {
	paths := make(map[int]string, len(sections))
	for _, s := range sections {
		paths[s.ID] = s.HeadingPath
	}

	var b strings.Builder
	b.WriteString("# Parent Chunks Export\n\n")
	fmt.Fprintf(&b, "**Document ID:** %s\n", docID)
	fmt.Fprintf(&b, "**Total Chunks:** %d\n\n", len(chunks))
	b.WriteString("---\n\n")

	for i, c := range chunks {
		fmt.Fprintf(&b, "## Chunk %d\n\n", i+1)
		fmt.Fprintf(&b, "- **section_id:** %d\n", c.SectionID)
		fmt.Fprintf(&b, "- **heading_path:** %s\n", paths[c.SectionID])
		fmt.Fprintf(&b, "- **token_count:** %d\n", c.TokenCount)
		fmt.Fprintf(&b, "- **pages:** %d-%d\n", c.PageStart, c.PageEnd)
		fmt.Fprintf(&b, "- **order_index:** %d\n", c.OrderIndex)
		b.WriteString("\n### Content\n\n")
		b.WriteString(c.Content)
		b.WriteString("\n\n---\n\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Valid reports whether kind names an export.
func Valid(kind string) bool {
	return kind == KindTree || kind == KindChunks
}
