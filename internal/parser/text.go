package parser

import (
	"io"
	"strings"
	"unicode"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
)

// Lines longer than this are never treated as headings in plain text.
const maxPlainHeading = 80

// TextParser handles plain text files. Form feeds mark page breaks; files
// without them are paginated at headings.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(string(src))
	if strings.Contains(text, "\f") {
		return pagedTextElements(strings.Split(text, "\f")), nil
	}
	var out elements
	paragraphElements(&out, text, 0)
	return paginateAtHeadings(out.list), nil
}

// pagedTextElements builds elements from one string per physical page and
// marks repeated first and last lines as running headers and footers.
func pagedTextElements(pages []string) []doctree.Element {
	var lines [][]pdfLine
	for _, page := range pages {
		var pl []pdfLine
		for _, l := range strings.Split(page, "\n") {
			pl = append(pl, pdfLine{text: strings.TrimRight(l, " \t")})
		}
		lines = append(lines, pl)
	}
	return linesToElements(lines)
}

// paragraphElements splits text at blank lines. Single-line paragraphs
// that look like headings become section headers.
func paragraphElements(out *elements, text string, page int) {
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		out.add(classifyBlock(para, page))
	}
}

func classifyBlock(para string, page int) doctree.Element {
	el := doctree.Element{Type: doctree.TypeText, Text: para, Page: page}
	switch {
	case !strings.Contains(para, "\n") && looksLikeHeading(para):
		el.Type = doctree.TypeSectionHeader
	case isListLine(para):
		el.Type = doctree.TypeListItem
	}
	return el
}

// looksLikeHeading accepts short numbered lines and short all-caps lines
// that do not end like a sentence.
func looksLikeHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > maxPlainHeading || strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") {
		return false
	}
	if numbering, title, ok := heading.ParseNumbering(line); ok {
		return len(title) > 1 && strings.Count(numbering, ".") < 4 && unicode.IsUpper([]rune(title)[0])
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 4
}

func isListLine(line string) bool {
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"- ", "* ", "• ", "◦ ", "▪ ", "– "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
