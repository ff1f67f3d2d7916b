// Package parser turns uploaded documents into ordered, typed content
// elements with page provenance.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// Parser converts raw document bytes into elements in document order.
type Parser interface {
	Parse(r io.Reader, filename string) ([]doctree.Element, error)
}

// Options tune parser behavior.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".json":     true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// elements accumulates parser output with sequential Seq values.
type elements struct {
	list []doctree.Element
}

func (e *elements) add(el doctree.Element) {
	el.Text = strings.TrimSpace(el.Text)
	el.Markdown = strings.TrimSpace(el.Markdown)
	if el.Text == "" && el.Markdown == "" && el.Type != doctree.TypePicture && el.Type != doctree.TypeFigure {
		return
	}
	el.Seq = len(e.list)
	e.list = append(e.list, el)
}

// paginateAtHeadings gives flow formats without physical pages a virtual
// page per heading, so page ranges separate sections the way printed
// pages do.
func paginateAtHeadings(list []doctree.Element) []doctree.Element {
	page := 1
	for i := range list {
		if list[i].IsHeading() && i > 0 {
			page++
		}
		list[i].Page = page
	}
	return list
}

// markdownTable renders rows as a pipe table with the first row as header.
func markdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	var b strings.Builder
	for i, r := range rows {
		cells := make([]string, width)
		for j := range cells {
			if j < len(r) {
				cells[j] = strings.ReplaceAll(strings.Join(strings.Fields(r[j]), " "), "|", `\|`)
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		if i == 0 {
			b.WriteString("|" + strings.Repeat("---|", width) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// plainTable renders rows as tab-separated text for the Text field.
func plainTable(rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, strings.Join(r, "\t"))
	}
	return strings.Join(lines, "\n")
}
