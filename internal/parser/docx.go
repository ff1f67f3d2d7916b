package parser

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// DOCXParser handles .docx files. Heading styles give the native depth,
// numbered paragraphs become list items and tables are rendered as pipe
// tables.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "guideseg-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var out elements
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			out.add(paragraphElement(it))
		case *docx.Table:
			rows := docxTableRows(it)
			out.add(doctree.Element{Type: doctree.TypeTable, Text: plainTable(rows), Markdown: markdownTable(rows)})
		}
	}
	return paginateAtHeadings(out.list), nil
}

func paragraphElement(para *docx.Paragraph) doctree.Element {
	text := docxParagraphText(para)
	style := docxStyle(para)
	switch {
	case strings.EqualFold(style, "Title"):
		return doctree.Element{Type: doctree.TypeTitle, Text: text, NativeDepth: 1}
	case strings.EqualFold(style, "Caption"):
		return doctree.Element{Type: doctree.TypeCaption, Text: text}
	case strings.HasPrefix(strings.ToLower(style), "toc"):
		return doctree.Element{Type: doctree.TypeDocumentIndex, Text: text}
	}
	if level := docxHeadingLevel(style); level > 0 {
		return doctree.Element{Type: doctree.TypeSectionHeader, Text: text, NativeDepth: level}
	}
	if para.Properties != nil && para.Properties.NumProperties != nil {
		return doctree.Element{Type: doctree.TypeListItem, Text: text, Markdown: "- " + text}
	}
	return doctree.Element{Type: doctree.TypeText, Text: text}
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// docxHeadingLevel reads "Heading1" and "heading 1" style names.
func docxHeadingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if !strings.HasPrefix(s, "heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
	if err != nil || n < 1 || n > 9 {
		return 0
	}
	return n
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func docxTableRows(t *docx.Table) [][]string {
	var rows [][]string
	for _, row := range t.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if text := docxParagraphText(p); text != "" {
					parts = append(parts, text)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		rows = append(rows, cells)
	}
	return rows
}
