package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark. Headings carry
// their ATX/setext level as the native depth.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	var out elements
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Heading:
				out.add(doctree.Element{
					Type:        doctree.TypeSectionHeader,
					Text:        inlineText(node, src),
					NativeDepth: node.Level,
				})
			case *ast.List:
				for item := node.FirstChild(); item != nil; item = item.NextSibling() {
					t := blockText(item, src)
					out.add(doctree.Element{Type: doctree.TypeListItem, Text: t, Markdown: "- " + t})
				}
			case *east.Table:
				rows := tableRows(node, src)
				out.add(doctree.Element{Type: doctree.TypeTable, Text: plainTable(rows), Markdown: markdownTable(rows)})
			case *ast.Blockquote:
				walk(node)
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				out.add(doctree.Element{Type: doctree.TypeText, Text: rawLines(node, src)})
			case *ast.Paragraph:
				if img := soleImage(node); img != nil {
					out.add(doctree.Element{Type: doctree.TypePicture, Caption: inlineText(img, src)})
					continue
				}
				out.add(doctree.Element{Type: doctree.TypeText, Text: inlineText(node, src), Markdown: rawLines(node, src)})
			default:
				if t := blockText(node, src); t != "" {
					out.add(doctree.Element{Type: doctree.TypeText, Text: t})
				}
			}
		}
	}
	walk(doc)
	return paginateAtHeadings(out.list), nil
}

// inlineText concatenates the text of n's inline descendants.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

// blockText joins the inline text of every block below n.
func blockText(n ast.Node, src []byte) string {
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeInline {
			return inlineText(n, src)
		}
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 && n.Type() == ast.TypeBlock {
		return rawLines(n, src)
	}
	return strings.Join(parts, "\n")
}

func rawLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimSpace(buf.String())
}

func tableRows(t *east.Table, src []byte) [][]string {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		rows = append(rows, cells)
	}
	return rows
}

// soleImage returns the image when a paragraph holds nothing else.
func soleImage(p *ast.Paragraph) *ast.Image {
	if p.ChildCount() != 1 {
		return nil
	}
	img, _ := p.FirstChild().(*ast.Image)
	return img
}
