package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// HTMLParser handles HTML files. Heading tags carry their level as the
// native depth; page-level header and footer landmarks become running
// elements so the cleaner drops them.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out elements
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				out.add(doctree.Element{Type: doctree.TypeSectionHeader, Text: textContent(n), NativeDepth: level})
				return
			}

			switch n.Data {
			case "script", "style", "nav", "noscript", "template":
				return
			case "header":
				if isLandmark(n) {
					out.add(doctree.Element{Type: doctree.TypePageHeader, Text: textContent(n)})
					return
				}
			case "footer":
				if isLandmark(n) {
					out.add(doctree.Element{Type: doctree.TypePageFooter, Text: textContent(n)})
					return
				}
			case "table":
				rows := htmlTableRows(n)
				out.add(doctree.Element{Type: doctree.TypeTable, Text: plainTable(rows), Markdown: markdownTable(rows)})
				return
			case "figure":
				out.add(doctree.Element{Type: doctree.TypeFigure, Caption: figureCaption(n)})
				return
			case "img":
				out.add(doctree.Element{Type: doctree.TypePicture, Caption: attr(n, "alt")})
				return
			case "li":
				out.add(doctree.Element{Type: doctree.TypeListItem, Text: textContent(n)})
				return
			case "p", "blockquote", "pre", "dd", "dt":
				out.add(doctree.Element{Type: doctree.TypeText, Text: textContent(n)})
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return paginateAtHeadings(out.list), nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// isLandmark reports whether a header or footer belongs to the page rather
// than to an article or section.
func isLandmark(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			switch p.Data {
			case "article", "section", "aside", "main":
				return false
			}
		}
	}
	return true
}

// htmlTableRows reads cell text row by row with goquery.
func htmlTableRows(n *html.Node) [][]string {
	var rows [][]string
	goquery.NewDocumentFromNode(n).Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.Join(strings.Fields(cell.Text()), " "))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows
}

func figureCaption(n *html.Node) string {
	sel := goquery.NewDocumentFromNode(n)
	if caption := strings.TrimSpace(sel.Find("figcaption").First().Text()); caption != "" {
		return strings.Join(strings.Fields(caption), " ")
	}
	alt, _ := sel.Find("img").First().Attr("alt")
	return alt
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// lineBreak marks <br> while source newlines collapse like other spaces.
const lineBreak = '\x00'

// textContent returns the collapsed text of n with <br> kept as newlines.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteByte(lineBreak)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)

	lines := strings.Split(buf.String(), string(lineBreak))
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
