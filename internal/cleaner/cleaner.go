// Package cleaner normalizes element text before packing.
package cleaner

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// Fence markers for tables and the figure placeholder prefix.
const (
	TableOpen   = "[TABLE]"
	TableClose  = "[/TABLE]"
	FigureLabel = "[FIGURE"
)

// Captions at or above this length are treated as body text, not labels.
const maxCaption = 200

var (
	bulletRe        = regexp.MustCompile(`(?m)^([ \t]*)[•◦–—∙●○■□▪▸▹►▻][ \t]*`)
	trailingSpaceRe = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
	newlines        = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Clean returns the packable text of one element. The boolean is false for
// running headers and footers and for elements with no content.
func Clean(el doctree.Element) (string, bool) {
	if el.IsRunning() {
		return "", false
	}
	content := el.Markdown
	if strings.TrimSpace(content) == "" {
		content = el.Text
	}
	if strings.TrimSpace(content) == "" && !isFigure(el.Type) {
		return "", false
	}

	switch {
	case el.Type == doctree.TypeTable:
		return fenceTable(content), true
	case isFigure(el.Type):
		return figure(el, content), true
	default:
		out := CleanText(content)
		return out, out != ""
	}
}

// CleanText applies the text normalizations: NFC, LF line endings, dash
// bullets with their indentation kept, no trailing spaces, at most one
// blank line in a row.
func CleanText(s string) string {
	return strings.TrimSpace(whitespace(bulletRe.ReplaceAllString(norm.NFC.String(newlines.Replace(s)), "${1}- ")))
}

func whitespace(s string) string {
	s = trailingSpaceRe.ReplaceAllString(s, "")
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

func fenceTable(content string) string {
	body := strings.TrimSpace(whitespace(norm.NFC.String(newlines.Replace(content))))
	if strings.HasPrefix(body, TableOpen) && strings.HasSuffix(body, TableClose) {
		return body
	}
	return TableOpen + "\n" + body + "\n" + TableClose
}

func figure(el doctree.Element, content string) string {
	caption := strings.TrimSpace(el.Caption)
	if caption == "" {
		caption = strings.TrimSpace(content)
	}
	if strings.HasPrefix(caption, FigureLabel) && strings.HasSuffix(caption, "]") {
		return caption
	}
	caption = strings.Join(strings.Fields(norm.NFC.String(caption)), " ")
	if caption == "" || len([]rune(caption)) >= maxCaption {
		return FigureLabel + "]"
	}
	return FigureLabel + ": " + caption + "]"
}

func isFigure(elementType string) bool {
	return elementType == doctree.TypeFigure || elementType == doctree.TypePicture
}
