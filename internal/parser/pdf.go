package parser

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/guideseg/internal/doctree"
)

const (
	rowTolerance     = 3.0  // Points of Y drift within one printed line
	wordGapRatio     = 0.3  // Horizontal gap, as a share of font size, that separates words
	headingSizeRatio = 1.15 // Font size over body size that marks a heading line
	paragraphGap     = 1.6  // Vertical gap, in font sizes, that ends a paragraph
	maxPDFHeading    = 120
	maxNativeDepth   = 4
)

// PDFParser handles PDF files. It reads positioned text with the Go
// library and falls back to pdftotext when enabled.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	// ledongthuc/pdf and pdftotext both want a file on disk.
	tmp, err := os.CreateTemp("", "guideseg-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFLines(tmpPath)
	if (err != nil || lineCount(pages) == 0) && p.FallbackPdftotext {
		text, ferr := extractPdftotext(tmpPath)
		if ferr == nil {
			return pagedTextElements(strings.Split(text, "\f")), nil
		}
		if err == nil {
			err = ferr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return linesToElements(pages), nil
}

// pdfLine is one printed line. size is 0 when the source carries no font
// metrics; gap is the vertical distance from the previous line.
type pdfLine struct {
	text string
	size float64
	gap  float64
}

func lineCount(pages [][]pdfLine) int {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	return n
}

func extractPDFLines(path string) ([][]pdfLine, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([][]pdfLine, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		lines := positionedLines(page)
		if len(lines) == 0 {
			if text, err := page.GetPlainText(nil); err == nil {
				for _, l := range strings.Split(text, "\n") {
					lines = append(lines, pdfLine{text: strings.TrimSpace(l)})
				}
			}
		}
		pages = append(pages, lines)
	}
	return pages, nil
}

// positionedLines groups glyphs into rows by Y and orders rows top-down.
func positionedLines(page pdflib.Page) (lines []pdfLine) {
	defer func() {
		// Malformed font programs make the library panic; treat the page as
		// having no positioned text so the plain-text path can run.
		if recover() != nil {
			lines = nil
		}
	}()

	texts := append([]pdflib.Text(nil), page.Content().Text...)
	if len(texts) == 0 {
		return nil
	}
	rows := groupRows(texts)

	prevY := math.NaN()
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		var b strings.Builder
		size := 0.0
		for i, t := range row {
			size = math.Max(size, t.FontSize)
			if i > 0 {
				prev := row[i-1]
				if t.X-(prev.X+prev.W) > wordGapRatio*math.Max(t.FontSize, 1) &&
					!strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
					b.WriteByte(' ')
				}
			}
			b.WriteString(t.S)
		}
		text := strings.Join(strings.Fields(b.String()), " ")
		if text == "" {
			continue
		}
		gap := 0.0
		if !math.IsNaN(prevY) {
			gap = prevY - row[0].Y
		}
		prevY = row[0].Y
		lines = append(lines, pdfLine{text: text, size: size, gap: gap})
	}
	return lines
}

// groupRows orders glyphs top-down by exact Y, then gathers each run within
// rowTolerance of a row's first glyph into that row. Rows keep their glyphs
// in Y order; callers sort by X.
func groupRows(texts []pdflib.Text) [][]pdflib.Text {
	sort.SliceStable(texts, func(i, j int) bool {
		if texts[i].Y != texts[j].Y {
			return texts[i].Y > texts[j].Y
		}
		return texts[i].X < texts[j].X
	})

	var rows [][]pdflib.Text
	for _, t := range texts {
		if n := len(rows); n > 0 && math.Abs(rows[n-1][0].Y-t.Y) <= rowTolerance {
			rows[n-1] = append(rows[n-1], t)
			continue
		}
		rows = append(rows, []pdflib.Text{t})
	}
	return rows
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

var digitsRe = regexp.MustCompile(`\d+`)

// runningKey ignores page numbers and case when comparing lines across pages.
func runningKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(digitsRe.ReplaceAllString(text, "#")), " "))
}

// runningLines finds keys of lines repeated at the top or bottom of more
// than half the pages.
func runningLines(pages [][]pdfLine) (top, bottom map[string]bool) {
	top, bottom = make(map[string]bool), make(map[string]bool)
	if len(pages) < 3 {
		return top, bottom
	}
	topCount, bottomCount := make(map[string]int), make(map[string]int)
	for _, lines := range pages {
		first, last := edgeLines(lines)
		if first >= 0 {
			topCount[runningKey(lines[first].text)]++
		}
		if last >= 0 && last != first {
			bottomCount[runningKey(lines[last].text)]++
		}
	}
	for k, n := range topCount {
		if k != "" && n*2 > len(pages) {
			top[k] = true
		}
	}
	for k, n := range bottomCount {
		if k != "" && n*2 > len(pages) {
			bottom[k] = true
		}
	}
	return top, bottom
}

func edgeLines(lines []pdfLine) (first, last int) {
	first, last = -1, -1
	for i, l := range lines {
		if strings.TrimSpace(l.text) == "" {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last
}

// bodySize is the median font size of all lines with metrics.
func bodySize(pages [][]pdfLine) float64 {
	var sizes []float64
	for _, lines := range pages {
		for _, l := range lines {
			if l.size > 0 {
				sizes = append(sizes, l.size)
			}
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// headingDepths ranks the distinct heading font sizes, largest first.
func headingDepths(pages [][]pdfLine, body float64) map[float64]int {
	seen := make(map[float64]bool)
	for _, lines := range pages {
		for _, l := range lines {
			if body > 0 && l.size >= body*headingSizeRatio {
				seen[math.Round(l.size)] = true
			}
		}
	}
	sizes := make([]float64, 0, len(seen))
	for s := range seen {
		sizes = append(sizes, s)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))
	depths := make(map[float64]int, len(sizes))
	for i, s := range sizes {
		depths[s] = min(i+1, maxNativeDepth)
	}
	return depths
}

// linesToElements turns per-page lines into elements. Page numbers are the
// 1-based page positions.
func linesToElements(pages [][]pdfLine) []doctree.Element {
	top, bottom := runningLines(pages)
	body := bodySize(pages)
	depths := headingDepths(pages, body)

	var out elements
	for i, lines := range pages {
		pageNum := i + 1
		first, last := edgeLines(lines)

		var para []string
		flush := func() {
			if len(para) == 0 {
				return
			}
			text := strings.Join(para, "\n")
			typ := doctree.TypeText
			if isListLine(para[0]) {
				typ = doctree.TypeListItem
			}
			out.add(doctree.Element{Type: typ, Text: text, Page: pageNum})
			para = nil
		}
		lastHeading := -1

		for j, l := range lines {
			text := strings.TrimSpace(l.text)
			if text == "" {
				flush()
				lastHeading = -1
				continue
			}
			if j == first && top[runningKey(text)] {
				out.add(doctree.Element{Type: doctree.TypePageHeader, Text: text, Page: pageNum})
				continue
			}
			if j == last && bottom[runningKey(text)] {
				flush()
				out.add(doctree.Element{Type: doctree.TypePageFooter, Text: text, Page: pageNum})
				continue
			}

			depth, isHeading := 0, false
			if body > 0 && l.size >= body*headingSizeRatio && len(text) <= maxPDFHeading {
				depth, isHeading = depths[math.Round(l.size)], true
			} else if l.size == 0 && looksLikeHeading(text) {
				isHeading = true
			}

			if isHeading {
				flush()
				// A heading wrapped over two lines continues the previous one.
				if l.size > 0 && lastHeading == j-1 && len(out.list) > 0 {
					prev := &out.list[len(out.list)-1]
					if prev.IsHeading() && prev.NativeDepth == depth && prev.Page == pageNum {
						prev.Text += " " + text
						lastHeading = j
						continue
					}
				}
				out.add(doctree.Element{Type: doctree.TypeSectionHeader, Text: text, Page: pageNum, NativeDepth: depth})
				lastHeading = j
				continue
			}

			if len(para) > 0 && (isListLine(text) || (l.size > 0 && l.gap > paragraphGap*l.size)) {
				flush()
			}
			para = append(para, text)
		}
		flush()
	}
	return out.list
}
