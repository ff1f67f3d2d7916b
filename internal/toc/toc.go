// Package toc locates an explicit table of contents in a document's
// elements, or synthesizes one from the parser's heading elements.
package toc

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
)

// Strategy names how the entries were obtained.
type Strategy string

const (
	StrategyExplicit Strategy = "explicit"
	StrategyFallback Strategy = "fallback"
)

// ErrNoEntries is returned when neither strategy yields any entry.
var ErrNoEntries = errors.New("no table of contents entries found")

const (
	defaultScanPages    = 20
	defaultScanElements = 100
	defaultMaxElements  = 200
	defaultMinEntries   = 5

	// Unnumbered synthetic entries land at topic level; the builder decides
	// whether they survive as topics.
	fallbackLevel = 2
	// Unnumbered explicit entries are chapter-level lines.
	explicitLevel = 1
)

var (
	tocHeadingRe = regexp.MustCompile(`(?i)^(?:table\s+of\s+)?contents\b`)
	dottedRe     = regexp.MustCompile(`^(.+?)\s*(?:\.\s*){2,}(\d+)\s*$`)
	wideRe       = regexp.MustCompile(`^(.+?)(?:\s{3,}|\t+)(\d+)\s*$`)
	endMarkerRe  = regexp.MustCompile(`(?i)^(?:introduction|chapter\s+1\b|preface|foreword)`)
)

// Result is the output of Extract.
type Result struct {
	Entries    []doctree.TOCEntry
	Strategy   Strategy
	PageOffset int // Physical page minus printed page, applied to Entries
}

// Extractor finds table-of-contents entries.
type Extractor struct {
	scorer       *heading.Scorer
	log          *slog.Logger
	scanPages    int
	scanElements int
	maxElements  int
	minEntries   int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithScanPages limits the explicit scan to the first n pages.
func WithScanPages(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.scanPages = n
		}
	}
}

// WithMinEntries sets how many entries an explicit table needs.
func WithMinEntries(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minEntries = n
		}
	}
}

// New returns an Extractor.
func New(scorer *heading.Scorer, log *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		scorer:       scorer,
		log:          log,
		scanPages:    defaultScanPages,
		scanElements: defaultScanElements,
		maxElements:  defaultMaxElements,
		minEntries:   defaultMinEntries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract tries the parser's document index, then a "Contents" scan, and
// falls back to heading elements. An explicit table only wins when at least
// minEntries of its entries end up with a page.
func (e *Extractor) Extract(elements []doctree.Element) (Result, error) {
	if entries, end := e.documentIndex(elements); len(entries) >= e.minEntries {
		if res, ok := e.resolve(entries, elements, end, true); ok {
			e.log.Info("found document index", "entries", len(res.Entries))
			return res, nil
		}
	}
	if entries, end := e.explicit(elements); len(entries) >= e.minEntries {
		if res, ok := e.resolve(entries, elements, end, false); ok {
			e.log.Info("found explicit table of contents", "entries", len(res.Entries))
			return res, nil
		}
	}

	entries := e.fallback(elements)
	if len(entries) == 0 {
		return Result{}, ErrNoEntries
	}
	e.log.Info("using heading elements as table of contents", "entries", len(entries))
	return Result{Entries: entries, Strategy: StrategyFallback}, nil
}

// resolve turns printed pages into physical ones. Entries listed without a
// page take the page of the matching body heading; with useElementPage the
// rest take the page of the element that listed them.
func (e *Extractor) resolve(entries []doctree.TOCEntry, elements []doctree.Element, end int, useElementPage bool) (Result, bool) {
	body := elements[end:]
	offset := ResolvePageOffset(e.scorer, entries, body)
	if offset != 0 {
		e.log.Info("applying toc page offset", "offset", offset)
		for i := range entries {
			if entries[i].Page > 0 {
				entries[i].Page += offset
			}
		}
	}

	pages := headingPages(e.scorer, body)
	elementPage := make(map[int]int, end)
	for _, el := range elements[:end] {
		elementPage[el.Seq] = el.Page
	}
	paged, matched := 0, 0
	for i := range entries {
		en := &entries[i]
		if en.Page <= 0 {
			if page, ok := lookupPage(e.scorer, pages, *en); ok {
				en.Page = page
				matched++
			} else if useElementPage {
				en.Page = elementPage[en.ElementSeq]
			}
		}
		if en.Page > 0 {
			paged++
		}
	}
	if matched > 0 {
		e.log.Debug("paged toc entries from body headings", "entries", matched)
	}
	if paged < e.minEntries {
		e.log.Info("explicit table of contents has too few pages, skipping",
			"entries", len(entries), "paged", paged)
		return Result{}, false
	}
	return Result{Entries: entries, Strategy: StrategyExplicit, PageOffset: offset}, true
}

// documentIndex parses every element the parser labeled as a document index.
// The returned index is one past the last such element.
func (e *Extractor) documentIndex(elements []doctree.Element) ([]doctree.TOCEntry, int) {
	var entries []doctree.TOCEntry
	end := 0
	for i, el := range elements {
		if el.Type != doctree.TypeDocumentIndex {
			continue
		}
		entries = append(entries, e.parseLines(el)...)
		end = i + 1
	}
	return entries, end
}

func (e *Extractor) parseLines(el doctree.Element) []doctree.TOCEntry {
	var out []doctree.TOCEntry
	for _, line := range strings.Split(el.Text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}
		if entry, ok := e.ParseLine(line); ok {
			entry.ElementSeq = el.Seq
			out = append(out, entry)
		}
	}
	return out
}

// explicit returns the parsed entries and the index of the first element
// after the contents region.
func (e *Extractor) explicit(elements []doctree.Element) ([]doctree.TOCEntry, int) {
	start := -1
	for i, el := range elements {
		if i >= e.scanElements || el.Page > e.scanPages {
			break
		}
		if tocHeadingRe.MatchString(strings.TrimSpace(el.Text)) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, 0
	}

	var entries []doctree.TOCEntry
	end := start + 1
	limit := min(len(elements), start+1+e.maxElements)
scan:
	for ; end < limit; end++ {
		el := elements[end]
		if el.IsRunning() {
			continue
		}
		var found []doctree.TOCEntry
		paged := false
		for _, line := range strings.Split(el.Text, "\n") {
			line = strings.TrimSpace(line)
			if len(line) < 3 {
				continue
			}
			if entry, ok := e.ParseLine(line); ok {
				entry.ElementSeq = el.Seq
				found = append(found, entry)
				paged = paged || entry.Page > 0
				continue
			}
			if len(entries)+len(found) >= e.minEntries && endMarkerRe.MatchString(line) {
				entries = append(entries, found...)
				break scan
			}
		}
		// A body heading with no page number means the contents are over.
		if el.IsHeading() && !paged && len(entries) >= e.minEntries {
			break
		}
		entries = append(entries, found...)
	}
	return entries, end
}

// ParseLine parses one contents line. Lines with a trailing page number
// are accepted in either shape; lines without one are kept only when
// numbered.
func (e *Extractor) ParseLine(line string) (doctree.TOCEntry, bool) {
	text, page := line, 0
	if m := dottedRe.FindStringSubmatch(line); m != nil {
		text, page = m[1], atoi(m[2])
	} else if m := wideRe.FindStringSubmatch(line); m != nil {
		text, page = m[1], atoi(m[2])
	}
	text = strings.TrimRight(strings.TrimSpace(text), ". ")
	if text == "" {
		return doctree.TOCEntry{}, false
	}

	c := e.scorer.Classify(text, 0, true)
	if page == 0 && c.Numbering == "" {
		return doctree.TOCEntry{}, false
	}
	level := c.Depth
	if level == 0 {
		level = explicitLevel
	}
	return doctree.TOCEntry{
		Heading:   c.Title,
		Numbering: c.Numbering,
		Page:      page,
		Level:     level,
		Kind:      string(c.Kind),
		Source:    string(StrategyExplicit),
	}, true
}

func (e *Extractor) fallback(elements []doctree.Element) []doctree.TOCEntry {
	var entries []doctree.TOCEntry
	for _, el := range elements {
		if !el.IsHeading() {
			continue
		}
		text := heading.NormalizeHeading(el.Text)
		if text == "" {
			continue
		}
		c := e.scorer.Classify(text, el.NativeDepth, false)
		level := c.Depth
		if level == 0 && c.Kind != heading.KindVocabulary {
			level = fallbackLevel
		}
		entries = append(entries, doctree.TOCEntry{
			Heading:    c.Title,
			Numbering:  c.Numbering,
			Page:       el.Page,
			Level:      level,
			Kind:       string(c.Kind),
			Source:     string(StrategyFallback),
			ElementSeq: el.Seq,
		})
	}
	return entries
}

// ResolvePageOffset estimates the difference between physical element pages
// and the printed page numbers of a table of contents by matching entry
// headings against heading elements in the body. The most common offset
// wins when at least two matches agree; otherwise it returns 0.
func ResolvePageOffset(scorer *heading.Scorer, entries []doctree.TOCEntry, body []doctree.Element) int {
	pages := headingPages(scorer, body)

	votes := make(map[int]int)
	for _, entry := range entries {
		if entry.Page == 0 {
			continue
		}
		if page, ok := pages[scorer.MatchKey(entry.Heading)]; ok {
			votes[page-entry.Page]++
		}
	}

	best, bestVotes := 0, 0
	for offset, n := range votes {
		if n > bestVotes || (n == bestVotes && abs(offset) < abs(best)) {
			best, bestVotes = offset, n
		}
	}
	if bestVotes < 2 {
		return 0
	}
	return best
}

// headingPages maps body headings to the page they first appear on, keyed
// by folded title and, for numbered headings, also by numbering plus title.
func headingPages(scorer *heading.Scorer, body []doctree.Element) map[string]int {
	pages := make(map[string]int)
	for _, el := range body {
		if !el.IsHeading() {
			continue
		}
		numbering, title, _ := heading.ParseNumbering(heading.NormalizeHeading(el.Text))
		keys := []string{scorer.MatchKey(title)}
		if numbering != "" {
			keys = append(keys, numbering+" "+scorer.MatchKey(title))
		}
		for _, k := range keys {
			if _, seen := pages[k]; !seen {
				pages[k] = el.Page
			}
		}
	}
	return pages
}

// lookupPage finds an entry's body heading, by numbering first when it has
// one.
func lookupPage(scorer *heading.Scorer, pages map[string]int, entry doctree.TOCEntry) (int, bool) {
	key := scorer.MatchKey(entry.Heading)
	if entry.Numbering != "" {
		if page, ok := pages[entry.Numbering+" "+key]; ok {
			return page, true
		}
	}
	page, ok := pages[key]
	return page, ok
}

// Validate reports structural problems with a set of entries. Problems are
// informational; callers keep using the entries.
func Validate(entries []doctree.TOCEntry) []string {
	var problems []string
	if len(entries) < 3 {
		problems = append(problems, fmt.Sprintf("only %d entries", len(entries)))
	}
	hasTop := false
	for _, e := range entries {
		if e.Level == 1 {
			hasTop = true
			break
		}
	}
	if !hasTop {
		problems = append(problems, "no level 1 entries")
	}

	var pages []int
	for _, e := range entries {
		if e.Page > 0 {
			pages = append(pages, e.Page)
		}
	}
	if len(pages) > 1 && pages[len(pages)-1] < pages[0] {
		problems = append(problems, fmt.Sprintf("last page %d precedes first page %d", pages[len(pages)-1], pages[0]))
	}
	return problems
}

// Summary renders per-level entry counts.
func Summary(entries []doctree.TOCEntry) string {
	counts := make(map[int]int)
	withPage := 0
	for _, e := range entries {
		counts[e.Level]++
		if e.Page > 0 {
			withPage++
		}
	}
	levels := make([]int, 0, len(counts))
	for l := range counts {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	var b strings.Builder
	fmt.Fprintf(&b, "Total entries: %d (%d with pages)\n", len(entries), withPage)
	for _, l := range levels {
		fmt.Fprintf(&b, "  Level %d: %d\n", l, counts[l])
	}
	return b.String()
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
