package hierarchy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
)

// Lines longer than this are body text, not subsection headings.
const maxVocabularyLine = 60

// chapters builds the level-1 sections, infers chapters that deeper
// numbering references but no entry names, and tiles their page ranges.
func (st *build) chapters(entries []anchor) {
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Level != 1 {
			continue
		}
		num := st.chapterNumber(e.TOCEntry)
		if num > 0 {
			if _, dup := st.chapterByNum[num]; dup {
				continue
			}
		} else {
			key := fmt.Sprintf("%s@%d", st.b.scorer.MatchKey(e.Heading), e.Page)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		idx := st.a.add(draft{
			parent:    -1,
			level:     1,
			title:     e.Heading,
			numbering: e.Numbering,
			chapter:   num,
			page:      e.Page,
			seq:       e.ElementSeq,
			sub:       e.ord,
		})
		if num > 0 {
			st.chapterByNum[num] = idx
		}
	}

	missing := make(map[int]int)
	for _, e := range entries {
		if e.Level < 2 || e.Numbering == "" {
			continue
		}
		num := heading.ChapterOf(e.Numbering)
		if num == 0 {
			continue
		}
		if _, ok := st.chapterByNum[num]; ok {
			continue
		}
		if p, ok := missing[num]; !ok || e.Page < p {
			missing[num] = e.Page
		}
	}
	nums := make([]int, 0, len(missing))
	for n := range missing {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, num := range nums {
		d := draft{
			parent:    -1,
			level:     1,
			numbering: strconv.Itoa(num),
			chapter:   num,
			page:      missing[num],
			seq:       -1,
			inferred:  true,
		}
		if title, ok := st.unanchored[d.numbering]; ok {
			d.title = title
		} else {
			d.label = fmt.Sprintf("Chapter %d (Inferred)", num)
		}
		st.chapterByNum[num] = st.a.add(d)
		st.report.InferredChapters = append(st.report.InferredChapters, d.heading())
		st.b.log.Warn("inferred missing chapter", "chapter", num, "page_start", d.page)
	}

	if len(st.a.children[-1]) == 0 {
		first := 0
		for _, e := range entries {
			if first == 0 || e.Page < first {
				first = e.Page
			}
		}
		if first > 0 {
			st.a.add(draft{parent: -1, level: 1, label: rootHeading, page: first, seq: -1, inferred: true})
			st.report.InferredChapters = append(st.report.InferredChapters, rootHeading)
			st.b.log.Warn("no chapter headings found, using a document root", "page_start", first)
		}
	}

	ids := st.a.sorted(-1)
	st.a.tile(ids, st.lastPage(ids))
}

// lastPage is where the final chapter ends: the document end when known,
// otherwise a fixed span past its start.
func (st *build) lastPage(ids []int) int {
	if len(ids) == 0 {
		return 0
	}
	start := st.a.nodes[ids[len(ids)-1]].page
	if st.pageCount > 0 {
		return max(st.pageCount, start)
	}
	return start + st.b.fallbackSpan
}

func (st *build) chapterNumber(e doctree.TOCEntry) int {
	if e.Numbering != "" {
		return heading.ChapterOf(e.Numbering)
	}
	return st.b.scorer.Classify(e.Heading, 0, false).ChapterNumber
}

// topics builds the level-2 sections. Unnumbered candidates in chapters
// that already have numbered topics are returned for the subsection pass.
func (st *build) topics(entries []anchor) []anchor {
	numbered := make(map[int]bool)
	var unnumbered []anchor
	for _, e := range entries {
		if e.Level != 2 {
			continue
		}
		if e.Numbering == "" {
			unnumbered = append(unnumbered, e)
			continue
		}
		if _, dup := st.topicByNum[e.Numbering]; dup {
			continue
		}
		ch, ok := st.chapterByNum[heading.ChapterOf(e.Numbering)]
		if !ok {
			st.exclude("no chapter for numbering", e.TOCEntry)
			continue
		}
		if !st.a.nodes[ch].contains(e.Page) {
			st.exclude("page outside chapter", e.TOCEntry)
			continue
		}
		st.topicByNum[e.Numbering] = st.a.add(draft{
			parent:    ch,
			level:     2,
			title:     e.Heading,
			numbering: e.Numbering,
			chapter:   heading.ChapterOf(e.Numbering),
			page:      e.Page,
			seq:       e.ElementSeq,
			sub:       e.ord,
			key:       st.subKey(e.Heading),
		})
		numbered[ch] = true
	}

	// Deeper numbering whose topic never appeared gets an inferred topic.
	for _, e := range entries {
		if e.Level < 3 || e.Numbering == "" || strings.Count(e.Numbering, ".") < 2 {
			continue
		}
		prefix := heading.Prefix(e.Numbering, 2)
		if _, ok := st.topicByNum[prefix]; ok {
			continue
		}
		ch, ok := st.chapterByNum[heading.ChapterOf(e.Numbering)]
		if !ok || !st.a.nodes[ch].contains(e.Page) {
			continue
		}
		d := draft{
			parent:    ch,
			level:     2,
			numbering: prefix,
			chapter:   heading.ChapterOf(prefix),
			page:      e.Page,
			seq:       e.ElementSeq,
			sub:       e.ord,
			inferred:  true,
		}
		if title, ok := st.unanchored[prefix]; ok {
			d.title = title
		} else {
			d.label = fmt.Sprintf("Topic %s (Inferred)", prefix)
		}
		st.topicByNum[prefix] = st.a.add(d)
		numbered[ch] = true
		st.report.InferredTopics = append(st.report.InferredTopics, d.heading())
		st.b.log.Warn("inferred missing topic", "numbering", prefix, "page_start", d.page)
	}

	var demoted []anchor
	for _, e := range unnumbered {
		ch := st.containing(-1, e.Page)
		if ch < 0 {
			st.exclude("no chapter contains page", e.TOCEntry)
			continue
		}
		if numbered[ch] {
			demoted = append(demoted, e)
			continue
		}
		key := st.subKey(e.Heading)
		if st.hasChild(ch, key) {
			continue
		}
		st.a.add(draft{
			parent: ch,
			level:  2,
			title:  e.Heading,
			page:   e.Page,
			seq:    e.ElementSeq,
			sub:    e.ord,
			key:    key,
		})
	}

	for _, ch := range st.a.sorted(-1) {
		st.a.tile(st.a.sorted(ch), st.a.nodes[ch].end)
	}
	return demoted
}

// subsections attaches numbered entries by their two-component prefix and
// everything else by page containment.
func (st *build) subsections(entries []anchor, demoted []anchor) {
	var loose []anchor
	for _, e := range entries {
		if e.Level < 3 {
			continue
		}
		if e.Numbering == "" {
			loose = append(loose, e)
			continue
		}
		if _, dup := st.subByNum[e.Numbering]; dup {
			continue
		}
		topic, ok := st.topicByNum[heading.Prefix(e.Numbering, 2)]
		if ok && !st.a.nodes[topic].contains(e.Page) {
			st.exclude("page outside topic", e.TOCEntry)
			continue
		}
		if !ok {
			if topic = st.containingTopic(e.Page); topic < 0 {
				st.exclude("no topic contains page", e.TOCEntry)
				continue
			}
		}

		parent := topic
		for k := strings.Count(e.Numbering, "."); k >= 3; k-- {
			if idx, ok := st.subByNum[heading.Prefix(e.Numbering, k)]; ok && st.topicOf(idx) == topic {
				parent = idx
				break
			}
		}
		st.subByNum[e.Numbering] = st.a.add(draft{
			parent:    parent,
			level:     st.a.nodes[parent].level + 1,
			title:     e.Heading,
			numbering: e.Numbering,
			page:      e.Page,
			seq:       e.ElementSeq,
			sub:       e.ord,
			key:       st.subKey(e.Heading),
		})
	}

	for _, e := range append(loose, demoted...) {
		topic := st.containingTopic(e.Page)
		if topic < 0 {
			st.exclude("no topic contains page", e.TOCEntry)
			continue
		}
		key := st.subKey(e.Heading)
		if st.hasChild(topic, key) {
			continue
		}
		st.a.add(draft{
			parent:     topic,
			level:      st.a.nodes[topic].level + 1,
			title:      e.Heading,
			page:       e.Page,
			seq:        e.ElementSeq,
			sub:        e.ord,
			vocabulary: e.Kind == string(heading.KindVocabulary),
			key:        key,
		})
	}
}

// vocabularyPass adds standard subsections found in each topic's content
// that no entry captured.
func (st *build) vocabularyPass() {
	if len(st.topicIDs()) == 0 {
		return
	}
	for _, el := range st.elements {
		if el.IsRunning() || el.Page <= 0 || !vocabularyCarrier(el.Type) {
			continue
		}
		topic := st.containingTopic(el.Page)
		if topic < 0 {
			continue
		}
		for _, line := range strings.Split(el.Text, "\n") {
			line = heading.NormalizeHeading(line)
			if line == "" || len(line) > maxVocabularyLine {
				continue
			}
			name, ok := st.b.scorer.MatchVocabulary(line)
			if !ok || st.hasChild(topic, name) {
				continue
			}
			_, title, _ := heading.ParseNumbering(line)
			st.a.add(draft{
				parent:     topic,
				level:      st.a.nodes[topic].level + 1,
				title:      strings.TrimRight(title, ":. "),
				page:       el.Page,
				seq:        el.Seq,
				vocabulary: true,
				key:        name,
			})
			st.report.VocabularyAdded++
		}
	}
}

func vocabularyCarrier(elementType string) bool {
	switch elementType {
	case doctree.TypeTable, doctree.TypePicture, doctree.TypeFigure, doctree.TypeCaption, doctree.TypeDocumentIndex:
		return false
	}
	return true
}

// tileBelow assigns contiguous ranges to every descendant of parent.
func (st *build) tileBelow(parent int) {
	ids := st.a.sorted(parent)
	st.a.tile(ids, st.a.nodes[parent].end)
	for _, id := range ids {
		st.tileBelow(id)
	}
}

// containing returns the last child of parent whose range holds page, or -1.
func (st *build) containing(parent, page int) int {
	found := -1
	for _, id := range st.a.sorted(parent) {
		if st.a.nodes[id].contains(page) {
			found = id
		}
	}
	return found
}

func (st *build) containingTopic(page int) int {
	ch := st.containing(-1, page)
	if ch < 0 {
		return -1
	}
	return st.containing(ch, page)
}

func (st *build) topicIDs() []int {
	var ids []int
	for _, ch := range st.a.sorted(-1) {
		ids = append(ids, st.a.sorted(ch)...)
	}
	return ids
}

func (st *build) topicOf(idx int) int {
	for idx >= 0 && st.a.nodes[idx].level > 2 {
		idx = st.a.nodes[idx].parent
	}
	return idx
}

// subKey identifies a subsection under its topic: the vocabulary name when
// the heading is a standard subsection, the folded title otherwise.
func (st *build) subKey(title string) string {
	if name, ok := st.b.scorer.MatchVocabulary(title); ok {
		return name
	}
	_, t, _ := heading.ParseNumbering(title)
	return st.b.scorer.MatchKey(t)
}

func (st *build) hasChild(parent int, key string) bool {
	for _, id := range st.a.children[parent] {
		if st.a.nodes[id].key == key {
			return true
		}
	}
	return false
}
