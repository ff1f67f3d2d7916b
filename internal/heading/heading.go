// Package heading classifies text lines as heading candidates and infers
// their depth from numbering, casing and a small structural vocabulary.
package heading

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Kind names the strongest structural signal found on a line.
type Kind string

const (
	KindUnknown     Kind = "unknown"
	KindNumbered    Kind = "numbered"
	KindChapter     Kind = "chapter"
	KindFrontMatter Kind = "front_matter"
	KindEndMatter   Kind = "end_matter"
	KindVocabulary  Kind = "vocabulary"
	KindNative      Kind = "native"
)

// Confidence buckets a score for diagnostics.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Signal weights. The sum is capped at MaxScore.
const (
	weightNumbering  = 40
	weightNative     = 30
	weightVocabulary = 20
	weightChapter    = 20
	weightTOC        = 10

	MaxScore = 100
)

// DefaultMaxDepth caps numbering-derived depth.
const DefaultMaxDepth = 4

// StandardSubsections is the built-in vocabulary of recurring clinical
// subsection names.
var StandardSubsections = []string{
	"definition",
	"causes",
	"risk factors",
	"clinical features",
	"complications",
	"differential diagnosis",
	"investigations",
	"management",
	"prevention",
	"treatment",
	"diagnosis",
	"symptoms",
	"prognosis",
	"follow-up",
}

var frontMatter = []string{
	"table of contents",
	"contents",
	"foreword",
	"preface",
	"acronyms",
	"abbreviations",
}

var endMatter = []string{
	"annex",
	"appendix",
	"appendices",
	"references",
	"reference",
	"bibliography",
	"glossary",
	"index",
	"tool kit",
	"toolkit",
	"acknowledgements",
	"acknowledgments",
	"about the author",
}

var (
	numberingRe   = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)\.?\s+(.+)$`)
	numberPrefix  = regexp.MustCompile(`^\d+(?:\.\d+)*\.?\s*`)
	chapterWordRe = regexp.MustCompile(`(?i)^(?:chapter|section|part)\s+(\d+)\b`)
	romanRe       = regexp.MustCompile(`^[IVXLCDM]+[.:)]\s+\S`)
	spaceRe       = regexp.MustCompile(`\s+`)
	quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// Candidate is the classification of one line.
type Candidate struct {
	Text          string
	Numbering     string
	Title         string // Text without its numbering prefix
	Depth         int    // 0 when the line carries no absolute depth signal
	Kind          Kind
	Vocabulary    string // Matched standard subsection name
	ChapterNumber int    // From numbering or an explicit "Chapter N" prefix
	Chapter       bool
	Score         int
	Confidence    Confidence
}

// Scorer classifies heading lines. The zero value is not usable; call New.
type Scorer struct {
	maxDepth   int
	vocabulary map[string]string
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithMaxDepth caps numbering-derived depth.
func WithMaxDepth(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithVocabulary adds subsection names to the built-in vocabulary.
func WithVocabulary(names ...string) Option {
	return func(s *Scorer) {
		for _, n := range names {
			if key := s.key(n); key != "" {
				s.vocabulary[key] = n
			}
		}
	}
}

// New returns a Scorer with the standard vocabulary.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		maxDepth:   DefaultMaxDepth,
		vocabulary: make(map[string]string),
	}
	for _, name := range StandardSubsections {
		s.vocabulary[s.key(name)] = name
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxDepth returns the configured depth cap.
func (s *Scorer) MaxDepth() int { return s.maxDepth }

// ParseNumbering splits a leading dotted numeric prefix from its title.
func ParseNumbering(text string) (numbering, title string, ok bool) {
	m := numberingRe.FindStringSubmatch(text)
	if m == nil {
		return "", strings.TrimSpace(text), false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// Depth returns the depth implied by numbering, capped at the scorer's maximum.
func (s *Scorer) Depth(numbering string) int {
	if numbering == "" {
		return 0
	}
	d := strings.Count(numbering, ".") + 1
	if d > s.maxDepth {
		d = s.maxDepth
	}
	return d
}

// ChapterOf returns the first component of a numbering, or 0.
func ChapterOf(numbering string) int {
	head, _, _ := strings.Cut(numbering, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// Prefix returns the first n components of a numbering.
func Prefix(numbering string, n int) string {
	parts := strings.Split(numbering, ".")
	if len(parts) <= n {
		return numbering
	}
	return strings.Join(parts[:n], ".")
}

// MatchVocabulary reports whether text names a standard subsection once
// numbering and trailing punctuation are removed.
func (s *Scorer) MatchVocabulary(text string) (string, bool) {
	name, ok := s.vocabulary[s.key(text)]
	return name, ok
}

func (s *Scorer) key(text string) string {
	t := NormalizeHeading(text)
	t = numberPrefix.ReplaceAllString(t, "")
	t = strings.TrimRight(t, ":. ")
	return fold(t)
}

// IsFrontMatter reports whether the title opens with front-matter vocabulary.
func (s *Scorer) IsFrontMatter(title string) bool {
	return s.leadingMatch(title, frontMatter)
}

// IsEndMatter reports whether the title opens with end-matter vocabulary.
func (s *Scorer) IsEndMatter(title string) bool {
	return s.leadingMatch(title, endMatter)
}

func (s *Scorer) leadingMatch(title string, terms []string) bool {
	t := s.key(title)
	for _, term := range terms {
		if t == term {
			return true
		}
		if strings.HasPrefix(t, term) {
			r := []rune(t[len(term):])
			if len(r) > 0 && !unicode.IsLetter(r[0]) {
				return true
			}
		}
	}
	return false
}

// chapterPattern reports an explicit chapter prefix, a long all-caps line
// or a Roman numeral prefix. The returned number is 0 when none is given.
func chapterPattern(text string) (bool, int) {
	if m := chapterWordRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return true, n
	}
	if romanRe.MatchString(text) {
		return true, 0
	}
	if isAllCaps(text) && len([]rune(text)) > 15 {
		return true, 0
	}
	return false, 0
}

func isAllCaps(text string) bool {
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters > 0
}

// Classify scores a line. nativeDepth is the upstream layout hint (0 for
// none); inTOC marks lines taken from a table of contents.
func (s *Scorer) Classify(text string, nativeDepth int, inTOC bool) Candidate {
	text = NormalizeHeading(text)
	c := Candidate{Text: text, Kind: KindUnknown}

	numbering, title, numbered := ParseNumbering(text)
	c.Title = title
	if numbered {
		c.Numbering = numbering
		c.ChapterNumber = ChapterOf(numbering)
	}

	vocab, isVocab := s.MatchVocabulary(text)
	if isVocab {
		c.Vocabulary = vocab
	}
	isChapter, chapterNum := chapterPattern(title)
	c.Chapter = isChapter
	if c.ChapterNumber == 0 {
		c.ChapterNumber = chapterNum
	}

	switch {
	case s.IsFrontMatter(title):
		c.Kind, c.Depth = KindFrontMatter, 1
	case s.IsEndMatter(title):
		c.Kind, c.Depth = KindEndMatter, 1
	case numbered:
		c.Kind, c.Depth = KindNumbered, s.Depth(numbering)
	case isChapter:
		c.Kind, c.Depth = KindChapter, 1
	case isVocab:
		c.Kind = KindVocabulary
	case nativeDepth > 0:
		c.Kind, c.Depth = KindNative, min(nativeDepth, s.maxDepth)
	}

	c.Score = score(numbered, nativeDepth > 0, isVocab, isChapter, inTOC)
	c.Confidence = ConfidenceFor(c.Score)
	return c
}

func score(numbered, native, vocab, chapter, inTOC bool) int {
	total := 0
	if numbered {
		total += weightNumbering
	}
	if native {
		total += weightNative
	}
	if vocab {
		total += weightVocabulary
	}
	if chapter {
		total += weightChapter
	}
	if inTOC {
		total += weightTOC
	}
	return min(total, MaxScore)
}

// ConfidenceFor buckets a score.
func ConfidenceFor(score int) Confidence {
	switch {
	case score >= 70:
		return ConfidenceHigh
	case score >= 40:
		return ConfidenceMedium
	case score > 0:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// NormalizeHeading collapses whitespace and straightens curly quotes.
func NormalizeHeading(text string) string {
	text = quoteReplacer.Replace(text)
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// MatchKey folds a heading for equality comparisons across sources.
func (s *Scorer) MatchKey(text string) string {
	return fold(NormalizeHeading(text))
}

// fold builds a fresh Caser per call; Casers are not safe for concurrent use.
func fold(text string) string {
	return cases.Fold().String(text)
}
