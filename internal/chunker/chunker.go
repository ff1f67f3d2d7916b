// Package chunker packs a topic's content units into token-bounded parent
// chunks.
package chunker

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dgallion1/guideseg/internal/doctree"
)

var (
	// ErrUnsplittable is returned when a single line exceeds HardMax.
	ErrUnsplittable = errors.New("line exceeds hard max tokens")
	// ErrChunkTooLarge is returned when a packed chunk exceeds HardMax.
	ErrChunkTooLarge = errors.New("chunk exceeds hard max tokens")
)

// Config controls chunk sizes in tokens.
type Config struct {
	MinTarget  int // Tail chunks below this may merge with a small predecessor
	SoftTarget int // A chunk closes once it reaches this
	HardMax    int // Never exceeded

	// Child chunk sizes are carried for downstream splitters.
	ChildTarget    int
	ChildTolerance float64
	ChildHardMax   int
}

// DefaultConfig returns the standard parent and child sizes.
func DefaultConfig() Config {
	return Config{
		MinTarget:      1000,
		SoftTarget:     1500,
		HardMax:        2000,
		ChildTarget:    256,
		ChildTolerance: 0.10,
		ChildHardMax:   512,
	}
}

// Validate checks the ordering MinTarget <= SoftTarget <= HardMax.
func (c Config) Validate() error {
	if c.MinTarget <= 0 || c.SoftTarget <= 0 || c.HardMax <= 0 {
		return fmt.Errorf("chunk sizes must be positive: min=%d soft=%d hard=%d", c.MinTarget, c.SoftTarget, c.HardMax)
	}
	if c.MinTarget > c.SoftTarget || c.SoftTarget > c.HardMax {
		return fmt.Errorf("chunk sizes out of order: min=%d soft=%d hard=%d", c.MinTarget, c.SoftTarget, c.HardMax)
	}
	if c.ChildHardMax > 0 && c.ChildTarget > c.ChildHardMax {
		return fmt.Errorf("child target %d exceeds child hard max %d", c.ChildTarget, c.ChildHardMax)
	}
	return nil
}

// Option configures a Packer.
type Option func(*Packer)

// WithConfig replaces the size thresholds. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(p *Packer) {
		if cfg.MinTarget > 0 {
			p.cfg.MinTarget = cfg.MinTarget
		}
		if cfg.SoftTarget > 0 {
			p.cfg.SoftTarget = cfg.SoftTarget
		}
		if cfg.HardMax > 0 {
			p.cfg.HardMax = cfg.HardMax
		}
		if cfg.ChildTarget > 0 {
			p.cfg.ChildTarget = cfg.ChildTarget
		}
		if cfg.ChildTolerance > 0 {
			p.cfg.ChildTolerance = cfg.ChildTolerance
		}
		if cfg.ChildHardMax > 0 {
			p.cfg.ChildHardMax = cfg.ChildHardMax
		}
	}
}

// WithCounter sets the token counter.
func WithCounter(c Counter) Option {
	return func(p *Packer) {
		if c != nil {
			p.counter = c
		}
	}
}

// Packer builds parent chunks. It holds no per-topic state and is safe for
// concurrent use when its Counter is.
type Packer struct {
	cfg     Config
	counter Counter
	log     *slog.Logger
}

// New returns a Packer with the default sizes and the word estimator.
func New(log *slog.Logger, opts ...Option) *Packer {
	p := &Packer{cfg: DefaultConfig(), counter: Estimator, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the active thresholds.
func (p *Packer) Config() Config { return p.cfg }

// Count returns the token count of text.
func (p *Packer) Count(text string) int { return p.counter.Count(text) }

// BuildUnits assembles a topic's units. content maps section IDs to their
// cleaned blocks in document order. Unit 0 holds the topic's own blocks;
// every descendant with content follows with its heading restored as a
// markdown heading line.
func (p *Packer) BuildUnits(h *doctree.Hierarchy, topicID int, content map[int][]string) []doctree.Unit {
	var units []doctree.Unit
	if blocks := content[topicID]; len(blocks) > 0 {
		text := strings.Join(blocks, "\n\n")
		units = append(units, doctree.Unit{SectionID: topicID, Text: text, Tokens: p.Count(text)})
	}
	for _, s := range h.Descendants(topicID) {
		blocks := content[s.ID]
		if len(blocks) == 0 {
			continue
		}
		text := strings.Repeat("#", min(s.Level, 6)) + " " + s.Heading + "\n\n" + strings.Join(blocks, "\n\n")
		units = append(units, doctree.Unit{SectionID: s.ID, Text: text, Tokens: p.Count(text)})
	}
	return units
}

// group is a chunk under construction. tokens is the count of the joined
// parts, not the sum of the parts' counts.
type group struct {
	parts  []string
	tokens int
}

func (g *group) add(text string, tokens int) {
	g.parts = append(g.parts, text)
	g.tokens = tokens
}

// grown counts g's content with text appended after sep.
func (p *Packer) grown(g group, text, sep string) int {
	if len(g.parts) == 0 {
		return p.Count(text)
	}
	return p.Count(strings.Join(g.parts, sep) + sep + text)
}

// Pack packs units into chunks for topic. Chunks inherit the topic's page
// range.
func (p *Packer) Pack(topic doctree.Section, units []doctree.Unit) ([]doctree.ParentChunk, error) {
	if len(units) == 0 {
		return nil, nil
	}

	var split []doctree.Unit
	for _, u := range units {
		u.Tokens = p.Count(u.Text)
		if u.Tokens <= p.cfg.HardMax {
			split = append(split, u)
			continue
		}
		p.log.Warn("splitting large unit",
			"topic", topic.Heading,
			"section_id", u.SectionID,
			"tokens", u.Tokens,
			"hard_max", p.cfg.HardMax,
		)
		parts, err := p.splitUnit(u)
		if err != nil {
			return nil, fmt.Errorf("pack topic %q: %w", topic.Heading, err)
		}
		split = append(split, parts...)
	}

	var closed []group
	var cur group
	for _, u := range split {
		tokens := p.grown(cur, u.Text, "\n\n")
		if tokens > p.cfg.HardMax && len(cur.parts) > 0 {
			closed = append(closed, cur)
			cur = group{}
			tokens = u.Tokens
		}
		cur.add(u.Text, tokens)
		if cur.tokens >= p.cfg.SoftTarget {
			closed = append(closed, cur)
			cur = group{}
		}
	}
	if len(cur.parts) > 0 {
		closed = p.mergeTail(closed, cur)
	}

	chunks := make([]doctree.ParentChunk, 0, len(closed))
	for i, g := range closed {
		if g.tokens > p.cfg.HardMax {
			return nil, fmt.Errorf("pack topic %q chunk %d (%d tokens): %w", topic.Heading, i, g.tokens, ErrChunkTooLarge)
		}
		chunks = append(chunks, doctree.ParentChunk{
			SectionID:  topic.ID,
			Content:    strings.Join(g.parts, "\n\n"),
			TokenCount: g.tokens,
			OrderIndex: i,
			PageStart:  topic.PageStart,
			PageEnd:    topic.PageEnd,
		})
	}
	return chunks, nil
}

// mergeTail appends the final group, folding it into the previous chunk
// when both are under MinTarget and the result fits under HardMax.
func (p *Packer) mergeTail(closed []group, tail group) []group {
	if n := len(closed); n > 0 {
		last := closed[n-1]
		if tail.tokens < p.cfg.MinTarget && last.tokens < p.cfg.MinTarget {
			parts := append(append([]string(nil), last.parts...), tail.parts...)
			merged := p.Count(strings.Join(parts, "\n\n"))
			if merged <= p.cfg.HardMax {
				p.log.Debug("merging small tail chunk", "previous", last.tokens, "tail", tail.tokens)
				closed[n-1] = group{parts: parts, tokens: merged}
				return closed
			}
		}
	}
	return append(closed, tail)
}

var paragraphRe = regexp.MustCompile(`\n\n+`)

// splitUnit breaks an oversized unit at blank-line paragraphs, then at
// lines. A line that alone exceeds HardMax cannot be split.
func (p *Packer) splitUnit(u doctree.Unit) ([]doctree.Unit, error) {
	var out []doctree.Unit
	var cur group
	flush := func(sep string) {
		if len(cur.parts) > 0 {
			out = append(out, doctree.Unit{SectionID: u.SectionID, Text: strings.Join(cur.parts, sep), Tokens: cur.tokens})
			cur = group{}
		}
	}
	// appendPiece adds text to cur, flushing first when the joined count
	// would pass HardMax.
	appendPiece := func(text string, tokens int, sep string) {
		total := p.grown(cur, text, sep)
		if total > p.cfg.HardMax && len(cur.parts) > 0 {
			flush(sep)
			total = tokens
		}
		cur.add(text, total)
	}

	for _, para := range paragraphRe.Split(u.Text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if tokens := p.Count(para); tokens <= p.cfg.HardMax {
			appendPiece(para, tokens, "\n\n")
			continue
		}

		flush("\n\n")
		for _, line := range strings.Split(para, "\n") {
			lt := p.Count(line)
			if lt > p.cfg.HardMax {
				return nil, fmt.Errorf("section %d line of %d tokens: %w", u.SectionID, lt, ErrUnsplittable)
			}
			appendPiece(line, lt, "\n")
		}
		flush("\n")
	}
	flush("\n\n")
	return out, nil
}
