package hierarchy

import (
	"strings"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
)

// levelState is the accumulator threaded through ResolveLevels.
type levelState struct {
	lastAnchored int
}

// step resolves one entry. Entries with an absolute depth signal move the
// anchor; vocabulary-only entries sit one level below it.
func (s levelState) step(e doctree.TOCEntry) (doctree.TOCEntry, levelState) {
	switch {
	case e.Kind == string(heading.KindVocabulary) && e.Numbering == "":
		e.Level = s.lastAnchored + 1
	case e.Level > 0:
		s.lastAnchored = e.Level
	default:
		e.Level = max(s.lastAnchored, 1)
	}
	return e, s
}

// ResolveLevels assigns a level to every entry in one pass over document
// order. The input is not modified.
func ResolveLevels(entries []doctree.TOCEntry) []doctree.TOCEntry {
	out := make([]doctree.TOCEntry, 0, len(entries))
	state := levelState{lastAnchored: 1}
	for _, e := range entries {
		var resolved doctree.TOCEntry
		resolved, state = state.step(e)
		out = append(out, resolved)
	}
	return out
}

// AssignPaths sets HeadingPath on sections given in document order. An
// ancestor-by-level map is pruned of entries at or below each section's
// level before its path is built, so the chain resets when the hierarchy
// climbs back up.
func AssignPaths(sections []doctree.Section) []doctree.Section {
	out := make([]doctree.Section, len(sections))
	copy(out, sections)

	ancestors := make(map[int]string)
	for i := range out {
		s := &out[i]
		for level := range ancestors {
			if level >= s.Level {
				delete(ancestors, level)
			}
		}
		parts := make([]string, 0, s.Level)
		for level := 1; level < s.Level; level++ {
			if h, ok := ancestors[level]; ok {
				parts = append(parts, h)
			}
		}
		parts = append(parts, s.Heading)
		s.HeadingPath = strings.Join(parts, PathSeparator)
		ancestors[s.Level] = s.Heading
	}
	return out
}
