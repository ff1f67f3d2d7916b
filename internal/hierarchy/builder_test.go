package hierarchy

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
)

func newBuilder(opts ...Option) *Builder {
	return New(heading.New(), slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func numbered(numbering, title string, page int) doctree.TOCEntry {
	return doctree.TOCEntry{
		Heading:   title,
		Numbering: numbering,
		Page:      page,
		Level:     strings.Count(numbering, ".") + 1,
		Kind:      string(heading.KindNumbered),
	}
}

func findSection(t *testing.T, h *doctree.Hierarchy, headingText string) doctree.Section {
	t.Helper()
	for _, s := range h.Sections {
		if s.Heading == headingText {
			return s
		}
	}
	t.Fatalf("section %q not found", headingText)
	return doctree.Section{}
}

func TestBuilder_TopicPageRanges(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "EMERGENCIES", 10),
		numbered("1.1", "Disease A", 15),
		numbered("1.2", "Disease B", 25),
	}
	h, report, err := newBuilder().Build(entries, nil, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ch := findSection(t, h, "1 EMERGENCIES")
	if ch.PageStart != 10 || ch.PageEnd != 100 {
		t.Errorf("chapter range = %d-%d, want 10-100", ch.PageStart, ch.PageEnd)
	}
	a := findSection(t, h, "1.1 Disease A")
	if a.PageEnd != 24 {
		t.Errorf("Disease A page_end = %d, want 24", a.PageEnd)
	}
	b := findSection(t, h, "1.2 Disease B")
	if b.PageEnd != 100 {
		t.Errorf("Disease B page_end = %d, want 100", b.PageEnd)
	}
	if a.ParentID != ch.ID || a.Level != 2 {
		t.Errorf("Disease A parent/level = %d/%d, want %d/2", a.ParentID, a.Level, ch.ID)
	}
	if a.HeadingPath != "1 EMERGENCIES > 1.1 Disease A" {
		t.Errorf("unexpected heading path %q", a.HeadingPath)
	}
	if report.Chapters != 1 || report.Topics != 2 {
		t.Errorf("report counts = %d chapters %d topics", report.Chapters, report.Topics)
	}
	if len(report.Issues) != 0 {
		t.Errorf("expected no validation issues, got %v", report.Issues)
	}
}

func TestBuilder_ChapterRangesTile(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "One", 10),
		numbered("1.1", "Disease A", 15),
		numbered("1.2", "Disease B", 25),
		numbered("2", "Two", 41),
	}
	h, _, err := newBuilder().Build(entries, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b := findSection(t, h, "1.2 Disease B"); b.PageEnd != 40 {
		t.Errorf("Disease B page_end = %d, want 40", b.PageEnd)
	}
	two := findSection(t, h, "2 Two")
	if two.PageEnd != 41+defaultFallbackSpan {
		t.Errorf("last chapter page_end = %d, want start + fallback span", two.PageEnd)
	}

	chapters := h.AtLevel(1)
	for i := 1; i < len(chapters); i++ {
		if chapters[i].PageStart != chapters[i-1].PageEnd+1 {
			t.Errorf("chapters %q and %q do not tile", chapters[i-1].Heading, chapters[i].Heading)
		}
	}
}

func TestBuilder_InfersMissingChapter(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "One", 1),
		numbered("1.1", "First", 2),
		numbered("2", "Two", 20),
		numbered("2.1", "Second", 21),
		numbered("3.1", "Third", 50),
		numbered("3.2", "Fourth", 55),
	}
	h, report, err := newBuilder().Build(entries, nil, 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ch3 := findSection(t, h, "Chapter 3 (Inferred)")
	if !ch3.Inferred || ch3.PageStart != 50 || ch3.PageEnd != 80 {
		t.Errorf("unexpected inferred chapter: %+v", ch3)
	}
	if two := findSection(t, h, "2 Two"); two.PageEnd != 49 {
		t.Errorf("chapter 2 page_end = %d, want 49", two.PageEnd)
	}
	third := findSection(t, h, "3.1 Third")
	if third.ParentID != ch3.ID {
		t.Errorf("topic 3.1 parent = %d, want %d", third.ParentID, ch3.ID)
	}
	if third.HeadingPath != "Chapter 3 (Inferred) > 3.1 Third" {
		t.Errorf("unexpected path %q", third.HeadingPath)
	}
	if len(report.InferredChapters) != 1 {
		t.Errorf("expected one inferred chapter, got %v", report.InferredChapters)
	}
}

func TestBuilder_InferredChapterUsesUnpagedTitle(t *testing.T) {
	entries := []doctree.TOCEntry{
		{Heading: "SKIN", Numbering: "3", Level: 1, Kind: string(heading.KindNumbered)},
		numbered("3.1", "Eczema", 50),
	}
	h, _, err := newBuilder().Build(entries, nil, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch := findSection(t, h, "3 SKIN")
	if !ch.Inferred || ch.PageStart != 50 {
		t.Errorf("unexpected chapter: %+v", ch)
	}
}

func TestBuilder_ExcludesTopicOutsideChapter(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "One", 10),
		numbered("1.1", "Good", 12),
		numbered("1.3", "Misnumbered", 45),
		numbered("2", "Two", 40),
	}
	h, report, err := newBuilder().Build(entries, nil, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(h.Topics()); n != 1 {
		t.Fatalf("expected 1 topic, got %d", n)
	}
	if len(report.Excluded) != 1 || !strings.Contains(report.Excluded[0], "Misnumbered") {
		t.Errorf("unexpected exclusions: %v", report.Excluded)
	}
}

func TestBuilder_InfersMissingTopic(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "One", 1),
		numbered("1.1", "First", 2),
		numbered("1.2.1", "Orphan causes", 8),
		numbered("1.2.2", "Orphan management", 9),
	}
	h, report, err := newBuilder().Build(entries, nil, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	topic := findSection(t, h, "Topic 1.2 (Inferred)")
	if !topic.Inferred || topic.PageStart != 8 {
		t.Errorf("unexpected inferred topic: %+v", topic)
	}
	if sub := findSection(t, h, "1.2.2 Orphan management"); sub.ParentID != topic.ID {
		t.Errorf("subsection attached to %d, want %d", sub.ParentID, topic.ID)
	}
	if len(report.InferredTopics) != 1 {
		t.Errorf("expected one inferred topic, got %v", report.InferredTopics)
	}
}

func TestBuilder_VocabularyPass(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "EMERGENCIES", 10),
		numbered("1.1", "Disease A", 15),
		numbered("1.2", "Disease B", 25),
	}
	elements := []doctree.Element{
		{Seq: 1, Type: doctree.TypeSectionHeader, Text: "Causes", Page: 16},
		{Seq: 2, Type: doctree.TypeText, Text: "Fever and rash.", Page: 16},
		{Seq: 3, Type: doctree.TypeText, Text: "Management:\nGive fluids.", Page: 17},
		{Seq: 4, Type: doctree.TypePageHeader, Text: "Management", Page: 18},
		{Seq: 5, Type: doctree.TypeTable, Text: "Management", Page: 19},
		{Seq: 6, Type: doctree.TypeText, Text: "Management", Page: 26},
	}
	h, report, err := newBuilder().Build(entries, elements, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.VocabularyAdded != 3 {
		t.Fatalf("expected 3 vocabulary subsections, got %d", report.VocabularyAdded)
	}

	a := findSection(t, h, "1.1 Disease A")
	kids := h.Children(a.ID)
	if len(kids) != 2 {
		t.Fatalf("expected 2 subsections under Disease A, got %d", len(kids))
	}
	if kids[0].Heading != "Causes" || kids[0].PageStart != 16 || kids[0].PageEnd != 16 {
		t.Errorf("unexpected first subsection: %+v", kids[0])
	}
	if kids[1].Heading != "Management" || kids[1].PageStart != 17 || kids[1].PageEnd != 24 {
		t.Errorf("unexpected second subsection: %+v", kids[1])
	}
	for _, k := range kids {
		if k.Level != a.Level+1 || !k.Vocabulary {
			t.Errorf("subsection %q level %d vocabulary %v", k.Heading, k.Level, k.Vocabulary)
		}
	}
	if kids[0].HeadingPath != "1 EMERGENCIES > 1.1 Disease A > Causes" {
		t.Errorf("unexpected path %q", kids[0].HeadingPath)
	}

	b := findSection(t, h, "1.2 Disease B")
	if bk := h.Children(b.ID); len(bk) != 1 || bk[0].PageEnd != 40 {
		t.Errorf("unexpected Disease B subsections: %+v", bk)
	}
}

func TestBuilder_VocabularyDoesNotDuplicateNumbered(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "EMERGENCIES", 10),
		numbered("1.1", "Disease A", 15),
		numbered("1.1.1", "Management", 18),
	}
	elements := []doctree.Element{
		{Seq: 1, Type: doctree.TypeText, Text: "Management", Page: 17},
	}
	h, report, err := newBuilder().Build(entries, elements, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.VocabularyAdded != 0 {
		t.Errorf("expected no vocabulary additions, got %d", report.VocabularyAdded)
	}
	a := findSection(t, h, "1.1 Disease A")
	kids := h.Children(a.ID)
	if len(kids) != 1 || kids[0].Heading != "1.1.1 Management" {
		t.Errorf("unexpected subsections: %+v", kids)
	}
}

func TestBuilder_NestedNumberedSubsections(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "One", 10),
		numbered("1.1", "Topic", 15),
		numbered("1.1.1", "Causes", 16),
		numbered("1.1.1.1", "Viral causes", 16),
		numbered("1.1.2", "Management", 18),
	}
	h, _, err := newBuilder().Build(entries, nil, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	causes := findSection(t, h, "1.1.1 Causes")
	viral := findSection(t, h, "1.1.1.1 Viral causes")
	if viral.ParentID != causes.ID || viral.Level != 4 {
		t.Errorf("viral parent/level = %d/%d, want %d/4", viral.ParentID, viral.Level, causes.ID)
	}
	if causes.PageEnd != 17 {
		t.Errorf("causes page_end = %d, want 17", causes.PageEnd)
	}
	if viral.HeadingPath != "1 One > 1.1 Topic > 1.1.1 Causes > 1.1.1.1 Viral causes" {
		t.Errorf("unexpected path %q", viral.HeadingPath)
	}
	for i, s := range h.Sections {
		if s.OrderIndex != i || s.ID != i+1 {
			t.Errorf("section %d has order %d id %d", i, s.OrderIndex, s.ID)
		}
	}
}

func TestBuilder_FoldAndDemotion(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "EMERGENCIES", 10),
		numbered("1.1", "Shock", 12),
		{Heading: "Management", Page: 13, Kind: string(heading.KindVocabulary)},
		{Heading: "Note on dosing", Page: 14, Level: 2, Kind: string(heading.KindUnknown)},
	}
	h, _, err := newBuilder().Build(entries, nil, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(h.Topics()); n != 1 {
		t.Fatalf("expected the unnumbered heading to be demoted, got %d topics", n)
	}
	shock := findSection(t, h, "1.1 Shock")
	mgmt := findSection(t, h, "Management")
	if mgmt.Level != shock.Level+1 || mgmt.ParentID != shock.ID || !mgmt.Vocabulary {
		t.Errorf("unexpected vocabulary subsection: %+v", mgmt)
	}
	note := findSection(t, h, "Note on dosing")
	if note.ParentID != shock.ID || note.PageStart != 14 || note.PageEnd != 20 {
		t.Errorf("unexpected demoted subsection: %+v", note)
	}
	if mgmt.PageEnd != 13 {
		t.Errorf("management page_end = %d, want 13", mgmt.PageEnd)
	}
}

func TestBuilder_DocumentRootWithoutChapters(t *testing.T) {
	entries := []doctree.TOCEntry{
		{Heading: "Anaphylaxis", Page: 3, Level: 2, Kind: string(heading.KindNative)},
		{Heading: "Burns", Page: 8, Level: 2, Kind: string(heading.KindNative)},
	}
	h, report, err := newBuilder().Build(entries, nil, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root := findSection(t, h, rootHeading)
	if !root.Inferred || root.PageStart != 3 || root.PageEnd != 12 {
		t.Errorf("unexpected root: %+v", root)
	}
	burns := findSection(t, h, "Burns")
	if burns.ParentID != root.ID || burns.PageEnd != 12 {
		t.Errorf("unexpected topic: %+v", burns)
	}
	if findSection(t, h, "Anaphylaxis").PageEnd != 7 {
		t.Error("expected Anaphylaxis to end at page 7")
	}
	if len(report.InferredChapters) != 1 {
		t.Errorf("expected root to be reported, got %v", report.InferredChapters)
	}
}

func TestBuilder_NoEntries(t *testing.T) {
	_, _, err := newBuilder().Build(nil, nil, 0)
	if !errors.Is(err, ErrNoSections) {
		t.Fatalf("expected ErrNoSections, got %v", err)
	}
}

func TestBuilder_DuplicateNumberingKeepsFirst(t *testing.T) {
	entries := []doctree.TOCEntry{
		numbered("1", "One", 10),
		numbered("1.1", "Disease A", 15),
		numbered("1.1", "Disease A", 90),
	}
	h, _, err := newBuilder().Build(entries, nil, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	topics := h.Topics()
	if len(topics) != 1 || topics[0].PageStart != 15 {
		t.Errorf("unexpected topics: %+v", topics)
	}
}
