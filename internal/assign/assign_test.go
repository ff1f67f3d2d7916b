package assign

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleHierarchy() *doctree.Hierarchy {
	return doctree.NewHierarchy([]doctree.Section{
		{ID: 1, Level: 1, Heading: "1 EMERGENCIES", PageStart: 10, PageEnd: 40, OrderIndex: 0},
		{ID: 2, ParentID: 1, Level: 2, Heading: "1.1 Shock", PageStart: 10, PageEnd: 19, OrderIndex: 1},
		{ID: 3, ParentID: 2, Level: 3, Heading: "Management", PageStart: 12, PageEnd: 19, OrderIndex: 2},
		{ID: 4, ParentID: 1, Level: 2, Heading: "1.2 Burns", PageStart: 20, PageEnd: 40, OrderIndex: 3},
	})
}

func TestAssigner_DeepestSectionWins(t *testing.T) {
	elements := []doctree.Element{
		{Seq: 0, Type: doctree.TypeText, Text: "Shock intro", Page: 10},
		{Seq: 1, Type: doctree.TypeText, Text: "Give fluids", Page: 13},
		{Seq: 2, Type: doctree.TypeText, Text: "Burn care", Page: 25},
		{Seq: 3, Type: doctree.TypeText, Text: "Index", Page: 90},
	}
	got := New(heading.New(), testLogger()).Assign(sampleHierarchy(), elements)

	cases := map[int][]int{2: {0}, 3: {1}, 4: {2}}
	for id, want := range cases {
		if len(got.BySection[id]) != len(want) || got.BySection[id][0] != want[0] {
			t.Errorf("section %d: got %v, want %v", id, got.BySection[id], want)
		}
	}
	if len(got.Orphans) != 1 || got.Orphans[0] != 3 {
		t.Errorf("orphans = %v, want [3]", got.Orphans)
	}
	if got.Count() != 3 {
		t.Errorf("count = %d, want 3", got.Count())
	}
}

func TestAssigner_SkipsRunningAndSectionHeadings(t *testing.T) {
	elements := []doctree.Element{
		{Seq: 0, Type: doctree.TypePageHeader, Text: "National Guidelines", Page: 10},
		{Seq: 1, Type: doctree.TypeSectionHeader, Text: "1.1 Shock", Page: 10},
		{Seq: 2, Type: doctree.TypeSectionHeader, Text: "Management", Page: 13},
		{Seq: 3, Type: doctree.TypeSectionHeader, Text: "Dosing table", Page: 14},
		{Seq: 4, Type: doctree.TypePageFooter, Text: "14", Page: 14},
		{Seq: 5, Type: doctree.TypeSectionHeader, Text: "Shock", Page: 30},
	}
	got := New(heading.New(), testLogger()).Assign(sampleHierarchy(), elements)

	if got.Skipped != 4 {
		t.Errorf("skipped = %d, want 4", got.Skipped)
	}
	if ids := got.BySection[3]; len(ids) != 1 || ids[0] != 3 {
		t.Errorf("unmatched heading should be content, got %v", ids)
	}
	// Same text far from the section start is content, not a heading.
	if ids := got.BySection[4]; len(ids) != 1 || ids[0] != 5 {
		t.Errorf("distant heading should be content of Burns, got %v", ids)
	}
}

func TestAssigner_EqualLevelTieGoesToEarliestStart(t *testing.T) {
	h := doctree.NewHierarchy([]doctree.Section{
		{ID: 1, Level: 1, Heading: "A", PageStart: 1, PageEnd: 20, OrderIndex: 0},
		{ID: 2, ParentID: 1, Level: 2, Heading: "Late", PageStart: 5, PageEnd: 10, OrderIndex: 1},
		{ID: 3, ParentID: 1, Level: 2, Heading: "Early", PageStart: 3, PageEnd: 10, OrderIndex: 2},
	})
	got := New(heading.New(), testLogger()).Assign(h, []doctree.Element{{Type: doctree.TypeText, Text: "x", Page: 6}})
	if ids := got.BySection[3]; len(ids) != 1 {
		t.Errorf("expected the earliest-starting section, got %v", got.BySection)
	}
}

func TestAssigner_HeadingBoundaries(t *testing.T) {
	h := doctree.NewHierarchy([]doctree.Section{
		{ID: 1, Level: 1, Heading: "One", PageStart: 1, PageEnd: 10, OrderIndex: 0},
		{ID: 2, ParentID: 1, Level: 2, Heading: "1.1 First", PageStart: 1, PageEnd: 5, OrderIndex: 1},
		{ID: 3, ParentID: 1, Level: 2, Heading: "1.2 Second", PageStart: 5, PageEnd: 10, OrderIndex: 2},
	})
	elements := []doctree.Element{
		{Type: doctree.TypeSectionHeader, Text: "1.1 First", Page: 1},
		{Type: doctree.TypeText, Text: "first body", Page: 5},
		{Type: doctree.TypeSectionHeader, Text: "1.2 Second", Page: 5},
		{Type: doctree.TypeText, Text: "second body", Page: 5},
	}

	byPage := New(heading.New(), testLogger(), WithPageOnly()).Assign(h, elements)
	if len(byPage.BySection[2]) != 2 {
		t.Errorf("page rule should give both page-5 elements to the earlier topic, got %v", byPage.BySection)
	}

	byHeading := New(heading.New(), testLogger()).Assign(h, elements)
	if ids := byHeading.BySection[2]; len(ids) != 1 || ids[0] != 1 {
		t.Errorf("first body should follow its heading, got %v", byHeading.BySection)
	}
	if ids := byHeading.BySection[3]; len(ids) != 1 || ids[0] != 3 {
		t.Errorf("second body should follow its heading, got %v", byHeading.BySection)
	}
}

func TestAssigner_SameStartPageSubsections(t *testing.T) {
	h := doctree.NewHierarchy([]doctree.Section{
		{ID: 1, Level: 1, Heading: "1 INFECTIONS", PageStart: 1, PageEnd: 3, OrderIndex: 0},
		{ID: 2, ParentID: 1, Level: 2, Heading: "1.1 Malaria", PageStart: 2, PageEnd: 3, OrderIndex: 1},
		{ID: 3, ParentID: 2, Level: 3, Heading: "Definition", PageStart: 2, PageEnd: 2, OrderIndex: 2},
		{ID: 4, ParentID: 2, Level: 3, Heading: "Causes", PageStart: 2, PageEnd: 2, OrderIndex: 3},
		{ID: 5, ParentID: 2, Level: 3, Heading: "Management", PageStart: 2, PageEnd: 3, OrderIndex: 4},
	})
	elements := []doctree.Element{
		{Type: doctree.TypeSectionHeader, Text: "1.1 Malaria", Page: 2},
		{Type: doctree.TypeSectionHeader, Text: "Definition", Page: 2},
		{Type: doctree.TypeText, Text: "Malaria is a parasitic infection.", Page: 2},
		{Type: doctree.TypeSectionHeader, Text: "Causes", Page: 2},
		{Type: doctree.TypeText, Text: "Plasmodium species.", Page: 2},
		{Type: doctree.TypeSectionHeader, Text: "Management", Page: 2},
		{Type: doctree.TypeText, Text: "Give artesunate.", Page: 2},
		{Type: doctree.TypeText, Text: "Monitor glucose.", Page: 3},
	}
	got := New(heading.New(), testLogger()).Assign(h, elements)

	want := map[int][]int{3: {2}, 4: {4}, 5: {6, 7}}
	for id, idx := range want {
		if len(got.BySection[id]) != len(idx) {
			t.Errorf("section %d: got %v, want %v", id, got.BySection[id], idx)
			continue
		}
		for i := range idx {
			if got.BySection[id][i] != idx[i] {
				t.Errorf("section %d: got %v, want %v", id, got.BySection[id], idx)
			}
		}
	}
}

func TestAssigner_UnmatchedSubsectionKeepsPageRule(t *testing.T) {
	elements := []doctree.Element{
		{Type: doctree.TypeSectionHeader, Text: "1.1 Shock", Page: 10},
		{Type: doctree.TypeText, Text: "Shock intro", Page: 10},
		{Type: doctree.TypeText, Text: "Give fluids", Page: 13},
	}
	got := New(heading.New(), testLogger()).Assign(sampleHierarchy(), elements)
	if ids := got.BySection[2]; len(ids) != 1 || ids[0] != 1 {
		t.Errorf("intro should stay with the topic, got %v", got.BySection)
	}
	if ids := got.BySection[3]; len(ids) != 1 || ids[0] != 2 {
		t.Errorf("page 13 lies in Management, got %v", got.BySection)
	}
}
