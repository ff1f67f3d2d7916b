package chunker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// wordCounter makes token counts exact in tests.
var wordCounter = CounterFunc(func(text string) int { return len(strings.Fields(text)) })

func newPacker(opts ...Option) *Packer {
	opts = append([]Option{WithCounter(wordCounter)}, opts...)
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func words(n int, tag string) string {
	w := make([]string, n)
	for i := range w {
		w[i] = tag
	}
	return strings.Join(w, " ")
}

func unit(id, n int, tag string) doctree.Unit {
	return doctree.Unit{SectionID: id, Text: words(n, tag), Tokens: n}
}

var topic = doctree.Section{ID: 7, Level: 2, Heading: "1.1 Malaria", PageStart: 15, PageEnd: 24}

func TestPacker_FiveUnitsMakeTwoChunks(t *testing.T) {
	var units []doctree.Unit
	for i := 0; i < 5; i++ {
		units = append(units, unit(7, 640, fmt.Sprintf("u%d", i)))
	}
	chunks, err := newPacker().Pack(topic, units)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].TokenCount != 1920 || chunks[1].TokenCount != 1280 {
		t.Errorf("token counts = %d, %d; want 1920, 1280", chunks[0].TokenCount, chunks[1].TokenCount)
	}
	if !strings.Contains(chunks[0].Content, "u2") || strings.Contains(chunks[0].Content, "u3") {
		t.Error("first chunk should close right after the unit that crosses the soft target")
	}
}

func TestPacker_SmallTailStaysWithChunk(t *testing.T) {
	chunks, err := newPacker().Pack(topic, []doctree.Unit{unit(7, 1100, "a"), unit(8, 300, "b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].TokenCount != 1400 {
		t.Fatalf("expected one chunk of 1400 tokens, got %+v", chunks)
	}
}

func TestPacker_MergeTail(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		last, tail int
		wantGroups int
	}{
		{"both small", DefaultConfig(), 900, 300, 1},
		{"previous large", DefaultConfig(), 1600, 300, 2},
		{"tail large", DefaultConfig(), 900, 1000, 2},
		{"would exceed hard max", Config{MinTarget: 1000, SoftTarget: 1500, HardMax: 1100}, 900, 300, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPacker(WithConfig(tt.cfg))
			prev, tail := words(tt.last, "prev"), words(tt.tail, "tail")
			closed := []group{{parts: []string{prev}, tokens: tt.last}}
			got := p.mergeTail(closed, group{parts: []string{tail}, tokens: tt.tail})
			if len(got) != tt.wantGroups {
				t.Fatalf("expected %d groups, got %d", tt.wantGroups, len(got))
			}
			if tt.wantGroups == 1 {
				if got[0].tokens != tt.last+tt.tail || strings.Join(got[0].parts, "\n\n") != prev+"\n\n"+tail {
					t.Errorf("unexpected merge: %d tokens in %d parts", got[0].tokens, len(got[0].parts))
				}
			}
		})
	}
}

func TestPacker_SplitsLargeUnitAtParagraphs(t *testing.T) {
	paras := make([]string, 5)
	for i := range paras {
		paras[i] = words(600, fmt.Sprintf("p%d", i))
	}
	text := strings.Join(paras, "\n\n")
	chunks, err := newPacker().Pack(topic, []doctree.Unit{{SectionID: 7, Text: text, Tokens: 3000}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].TokenCount != 1800 || chunks[1].TokenCount != 1200 {
		t.Errorf("token counts = %d, %d", chunks[0].TokenCount, chunks[1].TokenCount)
	}
	if got := chunks[0].Content + "\n\n" + chunks[1].Content; got != text {
		t.Error("chunks do not reproduce the unit text")
	}
}

func TestPacker_SplitsLongParagraphAtLines(t *testing.T) {
	text := strings.Join([]string{words(900, "a"), words(900, "b"), words(900, "c")}, "\n")
	chunks, err := newPacker().Pack(topic, []doctree.Unit{{SectionID: 7, Text: text}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].TokenCount != 1800 || chunks[1].TokenCount != 900 {
		t.Errorf("token counts = %d, %d", chunks[0].TokenCount, chunks[1].TokenCount)
	}
	if !strings.HasPrefix(chunks[1].Content, "c") {
		t.Error("second chunk should start at the third line")
	}
}

func TestPacker_UnsplittableLine(t *testing.T) {
	_, err := newPacker().Pack(topic, []doctree.Unit{{SectionID: 7, Text: words(2500, "x")}})
	if !errors.Is(err, ErrUnsplittable) {
		t.Fatalf("expected ErrUnsplittable, got %v", err)
	}
	if !strings.Contains(err.Error(), topic.Heading) {
		t.Errorf("error should name the topic: %v", err)
	}
}

func TestPacker_NoUnits(t *testing.T) {
	chunks, err := newPacker().Pack(topic, nil)
	if err != nil || chunks != nil {
		t.Fatalf("expected no chunks and no error, got %v, %v", chunks, err)
	}
}

func TestPacker_Properties(t *testing.T) {
	sizes := []int{120, 1900, 40, 700, 700, 700, 1500, 10, 999, 1001, 300, 2000, 5}
	var units []doctree.Unit
	var texts []string
	for i, n := range sizes {
		u := unit(100+i, n, fmt.Sprintf("s%d", i))
		units = append(units, u)
		texts = append(texts, u.Text)
	}

	p := newPacker()
	chunks, err := p.Pack(topic, units)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	var contents []string
	total := 0
	for i, c := range chunks {
		if c.TokenCount > p.Config().HardMax {
			t.Errorf("chunk %d has %d tokens", i, c.TokenCount)
		}
		if n := p.Count(c.Content); n > p.Config().HardMax || n != c.TokenCount {
			t.Errorf("chunk %d recounts to %d tokens, reported %d", i, n, c.TokenCount)
		}
		if c.OrderIndex != i {
			t.Errorf("chunk %d has order index %d", i, c.OrderIndex)
		}
		if c.SectionID != topic.ID || c.PageStart != topic.PageStart || c.PageEnd != topic.PageEnd {
			t.Errorf("chunk %d does not inherit the topic: %+v", i, c)
		}
		contents = append(contents, c.Content)
		total += c.TokenCount
	}
	if strings.Join(contents, "\n\n") != strings.Join(texts, "\n\n") {
		t.Error("chunks do not reproduce the units in order")
	}
	sum := 0
	for _, n := range sizes {
		sum += n
	}
	if total != sum {
		t.Errorf("token total = %d, want %d", total, sum)
	}
}

func TestPacker_EstimatorRecountsJoinedContent(t *testing.T) {
	// Each line estimates to 2 tokens alone but 1800 of them joined estimate
	// to 4788, so summing per-line counts would overfill chunks.
	lines := make([]string, 1800)
	for i := range lines {
		lines[i] = "Dose 5mg"
	}
	p := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	chunks, err := p.Pack(topic, []doctree.Unit{{SectionID: 7, Text: strings.Join(lines, "\n")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	total := 0
	for i, c := range chunks {
		n := p.Count(c.Content)
		if n > p.Config().HardMax {
			t.Errorf("chunk %d recounts to %d tokens, over %d", i, n, p.Config().HardMax)
		}
		if n != c.TokenCount {
			t.Errorf("chunk %d reports %d tokens, recounts to %d", i, c.TokenCount, n)
		}
		total += strings.Count(c.Content, "Dose 5mg")
	}
	if total != len(lines) {
		t.Errorf("chunks hold %d lines, want %d", total, len(lines))
	}
}

func TestPacker_BuildUnits(t *testing.T) {
	h := doctree.NewHierarchy([]doctree.Section{
		{ID: 1, Level: 1, Heading: "1 Infections", OrderIndex: 0},
		{ID: 2, ParentID: 1, Level: 2, Heading: "1.1 Malaria", OrderIndex: 1},
		{ID: 3, ParentID: 2, Level: 3, Heading: "Causes", OrderIndex: 2},
		{ID: 4, ParentID: 3, Level: 4, Heading: "Vectors", OrderIndex: 3},
		{ID: 5, ParentID: 2, Level: 3, Heading: "Empty", OrderIndex: 4},
	})
	content := map[int][]string{
		2: {"Malaria is common.", "It kills."},
		3: {"Parasites."},
		4: {"Mosquitoes."},
	}
	units := newPacker().BuildUnits(h, 2, content)
	want := []string{
		"Malaria is common.\n\nIt kills.",
		"### Causes\n\nParasites.",
		"#### Vectors\n\nMosquitoes.",
	}
	if len(units) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(units))
	}
	for i, u := range units {
		if u.Text != want[i] {
			t.Errorf("unit %d = %q, want %q", i, u.Text, want[i])
		}
		if u.Tokens != len(strings.Fields(want[i])) {
			t.Errorf("unit %d tokens = %d", i, u.Tokens)
		}
	}
	if units[1].SectionID != 3 {
		t.Errorf("unit 1 section = %d, want 3", units[1].SectionID)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := DefaultConfig()
	bad.SoftTarget = 2500
	if err := bad.Validate(); err == nil {
		t.Error("expected error for soft target above hard max")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 1},
		{words(10, "w"), 13},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%d words) = %d, want %d", len(strings.Fields(tt.text)), got, tt.want)
		}
	}
}
