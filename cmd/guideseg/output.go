package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/export"
	"github.com/dgallion1/guideseg/internal/pipeline"
	"github.com/dgallion1/guideseg/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	// chapterStyle renders level-1 headings
	chapterStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	topicStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	inferredStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("220"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

func levelStyle(level int) lipgloss.Style {
	switch level {
	case 1:
		return chapterStyle
	case 2:
		return topicStyle
	default:
		return dimStyle
	}
}

// printTree renders the hierarchy depth first with one indent per level.
func printTree(w io.Writer, title string, h *doctree.Hierarchy, report pipeline.Report) {
	counts := h.LevelCounts()
	header := fmt.Sprintf("%s\n%s %s  %s %d  %s %d  %s %d",
		titleStyle.Render(title),
		dimStyle.Render("TOC:"), report.TOCStrategy,
		dimStyle.Render("chapters:"), counts[1],
		dimStyle.Render("topics:"), counts[2],
		dimStyle.Render("subsections:"), counts[3],
	)
	fmt.Fprintln(w, boxStyle.Render(header))

	var walk func(parent int)
	walk = func(parent int) {
		for _, s := range h.Children(parent) {
			line := strings.Repeat("  ", s.Level-1) + levelStyle(s.Level).Render(s.Heading)
			if s.Inferred {
				line += " " + inferredStyle.Render("inferred")
			}
			fmt.Fprintf(w, "%s %s\n", line, dimStyle.Render("("+export.PageRange(s.PageStart, s.PageEnd)+")"))
			walk(s.ID)
		}
	}
	walk(0)

	for _, issues := range [][]string{report.TOCIssues, report.Hierarchy.Issues} {
		for _, issue := range issues {
			fmt.Fprintln(w, errorStyle.Render("! "+issue))
		}
	}
}

func printPackSummary(w io.Writer, res *pipeline.Result) {
	d := res.Report.Chunks
	fmt.Fprintf(w, "\n%s %d  %s %d  %s %d-%d  %s %.0f  %s %.0f\n",
		dimStyle.Render("chunks:"), d.Count,
		dimStyle.Render("tokens:"), d.Total,
		dimStyle.Render("range:"), d.Min, d.Max,
		dimStyle.Render("mean:"), d.Mean,
		dimStyle.Render("p95:"), d.P95,
	)
	for _, f := range res.Failed {
		fmt.Fprintln(w, errorStyle.Render("✗ "+f.Error()))
	}
}

func printBuildSummary(w io.Writer, snap pipeline.JobSnapshot) {
	status := successStyle.Render(string(snap.Status))
	if snap.Status == pipeline.StatusFailed || snap.Status == pipeline.StatusPartial {
		status = errorStyle.Render(string(snap.Status))
	}
	p := snap.Progress
	content := fmt.Sprintf("%s %s\n%s %s\n%s %s\n%s %d  %s %d  %s %d/%d",
		dimStyle.Render("File:"), snap.Filename,
		dimStyle.Render("Document:"), snap.DocID,
		dimStyle.Render("Status:"), status,
		dimStyle.Render("Sections:"), p.Sections,
		dimStyle.Render("Topics:"), p.TotalTopics,
		dimStyle.Render("Chunks:"), p.ChunksStored, p.ChunksBuilt,
	)
	fmt.Fprintln(w, boxStyle.Render(content))
	for _, e := range p.Errors {
		fmt.Fprintln(w, errorStyle.Render("✗ "+e))
	}
}

func printDocuments(w io.Writer, docs []*store.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no documents"))
		return
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  %s  %s\n",
			titleStyle.Render(d.ID),
			d.Filename,
			dimStyle.Render(fmt.Sprintf("%d pages, %d sections, %d chunks, %s",
				d.PageCount, d.SectionCount, d.ChunkCount, d.CreatedAt.Format("2006-01-02 15:04"))),
		)
	}
}
