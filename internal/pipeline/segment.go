package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/guideseg/internal/assign"
	"github.com/dgallion1/guideseg/internal/chunker"
	"github.com/dgallion1/guideseg/internal/cleaner"
	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/heading"
	"github.com/dgallion1/guideseg/internal/hierarchy"
	"github.com/dgallion1/guideseg/internal/toc"
)

// ErrNoElements is returned for an empty element sequence.
var ErrNoElements = errors.New("no elements to segment")

// TopicError records one topic that could not be packed.
type TopicError struct {
	SectionID int
	Heading   string
	Err       error
}

func (e *TopicError) Error() string {
	return fmt.Sprintf("topic %d %q: %v", e.SectionID, e.Heading, e.Err)
}

func (e *TopicError) Unwrap() error { return e.Err }

// SegmentOptions tunes the segmentation stages.
type SegmentOptions struct {
	TOCScanPages      int
	MaxHeadingDepth   int
	FallbackSpan      int
	Vocabulary        []string
	Chunking          chunker.Config
	PackWorkers       int
	PageOnly          bool // Attribute content by page alone, ignoring heading boundaries
}

// Structure is a document's hierarchy with its cleaned content.
type Structure struct {
	Hierarchy *doctree.Hierarchy
	Content   map[int][]string // Section ID -> cleaned blocks in order
	Owner     map[int]int      // Element Seq -> section ID
	PageCount int
}

// Report summarizes one segmentation run.
type Report struct {
	TOCStrategy   toc.Strategy         `json:"toc_strategy"`
	TOCEntries    int                  `json:"toc_entries"`
	PageOffset    int                  `json:"page_offset"`
	TOCIssues     []string             `json:"toc_issues,omitempty"`
	Hierarchy     hierarchy.Report     `json:"hierarchy"`
	Assigned      int                  `json:"assigned"`
	Orphans       int                  `json:"orphans"`
	Skipped       int                  `json:"skipped"`
	Topics        int                  `json:"topics"`
	EmptyTopics   int                  `json:"empty_topics"`
	OutsideTopics int                  `json:"outside_topics"` // Blocks owned by chapters or the root
	Chunks        chunker.Distribution `json:"chunks"`
}

// Result is the output of Segment.
type Result struct {
	*Structure
	Chunks []doctree.ParentChunk // Topic order, then chunk order
	Failed []*TopicError
	Report Report
}

// Segmenter runs the table of contents, hierarchy, assignment, cleaning and
// packing stages. It holds no per-document state.
type Segmenter struct {
	extractor *toc.Extractor
	builder   *hierarchy.Builder
	assigner  *assign.Assigner
	packer    *chunker.Packer
	workers   int
	log       *slog.Logger
}

// NewSegmenter wires the stages from opts.
func NewSegmenter(opts SegmentOptions, log *slog.Logger) (*Segmenter, error) {
	if opts.Chunking == (chunker.Config{}) {
		opts.Chunking = chunker.DefaultConfig()
	}
	if err := opts.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("chunking config: %w", err)
	}
	if opts.PackWorkers <= 0 {
		opts.PackWorkers = 1
	}

	scorer := heading.New(heading.WithMaxDepth(opts.MaxHeadingDepth), heading.WithVocabulary(opts.Vocabulary...))
	var assignOpts []assign.Option
	if opts.PageOnly {
		assignOpts = append(assignOpts, assign.WithPageOnly())
	}
	return &Segmenter{
		extractor: toc.New(scorer, log, toc.WithScanPages(opts.TOCScanPages)),
		builder:   hierarchy.New(scorer, log, hierarchy.WithFallbackSpan(opts.FallbackSpan)),
		assigner:  assign.New(scorer, log, assignOpts...),
		packer:    chunker.New(log, chunker.WithConfig(opts.Chunking)),
		workers:   opts.PackWorkers,
		log:       log,
	}, nil
}

// Packer exposes the chunk packer for stats.
func (s *Segmenter) Packer() *chunker.Packer { return s.packer }

// Segment runs every stage. Topic packing failures are collected in
// Result.Failed and never stop the other topics.
func (s *Segmenter) Segment(ctx context.Context, elements []doctree.Element) (*Result, error) {
	st, report, err := s.Structure(elements)
	if err != nil {
		return nil, err
	}
	return s.Pack(ctx, st, report)
}

// Structure builds the hierarchy and cleaned per-section content.
func (s *Segmenter) Structure(elements []doctree.Element) (*Structure, Report, error) {
	var report Report
	if len(elements) == 0 {
		return nil, report, ErrNoElements
	}
	pageCount := doctree.PageCount(elements)

	res, err := s.extractor.Extract(elements)
	switch {
	case errors.Is(err, toc.ErrNoEntries):
		s.log.Warn("no table of contents entries, relying on content headings")
	case err != nil:
		return nil, report, fmt.Errorf("extract toc: %w", err)
	}
	report.TOCStrategy = res.Strategy
	report.TOCEntries = len(res.Entries)
	report.PageOffset = res.PageOffset
	report.TOCIssues = toc.Validate(res.Entries)
	if len(report.TOCIssues) > 0 {
		s.log.Warn("table of contents issues", "count", len(report.TOCIssues), "first", report.TOCIssues[0])
	}

	h, hrep, err := s.builder.Build(res.Entries, elements, pageCount)
	report.Hierarchy = hrep
	if err != nil {
		return nil, report, fmt.Errorf("build hierarchy: %w", err)
	}

	a := s.assigner.Assign(h, elements)
	report.Assigned = a.Count()
	report.Orphans = len(a.Orphans)
	report.Skipped = a.Skipped
	if report.Orphans > 0 {
		s.log.Warn("elements outside every section", "orphans", report.Orphans)
	}

	st := &Structure{
		Hierarchy: h,
		Content:   make(map[int][]string),
		Owner:     make(map[int]int),
		PageCount: pageCount,
	}
	for _, sec := range h.Sections {
		for _, idx := range a.BySection[sec.ID] {
			el := elements[idx]
			st.Owner[el.Seq] = sec.ID
			if text, ok := cleaner.Clean(el); ok {
				st.Content[sec.ID] = append(st.Content[sec.ID], text)
			}
		}
		if sec.Level < 2 {
			report.OutsideTopics += len(st.Content[sec.ID])
		}
	}
	return st, report, nil
}

// Pack packs every topic of st with bounded parallelism. Each topic writes
// only its own slot.
func (s *Segmenter) Pack(ctx context.Context, st *Structure, report Report) (*Result, error) {
	topics := st.Hierarchy.Topics()
	report.Topics = len(topics)

	type slot struct {
		chunks []doctree.ParentChunk
		err    *TopicError
	}
	slots := make([]slot, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, topic := range topics {
		i, topic := i, topic
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			units := s.packer.BuildUnits(st.Hierarchy, topic.ID, st.Content)
			chunks, err := s.packer.Pack(topic, units)
			if err != nil {
				slots[i].err = &TopicError{SectionID: topic.ID, Heading: topic.Heading, Err: err}
				return nil
			}
			slots[i].chunks = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pack topics: %w", err)
	}

	out := &Result{Structure: st}
	for i, sl := range slots {
		if sl.err != nil {
			s.log.Error("topic packing failed", "section_id", sl.err.SectionID, "topic", sl.err.Heading, "error", sl.err.Err)
			out.Failed = append(out.Failed, sl.err)
			continue
		}
		if len(sl.chunks) == 0 {
			report.EmptyTopics++
			s.log.Debug("topic has no content", "topic", topics[i].Heading)
		}
		out.Chunks = append(out.Chunks, sl.chunks...)
	}
	report.Chunks = chunker.Stats(out.Chunks, s.packer.Config())
	out.Report = report

	s.log.Info("segmented document",
		"topics", report.Topics,
		"chunks", len(out.Chunks),
		"failed_topics", len(out.Failed),
		"empty_topics", report.EmptyTopics,
	)
	return out, nil
}
