package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/parser"
	"github.com/dgallion1/guideseg/internal/store"
)

// Repository is the persistence the worker needs.
type Repository interface {
	FindDocumentByHash(ctx context.Context, hash string) (*store.Document, error)
	CreateDocument(ctx context.Context, d *store.Document) error
	UpdateDocument(ctx context.Context, d *store.Document) error
	ReplaceHierarchy(ctx context.Context, docID string, sections []doctree.Section, elements []doctree.Element, owner map[int]int) error
	InsertChunks(ctx context.Context, docID string, chunks []doctree.ParentChunk) error
}

// Worker processes a single document job.
type Worker struct {
	seg          *Segmenter
	repo         Repository
	parserOpts   parser.Options
	persistBatch int
	timings      *PhaseTimings
	log          *slog.Logger
}

func NewWorker(seg *Segmenter, repo Repository, parserOpts parser.Options, persistBatch int, log *slog.Logger) *Worker {
	if persistBatch <= 0 {
		persistBatch = 10
	}
	return &Worker{
		seg:          seg,
		repo:         repo,
		parserOpts:   parserOpts,
		persistBatch: persistBatch,
		log:          log,
	}
}

// Process runs the full build pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	began := time.Now()
	mark := began

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parserOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	elements, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	log.Info("parsed document", "elements", len(elements))
	w.timings.Record(PhaseParse, time.Since(mark))

	// Phase 1.5: Dedup check
	existing, err := w.repo.FindDocumentByHash(ctx, job.ContentHash)
	switch {
	case err == nil && !job.Overwrite:
		log.Info("duplicate document, skipping", "existing_doc_id", existing.ID)
		job.SetDocID(existing.ID)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	case err != nil && !errors.Is(err, store.ErrNotFound):
		log.Warn("dedup check failed, proceeding", "error", err)
		existing = nil
	}

	// Phase 2: Structure
	job.SetStatus(StatusSegmenting, "segmenting")
	mark = time.Now()
	st, report, err := w.seg.Structure(elements)
	if err != nil {
		log.Error("segmentation failed", "error", err)
		job.AddError(fmt.Sprintf("segment: %s", err))
		job.SetStatus(StatusFailed, "segmenting")
		return
	}
	topics := st.Hierarchy.Topics()
	job.SetStructure(len(elements), len(st.Hierarchy.Sections), len(topics))
	w.timings.Record(PhaseSegment, time.Since(mark))

	// Phase 3: Pack
	job.SetStatus(StatusPacking, "packing")
	mark = time.Now()
	res, err := w.seg.Pack(ctx, st, report)
	if err != nil {
		log.Error("packing failed", "error", err)
		job.AddError(fmt.Sprintf("pack: %s", err))
		job.SetStatus(StatusFailed, "packing")
		return
	}
	job.SetPacked(len(res.Chunks), len(res.Failed))
	w.timings.Record(PhasePack, time.Since(mark))
	job.SetReport(&res.Report)
	hadErrors := len(res.Failed) > 0
	for _, te := range res.Failed {
		job.AddError(te.Error())
	}

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	mark = time.Now()
	doc, err := w.register(ctx, job, existing, elements, st.PageCount)
	if errors.Is(err, store.ErrDuplicate) {
		log.Info("document registered concurrently, skipping")
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}
	if err != nil {
		log.Error("register failed", "error", err)
		job.AddError(fmt.Sprintf("register: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	job.SetDocID(doc.ID)
	log = log.With("doc_id", doc.ID)

	err = withRetry(ctx, log, "replace_hierarchy", func() error {
		return w.repo.ReplaceHierarchy(ctx, doc.ID, st.Hierarchy.Sections, elements, st.Owner)
	})
	if err != nil {
		log.Error("hierarchy write failed", "error", err)
		job.AddError(fmt.Sprintf("hierarchy: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	stored := 0
	for i, batch := range BatchByTopic(res.Chunks, w.persistBatch) {
		err := withRetry(ctx, log, "insert_chunks", func() error {
			return w.repo.InsertChunks(ctx, doc.ID, batch)
		})
		if err != nil {
			log.Error("chunk batch failed", "batch", i, "chunks", len(batch), "error", err)
			job.AddError(fmt.Sprintf("batch %d: %s", i, err))
			hadErrors = true
			continue
		}
		stored += len(batch)
		job.AddStored(len(batch))
	}
	log.Info("storage complete", "stored", stored, "total", len(res.Chunks))
	w.timings.Record(PhaseStore, time.Since(mark))
	w.timings.Record(PhaseTotal, time.Since(began))

	if hadErrors && stored > 0 {
		job.SetStatus(StatusPartial, "done")
	} else if hadErrors {
		job.SetStatus(StatusFailed, "storing")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// register creates the document row, or refreshes it when overwriting.
func (w *Worker) register(ctx context.Context, job *Job, existing *store.Document, elements []doctree.Element, pages int) (*store.Document, error) {
	if existing != nil {
		existing.Filename = job.Filename
		existing.PageCount = pages
		existing.ElementCount = len(elements)
		if err := w.repo.UpdateDocument(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	doc := &store.Document{
		Filename:     job.Filename,
		ContentHash:  job.ContentHash,
		PageCount:    pages,
		ElementCount: len(elements),
	}
	if err := w.repo.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// BatchByTopic groups chunks so that each batch holds the chunks of at
// most n consecutive topics. A topic is never split across batches.
func BatchByTopic(chunks []doctree.ParentChunk, n int) [][]doctree.ParentChunk {
	if n <= 0 {
		n = 1
	}
	var batches [][]doctree.ParentChunk
	var cur []doctree.ParentChunk
	topics, last := 0, -1
	for _, c := range chunks {
		if c.SectionID != last {
			if topics == n {
				batches = append(batches, cur)
				cur, topics = nil, 0
			}
			topics++
			last = c.SectionID
		}
		cur = append(cur, c)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
