package pipeline

import (
	"context"
	"testing"

	"github.com/dgallion1/guideseg/internal/parser"
	"github.com/dgallion1/guideseg/internal/store"
)

const guideMarkdown = `# 1 INFECTIONS

This chapter covers common infections.

## 1.1 Malaria

Malaria is transmitted by mosquitoes.

## 1.2 Typhoid

Typhoid spreads through water.
`

func newTestWorker(t *testing.T) (*Worker, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{Driver: store.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	w := NewWorker(newTestSegmenter(t, SegmentOptions{}), st, parser.Options{}, 1, testLogger(t))
	return w, st
}

func TestWorker_Process(t *testing.T) {
	w, st := newTestWorker(t)
	ctx := context.Background()

	job := NewJob("job-1", "guide.md", []byte(guideMarkdown), false)
	w.Process(ctx, job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if snap.DocID == "" || snap.Report == nil {
		t.Fatalf("expected doc ID and report, got %+v", snap)
	}
	if snap.Progress.ChunksStored != 2 || snap.Progress.BatchesStored != 2 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}

	doc, err := st.GetDocument(ctx, snap.DocID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.SectionCount != 3 || doc.ChunkCount != 2 || doc.PageCount != 3 {
		t.Errorf("unexpected document %+v", doc)
	}
	chunks, _ := st.ListChunks(ctx, doc.ID, 0)
	if len(chunks) != 2 || chunks[0].Content != "Malaria is transmitted by mosquitoes." {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}

func TestWorker_DuplicateAndOverwrite(t *testing.T) {
	w, st := newTestWorker(t)
	ctx := context.Background()

	first := NewJob("job-1", "guide.md", []byte(guideMarkdown), false)
	w.Process(ctx, first)
	docID := first.Snapshot().DocID

	dup := NewJob("job-2", "copy.md", []byte(guideMarkdown), false)
	w.Process(ctx, dup)
	if s := dup.Snapshot(); s.Status != StatusDupSkipped || s.DocID != docID {
		t.Fatalf("expected duplicate of %s, got %+v", docID, s)
	}

	again := NewJob("job-3", "renamed.md", []byte(guideMarkdown), true)
	w.Process(ctx, again)
	s := again.Snapshot()
	if s.Status != StatusCompleted || s.DocID != docID {
		t.Fatalf("overwrite should rebuild %s, got %+v", docID, s)
	}

	docs, _ := st.ListDocuments(ctx)
	if len(docs) != 1 || docs[0].Filename != "renamed.md" || docs[0].ChunkCount != 2 {
		t.Errorf("unexpected documents after overwrite: %+v", docs)
	}
}

func TestWorker_Failures(t *testing.T) {
	w, _ := newTestWorker(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		data     string
		phase    string
	}{
		{"unsupported", "image.png", "x", "parsing"},
		{"bad json", "elements.json", "{", "parsing"},
		{"no elements", "empty.md", "", "segmenting"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(tt.name, tt.filename, []byte(tt.data), false)
			w.Process(ctx, job)
			s := job.Snapshot()
			if s.Status != StatusFailed || s.Phase != tt.phase {
				t.Errorf("status/phase = %s/%s, want failed/%s", s.Status, s.Phase, tt.phase)
			}
			if len(s.Progress.Errors) == 0 {
				t.Error("expected a recorded error")
			}
		})
	}
}
