package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/guideseg/internal/doctree"
	"github.com/dgallion1/guideseg/internal/export"
	"github.com/dgallion1/guideseg/internal/store"
)

// handleListDocuments lists every registered document.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		s.storeError(w, "list documents", err)
		return
	}
	if docs == nil {
		docs = []*store.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.storeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument deletes a document with its sections, elements and chunks.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		s.storeError(w, "delete document", err)
		return
	}
	s.log.Info("deleted document", "doc_id", docID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": docID})
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if _, err := s.store.GetDocument(r.Context(), docID); err != nil {
		s.storeError(w, "get document", err)
		return
	}
	sections, err := s.store.ListSections(r.Context(), docID)
	if err != nil {
		s.storeError(w, "list sections", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": sections, "count": len(sections)})
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	sectionID := 0
	if v := r.URL.Query().Get("section_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "section_id must be a positive integer", http.StatusBadRequest)
			return
		}
		sectionID = n
	}
	if _, err := s.store.GetDocument(r.Context(), docID); err != nil {
		s.storeError(w, "get document", err)
		return
	}
	chunks, err := s.store.ListChunks(r.Context(), docID, sectionID)
	if err != nil {
		s.storeError(w, "list chunks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks, "count": len(chunks)})
}

// ownedElement is an element with the section that owns its content.
// SectionID is 0 for orphans.
type ownedElement struct {
	doctree.Element
	SectionID int `json:"section_id"`
}

// handleListElements lists a document's stored elements. orphans=true keeps
// only the body elements no section claimed.
func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	orphansOnly := false
	if v := r.URL.Query().Get("orphans"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, "orphans must be a boolean", http.StatusBadRequest)
			return
		}
		orphansOnly = b
	}
	if _, err := s.store.GetDocument(r.Context(), docID); err != nil {
		s.storeError(w, "get document", err)
		return
	}
	elements, owner, err := s.store.ListElements(r.Context(), docID)
	if err != nil {
		s.storeError(w, "list elements", err)
		return
	}

	out := make([]ownedElement, 0, len(elements))
	for _, el := range elements {
		id := owner[el.Seq]
		if orphansOnly && (id != 0 || el.IsHeading() || el.IsRunning()) {
			continue
		}
		out = append(out, ownedElement{Element: el, SectionID: id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"elements": out, "count": len(out)})
}

// handleExport renders the section tree or the chunk review as Markdown.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID := chi.URLParam(r, "docID")
	kind := chi.URLParam(r, "kind")
	if !export.Valid(kind) {
		jsonError(w, "export kind must be tree or chunks", http.StatusBadRequest)
		return
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		s.storeError(w, "get document", err)
		return
	}
	sections, err := s.store.ListSections(ctx, docID)
	if err != nil {
		s.storeError(w, "list sections", err)
		return
	}

	var buf bytes.Buffer
	switch kind {
	case export.KindTree:
		err = export.Tree(&buf, doc.Filename, sections)
	case export.KindChunks:
		chunks, lerr := s.store.ListChunks(ctx, docID, 0)
		if lerr != nil {
			s.storeError(w, "list chunks", lerr)
			return
		}
		err = export.Chunks(&buf, docID, sections, chunks)
	}
	if err != nil {
		jsonError(w, "render export: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	s.log.Error("store error", "op", op, "error", err)
	jsonError(w, op+" failed", http.StatusInternalServerError)
}
