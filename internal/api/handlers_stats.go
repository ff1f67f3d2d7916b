package api

import (
	"net/http"

	"github.com/dgallion1/guideseg/internal/chunker"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.store.Counts(r.Context())
	if err != nil {
		s.storeError(w, "count rows", err)
		return
	}

	mean := 0.0
	if totals.Chunks > 0 {
		mean = float64(totals.Tokens) / float64(totals.Chunks)
	}
	var cfg chunker.Config
	if seg := s.orchestrator.Segmenter(); seg != nil {
		cfg = seg.Packer().Config()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"totals":            totals,
		"mean_chunk_tokens": mean,
		"chunking":          cfg,
		"queue_depth":       s.orchestrator.QueueDepth(),
		"tracked_jobs":      s.orchestrator.TrackedJobs(),
		"build_timings":     s.orchestrator.Timings().Snapshot(),
		"database_driver":   s.store.Driver(),
	})
}
