package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/guideseg/internal/config"
	"github.com/dgallion1/guideseg/internal/parser"
)

// Orchestrator manages the document build queue.
type Orchestrator struct {
	jobs    *JobStore
	timings *PhaseTimings
	queue   chan *Job
	seg     *Segmenter
	repo    Repository
	log     *slog.Logger
	cfg     config.Config

	cleanupEvery time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch the workers.
func NewOrchestrator(cfg config.Config, seg *Segmenter, repo Repository, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:         NewJobStore(cfg.JobTTL),
		timings:      NewPhaseTimings(cfg.JobTTL),
		queue:        make(chan *Job, cfg.MaxQueueSize),
		seg:          seg,
		repo:         repo,
		log:          log,
		cfg:          cfg,
		cleanupEvery: 5 * time.Minute,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	parserOpts := parser.Options{PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext}
	for i, n := 0, max(o.cfg.WorkerCount, 1); i < n; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.seg, o.repo, parserOpts, o.cfg.PersistBatch, o.log)
			w.timings = o.timings
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// TrackedJobs returns the number of jobs held in memory.
func (o *Orchestrator) TrackedJobs() int {
	return o.jobs.Len()
}

// Timings returns the rolling build phase durations.
func (o *Orchestrator) Timings() *PhaseTimings {
	return o.timings
}

// Segmenter returns the shared segmenter.
func (o *Orchestrator) Segmenter() *Segmenter {
	return o.seg
}

// SegmentOptionsFrom maps service configuration onto segmenter options.
func SegmentOptionsFrom(cfg config.Config) SegmentOptions {
	return SegmentOptions{
		TOCScanPages:    cfg.TOCScanPages,
		MaxHeadingDepth: cfg.MaxHeadingDepth,
		FallbackSpan:    cfg.FallbackSpan,
		Vocabulary:      cfg.Vocabulary,
		Chunking:        cfg.Chunking,
		PackWorkers:     cfg.PackWorkers,
		PageOnly:        !cfg.HeadingBoundaries,
	}
}
