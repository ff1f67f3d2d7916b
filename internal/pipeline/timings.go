package pipeline

import (
	"sort"
	"sync"
	"time"
)

// Build phases recorded by PhaseTimings.
const (
	PhaseParse   = "parse"
	PhaseSegment = "segment"
	PhasePack    = "pack"
	PhaseStore   = "store"
	PhaseTotal   = "total"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// TimingSnapshot is a point-in-time aggregate of one phase's durations.
type TimingSnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// PhaseTimings tracks recent build phase durations within a rolling window.
// A nil *PhaseTimings ignores records.
type PhaseTimings struct {
	mu      sync.Mutex
	samples map[string][]sample
	maxAge  time.Duration
}

func NewPhaseTimings(maxAge time.Duration) *PhaseTimings {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &PhaseTimings{
		samples: make(map[string][]sample),
		maxAge:  maxAge,
	}
}

func (t *PhaseTimings) Record(phase string, d time.Duration) {
	if t == nil {
		return
	}
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[phase] = append(prune(t.samples[phase], now.Add(-t.maxAge)), sample{
		timestamp:  now,
		durationMs: ms,
	})
}

// Snapshot aggregates every phase with samples inside the window.
func (t *PhaseTimings) Snapshot() map[string]TimingSnapshot {
	out := make(map[string]TimingSnapshot)
	if t == nil {
		return out
	}
	cutoff := time.Now().Add(-t.maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	for phase, samples := range t.samples {
		samples = prune(samples, cutoff)
		t.samples[phase] = samples
		if len(samples) == 0 {
			continue
		}
		out[phase] = aggregate(samples)
	}
	return out
}

func aggregate(samples []sample) TimingSnapshot {
	values := make([]int64, 0, len(samples))
	var sum int64
	for _, sm := range samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return TimingSnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

// prune drops samples older than cutoff in place.
func prune(samples []sample, cutoff time.Time) []sample {
	n := 0
	for _, sm := range samples {
		if !sm.timestamp.Before(cutoff) {
			samples[n] = sm
			n++
		}
	}
	return samples[:n]
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[upper])
	return lo + ((hi - lo) * weight)
}
