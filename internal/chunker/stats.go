package chunker

import (
	"sort"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// Distribution summarizes chunk token counts.
type Distribution struct {
	Count      int     `json:"count"`
	Total      int     `json:"total_tokens"`
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	Mean       float64 `json:"mean"`
	P50        float64 `json:"p50"`
	P95        float64 `json:"p95"`
	OverTarget int     `json:"over_target"` // Above SoftTarget
	UnderMin   int     `json:"under_min"`   // Below MinTarget
	OverMax    int     `json:"over_max"`    // Above HardMax; always 0 for packed output
}

// Stats computes the token distribution of chunks against cfg.
func Stats(chunks []doctree.ParentChunk, cfg Config) Distribution {
	if len(chunks) == 0 {
		return Distribution{}
	}
	values := make([]int, 0, len(chunks))
	d := Distribution{Count: len(chunks)}
	for _, c := range chunks {
		values = append(values, c.TokenCount)
		d.Total += c.TokenCount
		switch {
		case c.TokenCount > cfg.HardMax:
			d.OverMax++
			d.OverTarget++
		case c.TokenCount > cfg.SoftTarget:
			d.OverTarget++
		case c.TokenCount < cfg.MinTarget:
			d.UnderMin++
		}
	}
	sort.Ints(values)

	d.Min = values[0]
	d.Max = values[len(values)-1]
	d.Mean = float64(d.Total) / float64(len(values))
	d.P50 = percentile(values, 50)
	d.P95 = percentile(values, 95)
	return d
}

func percentile(sorted []int, pct float64) float64 {
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
