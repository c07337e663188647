// Package handmerge clusters hand-timestamp candidates into a
// deduplicated, sorted, renumbered set. Overlapping video segments
// detect the same hand at slightly offset timestamps; clustering by
// start-time proximity collapses those duplicates.
package handmerge

import (
	"sort"

	"github.com/railbird/handreel/pkg/models"
	"github.com/railbird/handreel/pkg/timecode"
)

// Span is a hand boundary in absolute seconds.
type Span struct {
	Start int
	End   int
}

// Cluster walks spans in ascending start order maintaining a current
// cluster. A span starting strictly less than threshold seconds after
// the cluster's start is merged into it by widening: the earlier start
// and the later end win, favoring full hand coverage over precision.
// Spans exactly threshold seconds apart open a new cluster. Idempotent:
// clustering the output again is a no-op for any threshold ≥ 1.
func Cluster(spans []Span, threshold int) []Span {
	if len(spans) == 0 {
		return []Span{}
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		cur := &out[len(out)-1]
		if s.Start-cur.Start < threshold {
			if s.End > cur.End {
				cur.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// MergeHands parses the candidates' timecodes, clusters them with the
// given threshold, and returns the clusters renumbered 1..N in timestamp
// order. Candidates with unparseable timecodes are dropped.
func MergeHands(hands []models.HandWindow, threshold int) []models.HandWindow {
	spans := make([]Span, 0, len(hands))
	for _, h := range hands {
		start, err := timecode.Parse(h.Start)
		if err != nil {
			continue
		}
		end, err := timecode.Parse(h.End)
		if err != nil {
			continue
		}
		spans = append(spans, Span{Start: start, End: end})
	}

	clustered := Cluster(spans, threshold)

	out := make([]models.HandWindow, len(clustered))
	for i, s := range clustered {
		out[i] = models.HandWindow{
			Number: i + 1,
			Start:  timecode.Format(s.Start),
			End:    timecode.Format(s.End),
		}
	}
	return out
}
