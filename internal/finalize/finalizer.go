// Package finalize normalizes a stream's hands after analysis completes:
// near-duplicate hands surviving the in-flight dedup checks are removed
// and the survivors are renumbered sequentially by video position.
package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/railbird/handreel/internal/store"
	"github.com/railbird/handreel/internal/telemetry"
	"github.com/railbird/handreel/pkg/models"
)

// Finalizer runs the post-completion normalization pass.
type Finalizer struct {
	store     store.Store
	metrics   *telemetry.Metrics
	tolerance int // seconds; hands starting this close are duplicates
}

// NewFinalizer creates a Finalizer with the given duplicate tolerance.
func NewFinalizer(st store.Store, m *telemetry.Metrics, tolerance int) *Finalizer {
	return &Finalizer{store: st, metrics: m, tolerance: tolerance}
}

// Normalize loads every hand for the stream, removes near-duplicates
// (keeping the hand with the later end, on the theory that it saw the
// hand play out further), renumbers the survivors 1..K in video order,
// and returns the final hand count. The pass is deterministic: running
// it twice yields the same numbering and no further deletions.
func (f *Finalizer) Normalize(ctx context.Context, streamID string) (int, error) {
	hands, err := f.store.ListHandsByStream(ctx, streamID)
	if err != nil {
		return 0, fmt.Errorf("listing hands: %w", err)
	}
	if len(hands) == 0 {
		return 0, nil
	}

	sortHands(hands)
	survivors, duplicates := dedupe(hands, f.tolerance)

	if len(duplicates) > 0 {
		if err := f.store.DeleteHands(ctx, duplicates); err != nil {
			return 0, fmt.Errorf("deleting duplicate hands: %w", err)
		}
		f.metrics.HandsDeduped.Add(float64(len(duplicates)))
	}

	numbers := make([]store.HandNumber, 0, len(survivors))
	for i, h := range survivors {
		if h.Number == i+1 {
			continue
		}
		numbers = append(numbers, store.HandNumber{ID: h.ID, Number: i + 1})
	}
	if len(numbers) > 0 {
		if err := f.store.UpdateHandNumbers(ctx, numbers); err != nil {
			return 0, fmt.Errorf("renumbering hands: %w", err)
		}
	}

	slog.Info("stream hands normalized",
		"stream_id", streamID,
		"hands", len(survivors),
		"duplicates_removed", len(duplicates))

	return len(survivors), nil
}

// sortHands orders hands by video position. Ties break on end then id so
// the pass is stable across runs.
func sortHands(hands []*models.Hand) {
	sort.Slice(hands, func(i, j int) bool {
		a, b := hands[i], hands[j]
		if a.VideoTsStart != b.VideoTsStart {
			return a.VideoTsStart < b.VideoTsStart
		}
		if a.VideoTsEnd != b.VideoTsEnd {
			return a.VideoTsEnd < b.VideoTsEnd
		}
		return a.ID.String() < b.ID.String()
	})
}

// dedupe walks hands sorted by start and clusters those starting within
// tolerance seconds of the cluster anchor. Each cluster keeps the hand
// with the latest end; the rest are returned for deletion.
func dedupe(hands []*models.Hand, tolerance int) (survivors []*models.Hand, duplicates []uuid.UUID) {
	i := 0
	for i < len(hands) {
		anchor := hands[i]
		best := anchor

		j := i + 1
		for j < len(hands) && hands[j].VideoTsStart-anchor.VideoTsStart <= tolerance {
			if hands[j].VideoTsEnd > best.VideoTsEnd {
				best = hands[j]
			}
			j++
		}

		for k := i; k < j; k++ {
			if hands[k].ID != best.ID {
				duplicates = append(duplicates, hands[k].ID)
			}
		}
		survivors = append(survivors, best)
		i = j
	}
	return survivors, duplicates
}
