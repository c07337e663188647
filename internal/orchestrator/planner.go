package orchestrator

import (
	"fmt"

	"github.com/railbird/handreel/pkg/models"
)

// PlanSegments splits a video of the given duration (seconds) into
// overlapping windows. Adjacent windows share `overlap` seconds so hands
// straddling a boundary are seen whole by at least one segment. A tail
// shorter than the overlap is already covered by the previous window and
// does not get its own segment.
func PlanSegments(duration int, length, overlap int) []models.TimeWindow {
	if duration <= 0 {
		return nil
	}
	if duration <= length {
		return []models.TimeWindow{{Start: 0, End: duration}}
	}

	stride := length - overlap
	var windows []models.TimeWindow
	for start := 0; start < duration; start += stride {
		if start > 0 && start+overlap >= duration {
			break
		}
		end := start + length
		if end > duration {
			end = duration
		}
		windows = append(windows, models.TimeWindow{Start: start, End: end})
	}
	return windows
}

// ValidateSegments checks explicitly supplied windows: each must be a
// positive range, and they must be sorted by start.
func ValidateSegments(windows []models.TimeWindow) error {
	if len(windows) == 0 {
		return fmt.Errorf("at least one segment is required")
	}
	for i, w := range windows {
		if w.Start < 0 || w.End <= w.Start {
			return fmt.Errorf("segment %d: invalid range [%d, %d)", i, w.Start, w.End)
		}
		if i > 0 && w.Start < windows[i-1].Start {
			return fmt.Errorf("segment %d: segments must be sorted by start", i)
		}
	}
	return nil
}
