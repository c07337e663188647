package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/railbird/handreel/pkg/models"
)

// JobStatus loads a job and lazily applies the stall check: an analyzing
// job with zero completed segments past the stall timeout is force-failed
// so clients are not left polling forever. There is no background
// monitor; the check runs on read.
func (s *Service) JobStatus(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !s.stalled(job) {
		return job, nil
	}

	elapsed := time.Since(stallClock(job)).Round(time.Minute)
	msg := fmt.Sprintf("analysis stalled: no segment completed after %d minutes", int(elapsed.Minutes()))

	now := time.Now().UTC()
	failed := false
	job, err = s.store.UpdateJobLocked(ctx, jobID, func(j *models.AnalysisJob) error {
		// Re-check under the lock; a segment may have landed since the read.
		if !s.stalled(j) {
			return nil
		}
		j.Status = models.JobStatusFailed
		j.ErrorMessage = &msg
		j.CompletedAt = &now
		failed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failing stalled job: %w", err)
	}
	if failed {
		s.metrics.JobsStalled.Inc()
		slog.Warn("job force-failed by stall check", "job_id", job.ID, "stream_id", job.StreamID, "message", msg)
		_ = s.store.UpsertStreamStatus(ctx, job.StreamID, models.JobStatusFailed, nil)
	}

	return job, nil
}

func (s *Service) stalled(j *models.AnalysisJob) bool {
	return j.Status == models.JobStatusAnalyzing &&
		j.CompletedSegments == 0 &&
		time.Since(stallClock(j)) > s.cfg.StallTimeout
}

// stallClock is the reference time for the stall window.
func stallClock(j *models.AnalysisJob) time.Time {
	if j.StartedAt != nil {
		return *j.StartedAt
	}
	return j.CreatedAt
}
