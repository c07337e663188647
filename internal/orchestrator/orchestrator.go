// Package orchestrator drives the two-phase analysis pipeline: it plans
// segments, fans out phase-1 tasks, accumulates and deduplicates
// discovered hands, and fans out phase-2 extraction batches.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/railbird/handreel/internal/config"
	"github.com/railbird/handreel/internal/dispatch"
	"github.com/railbird/handreel/internal/finalize"
	"github.com/railbird/handreel/internal/store"
	"github.com/railbird/handreel/internal/telemetry"
	"github.com/railbird/handreel/pkg/handmerge"
	"github.com/railbird/handreel/pkg/models"
	"github.com/railbird/handreel/pkg/timecode"
)

// Internal task paths. The router must serve these behind the shared
// internal token.
const (
	PathAnalyzeSegment     = "/internal/v1/analyze-segment"
	PathAnalyzePhase2Batch = "/internal/v1/analyze-phase2-batch"
)

// Service coordinates job lifecycle and task fan-out.
type Service struct {
	store      store.Store
	dispatcher dispatch.Dispatcher
	finalizer  *finalize.Finalizer
	metrics    *telemetry.Metrics
	cfg        config.PipelineConfig
}

// NewService creates a new orchestrator Service.
func NewService(st store.Store, d dispatch.Dispatcher, fin *finalize.Finalizer, m *telemetry.Metrics, cfg config.PipelineConfig) *Service {
	return &Service{
		store:      st,
		dispatcher: d,
		finalizer:  fin,
		metrics:    m,
		cfg:        cfg,
	}
}

// CreateJobParams holds validated parameters for a new analysis job.
// Either Segments (explicit windows) or DurationSeconds (auto-planned)
// must be supplied.
type CreateJobParams struct {
	StreamID        string
	TournamentID    *string
	EventID         *string
	Video           models.VideoReference
	Segments        []models.TimeWindow
	DurationSeconds int
}

// CreateJob validates the request, writes the job document, enqueues one
// phase-1 task per segment with a staggered schedule, and flips the job
// to analyzing. It returns without waiting for any segment to run.
func (s *Service) CreateJob(ctx context.Context, params CreateJobParams) (*models.AnalysisJob, error) {
	if params.StreamID == "" {
		return nil, fmt.Errorf("stream_id is required")
	}
	if err := validateVideo(params.Video); err != nil {
		return nil, err
	}

	windows := params.Segments
	if len(windows) == 0 {
		if params.DurationSeconds <= 0 {
			return nil, fmt.Errorf("either segments or duration_seconds is required")
		}
		windows = PlanSegments(params.DurationSeconds, int(s.cfg.SegmentLength.Seconds()), int(s.cfg.SegmentOverlap.Seconds()))
	} else if err := ValidateSegments(windows); err != nil {
		return nil, err
	}

	segments := make([]models.SegmentInfo, len(windows))
	for i, w := range windows {
		segments[i] = models.SegmentInfo{
			Index:  i,
			Start:  w.Start,
			End:    w.End,
			Status: models.SegmentPending,
		}
	}

	job := &models.AnalysisJob{
		ID:            uuid.New(),
		StreamID:      params.StreamID,
		TournamentID:  params.TournamentID,
		EventID:       params.EventID,
		Video:         params.Video,
		Status:        models.JobStatusPending,
		Phase:         models.PhaseOne,
		TotalSegments: len(segments),
		Segments:      segments,
		Phase1Hands:   []models.HandWindow{},
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	for i, w := range windows {
		payload := models.SegmentTaskPayload{
			JobID:        job.ID,
			SegmentIndex: i,
			Video:        params.Video,
			Window:       w,
		}
		delay := time.Duration(i) * s.cfg.DispatchStagger
		if err := s.dispatcher.Enqueue(ctx, PathAnalyzeSegment, payload, delay); err != nil {
			return nil, fmt.Errorf("enqueue segment %d: %w", i, err)
		}
		s.metrics.TasksDispatched.WithLabelValues(PathAnalyzeSegment).Inc()
	}

	now := time.Now().UTC()
	job, err := s.store.UpdateJobLocked(ctx, job.ID, func(j *models.AnalysisJob) error {
		j.Status = models.JobStatusAnalyzing
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("starting job: %w", err)
	}

	_ = s.store.UpsertStreamStatus(ctx, job.StreamID, models.JobStatusAnalyzing, nil)

	slog.Info("analysis job created",
		"job_id", job.ID,
		"stream_id", job.StreamID,
		"segments", job.TotalSegments,
		"source_type", job.Video.SourceType)

	return job, nil
}

// HandlePhase1Callback folds one segment's discovered hands (absolute
// timecodes) into the job accumulator, deduplicating the whole
// accumulator with the cross-segment threshold, and re-checks phase
// completion. When every segment has reported it transitions the job to
// phase 2 and fans out one extraction batch per segment that contains
// deduplicated hands. Safe to call again for a redelivered segment: the
// merge is idempotent and the phase transition fires once.
func (s *Service) HandlePhase1Callback(ctx context.Context, jobID uuid.UUID, hands []models.HandWindow) error {
	transitioned := false
	job, err := s.store.UpdateJobLocked(ctx, jobID, func(j *models.AnalysisJob) error {
		if j.Phase != models.PhaseOne || j.Terminal() {
			return nil
		}

		merged := handmerge.MergeHands(append(j.Phase1Hands, hands...), s.cfg.CrossSegmentMerge)
		j.Phase1Hands = merged

		if j.SegmentsDone() {
			j.Phase = models.PhaseTwo
			j.Phase2TotalHands = len(merged)
			if j.Progress < 30 {
				j.Progress = 30
			}
			transitioned = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("accumulating phase-1 hands: %w", err)
	}
	if !transitioned {
		return nil
	}

	slog.Info("phase 1 complete",
		"job_id", job.ID,
		"deduped_hands", job.Phase2TotalHands,
		"failed_segments", job.FailedSegments)

	if job.Phase2TotalHands == 0 {
		return s.CompleteJob(ctx, job.ID)
	}

	return s.dispatchPhase2(ctx, job)
}

// dispatchPhase2 groups the deduplicated accumulator by containing
// segment window, converts each group's timecodes to be relative to its
// window start, and enqueues one batch task per non-empty group.
func (s *Service) dispatchPhase2(ctx context.Context, job *models.AnalysisJob) error {
	groups := make(map[int][]models.HandWindow)

	for _, h := range job.Phase1Hands {
		start, err := timecode.Parse(h.Start)
		if err != nil {
			slog.Warn("dropping hand with unparseable timecode", "job_id", job.ID, "start", h.Start)
			continue
		}

		seg := containingSegment(job.Segments, start)
		if seg == nil {
			slog.Warn("dropping hand outside all segment windows",
				"job_id", job.ID, "start", h.Start)
			continue
		}

		end, err := timecode.Parse(h.End)
		if err != nil {
			end = start
		}
		groups[seg.Index] = append(groups[seg.Index], models.HandWindow{
			Number: h.Number,
			Start:  timecode.Format(start - seg.Start),
			End:    timecode.Format(end - seg.Start),
		})
	}

	for _, seg := range job.Segments {
		batch := groups[seg.Index]
		if len(batch) == 0 {
			continue
		}
		payload := models.Phase2BatchPayload{
			JobID:        job.ID,
			SegmentIndex: seg.Index,
			Video:        job.Video,
			Window:       models.TimeWindow{Start: seg.Start, End: seg.End},
			Hands:        batch,
		}
		if err := s.dispatcher.Enqueue(ctx, PathAnalyzePhase2Batch, payload, 0); err != nil {
			return fmt.Errorf("enqueue phase-2 batch for segment %d: %w", seg.Index, err)
		}
		s.metrics.TasksDispatched.WithLabelValues(PathAnalyzePhase2Batch).Inc()
	}

	// Hands dropped as out-of-window shrink the work actually dispatched;
	// lower the total so the completion check still fires.
	dispatched := 0
	for _, batch := range groups {
		dispatched += len(batch)
	}
	if dispatched < job.Phase2TotalHands {
		_, err := s.store.UpdateJobLocked(ctx, job.ID, func(j *models.AnalysisJob) error {
			j.Phase2TotalHands = dispatched
			return nil
		})
		if err != nil {
			return fmt.Errorf("adjusting phase-2 total: %w", err)
		}
		if dispatched == 0 {
			return s.CompleteJob(ctx, job.ID)
		}
	}
	return nil
}

// CompleteJob transitions a job to its terminal completed state, runs
// finalization for the stream, and writes the result through to the
// stream catalog. Idempotent: a job already terminal is left alone.
func (s *Service) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	now := time.Now().UTC()
	var already bool
	job, err := s.store.UpdateJobLocked(ctx, jobID, func(j *models.AnalysisJob) error {
		if j.Terminal() {
			already = true
			return nil
		}
		j.Status = models.JobStatusCompleted
		j.Phase = models.PhaseCompleted
		j.Progress = 100
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	if already {
		return nil
	}

	count, err := s.finalizer.Normalize(ctx, job.StreamID)
	if err != nil {
		// The job is complete; finalization failure must not fail the
		// task. Hands stay provisionally numbered.
		slog.Error("finalization failed", "job_id", job.ID, "stream_id", job.StreamID, "error", err)
		_ = s.store.UpsertStreamStatus(ctx, job.StreamID, models.JobStatusCompleted, nil)
		return nil
	}

	if err := s.store.UpsertStreamStatus(ctx, job.StreamID, models.JobStatusCompleted, &count); err != nil {
		slog.Error("stream status write-through failed", "stream_id", job.StreamID, "error", err)
	}

	slog.Info("analysis job completed", "job_id", job.ID, "stream_id", job.StreamID, "hands", count)
	return nil
}

// containingSegment returns the first segment whose window contains the
// given absolute second, or nil.
func containingSegment(segments []models.SegmentInfo, second int) *models.SegmentInfo {
	for i := range segments {
		if second >= segments[i].Start && second < segments[i].End {
			return &segments[i]
		}
	}
	return nil
}

func validateVideo(v models.VideoReference) error {
	switch v.SourceType {
	case models.SourceStorage:
		if v.Bucket == "" || v.Object == "" {
			return fmt.Errorf("storage video requires bucket and object")
		}
	case models.SourceYouTube:
		if v.URL == "" {
			return fmt.Errorf("youtube video requires url")
		}
	default:
		return fmt.Errorf("unknown video source type %q", v.SourceType)
	}
	return nil
}
