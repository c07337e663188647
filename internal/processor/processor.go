// Package processor executes the queue-delivered pipeline tasks: phase-1
// hand discovery for one segment and phase-2 detailed extraction for one
// segment batch. Tasks arrive at least once, so every path here must
// tolerate redelivery.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/railbird/handreel/internal/config"
	"github.com/railbird/handreel/internal/orchestrator"
	"github.com/railbird/handreel/internal/store"
	"github.com/railbird/handreel/internal/telemetry"
	"github.com/railbird/handreel/pkg/models"
	"github.com/railbird/handreel/pkg/timecode"
)

// Processor runs inference tasks against the configured analyzer and
// records results through the orchestrator.
type Processor struct {
	store        store.Store
	analyzer     models.VideoAnalyzer
	orchestrator *orchestrator.Service
	metrics      *telemetry.Metrics
	cfg          config.PipelineConfig
}

// NewProcessor creates a new Processor.
func NewProcessor(st store.Store, analyzer models.VideoAnalyzer, orch *orchestrator.Service, m *telemetry.Metrics, cfg config.PipelineConfig) *Processor {
	return &Processor{
		store:        st,
		analyzer:     analyzer,
		orchestrator: orch,
		metrics:      m,
		cfg:          cfg,
	}
}

// ProcessSegment runs phase-1 discovery for one segment. On success it
// bumps the completed counter and progress under the row lock, then
// folds the discovered hands into the accumulator. Inference failures
// are retried with exponential backoff; exhausted retries mark the
// segment failed but still trigger the completion check so the job can
// move on without it. Always returns nil for business failures — the
// queue must not redeliver a segment that already ran to a verdict.
func (p *Processor) ProcessSegment(ctx context.Context, payload models.SegmentTaskPayload) error {
	job, err := p.store.GetJob(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("segment task for unknown job", "job_id", payload.JobID)
			return nil
		}
		return fmt.Errorf("loading job: %w", err)
	}
	if job.Terminal() || job.Phase != models.PhaseOne {
		return nil
	}
	if seg := segmentAt(job, payload.SegmentIndex); seg == nil || seg.Status == models.SegmentCompleted || seg.Status == models.SegmentFailed {
		// Redelivered after this segment reached a verdict.
		return nil
	}

	if _, err := p.store.UpdateJobLocked(ctx, job.ID, func(j *models.AnalysisJob) error {
		if seg := segmentAt(j, payload.SegmentIndex); seg != nil && seg.Status == models.SegmentPending {
			seg.Status = models.SegmentProcessing
		}
		return nil
	}); err != nil {
		return fmt.Errorf("marking segment processing: %w", err)
	}

	hands, err := p.discoverWithRetry(ctx, payload)
	if err != nil {
		return p.failSegment(ctx, payload, err)
	}

	absolute := toAbsolute(hands, payload.Window.Start)

	if _, err := p.store.UpdateJobLocked(ctx, job.ID, func(j *models.AnalysisJob) error {
		seg := segmentAt(j, payload.SegmentIndex)
		if seg == nil || seg.Status == models.SegmentCompleted {
			return nil
		}
		seg.Status = models.SegmentCompleted
		seg.HandsFound = len(absolute)
		if j.CompletedSegments < j.TotalSegments {
			j.CompletedSegments++
		}
		bumpProgress(j, phase1Progress(j))
		return nil
	}); err != nil {
		return fmt.Errorf("recording segment completion: %w", err)
	}

	p.metrics.SegmentsProcessed.Inc()
	slog.Info("segment discovery complete",
		"job_id", payload.JobID,
		"segment", payload.SegmentIndex,
		"hands_found", len(absolute))

	return p.orchestrator.HandlePhase1Callback(ctx, payload.JobID, absolute)
}

// failSegment records an exhausted segment and still runs the completion
// check with an empty contribution so the job is not stuck waiting on it.
func (p *Processor) failSegment(ctx context.Context, payload models.SegmentTaskPayload, cause error) error {
	msg := cause.Error()
	if _, err := p.store.UpdateJobLocked(ctx, payload.JobID, func(j *models.AnalysisJob) error {
		seg := segmentAt(j, payload.SegmentIndex)
		if seg == nil || seg.Status == models.SegmentCompleted || seg.Status == models.SegmentFailed {
			return nil
		}
		seg.Status = models.SegmentFailed
		seg.ErrorMessage = msg
		if j.CompletedSegments+j.FailedSegments < j.TotalSegments {
			j.FailedSegments++
		}
		return nil
	}); err != nil {
		return fmt.Errorf("recording segment failure: %w", err)
	}

	p.metrics.SegmentsFailed.Inc()
	slog.Error("segment discovery failed",
		"job_id", payload.JobID,
		"segment", payload.SegmentIndex,
		"error", cause)

	return p.orchestrator.HandlePhase1Callback(ctx, payload.JobID, nil)
}

// ProcessPhase2Batch runs one extraction call for a segment's batch of
// deduplicated hand windows and persists the results. Hands whose start
// lands within the duplicate tolerance of an already persisted hand are
// skipped, which makes batch redelivery safe. The completed counter
// advances by the batch size whether or not extraction succeeded, so a
// permanently failing batch cannot wedge the job short of completion.
func (p *Processor) ProcessPhase2Batch(ctx context.Context, payload models.Phase2BatchPayload) error {
	job, err := p.store.GetJob(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("phase-2 task for unknown job", "job_id", payload.JobID)
			return nil
		}
		return fmt.Errorf("loading job: %w", err)
	}
	if job.Terminal() || job.Phase != models.PhaseTwo {
		return nil
	}

	extracted, err := p.extractWithRetry(ctx, payload)
	if err != nil {
		slog.Error("phase-2 extraction failed, advancing past batch",
			"job_id", payload.JobID,
			"segment", payload.SegmentIndex,
			"hands", len(payload.Hands),
			"error", err)
	} else {
		p.persistBatch(ctx, job, payload, extracted)
	}

	completed := false
	if _, err := p.store.UpdateJobLocked(ctx, payload.JobID, func(j *models.AnalysisJob) error {
		if j.Phase != models.PhaseTwo || j.Terminal() {
			return nil
		}
		j.Phase2CompletedHands += len(payload.Hands)
		if j.Phase2CompletedHands > j.Phase2TotalHands {
			j.Phase2CompletedHands = j.Phase2TotalHands
		}
		bumpProgress(j, phase2Progress(j))
		completed = j.Phase2CompletedHands >= j.Phase2TotalHands
		return nil
	}); err != nil {
		return fmt.Errorf("recording batch completion: %w", err)
	}

	if completed {
		return p.orchestrator.CompleteJob(ctx, payload.JobID)
	}
	return nil
}

// persistBatch converts extracted hands to absolute seconds and writes
// the ones that are not near-duplicates of already persisted hands.
func (p *Processor) persistBatch(ctx context.Context, job *models.AnalysisJob, payload models.Phase2BatchPayload, extracted []models.ExtractedHand) {
	for _, h := range extracted {
		relStart, err := timecode.Parse(h.Start)
		if err != nil {
			slog.Warn("dropping extracted hand with unparseable start",
				"job_id", job.ID, "start", h.Start)
			continue
		}
		relEnd, err := timecode.Parse(h.End)
		if err != nil {
			relEnd = relStart
		}

		absStart := payload.Window.Start + relStart
		absEnd := payload.Window.Start + relEnd

		if _, err := p.store.FindHandNear(ctx, job.StreamID, absStart, p.cfg.DuplicateTolerance); err == nil {
			p.metrics.HandsDeduped.Inc()
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			slog.Error("duplicate lookup failed, skipping hand",
				"job_id", job.ID, "ts_start", absStart, "error", err)
			continue
		}

		hand := handFromExtraction(job, h, absStart, absEnd)
		hand.AIMeta.Provider = p.analyzer.Name()

		if err := p.store.CreateHand(ctx, hand); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				p.metrics.HandsDeduped.Inc()
				continue
			}
			slog.Error("persisting hand failed",
				"job_id", job.ID, "ts_start", absStart, "error", err)
			continue
		}
		p.metrics.HandsPersisted.Inc()
	}
}

// discoverWithRetry wraps phase-1 inference in exponential backoff.
func (p *Processor) discoverWithRetry(ctx context.Context, payload models.SegmentTaskPayload) ([]models.HandWindow, error) {
	var hands []models.HandWindow
	err := p.withRetry(ctx, func() error {
		var err error
		hands, err = p.analyzer.DiscoverHands(ctx, payload.Video, payload.Window)
		p.countInference("phase1", err)
		return err
	})
	return hands, err
}

// extractWithRetry wraps phase-2 inference in exponential backoff.
func (p *Processor) extractWithRetry(ctx context.Context, payload models.Phase2BatchPayload) ([]models.ExtractedHand, error) {
	var extracted []models.ExtractedHand
	err := p.withRetry(ctx, func() error {
		var err error
		extracted, err = p.analyzer.ExtractHands(ctx, payload.Video, payload.Window, payload.Hands)
		p.countInference("phase2", err)
		return err
	})
	return extracted, err
}

// withRetry runs fn up to MaxAttempts times, sleeping 2^attempt seconds
// between attempts. Context cancellation aborts the wait.
func (p *Processor) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts: %w", p.cfg.MaxAttempts, lastErr)
}

func (p *Processor) countInference(phase string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.InferenceCalls.WithLabelValues(phase, outcome).Inc()
}

// toAbsolute rebases window-relative timecodes onto the video timeline.
// Unparseable entries are dropped.
func toAbsolute(hands []models.HandWindow, windowStart int) []models.HandWindow {
	out := make([]models.HandWindow, 0, len(hands))
	for _, h := range hands {
		start, err := timecode.Parse(h.Start)
		if err != nil {
			slog.Warn("dropping discovered hand with unparseable start", "start", h.Start)
			continue
		}
		end, err := timecode.Parse(h.End)
		if err != nil {
			end = start
		}
		out = append(out, models.HandWindow{
			Number: h.Number,
			Start:  timecode.Format(windowStart + start),
			End:    timecode.Format(windowStart + end),
		})
	}
	return out
}

func segmentAt(j *models.AnalysisJob, index int) *models.SegmentInfo {
	for i := range j.Segments {
		if j.Segments[i].Index == index {
			return &j.Segments[i]
		}
	}
	return nil
}

// phase1Progress maps segment completion onto the 0..30 progress band.
func phase1Progress(j *models.AnalysisJob) int {
	if j.TotalSegments == 0 {
		return 0
	}
	return int(math.Round(float64(j.CompletedSegments) / float64(j.TotalSegments) * 30))
}

// phase2Progress maps hand extraction onto the 30..100 progress band.
func phase2Progress(j *models.AnalysisJob) int {
	if j.Phase2TotalHands == 0 {
		return 30
	}
	return int(math.Round(30 + float64(j.Phase2CompletedHands)/float64(j.Phase2TotalHands)*70))
}

// bumpProgress moves progress toward target without ever going backward.
func bumpProgress(j *models.AnalysisJob, target int) {
	if target > 100 {
		target = 100
	}
	if target > j.Progress {
		j.Progress = target
	}
}

func handFromExtraction(job *models.AnalysisJob, h models.ExtractedHand, absStart, absEnd int) *models.Hand {
	return &models.Hand{
		ID:           uuid.New(),
		StreamID:     job.StreamID,
		JobID:        job.ID,
		Number:       h.Number,
		Board:        h.Board,
		PotSize:      h.PotSize,
		Players:      h.Players,
		Actions:      h.Actions,
		Winners:      h.Winners,
		VideoTsStart: absStart,
		VideoTsEnd:   absEnd,
		Tags:         h.Tags,
		AIMeta:       h.AIMeta,
		CreatedAt:    time.Now().UTC(),
	}
}
