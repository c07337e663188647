package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railbird/handreel/internal/config"
	"github.com/railbird/handreel/internal/dispatch/dispatchtest"
	"github.com/railbird/handreel/internal/finalize"
	"github.com/railbird/handreel/internal/store/storetest"
	"github.com/railbird/handreel/internal/telemetry"
	"github.com/railbird/handreel/pkg/models"
)

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		SegmentLength:      30 * time.Minute,
		SegmentOverlap:     5 * time.Minute,
		CrossSegmentMerge:  30,
		DuplicateTolerance: 5,
		MaxAttempts:        3,
		StallTimeout:       30 * time.Minute,
		DispatchStagger:    2 * time.Second,
	}
}

func newTestService(t *testing.T) (*Service, *storetest.MemStore, *dispatchtest.Recorder) {
	t.Helper()
	st := storetest.New()
	rec := &dispatchtest.Recorder{}
	m := telemetry.NewMetrics()
	fin := finalize.NewFinalizer(st, m, 5)
	return NewService(st, rec, fin, m, testPipelineConfig()), st, rec
}

func storageVideo() models.VideoReference {
	return models.VideoReference{
		SourceType: models.SourceStorage,
		Bucket:     "tournament-vods",
		Object:     "wsop/main-event-day3.mp4",
	}
}

func TestCreateJobAutoPlans(t *testing.T) {
	svc, st, rec := newTestService(t)

	job, err := svc.CreateJob(context.Background(), CreateJobParams{
		StreamID:        "stream-1",
		Video:           storageVideo(),
		DurationSeconds: 3900,
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusAnalyzing, job.Status)
	assert.Equal(t, models.PhaseOne, job.Phase)
	assert.Equal(t, 3, job.TotalSegments)
	require.NotNil(t, job.StartedAt)

	tasks := rec.ByPath(PathAnalyzeSegment)
	require.Len(t, tasks, 3)

	var first models.SegmentTaskPayload
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &first))
	assert.Equal(t, job.ID, first.JobID)
	assert.Equal(t, 0, first.SegmentIndex)
	assert.Equal(t, models.TimeWindow{Start: 0, End: 1800}, first.Window)

	// Fan-out is staggered so segments don't hit the provider at once.
	assert.Equal(t, time.Duration(0), tasks[0].Delay)
	assert.Equal(t, 2*time.Second, tasks[1].Delay)
	assert.Equal(t, 4*time.Second, tasks[2].Delay)

	assert.Equal(t, models.JobStatusAnalyzing, st.Streams["stream-1"].AnalysisStatus)
}

func TestCreateJobExplicitSegments(t *testing.T) {
	svc, _, rec := newTestService(t)

	job, err := svc.CreateJob(context.Background(), CreateJobParams{
		StreamID: "stream-1",
		Video:    storageVideo(),
		Segments: []models.TimeWindow{{Start: 600, End: 2400}, {Start: 2100, End: 3000}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, job.TotalSegments)
	assert.Equal(t, 600, job.Segments[0].Start)
	assert.Equal(t, models.SegmentPending, job.Segments[0].Status)
	assert.Len(t, rec.ByPath(PathAnalyzeSegment), 2)
}

func TestCreateJobValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params CreateJobParams
	}{
		{
			name:   "missing stream id",
			params: CreateJobParams{Video: storageVideo(), DurationSeconds: 100},
		},
		{
			name:   "storage video without object",
			params: CreateJobParams{StreamID: "s", Video: models.VideoReference{SourceType: models.SourceStorage, Bucket: "b"}, DurationSeconds: 100},
		},
		{
			name:   "youtube video without url",
			params: CreateJobParams{StreamID: "s", Video: models.VideoReference{SourceType: models.SourceYouTube}, DurationSeconds: 100},
		},
		{
			name:   "no segments and no duration",
			params: CreateJobParams{StreamID: "s", Video: storageVideo()},
		},
		{
			name:   "unknown source type",
			params: CreateJobParams{StreamID: "s", Video: models.VideoReference{SourceType: "ftp"}, DurationSeconds: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(ctx, tt.params)
			assert.Error(t, err)
		})
	}
}

// seedPhase1Job writes a job directly into the store mid-phase-1, as if
// segments were already dispatched.
func seedPhase1Job(t *testing.T, st *storetest.MemStore, segments []models.SegmentInfo) *models.AnalysisJob {
	t.Helper()
	now := time.Now().UTC()
	job := &models.AnalysisJob{
		ID:            uuid.New(),
		StreamID:      "stream-1",
		Video:         storageVideo(),
		Status:        models.JobStatusAnalyzing,
		Phase:         models.PhaseOne,
		TotalSegments: len(segments),
		Segments:      segments,
		Phase1Hands:   []models.HandWindow{},
		CreatedAt:     now,
		StartedAt:     &now,
	}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

func markSegmentDone(t *testing.T, st *storetest.MemStore, jobID uuid.UUID, index int) {
	t.Helper()
	_, err := st.UpdateJobLocked(context.Background(), jobID, func(j *models.AnalysisJob) error {
		j.Segments[index].Status = models.SegmentCompleted
		j.CompletedSegments++
		return nil
	})
	require.NoError(t, err)
}

func TestPhase1CallbackMergesAcrossSegments(t *testing.T) {
	svc, st, rec := newTestService(t)
	ctx := context.Background()

	job := seedPhase1Job(t, st, []models.SegmentInfo{
		{Index: 0, Start: 0, End: 1800, Status: models.SegmentProcessing},
		{Index: 1, Start: 1500, End: 3300, Status: models.SegmentProcessing},
	})

	// Segment 0 saw a hand at 29:55; segment 1 saw the same hand at
	// 30:05 through its overlap. They must collapse to one.
	markSegmentDone(t, st, job.ID, 0)
	require.NoError(t, svc.HandlePhase1Callback(ctx, job.ID, []models.HandWindow{
		{Number: 1, Start: "00:29:55", End: "00:31:00"},
	}))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseOne, got.Phase, "transition must wait for all segments")
	assert.Empty(t, rec.ByPath(PathAnalyzePhase2Batch))

	markSegmentDone(t, st, job.ID, 1)
	require.NoError(t, svc.HandlePhase1Callback(ctx, job.ID, []models.HandWindow{
		{Number: 1, Start: "00:30:05", End: "00:31:10"},
	}))

	got, err = st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseTwo, got.Phase)
	assert.Equal(t, 1, got.Phase2TotalHands)
	assert.Equal(t, 30, got.Progress)
	require.Len(t, got.Phase1Hands, 1)
	assert.Equal(t, "00:29:55", got.Phase1Hands[0].Start)
	assert.Equal(t, "00:31:10", got.Phase1Hands[0].End, "merge keeps the widest end")

	batches := rec.ByPath(PathAnalyzePhase2Batch)
	require.Len(t, batches, 1)

	var batch models.Phase2BatchPayload
	require.NoError(t, json.Unmarshal(batches[0].Payload, &batch))
	assert.Equal(t, 0, batch.SegmentIndex, "hand at 29:55 belongs to the first containing window")
	require.Len(t, batch.Hands, 1)
	assert.Equal(t, "00:29:55", batch.Hands[0].Start, "first window starts at zero, so relative equals absolute")
}

func TestPhase1CallbackRelativeConversion(t *testing.T) {
	svc, st, rec := newTestService(t)
	ctx := context.Background()

	job := seedPhase1Job(t, st, []models.SegmentInfo{
		{Index: 0, Start: 1500, End: 3300, Status: models.SegmentProcessing},
	})
	markSegmentDone(t, st, job.ID, 0)

	require.NoError(t, svc.HandlePhase1Callback(ctx, job.ID, []models.HandWindow{
		{Number: 1, Start: "00:30:00", End: "00:33:00"},
	}))

	batches := rec.ByPath(PathAnalyzePhase2Batch)
	require.Len(t, batches, 1)

	var batch models.Phase2BatchPayload
	require.NoError(t, json.Unmarshal(batches[0].Payload, &batch))
	assert.Equal(t, "00:05:00", batch.Hands[0].Start)
	assert.Equal(t, "00:08:00", batch.Hands[0].End)
	assert.Equal(t, models.TimeWindow{Start: 1500, End: 3300}, batch.Window)
}

func TestPhase1CallbackNoHandsCompletesJob(t *testing.T) {
	svc, st, rec := newTestService(t)
	ctx := context.Background()

	job := seedPhase1Job(t, st, []models.SegmentInfo{
		{Index: 0, Start: 0, End: 1800, Status: models.SegmentProcessing},
	})
	markSegmentDone(t, st, job.ID, 0)

	require.NoError(t, svc.HandlePhase1Callback(ctx, job.ID, nil))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, models.PhaseCompleted, got.Phase)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.CompletedAt)
	assert.Empty(t, rec.ByPath(PathAnalyzePhase2Batch))
	assert.Equal(t, models.JobStatusCompleted, st.Streams["stream-1"].AnalysisStatus)
}

func TestPhase1CallbackDropsOutOfWindowHands(t *testing.T) {
	svc, st, rec := newTestService(t)
	ctx := context.Background()

	job := seedPhase1Job(t, st, []models.SegmentInfo{
		{Index: 0, Start: 0, End: 1800, Status: models.SegmentProcessing},
	})
	markSegmentDone(t, st, job.ID, 0)

	// One hand in window, one hallucinated far past the video end.
	require.NoError(t, svc.HandlePhase1Callback(ctx, job.ID, []models.HandWindow{
		{Number: 1, Start: "00:10:00", End: "00:12:00"},
		{Number: 2, Start: "02:30:00", End: "02:32:00"},
	}))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Phase2TotalHands, "dropped hands shrink the total so completion can fire")

	batches := rec.ByPath(PathAnalyzePhase2Batch)
	require.Len(t, batches, 1)
	var batch models.Phase2BatchPayload
	require.NoError(t, json.Unmarshal(batches[0].Payload, &batch))
	require.Len(t, batch.Hands, 1)
	assert.Equal(t, "00:10:00", batch.Hands[0].Start)
}

func TestPhase1CallbackRedeliveryAfterTransition(t *testing.T) {
	svc, st, rec := newTestService(t)
	ctx := context.Background()

	job := seedPhase1Job(t, st, []models.SegmentInfo{
		{Index: 0, Start: 0, End: 1800, Status: models.SegmentProcessing},
	})
	markSegmentDone(t, st, job.ID, 0)

	hands := []models.HandWindow{{Number: 1, Start: "00:10:00", End: "00:12:00"}}
	require.NoError(t, svc.HandlePhase1Callback(ctx, job.ID, hands))
	require.NoError(t, svc.HandlePhase1Callback(ctx, job.ID, hands))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Phase2TotalHands)
	assert.Len(t, rec.ByPath(PathAnalyzePhase2Batch), 1, "transition fires exactly once")
}
