package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/railbird/handreel/internal/api/response"
	"github.com/railbird/handreel/internal/cache"
	"github.com/railbird/handreel/internal/store"
	"github.com/railbird/handreel/pkg/models"
)

// statusCacheTTL bounds how stale a polled status can be.
const statusCacheTTL = 3 * time.Second

// StatusReader defines the orchestrator surface the status handler
// depends on. The read applies the stall check.
type StatusReader interface {
	JobStatus(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error)
}

// JobStatusView is the polled job representation. The phase-1
// accumulator and per-segment details stay internal.
type JobStatusView struct {
	ID                   uuid.UUID  `json:"id"`
	StreamID             string     `json:"stream_id"`
	Status               string     `json:"status"`
	Phase                string     `json:"phase"`
	Progress             int        `json:"progress"`
	TotalSegments        int        `json:"total_segments"`
	CompletedSegments    int        `json:"completed_segments"`
	FailedSegments       int        `json:"failed_segments"`
	Phase2TotalHands     int        `json:"phase2_total_hands"`
	Phase2CompletedHands int        `json:"phase2_completed_hands"`
	ErrorMessage         *string    `json:"error_message,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

func jobStatusView(j *models.AnalysisJob) JobStatusView {
	return JobStatusView{
		ID:                   j.ID,
		StreamID:             j.StreamID,
		Status:               j.Status,
		Phase:                j.Phase,
		Progress:             j.Progress,
		TotalSegments:        j.TotalSegments,
		CompletedSegments:    j.CompletedSegments,
		FailedSegments:       j.FailedSegments,
		Phase2TotalHands:     j.Phase2TotalHands,
		Phase2CompletedHands: j.Phase2CompletedHands,
		ErrorMessage:         j.ErrorMessage,
		CreatedAt:            j.CreatedAt,
		StartedAt:            j.StartedAt,
		CompletedAt:          j.CompletedAt,
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/status/{jobID}.
func NewStatusHandler(svc StatusReader, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		if cached, ok, err := ca.GetJobStatus(r.Context(), jobID); err == nil && ok {
			var view JobStatusView
			if json.Unmarshal(cached, &view) == nil {
				response.JSON(w, view)
				return
			}
		}

		job, err := svc.JobStatus(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		view := jobStatusView(job)
		if payload, err := json.Marshal(view); err == nil {
			_ = ca.SetJobStatus(r.Context(), jobID, payload, statusCacheTTL)
		}

		response.JSON(w, view)
	}
}
