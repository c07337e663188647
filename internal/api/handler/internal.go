package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/railbird/handreel/internal/api/response"
	"github.com/railbird/handreel/pkg/models"
)

// TaskProcessor defines the processor surface the queue-invoked
// handlers depend on. A nil return acknowledges the task; an error makes
// the queue redeliver it.
type TaskProcessor interface {
	ProcessSegment(ctx context.Context, payload models.SegmentTaskPayload) error
	ProcessPhase2Batch(ctx context.Context, payload models.Phase2BatchPayload) error
}

// NewAnalyzeSegmentHandler returns an http.HandlerFunc for
// POST /internal/v1/analyze-segment.
func NewAnalyzeSegmentHandler(proc TaskProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload models.SegmentTaskPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if err := proc.ProcessSegment(r.Context(), payload); err != nil {
			response.Error(w, http.StatusInternalServerError, "TASK_FAILED", err.Error(), nil)
			return
		}
		response.JSON(w, map[string]string{"status": "ok"})
	}
}

// NewAnalyzePhase2BatchHandler returns an http.HandlerFunc for
// POST /internal/v1/analyze-phase2-batch.
func NewAnalyzePhase2BatchHandler(proc TaskProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload models.Phase2BatchPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if err := proc.ProcessPhase2Batch(r.Context(), payload); err != nil {
			response.Error(w, http.StatusInternalServerError, "TASK_FAILED", err.Error(), nil)
			return
		}
		response.JSON(w, map[string]string{"status": "ok"})
	}
}
