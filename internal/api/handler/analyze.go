package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/railbird/handreel/internal/api/response"
	"github.com/railbird/handreel/internal/orchestrator"
	"github.com/railbird/handreel/pkg/models"
)

// JobCreator defines the orchestrator surface the analyze handlers
// depend on.
type JobCreator interface {
	CreateJob(ctx context.Context, params orchestrator.CreateJobParams) (*models.AnalysisJob, error)
}

type segmentRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func toWindows(ranges []segmentRange) []models.TimeWindow {
	windows := make([]models.TimeWindow, len(ranges))
	for i, s := range ranges {
		windows[i] = models.TimeWindow{Start: s.Start, End: s.End}
	}
	return windows
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/analyze:
// analysis of an object-storage video.
func NewAnalyzeHandler(svc JobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StreamID        string         `json:"stream_id"`
			TournamentID    *string        `json:"tournament_id"`
			EventID         *string        `json:"event_id"`
			Bucket          string         `json:"bucket"`
			Object          string         `json:"object"`
			Segments        []segmentRange `json:"segments"`
			DurationSeconds int            `json:"duration_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		job, err := svc.CreateJob(r.Context(), orchestrator.CreateJobParams{
			StreamID:     req.StreamID,
			TournamentID: req.TournamentID,
			EventID:      req.EventID,
			Video: models.VideoReference{
				SourceType: models.SourceStorage,
				Bucket:     req.Bucket,
				Object:     req.Object,
			},
			Segments:        toWindows(req.Segments),
			DurationSeconds: req.DurationSeconds,
		})
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		response.Accepted(w, jobStatusView(job))
	}
}

// NewAnalyzeYouTubeHandler returns an http.HandlerFunc for
// POST /api/v1/analyze-youtube: analysis of a public video URL.
func NewAnalyzeYouTubeHandler(svc JobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StreamID        string         `json:"stream_id"`
			TournamentID    *string        `json:"tournament_id"`
			EventID         *string        `json:"event_id"`
			URL             string         `json:"url"`
			Segments        []segmentRange `json:"segments"`
			DurationSeconds int            `json:"duration_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "url must be an http(s) URL", nil)
			return
		}

		job, err := svc.CreateJob(r.Context(), orchestrator.CreateJobParams{
			StreamID:     req.StreamID,
			TournamentID: req.TournamentID,
			EventID:      req.EventID,
			Video: models.VideoReference{
				SourceType: models.SourceYouTube,
				URL:        req.URL,
				Platform:   "youtube",
			},
			Segments:        toWindows(req.Segments),
			DurationSeconds: req.DurationSeconds,
		})
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		response.Accepted(w, jobStatusView(job))
	}
}
