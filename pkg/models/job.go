// Package models contains shared data models used across the Handreel codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Job status constants. Completed and failed are terminal.
const (
	JobStatusPending   = "pending"
	JobStatusAnalyzing = "analyzing"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Analysis phase constants. Transitions are one-directional:
// phase1 -> phase2 -> completed.
const (
	PhaseOne       = "phase1"
	PhaseTwo       = "phase2"
	PhaseCompleted = "completed"
)

// Segment status constants.
const (
	SegmentPending    = "pending"
	SegmentProcessing = "processing"
	SegmentCompleted  = "completed"
	SegmentFailed     = "failed"
)

// Video source type constants.
const (
	SourceStorage = "storage"
	SourceYouTube = "youtube"
)

// VideoReference locates the source video: either an object-storage
// locator (bucket + object) or a public URL.
type VideoReference struct {
	SourceType string `json:"source_type"`
	Bucket     string `json:"bucket,omitempty"`
	Object     string `json:"object,omitempty"`
	URL        string `json:"url,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// TimeWindow is a half-open [Start, End) range in absolute video seconds.
type TimeWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SegmentInfo describes one overlapping time window of the source video.
// Index is the task identity for fan-out and never changes after planning.
type SegmentInfo struct {
	Index        int    `json:"index"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Status       string `json:"status"`
	HandsFound   int    `json:"hands_found,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// HandWindow is a phase-1 hand boundary candidate. Start and End are
// "HH:MM:SS" or "MM:SS" timecodes; Number is provisional until
// finalization. HandWindows are never persisted on their own — they live
// in the job's phase-1 accumulator and in dispatch payloads.
type HandWindow struct {
	Number int    `json:"number"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// AnalysisJob is one document per submitted video analysis request.
// Segments and Phase1Hands are stored as JSONB on the job row so counter
// updates and accumulator merges commit atomically with the row lock.
type AnalysisJob struct {
	ID           uuid.UUID      `db:"id"            json:"id"`
	StreamID     string         `db:"stream_id"     json:"stream_id"`
	TournamentID *string        `db:"tournament_id" json:"tournament_id,omitempty"`
	EventID      *string        `db:"event_id"      json:"event_id,omitempty"`
	Video        VideoReference `db:"video"         json:"video"`

	Status string `db:"status" json:"status"`
	Phase  string `db:"phase"  json:"phase"`

	TotalSegments     int           `db:"total_segments"     json:"total_segments"`
	CompletedSegments int           `db:"completed_segments" json:"completed_segments"`
	FailedSegments    int           `db:"failed_segments"    json:"failed_segments"`
	Segments          []SegmentInfo `db:"segments"           json:"segments"`

	Phase1Hands          []HandWindow `db:"phase1_hands"           json:"phase1_hands"`
	Phase2TotalHands     int          `db:"phase2_total_hands"     json:"phase2_total_hands"`
	Phase2CompletedHands int          `db:"phase2_completed_hands" json:"phase2_completed_hands"`

	Progress     int     `db:"progress"      json:"progress"`
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	StartedAt   *time.Time `db:"started_at"   json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether the job reached a terminal status.
func (j *AnalysisJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// SegmentsDone reports whether every segment has either completed or failed.
func (j *AnalysisJob) SegmentsDone() bool {
	return j.CompletedSegments+j.FailedSegments >= j.TotalSegments
}
