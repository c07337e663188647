package models

import "github.com/google/uuid"

// SegmentTaskPayload is the body of one phase-1 task. Each task carries
// enough context to be processed independently and idempotently; the
// queue may deliver it more than once.
type SegmentTaskPayload struct {
	JobID        uuid.UUID      `json:"job_id"`
	SegmentIndex int            `json:"segment_index"`
	Video        VideoReference `json:"video"`
	Window       TimeWindow     `json:"window"`
}

// Phase2BatchPayload is the body of one phase-2 task: all deduplicated
// hands whose start falls inside one segment's window, with timecodes
// converted to be relative to the window start.
type Phase2BatchPayload struct {
	JobID        uuid.UUID      `json:"job_id"`
	SegmentIndex int            `json:"segment_index"`
	Video        VideoReference `json:"video"`
	Window       TimeWindow     `json:"window"`
	Hands        []HandWindow   `json:"hands"`
}
