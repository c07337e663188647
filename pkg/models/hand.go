package models

import (
	"time"

	"github.com/google/uuid"
)

// HandPlayer is one seat in a hand.
type HandPlayer struct {
	Seat      int      `json:"seat"`
	Name      string   `json:"name"`
	Stack     float64  `json:"stack"`
	HoleCards []string `json:"hole_cards,omitempty"`
	Position  string   `json:"position,omitempty"`
}

// HandAction is one betting action.
type HandAction struct {
	Player string  `json:"player"`
	Street string  `json:"street"`
	Action string  `json:"action"`
	Amount float64 `json:"amount,omitempty"`
}

// HandWinner records who took the pot.
type HandWinner struct {
	Player string  `json:"player"`
	Amount float64 `json:"amount,omitempty"`
}

// AIMeta carries provider metadata and the model's confidence in the
// extraction, clamped to [0, 1].
type AIMeta struct {
	Provider   string  `json:"provider,omitempty"`
	Model      string  `json:"model,omitempty"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary,omitempty"`
}

// Hand is one persisted analyzed hand. Number is provisional until the
// finalization pass renumbers all hands for the stream; only the
// finalizer mutates or deletes hands after creation.
type Hand struct {
	ID       uuid.UUID `db:"id"        json:"id"`
	StreamID string    `db:"stream_id" json:"stream_id"`
	JobID    uuid.UUID `db:"job_id"    json:"job_id"`
	Number   int       `db:"number"    json:"number"`

	Board   []string     `db:"board"   json:"board"`
	PotSize float64      `db:"pot_size" json:"pot_size"`
	Players []HandPlayer `db:"players" json:"players"`
	Actions []HandAction `db:"actions" json:"actions"`
	Winners []HandWinner `db:"winners" json:"winners"`

	VideoTsStart int `db:"video_ts_start" json:"video_ts_start"`
	VideoTsEnd   int `db:"video_ts_end"   json:"video_ts_end"`

	Tags   []string  `db:"tags"    json:"tags"`
	AIMeta AIMeta    `db:"ai_meta" json:"ai_meta"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Stream is the catalog row the pipeline writes status through to on
// terminal states. The stream that requested analysis exclusively owns
// its hands.
type Stream struct {
	ID             string    `db:"id"              json:"id"`
	HandsCount     int       `db:"hands_count"     json:"hands_count"`
	AnalysisStatus string    `db:"analysis_status" json:"analysis_status"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}
