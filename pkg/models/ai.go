package models

import (
	"context"
	"errors"
)

// Sentinel errors every VideoAnalyzer implementation wraps its failures
// in, so callers can classify without knowing the provider.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// VideoAnalyzer is the core interface every AI video-understanding
// integration must implement. Never call a specific provider directly —
// always inject this interface.
type VideoAnalyzer interface {
	// DiscoverHands is the cheap phase-1 pass: it returns approximate
	// hand boundary timecodes found inside the given window. Returned
	// timecodes are relative to the window start.
	DiscoverHands(ctx context.Context, video VideoReference, window TimeWindow) ([]HandWindow, error)
	// ExtractHands is the phase-2 pass: one inference call extracting a
	// detailed record for every requested hand window. Input and output
	// timecodes are relative to the segment window start.
	ExtractHands(ctx context.Context, video VideoReference, window TimeWindow, hands []HandWindow) ([]ExtractedHand, error)
	// Name returns the provider identifier (e.g., "gemini", "mock").
	Name() string
}

// ExtractedHand is one detailed hand record as returned by the provider.
// Start and End are timecodes relative to the segment window.
type ExtractedHand struct {
	Number  int          `json:"number"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
	Board   []string     `json:"board"`
	PotSize float64      `json:"pot_size"`
	Players []HandPlayer `json:"players"`
	Actions []HandAction `json:"actions"`
	Winners []HandWinner `json:"winners"`
	Tags    []string     `json:"tags"`
	AIMeta  AIMeta       `json:"ai_meta"`
}
