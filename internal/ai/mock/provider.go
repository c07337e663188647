package mock

import (
	"context"
	"fmt"

	"github.com/railbird/handreel/pkg/models"
	"github.com/railbird/handreel/pkg/timecode"
)

// MockAnalyzer satisfies models.VideoAnalyzer for testing and local
// development without a paid provider.
type MockAnalyzer struct {
	Name_        string
	DiscoverFunc func(ctx context.Context, video models.VideoReference, window models.TimeWindow) ([]models.HandWindow, error)
	ExtractFunc  func(ctx context.Context, video models.VideoReference, window models.TimeWindow, hands []models.HandWindow) ([]models.ExtractedHand, error)
}

func (m *MockAnalyzer) Name() string { return m.Name_ }

func (m *MockAnalyzer) DiscoverHands(ctx context.Context, video models.VideoReference, window models.TimeWindow) ([]models.HandWindow, error) {
	if m.DiscoverFunc != nil {
		return m.DiscoverFunc(ctx, video, window)
	}
	return nil, nil
}

func (m *MockAnalyzer) ExtractHands(ctx context.Context, video models.VideoReference, window models.TimeWindow, hands []models.HandWindow) ([]models.ExtractedHand, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, video, window, hands)
	}
	return nil, nil
}

// NewMockAnalyzer returns a MockAnalyzer with deterministic default
// responses: one fabricated hand every five minutes of the window, and
// extraction that echoes the requested windows with canned detail.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock",
		DiscoverFunc: func(_ context.Context, _ models.VideoReference, window models.TimeWindow) ([]models.HandWindow, error) {
			length := window.End - window.Start
			var hands []models.HandWindow
			for off := 0; off+120 <= length; off += 300 {
				hands = append(hands, models.HandWindow{
					Number: len(hands) + 1,
					Start:  timecode.Format(off),
					End:    timecode.Format(off + 120),
				})
			}
			return hands, nil
		},
		ExtractFunc: func(_ context.Context, _ models.VideoReference, _ models.TimeWindow, hands []models.HandWindow) ([]models.ExtractedHand, error) {
			out := make([]models.ExtractedHand, 0, len(hands))
			for _, h := range hands {
				out = append(out, models.ExtractedHand{
					Number:  h.Number,
					Start:   h.Start,
					End:     h.End,
					Board:   []string{"As", "Kd", "7c"},
					PotSize: 42,
					Players: []models.HandPlayer{
						{Seat: 1, Name: "Hero", Position: "BTN", HoleCards: []string{"Ah", "Ad"}, Stack: 100},
						{Seat: 2, Name: "Villain", Position: "BB", HoleCards: []string{"Kc", "Kh"}, Stack: 80},
					},
					Actions: []models.HandAction{
						{Street: "preflop", Player: "Hero", Action: "raise", Amount: 2.5},
						{Street: "preflop", Player: "Villain", Action: "call", Amount: 2.5},
					},
					Winners: []models.HandWinner{{Player: "Hero", Amount: 42}},
					Tags:    []string{"mock"},
					AIMeta: models.AIMeta{
						Provider:   "mock",
						Model:      "mock-v1",
						Confidence: 0.9,
						Summary:    fmt.Sprintf("Mock hand %d", h.Number),
					},
				})
			}
			return out, nil
		},
	}
}

// NewFailingAnalyzer returns a MockAnalyzer that always returns the
// given error.
func NewFailingAnalyzer(err error) *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock-failing",
		DiscoverFunc: func(_ context.Context, _ models.VideoReference, _ models.TimeWindow) ([]models.HandWindow, error) {
			return nil, err
		},
		ExtractFunc: func(_ context.Context, _ models.VideoReference, _ models.TimeWindow, _ []models.HandWindow) ([]models.ExtractedHand, error) {
			return nil, err
		},
	}
}

// NewTimeoutAnalyzer returns a MockAnalyzer that blocks until the
// context is cancelled.
func NewTimeoutAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock-timeout",
		DiscoverFunc: func(ctx context.Context, _ models.VideoReference, _ models.TimeWindow) ([]models.HandWindow, error) {
			<-ctx.Done()
			return nil, models.ErrInferenceTimeout
		},
		ExtractFunc: func(ctx context.Context, _ models.VideoReference, _ models.TimeWindow, _ []models.HandWindow) ([]models.ExtractedHand, error) {
			<-ctx.Done()
			return nil, models.ErrInferenceTimeout
		},
	}
}

var _ models.VideoAnalyzer = (*MockAnalyzer)(nil)
