package ai

import (
	"fmt"

	"github.com/railbird/handreel/internal/ai/gemini"
	"github.com/railbird/handreel/internal/ai/mock"
	"github.com/railbird/handreel/internal/config"
	"github.com/railbird/handreel/pkg/models"
)

// NewAnalyzer constructs the appropriate video analyzer based on config.
// Called once at server startup.
func NewAnalyzer(cfg config.AIConfig) (models.VideoAnalyzer, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(cfg.Gemini, cfg.InferenceTimeout), nil
	case "mock":
		return mock.NewMockAnalyzer(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, mock", cfg.Provider)
	}
}
