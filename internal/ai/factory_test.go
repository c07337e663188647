package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railbird/handreel/internal/config"
)

func TestNewAnalyzer(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{provider: "gemini", wantName: "gemini"},
		{provider: "mock", wantName: "mock"},
		{provider: "openai", wantErr: true},
		{provider: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("provider_"+tt.provider, func(t *testing.T) {
			analyzer, err := NewAnalyzer(config.AIConfig{
				Provider:         tt.provider,
				InferenceTimeout: 5 * time.Minute,
				Gemini: config.GeminiConfig{
					BaseURL: "https://generativelanguage.googleapis.com",
					APIKey:  "test-key",
					Model:   "gemini-2.0-flash",
				},
			})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, analyzer.Name())
		})
	}
}
