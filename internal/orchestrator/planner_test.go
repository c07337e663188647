package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railbird/handreel/pkg/models"
)

func TestPlanSegments(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		want     []models.TimeWindow
	}{
		{
			name:     "shorter than one segment",
			duration: 1200,
			want:     []models.TimeWindow{{Start: 0, End: 1200}},
		},
		{
			name:     "exactly one segment",
			duration: 1800,
			want:     []models.TimeWindow{{Start: 0, End: 1800}},
		},
		{
			name:     "65 minutes",
			duration: 3900,
			want: []models.TimeWindow{
				{Start: 0, End: 1800},
				{Start: 1500, End: 3300},
				{Start: 3000, End: 3900},
			},
		},
		{
			name:     "tail shorter than overlap is absorbed",
			duration: 3200,
			want: []models.TimeWindow{
				{Start: 0, End: 1800},
				{Start: 1500, End: 3200},
			},
		},
		{
			name:     "zero duration",
			duration: 0,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanSegments(tt.duration, 1800, 300)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanSegmentsAdjacentWindowsOverlap(t *testing.T) {
	windows := PlanSegments(4*3600, 1800, 300)
	require.Greater(t, len(windows), 1)

	for i := 1; i < len(windows); i++ {
		assert.Equal(t, 300, windows[i-1].End-windows[i].Start,
			"windows %d and %d must share the overlap", i-1, i)
	}
	assert.Equal(t, 0, windows[0].Start)
	assert.Equal(t, 4*3600, windows[len(windows)-1].End)
}

func TestValidateSegments(t *testing.T) {
	tests := []struct {
		name    string
		windows []models.TimeWindow
		wantErr bool
	}{
		{name: "empty", windows: nil, wantErr: true},
		{name: "valid", windows: []models.TimeWindow{{Start: 0, End: 1800}, {Start: 1500, End: 3300}}},
		{name: "inverted range", windows: []models.TimeWindow{{Start: 100, End: 100}}, wantErr: true},
		{name: "negative start", windows: []models.TimeWindow{{Start: -5, End: 100}}, wantErr: true},
		{name: "unsorted", windows: []models.TimeWindow{{Start: 1500, End: 3300}, {Start: 0, End: 1800}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSegments(tt.windows)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
