package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare array",
			raw:  `[{"number":1}]`,
			want: `[{"number":1}]`,
		},
		{
			name: "fenced json",
			raw:  "```json\n[{\"number\":1}]\n```",
			want: `[{"number":1}]`,
		},
		{
			name: "fence without language tag",
			raw:  "```\n{\"hands\":[]}\n```",
			want: `{"hands":[]}`,
		},
		{
			name: "prose around array",
			raw:  "Here are the hands I found:\n[{\"number\":1}]\nLet me know if you need more.",
			want: `[{"number":1}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSONNoJSON(t *testing.T) {
	_, err := extractJSON("I could not find any poker hands in this clip.")
	require.Error(t, err)
}

func TestDecodeHandWindows(t *testing.T) {
	raw := `[
		{"number": 1, "start": "00:02:10", "end": "00:05:40"},
		{"number": 2, "start": "00:06:00", "end": "00:09:15"}
	]`

	hands, err := decodeHandWindows(raw)
	require.NoError(t, err)
	require.Len(t, hands, 2)
	assert.Equal(t, "00:02:10", hands[0].Start)
	assert.Equal(t, 2, hands[1].Number)
}

func TestDecodeHandWindowsWrappedObject(t *testing.T) {
	raw := `{"hands": [{"number": 1, "start": "00:00:05", "end": "00:03:00"}]}`

	hands, err := decodeHandWindows(raw)
	require.NoError(t, err)
	require.Len(t, hands, 1)
}

func TestDecodeHandWindowsDropsIncomplete(t *testing.T) {
	raw := `[
		{"number": 1, "start": "00:02:10", "end": "00:05:40"},
		{"number": 2, "start": "00:06:00"},
		{"number": 3, "end": "00:12:00"}
	]`

	hands, err := decodeHandWindows(raw)
	require.NoError(t, err)
	require.Len(t, hands, 1)
	assert.Equal(t, 1, hands[0].Number)
}

func TestDecodeHandWindowsAssignsMissingNumbers(t *testing.T) {
	raw := `[{"start": "00:01:00", "end": "00:03:00"}, {"start": "00:04:00", "end": "00:06:00"}]`

	hands, err := decodeHandWindows(raw)
	require.NoError(t, err)
	require.Len(t, hands, 2)
	assert.Equal(t, 1, hands[0].Number)
	assert.Equal(t, 2, hands[1].Number)
}

func TestDecodeExtractedHandsDefaults(t *testing.T) {
	raw := `[{"number": 1, "start": "00:01:00", "end": "00:03:30"}]`

	hands, err := decodeExtractedHands(raw)
	require.NoError(t, err)
	require.Len(t, hands, 1)

	h := hands[0]
	assert.NotNil(t, h.Board)
	assert.Empty(t, h.Board)
	assert.Zero(t, h.PotSize)
	assert.NotNil(t, h.Tags)
	assert.Zero(t, h.AIMeta.Confidence)
}

func TestDecodeExtractedHandsClampsConfidence(t *testing.T) {
	raw := `[
		{"number": 1, "start": "00:01:00", "end": "00:03:30", "ai_meta": {"confidence": 1.7}},
		{"number": 2, "start": "00:05:00", "end": "00:07:00", "ai_meta": {"confidence": -0.2}}
	]`

	hands, err := decodeExtractedHands(raw)
	require.NoError(t, err)
	require.Len(t, hands, 2)
	assert.Equal(t, 1.0, hands[0].AIMeta.Confidence)
	assert.Equal(t, 0.0, hands[1].AIMeta.Confidence)
}

func TestDecodeExtractedHandsMalformed(t *testing.T) {
	_, err := decodeExtractedHands(`[1, 2, 3]`)
	require.Error(t, err)
}

func TestDecodeExtractedHandsObjectWithoutHands(t *testing.T) {
	hands, err := decodeExtractedHands(`{"unexpected": true}`)
	require.NoError(t, err)
	assert.Empty(t, hands)
}
