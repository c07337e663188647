package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/railbird/handreel/pkg/models"
)

// extractJSON strips markdown code fences from a model response and
// returns the JSON body. If the stripped text still fails a decode
// probe, it falls back to the substring between the first and last
// brace/bracket — models occasionally wrap JSON in prose.
func extractJSON(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}

	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start >= 0 && end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return []byte(candidate), nil
			}
		}
	}

	return nil, fmt.Errorf("%w: no parseable JSON in response", models.ErrInvalidResponse)
}

// decodeHandWindows parses a phase-1 response: a JSON array of hand
// boundary candidates. Entries missing either timecode are dropped
// rather than failing the segment.
func decodeHandWindows(raw string) ([]models.HandWindow, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	hands, err := decodeArray[models.HandWindow](body)
	if err != nil {
		return nil, err
	}

	out := make([]models.HandWindow, 0, len(hands))
	for i, h := range hands {
		if h.Start == "" || h.End == "" {
			continue
		}
		if h.Number == 0 {
			h.Number = i + 1
		}
		out = append(out, h)
	}
	return out, nil
}

// decodeExtractedHands parses a phase-2 response: a JSON array of
// detailed hand records. Missing optional fields get defaults (empty
// board, zero pot, empty tags, zero-confidence meta) instead of
// failing the whole batch for one sparse record.
func decodeExtractedHands(raw string) ([]models.ExtractedHand, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	hands, err := decodeArray[models.ExtractedHand](body)
	if err != nil {
		return nil, err
	}

	out := make([]models.ExtractedHand, 0, len(hands))
	for _, h := range hands {
		if h.Start == "" || h.End == "" {
			continue
		}
		out = append(out, applyDefaults(h))
	}
	return out, nil
}

// decodeArray unmarshals a bare JSON array, tolerating the common case
// where the model wraps the array in a {"hands": [...]} object.
func decodeArray[T any](body []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Hands []T `json:"hands"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	return wrapped.Hands, nil
}

func applyDefaults(h models.ExtractedHand) models.ExtractedHand {
	if h.Board == nil {
		h.Board = []string{}
	}
	if h.Players == nil {
		h.Players = []models.HandPlayer{}
	}
	if h.Actions == nil {
		h.Actions = []models.HandAction{}
	}
	if h.Winners == nil {
		h.Winners = []models.HandWinner{}
	}
	if h.Tags == nil {
		h.Tags = []string{}
	}
	if h.AIMeta.Confidence < 0 {
		h.AIMeta.Confidence = 0
	}
	if h.AIMeta.Confidence > 1 {
		h.AIMeta.Confidence = 1
	}
	return h
}
