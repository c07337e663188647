package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/railbird/handreel/internal/config"
	"github.com/railbird/handreel/pkg/models"
	"github.com/railbird/handreel/pkg/timecode"
)

// Provider implements models.VideoAnalyzer against the Gemini
// generateContent REST API. Video input is passed by reference
// (gs:// URI or public URL) with clipping offsets, never uploaded.
type Provider struct {
	cfg    config.GeminiConfig
	client *http.Client
}

func NewProvider(cfg config.GeminiConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) DiscoverHands(ctx context.Context, video models.VideoReference, window models.TimeWindow) ([]models.HandWindow, error) {
	raw, err := p.generate(ctx, video, window, discoverPrompt)
	if err != nil {
		return nil, err
	}
	return decodeHandWindows(raw)
}

func (p *Provider) ExtractHands(ctx context.Context, video models.VideoReference, window models.TimeWindow, hands []models.HandWindow) ([]models.ExtractedHand, error) {
	prompt, err := extractPrompt(hands)
	if err != nil {
		return nil, err
	}
	raw, err := p.generate(ctx, video, window, prompt)
	if err != nil {
		return nil, err
	}
	return decodeExtractedHands(raw)
}

// generate performs one generateContent call with the video clipped to
// the given absolute window and returns the raw text of the first
// candidate.
func (p *Provider) generate(ctx context.Context, video models.VideoReference, window models.TimeWindow, prompt string) (string, error) {
	uri, mimeType := videoURI(video)
	if uri == "" {
		return "", fmt.Errorf("%w: video reference has no usable URI", models.ErrInvalidResponse)
	}

	req := generateRequest{
		Contents: []content{{
			Parts: []part{
				{
					FileData: &fileData{FileURI: uri, MimeType: mimeType},
					VideoMetadata: &videoMetadata{
						StartOffset: fmt.Sprintf("%ds", window.Start),
						EndOffset:   fmt.Sprintf("%ds", window.End),
					},
				},
				{Text: prompt},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.cfg.BaseURL, p.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", fmt.Errorf("%w: status %d: %s", models.ErrProviderUnavailable, resp.StatusCode, snippet)
		}
		return "", fmt.Errorf("%w: status %d: %s", models.ErrInvalidResponse, resp.StatusCode, snippet)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", models.ErrInvalidResponse, err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty candidates", models.ErrInvalidResponse)
	}
	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

// videoURI resolves a video reference to the URI Gemini understands.
func videoURI(video models.VideoReference) (uri, mimeType string) {
	switch video.SourceType {
	case models.SourceStorage:
		return fmt.Sprintf("gs://%s/%s", video.Bucket, video.Object), "video/mp4"
	case models.SourceYouTube:
		return video.URL, ""
	default:
		return "", ""
	}
}

const discoverPrompt = `You are watching a poker tournament broadcast clip.
List every complete poker hand visible in this clip. A hand starts when
hole cards are dealt and ends when the pot is awarded.

Respond with a JSON array only, no prose. Each element:
{"number": <1-based index>, "start": "HH:MM:SS", "end": "HH:MM:SS"}

Timecodes are relative to the start of this clip. If part of a hand is
cut off at the clip boundary, include it with the visible portion.`

func extractPrompt(hands []models.HandWindow) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(`You are watching a poker tournament broadcast clip.
Extract a detailed record for each of the following hands, identified by
their approximate timecodes relative to the start of this clip:

`)
	for _, h := range hands {
		fmt.Fprintf(&buf, "- hand %d: %s to %s\n", h.Number, h.Start, h.End)
	}
	buf.WriteString(`
Respond with a JSON array only, no prose. Each element:
{
  "number": <matching hand number from the list above>,
  "start": "HH:MM:SS", "end": "HH:MM:SS",
  "board": ["As", "Kd", ...],
  "pot_size": <final pot in big blinds, 0 if unreadable>,
  "players": [{"seat": <n>, "name": "...", "position": "...", "hole_cards": ["...", "..."], "stack": <bb>}],
  "actions": [{"street": "preflop|flop|turn|river", "player": "...", "action": "...", "amount": <bb>}],
  "winners": [{"player": "...", "amount": <bb>}],
  "tags": ["all-in", "bluff", ...],
  "ai_meta": {"confidence": <0..1>, "summary": "one sentence"}
}

Refine the start/end timecodes to the actual hand boundaries you observe.`)

	// Sanity check the requested windows so a bad batch fails here
	// rather than after a paid inference call.
	for _, h := range hands {
		if _, err := timecode.Parse(h.Start); err != nil {
			return "", fmt.Errorf("hand %d: %w", h.Number, err)
		}
	}
	return buf.String(), nil
}

// Request/response shapes for the generateContent REST API. Only the
// fields this service uses.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text          string         `json:"text,omitempty"`
	FileData      *fileData      `json:"file_data,omitempty"`
	VideoMetadata *videoMetadata `json:"video_metadata,omitempty"`
}

type fileData struct {
	FileURI  string `json:"file_uri"`
	MimeType string `json:"mime_type,omitempty"`
}

type videoMetadata struct {
	StartOffset string `json:"start_offset"`
	EndOffset   string `json:"end_offset"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
		}
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}

	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.VideoAnalyzer = (*Provider)(nil)
