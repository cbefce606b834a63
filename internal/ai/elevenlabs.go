package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/windoze95/chefbot-api/internal/logger"
	"go.uber.org/zap"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// ElevenLabsProvider implements SpeechSynthesisProvider against the
// ElevenLabs HTTP API using the multilingual model, which handles both
// English and Hindi (Devanagari or romanized) text.
type ElevenLabsProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewElevenLabsProvider creates a new ElevenLabs TTS client.
func NewElevenLabsProvider(apiKey string) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:  apiKey,
		baseURL: elevenLabsBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (p *ElevenLabsProvider) WithBaseURL(url string) *ElevenLabsProvider {
	p.baseURL = url
	return p
}

// synthesizeRequest is the JSON body for the text-to-speech endpoint.
type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize converts text to MP3 audio bytes with the given voice and
// settings.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, voiceID string, settings VoiceSettings) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:          text,
		ModelID:       "eleven_multilingual_v2",
		VoiceSettings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", p.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs API: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrapElevenLabsStatus(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w: %v", ErrUnavailable, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs API returned no audio: %w", ErrMalformedResponse)
	}

	logger.Get().Debug("synthesized speech",
		zap.String("voice_id", voiceID),
		zap.Int("audio_bytes", len(audio)),
	)
	return audio, nil
}

// VoiceInfo describes a voice available to the configured API key.
type VoiceInfo struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// ListVoices fetches the voices available to the configured API key.
func (p *ElevenLabsProvider) ListVoices(ctx context.Context) ([]VoiceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("build voices request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs API: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrapElevenLabsStatus(resp)
	}

	var parsed struct {
		Voices []VoiceInfo `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode voices response: %w: %v", ErrMalformedResponse, err)
	}
	return parsed.Voices, nil
}

// wrapElevenLabsStatus maps a non-200 response onto the sentinel failure
// reasons, keeping a trimmed body excerpt for the logs.
func wrapElevenLabsStatus(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("elevenlabs API: %w: status %d: %s", ErrAuth, resp.StatusCode, excerpt)
	case http.StatusTooManyRequests:
		return fmt.Errorf("elevenlabs API: %w: status %d: %s", ErrRateLimited, resp.StatusCode, excerpt)
	default:
		return fmt.Errorf("elevenlabs API: %w: status %d: %s", ErrUnavailable, resp.StatusCode, excerpt)
	}
}
