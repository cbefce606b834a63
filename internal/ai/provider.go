// Package ai defines the boundary to the external model collaborators:
// a text provider that answers cooking questions and a speech provider
// that synthesizes audio. Both are consumed through narrow interfaces so
// the chat core never touches an SDK directly.
package ai

import (
	"context"
	"errors"
	"strings"
)

// QueryType selects the prompt template wrapped around a user query.
type QueryType string

const (
	QueryRecipe    QueryType = "recipe"
	QueryTechnique QueryType = "technique"
	QueryEquipment QueryType = "equipment"
	QueryGeneral   QueryType = "general"
)

// Sentinel failure reasons. Providers wrap these so callers can log the
// distinguishing cause while handling all failures uniformly.
var (
	// ErrUnavailable means the remote service could not be reached or
	// returned a server-side failure.
	ErrUnavailable = errors.New("service unavailable")
	// ErrAuth means the API key was rejected.
	ErrAuth = errors.New("authentication failed")
	// ErrRateLimited means the quota or rate limit was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrMalformedResponse means the service replied with a body the
	// client could not interpret.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNotConfigured means the collaborator has no API key and was
	// never constructed.
	ErrNotConfigured = errors.New("provider not configured")
)

// TextProvider answers a user query with assistant text. Implementations
// wrap the query in a template chosen by queryType before calling the
// remote model.
type TextProvider interface {
	AskAI(ctx context.Context, query string, queryType QueryType) (string, error)
}

// VoiceSettings are the ElevenLabs synthesis parameters.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// SpeechSynthesisProvider turns text into playable audio bytes.
type SpeechSynthesisProvider interface {
	Synthesize(ctx context.Context, text string, voiceID string, settings VoiceSettings) ([]byte, error)
}

// SniffQueryType classifies a raw user query by keyword so the right
// prompt template is selected. Recipe wins over technique when both
// match, mirroring how users phrase "how to make X".
func SniffQueryType(query string) QueryType {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "recipe") || strings.Contains(q, "make") || strings.Contains(q, "cook"):
		return QueryRecipe
	case strings.Contains(q, "how to") || strings.Contains(q, "technique"):
		return QueryTechnique
	case strings.Contains(q, "equipment") || strings.Contains(q, "tool") || strings.Contains(q, "pan") || strings.Contains(q, "knife"):
		return QueryEquipment
	default:
		return QueryGeneral
	}
}
