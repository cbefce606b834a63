// Package testutil provides hand-rolled mocks for the external
// collaborators used across package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/windoze95/chefbot-api/internal/ai"
)

// --- MockTextProvider ---

// MockTextProvider is a mock implementation of ai.TextProvider.
type MockTextProvider struct {
	AskAIFunc func(ctx context.Context, query string, queryType ai.QueryType) (string, error)

	mu    sync.Mutex
	calls []AskAICall
}

// AskAICall records one AskAI invocation.
type AskAICall struct {
	Query     string
	QueryType ai.QueryType
}

func (m *MockTextProvider) AskAI(ctx context.Context, query string, queryType ai.QueryType) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, AskAICall{Query: query, QueryType: queryType})
	m.mu.Unlock()

	if m.AskAIFunc != nil {
		return m.AskAIFunc(ctx, query, queryType)
	}
	return "", fmt.Errorf("AskAI not configured")
}

// Calls returns a copy of the recorded invocations.
func (m *MockTextProvider) Calls() []AskAICall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AskAICall(nil), m.calls...)
}

// --- MockSpeechProvider ---

// MockSpeechProvider is a mock implementation of
// ai.SpeechSynthesisProvider.
type MockSpeechProvider struct {
	SynthesizeFunc func(ctx context.Context, text string, voiceID string, settings ai.VoiceSettings) ([]byte, error)

	mu    sync.Mutex
	calls []SynthesizeCall
}

// SynthesizeCall records one Synthesize invocation.
type SynthesizeCall struct {
	Text     string
	VoiceID  string
	Settings ai.VoiceSettings
}

func (m *MockSpeechProvider) Synthesize(ctx context.Context, text string, voiceID string, settings ai.VoiceSettings) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SynthesizeCall{Text: text, VoiceID: voiceID, Settings: settings})
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voiceID, settings)
	}
	return []byte("audio"), nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockSpeechProvider) Calls() []SynthesizeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SynthesizeCall(nil), m.calls...)
}
