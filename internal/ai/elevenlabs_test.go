package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestSynthServer(t *testing.T, handler http.HandlerFunc) (*ElevenLabsProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewElevenLabsProvider("test-key").WithBaseURL(srv.URL), srv
}

func TestSynthesize_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotReq synthesizeRequest

	p, _ := newTestSynthServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte("mp3-bytes"))
	})

	settings := VoiceSettings{Stability: 0.7, SimilarityBoost: 0.75, Style: 0.3, SpeakerBoost: true}
	audio, err := p.Synthesize(context.Background(), "namaste", "voice-1", settings)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
	if gotPath != "/text-to-speech/voice-1" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if gotReq.ModelID != "eleven_multilingual_v2" {
		t.Errorf("model = %q", gotReq.ModelID)
	}
	if gotReq.Text != "namaste" || gotReq.VoiceSettings.Stability != 0.7 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestSynthesize_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuth},
		{"forbidden", http.StatusForbidden, ErrAuth},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestSynthServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := p.Synthesize(context.Background(), "hello", "voice-1", VoiceSettings{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	p, _ := newTestSynthServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := p.Synthesize(context.Background(), "hello", "voice-1", VoiceSettings{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestSynthesize_ConnectionRefused(t *testing.T) {
	p, srv := newTestSynthServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := p.Synthesize(context.Background(), "hello", "voice-1", VoiceSettings{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestListVoices(t *testing.T) {
	p, _ := newTestSynthServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"voices": []VoiceInfo{
				{VoiceID: "v1", Name: "Ayesha"},
				{VoiceID: "v2", Name: "Roger"},
			},
		})
	})

	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 || voices[0].Name != "Ayesha" {
		t.Errorf("voices = %+v", voices)
	}
}

func TestListVoices_AuthError(t *testing.T) {
	p, _ := newTestSynthServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := p.ListVoices(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Errorf("err = %v, want ErrAuth", err)
	}
}
