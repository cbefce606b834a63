package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/chefbot-api/internal/ai"
	"github.com/windoze95/chefbot-api/internal/config"
	"github.com/windoze95/chefbot-api/internal/middleware"
	"github.com/windoze95/chefbot-api/internal/session"
	"github.com/windoze95/chefbot-api/internal/testutil"
)

const testSecret = "test-secret-key-for-jwt-signing"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler() (*SessionHandler, *session.Manager) {
	cfg := &config.Config{
		EnvVars: config.EnvVars{
			JwtSecretKey: testSecret,
		},
		Voices: []config.Voice{
			{ID: "voiceAAA111", Name: "Ayesha"},
			{ID: "voiceBBB222", Name: "Roger"},
		},
	}
	text := &testutil.MockTextProvider{
		AskAIFunc: func(ctx context.Context, query string, queryType ai.QueryType) (string, error) {
			return "answer", nil
		},
	}
	manager := session.NewManager(text, &testutil.MockSpeechProvider{}, "voiceAAA111", 5*time.Second, 30*time.Minute)
	return NewSessionHandler(cfg, manager), manager
}

func setupSessionRouter(h *SessionHandler) *gin.Engine {
	r := gin.New()
	r.POST("/v1/sessions", h.CreateSession)
	r.GET("/v1/voices", h.GetVoices)

	protected := r.Group("/v1")
	protected.Use(middleware.VerifyTokenMiddleware(h.Cfg))
	protected.GET("/sessions/:session_id/messages", h.GetMessages)
	protected.DELETE("/sessions/:session_id", h.DeleteSession)
	return r
}

func createSession(t *testing.T, r *gin.Engine, body string) (sessionID, token string) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest("POST", "/v1/sessions", nil)
	} else {
		req = httptest.NewRequest("POST", "/v1/sessions", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		SessionID   string `json:"session_id"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" || resp.AccessToken == "" {
		t.Fatalf("incomplete response: %s", w.Body.String())
	}
	return resp.SessionID, resp.AccessToken
}

func TestCreateSession_EmptyBody(t *testing.T) {
	h, manager := newTestHandler()
	r := setupSessionRouter(h)

	id, _ := createSession(t, r, "")

	if _, err := manager.Get(id); err != nil {
		t.Errorf("session not registered: %v", err)
	}
}

func TestCreateSession_WithVoicePreference(t *testing.T) {
	h, manager := newTestHandler()
	r := setupSessionRouter(h)

	id, _ := createSession(t, r, `{"voice_id":"voiceBBB222"}`)

	sess, err := manager.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := sess.Chat.Voice().VoiceID(); got != "voiceBBB222" {
		t.Errorf("voice = %q, want voiceBBB222", got)
	}
}

func TestCreateSession_RejectsUnknownVoice(t *testing.T) {
	h, _ := newTestHandler()
	r := setupSessionRouter(h)

	req := httptest.NewRequest("POST", "/v1/sessions", bytes.NewBufferString(`{"voice_id":"voiceZZZ999"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateSession_RejectsMalformedVoiceID(t *testing.T) {
	h, _ := newTestHandler()
	r := setupSessionRouter(h)

	req := httptest.NewRequest("POST", "/v1/sessions", bytes.NewBufferString(`{"voice_id":"../etc/passwd"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetMessages_RequiresMatchingToken(t *testing.T) {
	h, _ := newTestHandler()
	r := setupSessionRouter(h)

	_, tokenA := createSession(t, r, "")
	idB, _ := createSession(t, r, "")

	// Token for session A cannot read session B's transcript.
	req := httptest.NewRequest("GET", "/v1/sessions/"+idB+"/messages", nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestGetMessages_ReturnsTranscript(t *testing.T) {
	h, manager := newTestHandler()
	r := setupSessionRouter(h)

	id, token := createSession(t, r, "")
	sess, _ := manager.Get(id)
	sess.Chat.SubmitQuery(context.Background(), "How do I roast chicken?")

	req := httptest.NewRequest("GET", "/v1/sessions/"+id+"/messages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Entries      []json.RawMessage `json:"entries"`
		QuickReplies []string          `json:"quick_replies"`
		Loading      bool              `json:"loading"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(resp.Entries))
	}
	if resp.Loading {
		t.Error("loading should be false")
	}
}

func TestGetMessages_MissingToken(t *testing.T) {
	h, _ := newTestHandler()
	r := setupSessionRouter(h)

	id, _ := createSession(t, r, "")

	req := httptest.NewRequest("GET", "/v1/sessions/"+id+"/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestDeleteSession(t *testing.T) {
	h, manager := newTestHandler()
	r := setupSessionRouter(h)

	id, token := createSession(t, r, "")

	req := httptest.NewRequest("DELETE", "/v1/sessions/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if _, err := manager.Get(id); err == nil {
		t.Error("session should be gone after delete")
	}
}

func TestGetVoices(t *testing.T) {
	h, _ := newTestHandler()
	r := setupSessionRouter(h)

	req := httptest.NewRequest("GET", "/v1/voices", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Voices []config.Voice `json:"voices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Voices) != 2 || resp.Voices[0].Name != "Ayesha" {
		t.Errorf("voices = %+v", resp.Voices)
	}
}

type fakeLister struct {
	voices []ai.VoiceInfo
	err    error
}

func (f *fakeLister) ListVoices(ctx context.Context) ([]ai.VoiceInfo, error) {
	return f.voices, f.err
}

func TestGetVoices_LiveFallback(t *testing.T) {
	h, _ := newTestHandler()
	h.Cfg.Voices = nil
	h.Lister = &fakeLister{voices: []ai.VoiceInfo{{VoiceID: "live1", Name: "Bhavna"}}}
	r := setupSessionRouter(h)

	req := httptest.NewRequest("GET", "/v1/voices", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Voices []config.Voice `json:"voices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Voices) != 1 || resp.Voices[0].ID != "live1" || resp.Voices[0].Name != "Bhavna" {
		t.Errorf("voices = %+v", resp.Voices)
	}
}
