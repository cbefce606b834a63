package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/windoze95/chefbot-api/internal/ai"
	"github.com/windoze95/chefbot-api/internal/config"
	"github.com/windoze95/chefbot-api/internal/logger"
	"github.com/windoze95/chefbot-api/internal/session"
	"go.uber.org/zap"
)

// sessionTokenTTL bounds how long a minted session token stays usable.
// Idle sessions expire well before this.
const sessionTokenTTL = 24 * time.Hour

// VoiceLister fetches the voices available to the configured TTS key.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]ai.VoiceInfo, error)
}

// SessionHandler is the handler for session-related requests.
type SessionHandler struct {
	Cfg     *config.Config
	Manager *session.Manager
	Lister  VoiceLister // optional, used when no catalog is configured
}

// NewSessionHandler is the constructor function for initializing a new SessionHandler.
func NewSessionHandler(cfg *config.Config, manager *session.Manager) *SessionHandler {
	return &SessionHandler{Cfg: cfg, Manager: manager}
}

// CreateSession starts a new chat session and mints its access token.
// The optional initial query runs once the client's WebSocket attaches.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		InitialQuery string `json:"initial_query"`
		VoiceID      string `json:"voice_id"`
		TTSEnabled   *bool  `json:"tts_enabled"`
	}

	// Body is optional; an empty POST starts a blank session.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	if req.VoiceID != "" {
		if err := h.validateVoiceID(req.VoiceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	sess := h.Manager.Create(req.InitialQuery, req.VoiceID)
	if req.TTSEnabled != nil {
		sess.Chat.SetTTSEnabled(*req.TTSEnabled)
	}

	accessToken, err := generateSessionToken(sess.ID, h.Cfg.EnvVars.JwtSecretKey)
	if err != nil {
		logger.Get().Error("failed to generate session token", zap.String("session_id", sess.ID), zap.Error(err))
		h.Manager.Remove(sess.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":   sess.ID,
		"access_token": accessToken,
		"message":      "Session created successfully",
	})
}

// GetMessages returns the session's transcript and current quick replies.
func (h *SessionHandler) GetMessages(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}

	store := sess.Chat.Store()
	c.JSON(http.StatusOK, gin.H{
		"entries":       store.Entries(),
		"quick_replies": store.QuickReplies(),
		"loading":       store.Loading(),
	})
}

// DeleteSession ends a session early.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sess, ok := h.authorizedSession(c)
	if !ok {
		return
	}

	h.Manager.Remove(sess.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Session ended"})
}

// GetVoices returns the configured voice catalog. With no catalog in
// the config it falls back to the voices live on the TTS account.
func (h *SessionHandler) GetVoices(c *gin.Context) {
	if len(h.Cfg.Voices) > 0 || h.Lister == nil {
		c.JSON(http.StatusOK, gin.H{"voices": h.Cfg.Voices})
		return
	}

	listed, err := h.Lister.ListVoices(c.Request.Context())
	if err != nil {
		logger.Get().Warn("failed to list voices", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Voice catalog unavailable"})
		return
	}

	voices := make([]config.Voice, 0, len(listed))
	for _, v := range listed {
		voices = append(voices, config.Voice{ID: v.VoiceID, Name: v.Name})
	}
	c.JSON(http.StatusOK, gin.H{"voices": voices})
}

// authorizedSession resolves the session named in the path and checks it
// against the session bound to the caller's token.
func (h *SessionHandler) authorizedSession(c *gin.Context) (*session.Session, bool) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return nil, false
	}

	tokenSessionID, _ := c.Get("session_id")
	if tokenSessionID != sessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Token not valid for this session"})
		return nil, false
	}

	sess, err := h.Manager.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return sess, true
}

// validateVoiceID checks the shape of a requested voice and, when a
// catalog is configured, that the voice exists in it.
func (h *SessionHandler) validateVoiceID(voiceID string) error {
	if !govalidator.IsAlphanumeric(voiceID) {
		return fmt.Errorf("voice_id must be alphanumeric")
	}
	if len(h.Cfg.Voices) == 0 {
		return nil
	}
	for _, v := range h.Cfg.Voices {
		if v.ID == voiceID {
			return nil
		}
	}
	return fmt.Errorf("unknown voice_id: %s", voiceID)
}

// generateSessionToken generates a JWT access token bound to one session.
func generateSessionToken(sessionID, secretKey string) (string, error) {
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        time.Now().Add(sessionTokenTTL).Unix(),
		"iat":        time.Now().Unix(),
		"type":       "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("generateSessionToken: %v", err)
	}
	return tokenString, nil
}
