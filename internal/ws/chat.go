package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/windoze95/chefbot-api/internal/conversation"
	"github.com/windoze95/chefbot-api/internal/logger"
	"github.com/windoze95/chefbot-api/internal/session"
	"go.uber.org/zap"
)

// WebSocket message types for the chat protocol.
const (
	// Client to server.
	MsgTypeChatMessage  = "chat_message"  // User sends a query
	MsgTypeQuickReply   = "quick_reply"   // User taps a suggestion chip
	MsgTypeVoiceToggle  = "voice_toggle"  // Enable or disable spoken replies
	MsgTypeSetVoice     = "set_voice"     // Switch the synthesis voice
	MsgTypeStopSpeaking = "stop_speaking" // Halt current playback
	MsgTypePlayMessage  = "play_message"  // Replay a past assistant reply

	// Server to client.
	MsgTypeConnected       = "connected"        // Connection confirmed, transcript snapshot
	MsgTypeMessageAppended = "message_appended" // New transcript entry
	MsgTypeMessageResolved = "message_resolved" // Placeholder replaced with a reply
	MsgTypeMessageRemoved  = "message_removed"  // Placeholder removed after a failure
	MsgTypeQuickReplies    = "quick_replies"    // Fresh suggestion chips
	MsgTypeNotification    = "notification"     // Transient dismissible notice
	MsgTypeAudioChunk      = "audio_chunk"      // Synthesized audio fragment
	MsgTypeAudioEnd        = "audio_end"        // Audio stream finished
	MsgTypeError           = "error"            // Protocol-level error
)

// WSMessage is the envelope for all messages on the chat WebSocket.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChatMessagePayload is sent by the client to run a turn. Quick replies
// use the same shape.
type ChatMessagePayload struct {
	Text string `json:"text"`
}

// VoiceTogglePayload switches spoken replies on or off.
type VoiceTogglePayload struct {
	Enabled bool `json:"enabled"`
}

// SetVoicePayload switches the synthesis voice.
type SetVoicePayload struct {
	VoiceID string `json:"voice_id"`
}

// PlayMessagePayload asks for a past assistant reply to be spoken.
type PlayMessagePayload struct {
	MessageID string `json:"message_id"`
}

// ConnectedPayload confirms the connection and carries the current
// transcript so a reconnecting client can rebuild its view.
type ConnectedPayload struct {
	SessionID    string                      `json:"session_id"`
	Entries      []conversation.MessageEntry `json:"entries"`
	QuickReplies []string                    `json:"quick_replies"`
	TTSEnabled   bool                        `json:"tts_enabled"`
	VoiceID      string                      `json:"voice_id,omitempty"`
}

// EntryPayload carries one transcript entry.
type EntryPayload struct {
	Entry conversation.MessageEntry `json:"entry"`
}

// ResolvedPayload carries a resolved entry and the placeholder it replaced.
type ResolvedPayload struct {
	ReplacedID string                    `json:"replaced_id"`
	Entry      conversation.MessageEntry `json:"entry"`
}

// RemovedPayload identifies a removed placeholder.
type RemovedPayload struct {
	ID string `json:"id"`
}

// QuickRepliesPayload carries the current suggestion chips.
type QuickRepliesPayload struct {
	Replies []string `json:"replies"`
}

// notificationTTLMs is how long clients should display a notification
// before auto-dismissing it.
const notificationTTLMs = 5000

// NotificationPayload carries a transient user-facing notice and how
// long to display it.
type NotificationPayload struct {
	Message     string `json:"message"`
	ExpiresInMs int    `json:"expires_in_ms"`
}

// AudioChunkPayload carries a base64-encoded audio fragment.
type AudioChunkPayload struct {
	Data  []byte `json:"data"`
	Final bool   `json:"final,omitempty"`
}

// AudioEndPayload marks the end of an audio stream. Interrupted means
// playback was stopped before the full reply streamed.
type AudioEndPayload struct {
	Interrupted bool `json:"interrupted,omitempty"`
}

// ErrorPayload carries an error message to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ChatHandler manages WebSocket connections for chat sessions.
type ChatHandler struct {
	Hub       *Hub
	JwtSecret string
	Manager   *session.Manager

	queryTimeout time.Duration
}

// NewChatHandler returns a new ChatHandler.
func NewChatHandler(hub *Hub, jwtSecret string, manager *session.Manager, queryTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		Hub:          hub,
		JwtSecret:    jwtSecret,
		Manager:      manager,
		queryTimeout: queryTimeout,
	}
}

// upgrader is configured for chat WebSocket upgrades.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		switch origin {
		case "https://chefbot.kitchen",
			"https://www.chefbot.kitchen",
			"https://api.chefbot.kitchen":
			return true
		}
		// Allow localhost for development
		if strings.HasPrefix(origin, "http://localhost:") || origin == "http://localhost" {
			return true
		}
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleChatSession upgrades an HTTP request to a WebSocket connection
// for a chat session. Authentication is done via a "token" query
// parameter because WebSocket connections cannot easily use
// Authorization headers.
func (ch *ChatHandler) HandleChatSession(c *gin.Context) {
	log := logger.Get()

	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "session_id is required"})
		return
	}

	// Authenticate via query param token
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "token query parameter is required"})
		return
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(ch.JwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
		return
	}

	// Ensure this is an access token
	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token type"})
		return
	}

	// The token must be bound to the session it opens
	claimedID, ok := claims["session_id"].(string)
	if !ok || claimedID != sessionID {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "token not valid for this session"})
		return
	}

	sess, err := ch.Manager.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "session not found"})
		return
	}

	// Upgrade to WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}

	client := &Client{
		Hub:       ch.Hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		SessionID: sessionID,
	}
	ch.Hub.Register <- client

	transport := NewTransport(ch.Hub, client)
	sess.AttachTransport(transport, transport, transport)

	ch.sendConnected(client, sess)

	log.Info("chat session connected", zap.String("session_id", sessionID))

	go client.WritePump()
	go func() {
		client.ReadPump(func(cl *Client, data []byte) {
			ch.handleMessage(cl, sess, data)
		})
		sess.DetachTransport(transport)
	}()

	// A query submitted before the socket existed runs now, exactly once.
	if initial := sess.TakeInitialQuery(); initial != "" {
		go sess.Chat.SubmitInitialQuery(context.Background(), initial)
	}
}

// sendConnected pushes the confirmation frame with the transcript
// snapshot to the newly attached client.
func (ch *ChatHandler) sendConnected(client *Client, sess *session.Session) {
	payload := ConnectedPayload{
		SessionID:    sess.ID,
		Entries:      sess.Chat.Store().Entries(),
		QuickReplies: sess.Chat.Store().QuickReplies(),
		TTSEnabled:   sess.Chat.TTSEnabled(),
	}
	if v := sess.Chat.Voice(); v != nil {
		payload.VoiceID = v.VoiceID()
	}

	raw, _ := json.Marshal(payload)
	msg, _ := json.Marshal(WSMessage{Type: MsgTypeConnected, Payload: raw})
	client.Queue(msg)
}

// handleMessage parses an incoming WebSocket message and routes it to
// the appropriate handler.
func (ch *ChatHandler) handleMessage(client *Client, sess *session.Session, data []byte) {
	log := logger.Get()

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ch.sendError(client, "invalid message format")
		return
	}

	// Any traffic over the socket counts as activity.
	sess.Touch()

	log.Debug("received ws message",
		zap.String("type", msg.Type),
		zap.String("session_id", client.SessionID),
	)

	switch msg.Type {
	case MsgTypeChatMessage, MsgTypeQuickReply:
		ch.handleChatMessage(client, sess, msg.Payload)

	case MsgTypeVoiceToggle:
		var p VoiceTogglePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			ch.sendError(client, "invalid voice toggle payload")
			return
		}
		sess.Chat.SetTTSEnabled(p.Enabled)

	case MsgTypeSetVoice:
		ch.handleSetVoice(client, sess, msg.Payload)

	case MsgTypeStopSpeaking:
		if v := sess.Chat.Voice(); v != nil {
			v.Stop()
		}

	case MsgTypePlayMessage:
		var p PlayMessagePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.MessageID == "" {
			ch.sendError(client, "invalid play message payload")
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), ch.queryTimeout)
			defer cancel()
			sess.Chat.SpeakEntry(ctx, p.MessageID)
		}()

	default:
		ch.sendError(client, "unknown message type: "+msg.Type)
	}
}

// handleChatMessage runs one conversational turn. The turn blocks on
// the AI query, so it runs off the read pump; a second submission while
// one is in flight is dropped by the chat service.
func (ch *ChatHandler) handleChatMessage(client *Client, sess *session.Session, payload json.RawMessage) {
	var p ChatMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		ch.sendError(client, "invalid chat message payload")
		return
	}
	if strings.TrimSpace(p.Text) == "" {
		ch.sendError(client, "text cannot be empty")
		return
	}

	go sess.Chat.SubmitQuery(context.Background(), p.Text)
}

// handleSetVoice switches the synthesis voice for the session.
func (ch *ChatHandler) handleSetVoice(client *Client, sess *session.Session, payload json.RawMessage) {
	var p SetVoicePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.VoiceID == "" {
		ch.sendError(client, "invalid set voice payload")
		return
	}

	v := sess.Chat.Voice()
	if v == nil {
		ch.sendError(client, "voice is not configured on this server")
		return
	}
	v.SetVoice(p.VoiceID)
}

// sendError sends an error message to a single client.
func (ch *ChatHandler) sendError(client *Client, message string) {
	errPayload, _ := json.Marshal(ErrorPayload{
		Message: message,
	})
	errMsg, _ := json.Marshal(WSMessage{
		Type:    MsgTypeError,
		Payload: errPayload,
	})
	client.Queue(errMsg)
}
