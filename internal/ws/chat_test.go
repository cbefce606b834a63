package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/windoze95/chefbot-api/internal/ai"
	"github.com/windoze95/chefbot-api/internal/conversation"
	"github.com/windoze95/chefbot-api/internal/session"
	"github.com/windoze95/chefbot-api/internal/testutil"
)

// setupTestChatHandler creates a ChatHandler with mock providers and a
// running Hub. Callers can configure the mock funcs before invoking handlers.
func setupTestChatHandler() (*ChatHandler, *testutil.MockTextProvider) {
	mockText := &testutil.MockTextProvider{
		AskAIFunc: func(ctx context.Context, query string, queryType ai.QueryType) (string, error) {
			return "Use medium heat and be patient.", nil
		},
	}
	manager := session.NewManager(mockText, &testutil.MockSpeechProvider{}, "voice-1", 5*time.Second, 30*time.Minute)
	hub := NewHub()
	go hub.Run()
	return NewChatHandler(hub, "test-secret", manager, 5*time.Second), mockText
}

// newTestClient creates a Client with a buffered Send channel and no real
// websocket.Conn. This works because the handler methods write to client.Send
// rather than Conn directly.
func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		Hub:       hub,
		Send:      make(chan []byte, 256),
		SessionID: sessionID,
	}
}

// attachClient registers the client with the hub and wires it into the
// session as its transport.
func attachClient(ch *ChatHandler, sess *session.Session, client *Client) *Transport {
	ch.Hub.Register <- client
	transport := NewTransport(ch.Hub, client)
	sess.AttachTransport(transport, transport, transport)
	return transport
}

// readMessage reads a single WSMessage from the client's Send channel with a
// short timeout to prevent tests from hanging.
func readMessage(t *testing.T, client *Client) WSMessage {
	t.Helper()
	select {
	case data := <-client.Send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal message from Send channel: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message on Send channel")
		return WSMessage{}
	}
}

// assertNoMoreMessages verifies nothing else is pending on the Send channel.
func assertNoMoreMessages(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.Send:
		t.Fatalf("unexpected extra message on Send channel: %s", string(data))
	case <-time.After(50 * time.Millisecond):
		// OK, nothing pending
	}
}

// --- turn tests ---

func TestHandleChatMessage_FullTurn(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	sess.Chat.SetTTSEnabled(false)
	client := newTestClient(ch.Hub, sess.ID)
	attachClient(ch, sess, client)

	payload, _ := json.Marshal(ChatMessagePayload{Text: "How do I sear a steak?"})
	ch.handleChatMessage(client, sess, payload)

	// User entry
	msg := readMessage(t, client)
	if msg.Type != MsgTypeMessageAppended {
		t.Fatalf("expected type %q, got %q", MsgTypeMessageAppended, msg.Type)
	}
	var userEntry EntryPayload
	if err := json.Unmarshal(msg.Payload, &userEntry); err != nil {
		t.Fatalf("failed to unmarshal EntryPayload: %v", err)
	}
	if userEntry.Entry.Role != conversation.RoleUser {
		t.Errorf("expected user entry, got %q", userEntry.Entry.Role)
	}

	// Loading placeholder
	msg2 := readMessage(t, client)
	if msg2.Type != MsgTypeMessageAppended {
		t.Fatalf("expected type %q, got %q", MsgTypeMessageAppended, msg2.Type)
	}
	var loadingEntry EntryPayload
	if err := json.Unmarshal(msg2.Payload, &loadingEntry); err != nil {
		t.Fatalf("failed to unmarshal EntryPayload: %v", err)
	}
	if !loadingEntry.Entry.IsLoading {
		t.Error("second appended entry should be the loading placeholder")
	}

	// Resolved reply
	msg3 := readMessage(t, client)
	if msg3.Type != MsgTypeMessageResolved {
		t.Fatalf("expected type %q, got %q", MsgTypeMessageResolved, msg3.Type)
	}
	var resolved ResolvedPayload
	if err := json.Unmarshal(msg3.Payload, &resolved); err != nil {
		t.Fatalf("failed to unmarshal ResolvedPayload: %v", err)
	}
	if resolved.ReplacedID != loadingEntry.Entry.ID {
		t.Errorf("resolved replaced %q, want %q", resolved.ReplacedID, loadingEntry.Entry.ID)
	}
	if resolved.Entry.Content.Display != "Use medium heat and be patient." {
		t.Errorf("unexpected reply: %q", resolved.Entry.Content.Display)
	}

	// Quick replies
	msg4 := readMessage(t, client)
	if msg4.Type != MsgTypeQuickReplies {
		t.Fatalf("expected type %q, got %q", MsgTypeQuickReplies, msg4.Type)
	}
	assertNoMoreMessages(t, client)
}

func TestHandleChatMessage_EmptyText(t *testing.T) {
	ch, mockText := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)

	payload, _ := json.Marshal(ChatMessagePayload{Text: "   "})
	ch.handleChatMessage(client, sess, payload)

	msg := readMessage(t, client)
	if msg.Type != MsgTypeError {
		t.Fatalf("expected error type, got %q", msg.Type)
	}
	var errPayload ErrorPayload
	if err := json.Unmarshal(msg.Payload, &errPayload); err != nil {
		t.Fatalf("failed to unmarshal ErrorPayload: %v", err)
	}
	if errPayload.Message != "text cannot be empty" {
		t.Errorf("unexpected error message: %q", errPayload.Message)
	}
	if calls := mockText.Calls(); len(calls) != 0 {
		t.Errorf("AskAI calls = %d, want 0", len(calls))
	}
}

// --- routing tests ---

func TestHandleMessage_InvalidJSON(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)

	ch.handleMessage(client, sess, []byte(`{not valid json`))

	msg := readMessage(t, client)
	if msg.Type != MsgTypeError {
		t.Fatalf("expected error type, got %q", msg.Type)
	}
}

func TestHandleMessage_UnknownType(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)

	data, _ := json.Marshal(WSMessage{
		Type:    "bogus_type",
		Payload: json.RawMessage(`{}`),
	})
	ch.handleMessage(client, sess, data)

	msg := readMessage(t, client)
	if msg.Type != MsgTypeError {
		t.Fatalf("expected error type, got %q", msg.Type)
	}
	var errPayload ErrorPayload
	if err := json.Unmarshal(msg.Payload, &errPayload); err != nil {
		t.Fatalf("failed to unmarshal ErrorPayload: %v", err)
	}
	if errPayload.Message != "unknown message type: bogus_type" {
		t.Errorf("unexpected error message: %q", errPayload.Message)
	}
}

func TestHandleMessage_VoiceToggle(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)

	payload, _ := json.Marshal(VoiceTogglePayload{Enabled: false})
	data, _ := json.Marshal(WSMessage{Type: MsgTypeVoiceToggle, Payload: payload})
	ch.handleMessage(client, sess, data)

	if sess.Chat.TTSEnabled() {
		t.Error("TTS should be disabled after toggle")
	}
	assertNoMoreMessages(t, client)
}

func TestHandleMessage_SetVoice(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)

	payload, _ := json.Marshal(SetVoicePayload{VoiceID: "voice-2"})
	data, _ := json.Marshal(WSMessage{Type: MsgTypeSetVoice, Payload: payload})
	ch.handleMessage(client, sess, data)

	if got := sess.Chat.Voice().VoiceID(); got != "voice-2" {
		t.Errorf("voice = %q, want voice-2", got)
	}
	assertNoMoreMessages(t, client)
}

func TestHandleMessage_SetVoiceWithoutSynthesis(t *testing.T) {
	mockText := &testutil.MockTextProvider{}
	manager := session.NewManager(mockText, nil, "voice-1", 5*time.Second, 30*time.Minute)
	hub := NewHub()
	go hub.Run()
	ch := NewChatHandler(hub, "test-secret", manager, 5*time.Second)

	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)

	payload, _ := json.Marshal(SetVoicePayload{VoiceID: "voice-2"})
	data, _ := json.Marshal(WSMessage{Type: MsgTypeSetVoice, Payload: payload})
	ch.handleMessage(client, sess, data)

	msg := readMessage(t, client)
	if msg.Type != MsgTypeError {
		t.Fatalf("expected error type, got %q", msg.Type)
	}
}

func TestHandleMessage_PlayMessageInvalidPayload(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)

	data, _ := json.Marshal(WSMessage{Type: MsgTypePlayMessage, Payload: json.RawMessage(`{}`)})
	ch.handleMessage(client, sess, data)

	msg := readMessage(t, client)
	if msg.Type != MsgTypeError {
		t.Fatalf("expected error type, got %q", msg.Type)
	}
}

// --- audio streaming tests ---

func TestTransportPlay_StreamsChunks(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)
	transport := attachClient(ch, sess, client)

	audio := make([]byte, audioChunkSize*2+100)
	for i := range audio {
		audio[i] = byte(i % 251)
	}

	playback, err := transport.Play(audio)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	var received []byte
	sawFinal := false
	for i := 0; i < 3; i++ {
		msg := readMessage(t, client)
		if msg.Type != MsgTypeAudioChunk {
			t.Fatalf("chunk %d: expected type %q, got %q", i, MsgTypeAudioChunk, msg.Type)
		}
		var chunk AudioChunkPayload
		if err := json.Unmarshal(msg.Payload, &chunk); err != nil {
			t.Fatalf("failed to unmarshal AudioChunkPayload: %v", err)
		}
		received = append(received, chunk.Data...)
		sawFinal = chunk.Final
	}
	if !sawFinal {
		t.Error("last chunk should be marked final")
	}
	if len(received) != len(audio) {
		t.Errorf("received %d bytes, want %d", len(received), len(audio))
	}

	endMsg := readMessage(t, client)
	if endMsg.Type != MsgTypeAudioEnd {
		t.Fatalf("expected type %q, got %q", MsgTypeAudioEnd, endMsg.Type)
	}
	var end AudioEndPayload
	if err := json.Unmarshal(endMsg.Payload, &end); err != nil {
		t.Fatalf("failed to unmarshal AudioEndPayload: %v", err)
	}
	if end.Interrupted {
		t.Error("stream completed naturally, should not be interrupted")
	}

	select {
	case err := <-playback.Done():
		if err != nil {
			t.Errorf("Done yielded %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback completion")
	}
}

func TestTransportNotify_GoesToClient(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")
	client := newTestClient(ch.Hub, sess.ID)
	transport := attachClient(ch, sess, client)

	transport.Notify("Voice limit reached for now. The reply is text-only.")

	msg := readMessage(t, client)
	if msg.Type != MsgTypeNotification {
		t.Fatalf("expected type %q, got %q", MsgTypeNotification, msg.Type)
	}
	var notice NotificationPayload
	if err := json.Unmarshal(msg.Payload, &notice); err != nil {
		t.Fatalf("failed to unmarshal NotificationPayload: %v", err)
	}
	if notice.Message == "" {
		t.Error("notification message should not be empty")
	}
	if notice.ExpiresInMs != notificationTTLMs {
		t.Errorf("expires_in_ms = %d, want %d", notice.ExpiresInMs, notificationTTLMs)
	}
}

func TestBroadcast_ReachesEveryTab(t *testing.T) {
	ch, _ := setupTestChatHandler()
	sess := ch.Manager.Create("", "")

	clientA := newTestClient(ch.Hub, sess.ID)
	clientB := newTestClient(ch.Hub, sess.ID)
	ch.Hub.Register <- clientA
	ch.Hub.Register <- clientB

	transport := NewTransport(ch.Hub, clientA)
	transport.QuickRepliesUpdated([]string{"Best pasta recipes"})

	for _, client := range []*Client{clientA, clientB} {
		msg := readMessage(t, client)
		if msg.Type != MsgTypeQuickReplies {
			t.Fatalf("expected type %q, got %q", MsgTypeQuickReplies, msg.Type)
		}
	}
}
