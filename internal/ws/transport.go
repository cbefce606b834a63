package ws

import (
	"encoding/json"
	"sync"

	"github.com/windoze95/chefbot-api/internal/conversation"
	"github.com/windoze95/chefbot-api/internal/service"
)

// audioChunkSize bounds each audio frame so a long reply never exceeds
// the client's read limit.
const audioChunkSize = 16 * 1024

// Transport adapts one WebSocket client into the chat core's output
// interfaces: transcript events fan out to every tab of the session
// through the hub, notifications and audio go to this client only.
type Transport struct {
	hub    *Hub
	client *Client
}

// NewTransport wires a connected client into a session.
func NewTransport(hub *Hub, client *Client) *Transport {
	return &Transport{hub: hub, client: client}
}

func (t *Transport) broadcast(msgType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg, err := json.Marshal(WSMessage{Type: msgType, Payload: raw})
	if err != nil {
		return
	}
	t.hub.Broadcast <- &SessionMessage{SessionID: t.client.SessionID, Message: msg}
}

func (t *Transport) send(msgType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg, err := json.Marshal(WSMessage{Type: msgType, Payload: raw})
	if err != nil {
		return
	}
	t.client.Queue(msg)
}

// EntryAppended implements service.ConversationListener.
func (t *Transport) EntryAppended(entry conversation.MessageEntry) {
	t.broadcast(MsgTypeMessageAppended, EntryPayload{Entry: entry})
}

// EntryResolved implements service.ConversationListener.
func (t *Transport) EntryResolved(replacedID string, entry conversation.MessageEntry) {
	t.broadcast(MsgTypeMessageResolved, ResolvedPayload{ReplacedID: replacedID, Entry: entry})
}

// EntryRemoved implements service.ConversationListener.
func (t *Transport) EntryRemoved(id string) {
	t.broadcast(MsgTypeMessageRemoved, RemovedPayload{ID: id})
}

// QuickRepliesUpdated implements service.ConversationListener.
func (t *Transport) QuickRepliesUpdated(replies []string) {
	t.broadcast(MsgTypeQuickReplies, QuickRepliesPayload{Replies: replies})
}

// Notify implements service.Notifier. Notices are transient and
// dismissible on the client; they never enter the transcript. The
// payload tells the client when to auto-dismiss.
func (t *Transport) Notify(message string) {
	t.send(MsgTypeNotification, NotificationPayload{
		Message:     message,
		ExpiresInMs: notificationTTLMs,
	})
}

// Play implements service.Player by streaming the audio to the client
// in chunks. The playback completes when the last chunk is queued.
func (t *Transport) Play(audio []byte) (service.Playback, error) {
	p := &streamPlayback{
		transport: t,
		audio:     audio,
		done:      make(chan error, 1),
		stop:      make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// streamPlayback pushes one synthesized reply to the client chunk by
// chunk. Stop aborts mid-stream; the client discards buffered audio
// when it sees the interrupted end frame.
type streamPlayback struct {
	transport *Transport
	audio     []byte
	done      chan error
	stop      chan struct{}
	stopOnce  sync.Once
}

func (p *streamPlayback) run() {
	total := len(p.audio)
	for offset := 0; offset < total; offset += audioChunkSize {
		select {
		case <-p.stop:
			p.transport.send(MsgTypeAudioEnd, AudioEndPayload{Interrupted: true})
			p.done <- nil
			return
		default:
		}

		end := offset + audioChunkSize
		if end > total {
			end = total
		}
		p.transport.send(MsgTypeAudioChunk, AudioChunkPayload{
			Data:  p.audio[offset:end],
			Final: end == total,
		})
	}
	p.transport.send(MsgTypeAudioEnd, AudioEndPayload{})
	p.done <- nil
}

// Done implements service.Playback.
func (p *streamPlayback) Done() <-chan error { return p.done }

// Stop implements service.Playback.
func (p *streamPlayback) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Release implements service.Playback. The stream holds no resource
// beyond the buffer, so there is nothing to free.
func (p *streamPlayback) Release() {}
