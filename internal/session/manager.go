// Package session owns the registry of live chat sessions. Each session
// bundles a chat service and its voice service, created on demand and
// expired after a period of inactivity.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/windoze95/chefbot-api/internal/ai"
	"github.com/windoze95/chefbot-api/internal/logger"
	"github.com/windoze95/chefbot-api/internal/service"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned when a session ID is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is one live conversation with its services and transport
// attachment points.
type Session struct {
	ID   string
	Chat *service.ChatService

	sink   *playerSwitch
	notify *notifierSwitch

	mu           sync.Mutex
	initialQuery string
	lastActive   time.Time
	attached     service.Player
}

// AttachTransport points the session's audio and notification output at
// a connected transport. Called when a WebSocket client connects; a
// later connection for the same session takes over the attachment.
func (s *Session) AttachTransport(player service.Player, notifier service.Notifier, listener service.ConversationListener) {
	s.mu.Lock()
	s.attached = player
	s.mu.Unlock()
	s.sink.set(player)
	s.notify.set(notifier)
	s.Chat.SetListener(listener)
}

// DetachTransport disconnects the given transport and halts playback.
// A transport that has already been superseded by a newer attachment is
// ignored, so one tab closing cannot silence the tab that took over.
// Passing nil forces the detach regardless of who is attached. The
// session itself stays alive until the idle TTL reaps it.
func (s *Session) DetachTransport(player service.Player) {
	s.mu.Lock()
	if player != nil && s.attached != player {
		s.mu.Unlock()
		return
	}
	s.attached = nil
	s.mu.Unlock()

	if v := s.Chat.Voice(); v != nil {
		v.Stop()
	}
	s.sink.set(nil)
	s.notify.set(nil)
	s.Chat.SetListener(nil)
}

// TakeInitialQuery returns the landing-page query and clears it, so the
// connecting transport runs it at most once.
func (s *Session) TakeInitialQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.initialQuery
	s.initialQuery = ""
	return q
}

// Touch refreshes the idle timer. Called on lookup and on every
// handled client message so an active conversation is never reaped.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Manager creates, looks up, and expires sessions.
type Manager struct {
	text         ai.TextProvider
	synth        ai.SpeechSynthesisProvider
	defaultVoice string
	queryTimeout time.Duration
	idleTTL      time.Duration
	log          *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. synth may be nil when speech is
// not configured; sessions then run text-only.
func NewManager(text ai.TextProvider, synth ai.SpeechSynthesisProvider, defaultVoice string, queryTimeout, idleTTL time.Duration) *Manager {
	m := &Manager{
		text:         text,
		synth:        synth,
		defaultVoice: defaultVoice,
		queryTimeout: queryTimeout,
		idleTTL:      idleTTL,
		log:          logger.Get(),
		sessions:     make(map[string]*Session),
	}
	go m.reapLoop()
	return m
}

// Create starts a new session. initialQuery may be empty; voiceID falls
// back to the server default.
func (m *Manager) Create(initialQuery, voiceID string) *Session {
	if voiceID == "" {
		voiceID = m.defaultVoice
	}

	sink := &playerSwitch{}
	notify := &notifierSwitch{}

	var voice *service.VoiceService
	if m.synth != nil {
		voice = service.NewVoiceService(m.synth, sink, notify, voiceID)
	}
	chat := service.NewChatService(m.text, voice, notify, m.queryTimeout)

	sess := &Session{
		ID:           uuid.New().String(),
		Chat:         chat,
		sink:         sink,
		notify:       notify,
		initialQuery: initialQuery,
		lastActive:   time.Now(),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.log.Info("session created",
		zap.String("session_id", sess.ID),
		zap.Bool("voice_enabled", voice != nil),
	)
	return sess
}

// Get returns the session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.Touch()
	return sess, nil
}

// Remove drops a session and halts any playback.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		sess.DetachTransport(nil)
		m.log.Info("session removed", zap.String("session_id", id))
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// reapLoop drops sessions that have been idle past the TTL.
func (m *Manager) reapLoop() {
	interval := m.idleTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	for range time.Tick(interval) {
		m.reapIdle()
	}
}

func (m *Manager) reapIdle() {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.DetachTransport(nil)
		m.log.Info("session expired", zap.String("session_id", sess.ID))
	}
}

// playerSwitch routes playback to whichever transport is currently
// attached. Play fails when no client is connected.
type playerSwitch struct {
	mu     sync.Mutex
	player service.Player
}

func (p *playerSwitch) set(player service.Player) {
	p.mu.Lock()
	p.player = player
	p.mu.Unlock()
}

func (p *playerSwitch) Play(audio []byte) (service.Playback, error) {
	p.mu.Lock()
	player := p.player
	p.mu.Unlock()
	if player == nil {
		return nil, errors.New("no audio sink attached")
	}
	return player.Play(audio)
}

// notifierSwitch routes notifications to the attached transport,
// dropping them when no client is connected.
type notifierSwitch struct {
	mu       sync.Mutex
	notifier service.Notifier
}

func (n *notifierSwitch) set(notifier service.Notifier) {
	n.mu.Lock()
	n.notifier = notifier
	n.mu.Unlock()
}

func (n *notifierSwitch) Notify(message string) {
	n.mu.Lock()
	notifier := n.notifier
	n.mu.Unlock()
	if notifier != nil {
		notifier.Notify(message)
	}
}
