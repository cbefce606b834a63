package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/windoze95/chefbot-api/internal/ai"
	"github.com/windoze95/chefbot-api/internal/conversation"
	"github.com/windoze95/chefbot-api/internal/logger"
	"go.uber.org/zap"
)

// apologyText is the single user-visible message appended when a turn
// fails. One apology per failed turn, no automatic retry.
const apologyText = "Sorry, I had trouble processing that request. Please try again."

// ConversationListener receives transcript changes so a transport can
// push them to the client. Implementations must not block.
type ConversationListener interface {
	EntryAppended(entry conversation.MessageEntry)
	EntryResolved(replacedID string, entry conversation.MessageEntry)
	EntryRemoved(id string)
	QuickRepliesUpdated(replies []string)
}

// nopListener is the default when no transport is attached yet.
type nopListener struct{}

func (nopListener) EntryAppended(conversation.MessageEntry)         {}
func (nopListener) EntryResolved(string, conversation.MessageEntry) {}
func (nopListener) EntryRemoved(string)                             {}
func (nopListener) QuickRepliesUpdated([]string)                    {}

// ChatService runs conversational turns for one session. It is the only
// writer to its conversation store, allows a single in-flight turn, and
// coordinates recipe parsing, quick replies, and voice output around the
// one suspension point: the AI query.
type ChatService struct {
	store     *conversation.Store
	text      ai.TextProvider
	voice     *VoiceService
	quickgen  *conversation.QuickReplyGenerator
	sanitizer *Sanitizer
	notifier  Notifier
	log       *zap.Logger

	queryTimeout time.Duration

	mu             sync.Mutex
	listener       ConversationListener
	inFlight       bool
	initialHandled bool
	ttsEnabled     bool
}

// NewChatService creates the lifecycle controller for one session.
// voice may be nil when synthesis is disabled for the deployment.
func NewChatService(text ai.TextProvider, voice *VoiceService, notifier Notifier, queryTimeout time.Duration) *ChatService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ChatService{
		store:        conversation.NewStore(),
		text:         text,
		voice:        voice,
		quickgen:     conversation.NewQuickReplyGenerator(),
		sanitizer:    NewSanitizer(),
		notifier:     notifier,
		log:          logger.Get(),
		queryTimeout: queryTimeout,
		listener:     nopListener{},
		ttsEnabled:   true,
	}
}

// SetListener attaches the transport-side listener.
func (s *ChatService) SetListener(l ConversationListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		s.listener = nopListener{}
		return
	}
	s.listener = l
}

func (s *ChatService) currentListener() ConversationListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

// Store exposes the transcript for snapshots.
func (s *ChatService) Store() *conversation.Store {
	return s.store
}

// SetTTSEnabled toggles automatic speech on assistant replies.
func (s *ChatService) SetTTSEnabled(enabled bool) {
	s.mu.Lock()
	s.ttsEnabled = enabled
	s.mu.Unlock()
	if !enabled && s.voice != nil {
		s.voice.Stop()
	}
}

// TTSEnabled reports whether assistant replies are spoken automatically.
func (s *ChatService) TTSEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttsEnabled
}

// Voice returns the session's voice service, nil when disabled.
func (s *ChatService) Voice() *VoiceService {
	return s.voice
}

// SubmitInitialQuery runs the landing-page query exactly once per
// session. Repeated calls are no-ops, so a client re-sending the
// injection cannot duplicate the turn.
func (s *ChatService) SubmitInitialQuery(ctx context.Context, text string) {
	s.mu.Lock()
	if s.initialHandled {
		s.mu.Unlock()
		return
	}
	s.initialHandled = true
	s.mu.Unlock()

	s.SubmitQuery(ctx, text)
}

// SubmitQuery runs one full turn: append the user message and a loading
// placeholder, ask the AI, then resolve the placeholder with either the
// parsed reply or an apology. Empty input and calls made while a turn is
// in flight are no-ops. The conversation gains exactly two entries per
// accepted turn, success or failure.
func (s *ChatService) SubmitQuery(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.log.Debug("turn rejected: one already in flight")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	listener := s.currentListener()

	userEntry := conversation.NewUserEntry(text)
	if err := s.store.Append(userEntry); err != nil {
		s.log.Error("append user entry", zap.Error(err))
		return
	}
	listener.EntryAppended(userEntry)

	loadingEntry := conversation.NewLoadingEntry()
	if err := s.store.Append(loadingEntry); err != nil {
		s.log.Error("append loading entry", zap.Error(err))
		return
	}
	listener.EntryAppended(loadingEntry)

	s.store.SetLoading(true)
	defer s.store.SetLoading(false)

	queryType := ai.SniffQueryType(text)
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	display, err := s.text.AskAI(queryCtx, text, queryType)
	if err != nil {
		s.resolveFailure(listener, loadingEntry.ID, err)
		return
	}

	s.resolveSuccess(listener, loadingEntry.ID, display)
}

// resolveSuccess replaces the placeholder with the parsed assistant
// reply, refreshes quick replies, and kicks off speech. A speech failure
// is a notification, never a conversation change.
func (s *ChatService) resolveSuccess(listener ConversationListener, loadingID, display string) {
	display = s.sanitizer.Clean(display)

	content := conversation.ParseContent(display)
	resolved := conversation.NewAssistantEntry(content)
	if err := s.store.ReplaceEntry(loadingID, resolved); err != nil {
		s.log.Error("replace loading entry", zap.Error(err))
		return
	}
	listener.EntryResolved(loadingID, resolved)

	replies := s.quickgen.Generate(display)
	s.store.SetQuickReplies(replies)
	listener.QuickRepliesUpdated(replies)

	if s.TTSEnabled() && s.voice != nil {
		go func() {
			speakCtx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
			defer cancel()
			// Failures notify the user inside Speak; nothing else to do.
			_ = s.voice.Speak(speakCtx, display)
		}()
	}
}

// resolveFailure removes the dangling placeholder and appends the
// apology entry.
func (s *ChatService) resolveFailure(listener ConversationListener, loadingID string, cause error) {
	s.log.Warn("AI query failed", zap.Error(cause))

	if err := s.store.RemoveEntry(loadingID); err != nil {
		s.log.Error("remove loading entry", zap.Error(err))
	} else {
		listener.EntryRemoved(loadingID)
	}

	apology := conversation.NewAssistantEntry(conversation.TextContent(apologyText))
	if err := s.store.Append(apology); err != nil {
		s.log.Error("append apology entry", zap.Error(err))
		return
	}
	listener.EntryAppended(apology)
}

// SpeakEntry replays a resolved assistant entry through the voice
// service. Used by the per-message play control.
func (s *ChatService) SpeakEntry(ctx context.Context, entryID string) {
	if s.voice == nil {
		s.notifier.Notify(msgSynthesisUnset)
		return
	}
	entry, ok := s.store.Entry(entryID)
	if !ok || entry.Role != conversation.RoleAssistant || entry.IsLoading {
		return
	}
	_ = s.voice.Speak(ctx, entry.Content.Display)
}
