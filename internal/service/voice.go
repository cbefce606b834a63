// Package service contains the per-session chat core: the message
// lifecycle controller that runs one conversational turn to completion
// and the voice service that owns synthesized-audio playback.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/windoze95/chefbot-api/internal/ai"
	"github.com/windoze95/chefbot-api/internal/conversation"
	"github.com/windoze95/chefbot-api/internal/logger"
	"go.uber.org/zap"
)

// Player builds a playback from synthesized audio bytes. Implementations
// decide where the audio goes: the WebSocket player streams it to the
// browser, the disabled variant rejects every request. The chat core
// never references a platform audio API directly.
type Player interface {
	Play(audio []byte) (Playback, error)
}

// Playback is a single live audio playback. Done yields nil on natural
// completion or the playback error, exactly once. Release frees the
// underlying resource; the VoiceService guarantees it is called exactly
// once on every exit path.
type Playback interface {
	Done() <-chan error
	Stop()
	Release()
}

// Notifier delivers transient, dismissible user-facing notices. They
// never alter conversation content.
type Notifier interface {
	Notify(message string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// User-facing messages for voice failures. Each taxonomy reason maps to
// its own message.
const (
	msgSynthesisUnavailable = "Voice is unavailable right now. The reply is text-only."
	msgSynthesisAuth        = "Voice service rejected our credentials. The reply is text-only."
	msgSynthesisRateLimit   = "Voice limit reached for now. The reply is text-only."
	msgSynthesisUnset       = "Voice is not configured on this server."
	msgPlaybackFailed       = "Couldn't play the audio for that reply."
)

// ErrVoiceDisabled is returned by Speak when no synthesis provider is
// configured.
var ErrVoiceDisabled = fmt.Errorf("voice synthesis: %w", ai.ErrNotConfigured)

// playbackSession pairs a live playback with a once so release happens
// exactly once no matter which exit path wins.
type playbackSession struct {
	playback Playback
	release  sync.Once
}

func (s *playbackSession) releaseOnce() {
	s.release.Do(s.playback.Release)
}

// VoiceService synthesizes and plays at most one audio stream at a time.
// A new Speak supersedes the current playback (stop-before-start); Stop
// is idempotent. All failures surface as notifications, never as
// conversation mutations.
type VoiceService struct {
	synth    ai.SpeechSynthesisProvider
	player   Player
	notifier Notifier
	log      *zap.Logger

	// speakMu serializes the stop-synthesize-play sequence so two
	// overlapping Speak calls cannot both install a playback.
	speakMu sync.Mutex

	mu       sync.Mutex
	current  *playbackSession
	speaking bool
	voiceID  string
}

// NewVoiceService creates a voice service. synth may be nil when the
// collaborator is unconfigured; Speak then only notifies.
func NewVoiceService(synth ai.SpeechSynthesisProvider, player Player, notifier Notifier, voiceID string) *VoiceService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &VoiceService{
		synth:    synth,
		player:   player,
		notifier: notifier,
		log:      logger.Get(),
		voiceID:  voiceID,
	}
}

// Speak synthesizes text and starts playback, stopping and releasing any
// playback already in progress first. Failures are reported through the
// notifier and returned for logging; they never propagate further.
func (v *VoiceService) Speak(ctx context.Context, text string) error {
	if v.synth == nil {
		v.notifier.Notify(msgSynthesisUnset)
		return ErrVoiceDisabled
	}

	v.speakMu.Lock()
	defer v.speakMu.Unlock()

	// Stop-before-start: never two concurrent playbacks.
	v.Stop()

	settings := settingsFor(conversation.DetectLanguage(text))

	v.mu.Lock()
	voiceID := v.voiceID
	v.mu.Unlock()

	audio, err := v.synth.Synthesize(ctx, text, voiceID, settings)
	if err != nil {
		v.notifier.Notify(synthesisFailureMessage(err))
		v.log.Warn("speech synthesis failed", zap.Error(err))
		return err
	}

	playback, err := v.player.Play(audio)
	if err != nil {
		v.notifier.Notify(msgPlaybackFailed)
		v.log.Warn("audio playback failed to start", zap.Error(err))
		return err
	}

	session := &playbackSession{playback: playback}
	v.mu.Lock()
	v.current = session
	v.speaking = true
	v.mu.Unlock()

	go v.watch(session)
	return nil
}

// watch waits for the playback to finish and cleans up, unless the
// session was already superseded or stopped.
func (v *VoiceService) watch(session *playbackSession) {
	err := <-session.playback.Done()

	v.mu.Lock()
	if v.current == session {
		v.current = nil
		v.speaking = false
	}
	v.mu.Unlock()

	session.releaseOnce()

	if err != nil {
		v.notifier.Notify(msgPlaybackFailed)
		v.log.Warn("audio playback failed", zap.Error(err))
	}
}

// Stop halts and releases the current playback, if any. Safe to call
// when nothing is playing; always leaves speaking=false.
func (v *VoiceService) Stop() {
	v.mu.Lock()
	session := v.current
	v.current = nil
	v.speaking = false
	v.mu.Unlock()

	if session != nil {
		session.playback.Stop()
		session.releaseOnce()
	}
}

// Speaking reports whether a playback is in progress.
func (v *VoiceService) Speaking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.speaking
}

// SetVoice switches the voice used for subsequent Speak calls.
func (v *VoiceService) SetVoice(voiceID string) {
	v.mu.Lock()
	v.voiceID = voiceID
	v.mu.Unlock()
}

// VoiceID returns the current voice.
func (v *VoiceService) VoiceID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.voiceID
}

// settingsFor picks synthesis parameters by detected language. Hindi in
// either script gets a more stable, slightly more expressive delivery
// for better pronunciation.
func settingsFor(lang conversation.Language) ai.VoiceSettings {
	settings := ai.VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.25,
		SpeakerBoost:    true,
	}
	if lang == conversation.LangHindi || lang == conversation.LangHindiRoman {
		settings.Stability = 0.7
		settings.Style = 0.3
	}
	return settings
}

// synthesisFailureMessage maps a synthesis error to its user-facing
// notification text.
func synthesisFailureMessage(err error) string {
	switch {
	case errors.Is(err, ai.ErrAuth):
		return msgSynthesisAuth
	case errors.Is(err, ai.ErrRateLimited):
		return msgSynthesisRateLimit
	default:
		return msgSynthesisUnavailable
	}
}
