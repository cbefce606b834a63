package service

import (
	goaway "github.com/TwiN/go-away"
)

// Sanitizer censors profanity in assistant replies before they are
// displayed or spoken. The kitchen stays family-friendly even when the
// model slips.
type Sanitizer struct {
	detector *goaway.ProfanityDetector
}

// NewSanitizer creates a sanitizer with leet-speak and special-character
// normalization enabled, matching how user content is screened elsewhere.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		detector: goaway.NewProfanityDetector().
			WithSanitizeLeetSpeak(true).
			WithSanitizeSpecialCharacters(true).
			WithSanitizeAccents(false),
	}
}

// Clean returns the text with profanity masked. Clean text passes
// through unchanged.
func (s *Sanitizer) Clean(text string) string {
	if !s.detector.IsProfane(text) {
		return text
	}
	return s.detector.Censor(text)
}
