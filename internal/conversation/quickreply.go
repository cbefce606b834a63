package conversation

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// foodTerms is the fixed vocabulary scanned for in assistant replies,
// in priority order.
var foodTerms = []string{
	"chicken", "pasta", "rice", "vegetable", "beef",
	"fish", "salad", "soup", "bread", "dessert",
}

// replyTemplates are the phrasings a matched term is slotted into.
var replyTemplates = []string{
	"How to cook %s?",
	"Best %s recipes",
	"Healthy %s ideas",
	"Quick %s meal",
}

// generalSuggestions pad the contextual set, and stand alone when no
// food term matched.
var generalSuggestions = []string{
	"What can I make in 30 minutes?",
	"Give me a vegetarian dinner idea",
}

const (
	maxContextualReplies = 3
	maxQuickReplies      = 5
)

// QuickReplyGenerator derives follow-up suggestions from the assistant's
// last message. Template choice is pseudo-random; inject a fixed source
// to make it deterministic.
type QuickReplyGenerator struct {
	rng *rand.Rand
}

// NewQuickReplyGenerator creates a generator with a time-seeded source.
func NewQuickReplyGenerator() *QuickReplyGenerator {
	return NewQuickReplyGeneratorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewQuickReplyGeneratorWithSource creates a generator with the given
// random source.
func NewQuickReplyGeneratorWithSource(src rand.Source) *QuickReplyGenerator {
	return &QuickReplyGenerator{rng: rand.New(src)}
}

// Generate returns up to five suggestions: at most three built from food
// terms found in the text (deduplicated, in order of first appearance)
// padded with up to two general suggestions. With no matches it returns
// the general list unchanged.
func (g *QuickReplyGenerator) Generate(lastAssistantText string) []string {
	lower := strings.ToLower(lastAssistantText)

	type match struct {
		term string
		pos  int
	}
	var matches []match
	for _, term := range foodTerms {
		if pos := strings.Index(lower, term); pos >= 0 {
			matches = append(matches, match{term: term, pos: pos})
		}
	}

	if len(matches) == 0 {
		return append([]string(nil), generalSuggestions...)
	}

	// Order of first appearance in the text.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].pos < matches[j-1].pos; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	var replies []string
	for _, m := range matches {
		if len(replies) == maxContextualReplies {
			break
		}
		tmpl := replyTemplates[g.rng.Intn(len(replyTemplates))]
		replies = append(replies, fmt.Sprintf(tmpl, m.term))
	}

	for _, s := range generalSuggestions {
		if len(replies) == maxQuickReplies {
			break
		}
		replies = append(replies, s)
	}

	return replies
}
