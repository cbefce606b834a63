// Package conversation holds the chat transcript model: message entries,
// the parsed recipe structure, the store that owns them for a session's
// lifetime, and the pure helpers that derive structure and suggestions
// from assistant text.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind tags the Content union.
type ContentKind string

const (
	ContentText   ContentKind = "text"
	ContentRecipe ContentKind = "recipe"
)

// Content is a tagged union: either plain display text or a parsed
// recipe. Display always carries the raw text; Recipe is set only when
// Kind is ContentRecipe.
type Content struct {
	Kind    ContentKind      `json:"kind"`
	Display string           `json:"display"`
	Recipe  *RecipeStructure `json:"recipe,omitempty"`
}

// TextContent builds plain-text content.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Display: text}
}

// RecipeContent builds recipe content. The raw display text is kept so
// clients that can't render cards still have something to show.
func RecipeContent(display string, recipe *RecipeStructure) Content {
	return Content{Kind: ContentRecipe, Display: display, Recipe: recipe}
}

// MessageEntry is a single entry in the transcript. IsLoading marks the
// transient assistant placeholder shown while a turn is in flight; a
// loading entry has no content. Timestamp is immutable once set.
type MessageEntry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	IsLoading bool      `json:"is_loading"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserEntry creates a resolved user message entry.
func NewUserEntry(text string) MessageEntry {
	return MessageEntry{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   TextContent(text),
		Timestamp: time.Now(),
	}
}

// NewLoadingEntry creates the transient assistant placeholder.
func NewLoadingEntry() MessageEntry {
	return MessageEntry{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		IsLoading: true,
		Timestamp: time.Now(),
	}
}

// NewAssistantEntry creates a resolved assistant entry.
func NewAssistantEntry(content Content) MessageEntry {
	return MessageEntry{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// RecipeStructure is the parsed form of a recipe embedded in assistant
// text. If present, Ingredients and Steps are non-empty; a structure
// that fails to parse is discarded in favor of raw text, never partially
// populated.
type RecipeStructure struct {
	Title       string       `json:"title"`
	PrepTime    string       `json:"prepTime,omitempty"`
	CookTime    string       `json:"cookTime,omitempty"`
	Servings    int          `json:"servings,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []RecipeStep `json:"steps"`
	Tips        string       `json:"tips,omitempty"`
}

// Ingredient is a single recipe ingredient.
type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// RecipeStep is a single instruction, optionally with a timer.
type RecipeStep struct {
	Instruction  string `json:"instruction"`
	TimerSeconds int    `json:"timer,omitempty"`
}
