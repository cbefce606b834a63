package conversation

import (
	"encoding/json"
	"strings"
)

// ParseContent tries to extract an embedded JSON recipe object from
// free-form assistant text. On any parse or shape failure the original
// text passes through unchanged; the caller never sees an error.
func ParseContent(text string) Content {
	recipe, ok := extractRecipe(text)
	if !ok {
		return TextContent(text)
	}
	return RecipeContent(text, recipe)
}

// extractRecipe locates and validates the embedded recipe JSON. The
// cheap marker gate avoids parse attempts on ordinary prose.
func extractRecipe(text string) (*RecipeStructure, bool) {
	if !strings.Contains(text, `"title":`) ||
		!strings.Contains(text, `"ingredients":`) ||
		!strings.Contains(text, `"steps":`) {
		return nil, false
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		return nil, false
	}

	var recipe RecipeStructure
	if err := json.Unmarshal([]byte(raw), &recipe); err != nil {
		return nil, false
	}

	// Reject partially populated structures outright.
	if recipe.Title == "" || len(recipe.Ingredients) == 0 || len(recipe.Steps) == 0 {
		return nil, false
	}
	for _, step := range recipe.Steps {
		if step.Instruction == "" {
			return nil, false
		}
	}

	return &recipe, true
}

// extractJSONObject returns the minimal balanced object starting at the
// first '{' that precedes "title" and spanning through its matching '}'.
// Brace counting is string-aware so instructions containing braces don't
// truncate the object.
func extractJSONObject(text string) (string, bool) {
	titleIdx := strings.Index(text, `"title"`)
	if titleIdx < 0 {
		return "", false
	}
	start := strings.LastIndex(text[:titleIdx], "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					candidate := text[start : i+1]
					if !strings.Contains(candidate, `"steps"`) {
						return "", false
					}
					return candidate, true
				}
			}
		}
	}
	return "", false
}
