package conversation

import (
	"strings"
	"unicode"
)

// Language is the result of text language detection.
type Language string

const (
	LangEnglish    Language = "English"
	LangHindi      Language = "Hindi"
	LangHindiRoman Language = "Hindi-Roman"
)

// romanHindiWords are common Hindi words written in Latin script. The
// detector treats text as romanized Hindi when more than 15% of its
// tokens appear in this list.
var romanHindiWords = map[string]bool{
	"namaste": true, "aap": true, "kaise": true, "hai": true,
	"dhanyavaad": true, "theek": true, "haan": true, "nahi": true,
	"khana": true, "acha": true, "bahut": true, "kya": true,
	"maine": true, "humne": true, "tum": true, "pyaaz": true,
	"masala": true,
}

// DetectLanguage classifies text as Devanagari Hindi, romanized Hindi,
// or English/other. Empty input is English.
func DetectLanguage(text string) Language {
	for _, r := range text {
		if unicode.Is(unicode.Devanagari, r) {
			return LangHindi
		}
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return LangEnglish
	}

	hindiCount := 0
	for _, w := range words {
		if romanHindiWords[w] {
			hindiCount++
		}
	}
	if float64(hindiCount)/float64(len(words)) > 0.15 {
		return LangHindiRoman
	}

	return LangEnglish
}
