package extract

import (
	"strings"
	"unicode"
)

// minPromptLength is the shortest text accepted as a prompt. Anything
// shorter is assumed to be a button label or badge text.
const minPromptLength = 12

// functionWords are common English connectives. Real prompt text
// contains at least one of them; selector text and class soup do not.
var functionWords = []string{
	"a", "an", "the", "of", "in", "on", "at", "with",
	"and", "or", "to", "by", "for", "from", "over", "under",
}

// markupTokens flag text that leaked out of styles or scripts.
var markupTokens = []string{
	"<", ">", "{", "}", "</", "/>", "function(", "=>",
	"px;", "rgb(", "var(", "display:", "width:", "height:",
}

// PlausiblePrompt reports whether text reads like natural-language
// prompt content rather than UI chrome, style text, or script leakage.
func PlausiblePrompt(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < minPromptLength {
		return false
	}

	first := []rune(text)[0]
	if !unicode.IsUpper(first) {
		return false
	}

	lower := strings.ToLower(text)
	for _, tok := range markupTokens {
		if strings.Contains(lower, tok) {
			return false
		}
	}

	hasFunctionWord := false
	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,;!?\"'()")
		for _, fw := range functionWords {
			if w == fw {
				hasFunctionWord = true
				break
			}
		}
		if hasFunctionWord {
			break
		}
	}
	return hasFunctionWord
}
