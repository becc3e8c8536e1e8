package chat

import (
	"slices"
	"strings"
)

// DefaultClarificationPhrases are matched case-insensitively against replies.
// The deployment answers in Portuguese, so both languages are covered.
var DefaultClarificationPhrases = []string{
	"could you clarify",
	"can you clarify",
	"which one do you mean",
	"do you mean",
	"could you be more specific",
	"can you be more specific",
	"poderia esclarecer",
	"pode esclarecer",
	"você quis dizer",
	"voce quis dizer",
	"qual deles",
	"pode especificar",
	"poderia especificar",
}

// Classifier flags replies that ask the user a clarifying question.
// It is a substring heuristic; misses and false hits are expected.
type Classifier struct {
	phrases []string
}

// NewClassifier returns a classifier over the default phrases plus extra.
func NewClassifier(extra ...string) *Classifier {
	phrases := make([]string, 0, len(DefaultClarificationPhrases)+len(extra))
	for _, p := range slices.Concat(DefaultClarificationPhrases, extra) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Classifier{phrases: phrases}
}

// IsAskingClarification reports whether text contains any known phrase.
func (c *Classifier) IsAskingClarification(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range c.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
