package chat

import "github.com/serhrag/ragchat/internal/conversation"

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens from a characters-per-token ratio.
// About 4 suits English, about 3 suits Portuguese.
type CharEstimator struct {
	CharsPerToken float64
}

// Estimate rounds up so short strings never count as zero.
func (e CharEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	ratio := e.CharsPerToken
	if ratio <= 0 {
		ratio = 4
	}
	return int(float64(len(text))/ratio) + 1
}

// perMessageOverhead approximates role and framing tokens.
const perMessageOverhead = 4

// Window limits how much history is resent to the model on each turn.
// Zero limits mean the full transcript is sent. The stored history is
// never trimmed, only the outgoing request.
type Window struct {
	// MaxTurns keeps the last N user turns, counting the new message.
	MaxTurns int

	// MaxTokens keeps the newest messages that fit the estimate.
	MaxTokens int

	// Estimator defaults to CharEstimator{4}.
	Estimator TokenEstimator
}

// Unlimited reports whether the window passes history through untouched.
func (w Window) Unlimited() bool {
	return w.MaxTurns <= 0 && w.MaxTokens <= 0
}

// Apply returns the suffix of history that fits the window. The last
// message is always kept, and the result always starts at a user message.
func (w Window) Apply(history []conversation.Message) []conversation.Message {
	if w.Unlimited() || len(history) == 0 {
		return history
	}

	start := 0
	if w.MaxTurns > 0 {
		turns := 0
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Role != conversation.RoleUser {
				continue
			}
			turns++
			if turns == w.MaxTurns {
				start = i
				break
			}
		}
	}

	if w.MaxTokens > 0 {
		est := w.Estimator
		if est == nil {
			est = CharEstimator{CharsPerToken: 4}
		}
		total := 0
		for i := len(history) - 1; i >= start; i-- {
			total += est.Estimate(history[i].Content) + perMessageOverhead
			if total > w.MaxTokens && i < len(history)-1 {
				start = i + 1
				break
			}
		}
	}

	for start < len(history)-1 && history[start].Role != conversation.RoleUser {
		start++
	}
	return history[start:]
}
