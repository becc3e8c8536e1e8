package provider

// Role is the slot a provider fills in the chain.
type Role string

// Role constants for provider chain configuration.
const (
	RolePrimary  Role = "primary"
	RoleFallback Role = "fallback"
)

// ParseRole maps a configured role name to a Role. Empty means primary.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "", RolePrimary:
		return RolePrimary, true
	case RoleFallback:
		return RoleFallback, true
	default:
		return "", false
	}
}

// MessageRole identifies the sender of a message in a transcript.
type MessageRole string

// MessageRole constants for transcript messages.
const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// FinishReason describes why the model stopped generating.
type FinishReason string

// FinishReason constants for model completion termination.
const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonFiltering FinishReason = "filtering"
	FinishReasonOther     FinishReason = "other"
)

// LLMMessage is a single message in a transcript.
type LLMMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// SafetySetting sets the block threshold for one harm category. Values use
// the upstream enum spelling, e.g. HARM_CATEGORY_HATE_SPEECH and
// BLOCK_MEDIUM_AND_ABOVE. Providers without safety controls ignore them.
type SafetySetting struct {
	Category  string `json:"category" yaml:"category"`
	Threshold string `json:"threshold" yaml:"threshold"`
}

// CompletionRequest is the input to Provider.Complete.
type CompletionRequest struct {
	Messages    []LLMMessage    `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	TopK        *int            `json:"top_k,omitempty"`
	Safety      []SafetySetting `json:"safety,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

// CompletionResponse is the output of Provider.Complete.
type CompletionResponse struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        TokenUsage   `json:"usage"`
}

// TokenUsage tracks token consumption for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
