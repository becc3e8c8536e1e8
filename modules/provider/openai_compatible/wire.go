package openaicompat

import (
	"fmt"
	"strings"

	"github.com/serhrag/ragchat/internal/provider"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// toChatRequest maps a completion request onto the wire format. TopK and
// safety settings have no chat-completions field and are not sent.
func toChatRequest(model string, fallbackMaxTokens int, req provider.CompletionRequest) chatRequest {
	out := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = fallbackMaxTokens
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// fromChatResponse takes the first choice. A blank reply is an error so the
// orchestrator never stores an empty assistant turn.
func fromChatResponse(resp chatResponse) (provider.CompletionResponse, error) {
	out := provider.CompletionResponse{
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out, provider.ErrEmptyResponse
	}

	first := resp.Choices[0]
	out.Content = first.Message.Content
	out.FinishReason = finishReason(first.FinishReason)
	if strings.TrimSpace(out.Content) == "" {
		return out, fmt.Errorf("%w (finish_reason %q)", provider.ErrEmptyResponse, first.FinishReason)
	}
	return out, nil
}

func finishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonOther
	}
}
