package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/serhrag/ragchat/internal/provider"
	"google.golang.org/genai"
)

// buildContents splits a transcript into the system instruction and the
// user/model turns Gemini expects. Multiple system messages are joined.
func buildContents(msgs []provider.LLMMessage) (*genai.Content, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range msgs {
		switch m.Role {
		case provider.MessageRoleSystem:
			system = append(system, m.Content)
		case provider.MessageRoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), contents
}

// buildConfig maps request options onto a GenerateContentConfig.
// Unset options leave the model defaults in place.
func buildConfig(req provider.CompletionRequest, system *genai.Content, tools []*genai.Tool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             tools,
		StopSequences:     req.Stop,
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.TopK != nil {
		cfg.TopK = genai.Ptr(float32(*req.TopK))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	for _, s := range req.Safety {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	return cfg
}

// ragTools returns the retrieval tool that grounds answers on corpus.
func ragTools(corpus string, rc RetrievalConfig) []*genai.Tool {
	return []*genai.Tool{{
		Retrieval: &genai.Retrieval{
			VertexRAGStore: &genai.VertexRAGStore{
				RAGResources: []*genai.VertexRAGStoreRAGResource{{RAGCorpus: corpus}},
				RAGRetrievalConfig: &genai.RAGRetrievalConfig{
					TopK: genai.Ptr(int32(rc.TopK)),
					Filter: &genai.RAGRetrievalConfigFilter{
						VectorDistanceThreshold: genai.Ptr(rc.VectorDistanceThreshold),
					},
				},
			},
		},
	}}
}

// parseResponse extracts the reply text. A reply with no text is an error
// carrying the block or finish reason.
func parseResponse(res *genai.GenerateContentResponse) (provider.CompletionResponse, error) {
	if res == nil {
		return provider.CompletionResponse{}, provider.ErrEmptyResponse
	}

	var reason genai.FinishReason
	if len(res.Candidates) > 0 && res.Candidates[0] != nil {
		reason = res.Candidates[0].FinishReason
	}

	cr := provider.CompletionResponse{
		Content:      res.Text(),
		FinishReason: mapFinishReason(reason),
	}
	if u := res.UsageMetadata; u != nil {
		cr.Usage = provider.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	if strings.TrimSpace(cr.Content) == "" {
		if fb := res.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return cr, fmt.Errorf("%w: prompt blocked (%s)", provider.ErrEmptyResponse, fb.BlockReason)
		}
		return cr, fmt.Errorf("%w (finish_reason %s)", provider.ErrEmptyResponse, reason)
	}
	return cr, nil
}

func mapFinishReason(r genai.FinishReason) provider.FinishReason {
	switch r {
	case genai.FinishReasonStop:
		return provider.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return provider.FinishReasonLength
	case genai.FinishReasonSafety,
		genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonOther
	}
}

// mapError classifies a genai error into the provider sentinels so the
// chain can decide whether to fail over.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", provider.ErrRateLimit, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
		case apiErr.Code == http.StatusBadRequest && isContextLength(apiErr.Message):
			return fmt.Errorf("%w: %w", provider.ErrContextLength, err)
		default:
			return fmt.Errorf("vertex: %w", err)
		}
	}
	return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
}

func isContextLength(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "token") &&
		(strings.Contains(msg, "exceed") || strings.Contains(msg, "too long"))
}
