package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/serhrag/ragchat/internal/provider"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxErrorBodySize caps how much of an error response is read.
const maxErrorBodySize = 4096

// chatClient talks to a chat-completions endpoint.
type chatClient struct {
	baseURL string
	apiKey  string
	headers map[string]string
	http    *http.Client
}

func newChatClient(cfg Config) *chatClient {
	return &chatClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		headers: cfg.Headers,
		http: &http.Client{
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout,
			}),
		},
	}
}

func (c *chatClient) complete(ctx context.Context, body chatRequest) (chatResponse, error) {
	var out chatResponse
	err := c.do(ctx, http.MethodPost, "/chat/completions", body, &out)
	return out, err
}

func (c *chatClient) models(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/models", nil, nil)
}

// do sends in as JSON when non-nil and decodes the reply into out when
// non-nil. Error statuses become provider sentinels.
func (c *chatClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Caller cancellation is not a provider failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %w", provider.ErrProviderDown, method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// statusError maps an error status to a provider sentinel and keeps the
// upstream message for the logs.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var eb errorBody
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
		msg = eb.Error.Message
	}

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, code, msg)
	case code == http.StatusBadRequest && (eb.Error.Code == "context_length_exceeded" ||
		strings.Contains(strings.ToLower(msg), "context length")):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	default:
		return fmt.Errorf("provider.openai_compatible: HTTP %d: %s", code, msg)
	}
}
