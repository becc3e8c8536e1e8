package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/serhrag/ragchat/internal/provider"
)

var (
	// ErrCorpusNotFound indicates no corpus matched the configured selector.
	ErrCorpusNotFound = errors.New("rag corpus not found")

	// ErrNoUsableCorpus indicates discovery found no corpus holding files.
	ErrNoUsableCorpus = errors.New("no rag corpus with files")
)

type ragCorpus struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

func (c ragCorpus) info() provider.CorpusInfo {
	return provider.CorpusInfo{Name: c.DisplayName, ID: c.Name}
}

type listCorporaResponse struct {
	RAGCorpora    []ragCorpus `json:"ragCorpora"`
	NextPageToken string      `json:"nextPageToken"`
}

type listFilesResponse struct {
	RAGFiles []struct {
		Name string `json:"name"`
	} `json:"ragFiles"`
}

// ragClient reads RAG corpus metadata over the Vertex AI REST API.
// The genai SDK only covers generation, so corpus discovery goes direct.
type ragClient struct {
	http   *http.Client
	base   string
	parent string
}

func (c *ragClient) listCorpora(ctx context.Context) ([]ragCorpus, error) {
	var (
		out   []ragCorpus
		token string
	)
	for {
		q := url.Values{"pageSize": {"100"}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var page listCorporaResponse
		if err := c.getJSON(ctx, c.base+"/"+c.parent+"/ragCorpora?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("list corpora: %w", err)
		}
		out = append(out, page.RAGCorpora...)
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

func (c *ragClient) getCorpus(ctx context.Context, name string) (ragCorpus, error) {
	var rc ragCorpus
	if err := c.getJSON(ctx, c.base+"/"+name, &rc); err != nil {
		return ragCorpus{}, fmt.Errorf("get corpus %s: %w", name, err)
	}
	return rc, nil
}

func (c *ragClient) hasFiles(ctx context.Context, name string) (bool, error) {
	var page listFilesResponse
	if err := c.getJSON(ctx, c.base+"/"+name+"/ragFiles?pageSize=1", &page); err != nil {
		return false, fmt.Errorf("list files of %s: %w", name, err)
	}
	return len(page.RAGFiles) > 0, nil
}

// maxErrorBodySize caps how much of an error response body is read.
const maxErrorBodySize = 4096

func (c *ragClient) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(v)
	case resp.StatusCode == http.StatusNotFound:
		return ErrCorpusNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.ErrRateLimit
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", provider.ErrProviderDown, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
}

// selectCorpus picks the corpus to ground answers on: the configured
// resource, else the one whose display name matches, else the first
// corpus that holds at least one file.
func selectCorpus(ctx context.Context, rc *ragClient, cfg Config) (ragCorpus, error) {
	if cfg.Corpus != "" {
		return rc.getCorpus(ctx, cfg.Corpus)
	}

	corpora, err := rc.listCorpora(ctx)
	if err != nil {
		return ragCorpus{}, err
	}

	if cfg.CorpusDisplayName != "" {
		for _, c := range corpora {
			if c.DisplayName == cfg.CorpusDisplayName {
				return c, nil
			}
		}
		return ragCorpus{}, fmt.Errorf("%w: display name %q", ErrCorpusNotFound, cfg.CorpusDisplayName)
	}

	for _, c := range corpora {
		ok, err := rc.hasFiles(ctx, c.Name)
		if err != nil {
			return ragCorpus{}, err
		}
		if ok {
			return c, nil
		}
	}
	return ragCorpus{}, fmt.Errorf("%w among %d corpora", ErrNoUsableCorpus, len(corpora))
}
