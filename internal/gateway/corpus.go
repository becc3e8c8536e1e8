package gateway

import (
	"errors"
	"net/http"

	"github.com/serhrag/ragchat/internal/provider"
)

// CorpusListResponse is the JSON response for GET /corpus/list.
type CorpusListResponse struct {
	Total  int                   `json:"total"`
	Corpus []provider.CorpusInfo `json:"corpus"`
}

// handleCorpus reports the corpus answers are grounded on.
func (g *Gateway) handleCorpus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.backends == nil {
			writeError(w, http.StatusNotFound, "no corpus configured")
			return
		}
		info, ok := g.backends.Corpus()
		if !ok {
			writeError(w, http.StatusNotFound, "no corpus configured")
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// handleListCorpora lists every corpus visible to the generation backend.
func (g *Gateway) handleListCorpora() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.backends == nil {
			writeError(w, http.StatusNotFound, "corpus listing not supported")
			return
		}
		list, err := g.backends.ListCorpora(r.Context())
		switch {
		case errors.Is(err, provider.ErrNoProvider):
			writeError(w, http.StatusNotFound, "corpus listing not supported")
			return
		case err != nil:
			g.logger.Error("list corpora failed", append(requestAttrs(r), "error", err)...)
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		if list == nil {
			list = []provider.CorpusInfo{}
		}
		writeJSON(w, http.StatusOK, CorpusListResponse{Total: len(list), Corpus: list})
	}
}
