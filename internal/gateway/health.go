package gateway

import (
	"net/http"

	"github.com/serhrag/ragchat/internal/provider"
)

// Health statuses.
const (
	statusOK           = "ok"
	statusInitializing = "initializing"
	statusUnavailable  = "unavailable"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"`
	Corpus        string                 `json:"corpus,omitempty"`
	Conversations int                    `json:"conversations"`
	Providers     []provider.EntryStatus `json:"providers,omitempty"`
}

// InfoResponse is the JSON response for GET /.
type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Health  string `json:"health"`
	Chat    string `json:"chat"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when a generation backend would be called right now, 503
// while backends initialize or cool down after failures.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: statusOK}

		ready := g.chat.Ready()
		if !ready {
			resp.Status = statusInitializing
		}
		if list, err := g.chat.Conversations(r.Context()); err == nil {
			resp.Conversations = len(list)
		} else {
			g.logger.Warn("health: count conversations", "error", err)
		}
		if g.backends != nil {
			if info, ok := g.backends.Corpus(); ok {
				resp.Corpus = info.Name
			}
			resp.Providers = g.backends.HealthReport()
			if !ready && anyInitialized(resp.Providers) {
				resp.Status = statusUnavailable
			}
		}

		code := http.StatusOK
		if resp.Status != statusOK {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func anyInitialized(entries []provider.EntryStatus) bool {
	for _, e := range entries {
		if e.Ready {
			return true
		}
	}
	return false
}

// handleInfo returns an http.HandlerFunc for GET /.
func (g *Gateway) handleInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, InfoResponse{
			Name:    g.info.Name,
			Version: g.info.Version,
			Health:  "/health",
			Chat:    "/chat",
		})
	}
}
