package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(routeSpanName)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(g.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(g.config.CORS))

	// Public.
	r.Get("/", g.handleInfo())
	r.Get("/health", g.handleHealth())
	r.Get("/corpus", g.handleCorpus())
	r.Get("/corpus/list", g.handleListCorpora())
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestSize(g.config.MaxBodyBytes))
		r.Post("/chat", g.handleChat())
	})
	if !g.config.WebSocket.Disabled {
		r.Get("/ws/chat", g.handleChatWS())
	}

	// Conversation management. Protected only when auth is configured.
	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.authLimiter))
		}
		r.Get("/conversation/{id}", g.handleGetConversation())
		r.Delete("/conversation/{id}", g.handleDeleteConversation())
		r.Get("/conversations", g.handleListConversations())
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return otelhttp.NewHandler(r, "ragchat.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
	)
}
