package gateway

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/serhrag/ragchat/internal/security"
)

// authMiddleware guards the management routes with a bearer token and/or
// basic credentials. Only failed attempts count against the per-IP limiter;
// a locked-out client gets 429 even with valid credentials until its window
// drains.
func authMiddleware(cfg AuthConfig, failures *security.RateLimiter) func(http.Handler) http.Handler {
	challenge := `Basic realm="ragchat"`
	if cfg.BearerToken != "" {
		challenge = `Bearer realm="ragchat"`
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "auth:" + clientIP(r)
			if wait := failures.RetryAfter(key); wait > 0 {
				tooManyRequests(w, wait)
				return
			}
			if authenticated(r, cfg) {
				next.ServeHTTP(w, r)
				return
			}
			_ = failures.Allow(key)
			w.Header().Set("WWW-Authenticate", challenge)
			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func authenticated(r *http.Request, cfg AuthConfig) bool {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && cfg.BearerToken != "" {
		return secretEqual(token, cfg.BearerToken)
	}
	if cfg.BasicUser == "" || cfg.BasicPass == "" {
		return false
	}
	user, pass, ok := r.BasicAuth()
	// Evaluate both comparisons so timing does not reveal which one failed.
	userOK := secretEqual(user, cfg.BasicUser)
	passOK := secretEqual(pass, cfg.BasicPass)
	return ok && userOK && passOK
}

// tooManyRequests answers 429 with Retry-After in whole seconds, at least 1.
func tooManyRequests(w http.ResponseWriter, wait time.Duration) {
	secs := max(int(math.Ceil(wait.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "too many requests")
}

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
