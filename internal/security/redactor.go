package security

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// RedactPlaceholder replaces every redacted secret.
const RedactPlaceholder = "***REDACTED***"

// RedactorService is the AppContext service name of the process-wide
// Redactor. Modules holding secrets register them with it.
const RedactorService = "security.redactor"

// Redactor scrubs secrets from strings using regex patterns for known key
// formats plus literal values registered at runtime. Redact never blocks;
// writers publish a fresh rule set.
type Redactor struct {
	mu    sync.Mutex // serializes writers
	rules atomic.Pointer[redactRules]
}

type redactRules struct {
	patterns []*regexp.Regexp
	literals []string
	replacer *strings.Replacer
}

// NewRedactor returns a Redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.rules.Store(&redactRules{patterns: DefaultPatterns()})
	return r
}

// AddPattern adds a compiled pattern.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.update(func(next *redactRules) {
		next.patterns = append(next.patterns, pattern)
	})
}

// AddLiteral registers a secret value, such as an API key read from config.
// Empty and already known values are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.update(func(next *redactRules) {
		if slices.Contains(next.literals, secret) {
			return
		}
		next.literals = append(next.literals, secret)
		// Longest first, so a secret containing another is replaced whole.
		slices.SortFunc(next.literals, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
		pairs := make([]string, 0, 2*len(next.literals))
		for _, lit := range next.literals {
			pairs = append(pairs, lit, RedactPlaceholder)
		}
		next.replacer = strings.NewReplacer(pairs...)
	})
}

func (r *Redactor) update(fn func(next *redactRules)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.rules.Load()
	next := &redactRules{
		patterns: slices.Clone(cur.patterns),
		literals: slices.Clone(cur.literals),
		replacer: cur.replacer,
	}
	fn(next)
	r.rules.Store(next)
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	rules := r.rules.Load()
	for _, p := range rules.patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	if rules.replacer != nil {
		s = rules.replacer.Replace(s)
	}
	return s
}

// DefaultPatterns matches Google API keys, OAuth access tokens, PEM private
// keys (raw or JSON-escaped), service account key IDs, OpenAI-style keys and
// bearer credentials.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		regexp.MustCompile(`ya29\.[0-9A-Za-z_\-.]{20,}`),
		regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
		regexp.MustCompile(`"private_key_id"\s*:\s*"[0-9a-f]{40}"`),
		regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`),
		regexp.MustCompile(`(?i)bearer [A-Za-z0-9_\-.=]{20,}`),
	}
}
