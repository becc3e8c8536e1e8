package security

import (
	"context"
	"log/slog"
)

// RedactingHandler is a slog.Handler middleware. Messages and string values,
// including those nested in groups or produced by LogValuers, pass through a
// Redactor before reaching the wrapped handler.
type RedactingHandler struct {
	next slog.Handler
	r    *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler, r *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, r: r}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	clean := slog.NewRecord(rec.Time, rec.Level, h.r.Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(slog.Attr{Key: a.Key, Value: h.scrub(a.Value)})
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, slog.Attr{Key: a.Key, Value: h.scrub(a.Value)})
	}
	return NewRedactingHandler(h.next.WithAttrs(clean), h.r)
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return NewRedactingHandler(h.next.WithGroup(name), h.r)
}

func (h *RedactingHandler) scrub(v slog.Value) slog.Value {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.StringValue(h.r.Redact(v.String()))
	case slog.KindGroup:
		members := v.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = slog.Attr{Key: m.Key, Value: h.scrub(m.Value)}
		}
		return slog.GroupValue(clean...)
	case slog.KindAny:
		// Errors and Stringers: keep the original value unless it leaks.
		if s := v.String(); h.r.Redact(s) != s {
			return slog.StringValue(h.r.Redact(s))
		}
	}
	return v
}
