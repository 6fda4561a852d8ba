package security

import (
	"context"
	"log/slog"
)

// RedactingHandler wraps a base slog.Handler and runs RedactCredentials over
// every log message and attribute value before the record reaches it, so a
// credential that lands in an error string or a tool's raw params never
// makes it into a log sink (spec §4.6: "log redaction filter, installed on
// every logger").
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next with credential redaction.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	msg, _ := RedactCredentials(r.Message)
	out := slog.NewRecord(r.Time, r.Level, msg, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

// redactAttr redacts a string-valued attribute, or an error-valued one by
// its formatted message. Every other kind passes through unchanged.
func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		redacted, _ := RedactCredentials(a.Value.String())
		a.Value = slog.StringValue(redacted)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			redacted, _ := RedactCredentials(err.Error())
			a.Value = slog.StringValue(redacted)
		}
	}
	return a
}
