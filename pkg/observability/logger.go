package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys added by TracingHandler.
const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrVersion = "version"
	attrEnv     = "env"
)

// TracingHandler decorates records with the service identity and, when the
// record is logged inside a span (a scan job), the ids of that span.
// The identity is attached before any group so it stays at the top level.
type TracingHandler struct {
	next slog.Handler
}

// NewTracingHandler wraps next. Empty version and env are left out.
func NewTracingHandler(next slog.Handler, service, version, env string) *TracingHandler {
	identity := []slog.Attr{slog.String(attrService, service)}

	for _, kv := range [][2]string{{attrVersion, version}, {attrEnv, env}} {
		if kv[1] != "" {
			identity = append(identity, slog.String(kv[0], kv[1]))
		}
	}

	return &TracingHandler{next: next.WithAttrs(identity)}
}

// Enabled reports whether the wrapped handler logs at level.
func (h *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds span ids, if any, and passes the record on.
func (h *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, span.TraceID().String()),
			slog.String(attrSpanID, span.SpanID().String()),
		)
	}

	err := h.next.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("log record: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (h *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (h *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{next: h.next.WithGroup(name)}
}
