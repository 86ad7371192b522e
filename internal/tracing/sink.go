package tracing

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
)

// Sink records spans for an external trace collector. Implementations must never block or
// fail the caller; delivery problems are logged and dropped.
type Sink interface {
	// StartSpan opens a span under the span carried by ctx, or a new trace when there is none.
	StartSpan(ctx context.Context, name string, input any, metadata map[string]any) Span
	Enabled() bool
	Close(ctx context.Context) error
}

// Span is a handle to one open observation.
type Span interface {
	TraceID() string
	// Span opens a child span.
	Span(name string, input any, metadata map[string]any) Span
	// Generation opens a child observation for a single model call.
	Generation(name, model string, input any, metadata map[string]any) Span
	Update(output any, metadata map[string]any)
	End()
}

type spanKey struct{}

func ContextWithSpan(ctx context.Context, s Span) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, spanKey{}, s)
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) Span {
	if s, ok := ctx.Value(spanKey{}).(Span); ok {
		return s
	}
	return nil
}

// NewSink returns a Langfuse sink when both keys are configured and Noop otherwise.
func NewSink(cfg common.TracingConfig, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		logger.Info("tracing.disabled", "reason", "langfuse keys not set")
		return Noop{}
	}
	return NewLangfuse(cfg, logger)
}

// Noop discards everything.
type Noop struct{}

func (Noop) StartSpan(context.Context, string, any, map[string]any) Span { return noopSpan{} }
func (Noop) Enabled() bool                                                { return false }
func (Noop) Close(context.Context) error                                  { return nil }

type noopSpan struct{}

func (noopSpan) TraceID() string                                     { return "" }
func (noopSpan) Span(string, any, map[string]any) Span               { return noopSpan{} }
func (noopSpan) Generation(string, string, any, map[string]any) Span { return noopSpan{} }
func (noopSpan) Update(any, map[string]any)                          {}
func (noopSpan) End()                                                {}
