package tracing

import (
	"context"
	"time"

	"github.com/joseph-ayodele/handwriting-extractor/internal/extract"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

// TracedExtractor records each extraction as a generation. Tracing never changes the result.
type TracedExtractor struct {
	extract.Extractor
	sink Sink
}

func NewTracedExtractor(inner extract.Extractor, sink Sink) extract.Extractor {
	if sink == nil || !sink.Enabled() {
		return inner
	}
	return &TracedExtractor{Extractor: inner, sink: sink}
}

func (t *TracedExtractor) Extract(ctx context.Context, img llm.Image, language string) (llm.StructuredResult, string, error) {
	gen, root := startGeneration(ctx, t.sink, "vision_extraction", t.Model(), map[string]any{
		"language":    language,
		"image_bytes": len(img.Data),
		"mime_type":   img.MIMEType,
	})
	start := time.Now()
	res, prompt, err := t.Extractor.Extract(ctx, img, language)
	meta := map[string]any{"duration_ms": time.Since(start).Milliseconds(), "prompt_chars": len(prompt)}
	var output any
	if err != nil {
		meta["error"] = err.Error()
	} else {
		meta["fallback"] = res.Fallback
		output = res.AsAny()
	}
	endGeneration(gen, root, output, meta)
	return res, prompt, err
}

// TracedTranslator records each translation as a generation.
type TracedTranslator struct {
	extract.Translator
	sink Sink
}

func NewTracedTranslator(inner extract.Translator, sink Sink) extract.Translator {
	if sink == nil || !sink.Enabled() {
		return inner
	}
	return &TracedTranslator{Translator: inner, sink: sink}
}

func (t *TracedTranslator) Translate(ctx context.Context, data llm.StructuredResult, sourceLanguage string) (llm.StructuredResult, error) {
	gen, root := startGeneration(ctx, t.sink, "translation", t.Model(), map[string]any{
		"source_language": sourceLanguage,
		"data":            data.AsAny(),
	})
	start := time.Now()
	res, err := t.Translator.Translate(ctx, data, sourceLanguage)
	meta := map[string]any{"duration_ms": time.Since(start).Milliseconds(), "target_language": "English"}
	if err != nil {
		meta["error"] = err.Error()
	}
	endGeneration(gen, root, res.AsAny(), meta)
	return res, err
}

// startGeneration opens a generation under the span in ctx. Without one it opens a root
// span first and returns it too; root is nil otherwise.
func startGeneration(ctx context.Context, sink Sink, name, model string, input any) (gen, root Span) {
	if parent := SpanFromContext(ctx); parent != nil {
		return parent.Generation(name, model, input, nil), nil
	}
	root = sink.StartSpan(ctx, name, input, map[string]any{"model": model})
	return root.Generation(name, model, input, nil), root
}

func endGeneration(gen, root Span, output any, meta map[string]any) {
	gen.Update(output, meta)
	gen.End()
	if root != nil {
		root.Update(output, meta)
		root.End()
	}
}
