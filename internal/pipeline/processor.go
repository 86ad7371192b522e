package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/handwriting-extractor/constants"
	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/extract"
	"github.com/joseph-ayodele/handwriting-extractor/internal/tracing"
)

// Request is one extraction run over an image already on disk.
type Request struct {
	ImagePath string
	Filename  string
	Language  string
	// Parent, when set, becomes the parent of the run's span. Otherwise the span carried
	// by the context is used, and failing that a new trace is started.
	Parent tracing.Span
}

// Processor coordinates normalize, extract and the optional translate step.
type Processor struct {
	Logger     *slog.Logger
	Normalize  *NormalizeStage
	Extractor  extract.Extractor
	Translator extract.Translator
	Sink       tracing.Sink
	Label      string
}

type Option func(*Processor)

func WithSink(s tracing.Sink) Option {
	return func(p *Processor) {
		if s != nil {
			p.Sink = s
		}
	}
}

// WithProviderLabel sets the provider name used in the success message.
func WithProviderLabel(label string) Option {
	return func(p *Processor) {
		if label != "" {
			p.Label = label
		}
	}
}

func NewProcessor(logger *slog.Logger, normalize *NormalizeStage, extractor extract.Extractor, translator extract.Translator, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if normalize == nil {
		normalize = NewNormalizeStage(nil, true, logger)
	}
	p := &Processor{
		Logger:     logger,
		Normalize:  normalize,
		Extractor:  extractor,
		Translator: translator,
		Sink:       tracing.Noop{},
		Label:      "HuggingFace",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ready reports whether extraction can run at all.
func (p *Processor) Ready() bool {
	return p.Extractor != nil && p.Extractor.IsConfigured()
}

// TranslationReady reports whether non-English runs will be translated.
func (p *Processor) TranslationReady() bool {
	return p.Translator != nil && p.Translator.IsConfigured()
}

// Run executes one extraction. It never returns an error: failures are reported in the
// envelope. Each external call is made at most once.
func (p *Processor) Run(ctx context.Context, req Request) Envelope {
	start := time.Now()
	language := constants.LanguageOrDefault(req.Language)
	env := Envelope{Filename: req.Filename, State: constants.RunStateNotStarted}

	span := p.startSpan(ctx, req, language)
	ctx = tracing.ContextWithSpan(ctx, span)
	env.TraceID = span.TraceID()

	log := common.LoggerFromContext(ctx, p.Logger).With("filename", req.Filename, "language", language)
	log.Info("pipeline.run.start", "preprocess", p.Normalize.Enabled)

	finish := func(err error) Envelope {
		env.ElapsedMS = time.Since(start).Milliseconds()
		if err != nil {
			env.State = constants.RunStateFailed
			env.Success = false
			env.ExtractedData = nil
			env.ErrorType = ClassifyError(err)
			env.Error = FormatError(err)
			env.Message = "Failed to extract handwriting"
			log.Error("pipeline.run.failed", "error_type", env.ErrorType, "error", err, "elapsed_ms", env.ElapsedMS)
		} else {
			env.State = constants.RunStateSucceeded
			env.Success = true
			log.Info("pipeline.run.ok", "translated", env.Translated, "elapsed_ms", env.ElapsedMS)
		}
		span.Update(env, map[string]any{"state": string(env.State), "duration_ms": env.ElapsedMS})
		span.End()
		return env
	}

	if p.Extractor == nil {
		env.State = constants.RunStateExtracting
		return finish(errNoExtractor)
	}

	env.State = constants.RunStateNormalizing
	img, err := p.Normalize.Run(ctx, req.ImagePath, req.Filename)
	if err != nil {
		return finish(err)
	}

	env.State = constants.RunStateExtracting
	data, _, err := p.Extractor.Extract(ctx, img, language)
	if err != nil {
		return finish(err)
	}

	if p.Translator != nil && p.Translator.ShouldTranslate(language) && p.Translator.IsConfigured() {
		env.State = constants.RunStateTranslating
		translated, err := p.Translator.Translate(ctx, data, language)
		if err != nil {
			log.Warn("pipeline.translate.skipped", "error", err)
		} else {
			data = translated
			env.Translated = true
		}
	}

	env.ExtractedData = &data
	env.Message = "Handwriting extracted successfully using " + p.Label
	if env.Translated {
		env.Message += " and translated to English"
	}
	return finish(nil)
}

func (p *Processor) startSpan(ctx context.Context, req Request, language string) tracing.Span {
	input := map[string]any{"filename": req.Filename, "language": language}
	meta := map[string]any{"preprocess": p.Normalize.Enabled}
	if req.Parent != nil {
		return req.Parent.Span("handwriting_extraction", input, meta)
	}
	return p.Sink.StartSpan(ctx, "handwriting_extraction", input, meta)
}
