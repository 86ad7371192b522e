// Package app assembles the extraction components from configuration for the binaries.
package app

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/extract"
	"github.com/joseph-ayodele/handwriting-extractor/internal/imaging"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/handwriting-extractor/internal/pipeline"
	"github.com/joseph-ayodele/handwriting-extractor/internal/tracing"
)

// NewLogger builds the process logger from LOG_FORMAT (json|text) and LOG_LEVEL.
func NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}

// Components are the wired extraction pieces shared by the server and the CLI.
type Components struct {
	Processor  *pipeline.Processor
	Classifier *extract.Classifier
	Vision     llm.VisionModel
	Text       llm.TextModel
}

// Build wires providers, traced clients and the processor. Missing credentials leave the
// matching client unconfigured rather than failing.
func Build(cfg *common.Config, sink tracing.Sink, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = tracing.Noop{}
	}

	vision, label := visionModel(cfg, logger)
	text := openai.NewClient(openai.Config{
		Name:        "groq",
		APIKey:      cfg.Translation.APIKey,
		BaseURL:     cfg.Translation.BaseURL,
		Model:       cfg.Translation.Model,
		Temperature: cfg.Translation.Temperature,
		MaxTokens:   cfg.Translation.MaxTokens,
		Timeout:     cfg.Translation.Timeout,
	}, logger)

	extractor := tracing.NewTracedExtractor(extract.NewVisionClient(vision, logger), sink)
	translator := tracing.NewTracedTranslator(extract.NewTranslationClient(text, llm.TextOptions{
		Temperature: llm.Temperature(cfg.Translation.Temperature),
		MaxTokens:   cfg.Translation.MaxTokens,
	}, logger), sink)

	classifier, err := extract.NewClassifier(text, logger)
	if err != nil {
		return nil, err
	}

	normalize := pipeline.NewNormalizeStage(imaging.NewNormalizer(imaging.Options{MaxPixels: cfg.Imaging.MaxPixels}, logger), cfg.Imaging.Enabled, logger)
	proc := pipeline.NewProcessor(logger, normalize, extractor, translator,
		pipeline.WithSink(sink),
		pipeline.WithProviderLabel(label),
	)

	logger.Info("app.components",
		"vision_provider", vision.Name(),
		"vision_model", vision.Model(),
		"vision_configured", vision.IsConfigured(),
		"translation_model", text.Model(),
		"translation_configured", text.IsConfigured(),
		"preprocess", cfg.Imaging.Enabled,
		"tracing", sink.Enabled(),
	)
	return &Components{Processor: proc, Classifier: classifier, Vision: vision, Text: text}, nil
}

func visionModel(cfg *common.Config, logger *slog.Logger) (llm.VisionModel, string) {
	if cfg.Vision.Provider == common.VisionProviderGemini {
		return gemini.NewClient(gemini.Config{
			APIKey:  cfg.Vision.GeminiAPIKey,
			Model:   cfg.Vision.GeminiModel,
			Timeout: cfg.Vision.Timeout,
		}, logger), "Gemini"
	}
	return openai.NewClient(openai.Config{
		Name:    "huggingface",
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
		Model:   cfg.Vision.Model,
		Timeout: cfg.Vision.Timeout,
	}, logger), "HuggingFace"
}
