package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/handwriting-extractor/constants"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

var _ Translator = (*TranslationClient)(nil)

// TranslationClient rewrites extracted keys and string values into English.
type TranslationClient struct {
	model  llm.TextModel
	opts   llm.TextOptions
	logger *slog.Logger
}

const (
	DefaultTranslationTemperature = 0.3
	DefaultTranslationMaxTokens   = 2000
)

func NewTranslationClient(model llm.TextModel, opts llm.TextOptions, logger *slog.Logger) *TranslationClient {
	if opts.Temperature == nil {
		opts.Temperature = llm.Temperature(DefaultTranslationTemperature)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultTranslationMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranslationClient{model: model, opts: opts, logger: logger}
}

func (c *TranslationClient) IsConfigured() bool {
	return c.model != nil && c.model.IsConfigured()
}

func (c *TranslationClient) Model() string {
	if c.model == nil {
		return ""
	}
	return c.model.Model()
}

// ShouldTranslate reports whether language needs a trip through the translator.
func (c *TranslationClient) ShouldTranslate(language string) bool {
	return !constants.IsEnglish(language)
}

// Translate returns the translated result. On any failure it returns data unchanged
// together with the error; callers log it and keep going.
func (c *TranslationClient) Translate(ctx context.Context, data llm.StructuredResult, sourceLanguage string) (llm.StructuredResult, error) {
	if !c.IsConfigured() {
		return data, llm.ErrNotConfigured
	}
	doc, err := llm.MarshalCanonical(data)
	if err != nil {
		return data, fmt.Errorf("encode for translation: %w", err)
	}

	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.translate.start",
		"req_id", rid,
		"provider", c.model.Name(),
		"model", c.model.Model(),
		"language", sourceLanguage,
		"doc_bytes", len(doc),
	)

	out, err := c.model.CompleteText(ctx, llm.BuildTranslationPrompt(sourceLanguage, string(doc)), c.opts)
	if err != nil {
		c.logger.Warn("llm.translate.error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return data, fmt.Errorf("translate: %w", err)
	}

	res := llm.ParseResponse(out.Text)
	c.logger.Info("llm.translate.ok",
		"req_id", rid,
		"fallback", res.Fallback,
		"total_tokens", out.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
