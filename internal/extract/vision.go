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

var _ Extractor = (*VisionClient)(nil)

// VisionClient reads a handwritten form through a hosted vision-language model.
type VisionClient struct {
	model  llm.VisionModel
	logger *slog.Logger
}

func NewVisionClient(model llm.VisionModel, logger *slog.Logger) *VisionClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionClient{model: model, logger: logger}
}

func (c *VisionClient) IsConfigured() bool {
	return c.model != nil && c.model.IsConfigured()
}

func (c *VisionClient) Model() string {
	if c.model == nil {
		return ""
	}
	return c.model.Model()
}

// Extract sends exactly one request and parses the reply. A reply that is not JSON comes
// back as the raw_text fallback rather than as an error.
func (c *VisionClient) Extract(ctx context.Context, img llm.Image, language string) (llm.StructuredResult, string, error) {
	if !c.IsConfigured() {
		return llm.StructuredResult{}, "", llm.ErrNotConfigured
	}
	language = constants.LanguageOrDefault(language)
	prompt := llm.BuildExtractionPrompt(language)

	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", c.model.Name(),
		"model", c.model.Model(),
		"language", language,
		"image_bytes", len(img.Data),
	)

	out, err := c.model.CompleteVision(ctx, prompt, img)
	if err != nil {
		c.logger.Error("llm.extract.error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.StructuredResult{}, prompt, fmt.Errorf("vision extract: %w", err)
	}

	res := llm.ParseResponse(out.Text)
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"fallback", res.Fallback,
		"fields", len(res.Map()),
		"total_tokens", out.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, prompt, nil
}
