package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

var (
	_ llm.VisionModel = (*Client)(nil)
	_ llm.TextModel   = (*Client)(nil)
)

type Config struct {
	APIKey    string
	Model     string // default gemini-1.5-flash
	MaxTokens int32
	Timeout   time.Duration
}

// Client is an alternative vision/text backend on the Gemini API. A fresh SDK client is
// opened per call so nothing outlives the request context.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) Name() string       { return "gemini" }
func (c *Client) Model() string      { return c.cfg.Model }
func (c *Client) IsConfigured() bool { return c.cfg.APIKey != "" }

func (c *Client) CompleteVision(ctx context.Context, prompt string, img llm.Image) (llm.Completion, error) {
	mt := img.MIMEType
	if mt == "" {
		mt = llm.SniffImageMIME(img.Data, "")
	}
	parts := []genai.Part{
		genai.Text(prompt),
		&genai.Blob{MIMEType: mt, Data: img.Data},
	}
	return c.generate(ctx, "llm.vision", nil, parts)
}

func (c *Client) CompleteText(ctx context.Context, prompt string, opts llm.TextOptions) (llm.Completion, error) {
	gc := &genai.GenerationConfig{}
	if opts.Temperature != nil {
		gc.Temperature = ptrFloat32(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		gc.MaxOutputTokens = ptrInt32(int32(opts.MaxTokens))
	}
	return c.generate(ctx, "llm.text", gc, []genai.Part{genai.Text(prompt)})
}

func (c *Client) generate(ctx context.Context, event string, gc *genai.GenerationConfig, parts []genai.Part) (llm.Completion, error) {
	if !c.IsConfigured() {
		return llm.Completion{}, llm.ErrNotConfigured
	}
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info(event+".start", "req_id", rid, "provider", "gemini", "model", c.cfg.Model, "parts", len(parts))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.cfg.APIKey))
	if err != nil {
		return llm.Completion{}, fmt.Errorf("gemini client: %w", err)
	}
	defer func() {
		if cerr := cl.Close(); cerr != nil {
			c.logger.Warn(event+".close_error", "req_id", rid, "error", cerr)
		}
	}()

	m := cl.GenerativeModel(c.cfg.Model)
	if gc != nil {
		m.GenerationConfig = *gc
	}
	if c.cfg.MaxTokens > 0 && m.MaxOutputTokens == nil {
		m.MaxOutputTokens = ptrInt32(c.cfg.MaxTokens)
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		c.logger.Error(event+".error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return llm.Completion{}, fmt.Errorf("gemini generate: %w", context.DeadlineExceeded)
		}
		return llm.Completion{}, &llm.ProviderError{Provider: "gemini", Body: err.Error()}
	}

	txt := firstText(resp)
	if txt == "" {
		c.logger.Error(event+".empty", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Completion{}, &llm.ProviderError{Provider: "gemini", Body: "empty response"}
	}
	usage := usageOf(resp)
	c.logger.Info(event+".ok",
		"req_id", rid,
		"provider", "gemini",
		"content_len", len(txt),
		"total_tokens", usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Completion{Text: txt, Usage: usage}, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func usageOf(resp *genai.GenerateContentResponse) llm.Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return llm.Usage{}
	}
	um := resp.UsageMetadata
	return llm.Usage{
		PromptTokens:     int(um.PromptTokenCount),
		CompletionTokens: int(um.CandidatesTokenCount),
		TotalTokens:      int(um.TotalTokenCount),
	}
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
