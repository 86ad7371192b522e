package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

var (
	_ llm.VisionModel = (*Client)(nil)
	_ llm.TextModel   = (*Client)(nil)
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage llm.Usage `json:"usage"`
}

// CompleteVision sends a single user message holding the instruction and the image as a
// base64 data URL. One HTTP request, no retries.
func (c *Client) CompleteVision(ctx context.Context, prompt string, img llm.Image) (llm.Completion, error) {
	if !c.IsConfigured() {
		return llm.Completion{}, llm.ErrNotConfigured
	}
	rid := uuid.New().String()
	c.logger.Info("llm.vision.start",
		"req_id", rid,
		"provider", c.cfg.Name,
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"image_bytes", len(img.Data),
		"mime", img.MIMEType,
	)

	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]any{"url": llm.DataURL(img)}},
				},
			},
		},
	}
	if c.cfg.Temperature > 0 {
		body["temperature"] = c.cfg.Temperature
	}
	if c.cfg.MaxTokens > 0 {
		body["max_tokens"] = c.cfg.MaxTokens
	}
	return c.complete(ctx, rid, "llm.vision", body)
}

// CompleteText sends a single text-only user message.
func (c *Client) CompleteText(ctx context.Context, prompt string, opts llm.TextOptions) (llm.Completion, error) {
	if !c.IsConfigured() {
		return llm.Completion{}, llm.ErrNotConfigured
	}
	rid := uuid.New().String()
	temp := c.cfg.Temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	c.logger.Info("llm.text.start",
		"req_id", rid,
		"provider", c.cfg.Name,
		"model", c.cfg.Model,
		"temp", temp,
		"max_tokens", maxTokens,
		"prompt_len", len(prompt),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": temp,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	return c.complete(ctx, rid, "llm.text", body)
}

func (c *Client) complete(ctx context.Context, rid, event string, body map[string]any) (llm.Completion, error) {
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.PostJSON(ctx, c.http, llm.JSONCall{
		Provider: c.cfg.Name,
		URL:      endpoint,
		Body:     body,
		Header:   http.Header{"Authorization": {"Bearer " + c.cfg.APIKey}},
	}, c.logger)
	if err != nil {
		c.logger.Error(event+".http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, err
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error(event+".decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, &llm.ProviderError{Provider: c.cfg.Name, Body: "decode response: " + err.Error()}
	}
	if len(cc.Choices) == 0 {
		c.logger.Error(event+".no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, &llm.ProviderError{Provider: c.cfg.Name, Body: "no choices in response"}
	}

	content := cc.Choices[0].Message.Content
	c.logger.Info(event+".ok",
		"req_id", rid,
		"provider", c.cfg.Name,
		"content_len", len(content),
		"total_tokens", cc.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Completion{Text: content, Usage: cc.Usage}, nil
}
