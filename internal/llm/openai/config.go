package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for an OpenAI-compatible chat/completions endpoint. The same client talks to the
// Hugging Face router (vision) and Groq (text) by changing BaseURL.
type Config struct {
	Name        string        // provider label used in logs and errors, e.g. "huggingface"
	APIKey      string        // empty means the client is not configured
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g. "Qwen/Qwen2.5-VL-7B-Instruct:hyperbolic"
	Temperature float32       // sent only when > 0 for vision calls
	MaxTokens   int           // sent only when > 0
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Client) Name() string       { return c.cfg.Name }
func (c *Client) Model() string      { return c.cfg.Model }
func (c *Client) IsConfigured() bool { return c.cfg.APIKey != "" }
