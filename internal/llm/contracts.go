package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by provider-backed clients that have no credentials.
// Callers must check IsConfigured first; the error only guards against misuse.
var ErrNotConfigured = errors.New("provider not configured")

// Image is an encoded raster ready to be attached to a multimodal request.
type Image struct {
	Data     []byte
	MIMEType string
}

// Usage mirrors the token accounting most chat-completion APIs report.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Completion is the raw text a provider returned plus its accounting.
type Completion struct {
	Text  string
	Usage Usage
}

// TextOptions bounds a text-only completion.
type TextOptions struct {
	Temperature *float32 // nil leaves it to the client default; 0 is a valid setting
	MaxTokens   int
}

// Temperature returns a pointer for TextOptions.Temperature.
func Temperature(v float32) *float32 { return &v }

// Provider is the capability every hosted model adapter exposes.
type Provider interface {
	Name() string
	Model() string
	IsConfigured() bool
}

// VisionModel sends one instruction plus one image and returns the reply text.
type VisionModel interface {
	Provider
	CompleteVision(ctx context.Context, prompt string, img Image) (Completion, error)
}

// TextModel sends one text instruction and returns the reply text.
type TextModel interface {
	Provider
	CompleteText(ctx context.Context, prompt string, opts TextOptions) (Completion, error)
}

// ProviderError is a non-2xx answer, an unusable payload or a transport failure from a
// hosted model. Err keeps the transport cause so timeouts stay matchable.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Body, e.Err)
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Body)
	}
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, body)
}

func (e *ProviderError) Unwrap() error { return e.Err }
