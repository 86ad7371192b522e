package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

func TestUnconfigured(t *testing.T) {
	c := NewClient(Config{APIKey: "   "}, nil)
	if c.IsConfigured() {
		t.Fatal("blank key must be unconfigured")
	}
	if c.Model() != "gemini-1.5-flash" {
		t.Errorf("default model = %q", c.Model())
	}
	_, err := c.CompleteVision(context.Background(), "p", llm.Image{Data: []byte{1}})
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFirstTextAndUsage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{
				&genai.Blob{MIMEType: "image/png"},
				genai.Text(`{"a":1}`),
			}}},
		},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 4, TotalTokenCount: 7},
	}
	if got := firstText(resp); got != `{"a":1}` {
		t.Errorf("firstText = %q", got)
	}
	u := usageOf(resp)
	if u.PromptTokens != 3 || u.CompletionTokens != 4 || u.TotalTokens != 7 {
		t.Errorf("usage = %+v", u)
	}
	if firstText(nil) != "" || usageOf(nil) != (llm.Usage{}) {
		t.Error("nil response must yield zero values")
	}
}
