package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joseph-ayodele/handwriting-extractor/constants"
	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm/llmtest"
)

func TestVisionExtract(t *testing.T) {
	model := &llmtest.Model{Configured: true, ModelName: "vl", Reply: "```json\n{\"Nombre\": \"JUAN\"}\n```"}
	c := NewVisionClient(model, nil)

	res, prompt, err := c.Extract(context.Background(), llm.Image{Data: []byte{1}, MIMEType: "image/jpeg"}, "Spanish")
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback || res.Map()["Nombre"] != "JUAN" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(prompt, "written in Spanish") || prompt != model.LastPrompt() {
		t.Errorf("prompt not passed through: %q", prompt)
	}
	if model.Calls() != 1 {
		t.Errorf("calls = %d", model.Calls())
	}
}

func TestVisionExtractNonJSONBecomesFallback(t *testing.T) {
	model := &llmtest.Model{Configured: true, Reply: "Name: John"}
	res, _, err := NewVisionClient(model, nil).Extract(context.Background(), llm.Image{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback || res.RawText != "Name: John" {
		t.Fatalf("expected fallback, got %+v", res)
	}
	if !strings.Contains(model.LastPrompt(), "written in English") {
		t.Error("empty language should default to English")
	}
}

func TestVisionExtractUnconfigured(t *testing.T) {
	model := &llmtest.Model{Configured: false}
	c := NewVisionClient(model, nil)
	if c.IsConfigured() {
		t.Fatal("expected unconfigured")
	}
	if _, _, err := c.Extract(context.Background(), llm.Image{}, "English"); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if model.Calls() != 0 {
		t.Fatal("unconfigured client must not call the provider")
	}
	if NewVisionClient(nil, nil).IsConfigured() {
		t.Fatal("nil model must be unconfigured")
	}
}

func TestVisionExtractProviderError(t *testing.T) {
	model := &llmtest.Model{Configured: true, Err: &llm.ProviderError{Provider: "fake", StatusCode: 500}}
	_, _, err := NewVisionClient(model, nil).Extract(context.Background(), llm.Image{}, "English")
	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestTranslate(t *testing.T) {
	model := &llmtest.Model{Configured: true, Reply: `{"Name": "JOHN"}`}
	c := NewTranslationClient(model, llm.TextOptions{}, nil)

	in := llm.FromValue(map[string]any{"Nombre": "JOHN"})
	out, err := c.Translate(context.Background(), in, "Spanish")
	if err != nil {
		t.Fatal(err)
	}
	if out.Map()["Name"] != "JOHN" {
		t.Fatalf("unexpected translation %+v", out)
	}
	opts := model.LastOptions()
	if opts.MaxTokens != 2000 || opts.Temperature == nil || *opts.Temperature < 0.29 || *opts.Temperature > 0.31 {
		t.Errorf("default bounds not applied: %+v", opts)
	}
	if !strings.Contains(model.LastPrompt(), "\"Nombre\": \"JOHN\"") {
		t.Errorf("prompt missing document: %s", model.LastPrompt())
	}
}

func TestTranslateKeepsZeroTemperature(t *testing.T) {
	model := &llmtest.Model{Configured: true, Reply: `{"Name": "JOHN"}`}
	c := NewTranslationClient(model, llm.TextOptions{Temperature: llm.Temperature(0)}, nil)
	if _, err := c.Translate(context.Background(), llm.FromValue(map[string]any{"Nombre": "JOHN"}), "Spanish"); err != nil {
		t.Fatal(err)
	}
	if temp := model.LastOptions().Temperature; temp == nil || *temp != 0 {
		t.Fatalf("temperature = %v, want 0", temp)
	}
}

func TestTranslateFailureReturnsOriginal(t *testing.T) {
	model := &llmtest.Model{Configured: true, Err: errors.New("boom")}
	in := llm.FromValue(map[string]any{"Nombre": "JUAN"})
	out, err := NewTranslationClient(model, llm.TextOptions{}, nil).Translate(context.Background(), in, "Spanish")
	if err == nil {
		t.Fatal("expected the error to be reported")
	}
	if !out.Equal(in) {
		t.Fatalf("expected original data back, got %+v", out)
	}
}

func TestShouldTranslate(t *testing.T) {
	c := NewTranslationClient(nil, llm.TextOptions{}, nil)
	for lang, want := range map[string]bool{"English": false, "english": false, " ENGLISH ": false, "": false, "Spanish": true, "Hindi": true} {
		if got := c.ShouldTranslate(lang); got != want {
			t.Errorf("ShouldTranslate(%q) = %v, want %v", lang, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    constants.FormCategory
		wantErr bool
	}{
		{"exact", `{"category": "Medical Form", "confidence": "high", "identifiers": ["patient"]}`, constants.MedicalForm, false},
		{"synonym", "```json\n{\"category\": \"receipt\", \"confidence\": \"Medium\"}\n```", constants.InvoiceReceipt, false},
		{"unknown maps to other", `{"category": "Recipe", "confidence": "low"}`, constants.Other, false},
		{"missing confidence", `{"category": "Other"}`, "", true},
		{"prose", "It is a tax form.", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &llmtest.Model{Configured: true, ModelName: "m", Reply: tt.reply}
			cl, err := NewClassifier(model, nil)
			if err != nil {
				t.Fatal(err)
			}
			got, err := cl.Classify(context.Background(), llm.FromValue(map[string]any{"a": 1}))
			if tt.wantErr {
				if !errors.Is(err, common.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Category != tt.want || got.Model != "m" {
				t.Errorf("got %+v, want category %s", got, tt.want)
			}
		})
	}
}
