package extract

import (
	"context"

	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

// Extractor is stage 1: form image -> structured fields in the form's own language.
// The returned string is the prompt that was sent.
type Extractor interface {
	Extract(ctx context.Context, img llm.Image, language string) (llm.StructuredResult, string, error)
	IsConfigured() bool
	Model() string
}

// Translator is the optional stage 2: structured fields -> English.
type Translator interface {
	Translate(ctx context.Context, data llm.StructuredResult, sourceLanguage string) (llm.StructuredResult, error)
	ShouldTranslate(language string) bool
	IsConfigured() bool
	Model() string
}
