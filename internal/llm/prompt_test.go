package llm

import (
	"strings"
	"testing"
)

func TestBuildExtractionPrompt(t *testing.T) {
	p := BuildExtractionPrompt("Spanish")
	for _, want := range []string{
		"This document is written in Spanish",
		`mark it as "unreadable"`,
		"DO NOT assume or hallucinate any fields",
		"Preserve the exact logical structure",
		"Return ONLY valid JSON",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("extraction prompt missing %q", want)
		}
	}
}

func TestBuildTranslationPrompt(t *testing.T) {
	doc := `{"Nombre": "JUAN"}`
	p := BuildTranslationPrompt("Spanish", doc)
	if !strings.Contains(p, "from Spanish to English") {
		t.Error("missing language pair")
	}
	if !strings.Contains(p, `If a value is "unreadable", keep it as is`) {
		t.Error("missing unreadable rule")
	}
	if !strings.HasSuffix(p, doc) {
		t.Error("document must be appended verbatim")
	}
}

func TestBuildClassificationPrompt(t *testing.T) {
	p := BuildClassificationPrompt([]string{"Medical Form", "Other"}, `{}`)
	if !strings.Contains(p, "- Medical Form\n- Other\n") {
		t.Errorf("categories not listed: %s", p)
	}
}
