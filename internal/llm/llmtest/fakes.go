// Package llmtest holds scripted model fakes shared by package tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

// Model answers every call with Reply or Err and records what it was sent.
type Model struct {
	ModelName  string
	Configured bool
	Reply      string
	Err        error
	// Block, when set, makes calls wait for ctx cancellation.
	Block bool

	mu      sync.Mutex
	calls   int
	prompts []string
	images  []llm.Image
	opts    []llm.TextOptions
}

var (
	_ llm.VisionModel = (*Model)(nil)
	_ llm.TextModel   = (*Model)(nil)
)

func (m *Model) Name() string       { return "fake" }
func (m *Model) Model() string      { return m.ModelName }
func (m *Model) IsConfigured() bool { return m.Configured }

func (m *Model) CompleteVision(ctx context.Context, prompt string, img llm.Image) (llm.Completion, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.images = append(m.images, img)
	m.mu.Unlock()
	return m.answer(ctx)
}

func (m *Model) CompleteText(ctx context.Context, prompt string, opts llm.TextOptions) (llm.Completion, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	return m.answer(ctx)
}

func (m *Model) answer(ctx context.Context) (llm.Completion, error) {
	if m.Block {
		<-ctx.Done()
		return llm.Completion{}, ctx.Err()
	}
	if m.Err != nil {
		return llm.Completion{}, m.Err
	}
	return llm.Completion{Text: m.Reply, Usage: llm.Usage{TotalTokens: len(m.Reply)}}, nil
}

func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Model) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func (m *Model) LastImage() llm.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.images) == 0 {
		return llm.Image{}
	}
	return m.images[len(m.images)-1]
}

func (m *Model) LastOptions() llm.TextOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.opts) == 0 {
		return llm.TextOptions{}
	}
	return m.opts[len(m.opts)-1]
}
