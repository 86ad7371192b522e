package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

func newServer(t *testing.T, status int, reply string, seen *map[string]any, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		b, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(b, seen)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
}

func TestCompleteVisionSendsImagePart(t *testing.T) {
	var seen map[string]any
	var calls int32
	srv := newServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"{\"Name\":\"JOHN\"}"}}],"usage":{"total_tokens":42}}`, &seen, &calls)
	defer srv.Close()

	c := NewClient(Config{Name: "huggingface", APIKey: "test-key", BaseURL: srv.URL, Model: "vl-model"}, nil)
	out, err := c.CompleteVision(context.Background(), "read it", llm.Image{Data: []byte{0xFF, 0xD8, 0xFF}, MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("CompleteVision: %v", err)
	}
	if out.Text != `{"Name":"JOHN"}` || out.Usage.TotalTokens != 42 {
		t.Fatalf("unexpected completion %+v", out)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}

	msgs := seen["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].([]any)
	if content[0].(map[string]any)["text"] != "read it" {
		t.Errorf("text part = %v", content[0])
	}
	url := content[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("image part url = %s", url)
	}
	if _, ok := seen["temperature"]; ok {
		t.Error("vision request should not carry a temperature by default")
	}
}

func TestCompleteTextSendsBounds(t *testing.T) {
	var seen map[string]any
	var calls int32
	srv := newServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`, &seen, &calls)
	defer srv.Close()

	c := NewClient(Config{Name: "groq", APIKey: "test-key", BaseURL: srv.URL + "/", Model: "mixtral"}, nil)
	if _, err := c.CompleteText(context.Background(), "translate", llm.TextOptions{Temperature: llm.Temperature(0.3), MaxTokens: 2000}); err != nil {
		t.Fatal(err)
	}
	if seen["max_tokens"].(float64) != 2000 {
		t.Errorf("max_tokens = %v", seen["max_tokens"])
	}
	if temp := seen["temperature"].(float64); temp < 0.29 || temp > 0.31 {
		t.Errorf("temperature = %v", temp)
	}
}

func TestProviderErrors(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusTooManyRequests, `{"error":"rate limited"}`, nil, &calls)
	defer srv.Close()

	c := NewClient(Config{Name: "groq", APIKey: "test-key", BaseURL: srv.URL}, nil)
	_, err := c.CompleteText(context.Background(), "x", llm.TextOptions{})
	var pe *llm.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected ProviderError 429, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("no retry expected, got %d calls", calls)
	}

	empty := newServer(t, http.StatusOK, `{"choices":[]}`, nil, &calls)
	defer empty.Close()
	c = NewClient(Config{APIKey: "test-key", BaseURL: empty.URL}, nil)
	if _, err := c.CompleteText(context.Background(), "x", llm.TextOptions{}); !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError for empty choices, got %v", err)
	}
}

func TestUnconfiguredClientMakesNoCall(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusOK, `{}`, nil, &calls)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	if c.IsConfigured() {
		t.Fatal("client without key must report unconfigured")
	}
	if _, err := c.CompleteVision(context.Background(), "x", llm.Image{}); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected zero calls, got %d", calls)
	}
}

func TestTimeoutSurfacesAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.CompleteText(context.Background(), "x", llm.TextOptions{})
	var te interface{ Timeout() bool }
	if !errors.As(err, &te) || !te.Timeout() {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestCompleteTextSendsZeroTemperature(t *testing.T) {
	var seen map[string]any
	var calls int32
	srv := newServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`, &seen, &calls)
	defer srv.Close()

	c := NewClient(Config{Name: "groq", APIKey: "test-key", BaseURL: srv.URL, Temperature: 0.7}, nil)
	if _, err := c.CompleteText(context.Background(), "translate", llm.TextOptions{Temperature: llm.Temperature(0)}); err != nil {
		t.Fatal(err)
	}
	if temp, ok := seen["temperature"].(float64); !ok || temp != 0 {
		t.Errorf("temperature = %v, want 0", seen["temperature"])
	}
}
